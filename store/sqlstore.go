package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	glogger "gorm.io/gorm/logger"

	"github.com/benz9527/bidtree/bid"
	"github.com/benz9527/bidtree/lib/infra"
	"github.com/benz9527/bidtree/xlog"
)

const (
	defaultBidTable = "bids"
	colAuctionID    = "auction_id"
	sqlBatchSize    = 500
	// Below the SQLite host parameter limit of the old versions.
	sqlInChunkSize = 900
)

type bidRecord struct {
	AuctionID    int64   `gorm:"column:auction_id;primaryKey;autoIncrement:false"`
	AuctionTitle string  `gorm:"column:auction_title;not null"`
	Fund         string  `gorm:"column:fund;not null"`
	WinningBid   float64 `gorm:"column:winning_bid;not null"`
}

func (bidRecord) TableName() string {
	return defaultBidTable
}

func toRecord(b bid.Bid) bidRecord {
	return bidRecord{AuctionID: b.ID, AuctionTitle: b.Title, Fund: b.Fund, WinningBid: b.Amount}
}

func (r bidRecord) bid() bid.Bid {
	return bid.Bid{ID: r.AuctionID, Title: r.AuctionTitle, Fund: r.Fund, Amount: r.WinningBid}
}

var (
	_ Backend = (*SQLStore)(nil)

	identifierRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)
	protectedColumns = map[string]struct{}{
		"auction_id": {}, "auction_title": {}, "fund": {}, "winning_bid": {},
	}
	columnTypes = map[string]struct{}{
		"INTEGER": {}, "TEXT": {}, "REAL": {}, "NUMERIC": {}, "BLOB": {},
	}
)

type SQLConfig struct {
	// The file path of the SQLite database, ":memory:" is a private database
	// on the single connection.
	DSN           string
	Table         string
	SlowThreshold time.Duration
	Logger        xlog.XLogger
}

// SQLStore keeps the bids in a relational table. The table is able to be
// renamed and extended with more columns, the four bid columns are fixed.
type SQLStore struct {
	db    *gorm.DB
	mu    sync.RWMutex
	table string
}

func OpenSQLStore(ctx context.Context, cfg SQLConfig) (*SQLStore, error) {
	var logger glogger.Interface = glogger.Discard
	if cfg.Logger != nil {
		opts := []xlog.GormXLoggerOption{xlog.WithGormXLoggerIgnoreRecord404Err()}
		if cfg.SlowThreshold > 0 {
			opts = append(opts, xlog.WithGormXLoggerSlowThreshold(cfg.SlowThreshold))
		}
		logger = xlog.NewGormXLogger(cfg.Logger, opts...)
	}
	db, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
		Logger:                 logger,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[bidstore] failed to open sqlite "+cfg.DSN)
	}
	if strings.Contains(cfg.DSN, ":memory:") {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	s, err := NewSQLStore(ctx, db, cfg.Table)
	if err != nil {
		_ = closeGormDB(db)
		return nil, err
	}
	return s, nil
}

// NewSQLStore creates the table if it is absent.
func NewSQLStore(ctx context.Context, db *gorm.DB, table string) (*SQLStore, error) {
	if table == "" {
		table = defaultBidTable
	}
	if !identifierRegexp.MatchString(table) {
		return nil, ErrInvalidIdentifier
	}
	s := &SQLStore{db: db, table: table}
	if err := s.CreateTable(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) Name() string {
	return "sql"
}

func (s *SQLStore) Table() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

func (s *SQLStore) tx(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.Table())
}

func (s *SQLStore) CreateTable(ctx context.Context) error {
	m := s.tx(ctx).Migrator()
	if m.HasTable(&bidRecord{}) {
		return nil
	}
	if err := m.CreateTable(&bidRecord{}); err != nil {
		return infra.WrapErrorStackWithMessage(err, "[bidstore] create table "+s.Table())
	}
	return nil
}

func (s *SQLStore) RenameTable(ctx context.Context, newName string) error {
	if !identifierRegexp.MatchString(newName) {
		return ErrInvalidIdentifier
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.WithContext(ctx).Migrator().RenameTable(s.table, newName); err != nil {
		return infra.WrapErrorStackWithMessage(err, "[bidstore] rename table "+s.table)
	}
	s.table = newName
	return nil
}

// AddColumn extends the table by an extra nullable column.
func (s *SQLStore) AddColumn(ctx context.Context, name, sqlType string) error {
	if !identifierRegexp.MatchString(name) {
		return ErrInvalidIdentifier
	}
	typ := strings.ToUpper(strings.TrimSpace(sqlType))
	if _, ok := columnTypes[typ]; !ok {
		return ErrUnsupportedType
	}
	err := s.db.WithContext(ctx).Exec("ALTER TABLE ? ADD COLUMN ? "+typ,
		clause.Table{Name: s.Table()}, clause.Column{Name: name}).Error
	if err != nil {
		return infra.WrapErrorStackWithMessage(err, "[bidstore] add column "+name)
	}
	return nil
}

func (s *SQLStore) HasColumn(ctx context.Context, name string) bool {
	return s.tx(ctx).Migrator().HasColumn(&bidRecord{}, name)
}

func (s *SQLStore) RenameColumn(ctx context.Context, oldName, newName string) error {
	if _, ok := protectedColumns[oldName]; ok {
		return ErrProtectedColumn
	}
	if !identifierRegexp.MatchString(newName) {
		return ErrInvalidIdentifier
	}
	if err := s.tx(ctx).Migrator().RenameColumn(&bidRecord{}, oldName, newName); err != nil {
		return infra.WrapErrorStackWithMessage(err, "[bidstore] rename column "+oldName)
	}
	return nil
}

func (s *SQLStore) DropTable(ctx context.Context) error {
	if err := s.tx(ctx).Migrator().DropTable(&bidRecord{}); err != nil {
		return infra.WrapErrorStackWithMessage(err, "[bidstore] drop table "+s.Table())
	}
	return nil
}

func (s *SQLStore) countExisting(tx *gorm.DB, bids []bid.Bid) (int, error) {
	existing := 0
	ids := make([]int64, 0, min(len(bids), sqlInChunkSize))
	for start := 0; start < len(bids); start += sqlInChunkSize {
		ids = ids[:0]
		for _, b := range bids[start:min(start+sqlInChunkSize, len(bids))] {
			ids = append(ids, b.ID)
		}
		var n int64
		if err := tx.Table(s.Table()).Where(colAuctionID+" IN ?", ids).Count(&n).Error; err != nil {
			return 0, err
		}
		existing += int(n)
	}
	return existing, nil
}

// Load inserts the bids by INSERT ... ON CONFLICT DO NOTHING or DO UPDATE
// in one transaction.
func (s *SQLStore) Load(ctx context.Context, bids []bid.Bid, policy DuplicatePolicy) (LoadStats, error) {
	if err := checkPolicy(policy); err != nil {
		return LoadStats{}, err
	}
	uniq, dups := dedupe(bids, policy)
	if len(uniq) == 0 {
		return LoadStats{}, nil
	}
	records := make([]bidRecord, 0, len(uniq))
	for _, b := range uniq {
		records = append(records, toRecord(b))
	}

	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: colAuctionID}},
		DoNothing: true,
	}
	if policy == ReplaceDuplicates {
		onConflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: colAuctionID}},
			DoUpdates: clause.AssignmentColumns([]string{"auction_title", "fund", "winning_bid"}),
		}
	}

	var stats LoadStats
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.countExisting(tx, uniq)
		if err != nil {
			return err
		}
		if err = tx.Table(s.Table()).
			Clauses(onConflict).
			CreateInBatches(&records, sqlBatchSize).Error; err != nil {
			return err
		}
		stats = loadStats(len(uniq), dups, existing, policy)
		return nil
	})
	if err != nil {
		return LoadStats{}, infra.WrapErrorStackWithMessage(err, "[bidstore] load bids")
	}
	return stats, nil
}

func (s *SQLStore) List(ctx context.Context) ([]bid.Bid, error) {
	var records []bidRecord
	if err := s.tx(ctx).Order(colAuctionID).Find(&records).Error; err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[bidstore] list bids")
	}
	bids := make([]bid.Bid, 0, len(records))
	for _, r := range records {
		bids = append(bids, r.bid())
	}
	return bids, nil
}

func (s *SQLStore) Find(ctx context.Context, id int64) (bid.Bid, bool, error) {
	var r bidRecord
	err := s.tx(ctx).Where(colAuctionID+" = ?", id).Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return bid.Bid{}, false, nil
	} else if err != nil {
		return bid.Bid{}, false, infra.WrapErrorStackWithMessage(err, "[bidstore] find bid")
	}
	return r.bid(), true, nil
}

// UpdateRecord sets the columns of the bid, the extra columns included. The
// auction id is never updated.
func (s *SQLStore) UpdateRecord(ctx context.Context, id int64, fields map[string]any) (bool, error) {
	if _, ok := fields[colAuctionID]; ok {
		return false, ErrProtectedColumn
	}
	if len(fields) == 0 {
		return false, nil
	}
	for name := range fields {
		if !identifierRegexp.MatchString(name) {
			return false, ErrInvalidIdentifier
		}
	}
	res := s.tx(ctx).Where(colAuctionID+" = ?", id).Updates(fields)
	if res.Error != nil {
		return false, infra.WrapErrorStackWithMessage(res.Error, "[bidstore] update bid")
	}
	return res.RowsAffected > 0, nil
}

func (s *SQLStore) Remove(ctx context.Context, id int64) (bool, error) {
	res := s.tx(ctx).Where(colAuctionID+" = ?", id).Delete(&bidRecord{})
	if res.Error != nil {
		return false, infra.WrapErrorStackWithMessage(res.Error, "[bidstore] remove bid")
	}
	return res.RowsAffected > 0, nil
}

func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.tx(ctx).Count(&n).Error; err != nil {
		return 0, infra.WrapErrorStackWithMessage(err, "[bidstore] count bids")
	}
	return n, nil
}

func (s *SQLStore) Clear(ctx context.Context) error {
	err := s.tx(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&bidRecord{}).Error
	if err != nil {
		return infra.WrapErrorStackWithMessage(err, "[bidstore] clear bids")
	}
	return nil
}

func (s *SQLStore) Close() error {
	return closeGormDB(s.db)
}

func closeGormDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
