package store

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"github.com/benz9527/bidtree/bid"
	"github.com/benz9527/bidtree/dlock"
	"github.com/benz9527/bidtree/lib/infra"
	"github.com/benz9527/bidtree/xlog"
)

const (
	redisPipeChunk = 512

	hashFieldID     = "id"
	hashFieldTitle  = "title"
	hashFieldFund   = "fund"
	hashFieldAmount = "amount"

	DefaultRedisLockTTL = 30 * time.Second
)

var _ Backend = (*RedisStore)(nil)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	LockTTL  time.Duration // Zero uses the DefaultRedisLockTTL.
	Logger   xlog.XLogger
}

// RedisStore keeps each bid in the hash "<prefix>bid:<id>" and orders them
// by the sorted set "<prefix>bids" scored by the ID.
//
// Load and Clear hold the lock "<prefix>lock" shared with the other
// processes on the same prefix, so the existence check and the writes of
// one load are never interleaved with the other's.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	lockTTL   time.Duration
	lockRetry func() dlock.RetryStrategy
}

type RedisStoreOption func(*RedisStore)

func WithRedisStoreLockTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithRedisStoreLockRetry sets the strategy to wait for the lock held by
// the other process.
func WithRedisStoreLockRetry(retry func() dlock.RetryStrategy) RedisStoreOption {
	return func(s *RedisStore) {
		if retry != nil {
			s.lockRetry = retry
		}
	}
}

func OpenRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Logger != nil {
		redis.SetLogger(xlog.NewGoRedisXLogger(cfg.Logger))
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, infra.WrapErrorStackWithMessage(err, "[bidstore] failed to connect redis "+cfg.Addr)
	}
	return NewRedisStore(client, cfg.Prefix, WithRedisStoreLockTTL(cfg.LockTTL)), nil
}

func NewRedisStore(client *redis.Client, prefix string, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client:    client,
		prefix:    prefix,
		lockTTL:   DefaultRedisLockTTL,
		lockRetry: dlock.DefaultExponentialBackoffRetry,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *RedisStore) Name() string {
	return "redis"
}

func (s *RedisStore) bidKey(id int64) string {
	return s.prefix + "bid:" + strconv.FormatInt(id, 10)
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "bids"
}

func (s *RedisStore) lockKey() string {
	return s.prefix + "lock"
}

func (s *RedisStore) withLock(ctx context.Context, fn func() error) (err error) {
	lock, err := dlock.RedisDLock(s.client, s.lockKey(),
		dlock.WithRedisDLockTTL(s.lockTTL),
		dlock.WithRedisDLockToken("bidstore"),
		dlock.WithRedisDLockRetry(s.lockRetry),
	)
	if err != nil {
		return err
	}
	if err = lock.Lock(ctx); err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, lock.Unlock(context.WithoutCancel(ctx)))
	}()
	return fn()
}

func bidToHash(b bid.Bid) map[string]any {
	return map[string]any{
		hashFieldID:     strconv.FormatInt(b.ID, 10),
		hashFieldTitle:  b.Title,
		hashFieldFund:   b.Fund,
		hashFieldAmount: strconv.FormatFloat(b.Amount, 'f', -1, 64),
	}
}

func hashToBid(fields map[string]string) (bid.Bid, error) {
	id, err := strconv.ParseInt(fields[hashFieldID], 10, 64)
	if err != nil {
		return bid.Bid{}, ErrMalformedRecord
	}
	amount, err := strconv.ParseFloat(fields[hashFieldAmount], 64)
	if err != nil {
		return bid.Bid{}, ErrMalformedRecord
	}
	return bid.Bid{
		ID:     id,
		Title:  fields[hashFieldTitle],
		Fund:   fields[hashFieldFund],
		Amount: amount,
	}, nil
}

// existing reports the bids already stored, by the EXISTS replies.
func (s *RedisStore) existing(ctx context.Context, bids []bid.Bid) ([]bool, error) {
	res := make([]bool, 0, len(bids))
	for start := 0; start < len(bids); start += redisPipeChunk {
		chunk := bids[start:min(start+redisPipeChunk, len(bids))]
		cmds := make([]*redis.IntCmd, 0, len(chunk))
		if _, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, b := range chunk {
				cmds = append(cmds, pipe.Exists(ctx, s.bidKey(b.ID)))
			}
			return nil
		}); err != nil {
			return nil, err
		}
		for _, cmd := range cmds {
			res = append(res, cmd.Val() > 0)
		}
	}
	return res, nil
}

// Load writes the bids in MULTI/EXEC chunks. The ignored bids are never
// written, the replaced hashes are deleted before rewritten so no stale
// field survives.
func (s *RedisStore) Load(ctx context.Context, bids []bid.Bid, policy DuplicatePolicy) (LoadStats, error) {
	if err := checkPolicy(policy); err != nil {
		return LoadStats{}, err
	}
	uniq, dups := dedupe(bids, policy)
	existing := 0
	if err := s.withLock(ctx, func() error {
		var err error
		existing, err = s.load(ctx, uniq, policy)
		return err
	}); err != nil {
		return LoadStats{}, err
	}
	return loadStats(len(uniq), dups, existing, policy), nil
}

func (s *RedisStore) load(ctx context.Context, uniq []bid.Bid, policy DuplicatePolicy) (int, error) {
	exists, err := s.existing(ctx, uniq)
	if err != nil {
		return 0, infra.WrapErrorStackWithMessage(err, "[bidstore] check redis bids")
	}

	existing := 0
	for start := 0; start < len(uniq); start += redisPipeChunk {
		end := min(start+redisPipeChunk, len(uniq))
		if _, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i := start; i < end; i++ {
				b := uniq[i]
				if exists[i] {
					existing++
					if policy == IgnoreDuplicates {
						continue
					}
					pipe.Del(ctx, s.bidKey(b.ID))
				}
				pipe.HSet(ctx, s.bidKey(b.ID), bidToHash(b))
				pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(b.ID), Member: b.ID})
			}
			return nil
		}); err != nil {
			return 0, infra.WrapErrorStackWithMessage(err, "[bidstore] load redis bids")
		}
	}
	return existing, nil
}

func (s *RedisStore) ids(ctx context.Context) ([]int64, error) {
	members, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, ErrMalformedRecord
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *RedisStore) List(ctx context.Context) ([]bid.Bid, error) {
	ids, err := s.ids(ctx)
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[bidstore] list redis bids")
	}
	bids := make([]bid.Bid, 0, len(ids))
	for start := 0; start < len(ids); start += redisPipeChunk {
		chunk := ids[start:min(start+redisPipeChunk, len(ids))]
		cmds := make([]*redis.MapStringStringCmd, 0, len(chunk))
		if _, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, id := range chunk {
				cmds = append(cmds, pipe.HGetAll(ctx, s.bidKey(id)))
			}
			return nil
		}); err != nil {
			return nil, infra.WrapErrorStackWithMessage(err, "[bidstore] list redis bids")
		}
		for _, cmd := range cmds {
			fields := cmd.Val()
			if len(fields) == 0 {
				// Removed by another client after the index was read.
				continue
			}
			b, err := hashToBid(fields)
			if err != nil {
				return nil, err
			}
			bids = append(bids, b)
		}
	}
	return bids, nil
}

func (s *RedisStore) Find(ctx context.Context, id int64) (bid.Bid, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.bidKey(id)).Result()
	if err != nil {
		return bid.Bid{}, false, infra.WrapErrorStackWithMessage(err, "[bidstore] find redis bid")
	}
	if len(fields) == 0 {
		return bid.Bid{}, false, nil
	}
	b, err := hashToBid(fields)
	if err != nil {
		return bid.Bid{}, false, err
	}
	return b, true, nil
}

func (s *RedisStore) Remove(ctx context.Context, id int64) (bool, error) {
	var del *redis.IntCmd
	if _, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.bidKey(id))
		pipe.ZRem(ctx, s.indexKey(), id)
		return nil
	}); err != nil {
		return false, infra.WrapErrorStackWithMessage(err, "[bidstore] remove redis bid")
	}
	return del.Val() > 0, nil
}

func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, infra.WrapErrorStackWithMessage(err, "[bidstore] count redis bids")
	}
	return n, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.withLock(ctx, func() error {
		return s.clear(ctx)
	})
}

func (s *RedisStore) clear(ctx context.Context) error {
	ids, err := s.ids(ctx)
	if err != nil {
		return infra.WrapErrorStackWithMessage(err, "[bidstore] clear redis bids")
	}
	for start := 0; start < len(ids); start += redisPipeChunk {
		chunk := ids[start:min(start+redisPipeChunk, len(ids))]
		keys := make([]string, 0, len(chunk))
		for _, id := range chunk {
			keys = append(keys, s.bidKey(id))
		}
		if err = s.client.Del(ctx, keys...).Err(); err != nil {
			return infra.WrapErrorStackWithMessage(err, "[bidstore] clear redis bids")
		}
	}
	if err = s.client.Del(ctx, s.indexKey()).Err(); err != nil {
		return infra.WrapErrorStackWithMessage(err, "[bidstore] clear redis bids")
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
