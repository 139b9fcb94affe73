package xlog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	glogger "gorm.io/gorm/logger"
	gutils "gorm.io/gorm/utils"
)

var _ glogger.Interface = (*GormXLogger)(nil)

// GormXLogger has its own level, the sql trace of the bid store is noisy
// and usually muted while the application logs at DEBUG.
type GormXLogger struct {
	logger              XLogger
	cfg                 glogger.Config
	dynamicLevelEnabler zap.AtomicLevel
	gormLevel           atomic.Int32
}

func (l *GormXLogger) level() glogger.LogLevel {
	return glogger.LogLevel(l.gormLevel.Load())
}

func (l *GormXLogger) LogMode(lvl glogger.LogLevel) glogger.Interface {
	l.gormLevel.Store(int32(lvl))
	l.dynamicLevelEnabler.SetLevel(gormLevelToZap(lvl))
	return l
}

func (l *GormXLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level() >= glogger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, data...), zap.String("fileAndLine", gutils.FileWithLineNum()))
	}
}

func (l *GormXLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level() >= glogger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, data...), zap.String("fileAndLine", gutils.FileWithLineNum()))
	}
}

func (l *GormXLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level() >= glogger.Error {
		l.logger.ErrorContext(ctx, nil, fmt.Sprintf(msg, data...), zap.String("fileAndLine", gutils.FileWithLineNum()))
	}
}

func sqlTraceFields(elapsed time.Duration, fc func() (string, int64)) []zap.Field {
	sql, rows := fc()
	rowsField := zap.String("rows", "-")
	if rows > -1 {
		rowsField = zap.String("rows", strconv.FormatInt(rows, 10))
	}
	return []zap.Field{
		zap.String("fileAndLine", gutils.FileWithLineNum()),
		rowsField,
		zap.Int64("elapsedMs", elapsed.Milliseconds()),
		zap.String("sql", sql),
	}
}

func (l *GormXLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	lvl := l.level()
	if lvl <= glogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && lvl >= glogger.Error &&
		(!errors.Is(err, glogger.ErrRecordNotFound) || !l.cfg.IgnoreRecordNotFoundError):
		l.logger.ErrorContext(ctx, err, "sql error", sqlTraceFields(elapsed, fc)...)
	case l.cfg.SlowThreshold != 0 && elapsed > l.cfg.SlowThreshold && lvl >= glogger.Warn:
		fields := append(sqlTraceFields(elapsed, fc), zap.Int64("thresholdMs", l.cfg.SlowThreshold.Milliseconds()))
		l.logger.WarnContext(ctx, "slow sql", fields...)
	case lvl == glogger.Info:
		l.logger.InfoContext(ctx, "sql", sqlTraceFields(elapsed, fc)...)
	}
}

func NewGormXLogger(logger XLogger, opts ...GormXLoggerOption) *GormXLogger {
	gl := &GormXLogger{
		cfg: glogger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      glogger.Warn,
		},
	}
	for _, o := range opts {
		if o != nil {
			o(&gl.cfg)
		}
	}
	gl.gormLevel.Store(int32(gl.cfg.LogLevel))
	gl.dynamicLevelEnabler = zap.NewAtomicLevelAt(gormLevelToZap(gl.cfg.LogLevel))
	gl.logger = newComponentLogger(logger, "Gorm", gl.dynamicLevelEnabler)
	return gl
}

func gormLevelToZap(lvl glogger.LogLevel) zapcore.Level {
	switch lvl {
	case glogger.Silent:
		return zapcore.FatalLevel
	case glogger.Error:
		return zapcore.ErrorLevel
	case glogger.Warn:
		return zapcore.WarnLevel
	case glogger.Info:
		fallthrough
	default:
	}
	return zapcore.InfoLevel
}

type GormXLoggerOption func(*glogger.Config)

func WithGormXLoggerSlowThreshold(threshold time.Duration) GormXLoggerOption {
	return func(cfg *glogger.Config) {
		cfg.SlowThreshold = threshold
	}
}

func WithGormXLoggerLogLevel(lvl glogger.LogLevel) GormXLoggerOption {
	return func(cfg *glogger.Config) {
		cfg.LogLevel = lvl
	}
}

func WithGormXLoggerIgnoreRecord404Err() GormXLoggerOption {
	return func(cfg *glogger.Config) {
		cfg.IgnoreRecordNotFoundError = true
	}
}

func WithGormXLoggerParameterizedQueries() GormXLoggerOption {
	return func(cfg *glogger.Config) {
		cfg.ParameterizedQueries = true
	}
}
