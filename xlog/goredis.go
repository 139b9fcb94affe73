package xlog

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// GoRedisXLogger receives the go-redis internal logs, mostly the dial and
// pool errors.
type GoRedisXLogger struct {
	logger XLogger
}

func (l *GoRedisXLogger) Printf(ctx context.Context, format string, v ...any) {
	if l == nil || l.logger == nil {
		return
	}
	msg := fmt.Sprintf(format, v...)
	lvl := zapcore.InfoLevel
	if strings.Contains(msg, "failed") || strings.Contains(msg, "error") {
		lvl = zapcore.ErrorLevel
	}
	l.logger.Logf(lvl, "%s", msg)
}

func NewGoRedisXLogger(logger XLogger) *GoRedisXLogger {
	return &GoRedisXLogger{
		logger: newComponentLogger(logger, "GoRedis"),
	}
}
