package app

import (
	"context"
	"time"

	"github.com/benz9527/bidtree/config"
	"github.com/benz9527/bidtree/store"
	"github.com/benz9527/bidtree/xlog"
)

const (
	BackendTree  = "tree"
	BackendSQL   = "sql"
	BackendRedis = "redis"
)

// OpenBackend opens the configured store. The remote stores get the LRU
// cache in front if the cache size is set. The in-memory tree never does.
func OpenBackend(ctx context.Context, cfg *config.Config, logger xlog.XLogger) (store.Backend, error) {
	var (
		backend store.Backend
		err     error
	)
	switch cfg.Backend.Kind {
	case BackendTree:
		var kind store.TreeKind
		if kind, err = store.ParseTreeKind(cfg.Backend.Tree); err != nil {
			return nil, err
		}
		return store.NewTreeStore(kind)
	case BackendSQL:
		backend, err = store.OpenSQLStore(ctx, store.SQLConfig{
			DSN:           cfg.Backend.SQLite.DSN,
			Table:         cfg.Backend.SQLite.Table,
			SlowThreshold: time.Duration(cfg.Backend.SQLite.SlowThresholdMs) * time.Millisecond,
			Logger:        logger,
		})
	case BackendRedis:
		backend, err = store.OpenRedisStore(ctx, store.RedisConfig{
			Addr:     cfg.Backend.Redis.Addr,
			Password: cfg.Backend.Redis.Password,
			DB:       cfg.Backend.Redis.DB,
			Prefix:   cfg.Backend.Redis.Prefix,
			LockTTL:  time.Duration(cfg.Backend.Redis.LockTTLMs) * time.Millisecond,
			Logger:   logger,
		})
	default:
		return nil, store.ErrUnknownBackend
	}
	if err != nil {
		return nil, err
	}
	if cfg.Backend.CacheSize <= 0 {
		return backend, nil
	}
	cached, err := store.NewCachedStore(backend, cfg.Backend.CacheSize)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return cached, nil
}
