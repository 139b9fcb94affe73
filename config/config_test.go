package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		EnvBackend, EnvTree, EnvDataDir, EnvDataWorkers, EnvSQLiteDSN,
		EnvRedisAddr, EnvRedisPassword, EnvMetricsExporter, EnvLogLevel,
	} {
		t.Setenv(key, "")
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := NewConfig()
	require.NoError(t, err)
	require.Equal(t, DefaultBackendKind, cfg.Backend.Kind)
	require.Equal(t, DefaultTreeKind, cfg.Backend.Tree)
	require.Equal(t, DefaultSQLiteDSN, cfg.Backend.SQLite.DSN)
	require.Equal(t, DefaultSQLiteTable, cfg.Backend.SQLite.Table)
	require.Equal(t, DefaultRedisAddr, cfg.Backend.Redis.Addr)
	require.Equal(t, DefaultDataDir, cfg.Data.Dir)
	require.Equal(t, DefaultDataWorkers, cfg.Data.Workers)
	require.Equal(t, DefaultLogLevel, cfg.Log.Level)
	require.Equal(t, DefaultLogEncoder, cfg.Log.Encoder)
	require.Equal(t, DefaultMetricsExporter, cfg.Metrics.Exporter)
	require.Equal(t, int64(DefaultMetricsInterval), cfg.Metrics.IntervalMs)
}

func TestParse(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte(`
log:
  level: debug
  encoder: JSON
  file: /var/log/bidtree.log
backend:
  kind: SQL
  tree: bstree
  sqlite:
    dsn: /data/auctions.db
    table: auctions
  redis:
    addr: redis.local:6380
    db: 2
  cacheSize: 512
data:
  dir: /data/csv
  workers: 8
metrics:
  exporter: prometheus
  addr: 0.0.0.0:9100
`))
	require.NoError(t, err)
	require.Equal(t, "DEBUG", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Encoder)
	require.Equal(t, "/var/log/bidtree.log", cfg.Log.File)
	require.Equal(t, "sql", cfg.Backend.Kind)
	require.Equal(t, "bstree", cfg.Backend.Tree)
	require.Equal(t, "/data/auctions.db", cfg.Backend.SQLite.DSN)
	require.Equal(t, "auctions", cfg.Backend.SQLite.Table)
	require.Equal(t, int64(DefaultSlowThresholdMs), cfg.Backend.SQLite.SlowThresholdMs)
	require.Equal(t, "redis.local:6380", cfg.Backend.Redis.Addr)
	require.Equal(t, 2, cfg.Backend.Redis.DB)
	require.Equal(t, DefaultRedisPrefix, cfg.Backend.Redis.Prefix)
	require.Equal(t, 512, cfg.Backend.CacheSize)
	require.Equal(t, "/data/csv", cfg.Data.Dir)
	require.Equal(t, 8, cfg.Data.Workers)
	require.Equal(t, "prometheus", cfg.Metrics.Exporter)
	require.Equal(t, "0.0.0.0:9100", cfg.Metrics.Addr)

	_, err = Parse([]byte("backend: [oops"))
	require.Error(t, err)
}

func TestParse_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBackend, " Redis ")
	t.Setenv(EnvDataDir, "/tmp/bids")
	t.Setenv(EnvDataWorkers, "2")
	t.Setenv(EnvRedisAddr, "10.0.0.1:6379")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Parse([]byte(`
backend:
  kind: tree
data:
  dir: /data/csv
  workers: 16
`))
	require.NoError(t, err)
	require.Equal(t, "redis", cfg.Backend.Kind)
	require.Equal(t, "/tmp/bids", cfg.Data.Dir)
	require.Equal(t, 2, cfg.Data.Workers)
	require.Equal(t, "10.0.0.1:6379", cfg.Backend.Redis.Addr)
	require.Equal(t, "WARN", cfg.Log.Level)

	t.Setenv(EnvDataWorkers, "many")
	_, err = NewConfig()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	_, err := Parse([]byte(`
log:
  level: verbose
backend:
  kind: mongo
  tree: avl
  redis:
    addr: nowhere
data:
  workers: 1000
metrics:
  exporter: otlp
`))
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 6)
	require.Contains(t, err.Error(), "Config.Backend.Kind")
	require.Contains(t, err.Error(), `"oneof=tree sql redis"`)
	require.Contains(t, err.Error(), "Config.Backend.Redis.Addr")
	require.Contains(t, err.Error(), "Config.Data.Workers")
}

func TestNewConfigFromFile(t *testing.T) {
	clearEnv(t)
	_, err := NewConfigFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bidtree.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  tree: bstree\n"), 0o644))
	cfg, err := NewConfigFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "bstree", cfg.Backend.Tree)
}

func TestWatch(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "bidtree.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: INFO\n"), 0o644))

	levels := make(chan string, 16)
	errs := make(chan error, 16)
	w, err := Watch(context.Background(), path, func(cfg *Config) {
		select {
		case levels <- cfg.Log.Level:
		default:
		}
	}, func(err error) {
		select {
		case errs <- err:
		default:
		}
	})
	require.NoError(t, err)
	defer func() { require.NoError(t, w.Close()) }()

	// The sibling file is never reloaded.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: ERROR\n"), 0o644))
	require.Eventually(t, func() bool {
		select {
		case lvl := <-levels:
			return lvl == "ERROR"
		default:
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: LOUD\n"), 0o644))
	require.Eventually(t, func() bool {
		return len(errs) > 0
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Close())
	_, err = Watch(context.Background(), filepath.Join(dir, "absent", "bidtree.yaml"), nil, nil)
	require.Error(t, err)
}
