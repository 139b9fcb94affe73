package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/bidtree/bid"
	"github.com/benz9527/bidtree/config"
	"github.com/benz9527/bidtree/store"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Sync() error {
	return nil
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var _ zapcore.WriteSyncer = (*syncBuffer)(nil)

func testConfig(t *testing.T, kind string) *config.Config {
	cfg, err := config.Parse([]byte("log:\n  level: debug\n  encoder: json\n"))
	require.NoError(t, err)
	cfg.Backend.Kind = kind
	cfg.Data.Dir = t.TempDir()
	cfg.Data.Workers = 2
	return cfg
}

func TestRun_Backends(t *testing.T) {
	testcases := []struct {
		kind  string
		setup func(t *testing.T, cfg *config.Config)
		name  string
	}{
		{
			kind: BackendTree,
			name: "rbtree",
		},
		{
			kind: BackendTree,
			setup: func(t *testing.T, cfg *config.Config) {
				cfg.Backend.Tree = "bstree"
			},
			name: "bstree",
		},
		{
			kind: BackendSQL,
			setup: func(t *testing.T, cfg *config.Config) {
				cfg.Backend.SQLite.DSN = filepath.Join(t.TempDir(), "bids.db")
			},
			name: "sql",
		},
		{
			kind: BackendSQL,
			setup: func(t *testing.T, cfg *config.Config) {
				cfg.Backend.SQLite.DSN = filepath.Join(t.TempDir(), "bids.db")
				cfg.Backend.CacheSize = 8
			},
			name: "sql+lru",
		},
		{
			kind: BackendRedis,
			setup: func(t *testing.T, cfg *config.Config) {
				cfg.Backend.Redis.Addr = miniredis.RunT(t).Addr()
				cfg.Backend.CacheSize = 8
			},
			name: "redis+lru",
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			cfg := testConfig(tt, tc.kind)
			if tc.setup != nil {
				tc.setup(tt, cfg)
			}
			logs := &syncBuffer{}
			ctx := WithCommand(context.Background(), "test")
			err := Run(ctx, cfg, func(ctx context.Context, deps Deps) error {
				require.Same(tt, cfg, deps.Config)
				require.NotNil(tt, deps.Pool)
				require.NotNil(tt, deps.Meter)
				require.Equal(tt, tc.name, deps.Backend.Name())

				stats, err := deps.Backend.Load(ctx, []bid.Bid{
					{ID: 2, Title: "Lamp", Fund: "Enterprise", Amount: 2.5},
					{ID: 1, Title: "Desk", Fund: "General Fund", Amount: 10},
				}, store.IgnoreDuplicates)
				require.NoError(tt, err)
				require.Equal(tt, 2, stats.Inserted)

				b, ok, err := deps.Backend.Find(ctx, 1)
				require.NoError(tt, err)
				require.True(tt, ok)
				require.Equal(tt, "Desk", b.Title)

				_, err = deps.Backend.Load(ctx, nil, store.DuplicatePolicy(42))
				require.Error(tt, err)
				return nil
			}, WithLogWriter(logs))
			require.NoError(tt, err)

			out := logs.String()
			require.Contains(tt, out, `"banner"`)
			require.Contains(tt, out, "bid store opened")
			require.Contains(tt, out, "bid store operation failed")
			require.Contains(tt, out, `"command":"test"`)
		})
	}
}

func TestRun_Failures(t *testing.T) {
	cfg := testConfig(t, "bogus")
	called := false
	err := Run(context.Background(), cfg, func(context.Context, Deps) error {
		called = true
		return nil
	}, WithLogWriter(&syncBuffer{}))
	require.ErrorIs(t, err, store.ErrUnknownBackend)
	require.False(t, called)

	cfg = testConfig(t, BackendTree)
	errBoom := errors.New("boom")
	err = Run(context.Background(), cfg, func(context.Context, Deps) error {
		return errBoom
	}, WithLogWriter(&syncBuffer{}))
	require.ErrorIs(t, err, errBoom)

	cfg = testConfig(t, BackendTree)
	cfg.Metrics.Exporter = "graphite"
	err = Run(context.Background(), cfg, func(context.Context, Deps) error {
		return nil
	}, WithLogWriter(&syncBuffer{}))
	require.Error(t, err)
}

func TestRun_PrometheusAndWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bidtree.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o644))

	cfg := testConfig(t, BackendTree)
	cfg.Log.Level = "INFO"
	cfg.Metrics.Exporter = "prometheus"
	cfg.Metrics.Addr = "127.0.0.1:0"
	logs := &syncBuffer{}
	err := Run(context.Background(), cfg, func(ctx context.Context, deps Deps) error {
		require.NotNil(t, deps.Meter.Registry)
		require.Equal(t, "info", deps.Logger.Level())
		require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))
		require.Eventually(t, func() bool {
			return deps.Logger.Level() == "debug"
		}, 5*time.Second, 20*time.Millisecond)
		return nil
	}, WithLogWriter(logs), WithConfigWatch(path))
	require.NoError(t, err)
	require.Contains(t, logs.String(), "log level reloaded")
	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "serving metrics")
	}, 5*time.Second, 20*time.Millisecond)
}
