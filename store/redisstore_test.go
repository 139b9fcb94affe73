package store

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/bidtree/bid"
	"github.com/benz9527/bidtree/dlock"
	"github.com/benz9527/bidtree/xlog"
)

func TestRedisStore_Layout(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	buf := &bytes.Buffer{}
	logger := xlog.NewXLogger(xlog.WithXLoggerWriter(zapcore.AddSync(buf)))
	defer func() { _ = logger.Close() }()

	s, err := OpenRedisStore(ctx, RedisConfig{Addr: mr.Addr(), Prefix: "auction:", Logger: logger})
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()
	require.Equal(t, "redis", s.Name())

	_, err = s.Load(ctx, []bid.Bid{
		{ID: 98109, Title: "Table and Chairs", Fund: "General Fund", Amount: 67.25},
		{ID: 97990, Title: "Enclosed Trailer", Fund: "Enterprise", Amount: 1000},
	}, IgnoreDuplicates)
	require.NoError(t, err)

	require.True(t, mr.Exists("auction:bid:98109"))
	require.Equal(t, "Table and Chairs", mr.HGet("auction:bid:98109", "title"))
	require.Equal(t, "67.25", mr.HGet("auction:bid:98109", "amount"))
	members, err := mr.ZMembers("auction:bids")
	require.NoError(t, err)
	require.Equal(t, []string{"97990", "98109"}, members)

	// The replacement rewrites the whole hash.
	mr.HSet("auction:bid:97990", "stale", "field")
	_, err = s.Load(ctx, []bid.Bid{{ID: 97990, Title: "Trailer", Fund: "Enterprise", Amount: 900}}, ReplaceDuplicates)
	require.NoError(t, err)
	require.Empty(t, mr.HGet("auction:bid:97990", "stale"))
	require.Equal(t, "Trailer", mr.HGet("auction:bid:97990", "title"))

	// The ignored bid is never written.
	_, err = s.Load(ctx, []bid.Bid{{ID: 98109, Title: "ignored"}}, IgnoreDuplicates)
	require.NoError(t, err)
	require.Equal(t, "Table and Chairs", mr.HGet("auction:bid:98109", "title"))

	require.NoError(t, s.Clear(ctx))
	require.False(t, mr.Exists("auction:bid:98109"))
	require.False(t, mr.Exists("auction:bids"))
	require.False(t, mr.Exists("auction:lock"))
}

func TestRedisStore_Locked(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client, "test:",
		WithRedisStoreLockTTL(time.Minute),
		WithRedisStoreLockRetry(dlock.NoRetry),
	)
	defer func() { _ = s.Close() }()

	// The other process is loading.
	other, err := dlock.RedisDLock(client, "test:lock", dlock.WithRedisDLockTTL(time.Minute))
	require.NoError(t, err)
	require.NoError(t, other.Lock(ctx))

	_, err = s.Load(ctx, testBids(1, 2), IgnoreDuplicates)
	require.ErrorIs(t, err, dlock.ErrDLockAcquireFailed)
	require.ErrorIs(t, s.Clear(ctx), dlock.ErrDLockAcquireFailed)
	require.False(t, mr.Exists("test:bids"))

	require.NoError(t, other.Unlock(ctx))
	stats, err := s.Load(ctx, testBids(1, 2), IgnoreDuplicates)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Inserted)
	require.False(t, mr.Exists("test:lock"))
}

func TestRedisStore_Malformed(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	defer func() { _ = s.Close() }()

	mr.HSet("bid:7", "id", "7", "title", "broken", "amount", "n/a")
	_, err := mr.ZAdd("bids", 7, "7")
	require.NoError(t, err)
	_, _, err = s.Find(ctx, 7)
	require.ErrorIs(t, err, ErrMalformedRecord)
	_, err = s.List(ctx)
	require.ErrorIs(t, err, ErrMalformedRecord)

	_, err = mr.ZAdd("bids", 8, "eight")
	require.NoError(t, err)
	_, err = s.Count(ctx)
	require.NoError(t, err)
	_, err = s.List(ctx)
	require.Error(t, err)
}

func TestRedisStore_Unreachable(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1}), "")
	defer func() { _ = s.Close() }()
	mr.Close()

	_, err := s.Load(ctx, testBids(1), IgnoreDuplicates)
	require.Error(t, err)
	_, err = s.List(ctx)
	require.Error(t, err)
	_, _, err = s.Find(ctx, 1)
	require.Error(t, err)
	_, err = s.Remove(ctx, 1)
	require.Error(t, err)
	_, err = s.Count(ctx)
	require.Error(t, err)
	require.Error(t, s.Clear(ctx))

	_, err = OpenRedisStore(ctx, RedisConfig{Addr: addr})
	require.Error(t, err)
}
