package dlock

// References:
// https://github.com/bsm/redislock
// https://redis.io/docs/latest/develop/use/patterns/distributed-locks/

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/benz9527/bidtree/lib/infra"
)

var (
	// Sets the key if absent, or extends it if the token already holds it.
	luaDLockAcquire = redis.NewScript(`
if redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
	return 1
end
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
	return 1
end
return 0
`)
	luaDLockRelease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
	luaDLockRenewalTTL = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)
	luaDLockLoadTTL = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PTTL", KEYS[1])
end
return -3
`)
)

const randomTokenLength = 16

func randomToken() (string, error) {
	buf := make([]byte, randomTokenLength)
	if _, err := crand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

var _ DLocker = (*redisDLock)(nil)

type redisDLock struct {
	scripter redis.Scripter
	retry    func() RetryStrategy
	key      string
	token    string
	ttl      time.Duration
	locked   atomic.Bool
}

func (dl *redisDLock) Lock(ctx context.Context) error {
	var (
		retry = dl.retry()
		timer *time.Timer
	)
	for {
		res, err := luaDLockAcquire.Run(ctx, dl.scripter, []string{dl.key}, dl.token, dl.ttl.Milliseconds()).Int64()
		if err != nil {
			return infra.WrapErrorStackWithMessage(err, "redis dlock acquire "+dl.key)
		}
		if res == 1 {
			dl.locked.Store(true)
			return nil
		}

		backoff := retry.Next()
		if backoff <= 0 {
			return infra.WrapErrorStackWithMessage(ErrDLockAcquireFailed, "redis dlock "+dl.key+" is held by the other")
		}
		if timer == nil {
			timer = time.NewTimer(backoff)
			defer timer.Stop()
		} else {
			timer.Reset(backoff)
		}
		select {
		case <-ctx.Done():
			return infra.WrapErrorStack(ctx.Err())
		case <-timer.C:
		}
	}
}

func (dl *redisDLock) Renewal(ctx context.Context, newTTL time.Duration) error {
	if newTTL.Milliseconds() <= 0 {
		return infra.NewErrorStack("renewal dlock with zero ms TTL")
	}
	if !dl.locked.Load() {
		return infra.WrapErrorStackWithMessage(ErrDLockNotHeld, "renewal dlock with no lock")
	}
	res, err := luaDLockRenewalTTL.Run(ctx, dl.scripter, []string{dl.key}, dl.token, newTTL.Milliseconds()).Int64()
	if err != nil {
		return infra.WrapErrorStackWithMessage(err, "redis dlock renewal "+dl.key)
	}
	if res == 0 {
		dl.locked.Store(false)
		return infra.WrapErrorStackWithMessage(ErrDLockNotHeld, "redis dlock "+dl.key+" expired")
	}
	return nil
}

func (dl *redisDLock) TTL(ctx context.Context) (time.Duration, error) {
	if !dl.locked.Load() {
		return 0, infra.WrapErrorStackWithMessage(ErrDLockNotHeld, "fetch dlock ttl failed")
	}
	res, err := luaDLockLoadTTL.Run(ctx, dl.scripter, []string{dl.key}, dl.token).Int64()
	if err != nil {
		return 0, infra.WrapErrorStackWithMessage(err, "redis dlock ttl "+dl.key)
	}
	if res < 0 {
		// -3 for the other token, -2 for the expired key.
		dl.locked.Store(false)
		return 0, infra.WrapErrorStackWithMessage(ErrDLockNotHeld, "redis dlock "+dl.key+" expired")
	}
	return time.Duration(res) * time.Millisecond, nil
}

// Unlock never deletes the key which has been taken by the other token after
// this one expired.
func (dl *redisDLock) Unlock(ctx context.Context) error {
	if !dl.locked.Swap(false) {
		return infra.WrapErrorStackWithMessage(ErrDLockNotHeld, "attempt to unlock a no held dlock")
	}
	res, err := luaDLockRelease.Run(ctx, dl.scripter, []string{dl.key}, dl.token).Int64()
	if err != nil {
		return infra.WrapErrorStackWithMessage(err, "redis dlock release "+dl.key)
	}
	if res == 0 {
		return infra.WrapErrorStackWithMessage(ErrDLockNotHeld, "redis dlock "+dl.key+" expired before unlock")
	}
	return nil
}

type redisDLockOptions struct {
	retry func() RetryStrategy
	token string
	ttl   time.Duration
}

type RedisDLockOption func(opt *redisDLockOptions)

func WithRedisDLockTTL(ttl time.Duration) RedisDLockOption {
	return func(opt *redisDLockOptions) {
		opt.ttl = ttl
	}
}

// WithRedisDLockToken prefixes the random token, the owner is readable in
// the key value.
func WithRedisDLockToken(token string) RedisDLockOption {
	return func(opt *redisDLockOptions) {
		opt.token = token
	}
}

// WithRedisDLockRetry builds a new strategy for each Lock.
func WithRedisDLockRetry(strategy func() RetryStrategy) RedisDLockOption {
	return func(opt *redisDLockOptions) {
		opt.retry = strategy
	}
}

func RedisDLock(scripter redis.Scripter, key string, opts ...RedisDLockOption) (DLocker, error) {
	if scripter == nil {
		return nil, infra.NewErrorStack("redis dlock scripter is nil")
	}
	if key == "" {
		return nil, infra.NewErrorStack("redis dlock with empty key")
	}
	o := &redisDLockOptions{retry: NoRetry}
	for _, opt := range opts {
		opt(o)
	}
	if o.ttl.Milliseconds() <= 0 {
		return nil, infra.NewErrorStack("redis dlock with zero ms TTL")
	}
	token, err := randomToken()
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "redis dlock token")
	}
	if o.token != "" {
		token = o.token + "&" + token
	}
	return &redisDLock{
		scripter: scripter,
		retry:    o.retry,
		key:      key,
		token:    token,
		ttl:      o.ttl,
	}, nil
}
