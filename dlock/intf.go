package dlock

import (
	"context"
	"time"
)

// DLocker is the lock shared by the processes over a remote store. Each
// locker holds one token, a second Lock with the same locker extends it.
type DLocker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
	Renewal(ctx context.Context, newTTL time.Duration) error
	TTL(ctx context.Context) (time.Duration, error)
}

// RetryStrategy returns the wait before the next attempt, zero stops the
// retry. It is stateful, a new one is needed for every Lock.
type RetryStrategy interface {
	Next() time.Duration
}

type DLockErr string

const (
	ErrDLockAcquireFailed DLockErr = "failed to acquire dlock"
	ErrDLockNotHeld       DLockErr = "dlock is not held"
)

func (err DLockErr) Error() string {
	return string(err)
}
