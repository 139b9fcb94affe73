package dlock

import (
	randv2 "math/rand/v2"
	"time"
)

type linearBackoff time.Duration

func (backoff linearBackoff) Next() time.Duration {
	return time.Duration(backoff)
}

func EndlessRetry(backoff time.Duration) RetryStrategy {
	return linearBackoff(backoff)
}

func NoRetry() RetryStrategy {
	return linearBackoff(0)
}

type limitedRetry struct {
	strategy RetryStrategy
	count    int64
	maxCount int64
}

func (retry *limitedRetry) Next() time.Duration {
	if retry.count >= retry.maxCount {
		return 0
	}
	retry.count++
	return retry.strategy.Next()
}

// LimitedRetry waits the same backoff, at most maxCount times.
func LimitedRetry(backoff time.Duration, maxCount int64) RetryStrategy {
	if backoff <= 0 || maxCount <= 0 {
		return NoRetry()
	}
	return &limitedRetry{
		strategy: linearBackoff(backoff),
		maxCount: maxCount,
	}
}

type exponentialBackoff struct {
	duration time.Duration
	factor   float64
	jitter   float64
	steps    int64
	cap      time.Duration
}

func (backoff *exponentialBackoff) Next() time.Duration {
	if backoff.steps < 1 {
		return 0
	}
	backoff.steps--
	duration := backoff.duration
	if backoff.factor > 0 {
		backoff.duration = time.Duration(float64(backoff.duration) * backoff.factor)
		if backoff.cap > 0 && backoff.duration > backoff.cap {
			backoff.duration = backoff.cap
		}
	}
	if backoff.jitter > 0 {
		duration += time.Duration(randv2.Float64() * backoff.jitter * float64(duration))
	}
	return duration
}

// ExponentialBackoffRetry multiplies the backoff by the factor after each
// step, up to the max backoff if it is positive. The jitter adds a random
// part of the backoff, 0.1 for at most 10%.
func ExponentialBackoffRetry(maxSteps int64, initBackoff, maxBackoff time.Duration, backoffFactor, jitter float64) RetryStrategy {
	return &exponentialBackoff{
		cap:      maxBackoff,
		duration: initBackoff,
		factor:   backoffFactor,
		jitter:   jitter,
		steps:    maxSteps,
	}
}

func DefaultExponentialBackoffRetry() RetryStrategy {
	return ExponentialBackoffRetry(
		8,
		10*time.Millisecond,
		500*time.Millisecond,
		2.0,
		0.1,
	)
}
