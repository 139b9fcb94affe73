package hrtime

import "time"

// Clock reads a monotonic counter which starts at the process start. The wall
// clock is never involved, so an NTP step does not skew the elapsed time.
type Clock interface {
	MonotonicElapsed() time.Duration
}

// GoClock is backed by the monotonic reading of the Go runtime.
var GoClock Clock = goClock{start: time.Now()}

type goClock struct {
	start time.Time
}

func (c goClock) MonotonicElapsed() time.Duration {
	return time.Since(c.start)
}

// Stopwatch measures a single operation, like a bids load or a search.
type Stopwatch struct {
	clock Clock
	begin time.Duration
}

// StartStopwatch uses the SysClock if the clock is nil.
func StartStopwatch(clock Clock) Stopwatch {
	if clock == nil {
		clock = SysClock
	}
	return Stopwatch{clock: clock, begin: clock.MonotonicElapsed()}
}

func (sw Stopwatch) Elapsed() time.Duration {
	if sw.clock == nil {
		return 0
	}
	return max(sw.clock.MonotonicElapsed()-sw.begin, 0)
}
