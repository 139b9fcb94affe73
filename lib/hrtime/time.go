//go:build !windows
// +build !windows

package hrtime

import (
	"time"

	"github.com/samber/lo"
	"golang.org/x/sys/unix"
)

// SysClock reads the CLOCK_MONOTONIC directly.
var SysClock Clock = newUnixClock()

type unixClock struct {
	startTs int64
}

func unixMonotonicNano() int64 {
	ts := unix.Timespec{}
	lo.Must0(unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts))
	return ts.Nano()
}

func newUnixClock() *unixClock {
	return &unixClock{startTs: unixMonotonicNano()}
}

func (c *unixClock) MonotonicElapsed() time.Duration {
	return time.Duration(unixMonotonicNano() - c.startTs)
}

func TimeResolution() time.Duration {
	res := unix.Timespec{}
	if err := unix.ClockGetres(unix.CLOCK_MONOTONIC, &res); err != nil {
		return time.Microsecond
	}
	return time.Duration(res.Nano())
}
