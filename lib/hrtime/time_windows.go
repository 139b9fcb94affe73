//go:build windows
// +build windows

// High-resolution time for Windows.
package hrtime

// References:
// https://github.com/golang/go/issues/31160
// https://learn.microsoft.com/en-us/windows/win32/sysinfo/acquiring-high-resolution-time-stamps

import (
	"errors"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	kernel32 = windows.NewLazyDLL("kernel32.dll")
	procQPF  = kernel32.NewProc("QueryPerformanceFrequency")
	procQPC  = kernel32.NewProc("QueryPerformanceCounter")
)

// BOOL QueryPerformanceFrequency([out] LARGE_INTEGER *lpFrequency);
func getFrequency() (int64, bool) {
	var freq int64
	r1, _, err := procQPF.Call(uintptr(unsafe.Pointer(&freq)))
	if err != nil && !errors.Is(err, windows.SEVERITY_SUCCESS) {
		return 0, false
	}
	return freq, r1 == 1
}

// BOOL QueryPerformanceCounter([out] LARGE_INTEGER *lpPerformanceCount);
// The counter may drift across cores on some old BIOS.
func getCounter() (int64, bool) {
	var counter int64
	r1, _, err := procQPC.Call(uintptr(unsafe.Pointer(&counter)))
	if err != nil && !errors.Is(err, windows.SEVERITY_SUCCESS) {
		return 0, false
	}
	return counter, r1 == 1
}

// SysClock is the performance counter, or the GoClock if the counter is
// unavailable.
var SysClock Clock = newQPCClock()

type qpcClock struct {
	freq    int64
	counter int64
}

func newQPCClock() Clock {
	freq, ok := getFrequency()
	if !ok || freq <= 0 {
		return GoClock
	}
	counter, ok := getCounter()
	if !ok {
		return GoClock
	}
	return &qpcClock{freq: freq, counter: counter}
}

func (c *qpcClock) MonotonicElapsed() time.Duration {
	counter, ok := getCounter()
	if !ok {
		return GoClock.MonotonicElapsed()
	}
	ticks := counter - c.counter
	// Split to avoid the overflow of ticks * 1e9.
	sec, rem := ticks/c.freq, ticks%c.freq
	return time.Duration(sec)*time.Second + time.Duration(rem*int64(time.Second)/c.freq)
}

func TimeResolution() time.Duration {
	if c, ok := SysClock.(*qpcClock); ok {
		return max(time.Second/time.Duration(c.freq), 1)
	}
	return time.Millisecond
}
