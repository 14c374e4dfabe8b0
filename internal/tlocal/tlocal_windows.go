//go:build windows

package tlocal

import (
	"time"

	"golang.org/x/sys/windows"
)

// ThreadID returns the calling OS thread's id.
func ThreadID() uint64 {
	return uint64(windows.GetCurrentThreadId())
}

// processStart anchors MonotonicNano.
var processStart = time.Now()

// MonotonicNano returns a monotonic nanosecond timestamp, counted from
// package initialisation. Windows' QueryPerformanceCounter path is not
// wired here to keep this file small; time.Since uses the monotonic clock
// reading that time.Now records, which wall-clock adjustments do not move.
func MonotonicNano() int64 {
	return int64(time.Since(processStart))
}
