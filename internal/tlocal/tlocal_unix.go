//go:build linux || darwin

package tlocal

import (
	"time"

	"golang.org/x/sys/unix"
)

// ThreadID returns the calling OS thread's id.
func ThreadID() uint64 {
	return uint64(unix.Gettid())
}

// MonotonicNano returns a monotonic nanosecond timestamp sourced from
// CLOCK_MONOTONIC, independent of wall-clock adjustments.
func MonotonicNano() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return time.Now().UnixNano()
	}

	return ts.Nano()
}
