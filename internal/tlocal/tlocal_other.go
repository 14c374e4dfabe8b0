//go:build !linux && !darwin && !windows

package tlocal

import (
	"bytes"
	"runtime"
	"strconv"
	"time"
)

// ThreadID falls back to the calling goroutine's id on platforms without a
// wired gettid-equivalent. It is stable across calls from the same
// goroutine but, unlike a real OS thread id, follows the goroutine rather
// than the M it happens to run on.
func ThreadID() uint64 {
	var buf [64]byte

	n := runtime.Stack(buf[:], false)
	field := bytes.Fields(buf[:n])
	if len(field) < 2 {
		return 0
	}

	id, err := strconv.ParseUint(string(field[1]), 10, 64)
	if err != nil {
		return 0
	}

	return id
}

// processStart anchors MonotonicNano.
var processStart = time.Now()

// MonotonicNano returns a monotonic nanosecond timestamp, counted from
// package initialisation; time.Since uses the monotonic clock reading that
// time.Now records, which wall-clock adjustments do not move.
func MonotonicNano() int64 {
	return int64(time.Since(processStart))
}
