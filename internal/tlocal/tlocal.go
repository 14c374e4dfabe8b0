// Package tlocal gives the tracker core a stable "thread" identity and a
// monotonic nanosecond clock, the two platform-dependent primitives the
// specification leaves to the implementer (§9, "Clock source... platform
// details are left to the implementer").
//
// Go has no native thread-local storage: goroutines are scheduled M:N onto
// OS threads and may migrate between calls. The tracker core treats the
// calling OS thread (via the platform's gettid-equivalent) as the
// "thread" the spec refers to, which is exact for the reentrancy guard and
// the lock-free recorder's per-thread files (both operate within a single
// call that does not yield), and an approximation for longer-lived
// "precision mode" trackers obtained through runtime.LockOSThread by the
// caller — documented, not silently hidden.
package tlocal

import "strconv"

// Label renders a thread id the way AllocationRecord.thread_label expects:
// a short, interner-friendly string.
func Label(id uint64) string {
	return "thread-" + strconv.FormatUint(id, 10)
}
