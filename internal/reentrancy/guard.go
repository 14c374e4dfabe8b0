// Package reentrancy implements §4.C: a per-thread "currently tracking"
// flag that makes it safe to call into the tracker core from inside a
// global allocator hook. Entering sets the flag; while set, every tracker
// operation on that thread must return immediately without allocating.
package reentrancy

import (
	"sync/atomic"

	"github.com/orizon-lang/memscope/internal/concurrent"
	"github.com/orizon-lang/memscope/internal/tlocal"
)

// Guard holds one flag per thread. A thread's flag is allocated exactly
// once over its lifetime; every Enter/Exit/Active after that first touch
// is a lock-free lookup plus a single CAS, with no further allocation.
// That first-touch allocation still happens inline on whichever call
// reaches the thread first — ordinarily the thread's first Enter, which
// means its first guarded tracker call. A caller that knows a thread's id
// ahead of time (e.g. at thread creation, before the thread ever reaches
// an allocator hook) can call Preseed there instead, moving the one-time
// allocation off the guarded path entirely.
type Guard struct {
	flags *concurrent.Map[uint64, *atomic.Bool]
}

// New creates an empty Guard.
func New() *Guard {
	return &Guard{flags: concurrent.NewUint64Map[*atomic.Bool](64)}
}

// Preseed allocates tid's flag, if it doesn't already exist, without
// affecting its value. Calling this before a thread's first Enter removes
// that first call's allocation from the guarded path.
func (g *Guard) Preseed(tid uint64) {
	if _, ok := g.flags.Load(tid); ok {
		return
	}

	g.flags.LoadOrStore(tid, new(atomic.Bool))
}

func (g *Guard) flagFor(tid uint64) *atomic.Bool {
	if f, ok := g.flags.Load(tid); ok {
		return f
	}

	f, _ := g.flags.LoadOrStore(tid, new(atomic.Bool))

	return f
}

// Enter marks the calling thread as inside the tracker. It returns false
// if the thread was already inside (a reentrant call, typically the
// tracker's own bookkeeping triggering the allocator hook again), in which
// case the caller must do nothing further and not call Exit.
func (g *Guard) Enter() bool {
	return g.flagFor(tlocal.ThreadID()).CompareAndSwap(false, true)
}

// Exit clears the calling thread's flag. It must only be called after a
// successful Enter on the same thread.
func (g *Guard) Exit() {
	g.flagFor(tlocal.ThreadID()).Store(false)
}

// Active reports whether the calling thread currently holds the guard,
// without acquiring it. Useful for read-only fast paths that want to skip
// work entirely rather than take the flag.
func (g *Guard) Active() bool {
	return g.flagFor(tlocal.ThreadID()).Load()
}

// Guarded runs fn only if Enter succeeds, clearing the flag afterward
// regardless of panic. It returns false if fn was skipped due to
// reentrancy.
func (g *Guard) Guarded(fn func()) (ran bool) {
	if !g.Enter() {
		return false
	}

	defer g.Exit()
	fn()

	return true
}
