// Package scope implements §4.G: a per-thread stack of named scopes plus a
// process-wide map from scope id to ScopeInfo. Enter/exit are O(1);
// exiting pops the thread's stack and marks the scope's Info ended with its
// end timestamp filled in. Ended scopes stay in the same map as open ones;
// there is no separate completed list. The RAII-style Guard makes a
// missed exit under panic or early return impossible to leave unbalanced.
package scope

import (
	"sync"
	"sync/atomic"

	"github.com/orizon-lang/memscope/internal/tlocal"
	"github.com/orizon-lang/memscope/internal/trackerr"
)

// ID identifies one scope instance; ids are never reused.
type ID uint64

// Info is a scope's accounting record: its name, parent, depth,
// lifetime timestamps, contained variables and memory sums (§3).
type Info struct {
	Name        string
	Parent      string
	Depth       int
	StartedAt   int64
	EndedAt     int64
	Ended       bool
	Variables   []string
	MemoryUsage uint64
	PeakMemory  uint64
	AllocCount  uint64
}

// Tracker owns every thread's scope stack and the shared scope-id -> Info
// map.
type Tracker struct {
	mu      sync.Mutex
	stacks  map[uint64][]ID
	scopes  map[ID]*Info
	nextID  atomic.Uint64
}

// New creates an empty scope Tracker.
func New() *Tracker {
	return &Tracker{
		stacks: make(map[uint64][]ID),
		scopes: make(map[ID]*Info),
	}
}

// EnterScope pushes a new named scope onto the calling thread's stack and
// returns its id.
func (t *Tracker) EnterScope(name string) ID {
	tid := tlocal.ThreadID()
	id := ID(t.nextID.Add(1))

	t.mu.Lock()
	defer t.mu.Unlock()

	stack := t.stacks[tid]
	parent := ""
	depth := 0

	if len(stack) > 0 {
		parentInfo := t.scopes[stack[len(stack)-1]]
		if parentInfo != nil {
			parent = parentInfo.Name
			depth = parentInfo.Depth + 1
		}
	}

	t.scopes[id] = &Info{
		Name:      name,
		Parent:    parent,
		Depth:     depth,
		StartedAt: tlocal.MonotonicNano(),
	}
	t.stacks[tid] = append(stack, id)

	return id
}

// ExitScope pops id off the calling thread's stack and marks it complete.
// Exiting a scope that is not the top of the calling thread's stack is an
// InternalError: scopes nest and must unwind in order.
func (t *Tracker) ExitScope(id ID) error {
	tid := tlocal.ThreadID()

	t.mu.Lock()
	defer t.mu.Unlock()

	stack := t.stacks[tid]
	if len(stack) == 0 || stack[len(stack)-1] != id {
		return trackerr.New(trackerr.InternalError, "scope %d is not the top of thread %d's stack", id, tid)
	}

	info, ok := t.scopes[id]
	if !ok {
		return trackerr.New(trackerr.InvalidPointer, "unknown scope id %d", id)
	}

	info.EndedAt = tlocal.MonotonicNano()
	info.Ended = true
	t.stacks[tid] = stack[:len(stack)-1]

	return nil
}

// currentLocked returns the Info for the top of the calling thread's
// stack. Caller must hold t.mu.
func (t *Tracker) currentLocked(tid uint64) *Info {
	stack := t.stacks[tid]
	if len(stack) == 0 {
		return nil
	}

	return t.scopes[stack[len(stack)-1]]
}

// AssociateVariable records a size-bearing variable against the calling
// thread's current scope, bumping memory_usage/peak_memory/alloc_count and
// appending the name to the scope's variable list (§4.G).
func (t *Tracker) AssociateVariable(name string, size uint64) error {
	tid := tlocal.ThreadID()

	t.mu.Lock()
	defer t.mu.Unlock()

	info := t.currentLocked(tid)
	if info == nil {
		return trackerr.New(trackerr.InvalidPointer, "thread %d has no open scope", tid)
	}

	info.Variables = append(info.Variables, name)
	info.MemoryUsage += size
	info.AllocCount++

	if info.MemoryUsage > info.PeakMemory {
		info.PeakMemory = info.MemoryUsage
	}

	return nil
}

// Current returns the id and Info of the calling thread's current scope.
func (t *Tracker) Current() (ID, *Info, bool) {
	tid := tlocal.ThreadID()

	t.mu.Lock()
	defer t.mu.Unlock()

	stack := t.stacks[tid]
	if len(stack) == 0 {
		return 0, nil, false
	}

	id := stack[len(stack)-1]
	infoCopy := *t.scopes[id]

	return id, &infoCopy, true
}

// Snapshot returns a copy of every scope, completed or not.
func (t *Tracker) Snapshot() map[ID]Info {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[ID]Info, len(t.scopes))
	for id, info := range t.scopes {
		out[id] = *info
	}

	return out
}

// Guard is the RAII-style handle returned by Enter: closing it (typically
// via defer) exits the scope exactly once, so an early return or panic
// between Enter and the matching exit can never leave the stack
// unbalanced.
type Guard struct {
	tracker *Tracker
	id      ID
	closed  atomic.Bool
}

// Enter opens a named scope and returns a Guard; callers should
// `defer guard.Close()` immediately.
func Enter(t *Tracker, name string) *Guard {
	return &Guard{tracker: t, id: t.EnterScope(name)}
}

// ID returns the scope id this guard owns.
func (g *Guard) ID() ID { return g.id }

// Close exits the scope. It is idempotent: a second Close is a no-op.
func (g *Guard) Close() error {
	if g.closed.Swap(true) {
		return nil
	}

	return g.tracker.ExitScope(g.id)
}
