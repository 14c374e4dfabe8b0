// Package registry implements §4.F: a global table of weak references to
// every per-thread tracker ever created, used to aggregate precision-mode
// trackers without keeping any of them alive past their owning thread.
package registry

import (
	"sync"
	"weak"

	"github.com/orizon-lang/memscope/internal/tracker"
)

// Registry is write-synchronized (registrations happen once per thread,
// not on the hot path); reads during aggregation take a snapshot copy of
// the underlying map before upgrading weak references, so CollectLive
// never holds the lock while calling out to the tracker it resolves.
type Registry struct {
	mu      sync.Mutex
	entries map[uint64]weak.Pointer[tracker.Tracker]
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[uint64]weak.Pointer[tracker.Tracker])}
}

// Register records a weak reference to t for threadID. Called once per
// thread on first access to a precision-mode tracker.
func (r *Registry) Register(threadID uint64, t *tracker.Tracker) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[threadID] = weak.Make(t)
}

// CollectLive upgrades every weak reference, returning the trackers still
// alive and dropping entries whose owning thread has exited and released
// its tracker.
func (r *Registry) CollectLive() []*tracker.Tracker {
	r.mu.Lock()
	snapshot := make(map[uint64]weak.Pointer[tracker.Tracker], len(r.entries))

	for id, ref := range r.entries {
		snapshot[id] = ref
	}
	r.mu.Unlock()

	live := make([]*tracker.Tracker, 0, len(snapshot))
	dead := make([]uint64, 0)

	for id, ref := range snapshot {
		if t := ref.Value(); t != nil {
			live = append(live, t)
		} else {
			dead = append(dead, id)
		}
	}

	if len(dead) > 0 {
		r.mu.Lock()
		for _, id := range dead {
			delete(r.entries, id)
		}
		r.mu.Unlock()
	}

	return live
}

// Stats counts live vs dead weak references without removing the dead
// ones, for diagnostics.
func (r *Registry) Stats() (live, dead int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range r.entries {
		if ref.Value() != nil {
			live++
		} else {
			dead++
		}
	}

	return live, dead
}

// Cleanup removes every currently-dead entry on demand.
func (r *Registry) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, ref := range r.entries {
		if ref.Value() == nil {
			delete(r.entries, id)
		}
	}
}

// Len returns the total number of registered entries, live or dead.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}
