// Package tracker implements §4.D, the authoritative tracker state: the
// {pointer -> active record} map, the append-only history, and the running
// TrackingStatistics, guarded by a fixed lock order (active, then stats,
// then history) so no two operations can deadlock against each other.
package tracker

import (
	"sync"
	"sync/atomic"

	"github.com/orizon-lang/memscope/internal/intern"
	"github.com/orizon-lang/memscope/internal/obslog"
	"github.com/orizon-lang/memscope/internal/record"
	"github.com/orizon-lang/memscope/internal/tlocal"
	"github.com/orizon-lang/memscope/internal/trackerr"
)

// Tracker owns one thread's (or, in performance mode, the process') active
// map, history and statistics. All operations are fallible with explicit
// error kinds and never panic outward — an internal panic is converted to
// a ThreadSafetyError and poisons the affected lock for the rest of the
// process lifetime, matching §5's lock-poisoning policy.
type Tracker struct {
	activeMu sync.Mutex
	active   map[uintptr]*record.AllocationRecord

	statsMu sync.Mutex
	stats   record.TrackingStatistics

	historyMu sync.Mutex
	history   []record.AllocationRecord

	activePoisoned  atomic.Bool
	statsPoisoned   atomic.Bool
	historyPoisoned atomic.Bool

	Swallowed obslog.SwallowedCounter
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{active: make(map[uintptr]*record.AllocationRecord, 1024)}
}

func (t *Tracker) withActive(fn func() error) (err error) {
	if t.activePoisoned.Load() {
		return trackerr.New(trackerr.ThreadSafetyError, "active map lock is poisoned")
	}

	t.activeMu.Lock()
	defer t.activeMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			t.activePoisoned.Store(true)
			err = trackerr.New(trackerr.ThreadSafetyError, "panic while holding active lock: %v", r)
		}
	}()

	return fn()
}

func (t *Tracker) withStats(fn func()) (err error) {
	if t.statsPoisoned.Load() {
		return trackerr.New(trackerr.ThreadSafetyError, "stats lock is poisoned")
	}

	t.statsMu.Lock()
	defer t.statsMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			t.statsPoisoned.Store(true)
			err = trackerr.New(trackerr.ThreadSafetyError, "panic while holding stats lock: %v", r)
		}
	}()

	fn()

	return nil
}

func (t *Tracker) withHistory(fn func()) (err error) {
	if t.historyPoisoned.Load() {
		return trackerr.New(trackerr.ThreadSafetyError, "history lock is poisoned")
	}

	t.historyMu.Lock()
	defer t.historyMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			t.historyPoisoned.Store(true)
			err = trackerr.New(trackerr.ThreadSafetyError, "panic while holding history lock: %v", r)
		}
	}()

	fn()

	return nil
}

// TrackAllocation inserts a fresh record for ptr and bumps
// total_allocations, active_allocations, active_bytes and peak_bytes. A
// zero size is accepted and recorded as size 0 (§3 invariant).
func (t *Tracker) TrackAllocation(ptr uintptr, size uint64) error {
	rec := &record.AllocationRecord{
		Pointer:     ptr,
		AllocatedAt: tlocal.MonotonicNano(),
		SizeBytes:   size,
		ThreadLabel: intern.Intern(tlocal.Label(tlocal.ThreadID())),
	}

	if err := t.withActive(func() error {
		t.active[ptr] = rec

		return nil
	}); err != nil {
		return err
	}

	return t.withStats(func() {
		t.stats.TotalAllocations++
		t.stats.ActiveAllocations++
		t.stats.ActiveBytes += size
		if t.stats.ActiveBytes > t.stats.PeakBytes {
			t.stats.PeakBytes = t.stats.ActiveBytes
		}
	})
}

// AssociateVariable attaches an interned variable/type name to the active
// record for ptr. A missing pointer is a recoverable InvalidPointer error,
// never fatal (§4.D).
func (t *Tracker) AssociateVariable(ptr uintptr, name, typeName string) error {
	return t.withActive(func() error {
		rec, ok := t.active[ptr]
		if !ok {
			return trackerr.New(trackerr.InvalidPointer, "no active allocation at %#x", ptr).
				WithContext("pointer", ptr)
		}

		rec.VariableName = intern.InternOptional(name)
		rec.TypeName = intern.InternOptional(typeName)

		return nil
	})
}

// AssociateScope attaches an interned scope name to the active record for
// ptr. No other package in this module calls it; internal/scope keeps its
// variable membership in its own Info records.
func (t *Tracker) AssociateScope(ptr uintptr, scopeName string) error {
	return t.withActive(func() error {
		rec, ok := t.active[ptr]
		if !ok {
			return trackerr.New(trackerr.InvalidPointer, "no active allocation at %#x", ptr)
		}

		rec.ScopeName = intern.InternOptional(scopeName)

		return nil
	})
}

// TrackDeallocation removes ptr from the active map, timestamps and
// lifetimes the record, appends it to history, and decrements the active
// counters. A double free (deallocating an unknown pointer) is a
// recoverable InvalidPointer error that mutates no counter.
func (t *Tracker) TrackDeallocation(ptr uintptr) error {
	var completed record.AllocationRecord

	found := false

	err := t.withActive(func() error {
		rec, ok := t.active[ptr]
		if !ok {
			return trackerr.New(trackerr.InvalidPointer, "no active allocation at %#x", ptr).
				WithContext("pointer", ptr)
		}

		now := tlocal.MonotonicNano()
		rec.DeallocAt = now
		rec.HasDealloc = true

		if now >= rec.AllocatedAt {
			rec.LifetimeMs = uint64(now-rec.AllocatedAt) / 1_000_000
			rec.HasLifetime = true
		}

		delete(t.active, ptr)
		completed = rec.Clone()
		found = true

		return nil
	})
	if err != nil {
		return err
	}

	if !found {
		return nil
	}

	if err := t.withStats(func() {
		t.stats.TotalDeallocations++
		t.stats.ActiveAllocations--
		if completed.SizeBytes <= t.stats.ActiveBytes {
			t.stats.ActiveBytes -= completed.SizeBytes
		} else {
			t.stats.ActiveBytes = 0
		}
	}); err != nil {
		return err
	}

	return t.withHistory(func() {
		t.history = append(t.history, completed)
	})
}

// MarkLeaked sweeps the active map at shutdown, flagging every still-live
// record IsLeaked and moving it into history without a matching
// deallocation timestamp (§3: "is_leaked... set if still live at shutdown
// sweep").
func (t *Tracker) MarkLeaked() error {
	var leaked []record.AllocationRecord

	if err := t.withActive(func() error {
		for ptr, rec := range t.active {
			rec.IsLeaked = true
			leaked = append(leaked, rec.Clone())
			delete(t.active, ptr)
		}

		return nil
	}); err != nil {
		return err
	}

	if len(leaked) == 0 {
		return nil
	}

	return t.withHistory(func() {
		t.history = append(t.history, leaked...)
	})
}

// GetStats returns a snapshot clone of the running statistics.
func (t *Tracker) GetStats() (record.TrackingStatistics, error) {
	var snap record.TrackingStatistics

	err := t.withStats(func() {
		snap = t.stats
	})

	return snap, err
}

// GetActiveAllocations returns a snapshot clone of every currently active
// record.
func (t *Tracker) GetActiveAllocations() ([]record.AllocationRecord, error) {
	var out []record.AllocationRecord

	err := t.withActive(func() error {
		out = make([]record.AllocationRecord, 0, len(t.active))
		for _, rec := range t.active {
			out = append(out, rec.Clone())
		}

		return nil
	})

	return out, err
}

// GetHistory returns a snapshot clone of the completed-record history.
func (t *Tracker) GetHistory() ([]record.AllocationRecord, error) {
	var out []record.AllocationRecord

	err := t.withHistory(func() {
		out = make([]record.AllocationRecord, len(t.history))
		copy(out, t.history)
	})

	return out, err
}
