// Package unsafeffi implements §4.M: a parallel, pointer-keyed store that
// tracks allocation provenance across the unsafe/FFI boundary and the
// safety violations that provenance makes it possible to detect. It is
// lock-separated from internal/tracker and never interrupts the producer —
// violations are recorded as data, never surfaced as errors.
package unsafeffi

import (
	"sync"
	"time"

	"github.com/orizon-lang/memscope/internal/intern"
)

// SourceTag classifies where a tracked pointer's allocation originated.
type SourceTag int

const (
	SourceSafe SourceTag = iota
	SourceUnsafeBlock
	SourceFFILibraryFunction
)

func (s SourceTag) String() string {
	switch s {
	case SourceSafe:
		return "safe"
	case SourceUnsafeBlock:
		return "unsafe-block"
	case SourceFFILibraryFunction:
		return "ffi-library-function"
	default:
		return "unknown"
	}
}

// Direction describes which way a value crossed a tracked boundary.
type Direction int

const (
	DirectionIntoUnsafe Direction = iota
	DirectionOutOfUnsafe
	DirectionTaskSuspend // async-boundary supplement: a task handed control back to the scheduler
	DirectionTaskResume  // async-boundary supplement: a task resumed after a suspend
)

func (d Direction) String() string {
	switch d {
	case DirectionIntoUnsafe:
		return "into-unsafe"
	case DirectionOutOfUnsafe:
		return "out-of-unsafe"
	case DirectionTaskSuspend:
		return "task-suspend"
	case DirectionTaskResume:
		return "task-resume"
	default:
		return "unknown"
	}
}

// BoundaryEvent is one crossing of a tracked boundary.
type BoundaryEvent struct {
	Pointer       uintptr
	Direction     Direction
	Source        intern.Handle
	Sink          intern.Handle
	TimestampNano int64
}

// ViolationKind names a detected safety violation. These are data, never
// errors — §4.M's failure semantics are explicit that the sub-tracker must
// never interrupt the producer.
type ViolationKind int

const (
	ViolationDoubleFree ViolationKind = iota
	ViolationLeakByTimeout
	ViolationInvalidFree
)

func (v ViolationKind) String() string {
	switch v {
	case ViolationDoubleFree:
		return "double-free"
	case ViolationLeakByTimeout:
		return "leak-by-timeout"
	case ViolationInvalidFree:
		return "invalid-free"
	default:
		return "unknown"
	}
}

// Violation is a recorded safety violation.
type Violation struct {
	Pointer       uintptr
	Kind          ViolationKind
	TimestampNano int64
	Detail        string
}

// entry is the per-pointer record the sub-tracker maintains.
type entry struct {
	source      SourceTag
	size        uint64
	allocated   int64
	freed       bool
	freedAtNs   int64
	doubleFrees int // count of TrackFree calls on this pointer after the first
}

// Tracker is the unsafe/FFI sub-tracker of §4.M. Its three pieces of state
// (allocations, boundary events, violations) are guarded by independent
// mutexes so a long scan of one does not stall producers touching another.
type Tracker struct {
	allocMu sync.Mutex
	alloc   map[uintptr]*entry

	boundaryMu sync.Mutex
	boundary   []BoundaryEvent

	violationMu sync.Mutex
	violations  []Violation

	leakTimeout time.Duration
	clock       func() int64
}

// New constructs a Tracker. clock supplies monotonic nanoseconds (normally
// tlocal.MonotonicNano); leakTimeout is the age past which a still-live
// unsafe allocation is flagged as a leak candidate during a Sweep.
func New(clock func() int64, leakTimeout time.Duration) *Tracker {
	return &Tracker{
		alloc:       make(map[uintptr]*entry),
		clock:       clock,
		leakTimeout: leakTimeout,
	}
}

// TrackUnsafeAllocation records a pointer's provenance at the unsafe/FFI
// boundary (§6: track_unsafe_allocation).
func (t *Tracker) TrackUnsafeAllocation(ptr uintptr, size uint64, source SourceTag) {
	t.allocMu.Lock()
	defer t.allocMu.Unlock()

	t.alloc[ptr] = &entry{
		source:    source,
		size:      size,
		allocated: t.clock(),
	}
}

// TrackFree records that ptr was released. A pointer freed twice, or one
// never allocated through this sub-tracker, is recorded as a violation
// rather than returned as an error.
func (t *Tracker) TrackFree(ptr uintptr) {
	now := t.clock()

	t.allocMu.Lock()
	e, ok := t.alloc[ptr]

	if !ok {
		t.allocMu.Unlock()
		t.recordViolation(Violation{Pointer: ptr, Kind: ViolationInvalidFree, TimestampNano: now, Detail: "free of untracked pointer"})

		return
	}

	if e.freed {
		e.doubleFrees++
		t.allocMu.Unlock()
		t.recordViolation(Violation{Pointer: ptr, Kind: ViolationDoubleFree, TimestampNano: now, Detail: "pointer freed more than once"})

		return
	}

	e.freed = true
	e.freedAtNs = now
	t.allocMu.Unlock()
}

// RecordBoundaryEvent records a crossing of the unsafe/FFI boundary, or of
// an async task's suspend/resume boundary (§6: record_boundary_event, and
// the async-boundary supplement described in the aggregate spec).
func (t *Tracker) RecordBoundaryEvent(ptr uintptr, dir Direction, source, sink string) {
	ev := BoundaryEvent{
		Pointer:       ptr,
		Direction:     dir,
		Source:        intern.InternOptional(source),
		Sink:          intern.InternOptional(sink),
		TimestampNano: t.clock(),
	}

	t.boundaryMu.Lock()
	t.boundary = append(t.boundary, ev)
	t.boundaryMu.Unlock()
}

func (t *Tracker) recordViolation(v Violation) {
	t.violationMu.Lock()
	t.violations = append(t.violations, v)
	t.violationMu.Unlock()
}

// SweepLeaks scans every still-live unsafe/FFI allocation and records a
// leak-by-timeout violation for any older than the configured leakTimeout.
// It is not idempotent: each call re-records a violation for a pointer
// that remains unfreed across multiple sweeps — callers that want
// one violation per pointer should track which pointers they have already
// seen.
func (t *Tracker) SweepLeaks() {
	now := t.clock()
	cutoff := now - t.leakTimeout.Nanoseconds()

	var flagged []uintptr

	t.allocMu.Lock()
	for ptr, e := range t.alloc {
		if !e.freed && e.allocated < cutoff {
			flagged = append(flagged, ptr)
		}
	}
	t.allocMu.Unlock()

	for _, ptr := range flagged {
		t.recordViolation(Violation{Pointer: ptr, Kind: ViolationLeakByTimeout, TimestampNano: now, Detail: "unsafe/FFI allocation exceeded leak timeout"})
	}
}

// Snapshot is the queryable view of the sub-tracker's state, taken for
// export (§4.L folds this in as the unsafe/FFI bundle).
type Snapshot struct {
	Allocations map[uintptr]AllocationInfo
	Boundary    []BoundaryEvent
	Violations  []Violation
}

// AllocationInfo is the exported view of one tracked pointer.
type AllocationInfo struct {
	Source    SourceTag
	Size      uint64
	Allocated int64
	Freed     bool
	FreedAtNs int64
	// DoubleFrees counts TrackFree calls on this pointer after the first;
	// each one also records a ViolationDoubleFree. Zero for a pointer freed
	// at most once.
	DoubleFrees int
}

// Snapshot clones the sub-tracker's state under its three independent
// locks, never holding more than one at a time.
func (t *Tracker) Snapshot() Snapshot {
	t.allocMu.Lock()
	allocCopy := make(map[uintptr]AllocationInfo, len(t.alloc))

	for ptr, e := range t.alloc {
		allocCopy[ptr] = AllocationInfo{
			Source:      e.source,
			Size:        e.size,
			Allocated:   e.allocated,
			Freed:       e.freed,
			FreedAtNs:   e.freedAtNs,
			DoubleFrees: e.doubleFrees,
		}
	}
	t.allocMu.Unlock()

	t.boundaryMu.Lock()
	boundaryCopy := make([]BoundaryEvent, len(t.boundary))
	copy(boundaryCopy, t.boundary)
	t.boundaryMu.Unlock()

	t.violationMu.Lock()
	violationsCopy := make([]Violation, len(t.violations))
	copy(violationsCopy, t.violations)
	t.violationMu.Unlock()

	return Snapshot{Allocations: allocCopy, Boundary: boundaryCopy, Violations: violationsCopy}
}
