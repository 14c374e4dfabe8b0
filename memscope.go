// Package memscope wires the tracker core, dual dispatcher, scope tracker,
// lock-free sampling recorder and unsafe/FFI sub-tracker into the single
// Engine that implements §6's external interfaces: the producer API
// consumed by instrumentation macros and the allocator hook, and the
// consumer API used by exporters and tooling.
package memscope

import (
	"sync"
	"time"

	"github.com/orizon-lang/memscope/internal/dispatch"
	"github.com/orizon-lang/memscope/internal/export"
	"github.com/orizon-lang/memscope/internal/lockfree"
	"github.com/orizon-lang/memscope/internal/reentrancy"
	"github.com/orizon-lang/memscope/internal/record"
	"github.com/orizon-lang/memscope/internal/registry"
	"github.com/orizon-lang/memscope/internal/scope"
	"github.com/orizon-lang/memscope/internal/tlocal"
	"github.com/orizon-lang/memscope/internal/tracker"
	"github.com/orizon-lang/memscope/internal/trackerr"
	"github.com/orizon-lang/memscope/internal/unsafeffi"
)

// Config selects the Engine's dispatch mode and unsafe/FFI leak-sweep
// timeout. New starts from performance-singleton dispatch and a one-hour
// leak timeout for the unsafe/FFI sub-tracker, then applies its options.
type Config struct {
	Mode            dispatch.Mode
	UnsafeLeakAfter time.Duration
}

// Option configures an Engine at construction, matching the teacher's
// functional-options convention (internal/allocator.Option).
type Option func(*Config)

// WithMode selects performance-singleton or precision-per-thread dispatch
// (§4.E).
func WithMode(m dispatch.Mode) Option {
	return func(c *Config) { c.Mode = m }
}

// WithUnsafeLeakTimeout overrides how long an unfreed unsafe/FFI
// allocation may live before SweepUnsafeLeaks flags it.
func WithUnsafeLeakTimeout(d time.Duration) Option {
	return func(c *Config) { c.UnsafeLeakAfter = d }
}

// Engine is the single entry point a producer (instrumentation macros, the
// allocator hook) or a consumer (exporters, tooling) talks to.
type Engine struct {
	guard    *reentrancy.Guard
	registry *registry.Registry
	dispatch *dispatch.Dispatcher
	scopes   *scope.Tracker
	unsafe   *unsafeffi.Tracker

	recordersMu sync.Mutex
	recorders   map[uint64]*lockfree.Recorder
}

// New constructs an Engine. It starts in performance-singleton dispatch
// mode unless overridden by WithMode.
func New(opts ...Option) *Engine {
	cfg := Config{UnsafeLeakAfter: time.Hour}
	for _, opt := range opts {
		opt(&cfg)
	}

	reg := registry.New()
	d := dispatch.New(reg)
	d.SetMode(cfg.Mode)

	return &Engine{
		guard:     reentrancy.New(),
		registry:  reg,
		dispatch:  d,
		scopes:    scope.New(),
		unsafe:    unsafeffi.New(tlocal.MonotonicNano, cfg.UnsafeLeakAfter),
		recorders: make(map[uint64]*lockfree.Recorder),
	}
}

// --- Producer API (§6) ---

// TrackAllocation records a fresh allocation at ptr. Calls made while the
// calling thread is already inside the tracker (the reentrancy guard of
// §4.C) are neutralised and return nil without doing any work.
func (e *Engine) TrackAllocation(ptr uintptr, size uint64) error {
	var err error

	e.guard.Guarded(func() {
		err = e.dispatch.Tracker().TrackAllocation(ptr, size)
	})

	return err
}

// TrackDeallocation removes ptr from the active set and moves its
// completed record into history.
func (e *Engine) TrackDeallocation(ptr uintptr) error {
	var err error

	e.guard.Guarded(func() {
		err = e.dispatch.Tracker().TrackDeallocation(ptr)
	})

	return err
}

// AssociateVariable attaches a variable/type name to ptr's active record.
func (e *Engine) AssociateVariable(ptr uintptr, name, typeName string) error {
	var err error

	e.guard.Guarded(func() {
		err = e.dispatch.Tracker().AssociateVariable(ptr, name, typeName)
	})

	return err
}

// EnterScope opens a named scope on the calling thread (§4.G).
func (e *Engine) EnterScope(name string) scope.ID {
	return e.scopes.EnterScope(name)
}

// ExitScope closes a scope previously opened with EnterScope.
func (e *Engine) ExitScope(id scope.ID) error {
	return e.scopes.ExitScope(id)
}

// AssociateVariableToCurrentScope attaches a size-bearing variable to the
// calling thread's current scope.
func (e *Engine) AssociateVariableToCurrentScope(name string, size uint64) error {
	return e.scopes.AssociateVariable(name, size)
}

// InitThreadTracker starts the calling thread's lock-free sampling
// recorder (§4.H) writing into dir under cfg's sampling policy. It also
// preseeds the calling thread's reentrancy flag (§4.C), so the thread's
// first mutex-core TrackAllocation/TrackDeallocation call never pays the
// guard's one-time per-thread allocation on the guarded path.
func (e *Engine) InitThreadTracker(dir string, cfg lockfree.Config) error {
	tid := tlocal.ThreadID()

	e.guard.Preseed(tid)

	rec, err := lockfree.InitThreadTracker(dir, tid, cfg)
	if err != nil {
		return err
	}

	e.recordersMu.Lock()
	e.recorders[tid] = rec
	e.recordersMu.Unlock()

	return nil
}

func (e *Engine) recorderForCurrentThread() (*lockfree.Recorder, error) {
	tid := tlocal.ThreadID()

	e.recordersMu.Lock()
	rec, ok := e.recorders[tid]
	e.recordersMu.Unlock()

	if !ok {
		return nil, trackerr.New(trackerr.InternalError, "thread %d has no lock-free recorder; call InitThreadTracker first", tid)
	}

	return rec, nil
}

// TrackAllocationLockfree records a sampled allocation event on the
// calling thread's recorder.
func (e *Engine) TrackAllocationLockfree(ptr, size uint64, callStack []uint64) error {
	rec, err := e.recorderForCurrentThread()
	if err != nil {
		return err
	}

	return rec.TrackAllocationLockfree(ptr, size, callStack)
}

// TrackDeallocationLockfree records a sampled deallocation event on the
// calling thread's recorder.
func (e *Engine) TrackDeallocationLockfree(ptr uint64, callStack []uint64) error {
	rec, err := e.recorderForCurrentThread()
	if err != nil {
		return err
	}

	return rec.TrackDeallocationLockfree(ptr, callStack)
}

// FinalizeThreadTracker flushes and closes the calling thread's lock-free
// recorder.
func (e *Engine) FinalizeThreadTracker() error {
	tid := tlocal.ThreadID()

	e.recordersMu.Lock()
	rec, ok := e.recorders[tid]
	if ok {
		delete(e.recorders, tid)
	}
	e.recordersMu.Unlock()

	if !ok {
		return trackerr.New(trackerr.InternalError, "thread %d has no lock-free recorder to finalize", tid)
	}

	return rec.FinalizeThreadTracker()
}

// TrackUnsafeAllocation records an allocation's provenance at the
// unsafe/FFI boundary (§4.M).
func (e *Engine) TrackUnsafeAllocation(ptr uintptr, size uint64, source unsafeffi.SourceTag) {
	e.unsafe.TrackUnsafeAllocation(ptr, size, source)
}

// RecordBoundaryEvent records a crossing of the unsafe/FFI (or async
// task-suspend/resume) boundary.
func (e *Engine) RecordBoundaryEvent(ptr uintptr, dir unsafeffi.Direction, from, to string) {
	e.unsafe.RecordBoundaryEvent(ptr, dir, from, to)
}

// SweepUnsafeLeaks flags unsafe/FFI allocations that have outlived the
// configured leak timeout. It is ordinary maintenance, not part of the hot
// path; callers run it periodically or at shutdown.
func (e *Engine) SweepUnsafeLeaks() {
	e.unsafe.SweepLeaks()
}

// --- Consumer API (§6) ---

// GetStats returns the process-wide cumulative statistics: the global
// tracker's own stats in performance mode, or the sum across every live
// per-thread tracker in precision mode (§4.F unified aggregation).
func (e *Engine) GetStats() (record.TrackingStatistics, error) {
	return e.dispatch.GetStats()
}

// GetActiveAllocations returns a snapshot of every currently active record
// across every live tracker under the active dispatch mode.
func (e *Engine) GetActiveAllocations() ([]record.AllocationRecord, error) {
	return e.dispatch.GetActiveAllocations()
}

// GetHistory returns a snapshot of every completed record across every
// live tracker under the active dispatch mode.
func (e *Engine) GetHistory() ([]record.AllocationRecord, error) {
	return e.dispatch.GetHistory()
}

// exporter builds an export.Exporter over the engine's dispatcher — which
// itself satisfies export.Source by aggregating across every live tracker
// (§4.F) — and the unsafe/FFI sub-tracker.
func (e *Engine) exporter() *export.Exporter {
	return export.New(e.dispatch, e.unsafe)
}

// ExportBinary writes the engine's current snapshot as a single binary
// container (§3, §4.K).
func (e *Engine) ExportBinary(path string) error {
	return e.exporter().ExportBinary(path)
}

// ExportAnalysisBundles writes the five JSON bundles of §4.L under
// "<baseName>.<bundle>.json".
func (e *Engine) ExportAnalysisBundles(baseName string) (export.Result, error) {
	return e.exporter().ExportAnalysisBundles(baseName)
}

// ReadBinary reads a previously exported binary container (§4.K).
func ReadBinary(path string) ([]record.AllocationRecord, error) {
	return export.ReadBinary(path)
}
