// Package dispatch implements §4.E, the dual dispatcher: at any instant
// the process is in either performance mode (one shared tracker, lower
// memory, contended mutex) or precision mode (one tracker per producer
// thread, near-zero contention, higher aggregate memory). The mode is
// switchable at runtime; trackers already handed out keep serving their
// existing records regardless of a later switch.
package dispatch

import (
	"sync/atomic"

	"github.com/orizon-lang/memscope/internal/concurrent"
	"github.com/orizon-lang/memscope/internal/record"
	"github.com/orizon-lang/memscope/internal/registry"
	"github.com/orizon-lang/memscope/internal/tlocal"
	"github.com/orizon-lang/memscope/internal/tracker"
)

// Mode selects the dispatch strategy.
type Mode int32

const (
	PerformanceSingleton Mode = iota
	PrecisionPerThread
)

// Dispatcher routes each call site to the tracker it should use.
type Dispatcher struct {
	mode      atomic.Int32
	global    *tracker.Tracker
	perThread *concurrent.Map[uint64, *tracker.Tracker]
	reg       *registry.Registry
}

// New creates a Dispatcher in performance mode, backed by reg for
// precision-mode thread registration.
func New(reg *registry.Registry) *Dispatcher {
	d := &Dispatcher{
		global:    tracker.New(),
		perThread: concurrent.NewUint64Map[*tracker.Tracker](256),
		reg:       reg,
	}
	d.mode.Store(int32(PerformanceSingleton))

	return d
}

// SetMode switches the dispatch strategy for future calls.
func (d *Dispatcher) SetMode(m Mode) { d.mode.Store(int32(m)) }

// CurrentMode reports the active strategy.
func (d *Dispatcher) CurrentMode() Mode { return Mode(d.mode.Load()) }

// Tracker returns the tracker the calling thread should use right now. In
// precision mode, the first call on a given thread lazily constructs that
// thread's tracker and registers a weak reference with the registry.
func (d *Dispatcher) Tracker() *tracker.Tracker {
	if d.CurrentMode() == PerformanceSingleton {
		return d.global
	}

	tid := tlocal.ThreadID()

	if t, ok := d.perThread.Load(tid); ok {
		return t
	}

	fresh := tracker.New()
	actual, loaded := d.perThread.LoadOrStore(tid, fresh)

	if !loaded && d.reg != nil {
		d.reg.Register(tid, actual)
	}

	return actual
}

// Global returns the single process-wide tracker used by performance mode,
// regardless of the currently active mode. Export paths use this to reach
// the performance-mode data even while precision mode is active for new
// allocations.
func (d *Dispatcher) Global() *tracker.Tracker { return d.global }

// LiveTrackers returns every tracker that should be folded into the
// process-wide view (§4.F, "Unified aggregation ... produces the
// process-wide view needed by exporters in precision mode"): the single
// shared tracker in performance mode, or every still-live per-thread
// tracker in precision mode, resolved through the registry's weak
// references.
func (d *Dispatcher) LiveTrackers() []*tracker.Tracker {
	if d.CurrentMode() == PerformanceSingleton {
		return []*tracker.Tracker{d.global}
	}

	if d.reg == nil {
		return nil
	}

	return d.reg.CollectLive()
}

// GetStats sums TrackingStatistics across every live tracker (§4.F). In
// performance mode this is just the global tracker's own stats; in
// precision mode it is the process-wide total across every thread that is
// still registered. PeakBytes is summed rather than maxed: without a
// shared counter, per-thread peaks are the closest approximation of a
// process-wide peak precision mode can offer, and summing never
// under-reports it.
func (d *Dispatcher) GetStats() (record.TrackingStatistics, error) {
	var out record.TrackingStatistics

	for _, t := range d.LiveTrackers() {
		s, err := t.GetStats()
		if err != nil {
			return record.TrackingStatistics{}, err
		}

		out.TotalAllocations += s.TotalAllocations
		out.TotalDeallocations += s.TotalDeallocations
		out.ActiveAllocations += s.ActiveAllocations
		out.ActiveBytes += s.ActiveBytes
		out.PeakBytes += s.PeakBytes
	}

	return out, nil
}

// GetActiveAllocations concatenates the active records of every live
// tracker.
func (d *Dispatcher) GetActiveAllocations() ([]record.AllocationRecord, error) {
	var out []record.AllocationRecord

	for _, t := range d.LiveTrackers() {
		active, err := t.GetActiveAllocations()
		if err != nil {
			return nil, err
		}

		out = append(out, active...)
	}

	return out, nil
}

// GetHistory concatenates the completed-record history of every live
// tracker.
func (d *Dispatcher) GetHistory() ([]record.AllocationRecord, error) {
	var out []record.AllocationRecord

	for _, t := range d.LiveTrackers() {
		h, err := t.GetHistory()
		if err != nil {
			return nil, err
		}

		out = append(out, h...)
	}

	return out, nil
}
