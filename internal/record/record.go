// Package record defines the tracker core's central entity,
// AllocationRecord (§3.B), its optional analysis payloads, and the running
// TrackingStatistics counters.
package record

import (
	"encoding/json"

	"github.com/orizon-lang/memscope/internal/intern"
)

// AllocationRecord is the canonical entity carrying a pointer, size, times,
// variable/type/scope attribution, thread, and optional analyses. The core
// never interprets the optional analyses; it carries them transparently
// for consumers (§9).
type AllocationRecord struct {
	Pointer      uintptr
	ThreadLabel  intern.Handle
	AllocatedAt  int64 // monotonic nanoseconds
	SizeBytes    uint64
	DeallocAt    int64 // 0 if still active; see HasDealloc
	HasDealloc   bool
	LifetimeMs   uint64 // derived when deallocated; see HasLifetime
	HasLifetime  bool
	VariableName intern.Handle
	TypeName     intern.Handle
	ScopeName    intern.Handle
	BorrowCount  uint32
	IsLeaked     bool
	StackFrames  []string // optional sampled call-site frames

	Analyses Analyses
}

// Clone returns a deep-enough copy safe to hand to a caller outside the
// tracker's lock: the only mutable reference field, StackFrames, is
// copied; intern.Handle and Analyses' json.RawMessage fields are
// immutable once set.
func (r AllocationRecord) Clone() AllocationRecord {
	out := r
	if r.StackFrames != nil {
		out.StackFrames = append([]string(nil), r.StackFrames...)
	}

	return out
}

// Analyses holds the fourteen independent, opaque analysis payloads a
// record may carry (§3, §9: "model as a fixed enumeration of 14 optional
// opaque JSON payloads"). Each is raw JSON so the core never needs to know
// its shape; consumers decode what they understand.
type Analyses struct {
	SmartPointer      json.RawMessage
	MemoryLayout      json.RawMessage
	GenericInstance   json.RawMessage
	DynamicType       json.RawMessage
	RuntimeState      json.RawMessage
	StackAllocation   json.RawMessage
	TemporaryObject   json.RawMessage
	Fragmentation     json.RawMessage
	TypeRelationships json.RawMessage
	TypeUsage         json.RawMessage
	CallTracking      json.RawMessage
	LifecycleTracking json.RawMessage
	AccessTracking    json.RawMessage
	DropChain         json.RawMessage
}

// fields returns the fourteen payloads in the fixed order the binary
// format (§3) and JSON export (§4.L) both depend on.
func (a *Analyses) fields() [14]*json.RawMessage {
	return [14]*json.RawMessage{
		&a.SmartPointer,
		&a.MemoryLayout,
		&a.GenericInstance,
		&a.DynamicType,
		&a.RuntimeState,
		&a.StackAllocation,
		&a.TemporaryObject,
		&a.Fragmentation,
		&a.TypeRelationships,
		&a.TypeUsage,
		&a.CallTracking,
		&a.LifecycleTracking,
		&a.AccessTracking,
		&a.DropChain,
	}
}

// Fields exposes the fourteen payload slots in binary/JSON field order for
// codecs that need to iterate them generically.
func (a *Analyses) Fields() [14]*json.RawMessage { return a.fields() }

// Equal reports whether two Analyses sets carry byte-identical JSON in
// every slot (used by the binary round-trip property test; §8).
func (a Analyses) Equal(other Analyses) bool {
	af, bf := a.fields(), other.fields()
	for i := range af {
		if string(*af[i]) != string(*bf[i]) {
			return false
		}
	}

	return true
}

// TrackingStatistics holds the cumulative counters updated on every state
// transition under the tracker's stats lock (§3, §5).
type TrackingStatistics struct {
	TotalAllocations   uint64
	TotalDeallocations uint64
	ActiveAllocations  uint64
	ActiveBytes        uint64
	PeakBytes          uint64
}
