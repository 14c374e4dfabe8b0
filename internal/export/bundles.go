package export

import (
	"github.com/orizon-lang/memscope/internal/record"
)

// BundleName enumerates the five independent JSON files of §4.L.
type BundleName string

const (
	BundleMemoryAnalysis BundleName = "memory_analysis"
	BundleLifetime       BundleName = "lifetime"
	BundlePerformance    BundleName = "performance"
	BundleUnsafeFFI      BundleName = "unsafe_ffi"
	BundleComplexTypes   BundleName = "complex_types"
)

// AllBundles lists every bundle in the fixed order they are gathered and
// written.
var AllBundles = []BundleName{
	BundleMemoryAnalysis,
	BundleLifetime,
	BundlePerformance,
	BundleUnsafeFFI,
	BundleComplexTypes,
}

// memoryAnalysisEntry is one record's view in the memory-analysis bundle:
// size, pointer, and the layout/fragmentation/smart-pointer analyses.
type memoryAnalysisEntry struct {
	Pointer        string     `json:"pointer"`
	SizeBytes      uint64     `json:"size_bytes"`
	IsActive       bool       `json:"is_active"`
	IsLeaked       bool       `json:"is_leaked"`
	SmartPointer   *rawOrNull `json:"smart_pointer_analysis,omitempty"`
	MemoryLayout   *rawOrNull `json:"memory_layout_analysis,omitempty"`
	Fragmentation  *rawOrNull `json:"fragmentation_analysis,omitempty"`
	RuntimeState   *rawOrNull `json:"runtime_state_analysis,omitempty"`
	StackAllocated *rawOrNull `json:"stack_allocation_analysis,omitempty"`
}

type memoryAnalysisBundle struct {
	GeneratedFrom string                    `json:"generated_from"`
	TotalRecords  int                       `json:"total_records"`
	Stats         record.TrackingStatistics `json:"tracking_statistics"`
	Entries       []memoryAnalysisEntry     `json:"entries"`
}

func buildMemoryAnalysis(snap Snapshot) memoryAnalysisBundle {
	entries := make([]memoryAnalysisEntry, 0, len(snap.Active)+len(snap.History))

	appendEntry := func(r record.AllocationRecord, active bool) {
		entries = append(entries, memoryAnalysisEntry{
			Pointer:        formatPointer(r.Pointer),
			SizeBytes:      r.SizeBytes,
			IsActive:       active,
			IsLeaked:       r.IsLeaked,
			SmartPointer:   rawOrNullOf(r.Analyses.SmartPointer),
			MemoryLayout:   rawOrNullOf(r.Analyses.MemoryLayout),
			Fragmentation:  rawOrNullOf(r.Analyses.Fragmentation),
			RuntimeState:   rawOrNullOf(r.Analyses.RuntimeState),
			StackAllocated: rawOrNullOf(r.Analyses.StackAllocation),
		})
	}

	for _, r := range snap.Active {
		appendEntry(r, true)
	}

	for _, r := range snap.History {
		appendEntry(r, false)
	}

	return memoryAnalysisBundle{
		GeneratedFrom: "memscope",
		TotalRecords:  len(entries),
		Stats:         snap.Stats,
		Entries:       entries,
	}
}

type lifetimeEntry struct {
	Pointer      string     `json:"pointer"`
	VariableName string     `json:"variable_name,omitempty"`
	TypeName     string     `json:"type_name,omitempty"`
	ScopeName    string     `json:"scope_name,omitempty"`
	AllocatedAt  int64      `json:"allocated_at_nanos"`
	HasDealloc   bool       `json:"has_dealloc"`
	DeallocAt    int64      `json:"dealloc_at_nanos,omitempty"`
	HasLifetime  bool       `json:"has_lifetime"`
	LifetimeMs   uint64     `json:"lifetime_ms,omitempty"`
	IsLeaked     bool       `json:"is_leaked"`
	StackFrames  []string   `json:"stack_frames,omitempty"`
	Lifecycle    *rawOrNull `json:"lifecycle_tracking,omitempty"`
	DropChain    *rawOrNull `json:"drop_chain,omitempty"`
	TemporaryObj *rawOrNull `json:"temporary_object_analysis,omitempty"`
}

type lifetimeBundle struct {
	Entries []lifetimeEntry `json:"entries"`
}

func buildLifetime(snap Snapshot) lifetimeBundle {
	all := make([]record.AllocationRecord, 0, len(snap.Active)+len(snap.History))
	all = append(all, snap.Active...)
	all = append(all, snap.History...)

	entries := make([]lifetimeEntry, 0, len(all))

	for _, r := range all {
		entries = append(entries, lifetimeEntry{
			Pointer:      formatPointer(r.Pointer),
			VariableName: r.VariableName.String(),
			TypeName:     r.TypeName.String(),
			ScopeName:    r.ScopeName.String(),
			AllocatedAt:  r.AllocatedAt,
			HasDealloc:   r.HasDealloc,
			DeallocAt:    r.DeallocAt,
			HasLifetime:  r.HasLifetime,
			LifetimeMs:   r.LifetimeMs,
			IsLeaked:     r.IsLeaked,
			StackFrames:  r.StackFrames,
			Lifecycle:    rawOrNullOf(r.Analyses.LifecycleTracking),
			DropChain:    rawOrNullOf(r.Analyses.DropChain),
			TemporaryObj: rawOrNullOf(r.Analyses.TemporaryObject),
		})
	}

	return lifetimeBundle{Entries: entries}
}

type performanceBundle struct {
	Stats           record.TrackingStatistics `json:"tracking_statistics"`
	ActiveCount     int                       `json:"active_count"`
	HistoryCount    int                       `json:"history_count"`
	CallTrackingTop []*rawOrNull              `json:"call_tracking_samples,omitempty"`
	AccessTracking  []*rawOrNull              `json:"access_tracking_samples,omitempty"`
}

func buildPerformance(snap Snapshot) performanceBundle {
	const sampleCap = 64

	var callTracking, accessTracking []*rawOrNull

	for _, r := range snap.History {
		if ct := rawOrNullOf(r.Analyses.CallTracking); ct != nil {
			callTracking = append(callTracking, ct)
		}

		if at := rawOrNullOf(r.Analyses.AccessTracking); at != nil {
			accessTracking = append(accessTracking, at)
		}

		if len(callTracking) >= sampleCap && len(accessTracking) >= sampleCap {
			break
		}
	}

	return performanceBundle{
		Stats:           snap.Stats,
		ActiveCount:     len(snap.Active),
		HistoryCount:    len(snap.History),
		CallTrackingTop: callTracking,
		AccessTracking:  accessTracking,
	}
}

type unsafeFFIBoundaryEvent struct {
	Pointer       string `json:"pointer"`
	Direction     string `json:"direction"`
	Source        string `json:"source,omitempty"`
	Sink          string `json:"sink,omitempty"`
	TimestampNano int64  `json:"timestamp_nanos"`
}

type unsafeFFIViolation struct {
	Pointer       string `json:"pointer"`
	Kind          string `json:"kind"`
	TimestampNano int64  `json:"timestamp_nanos"`
	Detail        string `json:"detail,omitempty"`
}

type unsafeFFIAllocation struct {
	Pointer     string `json:"pointer"`
	Source      string `json:"source"`
	SizeBytes   uint64 `json:"size_bytes"`
	Allocated   int64  `json:"allocated_at_nanos"`
	Freed       bool   `json:"freed"`
	FreedAtNs   int64  `json:"freed_at_nanos,omitempty"`
	DoubleFrees int    `json:"double_frees,omitempty"`
}

type unsafeFFIBundle struct {
	Allocations []unsafeFFIAllocation    `json:"allocations"`
	Boundary    []unsafeFFIBoundaryEvent `json:"boundary_events"`
	Violations  []unsafeFFIViolation     `json:"violations"`
}

func buildUnsafeFFI(snap Snapshot) unsafeFFIBundle {
	allocs := make([]unsafeFFIAllocation, 0, len(snap.Unsafe.Allocations))
	for ptr, info := range snap.Unsafe.Allocations {
		allocs = append(allocs, unsafeFFIAllocation{
			Pointer:     formatPointer(ptr),
			Source:      info.Source.String(),
			SizeBytes:   info.Size,
			Allocated:   info.Allocated,
			Freed:       info.Freed,
			FreedAtNs:   info.FreedAtNs,
			DoubleFrees: info.DoubleFrees,
		})
	}

	boundary := make([]unsafeFFIBoundaryEvent, 0, len(snap.Unsafe.Boundary))
	for _, ev := range snap.Unsafe.Boundary {
		boundary = append(boundary, unsafeFFIBoundaryEvent{
			Pointer:       formatPointer(ev.Pointer),
			Direction:     ev.Direction.String(),
			Source:        ev.Source.String(),
			Sink:          ev.Sink.String(),
			TimestampNano: ev.TimestampNano,
		})
	}

	violations := make([]unsafeFFIViolation, 0, len(snap.Unsafe.Violations))
	for _, v := range snap.Unsafe.Violations {
		violations = append(violations, unsafeFFIViolation{
			Pointer:       formatPointer(v.Pointer),
			Kind:          v.Kind.String(),
			TimestampNano: v.TimestampNano,
			Detail:        v.Detail,
		})
	}

	return unsafeFFIBundle{Allocations: allocs, Boundary: boundary, Violations: violations}
}

type complexTypeEntry struct {
	Pointer           string     `json:"pointer"`
	TypeName          string     `json:"type_name,omitempty"`
	GenericInstance   *rawOrNull `json:"generic_instance_analysis,omitempty"`
	DynamicType       *rawOrNull `json:"dynamic_type_analysis,omitempty"`
	TypeRelationships *rawOrNull `json:"type_relationships_analysis,omitempty"`
	TypeUsage         *rawOrNull `json:"type_usage_analysis,omitempty"`
}

type complexTypesBundle struct {
	Entries []complexTypeEntry `json:"entries"`
}

func buildComplexTypes(snap Snapshot) complexTypesBundle {
	all := make([]record.AllocationRecord, 0, len(snap.Active)+len(snap.History))
	all = append(all, snap.Active...)
	all = append(all, snap.History...)

	entries := make([]complexTypeEntry, 0, len(all))

	for _, r := range all {
		gi := rawOrNullOf(r.Analyses.GenericInstance)
		dt := rawOrNullOf(r.Analyses.DynamicType)
		tr := rawOrNullOf(r.Analyses.TypeRelationships)
		tu := rawOrNullOf(r.Analyses.TypeUsage)

		if gi == nil && dt == nil && tr == nil && tu == nil {
			continue
		}

		entries = append(entries, complexTypeEntry{
			Pointer:           formatPointer(r.Pointer),
			TypeName:          r.TypeName.String(),
			GenericInstance:   gi,
			DynamicType:       dt,
			TypeRelationships: tr,
			TypeUsage:         tu,
		})
	}

	return complexTypesBundle{Entries: entries}
}
