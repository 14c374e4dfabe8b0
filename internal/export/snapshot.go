package export

import (
	"github.com/orizon-lang/memscope/internal/record"
	"github.com/orizon-lang/memscope/internal/unsafeffi"
)

// Snapshot is the single point-in-time view every bundle writer reads from
// (§4.L: "GATHERING takes the snapshot once; all writers consume the same
// snapshot (avoids torn reads)"). It is immutable once built.
type Snapshot struct {
	Active []record.AllocationRecord
	History []record.AllocationRecord
	Stats  record.TrackingStatistics
	Unsafe unsafeffi.Snapshot
}

// Source is the minimal read surface Gather needs. internal/tracker.Tracker
// satisfies it directly (performance-singleton mode); so does
// internal/dispatch.Dispatcher, which folds every live per-thread tracker
// into one process-wide view when precision mode is active (§4.F).
type Source interface {
	GetStats() (record.TrackingStatistics, error)
	GetActiveAllocations() ([]record.AllocationRecord, error)
	GetHistory() ([]record.AllocationRecord, error)
}

// UnsafeSource is the minimal read surface for the unsafe/FFI sub-tracker;
// a nil UnsafeSource is valid and yields a zero-value Unsafe snapshot.
type UnsafeSource interface {
	Snapshot() unsafeffi.Snapshot
}

// Gather takes the once-per-export snapshot. A failure gathering any one
// piece fails the whole gather (§4.L's GATHERING -> FAILED transition);
// partial failure is reserved for the WRITING stage.
func Gather(src Source, unsafeSrc UnsafeSource) (Snapshot, error) {
	stats, err := src.GetStats()
	if err != nil {
		return Snapshot{}, err
	}

	active, err := src.GetActiveAllocations()
	if err != nil {
		return Snapshot{}, err
	}

	history, err := src.GetHistory()
	if err != nil {
		return Snapshot{}, err
	}

	var unsafeSnap unsafeffi.Snapshot
	if unsafeSrc != nil {
		unsafeSnap = unsafeSrc.Snapshot()
	}

	return Snapshot{Active: active, History: history, Stats: stats, Unsafe: unsafeSnap}, nil
}
