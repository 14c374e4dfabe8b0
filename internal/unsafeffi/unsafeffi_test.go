package unsafeffi

import (
	"testing"
	"time"
)

func fakeClock(n *int64) func() int64 {
	return func() int64 {
		*n++
		return *n
	}
}

func TestTrackUnsafeAllocation_FreeOnce(t *testing.T) {
	var n int64

	tr := New(fakeClock(&n), time.Hour)

	tr.TrackUnsafeAllocation(0x100, 64, SourceUnsafeBlock)
	tr.TrackFree(0x100)

	snap := tr.Snapshot()

	if len(snap.Violations) != 0 {
		t.Fatalf("expected no violations for a single free, got %v", snap.Violations)
	}

	info, ok := snap.Allocations[0x100]
	if !ok {
		t.Fatalf("expected allocation 0x100 in snapshot")
	}

	if !info.Freed {
		t.Fatalf("expected allocation marked freed")
	}
}

func TestTrackFree_DoubleFreeIsViolation(t *testing.T) {
	var n int64

	tr := New(fakeClock(&n), time.Hour)

	tr.TrackUnsafeAllocation(0x200, 32, SourceFFILibraryFunction)
	tr.TrackFree(0x200)
	tr.TrackFree(0x200)
	tr.TrackFree(0x200)

	snap := tr.Snapshot()

	if len(snap.Violations) != 2 {
		t.Fatalf("expected one violation per free beyond the first, got %v", snap.Violations)
	}

	for _, v := range snap.Violations {
		if v.Kind != ViolationDoubleFree {
			t.Fatalf("expected every violation to be a double-free, got %v", v.Kind)
		}
	}

	info, ok := snap.Allocations[0x200]
	if !ok {
		t.Fatalf("expected allocation 0x200 in snapshot")
	}

	if info.DoubleFrees != 2 {
		t.Fatalf("expected DoubleFrees to count the two frees after the first, got %d", info.DoubleFrees)
	}
}

func TestTrackFree_UntrackedPointerIsInvalidFree(t *testing.T) {
	var n int64

	tr := New(fakeClock(&n), time.Hour)

	tr.TrackFree(0x999)

	snap := tr.Snapshot()

	if len(snap.Violations) != 1 || snap.Violations[0].Kind != ViolationInvalidFree {
		t.Fatalf("expected exactly one invalid-free violation, got %v", snap.Violations)
	}
}

func TestSweepLeaks_FlagsOldUnfreedAllocations(t *testing.T) {
	var n int64

	clock := fakeClock(&n)
	tr := New(clock, 5*time.Nanosecond)

	tr.TrackUnsafeAllocation(0x300, 16, SourceSafe)

	// Advance the fake clock well past the leak timeout.
	for i := 0; i < 20; i++ {
		clock()
	}

	tr.SweepLeaks()

	snap := tr.Snapshot()
	if len(snap.Violations) != 1 || snap.Violations[0].Kind != ViolationLeakByTimeout {
		t.Fatalf("expected one leak-by-timeout violation, got %v", snap.Violations)
	}
}

func TestSweepLeaks_DoesNotFlagFreedAllocations(t *testing.T) {
	var n int64

	clock := fakeClock(&n)
	tr := New(clock, 5*time.Nanosecond)

	tr.TrackUnsafeAllocation(0x400, 16, SourceSafe)
	tr.TrackFree(0x400)

	for i := 0; i < 20; i++ {
		clock()
	}

	tr.SweepLeaks()

	snap := tr.Snapshot()
	if len(snap.Violations) != 0 {
		t.Fatalf("expected no violations for a freed allocation, got %v", snap.Violations)
	}
}

func TestRecordBoundaryEvent(t *testing.T) {
	var n int64

	tr := New(fakeClock(&n), time.Hour)

	tr.RecordBoundaryEvent(0x500, DirectionIntoUnsafe, "rust_ffi_call", "libfoo.so")
	tr.RecordBoundaryEvent(0x500, DirectionTaskSuspend, "", "")

	snap := tr.Snapshot()

	if len(snap.Boundary) != 2 {
		t.Fatalf("expected 2 boundary events, got %d", len(snap.Boundary))
	}

	if snap.Boundary[0].Source.String() != "rust_ffi_call" {
		t.Fatalf("expected source label preserved, got %q", snap.Boundary[0].Source.String())
	}

	if snap.Boundary[1].Direction != DirectionTaskSuspend {
		t.Fatalf("expected async-boundary direction recorded")
	}
}
