package dispatch

import (
	"runtime"
	"sync"
	"testing"

	"github.com/orizon-lang/memscope/internal/registry"
)

func TestDispatcher_DefaultsToPerformanceSingleton(t *testing.T) {
	d := New(registry.New())

	if d.CurrentMode() != PerformanceSingleton {
		t.Fatalf("expected default mode PerformanceSingleton, got %v", d.CurrentMode())
	}

	if d.Tracker() != d.Global() {
		t.Fatalf("expected Tracker() to return the shared global tracker in performance mode")
	}
}

func TestDispatcher_PerformanceMode_SameTrackerAcrossCalls(t *testing.T) {
	d := New(registry.New())

	a := d.Tracker()
	b := d.Tracker()

	if a != b {
		t.Fatalf("expected repeated Tracker() calls to return the same instance in performance mode")
	}
}

func TestDispatcher_SwitchToPrecisionPerThread(t *testing.T) {
	reg := registry.New()
	d := New(reg)

	d.SetMode(PrecisionPerThread)

	if d.CurrentMode() != PrecisionPerThread {
		t.Fatalf("expected mode PrecisionPerThread after SetMode")
	}

	a := d.Tracker()
	b := d.Tracker()

	if a != b {
		t.Fatalf("expected same thread to receive the same per-thread tracker across calls")
	}

	if a == d.Global() {
		t.Fatalf("expected precision-mode tracker to differ from the global tracker")
	}

	live, _ := reg.Stats()
	if live == 0 {
		t.Fatalf("expected the calling thread's tracker to be registered")
	}
}

func TestDispatcher_PrecisionMode_GetStatsAggregatesAcrossThreads(t *testing.T) {
	reg := registry.New()
	d := New(reg)
	d.SetMode(PrecisionPerThread)

	const threads = 5
	const perThread = 50

	var wg sync.WaitGroup

	for i := 0; i < threads; i++ {
		wg.Add(1)

		go func(base int) {
			defer wg.Done()

			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			tr := d.Tracker()

			for j := 0; j < perThread; j++ {
				ptr := uintptr(base*10000 + j + 1)
				if err := tr.TrackAllocation(ptr, 8); err != nil {
					t.Errorf("TrackAllocation: %v", err)
				}
			}
		}(i)
	}

	wg.Wait()

	stats, err := d.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}

	if stats.TotalAllocations != threads*perThread {
		t.Fatalf("expected aggregated total %d, got %d", threads*perThread, stats.TotalAllocations)
	}

	active, err := d.GetActiveAllocations()
	if err != nil {
		t.Fatalf("GetActiveAllocations: %v", err)
	}

	if len(active) != threads*perThread {
		t.Fatalf("expected %d aggregated active records, got %d", threads*perThread, len(active))
	}
}

func TestDispatcher_PerformanceMode_GetStatsMatchesGlobalTracker(t *testing.T) {
	d := New(registry.New())

	if err := d.Tracker().TrackAllocation(0x1, 16); err != nil {
		t.Fatalf("TrackAllocation: %v", err)
	}

	stats, err := d.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}

	if stats.TotalAllocations != 1 {
		t.Fatalf("expected 1 allocation in performance mode, got %d", stats.TotalAllocations)
	}
}

func TestDispatcher_GlobalAlwaysAccessibleRegardlessOfMode(t *testing.T) {
	d := New(registry.New())

	global := d.Global()

	d.SetMode(PrecisionPerThread)
	_ = d.Tracker()

	if d.Global() != global {
		t.Fatalf("expected Global() to keep returning the same performance-mode tracker after switching modes")
	}
}
