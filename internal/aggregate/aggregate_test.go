package aggregate

import (
	"os"
	"testing"

	"github.com/orizon-lang/memscope/internal/lockfree"
)

func writeThreadLog(t *testing.T, dir string, threadID uint64, cfg lockfree.Config, allocs []struct {
	ptr, size uint64
	stack     []uint64
}) {
	t.Helper()

	rec, err := lockfree.InitThreadTracker(dir, threadID, cfg)
	if err != nil {
		t.Fatalf("InitThreadTracker: %v", err)
	}

	for _, a := range allocs {
		if err := rec.TrackAllocationLockfree(a.ptr, a.size, a.stack); err != nil {
			t.Fatalf("TrackAllocationLockfree: %v", err)
		}
	}

	if err := rec.FinalizeThreadTracker(); err != nil {
		t.Fatalf("FinalizeThreadTracker: %v", err)
	}
}

func TestRun_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()

	res, err := Run(dir, nil, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.PerThread) != 0 {
		t.Fatalf("expected no threads, got %d", len(res.PerThread))
	}

	if len(res.CallSites) != 0 {
		t.Fatalf("expected no call sites, got %d", len(res.CallSites))
	}
}

func TestRun_SingleThreadHighPrecision(t *testing.T) {
	dir := t.TempDir()
	cfg := lockfree.HighPrecisionConfig()

	stack := []uint64{0x1000, 0x2000, 0x3000}

	writeThreadLog(t, dir, 42, cfg, []struct {
		ptr, size uint64
		stack     []uint64
	}{
		{ptr: 0xA, size: 100, stack: stack},
		{ptr: 0xB, size: 200, stack: stack},
		{ptr: 0xC, size: 70000, stack: []uint64{0x9999}},
	})

	res, err := Run(dir, map[uint64]lockfree.Config{42: cfg}, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	stats, ok := res.PerThread[42]
	if !ok {
		t.Fatalf("expected thread 42 in result")
	}

	if stats.TotalAllocations == 0 {
		t.Fatalf("expected at least one sampled allocation with HighPrecisionConfig")
	}

	if len(res.CallSites) == 0 {
		t.Fatalf("expected at least one call site")
	}

	digest := digestStack(stack)
	if cs, ok := res.CallSites[digest]; ok && len(cs.Threads) != 1 {
		t.Fatalf("expected call site seen by exactly 1 thread, got %d", len(cs.Threads))
	}
}

func TestRun_MissingFilesTreatedAsZeroData(t *testing.T) {
	dir := t.TempDir()

	res, err := Run(dir, nil, Options{})
	if err != nil {
		t.Fatalf("Run on directory with no logs should not error: %v", err)
	}

	if res == nil {
		t.Fatalf("expected non-nil result")
	}
}

func TestRun_CrossThreadInteraction(t *testing.T) {
	dir := t.TempDir()
	cfg := lockfree.HighPrecisionConfig()
	cfg.SmallRate = 1 // sample every small allocation so the result does not depend on the PRNG

	sharedStack := []uint64{0xDEAD, 0xBEEF}

	writeThreadLog(t, dir, 1, cfg, []struct {
		ptr, size uint64
		stack     []uint64
	}{{ptr: 0x1, size: 50, stack: sharedStack}})

	writeThreadLog(t, dir, 2, cfg, []struct {
		ptr, size uint64
		stack     []uint64
	}{{ptr: 0x2, size: 50, stack: sharedStack}})

	res, err := Run(dir, map[uint64]lockfree.Config{1: cfg, 2: cfg}, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	digest := digestStack(sharedStack)

	found := false

	for _, d := range res.Interactions {
		if d == digest {
			found = true
		}
	}

	if !found {
		t.Fatalf("expected shared call site to be reported as a cross-thread interaction candidate")
	}
}

func TestRun_TruncatedRecordStopsCleanly(t *testing.T) {
	dir := t.TempDir()
	cfg := lockfree.HighPrecisionConfig()
	cfg.SmallRate = 1 // sample every small allocation so the log is never empty

	writeThreadLog(t, dir, 7, cfg, []struct {
		ptr, size uint64
		stack     []uint64
	}{{ptr: 0x1, size: 50, stack: []uint64{0x1}}})

	path := lockfree.BinPath(dir, 7)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}

	if len(data) < 4 {
		t.Fatalf("log too small to truncate meaningfully")
	}

	if err := os.WriteFile(path, data[:len(data)-2], 0o644); err != nil {
		t.Fatalf("truncating log: %v", err)
	}

	res, err := Run(dir, map[uint64]lockfree.Config{7: cfg}, Options{})
	if err != nil {
		t.Fatalf("Run over truncated log should not error: %v", err)
	}

	if _, ok := res.PerThread[7]; !ok {
		t.Fatalf("expected thread 7 still present despite truncation")
	}
}

func TestDiscoverThreadIDs_Sorted(t *testing.T) {
	dir := t.TempDir()
	cfg := lockfree.DefaultConfig()

	for _, id := range []uint64{9, 1, 5} {
		writeThreadLog(t, dir, id, cfg, nil)
	}

	ids := DiscoverThreadIDs(dir)

	want := []uint64{1, 5, 9}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}

	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}
