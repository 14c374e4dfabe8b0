package concurrent

import (
	"sync"
	"testing"
)

func TestMap_StoreLoad(t *testing.T) {
	m := NewUint64Map[string](4)

	if _, ok := m.Load(1); ok {
		t.Fatalf("expected miss on empty map")
	}

	m.Store(1, "one")
	m.Store(2, "two")

	v, ok := m.Load(1)
	if !ok || v != "one" {
		t.Fatalf("expected (one, true), got (%q, %v)", v, ok)
	}

	m.Store(1, "uno")

	v, ok = m.Load(1)
	if !ok || v != "uno" {
		t.Fatalf("expected overwrite to stick, got (%q, %v)", v, ok)
	}
}

func TestMap_LoadOrStore(t *testing.T) {
	m := NewUint64Map[int](4)

	v, loaded := m.LoadOrStore(1, 1)
	if loaded || v != 1 {
		t.Fatalf("expected fresh insert (1, false), got (%d, %v)", v, loaded)
	}

	v, loaded = m.LoadOrStore(1, 2)
	if !loaded || v != 1 {
		t.Fatalf("expected existing value to win (1, true), got (%d, %v)", v, loaded)
	}
}

func TestMap_Delete(t *testing.T) {
	m := NewUint64Map[int](4)
	m.Store(5, 50)

	if !m.Delete(5) {
		t.Fatalf("expected Delete to report true for present key")
	}

	if m.Delete(5) {
		t.Fatalf("expected second Delete to report false")
	}

	if _, ok := m.Load(5); ok {
		t.Fatalf("expected key gone after Delete")
	}
}

func TestMap_RangeAndLen(t *testing.T) {
	m := NewUint64Map[int](4)
	for i := uint64(0); i < 10; i++ {
		m.Store(i, int(i)*10)
	}

	if m.Len() != 10 {
		t.Fatalf("expected Len 10, got %d", m.Len())
	}

	seen := make(map[uint64]int)
	m.Range(func(k uint64, v int) bool {
		seen[k] = v
		return true
	})

	if len(seen) != 10 {
		t.Fatalf("expected Range to visit 10 entries, got %d", len(seen))
	}

	for k, v := range seen {
		if int(k)*10 != v {
			t.Fatalf("mismatched entry %d -> %d", k, v)
		}
	}
}

func TestMap_RangeEarlyExit(t *testing.T) {
	m := NewUint64Map[int](4)
	for i := uint64(0); i < 10; i++ {
		m.Store(i, int(i))
	}

	count := 0
	m.Range(func(uint64, int) bool {
		count++
		return count < 3
	})

	if count != 3 {
		t.Fatalf("expected Range to stop after 3 calls, got %d", count)
	}
}

func TestMap_ConcurrentStoreLoad(t *testing.T) {
	m := NewUint64Map[int](16)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func(base int) {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				key := uint64(base*1000 + j)
				m.Store(key, base+j)
			}
		}(i)
	}
	wg.Wait()

	if m.Len() != 800 {
		t.Fatalf("expected 800 entries after concurrent stores, got %d", m.Len())
	}
}

func TestRing_PushPopOrder(t *testing.T) {
	r := NewRing[int](4)

	for i := 1; i <= 4; i++ {
		if !r.TryPush(i) {
			t.Fatalf("expected TryPush(%d) to succeed", i)
		}
	}

	if r.TryPush(5) {
		t.Fatalf("expected TryPush to fail once ring is full")
	}

	for i := 1; i <= 4; i++ {
		var out int
		if !r.TryPop(&out) {
			t.Fatalf("expected TryPop to succeed for item %d", i)
		}

		if out != i {
			t.Fatalf("expected FIFO order: want %d, got %d", i, out)
		}
	}

	var out int
	if r.TryPop(&out) {
		t.Fatalf("expected TryPop to fail on empty ring")
	}
}

func TestRing_DrainAll(t *testing.T) {
	r := NewRing[int](8)
	for i := 0; i < 5; i++ {
		r.TryPush(i)
	}

	dst := r.DrainAll(nil)
	if len(dst) != 5 {
		t.Fatalf("expected 5 drained values, got %d", len(dst))
	}

	for i, v := range dst {
		if v != i {
			t.Fatalf("expected drained order to match push order, got %v", dst)
		}
	}

	var out int
	if r.TryPop(&out) {
		t.Fatalf("expected ring empty after DrainAll")
	}
}

func TestRing_CapacityRoundsUpToPowerOfTwo(t *testing.T) {
	r := NewRing[int](3)
	for i := 0; i < 4; i++ {
		if !r.TryPush(i) {
			t.Fatalf("expected capacity rounded up to 4, push %d failed", i)
		}
	}

	if r.TryPush(99) {
		t.Fatalf("expected ring full at rounded capacity 4")
	}
}

