package registry

import (
	"testing"

	"github.com/orizon-lang/memscope/internal/tracker"
)

func TestRegistry_RegisterAndCollectLive(t *testing.T) {
	r := New()
	tr := tracker.New()

	r.Register(1, tr)

	live := r.CollectLive()
	if len(live) != 1 || live[0] != tr {
		t.Fatalf("expected CollectLive to return the registered tracker, got %v", live)
	}
}

func TestRegistry_Stats(t *testing.T) {
	r := New()
	tr := tracker.New()

	r.Register(1, tr)

	live, dead := r.Stats()
	if live != 1 || dead != 0 {
		t.Fatalf("expected (1, 0) while the tracker is still referenced, got (%d, %d)", live, dead)
	}
}

func TestRegistry_Len(t *testing.T) {
	r := New()

	r.Register(1, tracker.New())
	r.Register(2, tracker.New())

	if r.Len() != 2 {
		t.Fatalf("expected Len 2, got %d", r.Len())
	}
}

func TestRegistry_CleanupIsNoOpWhileTrackersAreReferenced(t *testing.T) {
	r := New()
	tr := tracker.New()

	r.Register(1, tr)
	r.Cleanup()

	if r.Len() != 1 {
		t.Fatalf("expected Cleanup to keep a still-referenced entry, got len %d", r.Len())
	}
}

func TestRegistry_OverwritingRegistrationReplacesEntry(t *testing.T) {
	r := New()
	first := tracker.New()
	second := tracker.New()

	r.Register(1, first)
	r.Register(1, second)

	if r.Len() != 1 {
		t.Fatalf("expected re-registering the same thread id to replace, not add, got len %d", r.Len())
	}

	live := r.CollectLive()
	if len(live) != 1 || live[0] != second {
		t.Fatalf("expected CollectLive to return the most recently registered tracker")
	}
}
