package lockfree

import (
	"io"

	"github.com/orizon-lang/memscope/internal/binfmt"
)

// EventKind distinguishes an allocation event from a deallocation event.
type EventKind uint8

const (
	EventAllocation   EventKind = 1
	EventDeallocation EventKind = 2
)

// Event is one sampled allocation or deallocation (§3: "Lock-free event").
// Size is zero for a deallocation event. CallStack holds the raw,
// unsymbolised instruction-pointer-like integers captured at the call
// site; symbolisation is explicitly offline-only (§9).
type Event struct {
	Kind          EventKind
	Pointer       uint64
	Size          uint64
	TimestampNano int64
	CallStack     []uint64
}

// writeEvent encodes one event using the shared §3 integer/string
// conventions (binfmt's exported primitives), not the AllocationRecord
// Value layout — the per-thread log is a distinct, simpler wire shape.
func writeEvent(w io.Writer, ev Event) error {
	if err := binfmt.WriteByte(w, byte(ev.Kind)); err != nil {
		return err
	}

	if err := binfmt.WriteU64(w, ev.Pointer); err != nil {
		return err
	}

	if err := binfmt.WriteU64(w, ev.Size); err != nil {
		return err
	}

	if err := binfmt.WriteU64(w, uint64(ev.TimestampNano)); err != nil {
		return err
	}

	if err := binfmt.WriteU32(w, uint32(len(ev.CallStack))); err != nil {
		return err
	}

	for _, frame := range ev.CallStack {
		if err := binfmt.WriteU64(w, frame); err != nil {
			return err
		}
	}

	return nil
}

// readEvent decodes one event, the counterpart to writeEvent.
func readEvent(r io.Reader) (Event, error) {
	var ev Event

	kind, err := binfmt.ReadByte(r)
	if err != nil {
		return ev, err
	}

	ev.Kind = EventKind(kind)

	ptr, err := binfmt.ReadU64(r)
	if err != nil {
		return ev, err
	}

	ev.Pointer = ptr

	size, err := binfmt.ReadU64(r)
	if err != nil {
		return ev, err
	}

	ev.Size = size

	ts, err := binfmt.ReadU64(r)
	if err != nil {
		return ev, err
	}

	ev.TimestampNano = int64(ts)

	n, err := binfmt.ReadU32(r)
	if err != nil {
		return ev, err
	}

	if n > 0 {
		stack := make([]uint64, n)
		for i := range stack {
			v, err := binfmt.ReadU64(r)
			if err != nil {
				return ev, err
			}

			stack[i] = v
		}

		ev.CallStack = stack
	}

	return ev, nil
}

// Histogram is the per-class allocation counter written to a thread's
// .freq companion file, used when the sampling policy drops the full
// record but still needs to account for the allocation happening at all.
type Histogram struct {
	SmallCount  uint64
	MediumCount uint64
	LargeCount  uint64
}

func (h *Histogram) bump(class SizeClass) {
	switch class {
	case ClassSmall:
		h.SmallCount++
	case ClassMedium:
		h.MediumCount++
	default:
		h.LargeCount++
	}
}

func writeHistogram(w io.Writer, h Histogram) error {
	if err := binfmt.WriteU64(w, h.SmallCount); err != nil {
		return err
	}

	if err := binfmt.WriteU64(w, h.MediumCount); err != nil {
		return err
	}

	return binfmt.WriteU64(w, h.LargeCount)
}

func readHistogram(r io.Reader) (Histogram, error) {
	var h Histogram

	small, err := binfmt.ReadU64(r)
	if err != nil {
		return h, err
	}

	medium, err := binfmt.ReadU64(r)
	if err != nil {
		return h, err
	}

	large, err := binfmt.ReadU64(r)
	if err != nil {
		return h, err
	}

	h.SmallCount, h.MediumCount, h.LargeCount = small, medium, large

	return h, nil
}
