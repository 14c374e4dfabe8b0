package concurrent

import (
	"runtime"
	"sync/atomic"
)

// Ring is a bounded multi-producer multi-consumer lock-free ring buffer
// based on Dmitry Vyukov's per-slot sequence number algorithm. The sampling
// recorder uses one Ring per thread to hold events between appends to the
// thread's binary log, so producers never block on the flusher.
type Ring[T any] struct {
	mask    uint64
	enqueue uint64
	dequeue uint64
	cells   []cell[T]
}

type cell[T any] struct {
	seq uint64
	val T
}

// NewRing creates a ring with the given capacity, rounded up to a power of
// two (minimum 2).
func NewRing[T any](capacity uint64) *Ring[T] {
	if capacity < 2 {
		capacity = 2
	}

	pow2 := uint64(1)
	for pow2 < capacity {
		pow2 <<= 1
	}

	r := &Ring[T]{
		mask:  pow2 - 1,
		cells: make([]cell[T], pow2),
	}
	for i := range r.cells {
		r.cells[i].seq = uint64(i)
	}

	return r
}

// TryPush pushes v without blocking; it reports false if the ring is full.
func (r *Ring[T]) TryPush(v T) bool {
	for {
		pos := atomic.LoadUint64(&r.enqueue)
		c := &r.cells[pos&r.mask]
		seq := atomic.LoadUint64(&c.seq)
		dif := int64(seq) - int64(pos)

		switch {
		case dif == 0:
			if atomic.CompareAndSwapUint64(&r.enqueue, pos, pos+1) {
				c.val = v
				atomic.StoreUint64(&c.seq, pos+1)

				return true
			}
		case dif < 0:
			return false
		default:
			runtime.Gosched()
		}
	}
}

// TryPop pops the oldest value into out; it reports false if the ring is
// empty. A single consumer (the per-thread flusher) is assumed.
func (r *Ring[T]) TryPop(out *T) bool {
	for {
		pos := atomic.LoadUint64(&r.dequeue)
		c := &r.cells[pos&r.mask]
		seq := atomic.LoadUint64(&c.seq)
		dif := int64(seq) - int64(pos+1)

		switch {
		case dif == 0:
			if atomic.CompareAndSwapUint64(&r.dequeue, pos, pos+1) {
				*out = c.val
				atomic.StoreUint64(&c.seq, pos+r.mask+1)

				return true
			}
		case dif < 0:
			return false
		default:
			runtime.Gosched()
		}
	}
}

// DrainAll pops every currently available value, appending to dst.
func (r *Ring[T]) DrainAll(dst []T) []T {
	var v T
	for r.TryPop(&v) {
		dst = append(dst, v)
	}

	return dst
}
