package concurrent

// NewUint64Map creates a lock-free map keyed by uint64 using a Fibonacci
// multiplicative hash. This is the dispatcher's per-thread tracker table
// (internal/dispatch), keyed by OS thread id.
func NewUint64Map[V any](buckets uint64) *Map[uint64, V] {
	return NewMap[uint64, V](buckets, func(k uint64) uint64 {
		return k * 0x9E3779B97F4A7C15
	})
}
