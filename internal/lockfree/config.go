// Package lockfree implements §4.H: a wholly separate producer path where
// each thread appends sampled allocation events to its own binary log with
// zero cross-thread synchronisation. It is usable even when the mutex-based
// tracker core (internal/tracker) is too contended for a given deployment.
package lockfree

// FrequencyMode selects how non-sampled allocations are still accounted
// for.
type FrequencyMode string

const (
	FrequencyFull      FrequencyMode = "full"
	FrequencySampled   FrequencyMode = "sampled"
	FrequencyHistogram FrequencyMode = "histogram"
)

// SizeClass names the three byte-size buckets the sampling policy
// classifies every allocation into.
type SizeClass int

const (
	ClassSmall SizeClass = iota
	ClassMedium
	ClassLarge
)

func (c SizeClass) String() string {
	switch c {
	case ClassSmall:
		return "small"
	case ClassMedium:
		return "medium"
	default:
		return "large"
	}
}

// Config is the sampling policy (§4.H, §6): byte cutoffs per class,
// per-class sample probabilities, the frequency-accounting mode, and the
// call-stack capture depth.
type Config struct {
	SmallThreshold  uint64
	MediumThreshold uint64
	LargeThreshold  uint64

	SmallRate  float64
	MediumRate float64
	LargeRate  float64

	FrequencyMode  FrequencyMode
	CallStackDepth int

	// RingCapacity sizes the per-thread ring buffer events are staged in
	// before they are drained to the binary log (§4.H: "ring-backed binary
	// log"). Rounded up to a power of two; zero falls back to
	// defaultRingCapacity.
	RingCapacity uint64
}

// defaultRingCapacity is used when a Config leaves RingCapacity at its
// zero value, including literal Config{} construction outside this
// package's presets.
const defaultRingCapacity = 1024

// Classify buckets size into small/medium/large by threshold. Anything at
// or above LargeThreshold is forced into the large class with an implicit
// full sample rate (see Recorder.shouldSample), so a leak-detection
// deployment never silently misses the allocations most likely to matter.
func (c Config) Classify(size uint64) SizeClass {
	switch {
	case size <= c.SmallThreshold:
		return ClassSmall
	case size <= c.MediumThreshold:
		return ClassMedium
	default:
		return ClassLarge
	}
}

func (c Config) rateFor(class SizeClass) float64 {
	switch class {
	case ClassSmall:
		return c.SmallRate
	case ClassMedium:
		return c.MediumRate
	default:
		return c.LargeRate
	}
}

// DefaultConfig balances fidelity and overhead: small allocations are
// sampled at 10%, medium at 50%, large always.
func DefaultConfig() Config {
	return Config{
		SmallThreshold:  256,
		MediumThreshold: 4096,
		LargeThreshold:  65536,
		SmallRate:       0.10,
		MediumRate:      0.50,
		LargeRate:       1.0,
		FrequencyMode:   FrequencySampled,
		CallStackDepth:  8,
		RingCapacity:    defaultRingCapacity,
	}
}

// HighPrecisionConfig samples almost everything, trading overhead for
// near-complete capture.
func HighPrecisionConfig() Config {
	return Config{
		SmallThreshold:  256,
		MediumThreshold: 4096,
		LargeThreshold:  65536,
		SmallRate:       0.95,
		MediumRate:      0.99,
		LargeRate:       1.0,
		FrequencyMode:   FrequencyFull,
		CallStackDepth:  16,
		RingCapacity:    defaultRingCapacity * 4,
	}
}

// PerformanceOptimizedConfig minimizes hot-path overhead: small
// allocations (the overwhelming majority in most workloads) are barely
// sampled at all.
func PerformanceOptimizedConfig() Config {
	return Config{
		SmallThreshold:  256,
		MediumThreshold: 4096,
		LargeThreshold:  65536,
		SmallRate:       0.001,
		MediumRate:      0.05,
		LargeRate:       0.5,
		FrequencyMode:   FrequencyHistogram,
		CallStackDepth:  4,
		RingCapacity:    defaultRingCapacity / 2,
	}
}

// LeakDetectionConfig emphasises the long-lived classes (medium/large) that
// are more likely to be the source of a slow leak, while still keeping
// small-allocation overhead low.
func LeakDetectionConfig() Config {
	return Config{
		SmallThreshold:  256,
		MediumThreshold: 4096,
		LargeThreshold:  65536,
		SmallRate:       0.02,
		MediumRate:      0.80,
		LargeRate:       1.0,
		FrequencyMode:   FrequencySampled,
		CallStackDepth:  16,
		RingCapacity:    defaultRingCapacity * 2,
	}
}
