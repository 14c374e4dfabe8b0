package lockfree

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/orizon-lang/memscope/internal/concurrent"
	"github.com/orizon-lang/memscope/internal/tlocal"
	"github.com/orizon-lang/memscope/internal/trackerr"
)

// Recorder owns one thread's binary event log and optional frequency
// companion file. Every method here is meant to be called only by the
// owning thread; there is no internal locking because the spec requires
// zero cross-thread synchronisation on this path (§4.H, §5). Sampled
// events are staged in a ring buffer (§4.H's "ring-backed binary log")
// before being drained to the buffered file writer, so the file writer is
// only touched when the ring fills or on FinalizeThreadTracker; each event
// is still encoded on its own at drain time.
type Recorder struct {
	threadID  uint64
	config    Config
	binFile   *os.File
	binW      *bufio.Writer
	ring      *concurrent.Ring[Event]
	freqFile  *os.File
	histogram Histogram
	rngState  uint64
	emitted   uint64
	seen      uint64
}

// BinPath returns the conventional per-thread binary log path for dir.
func BinPath(dir string, threadID uint64) string {
	return filepath.Join(dir, fmt.Sprintf("thread_%d.bin", threadID))
}

// FreqPath returns the conventional per-thread frequency log path for dir.
func FreqPath(dir string, threadID uint64) string {
	return filepath.Join(dir, fmt.Sprintf("thread_%d.freq", threadID))
}

// InitThreadTracker creates the thread's binary log (and, unless
// FrequencyMode is "full", its companion frequency file) in dir.
func InitThreadTracker(dir string, threadID uint64, cfg Config) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, trackerr.Wrap(trackerr.IoError, err, "creating lock-free log directory %s", dir)
	}

	bf, err := os.Create(BinPath(dir, threadID))
	if err != nil {
		return nil, trackerr.Wrap(trackerr.IoError, err, "creating thread event log")
	}

	ringCap := cfg.RingCapacity
	if ringCap == 0 {
		ringCap = defaultRingCapacity
	}

	r := &Recorder{
		threadID: threadID,
		config:   cfg,
		binFile:  bf,
		binW:     bufio.NewWriter(bf),
		ring:     concurrent.NewRing[Event](ringCap),
		rngState: threadID*0x2545F4914F6CDD1D + uint64(tlocal.MonotonicNano()),
	}

	if r.rngState == 0 {
		r.rngState = 0x9E3779B97F4A7C15
	}

	if cfg.FrequencyMode != FrequencyFull {
		ff, err := os.Create(FreqPath(dir, threadID))
		if err != nil {
			_ = bf.Close()

			return nil, trackerr.Wrap(trackerr.IoError, err, "creating thread frequency log")
		}

		r.freqFile = ff
	}

	return r, nil
}

// nextFloat returns a uniform float64 in [0, 1) from a xorshift64* PRNG.
// Sampling decisions must never block, ruling out crypto/rand or a
// mutex-guarded math/rand.Source.
func (r *Recorder) nextFloat() float64 {
	r.rngState ^= r.rngState << 13
	r.rngState ^= r.rngState >> 7
	r.rngState ^= r.rngState << 17

	return float64(r.rngState>>11) / (1 << 53)
}

func (r *Recorder) shouldSample(size uint64, class SizeClass) bool {
	if size >= r.config.LargeThreshold {
		return true
	}

	return r.nextFloat() < r.config.rateFor(class)
}

func (r *Recorder) truncate(callStack []uint64) []uint64 {
	if len(callStack) > r.config.CallStackDepth {
		return callStack[:r.config.CallStackDepth]
	}

	return callStack
}

// stage pushes ev onto the ring, draining it to the binary log first if it
// is full. The owning thread is both the ring's sole producer and, on a
// full ring, its sole consumer, so this never needs cross-thread
// coordination. A staged event is guaranteed to reach the binary log by
// the next drain or FinalizeThreadTracker, so emitted counts it here
// rather than at drain time.
func (r *Recorder) stage(ev Event) error {
	if !r.ring.TryPush(ev) {
		if err := r.drainRing(); err != nil {
			return err
		}

		if !r.ring.TryPush(ev) {
			return trackerr.New(trackerr.InternalError, "thread %d: event ring rejected push immediately after drain", r.threadID)
		}
	}

	r.emitted++

	return nil
}

// drainRing empties the ring into the buffered file writer in FIFO order.
func (r *Recorder) drainRing() error {
	events := r.ring.DrainAll(make([]Event, 0, 64))

	for _, ev := range events {
		if err := writeEvent(r.binW, ev); err != nil {
			return trackerr.Wrap(trackerr.IoError, err, "appending ring-buffered event")
		}
	}

	return nil
}

// TrackAllocationLockfree records an allocation event, subject to the
// sampling policy; when the record is dropped, only the histogram counter
// advances.
func (r *Recorder) TrackAllocationLockfree(ptr, size uint64, callStack []uint64) error {
	r.seen++

	class := r.config.Classify(size)
	r.histogram.bump(class)

	if !r.shouldSample(size, class) {
		return nil
	}

	ev := Event{
		Kind:          EventAllocation,
		Pointer:       ptr,
		Size:          size,
		TimestampNano: tlocal.MonotonicNano(),
		CallStack:     r.truncate(callStack),
	}

	return r.stage(ev)
}

// TrackDeallocationLockfree records a deallocation event. Deallocation
// events are not classified by size (the spec leaves size zero for them)
// so they are always sampled at the large-class rate, on the theory that a
// recorder built to catch long-lived allocations should not then miss
// their release.
func (r *Recorder) TrackDeallocationLockfree(ptr uint64, callStack []uint64) error {
	if r.nextFloat() >= r.config.LargeRate {
		return nil
	}

	ev := Event{
		Kind:          EventDeallocation,
		Pointer:       ptr,
		TimestampNano: tlocal.MonotonicNano(),
		CallStack:     r.truncate(callStack),
	}

	return r.stage(ev)
}

// FinalizeThreadTracker flushes and closes both files. It is called once,
// typically from a thread-exit hook.
func (r *Recorder) FinalizeThreadTracker() error {
	if err := r.drainRing(); err != nil {
		return err
	}

	if err := r.binW.Flush(); err != nil {
		return trackerr.Wrap(trackerr.IoError, err, "flushing thread event log")
	}

	if err := r.binFile.Close(); err != nil {
		return trackerr.Wrap(trackerr.IoError, err, "closing thread event log")
	}

	if r.freqFile != nil {
		if err := writeHistogram(r.freqFile, r.histogram); err != nil {
			_ = r.freqFile.Close()

			return trackerr.Wrap(trackerr.SerializationError, err, "writing frequency histogram")
		}

		if err := r.freqFile.Close(); err != nil {
			return trackerr.Wrap(trackerr.IoError, err, "closing thread frequency log")
		}
	}

	return nil
}

// Emitted returns how many events were actually written to disk (as
// opposed to only counted in the histogram).
func (r *Recorder) Emitted() uint64 { return r.emitted }

// Histogram returns a copy of the running per-class counters.
func (r *Recorder) Histogram() Histogram { return r.histogram }
