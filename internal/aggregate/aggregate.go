// Package aggregate implements §4.I: the offline aggregator that walks a
// directory of per-thread lock-free logs and merges them into a unified
// analysis — per-thread statistics, call-site digests, cross-thread
// interaction candidates, hottest call sites, and bottleneck heuristics.
package aggregate

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/orizon-lang/memscope/internal/lockfree"
)

// ThreadStats is the per-thread rollup of §4.I.
type ThreadStats struct {
	ThreadID           uint64
	TotalAllocations   uint64
	TotalDeallocations uint64
	SampledEvents      uint64
	BytesSampled       uint64
	Histogram          lockfree.Histogram
	Config             lockfree.Config // carried per thread; mixed configs across threads are expected
	Timeline           []TimelinePoint
}

// TimelinePoint is one allocation-frequency bucket in a thread's timeline.
type TimelinePoint struct {
	AtNano int64
	Bytes  uint64
}

// Digest identifies a call site by the hash of its address tuple.
type Digest uint64

// CallSite groups every sampled event that shares the same stack.
type CallSite struct {
	Digest  Digest
	Stack   []uint64
	Count   uint64
	Bytes   uint64
	Threads map[uint64]uint64 // thread id -> events at this site on that thread
}

// Bottleneck flags a single call site that dominates one thread's
// allocations.
type Bottleneck struct {
	ThreadID uint64
	Digest   Digest
	Share    float64 // fraction of the thread's sampled allocations
}

// Result is the aggregator's unified output.
type Result struct {
	PerThread    map[uint64]*ThreadStats
	CallSites    map[Digest]*CallSite
	Interactions []Digest
	Hottest      []Digest
	Bottlenecks  []Bottleneck
}

// Options configures a Run.
type Options struct {
	TopN            int     // hottest call sites to keep; 0 means 10
	BottleneckShare float64 // share above which a call site is flagged; 0 means 0.5
}

func (o Options) normalized() Options {
	if o.TopN <= 0 {
		o.TopN = 10
	}

	if o.BottleneckShare <= 0 {
		o.BottleneckShare = 0.5
	}

	return o
}

var threadFileRe = regexp.MustCompile(`^thread_(\d+)\.bin$`)

// DiscoverThreadIDs lists every thread id with a .bin file in dir. Missing
// or unreadable directories yield an empty slice, not an error — "missing
// files (treated as zero data)" (§4.I) extends to the directory itself.
func DiscoverThreadIDs(dir string) []uint64 {
	matches, err := filepath.Glob(filepath.Join(dir, "thread_*.bin"))
	if err != nil {
		return nil
	}

	ids := make([]uint64, 0, len(matches))

	for _, m := range matches {
		base := filepath.Base(m)

		sub := threadFileRe.FindStringSubmatch(base)
		if sub == nil {
			continue
		}

		id, err := strconv.ParseUint(sub[1], 10, 64)
		if err != nil {
			continue
		}

		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// Run walks dir and produces the unified analysis. It is robust to missing
// files, truncated records, and mixed sampling configurations across
// threads per §4.I's explicit robustness requirements.
func Run(dir string, cfgByThread map[uint64]lockfree.Config, opts Options) (*Result, error) {
	opts = opts.normalized()

	ids := DiscoverThreadIDs(dir)

	result := &Result{
		PerThread: make(map[uint64]*ThreadStats, len(ids)),
		CallSites: make(map[Digest]*CallSite),
	}

	for _, id := range ids {
		events, err := lockfree.ReadEventLog(lockfree.BinPath(dir, id))
		if err != nil {
			return nil, err
		}

		hist, _, err := lockfree.ReadHistogram(lockfree.FreqPath(dir, id))
		if err != nil {
			return nil, err
		}

		stats := &ThreadStats{ThreadID: id, Histogram: hist, Config: cfgByThread[id]}

		for _, ev := range events {
			switch ev.Kind {
			case lockfree.EventAllocation:
				stats.TotalAllocations++
				stats.SampledEvents++
				stats.BytesSampled += ev.Size
				stats.Timeline = append(stats.Timeline, TimelinePoint{AtNano: ev.TimestampNano, Bytes: ev.Size})
			case lockfree.EventDeallocation:
				stats.TotalDeallocations++
				stats.SampledEvents++
			}

			if len(ev.CallStack) == 0 {
				continue
			}

			digest := digestStack(ev.CallStack)

			cs, ok := result.CallSites[digest]
			if !ok {
				cs = &CallSite{Digest: digest, Stack: ev.CallStack, Threads: make(map[uint64]uint64)}
				result.CallSites[digest] = cs
			}

			cs.Count++
			cs.Bytes += ev.Size
			cs.Threads[id]++
		}

		result.PerThread[id] = stats
	}

	result.Interactions = interactions(result.CallSites)
	result.Hottest = hottest(result.CallSites, opts.TopN)
	result.Bottlenecks = bottlenecks(result, opts.BottleneckShare)

	return result, nil
}

// digestStack hashes a call-site address tuple with FNV-1a-style mixing.
func digestStack(stack []uint64) Digest {
	var h uint64 = 1469598103934665603

	for _, frame := range stack {
		for i := 0; i < 8; i++ {
			h ^= (frame >> (8 * i)) & 0xff
			h *= 1099511628211
		}
	}

	return Digest(h)
}

func interactions(sites map[Digest]*CallSite) []Digest {
	var out []Digest

	for digest, cs := range sites {
		if len(cs.Threads) >= 2 {
			out = append(out, digest)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

func hottest(sites map[Digest]*CallSite, topN int) []Digest {
	all := make([]Digest, 0, len(sites))
	for d := range sites {
		all = append(all, d)
	}

	sort.Slice(all, func(i, j int) bool {
		a, b := sites[all[i]], sites[all[j]]
		if a.Count != b.Count {
			return a.Count > b.Count
		}

		return a.Bytes > b.Bytes
	})

	if len(all) > topN {
		all = all[:topN]
	}

	return all
}

func bottlenecks(result *Result, share float64) []Bottleneck {
	perThreadTotals := make(map[uint64]uint64, len(result.PerThread))
	for id, stats := range result.PerThread {
		perThreadTotals[id] = stats.SampledEvents
	}

	perThreadTopCount := make(map[uint64]map[Digest]uint64)

	for digest, cs := range result.CallSites {
		for id, n := range cs.Threads {
			if perThreadTopCount[id] == nil {
				perThreadTopCount[id] = make(map[Digest]uint64)
			}

			perThreadTopCount[id][digest] += n
		}
	}

	var out []Bottleneck

	for id, byDigest := range perThreadTopCount {
		total := perThreadTotals[id]
		if total == 0 {
			continue
		}

		for digest, count := range byDigest {
			frac := float64(count) / float64(total)
			if frac > share {
				out = append(out, Bottleneck{ThreadID: id, Digest: digest, Share: frac})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Share > out[j].Share })

	return out
}
