package main

import "github.com/orizon-lang/memscope/internal/record"

// staticSource adapts a flat slice of records read back from a binary
// snapshot into export.Source. A binary container does not distinguish
// active from completed records (§3's has_dealloc flag carries that
// distinction per-record instead), so records with HasDealloc set form the
// history and records with it unset form the active set.
type staticSource struct {
	records []record.AllocationRecord
}

func (s *staticSource) GetStats() (record.TrackingStatistics, error) {
	var stats record.TrackingStatistics

	for _, r := range s.records {
		stats.TotalAllocations++

		if r.HasDealloc {
			stats.TotalDeallocations++
		} else {
			stats.ActiveAllocations++
			stats.ActiveBytes += r.SizeBytes
		}

		if stats.ActiveBytes > stats.PeakBytes {
			stats.PeakBytes = stats.ActiveBytes
		}
	}

	return stats, nil
}

func (s *staticSource) GetActiveAllocations() ([]record.AllocationRecord, error) {
	var active []record.AllocationRecord

	for _, r := range s.records {
		if !r.HasDealloc {
			active = append(active, r)
		}
	}

	return active, nil
}

func (s *staticSource) GetHistory() ([]record.AllocationRecord, error) {
	var history []record.AllocationRecord

	for _, r := range s.records {
		if r.HasDealloc {
			history = append(history, r)
		}
	}

	return history, nil
}
