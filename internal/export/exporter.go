// Package export implements §4.L: the fixed set of JSON export bundles
// (memory analysis, lifetime, performance, unsafe/FFI, complex types) plus
// the binary container export/import path of §4.K, driven by a small state
// machine that takes one snapshot per run to avoid torn reads across
// bundles.
package export

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/orizon-lang/memscope/internal/binio"
	"github.com/orizon-lang/memscope/internal/record"
	"github.com/orizon-lang/memscope/internal/trackerr"
)

// BundleResult is the per-bundle outcome of an ExportAnalysisBundles run.
type BundleResult struct {
	Name BundleName
	Path string
	Err  error
}

// Result is the overall outcome: State is StateSuccess only if every
// bundle's Err is nil, StatePartial if at least one succeeded and at least
// one failed, StateFailed if the gather step itself failed or none wrote.
type Result struct {
	State   State
	Bundles []BundleResult
}

// Exporter drives the GATHERING -> WRITING state machine of §4.L over a
// Source (and optional unsafe/FFI sub-tracker).
type Exporter struct {
	src       Source
	unsafeSrc UnsafeSource
	state     State
}

// New constructs an Exporter. unsafeSrc may be nil when the caller does not
// run an unsafe/FFI sub-tracker, in which case the unsafe_ffi bundle is
// still written, with empty allocations/boundary/violations.
func New(src Source, unsafeSrc UnsafeSource) *Exporter {
	return &Exporter{src: src, unsafeSrc: unsafeSrc, state: StateIdle}
}

// State returns the exporter's current state.
func (e *Exporter) State() State { return e.state }

// ExportAnalysisBundles implements §6's export_analysis_bundles(base_name):
// it gathers one snapshot and writes all five bundles to
// "<baseName>.<bundle>.json", continuing past any individual bundle's
// write failure so the others still land (§4.L: "partial failure of one
// bundle does not abort the others").
func (e *Exporter) ExportAnalysisBundles(baseName string) (Result, error) {
	e.state = StateGathering

	snap, err := Gather(e.src, e.unsafeSrc)
	if err != nil {
		e.state = StateFailed
		return Result{State: StateFailed}, trackerr.Wrap(trackerr.IoError, err, "gathering export snapshot")
	}

	e.state = StateWriting

	builders := map[BundleName]func(Snapshot) (any, error){
		BundleMemoryAnalysis: func(s Snapshot) (any, error) { return buildMemoryAnalysis(s), nil },
		BundleLifetime:       func(s Snapshot) (any, error) { return buildLifetime(s), nil },
		BundlePerformance:    func(s Snapshot) (any, error) { return buildPerformance(s), nil },
		BundleUnsafeFFI:      func(s Snapshot) (any, error) { return buildUnsafeFFI(s), nil },
		BundleComplexTypes:   func(s Snapshot) (any, error) { return buildComplexTypes(s), nil },
	}

	results := make([]BundleResult, 0, len(AllBundles))

	successCount := 0

	for _, name := range AllBundles {
		path := fmt.Sprintf("%s.%s.json", baseName, name)

		payload, _ := builders[name](snap)

		writeErr := writeJSONFile(path, payload)
		if writeErr != nil {
			writeErr = trackerr.Wrap(trackerr.IoError, writeErr, "writing %s bundle", name)
		} else {
			successCount++
		}

		results = append(results, BundleResult{Name: name, Path: path, Err: writeErr})
	}

	switch {
	case successCount == len(AllBundles):
		e.state = StateSuccess
		return Result{State: StateSuccess, Bundles: results}, nil
	case successCount == 0:
		e.state = StateFailed
		return Result{State: StateFailed, Bundles: results}, trackerr.New(trackerr.IoError, "all export bundles failed to write")
	default:
		e.state = StatePartial
		return Result{State: StatePartial, Bundles: results}, trackerr.New(trackerr.IoError, "%d of %d export bundles failed", len(AllBundles)-successCount, len(AllBundles))
	}
}

// writeJSONFile marshals payload with stable field ordering (struct field
// order) and 2-space indentation — §4.L prefers "stable field names over
// compactness".
func writeJSONFile(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// ExportBinary implements §6's export_binary(path): writes the snapshot's
// active and history records as a single binary container (§3, §4.J). The
// snapshot taken here is gathered fresh, independent of any prior call to
// ExportAnalysisBundles.
func (e *Exporter) ExportBinary(path string) error {
	snap, err := Gather(e.src, e.unsafeSrc)
	if err != nil {
		return trackerr.Wrap(trackerr.IoError, err, "gathering binary export snapshot")
	}

	w, err := binio.Create(path)
	if err != nil {
		return err
	}

	all := make([]record.AllocationRecord, 0, len(snap.Active)+len(snap.History))
	all = append(all, snap.Active...)
	all = append(all, snap.History...)

	for _, rec := range all {
		if err := w.Append(rec); err != nil {
			return err
		}
	}

	return w.Finish()
}

// ReadBinary implements §6's read_binary(path) by delegating to §4.K's
// consumer-facing helper.
func ReadBinary(path string) ([]record.AllocationRecord, error) {
	return binio.ReadBinary(path)
}
