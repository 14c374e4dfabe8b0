package binio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/orizon-lang/memscope/internal/intern"
	"github.com/orizon-lang/memscope/internal/record"
	"github.com/orizon-lang/memscope/internal/trackerr"
)

func sampleRecords() []record.AllocationRecord {
	return []record.AllocationRecord{
		{
			Pointer:     0x1,
			ThreadLabel: intern.Intern("main"),
			AllocatedAt: 10,
			SizeBytes:   8,
		},
		{
			Pointer:     0x2,
			ThreadLabel: intern.Intern("main"),
			AllocatedAt: 20,
			SizeBytes:   16,
			HasDealloc:  true,
			DeallocAt:   30,
			HasLifetime: true,
			LifetimeMs:  10,
		},
	}
}

func TestWriterReader_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.bin")

	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, rec := range sampleRecords() {
		if err := w.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	recs, err := ReadBinary(path)
	if err != nil {
		t.Fatalf("ReadBinary: %v", err)
	}

	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}

	if recs[0].Pointer != 0x1 || recs[1].Pointer != 0x2 {
		t.Fatalf("unexpected record order/content: %+v", recs)
	}
}

func TestOpen_RejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.bin")

	if err := os.WriteFile(path, make([]byte, 16), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Open(path)
	if !trackerr.Is(err, trackerr.InvalidMagic) {
		t.Fatalf("expected InvalidMagic, got %v", err)
	}
}

func TestReadAll_RejectsTrailingBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trailing.bin")

	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := w.Append(sampleRecords()[0]); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	if _, err := f.Write([]byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, err = ReadBinary(path)
	if !trackerr.Is(err, trackerr.CorruptedData) {
		t.Fatalf("expected CorruptedData for trailing bytes, got %v", err)
	}
}

func TestReadAll_TruncatedStreamIsCorruptedData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "truncated.bin")

	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, rec := range sampleRecords() {
		if err := w.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if err := os.WriteFile(path, data[:len(data)-4], 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = ReadBinary(path)
	if !trackerr.Is(err, trackerr.CorruptedData) {
		t.Fatalf("expected CorruptedData for a truncated record stream, got %v", err)
	}
}

func TestReader_NextStopsAtDeclaredCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "next.bin")

	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := w.Append(sampleRecords()[0]); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if r.Header.Count != 1 {
		t.Fatalf("expected header count 1, got %d", r.Header.Count)
	}

	if _, err := r.Next(); err != nil {
		t.Fatalf("first Next: %v", err)
	}

	if _, err := r.Next(); err == nil {
		t.Fatalf("expected io.EOF-equivalent error once count is exhausted")
	}
}
