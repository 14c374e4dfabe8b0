// Package binio implements §4.K, the buffered streaming reader/writer over
// the binfmt container: Writer opens a file, emits a placeholder header,
// appends records, and rewrites the header with the final count on
// Finish; Reader validates the header and exposes both a read-all and a
// pull (one-record-at-a-time) interface. A stream that ends before the
// header's record count, whether mid-record or at a record boundary, is
// reported as CorruptedData citing the byte offset, as are bytes after the
// last record when read through ReadAll; a truncated file is not read as a shorter valid one, and
// only the records Next returned before the error are available.
package binio

import (
	"bufio"
	"os"

	"github.com/orizon-lang/memscope/internal/binfmt"
	"github.com/orizon-lang/memscope/internal/record"
	"github.com/orizon-lang/memscope/internal/trackerr"
)

// Writer buffers writes to a single binary container file.
type Writer struct {
	f     *os.File
	bw    *bufio.Writer
	count uint32
}

// Create opens path for writing and emits the placeholder header
// (version set, count=0).
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, trackerr.Wrap(trackerr.IoError, err, "creating binary container %s", path)
	}

	w := &Writer{f: f, bw: bufio.NewWriter(f)}

	if err := w.writeHeader(0); err != nil {
		_ = f.Close()

		return nil, err
	}

	return w, nil
}

func (w *Writer) writeHeader(count uint32) error {
	if _, err := w.f.Seek(0, 0); err != nil {
		return trackerr.Wrap(trackerr.IoError, err, "seeking to header")
	}

	buf := make([]byte, binfmt.HeaderSize)
	copy(buf[0:8], binfmt.Magic[:])

	putU32(buf[8:12], binfmt.CurrentVersion())
	putU32(buf[12:16], count)

	if _, err := w.f.Write(buf); err != nil {
		return trackerr.Wrap(trackerr.IoError, err, "writing header")
	}

	if _, err := w.f.Seek(0, 2); err != nil {
		return trackerr.Wrap(trackerr.IoError, err, "seeking to append position")
	}

	return nil
}

// Append writes one record and increments the stored count. Every
// structural write is fallible; a failure here can leave a truncated but
// still-recoverable file, per §4.K.
func (w *Writer) Append(rec record.AllocationRecord) error {
	if err := binfmt.WriteRecord(w.bw, rec); err != nil {
		return err
	}

	w.count++

	return nil
}

// Finish flushes buffered data, rewrites the header with the final record
// count, and closes the file.
func (w *Writer) Finish() error {
	if err := w.bw.Flush(); err != nil {
		return trackerr.Wrap(trackerr.IoError, err, "flushing container")
	}

	if err := w.writeHeader(w.count); err != nil {
		return err
	}

	if _, err := w.f.Seek(0, 2); err != nil {
		return trackerr.Wrap(trackerr.IoError, err, "seeking to end before close")
	}

	if err := w.f.Close(); err != nil {
		return trackerr.Wrap(trackerr.IoError, err, "closing container")
	}

	return nil
}

// FinishWithCount is the caller-provides-the-count variant of Finish: it
// trusts wantCount rather than the writer's own tally (useful when the
// caller pre-validated it elsewhere) but otherwise behaves identically.
func (w *Writer) FinishWithCount(wantCount uint32) error {
	w.count = wantCount

	return w.Finish()
}

func putU32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}
