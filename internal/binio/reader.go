package binio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/orizon-lang/memscope/internal/binfmt"
	"github.com/orizon-lang/memscope/internal/record"
	"github.com/orizon-lang/memscope/internal/trackerr"
)

// Reader validates the header on open and then exposes either ReadAll or a
// one-record-at-a-time Next.
type Reader struct {
	f      *os.File
	br     *countingReader
	Header binfmt.Header
	read   uint32
}

// countingReader tracks total bytes consumed so corruption errors can cite
// a file offset.
type countingReader struct {
	r      io.Reader
	offset int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.offset += int64(n)

	return n, err
}

// Open opens path, reads and validates the 16-byte header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, trackerr.Wrap(trackerr.IoError, err, "opening binary container %s", path)
	}

	cr := &countingReader{r: bufio.NewReader(f)}

	var raw [binfmt.HeaderSize]byte
	if _, err := io.ReadFull(cr, raw[:]); err != nil {
		_ = f.Close()

		return nil, trackerr.Wrap(trackerr.IoError, err, "reading header")
	}

	if string(raw[0:8]) != string(binfmt.Magic[:]) {
		_ = f.Close()

		return nil, trackerr.New(trackerr.InvalidMagic, "file does not start with the MEMSCOPE magic").
			WithContext("offset", 0)
	}

	version := binary.LittleEndian.Uint32(raw[8:12])
	if err := binfmt.CheckVersion(version); err != nil {
		_ = f.Close()

		return nil, err
	}

	count := binary.LittleEndian.Uint32(raw[12:16])

	return &Reader{
		f:      f,
		br:     cr,
		Header: binfmt.Header{Version: version, Count: count},
	}, nil
}

// Next pulls the next record. It returns io.EOF once Header.Count records
// have been returned; reading past a genuinely truncated stream before
// reaching Count returns CorruptedData citing the byte offset.
func (r *Reader) Next() (record.AllocationRecord, error) {
	if r.read >= r.Header.Count {
		return record.AllocationRecord{}, io.EOF
	}

	rec, err := binfmt.ReadRecord(r.br)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return record.AllocationRecord{}, trackerr.Wrap(trackerr.CorruptedData, err,
				"record stream ended early at byte offset %d (read %d of %d records)",
				r.br.offset, r.read, r.Header.Count)
		}

		return record.AllocationRecord{}, err
	}

	r.read++

	return rec, nil
}

// ReadAll pulls every record declared by the header. A file with trailing
// bytes after Header.Count records is rejected with CorruptedData (§4.J).
func (r *Reader) ReadAll() ([]record.AllocationRecord, error) {
	out := make([]record.AllocationRecord, 0, r.Header.Count)

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, err
		}

		out = append(out, rec)
	}

	if err := r.checkNoTrailingBytes(); err != nil {
		return nil, err
	}

	return out, nil
}

func (r *Reader) checkNoTrailingBytes() error {
	var probe [1]byte

	n, err := r.br.Read(probe[:])
	if n > 0 {
		return trackerr.New(trackerr.CorruptedData,
			"trailing bytes after the declared %d records at offset %d", r.Header.Count, r.br.offset-1)
	}

	if err != nil && !errors.Is(err, io.EOF) {
		return trackerr.Wrap(trackerr.IoError, err, "probing for trailing bytes")
	}

	return nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}

// ReadBinary is the consumer-facing helper of §6: read_binary(path).
func ReadBinary(path string) ([]record.AllocationRecord, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}

	defer func() { _ = r.Close() }()

	return r.ReadAll()
}
