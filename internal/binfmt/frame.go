package binfmt

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/orizon-lang/memscope/internal/record"
	"github.com/orizon-lang/memscope/internal/trackerr"
)

// frameHeaderSize is kind:u8 + length:u32(LE).
const frameHeaderSize = 1 + 4

// WriteRecord writes one kind-prefixed, length-prefixed record frame. The
// value is built in memory first so its length can be written before the
// bytes themselves, as the format requires.
func WriteRecord(w io.Writer, rec record.AllocationRecord) error {
	var buf bytes.Buffer
	if err := WriteValue(&buf, rec); err != nil {
		return trackerr.Wrap(trackerr.SerializationError, err, "encoding allocation record value")
	}

	header := make([]byte, frameHeaderSize)
	header[0] = byte(KindAllocationRecord)
	binary.LittleEndian.PutUint32(header[1:], uint32(buf.Len()))

	if _, err := w.Write(header); err != nil {
		return trackerr.Wrap(trackerr.IoError, err, "writing record frame header")
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return trackerr.Wrap(trackerr.IoError, err, "writing record frame value")
	}

	return nil
}

// ReadRecord reads one record frame. Unknown kinds and truncated values are
// reported as CorruptedData; callers that track stream offset should wrap
// r to annotate the returned error with a byte offset (internal/binio
// does this).
func ReadRecord(r io.Reader) (record.AllocationRecord, error) {
	var header [frameHeaderSize]byte

	if _, err := io.ReadFull(r, header[:]); err != nil {
		return record.AllocationRecord{}, err
	}

	kind := Kind(header[0])
	length := binary.LittleEndian.Uint32(header[1:])

	value := make([]byte, length)
	if _, err := io.ReadFull(r, value); err != nil {
		return record.AllocationRecord{}, trackerr.Wrap(trackerr.CorruptedData, err,
			"truncated record value: wanted %d bytes", length)
	}

	if kind != KindAllocationRecord {
		return record.AllocationRecord{}, trackerr.New(trackerr.CorruptedData, "unknown record kind %d", kind)
	}

	rec, err := ReadValue(bytes.NewReader(value))
	if err != nil {
		return record.AllocationRecord{}, trackerr.Wrap(trackerr.CorruptedData, err, "decoding record value")
	}

	return rec, nil
}
