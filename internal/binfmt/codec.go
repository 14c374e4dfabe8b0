package binfmt

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/orizon-lang/memscope/internal/intern"
	"github.com/orizon-lang/memscope/internal/record"
	"github.com/orizon-lang/memscope/internal/trackerr"
)

// WriteValue encodes rec's Value bytes (§3) to w in field order, through a
// bufio.Writer that is flushed after the last field.
func WriteValue(w io.Writer, rec record.AllocationRecord) error {
	bw := bufio.NewWriter(w)

	var u64 [8]byte

	putU64 := func(v uint64) error {
		binary.LittleEndian.PutUint64(u64[:], v)
		_, err := bw.Write(u64[:])

		return err
	}

	if err := putU64(uint64(rec.Pointer)); err != nil {
		return err
	}

	if err := putU64(rec.SizeBytes); err != nil {
		return err
	}

	if err := putU64(uint64(rec.AllocatedAt)); err != nil {
		return err
	}

	if err := writeBool(bw, rec.HasDealloc); err != nil {
		return err
	}

	if rec.HasDealloc {
		if err := putU64(uint64(rec.DeallocAt)); err != nil {
			return err
		}
	}

	if err := writeOptStr(bw, rec.VariableName); err != nil {
		return err
	}

	if err := writeOptStr(bw, rec.TypeName); err != nil {
		return err
	}

	if err := writeOptStr(bw, rec.ScopeName); err != nil {
		return err
	}

	if err := writeStr(bw, rec.ThreadLabel.String()); err != nil {
		return err
	}

	if err := writeOptVecStr(bw, rec.StackFrames); err != nil {
		return err
	}

	var u32 [4]byte

	binary.LittleEndian.PutUint32(u32[:], rec.BorrowCount)
	if _, err := bw.Write(u32[:]); err != nil {
		return err
	}

	if err := writeBool(bw, rec.IsLeaked); err != nil {
		return err
	}

	if err := writeBool(bw, rec.HasLifetime); err != nil {
		return err
	}

	if rec.HasLifetime {
		if err := putU64(rec.LifetimeMs); err != nil {
			return err
		}
	}

	fields := rec.Analyses.Fields()
	for _, f := range fields {
		if err := writeOptJSON(bw, *f); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// ReadValue decodes one Value from r in the same field order WriteValue
// uses. Malformed optional JSON is surfaced as CorruptedData rather than
// silently dropped (§4.K).
func ReadValue(r io.Reader) (record.AllocationRecord, error) {
	var rec record.AllocationRecord

	var u64 [8]byte

	readU64 := func() (uint64, error) {
		if _, err := io.ReadFull(r, u64[:]); err != nil {
			return 0, err
		}

		return binary.LittleEndian.Uint64(u64[:]), nil
	}

	ptr, err := readU64()
	if err != nil {
		return rec, err
	}

	rec.Pointer = uintptr(ptr)

	size, err := readU64()
	if err != nil {
		return rec, err
	}

	rec.SizeBytes = size

	allocAt, err := readU64()
	if err != nil {
		return rec, err
	}

	rec.AllocatedAt = int64(allocAt)

	hasDealloc, err := readBool(r)
	if err != nil {
		return rec, err
	}

	rec.HasDealloc = hasDealloc

	if hasDealloc {
		deallocAt, err := readU64()
		if err != nil {
			return rec, err
		}

		rec.DeallocAt = int64(deallocAt)
	}

	varName, err := readOptStr(r)
	if err != nil {
		return rec, err
	}

	rec.VariableName = intern.InternOptional(varName)

	typeName, err := readOptStr(r)
	if err != nil {
		return rec, err
	}

	rec.TypeName = intern.InternOptional(typeName)

	scopeName, err := readOptStr(r)
	if err != nil {
		return rec, err
	}

	rec.ScopeName = intern.InternOptional(scopeName)

	threadLabel, err := readStr(r)
	if err != nil {
		return rec, err
	}

	rec.ThreadLabel = intern.Intern(threadLabel)

	frames, err := readOptVecStr(r)
	if err != nil {
		return rec, err
	}

	rec.StackFrames = frames

	var u32 [4]byte

	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return rec, err
	}

	rec.BorrowCount = binary.LittleEndian.Uint32(u32[:])

	isLeaked, err := readBool(r)
	if err != nil {
		return rec, err
	}

	rec.IsLeaked = isLeaked

	hasLifetime, err := readBool(r)
	if err != nil {
		return rec, err
	}

	rec.HasLifetime = hasLifetime

	if hasLifetime {
		lifetime, err := readU64()
		if err != nil {
			return rec, err
		}

		rec.LifetimeMs = lifetime
	}

	fields := rec.Analyses.Fields()
	for _, f := range fields {
		raw, err := readOptJSON(r)
		if err != nil {
			return rec, err
		}

		*f = raw
	}

	return rec, nil
}

func writeBool(w io.Writer, b bool) error {
	v := byte(0)
	if b {
		v = 1
	}

	_, err := w.Write([]byte{v})

	return err
}

func readBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}

	return b[0] != 0, nil
}

func writeStr(w io.Writer, s string) error {
	var lenBytes [4]byte

	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(s)))
	if _, err := w.Write(lenBytes[:]); err != nil {
		return err
	}

	_, err := io.WriteString(w, s)

	return err
}

func readStr(r io.Reader) (string, error) {
	var lenBytes [4]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		return "", err
	}

	n := binary.LittleEndian.Uint32(lenBytes[:])
	if n == 0 {
		return "", nil
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}

	return string(buf), nil
}

func writeOptStr(w io.Writer, h intern.Handle) error {
	if !h.Valid() {
		var zero [4]byte

		_, err := w.Write(zero[:])

		return err
	}

	return writeStr(w, h.String())
}

func readOptStr(r io.Reader) (string, error) {
	return readStr(r)
}

func writeOptVecStr(w io.Writer, frames []string) error {
	var lenBytes [4]byte

	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(frames)))
	if _, err := w.Write(lenBytes[:]); err != nil {
		return err
	}

	for _, f := range frames {
		if err := writeStr(w, f); err != nil {
			return err
		}
	}

	return nil
}

func readOptVecStr(r io.Reader) ([]string, error) {
	var lenBytes [4]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		return nil, err
	}

	n := binary.LittleEndian.Uint32(lenBytes[:])
	if n == 0 {
		return nil, nil
	}

	out := make([]string, 0, n)

	for i := uint32(0); i < n; i++ {
		s, err := readStr(r)
		if err != nil {
			return nil, err
		}

		out = append(out, s)
	}

	return out, nil
}

func writeOptJSON(w io.Writer, raw json.RawMessage) error {
	if len(raw) == 0 {
		_, err := w.Write([]byte{0})

		return err
	}

	if _, err := w.Write([]byte{1}); err != nil {
		return err
	}

	return writeStr(w, string(raw))
}

func readOptJSON(r io.Reader) (json.RawMessage, error) {
	flag, err := readBool(r)
	if err != nil {
		return nil, err
	}

	if !flag {
		return nil, nil
	}

	s, err := readStr(r)
	if err != nil {
		return nil, err
	}

	if !json.Valid([]byte(s)) {
		return nil, trackerr.New(trackerr.CorruptedData, "optional analysis payload is not valid JSON")
	}

	return json.RawMessage(s), nil
}
