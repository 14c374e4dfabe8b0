package binfmt

import (
	"encoding/binary"
	"io"
)

// The lock-free event log (internal/lockfree) and the offline aggregator
// encode events with "the same string/integer conventions as §3" (the
// spec's words for §6's per-thread log files) without being allocation
// records themselves, so the primitive read/write helpers are exported
// here rather than duplicated.

func WriteU32(w io.Writer, v uint32) error {
	var b [4]byte

	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])

	return err
}

func ReadU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(b[:]), nil
}

func WriteU64(w io.Writer, v uint64) error {
	var b [8]byte

	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])

	return err
}

func ReadU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(b[:]), nil
}

func WriteByte(w io.Writer, v byte) error {
	_, err := w.Write([]byte{v})

	return err
}

func ReadByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}

	return b[0], nil
}

// WriteStr writes a length-prefixed UTF-8 string (the "str" convention).
func WriteStr(w io.Writer, s string) error {
	if err := WriteU32(w, uint32(len(s))); err != nil {
		return err
	}

	_, err := io.WriteString(w, s)

	return err
}

// ReadStr reads a length-prefixed UTF-8 string.
func ReadStr(r io.Reader) (string, error) {
	n, err := ReadU32(r)
	if err != nil {
		return "", err
	}

	if n == 0 {
		return "", nil
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}

	return string(buf), nil
}

// WriteStrVec writes a count-prefixed vector of strings (the "optvec_str"
// convention with count==0 meaning none).
func WriteStrVec(w io.Writer, vec []string) error {
	if err := WriteU32(w, uint32(len(vec))); err != nil {
		return err
	}

	for _, s := range vec {
		if err := WriteStr(w, s); err != nil {
			return err
		}
	}

	return nil
}

// ReadStrVec reads a count-prefixed vector of strings.
func ReadStrVec(r io.Reader) ([]string, error) {
	n, err := ReadU32(r)
	if err != nil {
		return nil, err
	}

	if n == 0 {
		return nil, nil
	}

	out := make([]string, 0, n)

	for i := uint32(0); i < n; i++ {
		s, err := ReadStr(r)
		if err != nil {
			return nil, err
		}

		out = append(out, s)
	}

	return out, nil
}
