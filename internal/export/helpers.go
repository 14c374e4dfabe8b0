package export

import (
	"encoding/json"
	"strconv"
)

// rawOrNull wraps a json.RawMessage so it marshals as the embedded JSON
// value itself rather than as a base64 string, the behaviour a plain
// json.RawMessage field already has — the wrapper exists purely so a nil
// *rawOrNull can be omitted via the struct tag's omitempty, which plain
// json.RawMessage (a []byte) also supports, but a non-pointer field cannot
// distinguish "absent" from "explicit JSON null".
type rawOrNull struct {
	raw json.RawMessage
}

func (r *rawOrNull) MarshalJSON() ([]byte, error) {
	if r == nil || len(r.raw) == 0 {
		return []byte("null"), nil
	}

	return r.raw, nil
}

// rawOrNullOf returns nil when raw carries no payload (the optional
// analysis slot was never populated), so the bundle's omitempty tag drops
// the field entirely instead of emitting an explicit null.
func rawOrNullOf(raw json.RawMessage) *rawOrNull {
	if len(raw) == 0 {
		return nil
	}

	return &rawOrNull{raw: raw}
}

// formatPointer renders a pointer as a base-10 decimal string. §6 specifies
// "numeric fields use base-10"; pointers are kept as strings rather than
// raw JSON numbers since a 64-bit address can exceed the safe integer range
// of common JSON consumers.
func formatPointer(ptr uintptr) string {
	return strconv.FormatUint(uint64(ptr), 10)
}
