// Package intern implements the string interner of §4.A: a global,
// thread-safe mapping from string content to shared immutable handles.
// Interning is idempotent and O(len), handles compare by identity in O(1),
// and capacity is unbounded — the interner holds process-lifetime strings,
// matching the spec's explicit "evictions are not supported" rule.
package intern

import "unique"

// Handle is a cheaply-cloned, identity-comparable reference to an interned
// string. The zero Handle represents "no string interned" and is used as
// the sentinel for AllocationRecord's optional name/type/scope fields.
type Handle struct {
	h unique.Handle[string]
	// set distinguishes the zero Handle (never interned) from an interned
	// empty string, since unique.Handle's zero value is indistinguishable
	// from unique.Make("").
	set bool
}

// Intern returns the shared handle for s, creating it on first use. It
// never fails on valid UTF-8 input and is safe to call from any number of
// concurrent goroutines.
func Intern(s string) Handle {
	return Handle{h: unique.Make(s), set: true}
}

// Valid reports whether h was produced by Intern (as opposed to a zero
// Handle standing in for an absent optional field).
func (h Handle) Valid() bool { return h.set }

// String returns the interned content, or "" for a zero Handle.
func (h Handle) String() string {
	if !h.set {
		return ""
	}

	return h.h.Value()
}

// Equal reports identity equality: two handles are Equal iff they were
// interned from equal string content, checked in O(1) via unique.Handle's
// comparable key rather than a content comparison.
func (h Handle) Equal(other Handle) bool {
	if h.set != other.set {
		return false
	}

	if !h.set {
		return true
	}

	return h.h == other.h
}

// InternOptional interns s unless it is empty, returning the zero Handle
// for an absent optional field (var_name, type_name, scope_name are all
// optional per §3).
func InternOptional(s string) Handle {
	if s == "" {
		return Handle{}
	}

	return Intern(s)
}
