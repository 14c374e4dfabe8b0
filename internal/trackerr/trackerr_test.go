package trackerr

import (
	"errors"
	"strings"
	"testing"
)

func TestNew_IsMatchesKind(t *testing.T) {
	err := New(InvalidPointer, "no allocation at %#x", 0x100)

	if !Is(err, InvalidPointer) {
		t.Fatalf("expected Is(err, InvalidPointer) to be true")
	}

	if Is(err, CorruptedData) {
		t.Fatalf("expected Is(err, CorruptedData) to be false")
	}

	if !errors.Is(err, sentinels[InvalidPointer]) {
		t.Fatalf("expected errors.Is to match the kind sentinel")
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("underlying io failure")
	wrapped := Wrap(IoError, cause, "writing header")

	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected wrapped error to satisfy errors.Is against cause")
	}

	if !Is(wrapped, IoError) {
		t.Fatalf("expected wrapped error to carry kind IoError")
	}
}

func TestWithContext_AttachesValue(t *testing.T) {
	err := New(InvalidPointer, "bad pointer").WithContext("pointer", uintptr(0x42))

	if err.Context["pointer"] != uintptr(0x42) {
		t.Fatalf("expected context value preserved, got %v", err.Context["pointer"])
	}
}

func TestError_MessageIncludesKindAndText(t *testing.T) {
	err := New(ThreadSafetyError, "lock poisoned")

	msg := err.Error()
	if !strings.Contains(msg, string(ThreadSafetyError)) || !strings.Contains(msg, "lock poisoned") {
		t.Fatalf("expected message to include kind and text, got %q", msg)
	}
}
