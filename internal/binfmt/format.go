// Package binfmt defines the binary container's TLV layout (§3, §4.J): an
// 8-byte magic, a packed version, a record count, and a stream of
// kind-prefixed, length-prefixed records. It owns the byte-level encode and
// decode of one AllocationRecord's Value and nothing about file I/O — that
// is internal/binio's job.
package binfmt

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/orizon-lang/memscope/internal/trackerr"
)

// Magic is the fixed 8-byte file signature, "MEMSCOPE".
var Magic = [8]byte{'M', 'E', 'M', 'S', 'C', 'O', 'P', 'E'}

// HeaderSize is the fixed header length in bytes: magic[8] + version:u32 +
// count:u32.
const HeaderSize = 8 + 4 + 4

// Current format version, packed as major<<16 | minor<<8 | patch and
// compared with a semver constraint so that any same-major version is
// accepted and a major bump is rejected outright (§4.J).
const (
	FormatMajor = 1
	FormatMinor = 0
	FormatPatch = 0
)

// Kind tags a record's payload type. Only allocation records exist;
// ReadRecord rejects a record of any other kind as CorruptedData.
type Kind uint8

const KindAllocationRecord Kind = 1

// Header is the container's fixed preamble.
type Header struct {
	Version uint32
	Count   uint32
}

// PackVersion encodes major.minor.patch into the header's version field.
func PackVersion(major, minor, patch uint8) uint32 {
	return uint32(major)<<16 | uint32(minor)<<8 | uint32(patch)
}

// UnpackVersion reverses PackVersion.
func UnpackVersion(v uint32) (major, minor, patch uint8) {
	return uint8(v >> 16), uint8(v >> 8), uint8(v)
}

// CurrentVersion is the version this build writes.
func CurrentVersion() uint32 {
	return PackVersion(FormatMajor, FormatMinor, FormatPatch)
}

var formatConstraint = mustConstraint(fmt.Sprintf(">= %d.0.0, < %d.0.0", FormatMajor, FormatMajor+1))

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraints(s)
	if err != nil {
		panic(err)
	}

	return c
}

// CheckVersion validates a header's packed version against the format
// constraint: a major mismatch is UnsupportedVersion, anything within the
// current major (older or newer minor/patch) is accepted.
func CheckVersion(packed uint32) error {
	major, minor, patch := UnpackVersion(packed)

	v, err := semver.NewVersion(fmt.Sprintf("%d.%d.%d", major, minor, patch))
	if err != nil {
		return trackerr.New(trackerr.UnsupportedVersion, "malformed version %d.%d.%d", major, minor, patch)
	}

	if !formatConstraint.Check(v) {
		return trackerr.New(trackerr.UnsupportedVersion,
			"binary format major version %d is unsupported (this build supports %d.x)", major, FormatMajor).
			WithContext("fileVersion", v.String())
	}

	return nil
}
