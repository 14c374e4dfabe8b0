// Package obslog is the module's one logging seam: a thin wrapper over the
// standard log package with leveled helpers, in the same spirit as the
// teacher's ad hoc fmt.Sprintf-based diagnostics. The tracker operations
// and the CLI do not log through it; its callers are the warnings of
// internal/aggregate's live mode and internal/livetail's stream handler.
package obslog

import (
	"log"
	"os"
	"sync/atomic"
)

// Level orders verbosity from quietest to loudest.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

var (
	logger       = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
	currentLevel atomic.Int32
)

func init() {
	currentLevel.Store(int32(LevelInfo))
}

// SetLevel changes the minimum level that is actually written.
func SetLevel(l Level) { currentLevel.Store(int32(l)) }

func enabled(l Level) bool { return int32(l) <= currentLevel.Load() }

func Errorf(format string, args ...any) {
	if enabled(LevelError) {
		logger.Printf("ERROR "+format, args...)
	}
}

func Warnf(format string, args ...any) {
	if enabled(LevelWarn) {
		logger.Printf("WARN  "+format, args...)
	}
}

func Infof(format string, args ...any) {
	if enabled(LevelInfo) {
		logger.Printf("INFO  "+format, args...)
	}
}

func Debugf(format string, args ...any) {
	if enabled(LevelDebug) {
		logger.Printf("DEBUG "+format, args...)
	}
}

// SwallowedCounter is an atomic counter for errors that a caller drops
// instead of propagating. internal/tracker.Tracker has one (Swallowed); no
// code in this module increments it.
type SwallowedCounter struct {
	n atomic.Uint64
}

func (c *SwallowedCounter) Inc() { c.n.Add(1) }

func (c *SwallowedCounter) Load() uint64 { return c.n.Load() }
