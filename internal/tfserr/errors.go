// Package tfserr defines the error kinds shared across the core: corruption,
// out-of-space, implementation incompatibility, GC busy, inconsistent disk,
// and closed handle.
package tfserr

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfSpace is returned when the freelist is empty with no
	// chained metacluster left to pop.
	ErrOutOfSpace = errors.New("tfs: out of space")

	// ErrBusy is returned by TryGC when another goroutine already holds
	// the garbo lock.
	ErrBusy = errors.New("tfs: gc busy")

	// ErrInconsistent is returned by Open when the disk header's state
	// flag is Inconsistent.
	ErrInconsistent = errors.New("tfs: disk is inconsistent, refusing to open")

	// ErrClosed is returned by operations on a closed handle.
	ErrClosed = errors.New("tfs: handle closed")
)

// CorruptionError reports a failed checksum, magic, terminator, or
// compression-padding check, naming where it was detected.
type CorruptionError struct {
	// What names the failing check, e.g. "disk header checksum".
	What string
	// Sector or Cluster identifies where the corruption was detected.
	// Zero means "not sector-addressed" (e.g. a pure buffer check).
	Sector  uint64
	Want    uint64
	Got     uint64
	HasSums bool
}

func (e *CorruptionError) Error() string {
	if e.HasSums {
		return fmt.Sprintf("tfs: corruption: %s at sector %d: want checksum %#x, got %#x", e.What, e.Sector, e.Want, e.Got)
	}
	return fmt.Sprintf("tfs: corruption: %s at sector %d", e.What, e.Sector)
}

// Is reports whether target is the sentinel ErrCorrupt, so callers can use
// errors.Is(err, tfserr.ErrCorrupt) without type-asserting *CorruptionError.
func (e *CorruptionError) Is(target error) bool {
	return target == ErrCorrupt
}

// ErrCorrupt is the sentinel matched by CorruptionError.Is.
var ErrCorrupt = errors.New("tfs: corruption")

// ImplementationError reports a field whose value falls in an
// implementation-defined range the current build does not recognize, or an
// incompatible major version.
type ImplementationError struct {
	What string
}

func (e *ImplementationError) Error() string {
	return fmt.Sprintf("tfs: unsupported: %s", e.What)
}

func (e *ImplementationError) Is(target error) bool {
	return target == ErrImplementation
}

// ErrImplementation is the sentinel matched by ImplementationError.Is.
var ErrImplementation = errors.New("tfs: unsupported")
