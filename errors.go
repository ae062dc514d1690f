package appendfs

import (
	"errors"
	"fmt"
)

// ErrIO is the sentinel wrapped by the error Reader.Next returns when a
// Storage read fails. Callers can test for it with errors.Is. Errors from
// Format, Mount and Commit wrap the backend's own error instead
// (storage.ErrIO for the bundled backends), not this sentinel.
var ErrIO = errors.New("appendfs: storage i/o error")

// ErrCorrupted is returned by Mount when the recovery search in §4.3 finds
// a pattern that is inconsistent with a well-formed ring: a wrapped region
// with an unexpected invalid block in the middle of the search range.
var ErrCorrupted = errors.New("appendfs: media corruption detected during recovery")

// ErrRegionTooSmall is returned by Format and Mount when end-begin < 2.
var ErrRegionTooSmall = errors.New("appendfs: region must contain at least 2 blocks")

// ErrInvalidBlockSize is returned when a configured block size cannot hold
// the on-media footer.
var ErrInvalidBlockSize = errors.New("appendfs: block size too small for footer")

// ErrUnsupportedVersion names the condition of a block whose version field
// does not match a version this build recognizes. No function in this
// package returns it: verifyBlock reports such a block with ok=false,
// identically to a CRC mismatch (the block is "invalid").
var ErrUnsupportedVersion = errors.New("appendfs: unsupported on-media version")

// MountError wraps an error encountered while mounting a region, per
// spec.md §7. MountError.Err is always non-nil; an empty region is a
// successful Mount, not a MountError.
type MountError struct {
	Begin, End uint64
	Err        error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("appendfs: mount [%d,%d): %v", e.Begin, e.End, e.Err)
}

func (e *MountError) Unwrap() error { return e.Err }

// WriteError wraps an error encountered during Commit. The facade's mount
// state is guaranteed unchanged when this is returned; the caller may retry
// Commit with the same staged payload.
type WriteError struct {
	Pos uint64
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("appendfs: write at block %d: %v", e.Pos, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
