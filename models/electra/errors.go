package electra

import (
	"errors"
)

// Sentinel errors.
var (
	// ErrNotFound indicates that a referenced entity does not exist. It is
	// surfaced to the caller and never retried.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable indicates a transient upstream failure. Calls failing
	// with it are safe to retry with backoff.
	ErrUnavailable = errors.New("unavailable")

	// ErrOutOfOrder indicates that a block's parent hash does not match the
	// current sync cursor.
	ErrOutOfOrder = errors.New("block out of order")

	// ErrConflict indicates that a block duplicates an already indexed height
	// with a different hash, which signals a chain reorganization.
	ErrConflict = errors.New("block conflicts with indexed chain")

	// ErrCorrupt indicates that the persisted index failed an integrity check
	// on load. It is fatal and requires a manual rebuild of the index.
	ErrCorrupt = errors.New("index corrupt")

	// ErrFinished indicates that a bounded indexing run has caught up with
	// the chain tip and has nothing left to do.
	ErrFinished = errors.New("finished")

	// ErrBadScriptHash indicates a script hash of invalid length.
	ErrBadScriptHash = errors.New("invalid script hash")
)
