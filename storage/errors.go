package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when no state exists for a thread.
	ErrNotFound = errors.New("workflow state not found")

	// ErrCorruptState is returned when a stored document cannot be decoded.
	ErrCorruptState = errors.New("corrupt workflow state")
)
