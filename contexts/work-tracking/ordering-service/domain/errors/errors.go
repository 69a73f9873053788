package errors

import "errors"

var (
	ErrInvalidContext = errors.New("group context requires a context id")
	ErrInvalidEntity  = errors.New("entity reference is invalid")
	ErrNotFound       = errors.New("ordering row not found")
	ErrAlreadyOrdered = errors.New("entity already ordered in this context")

	// ErrOrderingConflict is a storage-level write conflict (a concurrent
	// writer touched the same partition). The only retryable error: callers
	// re-read, recompute and re-write the whole operation.
	ErrOrderingConflict = errors.New("ordering write conflict")
)
