package storage

import "errors"

// Common client storage errors
var (
	// ErrStorage marks failures of the persisted store (disk, quota, corrupted records).
	// Every backend error is wrapped with it, so callers can tell storage failures
	// from transport failures with errors.Is.
	ErrStorage = errors.New("storage failure")

	// ErrOperationNotFound indicates that operation was not found
	ErrOperationNotFound = errors.New("operation not found")

	// ErrDuplicateOperation indicates that an operation with the same id is already stored
	ErrDuplicateOperation = errors.New("operation already exists")

	// ErrConflictNotFound indicates that conflict was not found
	ErrConflictNotFound = errors.New("conflict not found")

	// ErrConflictResolved indicates that conflict is already resolved
	ErrConflictResolved = errors.New("conflict already resolved")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
