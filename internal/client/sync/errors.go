package sync

import "errors"

var (
	// ErrSyncInProgress is returned when a push is already in flight
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrTransport marks network, timeout and server-side failures; the queue is left untouched
	ErrTransport = errors.New("transport error")
	// ErrNotInitialized is returned by calls made before Init
	ErrNotInitialized = errors.New("sync service is not initialized")
	// ErrDisposed is returned by calls made after Dispose
	ErrDisposed = errors.New("sync service is disposed")
	// ErrInvalidResolution is returned for an unknown resolution or a MERGED resolution without payload
	ErrInvalidResolution = errors.New("invalid conflict resolution")
)

// MessageSyncInProgress is the result message of a rejected concurrent push
const MessageSyncInProgress = "Sync already in progress"
