package storage

import (
	"context"

	"github.com/iudanet/agromarket/internal/models"
)

// RemoteStorage keeps operations downloaded from the server for read-model reconciliation
type RemoteStorage interface {
	// SaveRemoteOperations upserts pulled operations by operation_id
	SaveRemoteOperations(ctx context.Context, ops []*models.SyncOperation) error

	// GetRemoteOperations returns stored remote operations with lamport_ts > since, ordered by lamport_ts
	GetRemoteOperations(ctx context.Context, since int64) ([]*models.SyncOperation, error)
}

// Store is the full durable store used by the sync client
type Store interface {
	OperationStorage
	ConflictStorage
	StateStorage
	RemoteStorage

	Close() error
}
