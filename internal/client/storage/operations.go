package storage

import (
	"bytes"
	"context"

	"github.com/iudanet/agromarket/internal/crypto"
	"github.com/iudanet/agromarket/internal/models"
)

// OperationStorage defines interface for the pending operation log
type OperationStorage interface {
	// AddOperation appends an operation to the pending set.
	// Returns ErrDuplicateOperation if the id is already stored; never overwrites.
	AddOperation(ctx context.Context, op *models.SyncOperation) error

	// GetPendingOperations returns pending operations in insertion order.
	// Operations waiting for conflict resolution are not returned.
	// If sinceLamport is not nil, only operations with lamport_ts > *sinceLamport are returned.
	GetPendingOperations(ctx context.Context, sinceLamport *int64) ([]*models.SyncOperation, error)

	// GetOperation returns a stored operation by id, including conflicted ones
	// Returns ErrOperationNotFound if operation doesn't exist
	GetOperation(ctx context.Context, operationID string) (*models.SyncOperation, error)

	// FindPending returns a pending operation for the same entity with the same content hash
	// Returns ErrOperationNotFound if there is none
	FindPending(ctx context.Context, entityType models.EntityType, entityID, contentHash string) (*models.SyncOperation, error)

	// CountPending returns the number of pending (not conflicted) operations
	CountPending(ctx context.Context) (int, error)

	// RemoveOperation deletes an operation. Removing a missing id is a no-op.
	RemoveOperation(ctx context.Context, operationID string) error

	// CommitPush applies a whole push verdict in one transaction
	CommitPush(ctx context.Context, outcome PushOutcome) error
}

// PushOutcome is everything a push pass writes back to the store
type PushOutcome struct {
	// AcceptedIDs are deleted from the pending set
	AcceptedIDs []string
	// Conflicts are stored and their operations are marked as waiting for resolution
	Conflicts []*models.SyncConflict
	// State is merged into the sync state record
	State models.SyncStatePatch
}

// SameMutation reports whether two operations describe the same change of the same entity.
// Data is compared byte by byte after canonicalization: equal content hashes do not guarantee equal payloads.
func SameMutation(a, b *models.SyncOperation) bool {
	if a.OperationType != b.OperationType || a.EntityType != b.EntityType || a.EntityID != b.EntityID {
		return false
	}

	ca, err := crypto.CanonicalJSON(a.Data)
	if err != nil {
		return false
	}
	cb, err := crypto.CanonicalJSON(b.Data)
	if err != nil {
		return false
	}

	return bytes.Equal(ca, cb)
}
