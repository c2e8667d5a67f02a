package storage

import (
	"context"

	"github.com/iudanet/agromarket/internal/models"
)

// ConflictStorage defines interface for conflict bookkeeping
type ConflictStorage interface {
	// AddConflict stores a conflict record (upsert by conflict_id)
	AddConflict(ctx context.Context, conflict *models.SyncConflict) error

	// GetConflict returns a conflict by id
	// Returns ErrConflictNotFound if conflict doesn't exist
	GetConflict(ctx context.Context, conflictID string) (*models.SyncConflict, error)

	// GetUnresolvedConflicts returns unresolved conflicts ordered by creation time
	GetUnresolvedConflicts(ctx context.Context) ([]*models.SyncConflict, error)

	// ResolveConflict marks a conflict resolved with the given choice
	ResolveConflict(ctx context.Context, conflictID string, resolution models.ResolutionChoice) error

	// ApplyResolution atomically removes the conflicted operation, stores the optional
	// replacement as a new pending operation and marks the conflict resolved.
	// If an identical mutation is already pending, the replacement is not stored and the
	// pending operation is returned instead. Returns nil when replacement is nil.
	ApplyResolution(
		ctx context.Context,
		conflictID string,
		resolution models.ResolutionChoice,
		replacement *models.SyncOperation,
	) (*models.SyncOperation, error)
}
