package storage

import (
	"context"

	"github.com/iudanet/agromarket/internal/models"
)

// StateStorage defines interface for the singleton sync state record
type StateStorage interface {
	// GetSyncState returns the sync state. A fresh store returns the zero state.
	GetSyncState(ctx context.Context) (*models.SyncState, error)

	// UpdateSyncState merges the patch into the stored state and returns the result
	UpdateSyncState(ctx context.Context, patch models.SyncStatePatch) (*models.SyncState, error)
}
