// Package resolver is the client-facing layer over unresolved conflicts.
// It never picks a resolution on its own: the choice comes from the user
// or from a Policy supplied by the host application.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/agromarket/internal/client/storage"
	"github.com/iudanet/agromarket/internal/models"
)

// Store is the read side used to list conflicts
type Store interface {
	GetUnresolvedConflicts(ctx context.Context) ([]*models.SyncConflict, error)
	GetOperation(ctx context.Context, operationID string) (*models.SyncOperation, error)
}

// ConflictResolver applies a resolution; implemented by the sync service
type ConflictResolver interface {
	ResolveConflict(ctx context.Context, conflictID string, choice models.ResolutionChoice, merged json.RawMessage) (*models.SyncOperation, error)
}

// Item - конфликт вместе с локальной операцией.
// Local равен nil, если операция уже отсутствует в хранилище.
type Item struct {
	Conflict *models.SyncConflict
	Local    *models.SyncOperation
}

// Decision is a resolution chosen for one conflict
type Decision struct {
	Choice models.ResolutionChoice
	Merged json.RawMessage // только для MERGED
}

// Policy chooses a resolution deterministically. ok == false leaves the conflict for the user.
type Policy func(item Item) (decision Decision, ok bool)

// PreferRemote always accepts the server version
func PreferRemote(Item) (Decision, bool) {
	return Decision{Choice: models.ResolutionRemote}, true
}

// PreferLocal resubmits local data when the local operation is still available
func PreferLocal(item Item) (Decision, bool) {
	if item.Local == nil {
		return Decision{}, false
	}
	return Decision{Choice: models.ResolutionLocal}, true
}

// Resolver lists and resolves conflicts
type Resolver struct {
	store    Store
	resolver ConflictResolver
	logger   *slog.Logger
}

// New creates a conflict resolver
func New(store Store, resolver ConflictResolver, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:    store,
		resolver: resolver,
		logger:   logger,
	}
}

// List returns unresolved conflicts, oldest first
func (r *Resolver) List(ctx context.Context) ([]Item, error) {
	conflicts, err := r.store.GetUnresolvedConflicts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}

	items := make([]Item, 0, len(conflicts))
	for _, c := range conflicts {
		item := Item{Conflict: c}

		op, err := r.store.GetOperation(ctx, c.OperationID)
		switch {
		case err == nil:
			item.Local = op
		case errors.Is(err, storage.ErrOperationNotFound):
			r.logger.Warn("Conflicted operation is missing", "conflict_id", c.ConflictID, "operation_id", c.OperationID)
		default:
			return nil, fmt.Errorf("failed to get operation %s: %w", c.OperationID, err)
		}

		items = append(items, item)
	}

	return items, nil
}

// Resolve applies LOCAL or REMOTE
func (r *Resolver) Resolve(ctx context.Context, conflictID string, choice models.ResolutionChoice) (*models.SyncOperation, error) {
	return r.resolver.ResolveConflict(ctx, conflictID, choice, nil)
}

// ResolveMerged resubmits a caller-supplied merged payload
func (r *Resolver) ResolveMerged(ctx context.Context, conflictID string, payload any) (*models.SyncOperation, error) {
	var merged json.RawMessage
	switch v := payload.(type) {
	case json.RawMessage:
		merged = v
	case []byte:
		merged = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal merged payload: %w", err)
		}
		merged = data
	}

	return r.resolver.ResolveConflict(ctx, conflictID, models.ResolutionMerged, merged)
}

// ApplyPolicy runs policy over every unresolved conflict.
// A failed conflict does not stop the rest; all failures are joined.
func (r *Resolver) ApplyPolicy(ctx context.Context, policy Policy) (int, error) {
	items, err := r.List(ctx)
	if err != nil {
		return 0, err
	}

	resolved := 0
	var errs []error

	for _, item := range items {
		decision, ok := policy(item)
		if !ok {
			continue
		}

		_, err := r.resolver.ResolveConflict(ctx, item.Conflict.ConflictID, decision.Choice, decision.Merged)
		if err != nil {
			errs = append(errs, fmt.Errorf("conflict %s: %w", item.Conflict.ConflictID, err))
			continue
		}
		resolved++
	}

	if resolved > 0 || len(errs) > 0 {
		r.logger.Info("Conflict policy applied", "resolved", resolved, "failed", len(errs))
	}

	return resolved, errors.Join(errs...)
}
