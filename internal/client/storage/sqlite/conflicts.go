package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iudanet/agromarket/internal/client/storage"
	"github.com/iudanet/agromarket/internal/models"
)

// AddConflict stores a conflict record
func (s *Storage) AddConflict(ctx context.Context, conflict *models.SyncConflict) error {
	return s.inTx(ctx, "add conflict", func(q querier) error {
		return upsertConflict(ctx, q, conflict)
	})
}

// GetConflict returns a conflict by id
func (s *Storage) GetConflict(ctx context.Context, conflictID string) (*models.SyncConflict, error) {
	var conflict *models.SyncConflict

	err := s.read("get conflict", func(q querier) error {
		c, err := selectConflict(ctx, q, conflictID)
		if err != nil {
			return err
		}
		conflict = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	return conflict, nil
}

// GetUnresolvedConflicts returns unresolved conflicts, oldest first
func (s *Storage) GetUnresolvedConflicts(ctx context.Context) ([]*models.SyncConflict, error) {
	var conflicts []*models.SyncConflict

	err := s.read("get unresolved conflicts", func(q querier) error {
		rows, err := q.QueryContext(ctx, `
			SELECT payload FROM conflicts
			WHERE resolved = 0
			ORDER BY created_at, conflict_id
		`)
		if err != nil {
			return fmt.Errorf("failed to query conflicts: %w", err)
		}
		defer func() {
			_ = rows.Close()
		}()

		for rows.Next() {
			var payload string
			if err := rows.Scan(&payload); err != nil {
				return fmt.Errorf("failed to scan conflict: %w", err)
			}

			var c models.SyncConflict
			if err := json.Unmarshal([]byte(payload), &c); err != nil {
				return fmt.Errorf("failed to unmarshal conflict: %w", err)
			}
			conflicts = append(conflicts, &c)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return conflicts, nil
}

// ResolveConflict marks a conflict resolved
func (s *Storage) ResolveConflict(ctx context.Context, conflictID string, resolution models.ResolutionChoice) error {
	return s.inTx(ctx, "resolve conflict", func(q querier) error {
		c, err := selectConflict(ctx, q, conflictID)
		if err != nil {
			return err
		}
		c.Resolved = true
		c.ResolutionChoice = resolution
		return upsertConflict(ctx, q, c)
	})
}

// ApplyResolution removes the conflicted operation, stores the replacement and resolves the conflict atomically
func (s *Storage) ApplyResolution(
	ctx context.Context,
	conflictID string,
	resolution models.ResolutionChoice,
	replacement *models.SyncOperation,
) (*models.SyncOperation, error) {
	var queued *models.SyncOperation

	err := s.inTx(ctx, "apply resolution", func(q querier) error {
		c, err := selectConflict(ctx, q, conflictID)
		if err != nil {
			return err
		}
		if c.Resolved {
			return fmt.Errorf("%w: %s", storage.ErrConflictResolved, conflictID)
		}

		if err := deleteOperation(ctx, q, c.OperationID); err != nil {
			return err
		}

		if replacement != nil {
			existing, err := findPending(ctx, q, replacement.EntityType, replacement.EntityID, replacement.ContentHash,
				func(op *models.SyncOperation) bool {
					return storage.SameMutation(op, replacement)
				})
			if err != nil {
				return err
			}

			// Та же мутация уже в очереди: вторую копию не ставим
			if existing != nil {
				queued = existing
			} else {
				if err := insertOperation(ctx, q, replacement); err != nil {
					return err
				}
				queued = replacement
			}
		}

		c.Resolved = true
		c.ResolutionChoice = resolution
		return upsertConflict(ctx, q, c)
	})
	if err != nil {
		return nil, err
	}

	return queued, nil
}

func upsertConflict(ctx context.Context, q querier, conflict *models.SyncConflict) error {
	payload, err := json.Marshal(conflict)
	if err != nil {
		return fmt.Errorf("failed to marshal conflict: %w", err)
	}

	resolved := 0
	if conflict.Resolved {
		resolved = 1
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO conflicts (conflict_id, operation_id, resolved, created_at, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(conflict_id) DO UPDATE SET
			operation_id = excluded.operation_id,
			resolved = excluded.resolved,
			created_at = excluded.created_at,
			payload = excluded.payload
	`,
		conflict.ConflictID,
		conflict.OperationID,
		resolved,
		conflict.CreatedAt.UnixNano(),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save conflict: %w", err)
	}

	return nil
}

func selectConflict(ctx context.Context, q querier, conflictID string) (*models.SyncConflict, error) {
	var payload string
	err := q.QueryRowContext(ctx,
		`SELECT payload FROM conflicts WHERE conflict_id = ?`, conflictID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrConflictNotFound, conflictID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conflict: %w", err)
	}

	var c models.SyncConflict
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conflict: %w", err)
	}

	return &c, nil
}
