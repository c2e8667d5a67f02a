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

// AddOperation appends an operation to the log
func (s *Storage) AddOperation(ctx context.Context, op *models.SyncOperation) error {
	return s.inTx(ctx, "add operation", func(q querier) error {
		return insertOperation(ctx, q, op)
	})
}

func insertOperation(ctx context.Context, q querier, op *models.SyncOperation) error {
	var exists int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM operations WHERE operation_id = ?`, op.OperationID,
	).Scan(&exists)
	if err == nil {
		return fmt.Errorf("%w: %s", storage.ErrDuplicateOperation, op.OperationID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check operation: %w", err)
	}

	payload, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO operations (operation_id, entity_type, entity_id, content_hash, lamport_ts, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		op.OperationID,
		string(op.EntityType),
		op.EntityID,
		op.ContentHash,
		op.LamportTS,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert operation: %w", err)
	}

	return nil
}

// GetPendingOperations returns pending operations in insertion order
func (s *Storage) GetPendingOperations(ctx context.Context, sinceLamport *int64) ([]*models.SyncOperation, error) {
	var ops []*models.SyncOperation

	err := s.read("get pending operations", func(q querier) error {
		query := `SELECT payload FROM operations WHERE conflict_id IS NULL`
		var args []any
		if sinceLamport != nil {
			query += ` AND lamport_ts > ?`
			args = append(args, *sinceLamport)
		}
		query += ` ORDER BY seq`

		result, err := queryOperations(ctx, q, query, args...)
		if err != nil {
			return err
		}
		ops = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ops, nil
}

// GetOperation returns a stored operation by id
func (s *Storage) GetOperation(ctx context.Context, operationID string) (*models.SyncOperation, error) {
	var op *models.SyncOperation

	err := s.read("get operation", func(q querier) error {
		result, err := queryOperations(ctx, q,
			`SELECT payload FROM operations WHERE operation_id = ?`, operationID)
		if err != nil {
			return err
		}
		if len(result) == 0 {
			return storage.ErrOperationNotFound
		}
		op = result[0]
		return nil
	})
	if err != nil {
		return nil, err
	}

	return op, nil
}

// FindPending returns a pending operation with the same entity and content hash
func (s *Storage) FindPending(ctx context.Context, entityType models.EntityType, entityID, contentHash string) (*models.SyncOperation, error) {
	var op *models.SyncOperation

	err := s.read("find pending operation", func(q querier) error {
		found, err := findPending(ctx, q, entityType, entityID, contentHash, nil)
		if err != nil {
			return err
		}
		if found == nil {
			return storage.ErrOperationNotFound
		}
		op = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	return op, nil
}

// findPending возвращает первую pending операцию с тем же ключом, прошедшую match, или nil
func findPending(
	ctx context.Context,
	q querier,
	entityType models.EntityType,
	entityID, contentHash string,
	match func(*models.SyncOperation) bool,
) (*models.SyncOperation, error) {
	candidates, err := queryOperations(ctx, q, `
		SELECT payload FROM operations
		WHERE conflict_id IS NULL AND entity_type = ? AND entity_id = ? AND content_hash = ?
		ORDER BY seq
	`, string(entityType), entityID, contentHash)
	if err != nil {
		return nil, err
	}

	for _, op := range candidates {
		if match == nil || match(op) {
			return op, nil
		}
	}

	return nil, nil
}

// CountPending returns the number of pending operations
func (s *Storage) CountPending(ctx context.Context) (int, error) {
	var count int

	err := s.read("count pending operations", func(q querier) error {
		return q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM operations WHERE conflict_id IS NULL`,
		).Scan(&count)
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// RemoveOperation deletes an operation; missing ids are ignored
func (s *Storage) RemoveOperation(ctx context.Context, operationID string) error {
	return s.inTx(ctx, "remove operation", func(q querier) error {
		return deleteOperation(ctx, q, operationID)
	})
}

// CommitPush applies accepted deletions, conflicts and the state patch in one transaction
func (s *Storage) CommitPush(ctx context.Context, outcome storage.PushOutcome) error {
	return s.inTx(ctx, "commit push", func(q querier) error {
		for _, id := range outcome.AcceptedIDs {
			if err := deleteOperation(ctx, q, id); err != nil {
				return err
			}
		}

		for _, conflict := range outcome.Conflicts {
			if err := upsertConflict(ctx, q, conflict); err != nil {
				return err
			}
			_, err := q.ExecContext(ctx,
				`UPDATE operations SET conflict_id = ? WHERE operation_id = ?`,
				conflict.ConflictID, conflict.OperationID)
			if err != nil {
				return fmt.Errorf("failed to mark operation conflicted: %w", err)
			}
		}

		if !outcome.State.IsEmpty() {
			if _, err := patchState(ctx, q, outcome.State); err != nil {
				return err
			}
		}

		return nil
	})
}

func deleteOperation(ctx context.Context, q querier, operationID string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM operations WHERE operation_id = ?`, operationID); err != nil {
		return fmt.Errorf("failed to delete operation: %w", err)
	}
	return nil
}

func queryOperations(ctx context.Context, q querier, query string, args ...any) ([]*models.SyncOperation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ops []*models.SyncOperation
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}

		var op models.SyncOperation
		if err := json.Unmarshal([]byte(payload), &op); err != nil {
			return nil, fmt.Errorf("failed to unmarshal operation: %w", err)
		}
		ops = append(ops, &op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operations: %w", err)
	}

	return ops, nil
}
