package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iudanet/agromarket/internal/models"
)

// SaveRemoteOperations upserts operations downloaded from the server
func (s *Storage) SaveRemoteOperations(ctx context.Context, ops []*models.SyncOperation) error {
	if len(ops) == 0 {
		return nil
	}

	return s.inTx(ctx, "save remote operations", func(q querier) error {
		for _, op := range ops {
			payload, err := json.Marshal(op)
			if err != nil {
				return fmt.Errorf("failed to marshal remote operation: %w", err)
			}

			_, err = q.ExecContext(ctx, `
				INSERT INTO remote_operations (operation_id, lamport_ts, payload)
				VALUES (?, ?, ?)
				ON CONFLICT(operation_id) DO UPDATE SET
					lamport_ts = excluded.lamport_ts,
					payload = excluded.payload
			`, op.OperationID, op.LamportTS, string(payload))
			if err != nil {
				return fmt.Errorf("failed to save remote operation: %w", err)
			}
		}

		return nil
	})
}

// GetRemoteOperations returns remote operations with lamport_ts > since ordered by lamport_ts
func (s *Storage) GetRemoteOperations(ctx context.Context, since int64) ([]*models.SyncOperation, error) {
	var ops []*models.SyncOperation

	err := s.read("get remote operations", func(q querier) error {
		result, err := queryOperations(ctx, q, `
			SELECT payload FROM remote_operations
			WHERE lamport_ts > ?
			ORDER BY lamport_ts, operation_id
		`, since)
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
