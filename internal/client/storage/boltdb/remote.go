package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/iudanet/agromarket/internal/models"
)

// SaveRemoteOperations upserts operations downloaded from the server
func (s *Storage) SaveRemoteOperations(ctx context.Context, ops []*models.SyncOperation) error {
	if len(ops) == 0 {
		return nil
	}

	return s.update("save remote operations", func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketRemote)
		if err != nil {
			return err
		}

		for _, op := range ops {
			data, err := json.Marshal(op)
			if err != nil {
				return fmt.Errorf("failed to marshal remote operation: %w", err)
			}
			if err := b.Put([]byte(op.OperationID), data); err != nil {
				return fmt.Errorf("failed to save remote operation: %w", err)
			}
		}

		return nil
	})
}

// GetRemoteOperations returns remote operations with lamport_ts > since ordered by lamport_ts
func (s *Storage) GetRemoteOperations(ctx context.Context, since int64) ([]*models.SyncOperation, error) {
	var ops []*models.SyncOperation

	err := s.view("get remote operations", func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketRemote)
		if err != nil {
			return err
		}

		return b.ForEach(func(k, v []byte) error {
			var op models.SyncOperation
			if err := json.Unmarshal(v, &op); err != nil {
				return fmt.Errorf("failed to unmarshal remote operation: %w", err)
			}
			if op.LamportTS > since {
				ops = append(ops, &op)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].LamportTS < ops[j].LamportTS
	})

	return ops, nil
}
