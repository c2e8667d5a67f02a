package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/agromarket/internal/client/storage"
	"github.com/iudanet/agromarket/internal/models"
)

// storedOperation is the on-disk record of the operation log.
// ConflictID is set once the server rejected the operation.
type storedOperation struct {
	Operation  *models.SyncOperation `json:"operation"`
	ConflictID string                `json:"conflict_id,omitempty"`
}

func (r *storedOperation) pending() bool {
	return r.ConflictID == ""
}

// AddOperation appends an operation to the log
func (s *Storage) AddOperation(ctx context.Context, op *models.SyncOperation) error {
	return s.update("add operation", func(tx *bbolt.Tx) error {
		return putNewOperation(tx, op)
	})
}

// putNewOperation добавляет операцию в конец лога, не перезаписывая существующую
func putNewOperation(tx *bbolt.Tx, op *models.SyncOperation) error {
	ops, err := bucket(tx, bucketOperations)
	if err != nil {
		return err
	}
	index, err := bucket(tx, bucketOpIndex)
	if err != nil {
		return err
	}

	if index.Get([]byte(op.OperationID)) != nil {
		return fmt.Errorf("%w: %s", storage.ErrDuplicateOperation, op.OperationID)
	}

	// NextSequence дает монотонный ключ, bbolt хранит ключи отсортированными,
	// поэтому обход bucket совпадает с порядком вставки
	seq, err := ops.NextSequence()
	if err != nil {
		return fmt.Errorf("failed to allocate sequence: %w", err)
	}

	data, err := json.Marshal(&storedOperation{Operation: op})
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}

	key := seqKey(seq)
	if err := ops.Put(key, data); err != nil {
		return fmt.Errorf("failed to save operation: %w", err)
	}
	if err := index.Put([]byte(op.OperationID), key); err != nil {
		return fmt.Errorf("failed to save operation index: %w", err)
	}

	return nil
}

// GetPendingOperations returns pending operations in insertion order
func (s *Storage) GetPendingOperations(ctx context.Context, sinceLamport *int64) ([]*models.SyncOperation, error) {
	var result []*models.SyncOperation

	err := s.view("get pending operations", func(tx *bbolt.Tx) error {
		return forEachOperation(tx, func(_ []byte, rec *storedOperation) error {
			if !rec.pending() {
				return nil
			}
			if sinceLamport != nil && rec.Operation.LamportTS <= *sinceLamport {
				return nil
			}
			result = append(result, rec.Operation)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetOperation returns a stored operation by id
func (s *Storage) GetOperation(ctx context.Context, operationID string) (*models.SyncOperation, error) {
	var op *models.SyncOperation

	err := s.view("get operation", func(tx *bbolt.Tx) error {
		rec, _, err := getOperation(tx, operationID)
		if err != nil {
			return err
		}
		op = rec.Operation
		return nil
	})
	if err != nil {
		return nil, err
	}

	return op, nil
}

// FindPending returns a pending operation with the same entity and content hash
func (s *Storage) FindPending(ctx context.Context, entityType models.EntityType, entityID, contentHash string) (*models.SyncOperation, error) {
	var found *models.SyncOperation

	err := s.view("find pending operation", func(tx *bbolt.Tx) error {
		op, err := findPending(tx, entityType, entityID, contentHash, nil)
		found = op
		return err
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, storage.ErrOperationNotFound
	}

	return found, nil
}

// findPending возвращает первую pending операцию с тем же ключом, прошедшую match, или nil
func findPending(
	tx *bbolt.Tx,
	entityType models.EntityType,
	entityID, contentHash string,
	match func(*models.SyncOperation) bool,
) (*models.SyncOperation, error) {
	var found *models.SyncOperation

	err := forEachOperation(tx, func(_ []byte, rec *storedOperation) error {
		op := rec.Operation
		if found != nil || !rec.pending() {
			return nil
		}
		if op.EntityType != entityType || op.EntityID != entityID || op.ContentHash != contentHash {
			return nil
		}
		if match == nil || match(op) {
			found = op
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return found, nil
}

// CountPending returns the number of pending operations
func (s *Storage) CountPending(ctx context.Context) (int, error) {
	count := 0

	err := s.view("count pending operations", func(tx *bbolt.Tx) error {
		return forEachOperation(tx, func(_ []byte, rec *storedOperation) error {
			if rec.pending() {
				count++
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// RemoveOperation deletes an operation; missing ids are ignored
func (s *Storage) RemoveOperation(ctx context.Context, operationID string) error {
	return s.update("remove operation", func(tx *bbolt.Tx) error {
		return deleteOperation(tx, operationID)
	})
}

// CommitPush applies accepted deletions, conflicts and the state patch in one transaction
func (s *Storage) CommitPush(ctx context.Context, outcome storage.PushOutcome) error {
	return s.update("commit push", func(tx *bbolt.Tx) error {
		for _, id := range outcome.AcceptedIDs {
			if err := deleteOperation(tx, id); err != nil {
				return err
			}
		}

		for _, conflict := range outcome.Conflicts {
			if err := putConflict(tx, conflict); err != nil {
				return err
			}
			if err := markConflicted(tx, conflict.OperationID, conflict.ConflictID); err != nil {
				return err
			}
		}

		if !outcome.State.IsEmpty() {
			if _, err := patchState(tx, outcome.State); err != nil {
				return err
			}
		}

		return nil
	})
}

func forEachOperation(tx *bbolt.Tx, fn func(key []byte, rec *storedOperation) error) error {
	ops, err := bucket(tx, bucketOperations)
	if err != nil {
		return err
	}

	return ops.ForEach(func(k, v []byte) error {
		var rec storedOperation
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("failed to unmarshal operation: %w", err)
		}
		return fn(k, &rec)
	})
}

func getOperation(tx *bbolt.Tx, operationID string) (*storedOperation, []byte, error) {
	index, err := bucket(tx, bucketOpIndex)
	if err != nil {
		return nil, nil, err
	}
	ops, err := bucket(tx, bucketOperations)
	if err != nil {
		return nil, nil, err
	}

	key := index.Get([]byte(operationID))
	if key == nil {
		return nil, nil, storage.ErrOperationNotFound
	}

	data := ops.Get(key)
	if data == nil {
		return nil, nil, fmt.Errorf("index points to missing operation %s", operationID)
	}

	var rec storedOperation
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal operation: %w", err)
	}

	// bbolt возвращает слайсы, валидные только внутри транзакции
	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)
	return &rec, keyCopy, nil
}

func deleteOperation(tx *bbolt.Tx, operationID string) error {
	_, key, err := getOperation(tx, operationID)
	if err == storage.ErrOperationNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	ops, err := bucket(tx, bucketOperations)
	if err != nil {
		return err
	}
	index, err := bucket(tx, bucketOpIndex)
	if err != nil {
		return err
	}

	if err := ops.Delete(key); err != nil {
		return fmt.Errorf("failed to delete operation: %w", err)
	}
	if err := index.Delete([]byte(operationID)); err != nil {
		return fmt.Errorf("failed to delete operation index: %w", err)
	}

	return nil
}

// markConflicted помечает операцию как ожидающую разрешения конфликта
func markConflicted(tx *bbolt.Tx, operationID, conflictID string) error {
	rec, key, err := getOperation(tx, operationID)
	if err == storage.ErrOperationNotFound {
		// Операция могла быть удалена; конфликт все равно сохраняется
		return nil
	}
	if err != nil {
		return err
	}

	rec.ConflictID = conflictID

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}

	ops, err := bucket(tx, bucketOperations)
	if err != nil {
		return err
	}
	if err := ops.Put(key, data); err != nil {
		return fmt.Errorf("failed to update operation: %w", err)
	}

	return nil
}
