package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/iudanet/agromarket/internal/client/storage"
	"github.com/iudanet/agromarket/internal/models"
)

// AddConflict stores a conflict record
func (s *Storage) AddConflict(ctx context.Context, conflict *models.SyncConflict) error {
	return s.update("add conflict", func(tx *bbolt.Tx) error {
		return putConflict(tx, conflict)
	})
}

// GetConflict returns a conflict by id
func (s *Storage) GetConflict(ctx context.Context, conflictID string) (*models.SyncConflict, error) {
	var conflict *models.SyncConflict

	err := s.view("get conflict", func(tx *bbolt.Tx) error {
		c, err := getConflict(tx, conflictID)
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

	err := s.view("get unresolved conflicts", func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketConflicts)
		if err != nil {
			return err
		}

		return b.ForEach(func(k, v []byte) error {
			var c models.SyncConflict
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("failed to unmarshal conflict: %w", err)
			}
			if !c.Resolved {
				conflicts = append(conflicts, &c)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	// Ключи bucket отсортированы по conflict_id, а не по времени
	sort.SliceStable(conflicts, func(i, j int) bool {
		return conflicts[i].CreatedAt.Before(conflicts[j].CreatedAt)
	})

	return conflicts, nil
}

// ResolveConflict marks a conflict resolved
func (s *Storage) ResolveConflict(ctx context.Context, conflictID string, resolution models.ResolutionChoice) error {
	return s.update("resolve conflict", func(tx *bbolt.Tx) error {
		c, err := getConflict(tx, conflictID)
		if err != nil {
			return err
		}
		c.Resolved = true
		c.ResolutionChoice = resolution
		return putConflict(tx, c)
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

	err := s.update("apply resolution", func(tx *bbolt.Tx) error {
		c, err := getConflict(tx, conflictID)
		if err != nil {
			return err
		}
		if c.Resolved {
			return fmt.Errorf("%w: %s", storage.ErrConflictResolved, conflictID)
		}

		if err := deleteOperation(tx, c.OperationID); err != nil {
			return err
		}

		if replacement != nil {
			existing, err := findPending(tx, replacement.EntityType, replacement.EntityID, replacement.ContentHash,
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
				if err := putNewOperation(tx, replacement); err != nil {
					return err
				}
				queued = replacement
			}
		}

		c.Resolved = true
		c.ResolutionChoice = resolution
		return putConflict(tx, c)
	})
	if err != nil {
		return nil, err
	}

	return queued, nil
}

func putConflict(tx *bbolt.Tx, conflict *models.SyncConflict) error {
	b, err := bucket(tx, bucketConflicts)
	if err != nil {
		return err
	}

	data, err := json.Marshal(conflict)
	if err != nil {
		return fmt.Errorf("failed to marshal conflict: %w", err)
	}

	if err := b.Put([]byte(conflict.ConflictID), data); err != nil {
		return fmt.Errorf("failed to save conflict: %w", err)
	}

	return nil
}

func getConflict(tx *bbolt.Tx, conflictID string) (*models.SyncConflict, error) {
	b, err := bucket(tx, bucketConflicts)
	if err != nil {
		return nil, err
	}

	data := b.Get([]byte(conflictID))
	if data == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrConflictNotFound, conflictID)
	}

	var c models.SyncConflict
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conflict: %w", err)
	}

	return &c, nil
}
