package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/agromarket/internal/models"
)

var stateKey = []byte("current")

// GetSyncState returns the stored sync state or the zero state on a fresh database
func (s *Storage) GetSyncState(ctx context.Context) (*models.SyncState, error) {
	var state *models.SyncState

	err := s.view("get sync state", func(tx *bbolt.Tx) error {
		st, err := readState(tx)
		if err != nil {
			return err
		}
		state = st
		return nil
	})
	if err != nil {
		return nil, err
	}

	return state, nil
}

// UpdateSyncState merges the patch into the stored state
func (s *Storage) UpdateSyncState(ctx context.Context, patch models.SyncStatePatch) (*models.SyncState, error) {
	var state *models.SyncState

	err := s.update("update sync state", func(tx *bbolt.Tx) error {
		st, err := patchState(tx, patch)
		if err != nil {
			return err
		}
		state = st
		return nil
	})
	if err != nil {
		return nil, err
	}

	return state, nil
}

func readState(tx *bbolt.Tx) (*models.SyncState, error) {
	b, err := bucket(tx, bucketState)
	if err != nil {
		return nil, err
	}

	state := &models.SyncState{}

	data := b.Get(stateKey)
	if data == nil {
		// Первая синхронизация - состояние еще не сохранено
		return state, nil
	}

	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sync state: %w", err)
	}

	return state, nil
}

func patchState(tx *bbolt.Tx, patch models.SyncStatePatch) (*models.SyncState, error) {
	state, err := readState(tx)
	if err != nil {
		return nil, err
	}

	patch.Apply(state)

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sync state: %w", err)
	}

	b, err := bucket(tx, bucketState)
	if err != nil {
		return nil, err
	}
	if err := b.Put(stateKey, data); err != nil {
		return nil, fmt.Errorf("failed to save sync state: %w", err)
	}

	return state, nil
}
