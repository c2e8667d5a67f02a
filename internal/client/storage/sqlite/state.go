package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iudanet/agromarket/internal/models"
)

// GetSyncState returns the stored sync state or the zero state on a fresh database
func (s *Storage) GetSyncState(ctx context.Context) (*models.SyncState, error) {
	var state *models.SyncState

	err := s.read("get sync state", func(q querier) error {
		st, err := readState(ctx, q)
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

	err := s.inTx(ctx, "update sync state", func(q querier) error {
		st, err := patchState(ctx, q, patch)
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

func readState(ctx context.Context, q querier) (*models.SyncState, error) {
	state := &models.SyncState{}

	var payload string
	err := q.QueryRowContext(ctx, `SELECT payload FROM sync_state WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sync state: %w", err)
	}

	if err := json.Unmarshal([]byte(payload), state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sync state: %w", err)
	}

	return state, nil
}

func patchState(ctx context.Context, q querier, patch models.SyncStatePatch) (*models.SyncState, error) {
	state, err := readState(ctx, q)
	if err != nil {
		return nil, err
	}

	patch.Apply(state)

	payload, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sync state: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO sync_state (id, payload) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload
	`, string(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to save sync state: %w", err)
	}

	return state, nil
}
