// Package storagetest contains behaviour tests shared by every storage.Store backend.
package storagetest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/agromarket/internal/client/storage"
	"github.com/iudanet/agromarket/internal/models"
)

// Factory opens a fresh, empty store for one test
type Factory func(t *testing.T) storage.Store

// NewOperation создает тестовую операцию
func NewOperation(id string, entityID string, data string) *models.SyncOperation {
	return &models.SyncOperation{
		Timestamp:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		OperationID:   id,
		OperationType: models.OperationCreate,
		EntityType:    models.EntityCartItem,
		EntityID:      entityID,
		DeviceID:      "device-1",
		ContentHash:   "hash-" + data,
		Data:          json.RawMessage(data),
		Version:       1,
	}
}

// NewConflict создает тестовый конфликт для операции
func NewConflict(id, operationID string, createdAt time.Time) *models.SyncConflict {
	return &models.SyncConflict{
		CreatedAt:              createdAt,
		ConflictID:             id,
		OperationID:            operationID,
		ConflictingOperationID: "server-" + operationID,
		ConflictType:           models.ConflictVersionMismatch,
		ResolutionLevel:        1,
	}
}

// Run executes the shared suite against stores produced by newStore
func Run(t *testing.T, newStore Factory) {
	t.Run("AddAndGetPendingInInsertionOrder", func(t *testing.T) { testInsertionOrder(t, newStore(t)) })
	t.Run("AddDuplicateNeverOverwrites", func(t *testing.T) { testDuplicate(t, newStore(t)) })
	t.Run("GetPendingSinceLamport", func(t *testing.T) { testSinceLamport(t, newStore(t)) })
	t.Run("RemoveIsIdempotent", func(t *testing.T) { testRemoveIdempotent(t, newStore(t)) })
	t.Run("FindPending", func(t *testing.T) { testFindPending(t, newStore(t)) })
	t.Run("CommitPush", func(t *testing.T) { testCommitPush(t, newStore(t)) })
	t.Run("ConflictBookkeeping", func(t *testing.T) { testConflicts(t, newStore(t)) })
	t.Run("ApplyResolution", func(t *testing.T) { testApplyResolution(t, newStore(t)) })
	t.Run("ApplyResolutionReusesPendingMutation", func(t *testing.T) { testApplyResolutionReusesPending(t, newStore(t)) })
	t.Run("ApplyResolutionRollsBack", func(t *testing.T) { testApplyResolutionRollsBack(t, newStore(t)) })
	t.Run("SyncState", func(t *testing.T) { testSyncState(t, newStore(t)) })
	t.Run("RemoteOperations", func(t *testing.T) { testRemoteOperations(t, newStore(t)) })
	t.Run("ClosedStore", func(t *testing.T) { testClosed(t, newStore(t)) })
}

func ids(ops []*models.SyncOperation) []string {
	result := make([]string, 0, len(ops))
	for _, op := range ops {
		result = append(result, op.OperationID)
	}
	return result
}

func testInsertionOrder(t *testing.T, s storage.Store) {
	ctx := context.Background()

	// Идентификаторы намеренно не отсортированы лексикографически
	for _, id := range []string{"c", "a", "b", "10", "2"} {
		require.NoError(t, s.AddOperation(ctx, NewOperation(id, "e-"+id, `{"n":1}`)))
	}

	pending, err := s.GetPendingOperations(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b", "10", "2"}, ids(pending))

	count, err := s.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	got, err := s.GetOperation(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, NewOperation("a", "e-a", `{"n":1}`), got)
}

func testDuplicate(t *testing.T, s storage.Store) {
	ctx := context.Background()

	require.NoError(t, s.AddOperation(ctx, NewOperation("op-1", "e-1", `{"v":1}`)))
	err := s.AddOperation(ctx, NewOperation("op-1", "e-1", `{"v":2}`))
	assert.ErrorIs(t, err, storage.ErrDuplicateOperation)

	got, err := s.GetOperation(ctx, "op-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(got.Data))
}

func testSinceLamport(t *testing.T, s storage.Store) {
	ctx := context.Background()

	for i, ts := range []int64{0, 5, 10} {
		op := NewOperation(fmt.Sprintf("op-%d", i), "e", `{}`)
		op.LamportTS = ts
		require.NoError(t, s.AddOperation(ctx, op))
	}

	cursor := int64(5)
	pending, err := s.GetPendingOperations(ctx, &cursor)
	require.NoError(t, err)
	assert.Equal(t, []string{"op-2"}, ids(pending))
}

func testRemoveIdempotent(t *testing.T, s storage.Store) {
	ctx := context.Background()

	require.NoError(t, s.AddOperation(ctx, NewOperation("op-1", "e-1", `{}`)))
	require.NoError(t, s.RemoveOperation(ctx, "op-1"))
	require.NoError(t, s.RemoveOperation(ctx, "op-1"))
	require.NoError(t, s.RemoveOperation(ctx, "never-existed"))

	_, err := s.GetOperation(ctx, "op-1")
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)

	// Идентификатор можно использовать снова только после удаления
	require.NoError(t, s.AddOperation(ctx, NewOperation("op-1", "e-1", `{}`)))
}

func testFindPending(t *testing.T, s storage.Store) {
	ctx := context.Background()

	op := NewOperation("op-1", "cart-7", `{"quantity":2}`)
	require.NoError(t, s.AddOperation(ctx, op))

	found, err := s.FindPending(ctx, models.EntityCartItem, "cart-7", op.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, "op-1", found.OperationID)

	_, err = s.FindPending(ctx, models.EntityCartItem, "cart-8", op.ContentHash)
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)

	_, err = s.FindPending(ctx, models.EntityReview, "cart-7", op.ContentHash)
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)

	// Операция в конфликте больше не считается ожидающей
	require.NoError(t, s.CommitPush(ctx, storage.PushOutcome{
		Conflicts: []*models.SyncConflict{NewConflict("c-1", "op-1", time.Now())},
	}))
	_, err = s.FindPending(ctx, models.EntityCartItem, "cart-7", op.ContentHash)
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)
}

func testCommitPush(t *testing.T, s storage.Store) {
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.AddOperation(ctx, NewOperation(id, "e-"+id, `{}`)))
	}

	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	lamport := int64(77)
	online := true

	err := s.CommitPush(ctx, storage.PushOutcome{
		AcceptedIDs: []string{"a", "c", "unknown"},
		Conflicts:   []*models.SyncConflict{NewConflict("c-b", "b", now)},
		State: models.SyncStatePatch{
			LastSync:      &now,
			LastLamportTS: &lamport,
			IsOnline:      &online,
		},
	})
	require.NoError(t, err)

	pending, err := s.GetPendingOperations(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, ids(pending), "accepted deleted, rejected held for resolution")

	count, err := s.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Отклоненная операция остается доступной для разрешения конфликта
	held, err := s.GetOperation(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", held.OperationID)

	conflicts, err := s.GetUnresolvedConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "c-b", conflicts[0].ConflictID)

	state, err := s.GetSyncState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(77), state.LastLamportTS)
	assert.True(t, state.IsOnline)
	assert.True(t, now.Equal(state.LastSync))
}

func testConflicts(t *testing.T, s storage.Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// conflict_id в обратном порядке относительно времени
	require.NoError(t, s.AddConflict(ctx, NewConflict("z", "op-1", base)))
	require.NoError(t, s.AddConflict(ctx, NewConflict("y", "op-2", base.Add(time.Minute))))
	require.NoError(t, s.AddConflict(ctx, NewConflict("x", "op-3", base.Add(2*time.Minute))))

	conflicts, err := s.GetUnresolvedConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 3)
	assert.Equal(t, "z", conflicts[0].ConflictID)
	assert.Equal(t, "x", conflicts[2].ConflictID)

	require.NoError(t, s.ResolveConflict(ctx, "y", models.ResolutionRemote))

	conflicts, err = s.GetUnresolvedConflicts(ctx)
	require.NoError(t, err)
	assert.Len(t, conflicts, 2)

	resolved, err := s.GetConflict(ctx, "y")
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, models.ResolutionRemote, resolved.ResolutionChoice)

	err = s.ResolveConflict(ctx, "missing", models.ResolutionLocal)
	assert.ErrorIs(t, err, storage.ErrConflictNotFound)

	_, err = s.GetConflict(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrConflictNotFound)
}

func testApplyResolution(t *testing.T, s storage.Store) {
	ctx := context.Background()

	require.NoError(t, s.AddOperation(ctx, NewOperation("op-1", "cart-1", `{"quantity":1}`)))
	require.NoError(t, s.AddOperation(ctx, NewOperation("op-2", "cart-2", `{"quantity":2}`)))
	require.NoError(t, s.CommitPush(ctx, storage.PushOutcome{
		Conflicts: []*models.SyncConflict{
			NewConflict("c-1", "op-1", time.Now()),
			NewConflict("c-2", "op-2", time.Now()),
		},
	}))

	// LOCAL: старая операция заменяется новой
	replacement := NewOperation("op-1b", "cart-1", `{"quantity":1}`)
	queued, err := s.ApplyResolution(ctx, "c-1", models.ResolutionLocal, replacement)
	require.NoError(t, err)
	require.NotNil(t, queued)
	assert.Equal(t, "op-1b", queued.OperationID)

	// REMOTE: операция просто удаляется
	queued, err = s.ApplyResolution(ctx, "c-2", models.ResolutionRemote, nil)
	require.NoError(t, err)
	assert.Nil(t, queued)

	pending, err := s.GetPendingOperations(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"op-1b"}, ids(pending))

	_, err = s.GetOperation(ctx, "op-1")
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)
	_, err = s.GetOperation(ctx, "op-2")
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)

	conflicts, err := s.GetUnresolvedConflicts(ctx)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	c1, err := s.GetConflict(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionLocal, c1.ResolutionChoice)

	_, err = s.ApplyResolution(ctx, "c-1", models.ResolutionLocal, nil)
	assert.ErrorIs(t, err, storage.ErrConflictResolved)

	_, err = s.ApplyResolution(ctx, "missing", models.ResolutionRemote, nil)
	assert.ErrorIs(t, err, storage.ErrConflictNotFound)
}

func testApplyResolutionReusesPending(t *testing.T, s storage.Store) {
	ctx := context.Background()

	require.NoError(t, s.AddOperation(ctx, NewOperation("op-1", "cart-1", `{"quantity":3}`)))
	require.NoError(t, s.CommitPush(ctx, storage.PushOutcome{
		Conflicts: []*models.SyncConflict{NewConflict("c-1", "op-1", time.Now())},
	}))

	// Пока конфликт открыт, та же мутация снова попала в очередь
	require.NoError(t, s.AddOperation(ctx, NewOperation("op-2", "cart-1", `{"quantity":3}`)))

	// Совпадает хеш, но не данные: такая операция не считается копией
	collision := NewOperation("op-3", "cart-1", `{"quantity":4}`)
	collision.ContentHash = "hash-" + `{"quantity":3}`
	require.NoError(t, s.AddOperation(ctx, collision))

	queued, err := s.ApplyResolution(ctx, "c-1", models.ResolutionLocal, NewOperation("op-1b", "cart-1", `{"quantity":3}`))
	require.NoError(t, err)
	require.NotNil(t, queued)
	assert.Equal(t, "op-2", queued.OperationID, "identical pending mutation is returned")

	pending, err := s.GetPendingOperations(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"op-2", "op-3"}, ids(pending))

	_, err = s.GetOperation(ctx, "op-1b")
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)
	_, err = s.GetOperation(ctx, "op-1")
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)

	c1, err := s.GetConflict(ctx, "c-1")
	require.NoError(t, err)
	assert.True(t, c1.Resolved)
}

func testApplyResolutionRollsBack(t *testing.T, s storage.Store) {
	ctx := context.Background()

	require.NoError(t, s.AddOperation(ctx, NewOperation("a", "cart-1", `{"quantity":1}`)))
	require.NoError(t, s.AddOperation(ctx, NewOperation("b", "cart-2", `{"quantity":2}`)))
	require.NoError(t, s.CommitPush(ctx, storage.PushOutcome{
		Conflicts: []*models.SyncConflict{NewConflict("c-a", "a", time.Now())},
	}))

	// Замена с занятым идентификатором обрывает транзакцию уже после удаления исходной операции
	replacement := NewOperation("b", "cart-1", `{"quantity":5}`)
	_, err := s.ApplyResolution(ctx, "c-a", models.ResolutionMerged, replacement)
	require.ErrorIs(t, err, storage.ErrDuplicateOperation)

	held, err := s.GetOperation(ctx, "a")
	require.NoError(t, err, "conflicted operation must survive a failed resolution")
	assert.JSONEq(t, `{"quantity":1}`, string(held.Data))

	other, err := s.GetOperation(ctx, "b")
	require.NoError(t, err)
	assert.JSONEq(t, `{"quantity":2}`, string(other.Data), "existing operation is never overwritten")

	conflict, err := s.GetConflict(ctx, "c-a")
	require.NoError(t, err)
	assert.False(t, conflict.Resolved)
	assert.Empty(t, conflict.ResolutionChoice)

	pending, err := s.GetPendingOperations(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(pending))

	conflicts, err := s.GetUnresolvedConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "c-a", conflicts[0].ConflictID)
}

func testSyncState(t *testing.T, s storage.Store) {
	ctx := context.Background()

	state, err := s.GetSyncState(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.SyncState{}, state, "fresh store has zero state")

	device := "device-42"
	updated, err := s.UpdateSyncState(ctx, models.SyncStatePatch{DeviceID: &device})
	require.NoError(t, err)
	assert.Equal(t, "device-42", updated.DeviceID)

	ts := int64(9)
	_, err = s.UpdateSyncState(ctx, models.SyncStatePatch{LastLamportTS: &ts})
	require.NoError(t, err)

	state, err = s.GetSyncState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "device-42", state.DeviceID, "merge keeps untouched fields")
	assert.Equal(t, int64(9), state.LastLamportTS)
	assert.False(t, state.IsOnline)
}

func testRemoteOperations(t *testing.T, s storage.Store) {
	ctx := context.Background()

	a := NewOperation("r-1", "e", `{"v":1}`)
	a.LamportTS = 20
	b := NewOperation("r-2", "e", `{"v":2}`)
	b.LamportTS = 10
	require.NoError(t, s.SaveRemoteOperations(ctx, []*models.SyncOperation{a, b}))
	require.NoError(t, s.SaveRemoteOperations(ctx, nil))

	// Повторная загрузка той же операции - upsert
	a2 := a.Clone()
	a2.Data = json.RawMessage(`{"v":3}`)
	require.NoError(t, s.SaveRemoteOperations(ctx, []*models.SyncOperation{a2}))

	remote, err := s.GetRemoteOperations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, remote, 2)
	assert.Equal(t, "r-2", remote[0].OperationID)
	assert.JSONEq(t, `{"v":3}`, string(remote[1].Data))

	remote, err = s.GetRemoteOperations(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"r-1"}, ids(remote))

	// Удаленные операции не попадают в очередь отправки
	count, err := s.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func testClosed(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Close())

	err := s.AddOperation(ctx, NewOperation("op-1", "e", `{}`))
	assert.ErrorIs(t, err, storage.ErrStorage)

	_, err = s.GetPendingOperations(ctx, nil)
	assert.ErrorIs(t, err, storage.ErrStorage)

	_, err = s.GetSyncState(ctx)
	assert.ErrorIs(t, err, storage.ErrStorage)
}
