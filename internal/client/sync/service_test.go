package sync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpClient "github.com/iudanet/agromarket/internal/client/api"
	"github.com/iudanet/agromarket/internal/client/api/apitest"
	"github.com/iudanet/agromarket/internal/client/oplog"
	"github.com/iudanet/agromarket/internal/client/storage"
	"github.com/iudanet/agromarket/internal/client/storage/boltdb"
	"github.com/iudanet/agromarket/internal/models"
	"github.com/iudanet/agromarket/pkg/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()

	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func newTestService(t *testing.T, client APIClient, store storage.Store) Service {
	t.Helper()

	svc := NewService(client, store, oplog.NewFactory("", nil), Config{ClientVersion: "test"}, testLogger())
	require.NoError(t, svc.Init(context.Background()))
	t.Cleanup(func() {
		_ = svc.Dispose()
	})
	return svc
}

// newServerFixture поднимает тестовый сервер и сервис поверх BoltDB
func newServerFixture(t *testing.T) (*apitest.Server, Service, storage.Store) {
	t.Helper()

	server := apitest.NewServer(nil)
	t.Cleanup(server.Close)

	store := newTestStore(t)
	svc := newTestService(t, httpClient.NewClient(server.URL), store)
	return server, svc, store
}

func cartItem(productID, quantity int) map[string]any {
	return map[string]any{"product_id": productID, "quantity": quantity}
}

// acceptAll имитирует сервер, принимающий весь пакет
func acceptAll(ops []models.SyncOperation, base int64) *api.PushResponse {
	resp := &api.PushResponse{}
	for i, op := range ops {
		op.LamportTS = base + int64(i) + 1
		resp.Accepted = append(resp.Accepted, op)
		resp.NewLamportTS = op.LamportTS
	}
	return resp
}

func pendingIDs(t *testing.T, svc Service) []string {
	t.Helper()

	ops, err := svc.PendingOperations(context.Background())
	require.NoError(t, err)

	ids := make([]string, 0, len(ops))
	for _, op := range ops {
		ids = append(ids, op.OperationID)
	}
	return ids
}

func TestService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := NewService(&APIClientMock{}, store, oplog.NewFactory("", nil), Config{}, testLogger())

	_, err := svc.Record(ctx, models.OperationCreate, models.EntityCartItem, "cart-1", cartItem(1, 1))
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = svc.SyncPush(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, svc.Init(ctx))
	require.NoError(t, svc.Init(ctx), "Init is idempotent")

	deviceID := svc.DeviceID()
	require.NotEmpty(t, deviceID)

	state, err := svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, deviceID, state.DeviceID, "device id must be persisted")

	op, err := svc.Record(ctx, models.OperationCreate, models.EntityCartItem, "cart-1", cartItem(1, 1))
	require.NoError(t, err)
	assert.Equal(t, deviceID, op.DeviceID)

	require.NoError(t, svc.Dispose())
	require.NoError(t, svc.Dispose())

	_, err = svc.PendingCount(ctx)
	assert.ErrorIs(t, err, ErrDisposed)
	assert.ErrorIs(t, svc.Init(ctx), ErrDisposed)

	// Новый экземпляр сервиса поверх того же хранилища сохраняет device id
	restarted := newTestService(t, &APIClientMock{}, store)
	assert.Equal(t, deviceID, restarted.DeviceID())

	count, err := restarted.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestService_InitUsesFactoryDeviceID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	svc := NewService(&APIClientMock{}, store, oplog.NewFactory("device-fixed", nil), Config{}, testLogger())
	require.NoError(t, svc.Init(ctx))
	defer func() { _ = svc.Dispose() }()

	assert.Equal(t, "device-fixed", svc.DeviceID())
}

func TestService_Record(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &APIClientMock{}, newTestStore(t))

	first, err := svc.Record(ctx, models.OperationCreate, models.EntityCartItem, "cart-1", cartItem(7, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.LamportTS)
	assert.Equal(t, int64(1), first.Version)

	// Тот же payload с другим порядком ключей - та же операция
	again, err := svc.Record(ctx, models.OperationCreate, models.EntityCartItem, "cart-1",
		json.RawMessage(`{"quantity":2,"product_id":7}`))
	require.NoError(t, err)
	assert.Equal(t, first.OperationID, again.OperationID, "identical pending mutation must not mint a new id")

	changed, err := svc.Record(ctx, models.OperationCreate, models.EntityCartItem, "cart-1", cartItem(7, 3))
	require.NoError(t, err)
	assert.NotEqual(t, first.OperationID, changed.OperationID)

	deleted, err := svc.Record(ctx, models.OperationDelete, models.EntityCartItem, "cart-1", cartItem(7, 2))
	require.NoError(t, err)
	assert.NotEqual(t, first.OperationID, deleted.OperationID)

	assert.Equal(t, []string{first.OperationID, changed.OperationID, deleted.OperationID}, pendingIDs(t, svc))
}

func TestService_RecordInvalid(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &APIClientMock{}, newTestStore(t))

	tests := []struct {
		data       any
		name       string
		opType     models.OperationType
		entityType models.EntityType
		entityID   string
	}{
		{name: "unknown operation type", opType: "UPSERT", entityType: models.EntityCartItem, entityID: "cart-1", data: cartItem(1, 1)},
		{name: "unknown entity type", opType: models.OperationCreate, entityType: "Wishlist", entityID: "w-1", data: cartItem(1, 1)},
		{name: "empty entity id", opType: models.OperationCreate, entityType: models.EntityCartItem, entityID: "", data: cartItem(1, 1)},
		{name: "not serializable", opType: models.OperationCreate, entityType: models.EntityCartItem, entityID: "cart-1", data: func() {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Record(ctx, tt.opType, tt.entityType, tt.entityID, tt.data)
			assert.ErrorIs(t, err, models.ErrInvalidOperation)
		})
	}

	count, err := svc.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSyncPush_NothingPending(t *testing.T) {
	mock := &APIClientMock{}
	svc := newTestService(t, mock, newTestStore(t))

	result, err := svc.SyncPush(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Accepted)
	assert.Empty(t, result.Rejected)
	assert.Empty(t, mock.PushCalls(), "no network call for an empty queue")
}

func TestSyncPush_IdempotentAcceptance(t *testing.T) {
	ctx := context.Background()
	server, svc, _ := newServerFixture(t)

	op, err := svc.Record(ctx, models.OperationCreate, models.EntityCartItem, "cart-1", cartItem(7, 2))
	require.NoError(t, err)

	result, err := svc.SyncPush(ctx)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.Accepted, 1)
	assert.Equal(t, op.OperationID, result.Accepted[0].OperationID)
	assert.Equal(t, int64(1), result.Accepted[0].LamportTS)

	assert.Empty(t, pendingIDs(t, svc), "accepted operation must leave the store")

	// Второй push не может переотправить принятую операцию
	result, err = svc.SyncPush(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Accepted)

	assert.Len(t, server.Pushes(), 1)
	assert.Len(t, server.Accepted(), 1)
}

func TestSyncPush_TransportFailureKeepsQueue(t *testing.T) {
	ctx := context.Background()
	server, svc, _ := newServerFixture(t)

	for i := 1; i <= 3; i++ {
		_, err := svc.Record(ctx, models.OperationCreate, models.EntityCartItem, "cart-"+string(rune('0'+i)), cartItem(i, i))
		require.NoError(t, err)
	}

	before, err := svc.PendingOperations(ctx)
	require.NoError(t, err)

	server.FailNextPushes(1)

	result, err := svc.SyncPush(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "503")

	after, err := svc.PendingOperations(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed push must not touch the queue")

	state, err := svc.State(ctx)
	require.NoError(t, err)
	assert.True(t, state.LastSync.IsZero())

	// Следующая попытка проходит
	result, err = svc.SyncPush(ctx)
	require.NoError(t, err)
	assert.Len(t, result.Accepted, 3)
}

func TestSyncPush_NetworkError(t *testing.T) {
	ctx := context.Background()
	netErr := errors.New("dial tcp: connection refused")
	mock := &APIClientMock{
		PushFunc: func(ctx context.Context, req api.PushRequest) (*api.PushResponse, error) {
			return nil, netErr
		},
	}
	svc := newTestService(t, mock, newTestStore(t))

	_, err := svc.Record(ctx, models.OperationCreate, models.EntityOrder, "order-1", map[string]any{"total": 10})
	require.NoError(t, err)

	result, err := svc.SyncPush(ctx)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, netErr)
	assert.False(t, result.Success)
	assert.Equal(t, netErr.Error(), result.Message)
	assert.False(t, svc.IsSyncing())

	count, err := svc.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSyncPush_StorageFailure(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := newTestService(t, &APIClientMock{}, store)

	require.NoError(t, store.Close())

	result, err := svc.SyncPush(ctx)
	assert.ErrorIs(t, err, storage.ErrStorage)
	assert.False(t, result.Success)
}

func TestSyncPush_AtMostOneInFlight(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})

	mock := &APIClientMock{
		PushFunc: func(ctx context.Context, req api.PushRequest) (*api.PushResponse, error) {
			close(started)
			<-release
			return acceptAll(req.Operations, 0), nil
		},
	}
	svc := newTestService(t, mock, newTestStore(t))

	_, err := svc.Record(ctx, models.OperationCreate, models.EntityCartItem, "cart-1", cartItem(7, 2))
	require.NoError(t, err)

	type outcome struct {
		result *PushResult
		err    error
	}
	firstDone := make(chan outcome, 1)
	go func() {
		result, err := svc.SyncPush(ctx)
		firstDone <- outcome{result: result, err: err}
	}()

	<-started
	assert.True(t, svc.IsSyncing())

	second, err := svc.SyncPush(ctx)
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.False(t, second.Success)
	assert.Equal(t, "Sync already in progress", second.Message)

	close(release)
	first := <-firstDone
	require.NoError(t, first.err)
	assert.True(t, first.result.Success)
	assert.False(t, svc.IsSyncing())
	assert.Len(t, mock.PushCalls(), 1)
}

func TestSyncPush_OrderAndHighWaterMark(t *testing.T) {
	ctx := context.Background()
	server, svc, _ := newServerFixture(t)

	var ids []string
	for _, entityID := range []string{"cart-a", "cart-b", "cart-c"} {
		op, err := svc.Record(ctx, models.OperationCreate, models.EntityCartItem, entityID, cartItem(1, 1))
		require.NoError(t, err)
		ids = append(ids, op.OperationID)
	}

	startedAt := time.Now()
	result, err := svc.SyncPush(ctx)
	require.NoError(t, err)
	require.Len(t, result.Accepted, 3)

	pushes := server.Pushes()
	require.Len(t, pushes, 1)
	sent := make([]string, 0, len(pushes[0]))
	for _, op := range pushes[0] {
		sent = append(sent, op.OperationID)
	}
	assert.Equal(t, ids, sent, "operations are pushed in insertion order")

	var maxTS int64
	for _, op := range result.Accepted {
		maxTS = max(maxTS, op.LamportTS)
	}

	state, err := svc.State(ctx)
	require.NoError(t, err)
	assert.Empty(t, pendingIDs(t, svc))
	assert.Equal(t, maxTS, state.LastLamportTS)
	assert.Equal(t, result.NewLamportTS, state.LastLamportTS)
	assert.True(t, state.IsOnline)
	assert.False(t, state.LastSync.Before(startedAt))
}

func TestSyncPush_HighWaterMarkOnlyMovesForward(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	seed := int64(100)
	_, err := store.UpdateSyncState(ctx, models.SyncStatePatch{LastLamportTS: &seed})
	require.NoError(t, err)

	mock := &APIClientMock{
		PushFunc: func(ctx context.Context, req api.PushRequest) (*api.PushResponse, error) {
			return acceptAll(req.Operations, 4), nil
		},
	}
	svc := newTestService(t, mock, store)

	_, err = svc.Record(ctx, models.OperationCreate, models.EntityCartItem, "cart-1", cartItem(1, 1))
	require.NoError(t, err)

	result, err := svc.SyncPush(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), result.NewLamportTS)

	state, err := svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), state.LastLamportTS)
}

func TestSyncPush_DisjointVerdict(t *testing.T) {
	ctx := context.Background()

	var a, b *models.SyncOperation
	mock := &APIClientMock{
		PushFunc: func(ctx context.Context, req api.PushRequest) (*api.PushResponse, error) {
			accepted := *a
			accepted.LamportTS = 9
			return &api.PushResponse{
				Accepted: []models.SyncOperation{accepted},
				Rejected: []api.RejectedOperation{
					// Операция не может быть одновременно принята и отклонена
					{OperationID: a.OperationID, ConflictID: "c-a"},
					{OperationID: "unknown-op", ConflictID: "c-x"},
				},
				ConflictsDetected: 2,
				NewLamportTS:      9,
			}, nil
		},
	}
	svc := newTestService(t, mock, newTestStore(t))

	var err error
	a, err = svc.Record(ctx, models.OperationCreate, models.EntityCartItem, "cart-a", cartItem(1, 1))
	require.NoError(t, err)
	b, err = svc.Record(ctx, models.OperationCreate, models.EntityCartItem, "cart-b", cartItem(2, 1))
	require.NoError(t, err)

	result, err := svc.SyncPush(ctx)
	require.NoError(t, err)
	assert.Len(t, result.Accepted, 1)
	assert.Empty(t, result.Rejected)

	// b отсутствует в обоих списках и остается в очереди
	assert.Equal(t, []string{b.OperationID}, pendingIDs(t, svc))

	conflicts, err := svc.UnresolvedConflicts(ctx)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestSyncPush_TimestampsTakenAfterResponse(t *testing.T) {
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := base
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	var op *models.SyncOperation
	mock := &APIClientMock{
		PushFunc: func(ctx context.Context, req api.PushRequest) (*api.PushResponse, error) {
			// Медленный ответ сервера
			mu.Lock()
			now = now.Add(30 * time.Second)
			mu.Unlock()
			return &api.PushResponse{
				Rejected: []api.RejectedOperation{{OperationID: op.OperationID, ConflictID: "c-1"}},
			}, nil
		},
	}
	store := newTestStore(t)
	svc := NewService(mock, store, oplog.NewFactory("", nil), Config{Now: clock}, testLogger())
	require.NoError(t, svc.Init(ctx))
	t.Cleanup(func() {
		_ = svc.Dispose()
	})

	var err error
	op, err = svc.Record(ctx, models.OperationCreate, models.EntityCartItem, "cart-1", cartItem(1, 1))
	require.NoError(t, err)

	_, err = svc.SyncPush(ctx)
	require.NoError(t, err)

	finished := base.Add(30 * time.Second)

	state, err := svc.State(ctx)
	require.NoError(t, err)
	assert.True(t, finished.Equal(state.LastSync), "last_sync = %s", state.LastSync)

	conflict, err := store.GetConflict(ctx, "c-1")
	require.NoError(t, err)
	assert.True(t, finished.Equal(conflict.CreatedAt), "created_at = %s", conflict.CreatedAt)
}

// rejectedFixture создает одну принятую и одну отклоненную операцию
func rejectedFixture(t *testing.T) (*apitest.Server, Service, storage.Store, *models.SyncOperation, *models.SyncConflict) {
	t.Helper()
	ctx := context.Background()

	server, svc, store := newServerFixture(t)
	server.RejectEntity("cart-2", models.ConflictVersionMismatch)

	_, err := svc.Record(ctx, models.OperationCreate, models.EntityCartItem, "cart-1", cartItem(1, 1))
	require.NoError(t, err)
	rejected, err := svc.Record(ctx, models.OperationUpdate, models.EntityCartItem, "cart-2", cartItem(2, 5))
	require.NoError(t, err)

	result, err := svc.SyncPush(ctx)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.Accepted, 1)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, 1, result.ConflictsDetected)

	conflict := result.Rejected[0]
	assert.Equal(t, rejected.OperationID, conflict.OperationID)
	assert.Equal(t, models.ConflictVersionMismatch, conflict.ConflictType)
	assert.False(t, conflict.Resolved)

	return server, svc, store, rejected, conflict
}

func TestSyncPush_RejectedBecomesConflict(t *testing.T) {
	ctx := context.Background()
	server, svc, store, rejected, conflict := rejectedFixture(t)

	// Отклоненная операция не отправляется повторно, но хранится для разрешения
	assert.Empty(t, pendingIDs(t, svc))
	held, err := store.GetOperation(ctx, rejected.OperationID)
	require.NoError(t, err)
	assert.Equal(t, rejected.Data, held.Data)

	conflicts, err := svc.UnresolvedConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, conflict.ConflictID, conflicts[0].ConflictID)

	_, err = svc.SyncPush(ctx)
	require.NoError(t, err)
	assert.Len(t, server.Pushes(), 1, "nothing left to push")
}

func TestResolveConflict_Remote(t *testing.T) {
	ctx := context.Background()
	server, svc, store, rejected, conflict := rejectedFixture(t)

	replacement, err := svc.ResolveConflict(ctx, conflict.ConflictID, models.ResolutionRemote, nil)
	require.NoError(t, err)
	assert.Nil(t, replacement)

	assert.Empty(t, pendingIDs(t, svc))
	_, err = store.GetOperation(ctx, rejected.OperationID)
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)

	resolved, err := store.GetConflict(ctx, conflict.ConflictID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, models.ResolutionRemote, resolved.ResolutionChoice)
	assert.Equal(t, models.ResolutionRemote, server.Resolutions()[conflict.ConflictID])
}

func TestResolveConflict_Local(t *testing.T) {
	ctx := context.Background()
	server, svc, store, rejected, conflict := rejectedFixture(t)

	replacement, err := svc.ResolveConflict(ctx, conflict.ConflictID, models.ResolutionLocal, nil)
	require.NoError(t, err)
	require.NotNil(t, replacement)

	assert.NotEqual(t, rejected.OperationID, replacement.OperationID)
	assert.Equal(t, rejected.Data, replacement.Data)
	assert.Equal(t, rejected.EntityID, replacement.EntityID)
	assert.Equal(t, rejected.OperationType, replacement.OperationType)

	assert.Equal(t, []string{replacement.OperationID}, pendingIDs(t, svc), "exactly one new pending operation")

	resolved, err := store.GetConflict(ctx, conflict.ConflictID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, models.ResolutionLocal, resolved.ResolutionChoice)
	assert.Equal(t, models.ResolutionLocal, server.Resolutions()[conflict.ConflictID])

	// Повторная отправка после снятия конфликта на сервере
	server.AllowEntity("cart-2")
	result, err := svc.SyncPush(ctx)
	require.NoError(t, err)
	require.Len(t, result.Accepted, 1)
	assert.Equal(t, replacement.OperationID, result.Accepted[0].OperationID)
}

func TestResolveConflict_Merged(t *testing.T) {
	ctx := context.Background()
	server, svc, _, _, conflict := rejectedFixture(t)

	merged := json.RawMessage(`{"product_id":2,"quantity":4}`)
	replacement, err := svc.ResolveConflict(ctx, conflict.ConflictID, models.ResolutionMerged, merged)
	require.NoError(t, err)
	require.NotNil(t, replacement)
	assert.JSONEq(t, string(merged), string(replacement.Data))

	assert.Equal(t, models.ResolutionLocal, server.Resolutions()[conflict.ConflictID], "merged payload is reported as local")
	assert.Equal(t, []string{replacement.OperationID}, pendingIDs(t, svc))
}

func TestResolveConflict_LocalReusesIdenticalPending(t *testing.T) {
	ctx := context.Background()
	server, svc, store, rejected, conflict := rejectedFixture(t)

	// Пока конфликт открыт, пользователь повторяет ту же правку
	again, err := svc.Record(ctx, models.OperationUpdate, models.EntityCartItem, "cart-2", cartItem(2, 5))
	require.NoError(t, err)
	require.NotEqual(t, rejected.OperationID, again.OperationID, "conflicted operation is not pending")

	queued, err := svc.ResolveConflict(ctx, conflict.ConflictID, models.ResolutionLocal, nil)
	require.NoError(t, err)
	require.NotNil(t, queued)
	assert.Equal(t, again.OperationID, queued.OperationID)

	assert.Equal(t, []string{again.OperationID}, pendingIDs(t, svc), "no second copy of the same mutation")

	_, err = store.GetOperation(ctx, rejected.OperationID)
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)

	resolved, err := store.GetConflict(ctx, conflict.ConflictID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, models.ResolutionLocal, server.Resolutions()[conflict.ConflictID])
}

func TestResolveConflict_ClientAssignedID(t *testing.T) {
	ctx := context.Background()

	var op *models.SyncOperation
	mock := &APIClientMock{
		PushFunc: func(ctx context.Context, req api.PushRequest) (*api.PushResponse, error) {
			return &api.PushResponse{
				Rejected: []api.RejectedOperation{
					{OperationID: op.OperationID, ConflictType: models.ConflictConcurrentDelete},
				},
				ConflictsDetected: 1,
			}, nil
		},
		ResolveConflictFunc: func(ctx context.Context, conflictID string, resolution models.ResolutionChoice) error {
			return errors.New("404 conflict not found")
		},
	}
	store := newTestStore(t)
	svc := newTestService(t, mock, store)

	var err error
	op, err = svc.Record(ctx, models.OperationDelete, models.EntityCartItem, "cart-9", map[string]any{})
	require.NoError(t, err)

	result, err := svc.SyncPush(ctx)
	require.NoError(t, err)
	require.Len(t, result.Rejected, 1)
	conflict := result.Rejected[0]
	assert.NotEmpty(t, conflict.ConflictID)
	assert.True(t, conflict.LocalOnly)

	stored, err := store.GetConflict(ctx, conflict.ConflictID)
	require.NoError(t, err)
	assert.True(t, stored.LocalOnly, "flag survives the store round trip")

	// Сервер не знает этот id: разрешение не требует сетевого вызова
	queued, err := svc.ResolveConflict(ctx, conflict.ConflictID, models.ResolutionRemote, nil)
	require.NoError(t, err)
	assert.Nil(t, queued)
	assert.Empty(t, mock.ResolveConflictCalls())

	stored, err = store.GetConflict(ctx, conflict.ConflictID)
	require.NoError(t, err)
	assert.True(t, stored.Resolved)

	_, err = store.GetOperation(ctx, op.OperationID)
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)
}

func TestResolveConflict_FailureLeavesConflictOpen(t *testing.T) {
	ctx := context.Background()
	server, svc, store, rejected, conflict := rejectedFixture(t)

	server.SetDown(true)

	_, err := svc.ResolveConflict(ctx, conflict.ConflictID, models.ResolutionLocal, nil)
	require.ErrorIs(t, err, ErrTransport)

	stored, err := store.GetConflict(ctx, conflict.ConflictID)
	require.NoError(t, err)
	assert.False(t, stored.Resolved)

	_, err = store.GetOperation(ctx, rejected.OperationID)
	require.NoError(t, err, "original operation is kept for a retry")
	assert.Empty(t, pendingIDs(t, svc))

	server.SetDown(false)
	_, err = svc.ResolveConflict(ctx, conflict.ConflictID, models.ResolutionLocal, nil)
	require.NoError(t, err)
}

func TestResolveConflict_Invalid(t *testing.T) {
	ctx := context.Background()
	_, svc, _, _, conflict := rejectedFixture(t)

	_, err := svc.ResolveConflict(ctx, conflict.ConflictID, "THEIRS", nil)
	assert.ErrorIs(t, err, ErrInvalidResolution)

	_, err = svc.ResolveConflict(ctx, conflict.ConflictID, models.ResolutionMerged, nil)
	assert.ErrorIs(t, err, ErrInvalidResolution)

	_, err = svc.ResolveConflict(ctx, "missing", models.ResolutionRemote, nil)
	assert.ErrorIs(t, err, storage.ErrConflictNotFound)

	_, err = svc.ResolveConflict(ctx, conflict.ConflictID, models.ResolutionRemote, nil)
	require.NoError(t, err)

	_, err = svc.ResolveConflict(ctx, conflict.ConflictID, models.ResolutionRemote, nil)
	assert.ErrorIs(t, err, storage.ErrConflictResolved)
}

func TestSyncPull(t *testing.T) {
	ctx := context.Background()
	server, svc, store := newServerFixture(t)

	other := oplog.NewFactory("device-other", nil)
	var seeded []models.SyncOperation
	for _, id := range []string{"review-1", "review-2"} {
		op, err := other.CreateOperation(models.OperationCreate, models.EntityReview, id, map[string]any{"rating": 5})
		require.NoError(t, err)
		seeded = append(seeded, op)
	}
	server.Seed(seeded...)

	startedAt := time.Now()
	result, err := svc.SyncPull(ctx, nil)
	require.NoError(t, err)
	require.Len(t, result.Operations, 2)
	assert.Equal(t, int64(2), result.LamportTS)

	remote, err := store.GetRemoteOperations(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, remote, 2)

	state, err := svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), state.LastLamportTS)
	assert.False(t, state.LastSync.Before(startedAt))

	// Курсор по умолчанию - сохраненный high-water mark
	result, err = svc.SyncPull(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Operations)

	since := int64(1)
	result, err = svc.SyncPull(ctx, &since)
	require.NoError(t, err)
	require.Len(t, result.Operations, 1)
	assert.Equal(t, seeded[1].OperationID, result.Operations[0].OperationID)

	// Remote операции не попадают в очередь отправки
	assert.Empty(t, pendingIDs(t, svc))
}

func TestSyncPull_Request(t *testing.T) {
	ctx := context.Background()
	mock := &APIClientMock{
		PullFunc: func(ctx context.Context, req api.PullRequest) (*api.PullResponse, error) {
			return &api.PullResponse{}, nil
		},
	}
	svc := newTestService(t, mock, newTestStore(t))

	_, err := svc.SyncPull(ctx, nil)
	require.NoError(t, err)

	calls := mock.PullCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, int64(0), calls[0].Req.SinceLamportTS)
	assert.Equal(t, int64(0), calls[0].Req.SinceVersion)
	assert.Equal(t, DefaultPullLimit, calls[0].Req.Limit)
}

func TestSyncPull_FailureDoesNotBlockPush(t *testing.T) {
	ctx := context.Background()
	mock := &APIClientMock{
		PullFunc: func(ctx context.Context, req api.PullRequest) (*api.PullResponse, error) {
			return nil, errors.New("timeout")
		},
		PushFunc: func(ctx context.Context, req api.PushRequest) (*api.PushResponse, error) {
			return acceptAll(req.Operations, 0), nil
		},
	}
	svc := newTestService(t, mock, newTestStore(t))

	_, err := svc.Record(ctx, models.OperationCreate, models.EntityCartItem, "cart-1", cartItem(1, 1))
	require.NoError(t, err)

	_, err = svc.SyncPull(ctx, nil)
	assert.ErrorIs(t, err, ErrTransport)

	result, err := svc.SyncPush(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, result.Accepted, 1)
}

func TestService_SetOnline(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &APIClientMock{}, newTestStore(t))

	require.NoError(t, svc.SetOnline(ctx, true))
	state, err := svc.State(ctx)
	require.NoError(t, err)
	assert.True(t, state.IsOnline)

	require.NoError(t, svc.SetOnline(ctx, false))
	state, err = svc.State(ctx)
	require.NoError(t, err)
	assert.False(t, state.IsOnline)
}
