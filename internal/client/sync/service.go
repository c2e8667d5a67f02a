// Package sync implements the client side of operation log synchronization:
// push of pending operations, pull of remote operations and conflict bookkeeping.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/agromarket/internal/client/oplog"
	"github.com/iudanet/agromarket/internal/client/storage"
	"github.com/iudanet/agromarket/internal/lamport"
	"github.com/iudanet/agromarket/internal/models"
	"github.com/iudanet/agromarket/pkg/api"
)

// DefaultPullLimit ограничивает количество операций в одном pull
const DefaultPullLimit = 500

//go:generate moq -out api_mock.go . APIClient

// APIClient is the part of the HTTP client used by the sync service
type APIClient interface {
	Push(ctx context.Context, req api.PushRequest) (*api.PushResponse, error)
	Pull(ctx context.Context, req api.PullRequest) (*api.PullResponse, error)
	ResolveConflict(ctx context.Context, conflictID string, resolution models.ResolutionChoice) error
}

// Service определяет интерфейс синхронизации
type Service interface {
	// Init загружает SyncState и при необходимости создает device id
	Init(ctx context.Context) error

	// Dispose ждет завершения текущих вызовов; после него все методы возвращают ErrDisposed
	Dispose() error

	// Record создает операцию и ставит ее в очередь.
	// Если идентичная операция уже ожидает отправки, возвращается она.
	Record(ctx context.Context, opType models.OperationType, entityType models.EntityType, entityID string, data any) (*models.SyncOperation, error)

	// SyncPush отправляет pending операции одним пакетом
	SyncPush(ctx context.Context) (*PushResult, error)

	// SyncPull загружает операции с lamport_ts > since (по умолчанию сохраненный high-water mark)
	SyncPull(ctx context.Context, since *int64) (*PullResult, error)

	// ResolveConflict применяет выбранное разрешение. Для LOCAL и MERGED возвращает операцию в очереди:
	// новую или уже ожидающую идентичную.
	ResolveConflict(ctx context.Context, conflictID string, choice models.ResolutionChoice, merged json.RawMessage) (*models.SyncOperation, error)

	PendingCount(ctx context.Context) (int, error)
	PendingOperations(ctx context.Context) ([]*models.SyncOperation, error)
	UnresolvedConflicts(ctx context.Context) ([]*models.SyncConflict, error)
	State(ctx context.Context) (*models.SyncState, error)
	SetOnline(ctx context.Context, online bool) error
	IsSyncing() bool
	DeviceID() string
}

// Config содержит параметры синхронизации
type Config struct {
	Now           func() time.Time
	ClientVersion string
	PullLimit     int
}

// PushResult contains the outcome of one push pass
type PushResult struct {
	Message           string
	Accepted          []models.SyncOperation // операции с назначенным сервером lamport_ts
	Rejected          []*models.SyncConflict // созданные конфликты
	ConflictsDetected int
	NewLamportTS      int64
	Success           bool
}

// PullResult contains downloaded remote operations
type PullResult struct {
	Operations []models.SyncOperation
	LamportTS  int64 // high-water mark после pull
}

type service struct {
	apiClient APIClient
	store     storage.Store
	factory   *oplog.Factory
	clock     *lamport.Clock
	logger    *slog.Logger
	cfg       Config

	inflight    sync.WaitGroup
	mu          sync.RWMutex
	syncing     atomic.Bool
	initialized bool
	disposed    bool
}

// NewService creates a new sync service. Call Init before use.
func NewService(apiClient APIClient, store storage.Store, factory *oplog.Factory, cfg Config, logger *slog.Logger) Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.PullLimit <= 0 {
		cfg.PullLimit = DefaultPullLimit
	}

	return &service{
		apiClient: apiClient,
		store:     store,
		factory:   factory,
		clock:     lamport.NewClock(0),
		logger:    logger,
		cfg:       cfg,
	}
}

// Init loads the sync state, creates the device id on first start and seeds the Lamport high-water mark
func (s *service) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return ErrDisposed
	}
	if s.initialized {
		return nil
	}

	state, err := s.store.GetSyncState(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sync state: %w", err)
	}

	deviceID := state.DeviceID
	if deviceID == "" {
		deviceID = s.factory.DeviceID()
		if deviceID == "" {
			deviceID = uuid.New().String()
		}

		if _, err := s.store.UpdateSyncState(ctx, models.SyncStatePatch{DeviceID: &deviceID}); err != nil {
			return fmt.Errorf("failed to save device id: %w", err)
		}
		s.logger.Info("Generated device id", "device_id", deviceID)
	}

	s.factory = s.factory.WithDeviceID(deviceID)
	s.clock.Reset(state.LastLamportTS)
	s.initialized = true

	s.logger.Info("Sync service initialized",
		"device_id", deviceID,
		"last_lamport_ts", state.LastLamportTS)

	return nil
}

// Dispose waits for in-flight calls and rejects all later ones
func (s *service) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	s.mu.Unlock()

	s.inflight.Wait()
	s.logger.Info("Sync service disposed")
	return nil
}

// begin регистрирует вызов; Dispose дождется вызова done
func (s *service) begin() (done func(), err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.disposed {
		return nil, ErrDisposed
	}
	if !s.initialized {
		return nil, ErrNotInitialized
	}

	s.inflight.Add(1)
	return s.inflight.Done, nil
}

func (s *service) DeviceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.factory.DeviceID()
}

func (s *service) IsSyncing() bool {
	return s.syncing.Load()
}

// Record creates an operation and appends it to the pending queue
func (s *service) Record(
	ctx context.Context,
	opType models.OperationType,
	entityType models.EntityType,
	entityID string,
	data any,
) (*models.SyncOperation, error) {
	done, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	op, err := s.factory.CreateOperation(opType, entityType, entityID, data)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindPending(ctx, op.EntityType, op.EntityID, op.ContentHash)
	switch {
	case err == nil:
		if storage.SameMutation(existing, &op) {
			s.logger.Debug("Identical operation already pending",
				"operation_id", existing.OperationID,
				"entity_type", existing.EntityType,
				"entity_id", existing.EntityID)
			return existing, nil
		}
	case !errors.Is(err, storage.ErrOperationNotFound):
		return nil, fmt.Errorf("failed to check pending operations: %w", err)
	}

	if err := s.store.AddOperation(ctx, &op); err != nil {
		return nil, fmt.Errorf("failed to save operation: %w", err)
	}

	s.logger.Debug("Operation recorded",
		"operation_id", op.OperationID,
		"operation_type", op.OperationType,
		"entity_type", op.EntityType,
		"entity_id", op.EntityID)

	return &op, nil
}

// SyncPush uploads all pending operations as one batch and applies the server verdict atomically
func (s *service) SyncPush(ctx context.Context) (*PushResult, error) {
	done, err := s.begin()
	if err != nil {
		return &PushResult{Message: err.Error()}, err
	}
	defer done()

	if !s.syncing.CompareAndSwap(false, true) {
		return &PushResult{Message: MessageSyncInProgress}, ErrSyncInProgress
	}
	defer s.syncing.Store(false)

	pending, err := s.store.GetPendingOperations(ctx, nil)
	if err != nil {
		return &PushResult{Message: err.Error()}, fmt.Errorf("failed to read pending operations: %w", err)
	}

	if len(pending) == 0 {
		return &PushResult{
			Success:      true,
			Message:      "Nothing to sync",
			Accepted:     []models.SyncOperation{},
			Rejected:     []*models.SyncConflict{},
			NewLamportTS: s.clock.Current(),
		}, nil
	}

	operations := make([]models.SyncOperation, 0, len(pending))
	pendingByID := make(map[string]*models.SyncOperation, len(pending))
	for _, op := range pending {
		operations = append(operations, *op)
		pendingByID[op.OperationID] = op
	}

	s.logger.Info("Pushing pending operations", "count", len(operations))

	resp, err := s.apiClient.Push(ctx, api.PushRequest{
		Operations:    operations,
		DeviceID:      s.DeviceID(),
		ClientVersion: s.cfg.ClientVersion,
	})
	if err != nil {
		// Очередь не трогаем: повтор - забота планировщика
		s.logger.Warn("Push failed, pending operations kept", "count", len(operations), "error", err)
		return &PushResult{Message: err.Error()}, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	// Время фиксируем после ответа: last_sync отражает момент завершения обмена
	outcome, result := s.buildOutcome(resp, pendingByID, s.cfg.Now())

	if err := s.store.CommitPush(ctx, outcome); err != nil {
		s.logger.Error("Failed to apply push result", "error", err)
		return &PushResult{Message: err.Error()}, fmt.Errorf("failed to commit push result: %w", err)
	}

	s.clock.Witness(result.NewLamportTS)

	s.logger.Info("Push completed",
		"accepted", len(result.Accepted),
		"rejected", len(result.Rejected),
		"new_lamport_ts", result.NewLamportTS)

	return result, nil
}

// buildOutcome сопоставляет ответ сервера с отправленными операциями.
// Accepted и rejected считаются непересекающимися; операции вне обоих списков остаются в очереди.
func (s *service) buildOutcome(
	resp *api.PushResponse,
	pendingByID map[string]*models.SyncOperation,
	now time.Time,
) (storage.PushOutcome, *PushResult) {
	result := &PushResult{
		Success:  true,
		Accepted: make([]models.SyncOperation, 0, len(resp.Accepted)),
		Rejected: make([]*models.SyncConflict, 0, len(resp.Rejected)),
	}

	highWater := s.clock.Current()
	if resp.NewLamportTS > highWater {
		highWater = resp.NewLamportTS
	}

	acceptedIDs := make(map[string]struct{}, len(resp.Accepted))
	for _, op := range resp.Accepted {
		if _, ok := pendingByID[op.OperationID]; !ok {
			s.logger.Warn("Server accepted unknown operation", "operation_id", op.OperationID)
			continue
		}
		if _, dup := acceptedIDs[op.OperationID]; dup {
			continue
		}
		acceptedIDs[op.OperationID] = struct{}{}

		if op.LamportTS > highWater {
			highWater = op.LamportTS
		}
		result.Accepted = append(result.Accepted, *op.Clone())
	}

	for _, rej := range resp.Rejected {
		if _, ok := pendingByID[rej.OperationID]; !ok {
			s.logger.Warn("Server rejected unknown operation", "operation_id", rej.OperationID)
			continue
		}
		if _, ok := acceptedIDs[rej.OperationID]; ok {
			// Сервер уже закоммитил операцию - конфликт не создаем
			s.logger.Warn("Operation reported both accepted and rejected", "operation_id", rej.OperationID)
			continue
		}

		conflict := &models.SyncConflict{
			CreatedAt:              now.UTC(),
			ConflictID:             rej.ConflictID,
			OperationID:            rej.OperationID,
			ConflictingOperationID: rej.ConflictingOperationID,
			ConflictType:           rej.ConflictType,
			ResolutionLevel:        rej.ResolutionLevel,
		}
		if conflict.ConflictID == "" {
			// Серверу этот id неизвестен, разрешение остается локальным
			conflict.ConflictID = uuid.New().String()
			conflict.LocalOnly = true
		}
		if conflict.ConflictType == "" {
			conflict.ConflictType = models.ConflictVersionMismatch
		}
		// Защита от повтора одной операции в rejected
		acceptedIDs[rej.OperationID] = struct{}{}
		result.Rejected = append(result.Rejected, conflict)
	}

	result.NewLamportTS = highWater
	result.ConflictsDetected = max(resp.ConflictsDetected, len(result.Rejected))
	result.Message = fmt.Sprintf("Pushed %d operations: %d accepted, %d rejected",
		len(pendingByID), len(result.Accepted), len(result.Rejected))

	online := true
	ids := make([]string, 0, len(result.Accepted))
	for _, op := range result.Accepted {
		ids = append(ids, op.OperationID)
	}

	outcome := storage.PushOutcome{
		AcceptedIDs: ids,
		Conflicts:   result.Rejected,
		State: models.SyncStatePatch{
			LastSync:      &now,
			LastLamportTS: &highWater,
			IsOnline:      &online,
		},
	}

	return outcome, result
}

// SyncPull downloads remote operations newer than the cursor and stores them
func (s *service) SyncPull(ctx context.Context, since *int64) (*PullResult, error) {
	done, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	cursor := s.clock.Current()
	if since != nil {
		cursor = *since
	}

	resp, err := s.apiClient.Pull(ctx, api.PullRequest{
		SinceLamportTS: cursor,
		SinceVersion:   0,
		Limit:          s.cfg.PullLimit,
	})
	if err != nil {
		s.logger.Warn("Pull failed", "since", cursor, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	highWater := s.clock.Current()
	ops := make([]*models.SyncOperation, 0, len(resp.Operations))
	for i := range resp.Operations {
		op := &resp.Operations[i]
		if op.LamportTS > highWater {
			highWater = op.LamportTS
		}
		ops = append(ops, op)
	}

	if err := s.store.SaveRemoteOperations(ctx, ops); err != nil {
		return nil, fmt.Errorf("failed to save remote operations: %w", err)
	}

	now := s.cfg.Now()
	online := true
	if _, err := s.store.UpdateSyncState(ctx, models.SyncStatePatch{
		LastSync:      &now,
		LastLamportTS: &highWater,
		IsOnline:      &online,
	}); err != nil {
		return nil, fmt.Errorf("failed to update sync state: %w", err)
	}

	s.clock.Witness(highWater)

	s.logger.Info("Pull completed",
		"since", cursor,
		"operations", len(ops),
		"lamport_ts", highWater)

	return &PullResult{Operations: resp.Operations, LamportTS: highWater}, nil
}

// ResolveConflict notifies the server first and then applies the resolution locally in one transaction.
// Any failure leaves the conflict unresolved.
func (s *service) ResolveConflict(
	ctx context.Context,
	conflictID string,
	choice models.ResolutionChoice,
	merged json.RawMessage,
) (*models.SyncOperation, error) {
	done, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	if !choice.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResolution, choice)
	}
	if choice == models.ResolutionMerged && len(merged) == 0 {
		return nil, fmt.Errorf("%w: merged payload is required", ErrInvalidResolution)
	}

	conflict, err := s.store.GetConflict(ctx, conflictID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conflict: %w", err)
	}
	if conflict.Resolved {
		return nil, fmt.Errorf("%w: %s", storage.ErrConflictResolved, conflictID)
	}

	var replacement *models.SyncOperation
	if choice != models.ResolutionRemote {
		original, err := s.store.GetOperation(ctx, conflict.OperationID)
		if err != nil {
			return nil, fmt.Errorf("failed to get conflicted operation: %w", err)
		}

		data := original.Data
		if choice == models.ResolutionMerged {
			data = merged
		}

		op, err := s.factory.Resubmit(original, data)
		if err != nil {
			return nil, err
		}
		replacement = &op
	}

	// Для сервера объединенный payload - это локальная версия
	serverChoice := choice
	if choice == models.ResolutionMerged {
		serverChoice = models.ResolutionLocal
	}

	if conflict.LocalOnly {
		s.logger.Debug("Conflict is unknown to the server, resolving locally", "conflict_id", conflictID)
	} else if err := s.apiClient.ResolveConflict(ctx, conflictID, serverChoice); err != nil {
		s.logger.Warn("Failed to report conflict resolution", "conflict_id", conflictID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	queued, err := s.store.ApplyResolution(ctx, conflictID, choice, replacement)
	if err != nil {
		return nil, fmt.Errorf("failed to apply resolution: %w", err)
	}
	if queued != nil && queued.OperationID != replacement.OperationID {
		s.logger.Debug("Identical operation already pending",
			"operation_id", queued.OperationID,
			"entity_type", queued.EntityType,
			"entity_id", queued.EntityID)
	}

	s.logger.Info("Conflict resolved",
		"conflict_id", conflictID,
		"operation_id", conflict.OperationID,
		"resolution", choice)

	return queued, nil
}

func (s *service) PendingCount(ctx context.Context) (int, error) {
	done, err := s.begin()
	if err != nil {
		return 0, err
	}
	defer done()

	count, err := s.store.CountPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending operations: %w", err)
	}
	return count, nil
}

func (s *service) PendingOperations(ctx context.Context) ([]*models.SyncOperation, error) {
	done, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	ops, err := s.store.GetPendingOperations(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending operations: %w", err)
	}
	return ops, nil
}

func (s *service) UnresolvedConflicts(ctx context.Context) ([]*models.SyncConflict, error) {
	done, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	conflicts, err := s.store.GetUnresolvedConflicts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get unresolved conflicts: %w", err)
	}
	return conflicts, nil
}

func (s *service) State(ctx context.Context) (*models.SyncState, error) {
	done, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	state, err := s.store.GetSyncState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}
	return state, nil
}

// SetOnline persists the connectivity flag reported by the observer
func (s *service) SetOnline(ctx context.Context, online bool) error {
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()

	if _, err := s.store.UpdateSyncState(ctx, models.SyncStatePatch{IsOnline: &online}); err != nil {
		return fmt.Errorf("failed to update online state: %w", err)
	}
	return nil
}
