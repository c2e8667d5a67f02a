// Package oplog builds immutable, content-addressed operation records from user actions.
package oplog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/agromarket/internal/crypto"
	"github.com/iudanet/agromarket/internal/models"
	"github.com/iudanet/agromarket/internal/validation"
)

// initialVersion начальная версия optimistic concurrency
const initialVersion = 1

// Factory creates SyncOperation records. It has no side effects and never touches the store.
type Factory struct {
	now      func() time.Time
	newID    func() string
	deviceID string
}

// NewFactory creates an operation factory bound to a device id.
// If now is nil, time.Now is used.
func NewFactory(deviceID string, now func() time.Time) *Factory {
	if now == nil {
		now = time.Now
	}
	return &Factory{
		deviceID: deviceID,
		now:      now,
		newID:    func() string { return uuid.New().String() },
	}
}

// DeviceID returns the device id stamped on created operations
func (f *Factory) DeviceID() string {
	return f.deviceID
}

// WithDeviceID returns a copy of the factory bound to another device id
func (f *Factory) WithDeviceID(deviceID string) *Factory {
	clone := *f
	clone.deviceID = deviceID
	return &clone
}

// CreateOperation builds a new operation with a fresh UUID, lamport_ts = 0 and version = 1.
// data is any JSON-serializable value; json.RawMessage and []byte are taken as already encoded JSON.
func (f *Factory) CreateOperation(
	opType models.OperationType,
	entityType models.EntityType,
	entityID string,
	data any,
) (models.SyncOperation, error) {
	if !opType.Valid() {
		return models.SyncOperation{}, fmt.Errorf("%w: unknown operation type %q", models.ErrInvalidOperation, opType)
	}
	if !entityType.Valid() {
		return models.SyncOperation{}, fmt.Errorf("%w: unknown entity type %q", models.ErrInvalidOperation, entityType)
	}
	if err := validation.ValidateEntityID(entityID); err != nil {
		return models.SyncOperation{}, fmt.Errorf("%w: %w", models.ErrInvalidOperation, err)
	}

	payload, err := encodeData(data)
	if err != nil {
		return models.SyncOperation{}, fmt.Errorf("%w: %w", models.ErrInvalidOperation, err)
	}

	hash, err := crypto.ContentHash(string(opType), string(entityType), payload)
	if err != nil {
		return models.SyncOperation{}, fmt.Errorf("%w: %w", models.ErrInvalidOperation, err)
	}

	return models.SyncOperation{
		Timestamp:     f.now().UTC(),
		OperationID:   f.newID(),
		OperationType: opType,
		EntityType:    entityType,
		EntityID:      entityID,
		DeviceID:      f.deviceID,
		ContentHash:   hash,
		Data:          payload,
		LamportTS:     0,
		Version:       initialVersion,
	}, nil
}

// Resubmit creates a brand-new operation carrying the payload of original.
// The result has a fresh id, timestamp and recomputed content hash.
func (f *Factory) Resubmit(original *models.SyncOperation, data json.RawMessage) (models.SyncOperation, error) {
	if data == nil {
		data = original.Data
	}
	return f.CreateOperation(original.OperationType, original.EntityType, original.EntityID, data)
}

// encodeData сериализует payload, сохраняя побайтно уже закодированный JSON
func encodeData(data any) (json.RawMessage, error) {
	var raw []byte

	switch v := data.(type) {
	case nil:
		return nil, fmt.Errorf("data cannot be nil")
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("data is not JSON-serializable: %w", err)
		}
		raw = encoded
	}

	if !json.Valid(raw) {
		return nil, fmt.Errorf("data is not valid JSON")
	}

	// Копия защищает запись от изменений буфера вызывающей стороной
	payload := make(json.RawMessage, len(raw))
	copy(payload, raw)
	return payload, nil
}
