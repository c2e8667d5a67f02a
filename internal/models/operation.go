package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidOperation indicates that operation fields failed validation
var ErrInvalidOperation = errors.New("invalid operation")

// OperationType описывает вид мутации
type OperationType string

const (
	OperationCreate OperationType = "CREATE"
	OperationUpdate OperationType = "UPDATE"
	OperationDelete OperationType = "DELETE"
)

// Valid reports whether t is a known operation type
func (t OperationType) Valid() bool {
	switch t {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// EntityType names the marketplace entity affected by an operation
type EntityType string

const (
	EntityCartItem EntityType = "CartItem" // позиция корзины
	EntityOrder    EntityType = "Order"    // заказ (Venta)
	EntityReview   EntityType = "Review"   // отзыв о товаре
)

// Valid reports whether e is a known entity type
func (e EntityType) Valid() bool {
	switch e {
	case EntityCartItem, EntityOrder, EntityReview:
		return true
	}
	return false
}

// SyncOperation представляет одну пользовательскую мутацию, ожидающую отправки на сервер.
// Запись неизменяема после создания, кроме LamportTS, который назначает сервер.
type SyncOperation struct {
	Timestamp     time.Time       `json:"timestamp"`      // Timestamp wall-clock время создания (только для отображения)
	OperationID   string          `json:"operation_id"`   // OperationID UUID v4
	OperationType OperationType   `json:"operation_type"` // OperationType CREATE/UPDATE/DELETE
	EntityType    EntityType      `json:"entity_type"`    // EntityType тип сущности
	EntityID      string          `json:"entity_id"`      // EntityID id сущности (может быть временным tmp-...)
	DeviceID      string          `json:"device_id"`      // DeviceID идентификатор установки
	ContentHash   string          `json:"content_hash"`   // ContentHash подсказка для дедупликации
	Data          json.RawMessage `json:"data"`           // Data JSON payload мутации
	LamportTS     int64           `json:"lamport_ts"`     // LamportTS 0 до назначения сервером
	Version       int64           `json:"version"`        // Version версия для optimistic concurrency
}

// Validate checks that the operation is fully populated
func (op *SyncOperation) Validate() error {
	if op.OperationID == "" {
		return fmt.Errorf("%w: operation_id is empty", ErrInvalidOperation)
	}
	if !op.OperationType.Valid() {
		return fmt.Errorf("%w: unknown operation type %q", ErrInvalidOperation, op.OperationType)
	}
	if !op.EntityType.Valid() {
		return fmt.Errorf("%w: unknown entity type %q", ErrInvalidOperation, op.EntityType)
	}
	if op.EntityID == "" {
		return fmt.Errorf("%w: entity_id is empty", ErrInvalidOperation)
	}
	if !json.Valid(op.Data) {
		return fmt.Errorf("%w: data is not valid JSON", ErrInvalidOperation)
	}
	return nil
}

// Clone создает глубокую копию операции
func (op *SyncOperation) Clone() *SyncOperation {
	data := make(json.RawMessage, len(op.Data))
	copy(data, op.Data)

	clone := *op
	clone.Data = data
	return &clone
}
