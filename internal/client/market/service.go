// Package market applies marketplace mutations optimistically: every user
// action is recorded as a sync operation immediately and reconciled later.
package market

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/iudanet/agromarket/internal/models"
	"github.com/iudanet/agromarket/internal/validation"
)

// TempIDPrefix marks entity ids generated on the client before the server knows the entity
const TempIDPrefix = "tmp-"

// Recorder ставит операции в очередь синхронизации; реализуется sync.Service
type Recorder interface {
	Record(ctx context.Context, opType models.OperationType, entityType models.EntityType, entityID string, data any) (*models.SyncOperation, error)
}

// Service определяет интерфейс действий покупателя
type Service interface {
	AddToCart(ctx context.Context, productID int64, quantity int) (*models.SyncOperation, error)
	UpdateCartQuantity(ctx context.Context, cartItemID string, productID int64, quantity int) (*models.SyncOperation, error)
	RemoveFromCart(ctx context.Context, cartItemID string) (*models.SyncOperation, error)
	PlaceOrder(ctx context.Context, items []models.CartItem, comment string) (*models.SyncOperation, error)
	SubmitReview(ctx context.Context, productID int64, rating int, comment string) (*models.SyncOperation, error)
}

type service struct {
	recorder Recorder
	newID    func() string
}

// NewService creates a new market service
func NewService(recorder Recorder) Service {
	return &service{
		recorder: recorder,
		newID:    NewTempID,
	}
}

// NewTempID returns a client-generated entity id
func NewTempID() string {
	return TempIDPrefix + uuid.New().String()
}

// AddToCart creates a new cart item with a temporary id
func (s *service) AddToCart(ctx context.Context, productID int64, quantity int) (*models.SyncOperation, error) {
	item := models.CartItem{ProductID: productID, Quantity: quantity}
	if err := validateCartItem(item); err != nil {
		return nil, err
	}

	return s.record(ctx, models.OperationCreate, models.EntityCartItem, s.newID(), item)
}

// UpdateCartQuantity changes the quantity of an existing cart item
func (s *service) UpdateCartQuantity(ctx context.Context, cartItemID string, productID int64, quantity int) (*models.SyncOperation, error) {
	if err := validation.ValidateEntityID(cartItemID); err != nil {
		return nil, fmt.Errorf("invalid cart item id: %w", err)
	}

	item := models.CartItem{ProductID: productID, Quantity: quantity}
	if err := validateCartItem(item); err != nil {
		return nil, err
	}

	return s.record(ctx, models.OperationUpdate, models.EntityCartItem, cartItemID, item)
}

// RemoveFromCart deletes a cart item
func (s *service) RemoveFromCart(ctx context.Context, cartItemID string) (*models.SyncOperation, error) {
	if err := validation.ValidateEntityID(cartItemID); err != nil {
		return nil, fmt.Errorf("invalid cart item id: %w", err)
	}

	// Payload DELETE должен быть валидным JSON
	return s.record(ctx, models.OperationDelete, models.EntityCartItem, cartItemID, map[string]string{"id": cartItemID})
}

// PlaceOrder creates an order from cart items
func (s *service) PlaceOrder(ctx context.Context, items []models.CartItem, comment string) (*models.SyncOperation, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("order must contain at least one item")
	}
	for i, item := range items {
		if err := validateCartItem(item); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}

	order := models.Order{Items: items, Comment: comment}
	return s.record(ctx, models.OperationCreate, models.EntityOrder, s.newID(), order)
}

// SubmitReview creates a product review
func (s *service) SubmitReview(ctx context.Context, productID int64, rating int, comment string) (*models.SyncOperation, error) {
	if productID <= 0 {
		return nil, fmt.Errorf("invalid product id: %d", productID)
	}
	if err := validation.ValidateRating(rating); err != nil {
		return nil, fmt.Errorf("invalid review: %w", err)
	}

	review := models.Review{ProductID: productID, Rating: rating, Comment: comment}
	return s.record(ctx, models.OperationCreate, models.EntityReview, s.newID(), review)
}

func (s *service) record(ctx context.Context, opType models.OperationType, entityType models.EntityType, entityID string, data any) (*models.SyncOperation, error) {
	op, err := s.recorder.Record(ctx, opType, entityType, entityID, data)
	if err != nil {
		return nil, fmt.Errorf("failed to record %s %s: %w", opType, entityType, err)
	}
	return op, nil
}

func validateCartItem(item models.CartItem) error {
	if item.ProductID <= 0 {
		return fmt.Errorf("invalid product id: %d", item.ProductID)
	}
	if err := validation.ValidateQuantity(item.Quantity); err != nil {
		return fmt.Errorf("invalid cart item: %w", err)
	}
	return nil
}
