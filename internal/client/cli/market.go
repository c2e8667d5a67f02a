package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/iudanet/agromarket/internal/models"
)

// runRecord ставит в очередь произвольную операцию
func (c *Cli) runRecord(ctx context.Context, opType, entityType, entityID, data string) error {
	if !json.Valid([]byte(data)) {
		return fmt.Errorf("data must be valid JSON")
	}

	op, err := c.syncService.Record(ctx,
		models.OperationType(strings.ToUpper(opType)),
		models.EntityType(entityType),
		entityID,
		json.RawMessage(data))
	if err != nil {
		return fmt.Errorf("failed to record operation: %w", err)
	}

	c.printRecorded(op)
	return nil
}

func (c *Cli) runCartAdd(ctx context.Context, productID int64, quantity int) error {
	op, err := c.marketService.AddToCart(ctx, productID, quantity)
	if err != nil {
		return err
	}
	c.printRecorded(op)
	return nil
}

func (c *Cli) runCartUpdate(ctx context.Context, cartItemID string, productID int64, quantity int) error {
	op, err := c.marketService.UpdateCartQuantity(ctx, cartItemID, productID, quantity)
	if err != nil {
		return err
	}
	c.printRecorded(op)
	return nil
}

func (c *Cli) runCartRemove(ctx context.Context, cartItemID string) error {
	op, err := c.marketService.RemoveFromCart(ctx, cartItemID)
	if err != nil {
		return err
	}
	c.printRecorded(op)
	return nil
}

// runOrderPlace принимает позиции в виде product_id:quantity
func (c *Cli) runOrderPlace(ctx context.Context, args []string, comment string) error {
	items := make([]models.CartItem, 0, len(args))
	for _, raw := range args {
		item, err := parseOrderItem(raw)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	op, err := c.marketService.PlaceOrder(ctx, items, comment)
	if err != nil {
		return err
	}
	c.printRecorded(op)
	return nil
}

func (c *Cli) runReviewAdd(ctx context.Context, productID int64, rating int, comment string) error {
	op, err := c.marketService.SubmitReview(ctx, productID, rating, comment)
	if err != nil {
		return err
	}
	c.printRecorded(op)
	return nil
}

func (c *Cli) printRecorded(op *models.SyncOperation) {
	c.io.Println("✓ Operation queued")
	c.io.Printf("Operation ID: %s\n", op.OperationID)
	c.io.Printf("Entity:       %s %s\n", op.EntityType, op.EntityID)
	c.io.Printf("Type:         %s\n", op.OperationType)
}

func parseOrderItem(raw string) (models.CartItem, error) {
	productPart, quantityPart, ok := strings.Cut(raw, ":")
	if !ok {
		return models.CartItem{}, fmt.Errorf("invalid order item %q: expected product_id:quantity", raw)
	}

	productID, err := strconv.ParseInt(productPart, 10, 64)
	if err != nil {
		return models.CartItem{}, fmt.Errorf("invalid product id in %q: %w", raw, err)
	}

	quantity, err := strconv.Atoi(quantityPart)
	if err != nil {
		return models.CartItem{}, fmt.Errorf("invalid quantity in %q: %w", raw, err)
	}

	return models.CartItem{ProductID: productID, Quantity: quantity}, nil
}
