package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runPush(ctx context.Context) error {
	c.io.Println("=== Push ===")

	result, err := c.syncService.SyncPush(ctx)
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}

	c.io.Println()
	c.io.Printf("✓ %s\n", result.Message)
	c.io.Printf("Accepted:   %d operation(s)\n", len(result.Accepted))
	c.io.Printf("Rejected:   %d operation(s)\n", len(result.Rejected))
	for _, conflict := range result.Rejected {
		c.io.Printf("  conflict %s (%s) for operation %s\n", conflict.ConflictID, conflict.ConflictType, conflict.OperationID)
	}
	c.io.Printf("Lamport TS: %d\n", result.NewLamportTS)

	if len(result.Rejected) > 0 {
		c.io.Println()
		c.io.Println("Run 'agromarket conflicts list' to review rejected operations.")
	}

	return nil
}

// runPull загружает удаленные операции; since < 0 означает сохраненный high-water mark
func (c *Cli) runPull(ctx context.Context, since int64) error {
	c.io.Println("=== Pull ===")

	var cursor *int64
	if since >= 0 {
		cursor = &since
	}

	result, err := c.syncService.SyncPull(ctx, cursor)
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}

	c.io.Println()
	c.io.Printf("Pulled %d operation(s)\n", len(result.Operations))
	for _, op := range result.Operations {
		c.io.Printf("  [%d] %-6s %s %s\n", op.LamportTS, op.OperationType, op.EntityType, op.EntityID)
	}
	c.io.Printf("Lamport TS: %d\n", result.LamportTS)

	return nil
}
