package cli

import (
	"context"
	"fmt"
	"time"
)

func (c *Cli) runStatus(ctx context.Context, verbose bool) error {
	c.io.Println("=== Sync Status ===")
	c.io.Println()

	state, err := c.syncService.State(ctx)
	if err != nil {
		return fmt.Errorf("failed to get sync state: %w", err)
	}

	lastSync := "never"
	if !state.LastSync.IsZero() {
		lastSync = state.LastSync.Format(time.RFC3339)
	}
	online := "no"
	if state.IsOnline {
		online = "yes"
	}

	c.io.Printf("Device ID:  %s\n", state.DeviceID)
	c.io.Printf("Server:     %s\n", c.cfg.ServerURL)
	c.io.Printf("Online:     %s\n", online)
	c.io.Printf("Last sync:  %s\n", lastSync)
	c.io.Printf("Lamport TS: %d\n", state.LastLamportTS)
	c.io.Println()

	pending, err := c.syncService.PendingOperations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending operations: %w", err)
	}

	if len(pending) > 0 {
		c.io.Printf("⚠️  Pending sync: %d operation(s) waiting to be pushed\n", len(pending))
		if verbose {
			for _, op := range pending {
				c.io.Printf("  %s  %-6s %s %s\n", op.OperationID, op.OperationType, op.EntityType, op.EntityID)
			}
		}
		c.io.Println("Run 'agromarket push' to synchronize with server.")
	} else {
		c.io.Println("✓ All operations synchronized with server")
	}

	conflicts, err := c.syncService.UnresolvedConflicts(ctx)
	if err != nil {
		// Не прерываем вывод статуса
		c.io.Printf("\nWarning: Failed to get conflicts: %v\n", err)
		return nil
	}
	if len(conflicts) > 0 {
		c.io.Printf("⚠️  Unresolved conflicts: %d\n", len(conflicts))
		c.io.Println("Run 'agromarket conflicts list' to review them.")
	}

	return nil
}
