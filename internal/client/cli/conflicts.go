package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iudanet/agromarket/internal/client/resolver"
	"github.com/iudanet/agromarket/internal/models"
)

func (c *Cli) runConflictsList(ctx context.Context) error {
	items, err := c.conflicts.List(ctx)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		c.io.Println("No unresolved conflicts")
		return nil
	}

	c.io.Printf("=== Unresolved conflicts (%d) ===\n", len(items))
	for _, item := range items {
		c.io.Println()
		c.io.Printf("Conflict:  %s\n", item.Conflict.ConflictID)
		c.io.Printf("Type:      %s\n", item.Conflict.ConflictType)
		c.io.Printf("Operation: %s\n", item.Conflict.OperationID)
		if item.Conflict.ConflictingOperationID != "" {
			c.io.Printf("Remote op: %s\n", item.Conflict.ConflictingOperationID)
		}
		if item.Local == nil {
			c.io.Println("Local:     (operation missing)")
			continue
		}
		c.io.Printf("Local:     %s %s %s\n", item.Local.OperationType, item.Local.EntityType, item.Local.EntityID)
		c.io.Printf("Data:      %s\n", item.Local.Data)
	}

	return nil
}

// runConflictsResolve применяет выбор пользователя; без choice спрашивает интерактивно
func (c *Cli) runConflictsResolve(ctx context.Context, conflictID, choice, merged string) error {
	if choice == "" {
		input, err := c.io.ReadInput("Resolution [local/remote/merged]: ")
		if err != nil {
			return fmt.Errorf("failed to read resolution: %w", err)
		}
		choice = input
	}

	resolution := models.ResolutionChoice(strings.ToUpper(strings.TrimSpace(choice)))
	if !resolution.Valid() {
		return fmt.Errorf("unknown resolution %q: expected local, remote or merged", choice)
	}

	var (
		op  *models.SyncOperation
		err error
	)
	if resolution == models.ResolutionMerged {
		if merged == "" {
			merged, err = c.io.ReadInput("Merged data (JSON): ")
			if err != nil {
				return fmt.Errorf("failed to read merged data: %w", err)
			}
		}
		if !json.Valid([]byte(merged)) {
			return fmt.Errorf("merged data must be valid JSON")
		}
		op, err = c.conflicts.ResolveMerged(ctx, conflictID, json.RawMessage(merged))
	} else {
		op, err = c.conflicts.Resolve(ctx, conflictID, resolution)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve conflict: %w", err)
	}

	c.io.Printf("✓ Conflict %s resolved: %s\n", conflictID, resolution)
	if op != nil {
		c.io.Printf("Resubmitted as operation %s\n", op.OperationID)
	}

	return nil
}

// runConflictsAuto разрешает все конфликты одной политикой
func (c *Cli) runConflictsAuto(ctx context.Context, prefer string) error {
	var policy resolver.Policy
	switch strings.ToLower(prefer) {
	case "local":
		policy = resolver.PreferLocal
	case "remote":
		policy = resolver.PreferRemote
	default:
		return fmt.Errorf("unknown policy %q: expected local or remote", prefer)
	}

	resolved, err := c.conflicts.ApplyPolicy(ctx, policy)
	c.io.Printf("Resolved %d conflict(s)\n", resolved)
	if err != nil {
		return fmt.Errorf("some conflicts were not resolved: %w", err)
	}

	return nil
}
