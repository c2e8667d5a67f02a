package cli

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/agromarket/internal/client/connectivity"
	"github.com/iudanet/agromarket/internal/client/scheduler"
)

// runDaemon запускает планировщик и проверку связи до отмены ctx
func (c *Cli) runDaemon(ctx context.Context) error {
	sched := scheduler.New(c.syncService, scheduler.Config{
		BaseInterval: c.cfg.Scheduler.BaseInterval,
		MaxInterval:  c.cfg.Scheduler.MaxInterval,
	}, c.logger)
	prober := connectivity.NewProber(c.checker, c.cfg.Probe.Interval, c.logger)

	c.io.Printf("Sync daemon started (server %s). Press Ctrl+C to stop.\n", c.cfg.ServerURL)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Run(gctx)
	})

	g.Go(func() error {
		return prober.Observe(gctx, func(online bool) {
			sched.SetOnline(online)
			if err := c.syncService.SetOnline(gctx, online); err != nil {
				c.logger.Warn("Failed to save connectivity state", "online", online, "error", err)
			}
		})
	})

	// Очередь, накопленная до запуска, отправляется сразу
	sched.SyncNow()

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	c.io.Println("Sync daemon stopped")
	return nil
}
