// Package connectivity reports online/offline transitions of the sync server.
package connectivity

import (
	"context"
	"log/slog"
	"time"

	"github.com/iudanet/agromarket/pkg/api"
)

const (
	DefaultInterval = 15 * time.Second
	defaultTimeout  = 5 * time.Second
)

// Callback receives the new connectivity state
type Callback func(online bool)

// Observer calls back on every online/offline transition until ctx is cancelled
type Observer interface {
	Observe(ctx context.Context, cb Callback) error
}

// HealthChecker is satisfied by the API client
type HealthChecker interface {
	Health(ctx context.Context) (*api.HealthResponse, error)
}

// Prober опрашивает health endpoint с заданным интервалом
type Prober struct {
	checker  HealthChecker
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

var _ Observer = (*Prober)(nil)

// NewProber creates a health prober
func NewProber(checker HealthChecker, interval time.Duration, logger *slog.Logger) *Prober {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Prober{
		checker:  checker,
		logger:   logger,
		interval: interval,
		timeout:  min(interval, defaultTimeout),
	}
}

// Check performs one health probe
func (p *Prober) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.checker.Health(ctx)
	if err != nil {
		p.logger.Debug("Health check failed", "error", err)
		return false
	}
	return resp.Status == "ok"
}

// Observe reports the first observation and then every transition
func (p *Prober) Observe(ctx context.Context, cb Callback) error {
	var (
		known bool
		last  bool
	)

	probe := func() {
		online := p.Check(ctx)
		if ctx.Err() != nil {
			return
		}
		if known && online == last {
			return
		}
		known, last = true, online
		p.logger.Info("Server connectivity", "online", online)
		cb(online)
	}

	probe()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			probe()
		}
	}
}
