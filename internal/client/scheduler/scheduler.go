// Package scheduler decides when pending operations are pushed: on reconnect,
// on a periodic timer while the queue is non-empty and on manual request.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	clientsync "github.com/iudanet/agromarket/internal/client/sync"
)

const (
	DefaultBaseInterval = 30 * time.Second
	DefaultMaxInterval  = 10 * time.Minute

	// maxBackoffSteps ограничивает число удвоений; дальше все равно упираемся в MaxInterval
	maxBackoffSteps = 32
)

//go:generate moq -out pusher_mock.go . Pusher

// Pusher is the part of the sync service driven by the scheduler
type Pusher interface {
	SyncPush(ctx context.Context) (*clientsync.PushResult, error)
	PendingCount(ctx context.Context) (int, error)
	IsSyncing() bool
}

// Config содержит интервалы планировщика
type Config struct {
	BaseInterval time.Duration
	MaxInterval  time.Duration
}

type trigger string

const (
	triggerManual    trigger = "manual"
	triggerReconnect trigger = "reconnect"
	triggerPeriodic  trigger = "periodic"
)

// Scheduler runs at most one push at a time from a single goroutine
type Scheduler struct {
	pusher    Pusher
	logger    *slog.Logger
	manual    chan struct{}
	reconnect chan struct{}
	cfg       Config
	failures  int // только из горутины Run
	online    atomic.Bool
}

// New creates a scheduler. It starts in the online state.
func New(pusher Pusher, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.BaseInterval <= 0 {
		cfg.BaseInterval = DefaultBaseInterval
	}
	if cfg.MaxInterval < cfg.BaseInterval {
		cfg.MaxInterval = max(DefaultMaxInterval, cfg.BaseInterval)
	}

	s := &Scheduler{
		pusher:    pusher,
		logger:    logger,
		cfg:       cfg,
		manual:    make(chan struct{}, 1),
		reconnect: make(chan struct{}, 1),
	}
	s.online.Store(true)
	return s
}

// SyncNow requests a push regardless of connectivity and pending count
func (s *Scheduler) SyncNow() {
	signal(s.manual)
}

// SetOnline records connectivity. Offline to online transition triggers an immediate push.
func (s *Scheduler) SetOnline(online bool) {
	prev := s.online.Swap(online)
	if online && !prev {
		signal(s.reconnect)
	}
	if prev != online {
		s.logger.Info("Connectivity changed", "online", online)
	}
}

// Online reports the last known connectivity
func (s *Scheduler) Online() bool {
	return s.online.Load()
}

// signal не блокирует: повторный запрос до обработки предыдущего схлопывается
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	timer := time.NewTimer(s.cfg.BaseInterval)
	defer timer.Stop()

	s.logger.Info("Sync scheduler started",
		"base_interval", s.cfg.BaseInterval,
		"max_interval", s.cfg.MaxInterval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sync scheduler stopped")
			return nil
		case <-s.manual:
			s.attempt(ctx, triggerManual)
		case <-s.reconnect:
			s.attempt(ctx, triggerReconnect)
		case <-timer.C:
			s.tick(ctx)
		}

		timer.Reset(s.delayFor(s.failures))
	}
}

// tick - периодический запуск: только online и только при непустой очереди
func (s *Scheduler) tick(ctx context.Context) {
	if !s.online.Load() {
		return
	}

	count, err := s.pusher.PendingCount(ctx)
	if err != nil {
		s.logger.Warn("Failed to count pending operations", "error", err)
		return
	}
	if count == 0 {
		return
	}

	s.attempt(ctx, triggerPeriodic)
}

func (s *Scheduler) attempt(ctx context.Context, reason trigger) {
	if s.pusher.IsSyncing() {
		s.logger.Debug("Push already running, tick skipped", "trigger", reason)
		return
	}

	result, err := s.pusher.SyncPush(ctx)
	switch {
	case errors.Is(err, clientsync.ErrSyncInProgress):
		// Ожидаемая ситуация, не считаем ошибкой
		return
	case err != nil:
		s.failures++
		s.logger.Warn("Scheduled push failed",
			"trigger", reason,
			"failures", s.failures,
			"next_attempt_in", s.delayFor(s.failures),
			"error", err)
		return
	}

	if s.failures > 0 {
		s.logger.Info("Push recovered, backoff reset", "failures", s.failures)
	}
	s.failures = 0

	s.logger.Debug("Scheduled push completed",
		"trigger", reason,
		"accepted", len(result.Accepted),
		"rejected", len(result.Rejected))
}

// delayFor returns BaseInterval * 2^failures capped at MaxInterval
func (s *Scheduler) delayFor(failures int) time.Duration {
	if failures <= 0 {
		return s.cfg.BaseInterval
	}

	b := retry.WithCappedDuration(s.cfg.MaxInterval, retry.NewExponential(s.cfg.BaseInterval))

	var delay time.Duration
	for attempt := 0; attempt <= min(failures, maxBackoffSteps); attempt++ {
		delay, _ = b.Next()
	}
	return delay
}
