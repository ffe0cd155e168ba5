package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// BackgroundRefresher refreshes every provider on a fixed interval.
type BackgroundRefresher struct {
	svc      *RefreshService
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewBackgroundRefresher creates a refresher. A non-positive interval disables it.
func NewBackgroundRefresher(svc *RefreshService, interval time.Duration, logger *slog.Logger) *BackgroundRefresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackgroundRefresher{
		svc:      svc,
		interval: interval,
		logger:   logger.With("component", "refresh.background", "interval", interval.String()),
	}
}

// Enabled reports whether the refresher has a positive interval.
func (b *BackgroundRefresher) Enabled() bool {
	return b.interval > 0
}

// Start launches the ticker goroutine. It returns immediately.
func (b *BackgroundRefresher) Start(ctx context.Context) error {
	if !b.Enabled() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return errors.New("background refresher already started")
	}
	b.started = true
	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})

	go b.loop(ctx)
	b.logger.Info("background refresher started")
	return nil
}

func (b *BackgroundRefresher) loop(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.runOnce(ctx)
		}
	}
}

func (b *BackgroundRefresher) runOnce(ctx context.Context) {
	for p, outcome := range b.svc.RefreshAll(ctx) {
		switch {
		case outcome.Err == nil:
		case errors.Is(outcome.Err, ErrRefreshInProgress):
			b.logger.Debug("refresh skipped, already running", slog.String("provider", string(p)))
		case errors.Is(outcome.Err, context.Canceled):
		default:
			b.logger.Error("background refresh failed",
				slog.String("provider", string(p)),
				slog.String("error", outcome.Err.Error()),
			)
		}
	}
}

// Shutdown stops the ticker and waits for an in-flight refresh.
// It implements server.ShutdownFunc for integration with graceful shutdown.
func (b *BackgroundRefresher) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return nil
	}
	cancel := b.cancel
	done := b.done
	b.mu.Unlock()

	cancel()

	select {
	case <-done:
		b.logger.Info("background refresher stopped")
		return nil
	case <-ctx.Done():
		b.logger.Warn("background refresher shutdown timed out")
		return ctx.Err()
	}
}
