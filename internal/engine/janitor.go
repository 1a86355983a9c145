package engine

import (
	"context"
	"log/slog"
	"time"

	"code.cloudfoundry.org/clock"
)

// Janitor periodically sweeps stale debounce entries so devices that stop
// reporting mid-debounce do not leak cache entries.
type Janitor struct {
	engine   *Engine
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	doneChan chan bool
}

// NewJanitor creates a janitor sweeping at the given interval.
func NewJanitor(engine *Engine, interval time.Duration, clk clock.Clock, logger *slog.Logger) *Janitor {
	return &Janitor{
		engine:   engine,
		interval: interval,
		clock:    clk,
		logger:   logger,
		doneChan: make(chan bool),
	}
}

// Start runs the sweep loop until Stop is called. Blocks; run in a goroutine.
func (j *Janitor) Start(ctx context.Context) {
	ticker := j.clock.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("debounce janitor started", "interval", j.interval)

	for {
		select {
		case <-ticker.C():
			if err := j.engine.CleanupDebounceCache(ctx); err != nil {
				j.logger.Error("debounce sweep failed", "error", err)
			}
		case <-j.doneChan:
			j.logger.Info("debounce janitor stopped")
			return
		case <-ctx.Done():
			j.logger.Info("debounce janitor stopped")
			return
		}
	}
}

// Stop terminates the sweep loop.
func (j *Janitor) Stop() {
	close(j.doneChan)
}
