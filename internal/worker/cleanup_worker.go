// Package worker hosts the long-running background loops of the bot.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/service"
)

// Cleaner removes expired cooldowns and old closed tickets.
type Cleaner interface {
	Cleanup(ctx context.Context, daysOld int) (service.CleanupResult, error)
}

// CleanupWorker runs the retention sweep on a fixed interval.
type CleanupWorker struct {
	cleaner  Cleaner
	interval time.Duration
	days     int
	logger   *zap.Logger
}

// NewCleanupWorker builds the worker. A non-positive interval disables it.
func NewCleanupWorker(cleaner Cleaner, interval time.Duration, retentionDays int, logger *zap.Logger) *CleanupWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupWorker{cleaner: cleaner, interval: interval, days: retentionDays, logger: logger.Named("cleanup")}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (w *CleanupWorker) Run(ctx context.Context) error {
	if w.interval <= 0 {
		w.logger.Info("cleanup worker disabled")
		return nil
	}
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *CleanupWorker) sweep(ctx context.Context) {
	result, err := w.cleaner.Cleanup(ctx, w.days)
	if err != nil {
		w.logger.Error("cleanup failed", zap.Error(err))
		return
	}
	if result.ClearedCooldowns > 0 || result.DeletedTickets > 0 {
		w.logger.Info("cleanup removed records",
			zap.Int64("cleared_cooldowns", result.ClearedCooldowns),
			zap.Int64("deleted_tickets", result.DeletedTickets))
	}
}
