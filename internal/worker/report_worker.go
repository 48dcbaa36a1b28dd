package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
)

// SnapshotGenerator recomputes analytics for a community.
type SnapshotGenerator interface {
	Generate(ctx context.Context, communityID string) (*domain.AnalyticsSnapshot, error)
}

// ReportWorker publishes a daily_report event with a fresh snapshot on
// every interval.
type ReportWorker struct {
	analytics   SnapshotGenerator
	dispatcher  events.Dispatcher
	communityID string
	interval    time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewReportWorker builds the worker. A non-positive interval or an empty
// community disables it.
func NewReportWorker(analytics SnapshotGenerator, dispatcher events.Dispatcher, communityID string, interval time.Duration, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportWorker{
		analytics:   analytics,
		dispatcher:  dispatcher,
		communityID: communityID,
		interval:    interval,
		logger:      logger.Named("report"),
		now:         time.Now,
	}
}

// Run reports on every tick until ctx is done.
func (w *ReportWorker) Run(ctx context.Context) error {
	if w.interval <= 0 || w.communityID == "" {
		w.logger.Info("daily report disabled")
		return nil
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Report(ctx)
		}
	}
}

// Report generates one snapshot and publishes it.
func (w *ReportWorker) Report(ctx context.Context) {
	snapshot, err := w.analytics.Generate(ctx, w.communityID)
	if err != nil {
		w.logger.Error("daily report skipped", zap.String("community_id", w.communityID), zap.Error(err))
		return
	}
	err = w.dispatcher.Publish(ctx, events.Event{
		ID:          uuid.NewString(),
		Type:        events.EventDailyReport,
		CommunityID: w.communityID,
		Timestamp:   w.now().UTC(),
		Payload:     events.DailyReportPayload{Snapshot: *snapshot},
	})
	if err != nil {
		w.logger.Warn("daily report handlers failed", zap.Error(err))
	}
}
