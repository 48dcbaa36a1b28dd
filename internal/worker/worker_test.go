package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/service"
)

type countingCleaner struct {
	mu    sync.Mutex
	calls []int
	err   error
}

func (c *countingCleaner) Cleanup(_ context.Context, days int) (service.CleanupResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, days)
	return service.CleanupResult{DeletedTickets: 1}, c.err
}

func (c *countingCleaner) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func TestCleanupWorkerSweepsImmediatelyAndOnTick(t *testing.T) {
	cleaner := &countingCleaner{}
	w := NewCleanupWorker(cleaner, 10*time.Millisecond, 30, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return cleaner.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	cleaner.mu.Lock()
	defer cleaner.mu.Unlock()
	assert.Equal(t, 30, cleaner.calls[0])
}

func TestCleanupWorkerKeepsRunningAfterFailure(t *testing.T) {
	cleaner := &countingCleaner{err: errors.New("database is locked")}
	w := NewCleanupWorker(cleaner, 5*time.Millisecond, 7, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.Eventually(t, func() bool { return cleaner.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestCleanupWorkerDisabled(t *testing.T) {
	cleaner := &countingCleaner{}
	require.NoError(t, NewCleanupWorker(cleaner, 0, 30, nil).Run(context.Background()))
	assert.Zero(t, cleaner.count())
}

type staticGenerator struct {
	snapshot *domain.AnalyticsSnapshot
	err      error
}

func (g staticGenerator) Generate(context.Context, string) (*domain.AnalyticsSnapshot, error) {
	return g.snapshot, g.err
}

func TestReportWorkerPublishesSnapshot(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	var got []events.Event
	dispatcher.Subscribe(events.EventDailyReport, func(_ context.Context, e events.Event) error {
		got = append(got, e)
		return nil
	})

	snapshot := &domain.AnalyticsSnapshot{Total: 4, Active: 3, Archived: 1}
	w := NewReportWorker(staticGenerator{snapshot: snapshot}, dispatcher, "guild-1", time.Hour, nil)
	w.Report(context.Background())

	require.Len(t, got, 1)
	assert.Equal(t, "guild-1", got[0].CommunityID)
	assert.NotEmpty(t, got[0].ID)
	payload, ok := got[0].Payload.(events.DailyReportPayload)
	require.True(t, ok)
	assert.Equal(t, 4, payload.Snapshot.Total)
}

func TestReportWorkerSkipsFailedSnapshot(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	published := 0
	dispatcher.Subscribe(events.EventDailyReport, func(context.Context, events.Event) error {
		published++
		return nil
	})

	w := NewReportWorker(staticGenerator{err: errors.New("gateway down")}, dispatcher, "guild-1", time.Hour, nil)
	w.Report(context.Background())
	assert.Zero(t, published)

	assert.NoError(t, NewReportWorker(nil, dispatcher, "", time.Hour, nil).Run(context.Background()))
}
