package service

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/notify"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// NotificationService turns domain events into queued notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	queue      *notify.Queue
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, queue *notify.Queue, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger.Named("notifications"),
	}
}

// RegisterHandlers subscribes to every notifiable event.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		n.dispatcher.Subscribe(eventType, n.handleEvent)
	}
}

func (n *NotificationService) handleEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("ticket_id", event.TicketID))
	n.Notify(event)
	return nil
}

// Notify queues an event for delivery without waiting for it.
func (n *NotificationService) Notify(event events.Event) bool {
	return n.queue.Enqueue(notify.Notification{
		ID:       event.ID,
		Type:     event.Type,
		Priority: notify.PriorityFor(event.Type),
		TicketID: event.TicketID,
		Actor:    event.Actor,
		Payload:  event.Payload,
	})
}

// SendTest queues a test notification.
func (n *NotificationService) SendTest(message string) error {
	if message == "" {
		message = "Test notification from the ticket bot"
	}
	if !n.Notify(events.Event{Type: events.EventTest, Payload: events.TestPayload{Message: message}}) {
		return apperrors.NewDomainError(apperrors.CodeInternal, "notification queue is full", http.StatusServiceUnavailable, nil)
	}
	return nil
}

// Status reports the queue state.
func (n *NotificationService) Status() notify.Status {
	return n.queue.Status()
}

// Clear drops pending notifications.
func (n *NotificationService) Clear() int {
	cleared := n.queue.Clear()
	n.logger.Info("notification queue cleared", zap.Int("count", cleared))
	return cleared
}

// Run drains the queue until ctx is done.
func (n *NotificationService) Run(ctx context.Context) {
	n.queue.Run(ctx)
}
