package worker

import (
	"context"

	"github.com/spec-kit/ticket-bot/internal/service"
)

// RunNotificationWorker subscribes the notification service to the event
// bus and drains its queue until ctx is done.
func RunNotificationWorker(ctx context.Context, notificationService *service.NotificationService) error {
	if notificationService == nil {
		return nil
	}
	notificationService.RegisterHandlers()
	notificationService.Run(ctx)
	return nil
}
