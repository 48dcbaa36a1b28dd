package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

const defaultRouteKey = "default"

// WebhookTransport posts notifications to chat webhooks. The URL is picked
// by event type, then the "default" entry, then the fallback URL.
type WebhookTransport struct {
	routes   map[string]string
	fallback string
	username string
	timeout  time.Duration
}

type webhookBody struct {
	Username string `json:"username,omitempty"`
	Content  string `json:"content"`
}

// NewWebhookTransport builds the transport from notification config.
func NewWebhookTransport(cfg config.NotificationConfig, username string) *WebhookTransport {
	return &WebhookTransport{
		routes:   cfg.Webhooks,
		fallback: cfg.WebhookURL,
		username: username,
		timeout:  10 * time.Second,
	}
}

func (t *WebhookTransport) Name() string { return "webhook" }

func (t *WebhookTransport) url(n Notification) string {
	if url, ok := t.routes[string(n.Type)]; ok && url != "" {
		return url
	}
	if url, ok := t.routes[defaultRouteKey]; ok && url != "" {
		return url
	}
	return t.fallback
}

// Send posts the formatted notification. Types without a webhook are skipped.
func (t *WebhookTransport) Send(ctx context.Context, n Notification) error {
	url := t.url(n)
	if url == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	agent := fiber.Post(url).
		Timeout(t.timeout).
		JSON(webhookBody{Username: t.username, Content: Format(n)})
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("webhook post: %w", errors.Join(errs...))
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("webhook post: status %d: %s", code, truncate(string(body), 200))
	}
	return nil
}

// ChannelTransport posts notifications into platform channels configured
// per event type.
type ChannelTransport struct {
	client   platform.Client
	channels map[string][]string
}

// NewChannelTransport builds the transport from notification config.
func NewChannelTransport(client platform.Client, cfg config.NotificationConfig) *ChannelTransport {
	return &ChannelTransport{client: client, channels: cfg.Channels}
}

func (t *ChannelTransport) Name() string { return "channel" }

// Send posts to every channel routed for the type, continuing past
// failures and returning them joined.
func (t *ChannelTransport) Send(ctx context.Context, n Notification) error {
	ids := t.channels[string(n.Type)]
	if len(ids) == 0 {
		ids = t.channels[defaultRouteKey]
	}
	text := Format(n)
	var errs []error
	for _, id := range ids {
		if err := t.client.PostMessage(ctx, id, text); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
