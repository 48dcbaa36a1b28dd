package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/notify"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/platform/discord"
	"github.com/spec-kit/ticket-bot/internal/service"
)

// runtime is the fully wired bot.
type runtime struct {
	cfg     *config.Config
	logger  *zap.Logger
	backend *persistence.Backend
	metrics *observability.Metrics

	dispatcher    events.Dispatcher
	platform      platform.Client
	categories    domain.CategorySet
	auth          *service.AuthService
	tickets       *service.TicketService
	analytics     *service.AnalyticsService
	transcripts   *service.TranscriptService
	settings      *service.SettingsService
	notifications *service.NotificationService
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if categoriesFile != "" {
		cfg.Bot.CategoriesFile = categoriesFile
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func openStore(ctx context.Context) (*config.Config, *zap.Logger, *persistence.Backend, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	backend, err := persistence.Open(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, err
	}
	return cfg, logger, backend, nil
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, logger, backend, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Platform.BotToken == "" {
		backend.Close()
		return nil, fmt.Errorf("PLATFORM_BOT_TOKEN is required")
	}
	categories, err := config.LoadCategories(cfg.Bot.CategoriesFile)
	if err != nil {
		backend.Close()
		return nil, err
	}

	rt := &runtime{
		cfg:        cfg,
		logger:     logger,
		backend:    backend,
		metrics:    observability.NewMetrics(),
		dispatcher: events.NewInMemoryDispatcher(),
		platform:   discord.New(cfg.Platform, logger),
		categories: categories,
	}

	var transports []notify.Transport
	if cfg.Notification.WebhookURL != "" || len(cfg.Notification.Webhooks) > 0 {
		transports = append(transports, notify.NewWebhookTransport(cfg.Notification, cfg.App.Name))
	}
	if len(cfg.Notification.Channels) > 0 {
		transports = append(transports, notify.NewChannelTransport(rt.platform, cfg.Notification))
	}
	queue := notify.NewQueue(notify.QueueOptions{
		Capacity:   cfg.Notification.QueueCapacity,
		Delay:      cfg.Notification.Delay,
		Transports: transports,
		Logger:     logger,
		Recorder:   rt.metrics,
	})

	rt.auth = service.NewAuthService(cfg.Auth, logger)
	rt.tickets = service.NewTicketService(service.TicketDependencies{
		TicketRepo:   backend.Store.Tickets,
		CooldownRepo: backend.Store.Cooldowns,
		Platform:     rt.platform,
		Categories:   categories,
		Dispatcher:   rt.dispatcher,
		Logger:       logger,
		Config:       cfg.Bot,
	})
	rt.analytics = service.NewAnalyticsService(service.AnalyticsDependencies{
		Platform:     rt.platform,
		Categories:   categories,
		StaffRoleIDs: cfg.Bot.StaffRoleIDs,
		Logger:       logger,
	})
	rt.transcripts = service.NewTranscriptService(rt.platform, logger)
	rt.settings = service.NewSettingsService(backend.Store.Settings, logger)
	rt.notifications = service.NewNotificationService(rt.dispatcher, queue, logger)

	logger.Info("runtime ready",
		zap.String("database", cfg.Database.Driver),
		zap.String("cooldowns", cfg.Redis.CooldownBackend),
		zap.Int("categories", categories.Len()),
		zap.Int("notification_transports", len(transports)))
	return rt, nil
}

func (r *runtime) Close() {
	r.tickets.WaitPending()
	r.backend.Close()
	_ = r.logger.Sync()
}
