package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/ticket-bot/internal/api/http"
	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/worker"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background workers",
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	app := fiber.New(fiber.Config{
		AppName:               rt.cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, rt.logger, rt.metrics, rt.cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(rt.cfg.App.Name, rt.cfg.App.Version, rt.backend),
		Auth:           handlers.NewAuthHandler(rt.auth),
		Tickets:        handlers.NewTicketsHandler(rt.tickets, rt.cfg.Bot.CommunityID),
		Threads:        handlers.NewThreadsHandler(rt.tickets, rt.transcripts),
		Communities:    handlers.NewCommunitiesHandler(rt.tickets, rt.analytics),
		Admin:          handlers.NewAdminHandler(rt.tickets, rt.settings, rt.notifications, rt.metrics),
		AuthMiddleware: auth.NewAuthMiddleware(rt.auth.TokenManager()),
	})

	cleanup := worker.NewCleanupWorker(rt.tickets, rt.cfg.Bot.CleanupInterval, rt.cfg.Bot.RetentionDays, rt.logger)
	report := worker.NewReportWorker(rt.analytics, rt.dispatcher, rt.cfg.Bot.CommunityID, rt.cfg.Bot.DailyReportInterval, rt.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rt.logger.Info("http listening", zap.String("addr", rt.cfg.App.Addr()))
		return app.Listen(rt.cfg.App.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		rt.logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})
	g.Go(func() error { return worker.RunNotificationWorker(gctx, rt.notifications) })
	g.Go(func() error { return cleanup.Run(gctx) })
	g.Go(func() error { return report.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		rt.logger.Error("serve stopped", zap.Error(err))
		return err
	}
	return nil
}
