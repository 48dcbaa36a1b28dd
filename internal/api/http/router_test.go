package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/notify"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/service"
)

const testAPIKey = "router-test-key"

type stubThread struct {
	id       string
	name     string
	archived bool
	created  time.Time
}

func (t *stubThread) ID() string           { return t.id }
func (t *stubThread) Name() string         { return t.name }
func (t *stubThread) Archived() bool       { return t.archived }
func (t *stubThread) CreatedAt() time.Time { return t.created }

func (t *stubThread) FetchMessages(context.Context, int, string) ([]platform.Message, error) {
	return []platform.Message{
		{ID: "2", AuthorID: "staff-1", Content: "on it", CreatedAt: t.created.Add(time.Minute), AuthorRoleIDs: []string{"staff"}},
		{ID: "1", AuthorID: "u1", Content: "help", CreatedAt: t.created},
	}, nil
}

type stubPlatform struct {
	mu      sync.Mutex
	threads []*stubThread
}

func (p *stubPlatform) ListThreads(context.Context, string) ([]platform.Thread, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]platform.Thread, 0, len(p.threads))
	for _, t := range p.threads {
		out = append(out, t)
	}
	return out, nil
}

func (p *stubPlatform) GetThread(_ context.Context, threadID string) (platform.Thread, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.threads {
		if t.id == threadID {
			return t, nil
		}
	}
	return nil, errors.New("unknown thread")
}

func (p *stubPlatform) CreateThread(_ context.Context, req platform.CreateThreadRequest) (platform.Thread, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	thread := &stubThread{id: fmt.Sprintf("thread-%d", len(p.threads)+1), name: req.Name, created: time.Now()}
	p.threads = append(p.threads, thread)
	return thread, nil
}

func (p *stubPlatform) PostMessage(context.Context, string, string) error { return nil }

func (p *stubPlatform) ArchiveThread(_ context.Context, threadID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.threads {
		if t.id == threadID {
			t.archived = true
		}
	}
	return nil
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:router_"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repository.AutoMigrate(db))
	store := repository.NewGormStore(db)

	hash, err := auth.HashAPIKey(testAPIKey, 4)
	require.NoError(t, err)

	categories := domain.NewCategorySet([]domain.Category{{
		Key:   "support",
		Name:  "General Support",
		Label: "Support",
		Emoji: "🎫",
		Questions: []domain.Question{
			{ID: "topic", Label: "Topic", Style: domain.QuestionStyleShort, Required: true, MaxLength: 50},
		},
	}})
	bot := config.BotConfig{
		CommunityID:          "guild-1",
		StaffRoleIDs:         []string{"staff"},
		TicketCooldown:       time.Minute,
		MaxTicketsPerUser:    3,
		AutoArchiveMinutes:   60,
		ThreadNameTemplate:   "{emoji} {category} - {username}",
		ThreadReasonTemplate: "{category} ticket for {username}",
		StaffNotifyTemplate:  "{roles} new ticket",
		RetentionDays:        30,
	}

	fake := &stubPlatform{}
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	queue := notify.NewQueue(notify.QueueOptions{Capacity: 10, Recorder: metrics})

	authService := service.NewAuthService(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, APIKeyHash: hash}, nil)
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   store.Tickets,
		CooldownRepo: store.Cooldowns,
		Platform:     fake,
		Categories:   categories,
		Dispatcher:   dispatcher,
		Config:       bot,
		After:        func(_ time.Duration, f func()) { f() },
	})
	analytics := service.NewAnalyticsService(service.AnalyticsDependencies{Platform: fake, Categories: categories, StaffRoleIDs: bot.StaffRoleIDs})
	transcripts := service.NewTranscriptService(fake, nil)
	settings := service.NewSettingsService(store.Settings, nil)
	notifications := service.NewNotificationService(dispatcher, queue, nil)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("ticket-bot", "test", pingerFunc(func(context.Context) error { return nil })),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(tickets, bot.CommunityID),
		Threads:        handlers.NewThreadsHandler(tickets, transcripts),
		Communities:    handlers.NewCommunitiesHandler(tickets, analytics),
		Admin:          handlers.NewAdminHandler(tickets, settings, notifications, metrics),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager()),
	})
	return app
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func call(t *testing.T, app *fiber.App, method, path, token string, body any) (int, envelope, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	_ = json.Unmarshal(raw, &env)
	return resp.StatusCode, env, raw
}

func adminToken(t *testing.T, app *fiber.App) string {
	t.Helper()
	status, env, _ := call(t, app, fiber.MethodPost, "/auth/token", "", map[string]string{"api_key": testAPIKey})
	require.Equal(t, fiber.StatusOK, status)
	var token domain.Token
	require.NoError(t, json.Unmarshal(env.Data, &token))
	require.NotEmpty(t, token.Value)
	return token.Value
}

func integrationToken(t *testing.T, app *fiber.App, admin string) string {
	t.Helper()
	status, env, _ := call(t, app, fiber.MethodPost, "/api/v1/auth/tokens", admin, map[string]string{"subject": "bot", "role": "integration"})
	require.Equal(t, fiber.StatusCreated, status)
	var token domain.Token
	require.NoError(t, json.Unmarshal(env.Data, &token))
	return token.Value
}

func TestHealthLive(t *testing.T) {
	app := newTestApp(t)
	status, _, raw := call(t, app, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(raw), `"alive"`)
}

func TestAuthentication(t *testing.T) {
	app := newTestApp(t)

	status, env, _ := call(t, app, fiber.MethodGet, "/api/v1/categories", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, env, _ = call(t, app, fiber.MethodPost, "/auth/token", "", map[string]string{"api_key": "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	admin := adminToken(t, app)
	status, _, _ = call(t, app, fiber.MethodGet, "/api/v1/categories", admin, nil)
	assert.Equal(t, fiber.StatusOK, status)

	bot := integrationToken(t, app, admin)
	status, env, _ = call(t, app, fiber.MethodGet, "/api/v1/metrics", bot, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, _, _ = call(t, app, fiber.MethodGet, "/api/v1/categories", bot, nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	app := newTestApp(t)
	status, env, _ := call(t, app, fiber.MethodGet, "/nope", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	bot := integrationToken(t, app, adminToken(t, app))

	open := map[string]any{
		"user_id":           "u1",
		"username":          "alice",
		"parent_channel_id": "chan-1",
		"category":          "support",
		"answers":           map[string]string{"topic": "billing"},
	}
	status, env, raw := call(t, app, fiber.MethodPost, "/api/v1/tickets/open", bot, open)
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	var created struct {
		ID       string `json:"ticket_id"`
		ThreadID string `json:"thread_id"`
		Status   string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "open", created.Status)
	assert.Equal(t, "thread-1", created.ThreadID)

	status, env, _ = call(t, app, fiber.MethodPost, "/api/v1/tickets/open", bot, open)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, "COOLDOWN_ACTIVE", env.Error.Code)

	status, _, _ = call(t, app, fiber.MethodGet, "/api/v1/threads/thread-1/ticket", bot, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _, raw = call(t, app, fiber.MethodGet, "/api/v1/threads/thread-1/transcript?format=text", bot, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(raw), "help")

	status, env, _ = call(t, app, fiber.MethodPost, "/api/v1/threads/thread-1/close", bot, map[string]string{"actor_id": "staff-1"})
	require.Equal(t, fiber.StatusOK, status)
	var closed struct {
		Status   string  `json:"status"`
		ClosedBy *string `json:"closed_by"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &closed))
	assert.Equal(t, "closed", closed.Status)
	require.NotNil(t, closed.ClosedBy)
	assert.Equal(t, "staff-1", *closed.ClosedBy)

	status, env, _ = call(t, app, fiber.MethodGet, "/api/v1/communities/guild-1/statistics", bot, nil)
	require.Equal(t, fiber.StatusOK, status)
	var stats struct {
		Total  int64 `json:"total"`
		Closed int64 `json:"closed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.Closed)

	status, env, _ = call(t, app, fiber.MethodGet, "/api/v1/communities/guild-1/tickets?status=bogus", bot, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)

	status, env, _ = call(t, app, fiber.MethodGet, "/api/v1/tickets/TICKET-00000000", bot, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "TICKET_NOT_FOUND", env.Error.Code)
}

func TestSettingsEndpoints(t *testing.T) {
	app := newTestApp(t)
	admin := adminToken(t, app)

	status, env, _ := call(t, app, fiber.MethodGet, "/api/v1/settings/welcome", admin, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	status, _, _ = call(t, app, fiber.MethodPut, "/api/v1/settings/welcome", admin, map[string]any{"value": map[string]any{"enabled": true}})
	assert.Equal(t, fiber.StatusOK, status)

	status, _, raw := call(t, app, fiber.MethodGet, "/api/v1/settings/welcome", admin, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"data":{"key":"welcome","value":{"enabled":true}}}`, string(raw))

	status, _, _ = call(t, app, fiber.MethodDelete, "/api/v1/settings/welcome", admin, nil)
	assert.Equal(t, fiber.StatusNoContent, status)
}

func TestNotificationAdminEndpoints(t *testing.T) {
	app := newTestApp(t)
	admin := adminToken(t, app)

	status, _, _ := call(t, app, fiber.MethodPost, "/api/v1/notifications/test", admin, map[string]string{"message": "ping"})
	assert.Equal(t, fiber.StatusAccepted, status)

	status, env, _ := call(t, app, fiber.MethodGet, "/api/v1/notifications/status", admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	var queueStatus notify.Status
	require.NoError(t, json.Unmarshal(env.Data, &queueStatus))
	assert.Equal(t, 1, queueStatus.Length)

	status, _, raw := call(t, app, fiber.MethodDelete, "/api/v1/notifications/queue", admin, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"data":{"cleared":1}}`, string(raw))
}
