package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
)

func newTestStore(t *testing.T) repository.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:service_"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repository.AutoMigrate(db))
	return repository.NewGormStore(db)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeThread struct {
	id       string
	name     string
	archived bool
	created  time.Time
	// messages are stored newest first
	messages []platform.Message
	fetchErr error
	fetches  int
}

func (t *fakeThread) ID() string           { return t.id }
func (t *fakeThread) Name() string         { return t.name }
func (t *fakeThread) Archived() bool       { return t.archived }
func (t *fakeThread) CreatedAt() time.Time { return t.created }

func (t *fakeThread) FetchMessages(_ context.Context, limit int, before string) ([]platform.Message, error) {
	t.fetches++
	if t.fetchErr != nil {
		return nil, t.fetchErr
	}
	start := 0
	if before != "" {
		start = len(t.messages)
		for i, m := range t.messages {
			if m.ID == before {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(t.messages) {
		end = len(t.messages)
	}
	return append([]platform.Message(nil), t.messages[start:end]...), nil
}

type fakePlatform struct {
	mu         sync.Mutex
	threads    []*fakeThread
	nextID     int
	created    []platform.CreateThreadRequest
	posts      map[string][]string
	archived   []string
	createErr  error
	listErr    error
	archiveErr map[string]error
	clock      *fakeClock
}

func newFakePlatform(clock *fakeClock) *fakePlatform {
	return &fakePlatform{posts: map[string][]string{}, archiveErr: map[string]error{}, clock: clock}
}

func (p *fakePlatform) addThread(name string, archived bool) *fakeThread {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	thread := &fakeThread{id: fmt.Sprintf("thread-%d", p.nextID), name: name, archived: archived, created: p.clock.Now()}
	p.threads = append(p.threads, thread)
	return thread
}

func (p *fakePlatform) ListThreads(context.Context, string) ([]platform.Thread, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}
	out := make([]platform.Thread, 0, len(p.threads))
	for _, t := range p.threads {
		out = append(out, t)
	}
	return out, nil
}

func (p *fakePlatform) GetThread(_ context.Context, threadID string) (platform.Thread, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.threads {
		if t.id == threadID {
			return t, nil
		}
	}
	return nil, errors.New("unknown thread")
}

func (p *fakePlatform) CreateThread(_ context.Context, req platform.CreateThreadRequest) (platform.Thread, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.mu.Lock()
	p.created = append(p.created, req)
	p.mu.Unlock()
	return p.addThread(req.Name, false), nil
}

func (p *fakePlatform) PostMessage(_ context.Context, channelID, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posts[channelID] = append(p.posts[channelID], content)
	return nil
}

func (p *fakePlatform) ArchiveThread(_ context.Context, threadID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.archiveErr[threadID]; err != nil {
		return err
	}
	p.archived = append(p.archived, threadID)
	for _, t := range p.threads {
		if t.id == threadID {
			t.archived = true
		}
	}
	return nil
}

type recordingDispatcher struct {
	events.Dispatcher
	mu        sync.Mutex
	published []events.Event
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{Dispatcher: events.NewInMemoryDispatcher()}
}

func (d *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	d.published = append(d.published, event)
	d.mu.Unlock()
	return d.Dispatcher.Publish(ctx, event)
}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.published))
	for _, e := range d.published {
		out = append(out, e.Type)
	}
	return out
}

func testCategories() domain.CategorySet {
	return domain.NewCategorySet([]domain.Category{
		{
			Key:   "support",
			Name:  "General Support",
			Label: "Support",
			Emoji: "🎫",
			Questions: []domain.Question{
				{ID: "topic", Label: "Topic", Style: domain.QuestionStyleShort, Required: true, MaxLength: 20},
				{ID: "details", Label: "Details", Style: domain.QuestionStyleParagraph},
			},
		},
		{
			Key:    "report",
			Name:   "Report",
			Label:  "Report",
			Emoji:  "🚨",
			Urgent: true,
			Questions: []domain.Question{
				{ID: "severity", Label: "Severity", Style: domain.QuestionStyleSelect, Required: true, Options: []domain.QuestionOption{
					{Label: "Low", Value: "low"},
					{Label: "High", Value: "high"},
				}},
			},
		},
	})
}
