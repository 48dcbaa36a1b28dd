package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

type ticketFixture struct {
	svc        *TicketService
	store      repository.Store
	platform   *fakePlatform
	clock      *fakeClock
	dispatcher *recordingDispatcher
}

func testBotConfig() config.BotConfig {
	return config.BotConfig{
		CommunityID:          "guild-1",
		StaffRoleIDs:         []string{"staff"},
		TicketCooldown:       5 * time.Minute,
		MaxTicketsPerUser:    3,
		AutoArchiveMinutes:   60,
		ThreadNameTemplate:   "{emoji} {category} - {username}",
		ThreadReasonTemplate: "{category} ticket for {username}",
		StaffNotifyTemplate:  "{roles} a new ticket needs attention",
		RetentionDays:        30,
		CloseArchiveDelay:    5 * time.Second,
	}
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	clock := newFakeClock()
	store := newTestStore(t)
	fake := newFakePlatform(clock)
	dispatcher := newRecordingDispatcher()
	svc := NewTicketService(TicketDependencies{
		TicketRepo:   store.Tickets,
		CooldownRepo: store.Cooldowns,
		Platform:     fake,
		Categories:   testCategories(),
		Dispatcher:   dispatcher,
		Config:       testBotConfig(),
		Clock:        clock.Now,
		After:        func(_ time.Duration, f func()) { f() },
	})
	return &ticketFixture{svc: svc, store: store, platform: fake, clock: clock, dispatcher: dispatcher}
}

func (f *ticketFixture) create(t *testing.T, user string) *domain.Ticket {
	t.Helper()
	thread := f.platform.addThread("🎫 General Support - "+user, false)
	ticket, err := f.svc.CreateTicket(context.Background(), CreateTicketInput{
		UserID:      user + "-id",
		Username:    user,
		Category:    "support",
		FormData:    map[string]string{"topic": "billing"},
		ThreadID:    thread.ID(),
		CommunityID: "guild-1",
	})
	require.NoError(t, err)
	return ticket
}

var ticketIDPattern = regexp.MustCompile(`^TICKET-[0-9A-Z]{8}$`)

func TestCreateTicketPersistsAndStartsCooldown(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	ticket := f.create(t, "alice")

	assert.Regexp(t, ticketIDPattern, ticket.ID)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, map[string]string{"topic": "billing"}, ticket.FormData)
	assert.Nil(t, ticket.ClosedAt)
	assert.Nil(t, ticket.ClosedBy)

	stored, err := f.svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ThreadID, stored.ThreadID)
	assert.Equal(t, "billing", stored.FormData["topic"])

	cooldown, err := f.store.Cooldowns.GetActive(ctx, "alice-id", domain.CooldownTicketCreation, f.clock.Now())
	require.NoError(t, err)
	require.NotNil(t, cooldown)
	assert.True(t, cooldown.ExpiresAt.Equal(f.clock.Now().Add(5*time.Minute)))
}

func TestCreateTicketRefusedDuringCooldown(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Cooldowns.Upsert(ctx, "bob-id", domain.CooldownTicketCreation, f.clock.Now().Add(90*time.Second)))

	_, err := f.svc.CreateTicket(ctx, CreateTicketInput{
		UserID:      "bob-id",
		Username:    "bob",
		Category:    "support",
		FormData:    map[string]string{"topic": "help"},
		ThreadID:    "thread-x",
		CommunityID: "guild-1",
	})

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCooldownActive))
	assert.Equal(t, 2, apperrors.ToDomainError(err).Details["remaining_minutes"])

	tickets, err := f.svc.GetUserTickets(ctx, "bob-id", "guild-1")
	require.NoError(t, err)
	assert.Empty(t, tickets)

	f.clock.Advance(90 * time.Second)
	_, err = f.svc.CreateTicket(ctx, CreateTicketInput{
		UserID:      "bob-id",
		Username:    "bob",
		Category:    "support",
		FormData:    map[string]string{"topic": "help"},
		ThreadID:    "thread-x",
		CommunityID: "guild-1",
	})
	assert.NoError(t, err)
}

func TestCreateTicketOpenThreadCap(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	input := CreateTicketInput{
		UserID:      "carol-id",
		Username:    "carol",
		Category:    "support",
		FormData:    map[string]string{"topic": "help"},
		ThreadID:    "thread-new",
		CommunityID: "guild-1",
	}

	f.platform.addThread("🎫 General Support - carol", false)
	f.platform.addThread("🚨 Report - carol", false)
	f.platform.addThread("🎫 General Support - carol", true)
	f.platform.addThread("🎫 General Support - dave", false)

	_, err := f.svc.CreateTicket(ctx, input)
	require.NoError(t, err, "two open threads stay below the cap")

	f.clock.Advance(10 * time.Minute)
	f.platform.addThread("🎫 General Support - carol", false)

	_, err = f.svc.CreateTicket(ctx, input)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTooManyOpenTickets))
}

func TestCreateTicketValidatesAnswers(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	cases := map[string]CreateTicketInput{
		"unknown key":      {Category: "support", FormData: map[string]string{"topic": "x", "color": "red"}},
		"missing required": {Category: "support", FormData: map[string]string{"details": "x"}},
		"too long":         {Category: "support", FormData: map[string]string{"topic": "this answer is far too long"}},
		"bad choice":       {Category: "report", FormData: map[string]string{"severity": "medium"}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			input.UserID = "erin-id"
			input.CommunityID = "guild-1"
			_, err := f.svc.CreateTicket(ctx, input)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed), "got %v", err)
		})
	}

	_, err := f.svc.CreateTicket(ctx, CreateTicketInput{Category: "nope"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCategoryNotFound))
}

func TestGeneratedTicketIDsAreUnique(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		id := generateTicketID()
		require.Regexp(t, ticketIDPattern, id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestUpdateTicketStatusClosesOnce(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket := f.create(t, "alice")
	first, second := "staff-1", "staff-2"

	closed, err := f.svc.UpdateTicketStatus(ctx, ticket.ID, domain.TicketStatusClosed, &first)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	require.NotNil(t, closed.ClosedBy)
	assert.Equal(t, first, *closed.ClosedBy)

	f.clock.Advance(time.Hour)
	again, err := f.svc.UpdateTicketStatus(ctx, ticket.ID, domain.TicketStatusClosed, &second)
	require.NoError(t, err)
	assert.Equal(t, first, *again.ClosedBy)
	assert.True(t, again.ClosedAt.Equal(*closed.ClosedAt))

	reread, err := f.svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, reread.Status)

	_, err = f.svc.UpdateTicketStatus(ctx, ticket.ID, domain.TicketStatusOpen, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	_, err = f.svc.UpdateTicketStatus(ctx, "TICKET-00000000", domain.TicketStatusClosed, &first)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTicketNotFound))

	_, err = f.svc.UpdateTicketStatus(ctx, ticket.ID, domain.TicketStatus("escalated"), nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestReadsReturnEmptyCollections(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	open, err := f.svc.GetUserOpenTickets(ctx, "nobody", "guild-1")
	require.NoError(t, err)
	assert.NotNil(t, open)
	assert.Empty(t, open)

	closed := domain.TicketStatusClosed
	community, err := f.svc.GetCommunityTickets(ctx, "guild-1", &closed)
	require.NoError(t, err)
	assert.Empty(t, community)

	_, err = f.svc.GetTicket(ctx, "TICKET-MISSING0")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTicketNotFound))
}

func TestCleanupIsIdempotent(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	actor := "staff-1"

	old := f.create(t, "alice")
	_, err := f.svc.UpdateTicketStatus(ctx, old.ID, domain.TicketStatusClosed, &actor)
	require.NoError(t, err)

	f.clock.Advance(40 * 24 * time.Hour)
	recent := f.create(t, "bob")
	_, err = f.svc.UpdateTicketStatus(ctx, recent.ID, domain.TicketStatusClosed, &actor)
	require.NoError(t, err)
	stillOpen := f.create(t, "carol")

	f.clock.Advance(10 * time.Minute)

	first, err := f.svc.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.EqualValues(t, 1, first.DeletedTickets)
	assert.EqualValues(t, 3, first.ClearedCooldowns)

	second, err := f.svc.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Zero(t, second.DeletedTickets)
	assert.Zero(t, second.ClearedCooldowns)

	_, err = f.svc.GetTicket(ctx, recent.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetTicket(ctx, stillOpen.ID)
	assert.NoError(t, err)
}

func TestOpenTicketCreatesThreadAndNotifies(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	ticket, err := f.svc.OpenTicket(ctx, OpenTicketInput{
		UserID:          "alice-id",
		Username:        "alice",
		CommunityID:     "guild-1",
		ParentChannelID: "panel-channel",
		Category:        "report",
		Answers:         map[string]string{"severity": "high"},
	})
	require.NoError(t, err)

	require.Len(t, f.platform.created, 1)
	req := f.platform.created[0]
	assert.Equal(t, "🚨 Report - alice", req.Name)
	assert.Equal(t, "panel-channel", req.ParentChannelID)
	assert.Equal(t, 60, req.AutoArchiveMinutes)
	assert.Equal(t, "Report ticket for alice", req.Reason)

	assert.NotEmpty(t, ticket.ThreadID)
	posts := f.platform.posts[ticket.ThreadID]
	require.Len(t, posts, 2)
	assert.Contains(t, posts[0], ticket.ID)
	assert.Contains(t, posts[0], "**Severity**: high")
	assert.Equal(t, "<@&staff> a new ticket needs attention", posts[1])

	assert.Equal(t, []events.EventType{events.EventTicketCreated, events.EventUrgentTicket}, f.dispatcher.types())

	stored, err := f.svc.GetTicketByThread(ctx, ticket.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, stored.ID)
}

func TestOpenTicketPlatformFailurePersistsNothing(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	f.platform.createErr = errors.New("missing permissions")

	_, err := f.svc.OpenTicket(ctx, OpenTicketInput{
		UserID:      "alice-id",
		Username:    "alice",
		CommunityID: "guild-1",
		Category:    "support",
		Answers:     map[string]string{"topic": "help"},
	})

	assert.True(t, apperrors.HasCode(err, apperrors.CodeExternalPlatformFailure))
	assert.NotContains(t, apperrors.ToDomainError(err).Message, "missing permissions")
	tickets, err := f.svc.GetUserTickets(ctx, "alice-id", "guild-1")
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

type failingTicketRepo struct {
	repository.TicketRepository
}

func (failingTicketRepo) Create(context.Context, *domain.Ticket) error {
	return errors.New("disk full")
}

func TestOpenTicketPersistenceFailureArchivesThread(t *testing.T) {
	f := newTicketFixture(t)
	f.svc.tickets = failingTicketRepo{TicketRepository: f.store.Tickets}

	_, err := f.svc.OpenTicket(context.Background(), OpenTicketInput{
		UserID:      "alice-id",
		Username:    "alice",
		CommunityID: "guild-1",
		Category:    "support",
		Answers:     map[string]string{"topic": "help"},
	})

	assert.True(t, apperrors.HasCode(err, apperrors.CodePersistenceFailure))
	require.Len(t, f.platform.created, 1)
	assert.Equal(t, []string{"thread-1"}, f.platform.archived)
	assert.Empty(t, f.dispatcher.types())
}

func TestOpenTicketSerializesPerUser(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		cooldowns int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.OpenTicket(ctx, OpenTicketInput{
				UserID:      "alice-id",
				Username:    "alice",
				CommunityID: "guild-1",
				Category:    "support",
				Answers:     map[string]string{"topic": "help"},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperrors.HasCode(err, apperrors.CodeCooldownActive):
				cooldowns++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 4, cooldowns)
}

func TestCloseTicketArchivesAndPublishesOnce(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket := f.create(t, "alice")

	f.clock.Advance(30 * time.Minute)
	closed, err := f.svc.CloseTicket(ctx, ticket.ThreadID, "staff-1")
	require.NoError(t, err)
	f.svc.WaitPending()

	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	assert.Equal(t, []string{ticket.ThreadID}, f.platform.archived)
	assert.Equal(t, []events.EventType{events.EventTicketClosed}, f.dispatcher.types())
	payload := f.dispatcher.published[0].Payload.(events.TicketClosedPayload)
	assert.Equal(t, 30*time.Minute, payload.OpenFor)

	again, err := f.svc.CloseTicket(ctx, ticket.ThreadID, "staff-2")
	require.NoError(t, err)
	assert.Equal(t, "staff-1", *again.ClosedBy)
	assert.Len(t, f.dispatcher.types(), 1)

	_, err = f.svc.CloseTicket(ctx, "unknown-thread", "staff-1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTicketNotFound))
}

func TestClaimTicketRequiresStaffRole(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket := f.create(t, "alice")

	_, err := f.svc.ClaimTicket(ctx, ticket.ThreadID, "random", []string{"member"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	claimed, err := f.svc.ClaimTicket(ctx, ticket.ThreadID, "helper", []string{"member", "staff"})
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, claimed.ID)
	assert.Contains(t, f.platform.posts[ticket.ThreadID], "👋 Ticket claimed by <@helper>")
	assert.Equal(t, []events.EventType{events.EventStaffAssigned}, f.dispatcher.types())
}

func TestCloseAllTicketsCountsOutcomes(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	bound := f.create(t, "alice")
	f.platform.addThread("🎫 General Support - bob", false)
	broken := f.platform.addThread("🚨 Report - carol", false)
	f.platform.addThread("🎫 General Support - old", true)
	f.platform.archiveErr[broken.ID()] = errors.New("rate limited")

	result, err := f.svc.CloseAllTickets(ctx, "guild-1", "admin")
	require.NoError(t, err)
	assert.Equal(t, CloseAllResult{Closed: 2, Errors: 1, Total: 3}, result)

	closed, err := f.svc.GetTicket(ctx, bound.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	assert.Equal(t, "admin", *closed.ClosedBy)
}

func TestStatisticsDelegatesToStore(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	f.create(t, "alice")
	f.clock.Advance(10 * time.Minute)
	f.create(t, "alice")

	stats, err := f.svc.Statistics(ctx, "guild-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 2, stats.Open)
	assert.Equal(t, []domain.CategoryCount{{Category: "support", Count: 2}}, stats.ByCategory)
}
