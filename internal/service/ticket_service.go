package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	maxThreadNameLength  = 100
	idGenerationAttempts = 3
	backgroundTimeout    = 30 * time.Second
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	cooldowns  repository.CooldownRepository
	platform   platform.Client
	categories domain.CategorySet
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.BotConfig
	staffRoles map[string]struct{}
	locks      *userLocks
	now        func() time.Time
	after      func(time.Duration, func())
	pending    sync.WaitGroup
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	CooldownRepo repository.CooldownRepository
	Platform     platform.Client
	Categories   domain.CategorySet
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Config       config.BotConfig
	// Clock defaults to time.Now.
	Clock func() time.Time
	// After schedules delayed work and defaults to time.AfterFunc.
	After func(time.Duration, func())
}

// CreateTicketInput describes a ticket bound to an existing thread.
type CreateTicketInput struct {
	UserID      string
	Username    string
	Category    string
	FormData    map[string]string
	ThreadID    string
	CommunityID string
}

// OpenTicketInput describes a user submitting the ticket form.
type OpenTicketInput struct {
	UserID          string
	Username        string
	CommunityID     string
	ParentChannelID string
	Category        string
	Answers         map[string]string
}

// CleanupResult reports the rows removed by Cleanup.
type CleanupResult struct {
	ClearedCooldowns int64 `json:"cleared_cooldowns"`
	DeletedTickets   int64 `json:"deleted_tickets"`
}

// CloseAllResult reports the outcome of CloseAllTickets.
type CloseAllResult struct {
	Closed int `json:"closed"`
	Errors int `json:"errors"`
	Total  int `json:"total"`
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	after := deps.After
	if after == nil {
		after = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	roles := make(map[string]struct{}, len(deps.Config.StaffRoleIDs))
	for _, id := range deps.Config.StaffRoleIDs {
		roles[id] = struct{}{}
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		cooldowns:  deps.CooldownRepo,
		platform:   deps.Platform,
		categories: deps.Categories,
		dispatcher: deps.Dispatcher,
		logger:     logger.Named("tickets"),
		cfg:        deps.Config,
		staffRoles: roles,
		locks:      newUserLocks(),
		now:        clock,
		after:      after,
	}
}

// Categories returns the configured categories.
func (s *TicketService) Categories() domain.CategorySet {
	return s.categories
}

// CreateTicket persists a ticket for a thread that already exists. It is
// refused while the user's creation cooldown is active or when the user
// already has the maximum number of open threads.
func (s *TicketService) CreateTicket(ctx context.Context, input CreateTicketInput) (*domain.Ticket, error) {
	category, ok := s.categories.Get(input.Category)
	if !ok {
		return nil, apperrors.NewCategoryNotFound(input.Category)
	}
	if err := validateAnswers(category, input.FormData); err != nil {
		return nil, err
	}
	if err := s.CheckEligibility(ctx, input.UserID, input.Username, input.CommunityID); err != nil {
		return nil, err
	}
	return s.persistTicket(ctx, input)
}

// CheckEligibility applies the cooldown and open-thread cap checks.
func (s *TicketService) CheckEligibility(ctx context.Context, userID, username, communityID string) error {
	now := s.clock()
	cooldown, err := s.cooldowns.GetActive(ctx, userID, domain.CooldownTicketCreation, now)
	if err != nil {
		s.logger.Error("cooldown lookup failed", zap.String("user_id", userID), zap.Error(err))
		return apperrors.NewPersistenceFailure(err)
	}
	if cooldown.ActiveAt(now) {
		minutes := int(math.Ceil(cooldown.Remaining(now).Minutes()))
		return apperrors.NewCooldownActive(minutes)
	}

	open, err := s.countOpenThreads(ctx, userID, username, communityID)
	if err != nil {
		s.logger.Error("thread listing failed", zap.String("community_id", communityID), zap.Error(err))
		return apperrors.NewExternalPlatformFailure(err)
	}
	if open >= s.cfg.MaxTicketsPerUser {
		return apperrors.NewTooManyOpenTickets(s.cfg.MaxTicketsPerUser)
	}
	return nil
}

// countOpenThreads counts live threads whose name carries the user's name.
func (s *TicketService) countOpenThreads(ctx context.Context, userID, username, communityID string) (int, error) {
	marker := username
	if marker == "" {
		marker = userID
	}
	threads, err := s.platform.ListThreads(ctx, communityID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, thread := range threads {
		if !thread.Archived() && strings.Contains(thread.Name(), marker) {
			count++
		}
	}
	return count, nil
}

func (s *TicketService) persistTicket(ctx context.Context, input CreateTicketInput) (*domain.Ticket, error) {
	now := s.clock()
	ticket := &domain.Ticket{
		UserID:      input.UserID,
		Category:    input.Category,
		Status:      domain.TicketStatusOpen,
		FormData:    copyAnswers(input.FormData),
		ThreadID:    input.ThreadID,
		CommunityID: input.CommunityID,
		CreatedAt:   now,
	}

	var err error
	for attempt := 0; attempt < idGenerationAttempts; attempt++ {
		ticket.ID = generateTicketID()
		if err = s.tickets.Create(ctx, ticket); !errors.Is(err, repository.ErrDuplicateID) {
			break
		}
		s.logger.Warn("ticket id collision", zap.String("ticket_id", ticket.ID))
	}
	if err != nil {
		s.logger.Error("ticket insert failed",
			zap.String("user_id", input.UserID),
			zap.String("thread_id", input.ThreadID),
			zap.Error(err))
		return nil, apperrors.NewPersistenceFailure(err)
	}

	if err := s.cooldowns.Upsert(ctx, input.UserID, domain.CooldownTicketCreation, now.Add(s.cfg.TicketCooldown)); err != nil {
		s.logger.Error("cooldown upsert failed", zap.String("user_id", input.UserID), zap.Error(err))
	}
	return ticket, nil
}

// OpenTicket runs the whole form submission: validation, eligibility,
// thread creation, persistence and staff notification. Calls for the
// same user are serialized.
func (s *TicketService) OpenTicket(ctx context.Context, input OpenTicketInput) (*domain.Ticket, error) {
	category, ok := s.categories.Get(input.Category)
	if !ok {
		return nil, apperrors.NewCategoryNotFound(input.Category)
	}
	if err := validateAnswers(category, input.Answers); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(input.UserID)
	defer unlock()

	if err := s.CheckEligibility(ctx, input.UserID, input.Username, input.CommunityID); err != nil {
		return nil, err
	}

	thread, err := s.platform.CreateThread(ctx, platform.CreateThreadRequest{
		Name:               s.threadName(category, input.Username),
		ParentChannelID:    input.ParentChannelID,
		AutoArchiveMinutes: s.cfg.AutoArchiveMinutes,
		Reason:             renderTemplate(s.cfg.ThreadReasonTemplate, category, input.Username),
	})
	if err != nil {
		s.logger.Error("thread creation failed",
			zap.String("user_id", input.UserID),
			zap.String("category", category.Key),
			zap.Error(err))
		return nil, apperrors.NewExternalPlatformFailure(err)
	}

	ticket, err := s.persistTicket(ctx, CreateTicketInput{
		UserID:      input.UserID,
		Username:    input.Username,
		Category:    category.Key,
		FormData:    input.Answers,
		ThreadID:    thread.ID(),
		CommunityID: input.CommunityID,
	})
	if err != nil {
		if archiveErr := s.platform.ArchiveThread(ctx, thread.ID()); archiveErr != nil {
			s.logger.Error("orphan thread left open",
				zap.String("thread_id", thread.ID()),
				zap.Error(archiveErr))
		}
		return nil, err
	}

	s.postOpeningMessages(ctx, ticket, category)

	s.publishEvent(ctx, events.Event{
		Type:        events.EventTicketCreated,
		TicketID:    ticket.ID,
		CommunityID: ticket.CommunityID,
		Actor:       events.Actor{UserID: input.UserID, Username: input.Username},
		Payload: events.TicketCreatedPayload{
			Category:      category.Key,
			CategoryName:  category.Name,
			CategoryEmoji: category.Emoji,
			ThreadID:      ticket.ThreadID,
			Answers:       copyAnswers(ticket.FormData),
		},
	})
	if category.Urgent {
		s.publishEvent(ctx, events.Event{
			Type:        events.EventUrgentTicket,
			TicketID:    ticket.ID,
			CommunityID: ticket.CommunityID,
			Actor:       events.Actor{UserID: input.UserID, Username: input.Username},
			Payload: events.UrgentTicketPayload{
				Category:     category.Key,
				CategoryName: category.Name,
				ThreadID:     ticket.ThreadID,
			},
		})
	}
	return ticket, nil
}

func (s *TicketService) postOpeningMessages(ctx context.Context, ticket *domain.Ticket, category domain.Category) {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s %s** ticket `%s` opened by %s\n", category.Emoji, category.Name, ticket.ID, platform.MentionUser(ticket.UserID))
	for _, q := range category.Questions {
		answer, ok := ticket.FormData[q.ID]
		if !ok || strings.TrimSpace(answer) == "" {
			continue
		}
		fmt.Fprintf(&b, "**%s**: %s\n", q.Label, answer)
	}
	if err := s.platform.PostMessage(ctx, ticket.ThreadID, strings.TrimRight(b.String(), "\n")); err != nil {
		s.logger.Warn("ticket summary not posted", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	if len(s.cfg.StaffRoleIDs) == 0 {
		return
	}
	mentions := make([]string, 0, len(s.cfg.StaffRoleIDs))
	for _, id := range s.cfg.StaffRoleIDs {
		mentions = append(mentions, platform.MentionRole(id))
	}
	ping := strings.ReplaceAll(s.cfg.StaffNotifyTemplate, "{roles}", strings.Join(mentions, " "))
	if err := s.platform.PostMessage(ctx, ticket.ThreadID, ping); err != nil {
		s.logger.Warn("staff ping not posted", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

// UpdateTicketStatus moves a ticket through its lifecycle. Closing an
// already closed ticket returns it unchanged.
func (s *TicketService) UpdateTicketStatus(ctx context.Context, ticketID string, status domain.TicketStatus, closedBy *string) (*domain.Ticket, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("unknown ticket status", map[string]any{"status": status})
	}
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == status {
		return ticket, nil
	}
	if !isValidTransition(ticket.Status, status) {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(status))
	}

	updated, err := s.tickets.UpdateStatus(ctx, ticketID, status, closedBy, s.clock())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewTicketNotFound(ticketID)
	}
	if err != nil {
		s.logger.Error("ticket status update failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return nil, apperrors.NewPersistenceFailure(err)
	}
	return updated, nil
}

// GetTicket loads one ticket.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewTicketNotFound(ticketID)
	}
	if err != nil {
		s.logger.Error("ticket lookup failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return nil, apperrors.NewPersistenceFailure(err)
	}
	return ticket, nil
}

// GetTicketByThread loads the ticket bound to a thread.
func (s *TicketService) GetTicketByThread(ctx context.Context, threadID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByThreadID(ctx, threadID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewDomainError(apperrors.CodeTicketNotFound, "no ticket is bound to this thread", http.StatusNotFound, map[string]any{"thread_id": threadID})
	}
	if err != nil {
		s.logger.Error("ticket lookup failed", zap.String("thread_id", threadID), zap.Error(err))
		return nil, apperrors.NewPersistenceFailure(err)
	}
	return ticket, nil
}

// GetUserTickets lists all tickets a user opened in a community.
func (s *TicketService) GetUserTickets(ctx context.Context, userID, communityID string) ([]domain.Ticket, error) {
	return s.list(s.tickets.ListByUser(ctx, userID, communityID))
}

// GetUserOpenTickets lists a user's open tickets in a community.
func (s *TicketService) GetUserOpenTickets(ctx context.Context, userID, communityID string) ([]domain.Ticket, error) {
	return s.list(s.tickets.ListOpenByUser(ctx, userID, communityID))
}

// GetCommunityTickets lists a community's tickets, optionally by status.
func (s *TicketService) GetCommunityTickets(ctx context.Context, communityID string, status *domain.TicketStatus) ([]domain.Ticket, error) {
	if status != nil && !status.Valid() {
		return nil, apperrors.NewValidationError("unknown ticket status", map[string]any{"status": *status})
	}
	return s.list(s.tickets.ListByCommunity(ctx, communityID, status))
}

func (s *TicketService) list(tickets []domain.Ticket, err error) ([]domain.Ticket, error) {
	if err != nil {
		s.logger.Error("ticket listing failed", zap.Error(err))
		return nil, apperrors.NewPersistenceFailure(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// Statistics returns persisted ticket counts for a community.
func (s *TicketService) Statistics(ctx context.Context, communityID string) (*domain.TicketStatistics, error) {
	stats, err := s.tickets.Statistics(ctx, communityID)
	if err != nil {
		s.logger.Error("ticket statistics failed", zap.String("community_id", communityID), zap.Error(err))
		return nil, apperrors.NewPersistenceFailure(err)
	}
	return stats, nil
}

// Cleanup drops expired cooldowns and closed tickets older than daysOld.
// A non-positive daysOld falls back to the configured retention.
func (s *TicketService) Cleanup(ctx context.Context, daysOld int) (CleanupResult, error) {
	if daysOld <= 0 {
		daysOld = s.cfg.RetentionDays
	}
	now := s.clock()
	var result CleanupResult

	cleared, err := s.cooldowns.DeleteExpired(ctx, now)
	if err != nil {
		s.logger.Error("cooldown sweep failed", zap.Error(err))
		return result, apperrors.NewPersistenceFailure(err)
	}
	result.ClearedCooldowns = cleared

	deleted, err := s.tickets.DeleteClosedBefore(ctx, now.AddDate(0, 0, -daysOld))
	if err != nil {
		s.logger.Error("ticket retention sweep failed", zap.Error(err))
		return result, apperrors.NewPersistenceFailure(err)
	}
	result.DeletedTickets = deleted

	s.logger.Info("cleanup finished",
		zap.Int("days_old", daysOld),
		zap.Int64("cleared_cooldowns", result.ClearedCooldowns),
		zap.Int64("deleted_tickets", result.DeletedTickets))
	return result, nil
}

// CloseTicket closes the ticket bound to threadID and archives the thread
// after the configured delay.
func (s *TicketService) CloseTicket(ctx context.Context, threadID, actorID string) (*domain.Ticket, error) {
	ticket, err := s.GetTicketByThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if ticket.IsClosed() {
		return ticket, nil
	}

	closed, err := s.UpdateTicketStatus(ctx, ticket.ID, domain.TicketStatusClosed, &actorID)
	if err != nil {
		return nil, err
	}

	if err := s.platform.PostMessage(ctx, threadID, fmt.Sprintf("🔒 Ticket closed by %s", platform.MentionUser(actorID))); err != nil {
		s.logger.Warn("close notice not posted", zap.String("thread_id", threadID), zap.Error(err))
	}
	s.archiveLater(ctx, threadID)

	var openFor time.Duration
	if closed.ClosedAt != nil {
		openFor = closed.ClosedAt.Sub(closed.CreatedAt)
	}
	s.publishEvent(ctx, events.Event{
		Type:        events.EventTicketClosed,
		TicketID:    closed.ID,
		CommunityID: closed.CommunityID,
		Actor:       events.Actor{UserID: actorID},
		Payload: events.TicketClosedPayload{
			Category: closed.Category,
			ThreadID: threadID,
			OpenFor:  openFor,
		},
	})
	return closed, nil
}

func (s *TicketService) archiveLater(ctx context.Context, threadID string) {
	s.pending.Add(1)
	detached := context.WithoutCancel(ctx)
	s.after(s.cfg.CloseArchiveDelay, func() {
		defer s.pending.Done()
		archiveCtx, cancel := context.WithTimeout(detached, backgroundTimeout)
		defer cancel()
		if err := s.platform.ArchiveThread(archiveCtx, threadID); err != nil {
			s.logger.Error("thread archive failed", zap.String("thread_id", threadID), zap.Error(err))
		}
	})
}

// WaitPending blocks until scheduled thread archivals have run.
func (s *TicketService) WaitPending() {
	s.pending.Wait()
}

// ClaimTicket announces that a staff member took over the thread's ticket.
func (s *TicketService) ClaimTicket(ctx context.Context, threadID, staffID string, staffRoleIDs []string) (*domain.Ticket, error) {
	if !s.IsStaff(staffRoleIDs) {
		return nil, apperrors.NewForbidden("only staff can claim tickets")
	}
	ticket, err := s.GetTicketByThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if ticket.IsClosed() {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), "claimed")
	}
	if err := s.platform.PostMessage(ctx, threadID, fmt.Sprintf("👋 Ticket claimed by %s", platform.MentionUser(staffID))); err != nil {
		s.logger.Error("claim notice failed", zap.String("thread_id", threadID), zap.Error(err))
		return nil, apperrors.NewExternalPlatformFailure(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:        events.EventStaffAssigned,
		TicketID:    ticket.ID,
		CommunityID: ticket.CommunityID,
		Actor:       events.Actor{UserID: staffID},
		Payload:     events.StaffAssignedPayload{StaffID: staffID, ThreadID: threadID},
	})
	return ticket, nil
}

// IsStaff reports whether any of roleIDs is a configured staff role. With
// no staff roles configured everyone counts as staff.
func (s *TicketService) IsStaff(roleIDs []string) bool {
	if len(s.staffRoles) == 0 {
		return true
	}
	for _, id := range roleIDs {
		if _, ok := s.staffRoles[id]; ok {
			return true
		}
	}
	return false
}

// CloseAllTickets archives every active thread of the community and closes
// the tickets bound to them.
func (s *TicketService) CloseAllTickets(ctx context.Context, communityID, actorID string) (CloseAllResult, error) {
	var result CloseAllResult
	threads, err := s.platform.ListThreads(ctx, communityID)
	if err != nil {
		s.logger.Error("thread listing failed", zap.String("community_id", communityID), zap.Error(err))
		return result, apperrors.NewExternalPlatformFailure(err)
	}

	for _, thread := range threads {
		if thread.Archived() {
			continue
		}
		result.Total++
		if err := s.platform.ArchiveThread(ctx, thread.ID()); err != nil {
			result.Errors++
			s.logger.Warn("thread archive failed", zap.String("thread_id", thread.ID()), zap.Error(err))
			continue
		}
		result.Closed++

		ticket, err := s.tickets.GetByThreadID(ctx, thread.ID())
		if err != nil || ticket.IsClosed() {
			continue
		}
		if _, err := s.UpdateTicketStatus(ctx, ticket.ID, domain.TicketStatusClosed, &actorID); err != nil {
			s.logger.Warn("ticket not closed", zap.String("ticket_id", ticket.ID), zap.Error(err))
			continue
		}
		s.publishEvent(ctx, events.Event{
			Type:        events.EventTicketClosed,
			TicketID:    ticket.ID,
			CommunityID: communityID,
			Actor:       events.Actor{UserID: actorID},
			Payload:     events.TicketClosedPayload{Category: ticket.Category, ThreadID: thread.ID()},
		})
	}

	s.logger.Info("close all finished",
		zap.String("community_id", communityID),
		zap.Int("closed", result.Closed),
		zap.Int("errors", result.Errors),
		zap.Int("total", result.Total))
	return result, nil
}

func (s *TicketService) threadName(category domain.Category, username string) string {
	name := renderTemplate(s.cfg.ThreadNameTemplate, category, username)
	if utf8.RuneCountInString(name) > maxThreadNameLength {
		name = string([]rune(name)[:maxThreadNameLength])
	}
	return name
}

func (s *TicketService) clock() time.Time {
	return s.now().UTC()
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func renderTemplate(tmpl string, category domain.Category, username string) string {
	return strings.NewReplacer(
		"{emoji}", category.Emoji,
		"{category}", category.Name,
		"{username}", username,
	).Replace(tmpl)
}

func generateTicketID() string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return domain.TicketIDPrefix + "-" + token[:8]
}

// validateAnswers checks form answers against the category's questions.
func validateAnswers(category domain.Category, answers map[string]string) error {
	for key := range answers {
		if _, ok := category.Question(key); !ok {
			return apperrors.NewValidationError("unknown question", map[string]any{"question": key, "category": category.Key})
		}
	}
	for _, q := range category.Questions {
		answer, ok := answers[q.ID]
		if !ok || strings.TrimSpace(answer) == "" {
			if q.Required {
				return apperrors.NewValidationError("answer required", map[string]any{"question": q.ID})
			}
			continue
		}
		if q.MaxLength > 0 && utf8.RuneCountInString(answer) > q.MaxLength {
			return apperrors.NewValidationError("answer too long", map[string]any{"question": q.ID, "max_length": q.MaxLength})
		}
		if q.Style == domain.QuestionStyleSelect && !q.HasOption(answer) {
			return apperrors.NewValidationError("invalid choice", map[string]any{"question": q.ID})
		}
	}
	return nil
}

func copyAnswers(answers map[string]string) map[string]string {
	out := make(map[string]string, len(answers))
	for k, v := range answers {
		out[k] = v
	}
	return out
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:   {domain.TicketStatusClosed},
	domain.TicketStatusClosed: {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
