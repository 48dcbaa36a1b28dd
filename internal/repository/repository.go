package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

var (
	// ErrNotFound is returned by single-row reads when nothing matches.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateID is returned when a ticket identifier already exists.
	ErrDuplicateID = errors.New("duplicate ticket id")
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	// Create inserts a new ticket. It never overwrites an existing id.
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, ticketID string) (*domain.Ticket, error)
	GetByThreadID(ctx context.Context, threadID string) (*domain.Ticket, error)
	ListByUser(ctx context.Context, userID, communityID string) ([]domain.Ticket, error)
	ListOpenByUser(ctx context.Context, userID, communityID string) ([]domain.Ticket, error)
	ListByCommunity(ctx context.Context, communityID string, status *domain.TicketStatus) ([]domain.Ticket, error)
	// UpdateStatus moves the ticket to status. Closing an already closed
	// ticket keeps the original closed_at and closed_by.
	UpdateStatus(ctx context.Context, ticketID string, status domain.TicketStatus, closedBy *string, at time.Time) (*domain.Ticket, error)
	Statistics(ctx context.Context, communityID string) (*domain.TicketStatistics, error)
	// DeleteClosedBefore removes closed tickets whose closed_at is before cutoff.
	DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CooldownRepository stores per-(user, type) throttles.
type CooldownRepository interface {
	// Upsert replaces any existing cooldown for the pair.
	Upsert(ctx context.Context, userID, cooldownType string, expiresAt time.Time) error
	// GetActive returns the cooldown only when it has not expired at now,
	// and nil otherwise.
	GetActive(ctx context.Context, userID, cooldownType string, now time.Time) (*domain.Cooldown, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Delete(ctx context.Context, userID, cooldownType string) error
}

// SettingsRepository stores JSON values by key.
type SettingsRepository interface {
	Set(ctx context.Context, key string, value []byte, at time.Time) error
	Get(ctx context.Context, key string) (*domain.Setting, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]domain.Setting, error)
}

// Store bundles the repositories of one backend.
type Store struct {
	Tickets   TicketRepository
	Cooldowns CooldownRepository
	Settings  SettingsRepository
}
