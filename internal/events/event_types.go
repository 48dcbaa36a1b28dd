package events

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated EventType = "ticket_created"
	EventTicketClosed  EventType = "ticket_closed"
	EventStaffAssigned EventType = "staff_assigned"
	EventUrgentTicket  EventType = "urgent_ticket"
	EventDailyReport   EventType = "daily_report"
	EventTest          EventType = "test"
)

// AllEventTypes lists every event type in declaration order.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketClosed,
	EventStaffAssigned,
	EventUrgentTicket,
	EventDailyReport,
	EventTest,
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	for _, known := range AllEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Actor identifies who triggered an event.
type Actor struct {
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	TicketID    string    `json:"ticket_id,omitempty"`
	CommunityID string    `json:"community_id,omitempty"`
	Actor       Actor     `json:"actor"`
	Timestamp   time.Time `json:"timestamp"`
	Payload     any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Category      string            `json:"category"`
	CategoryName  string            `json:"category_name"`
	CategoryEmoji string            `json:"category_emoji"`
	ThreadID      string            `json:"thread_id"`
	Answers       map[string]string `json:"answers"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	Category string        `json:"category"`
	ThreadID string        `json:"thread_id"`
	OpenFor  time.Duration `json:"open_for"`
}

// StaffAssignedPayload payload.
type StaffAssignedPayload struct {
	StaffID  string `json:"staff_id"`
	ThreadID string `json:"thread_id"`
}

// UrgentTicketPayload payload.
type UrgentTicketPayload struct {
	Category     string `json:"category"`
	CategoryName string `json:"category_name"`
	ThreadID     string `json:"thread_id"`
}

// DailyReportPayload payload.
type DailyReportPayload struct {
	Snapshot domain.AnalyticsSnapshot `json:"snapshot"`
}

// TestPayload payload.
type TestPayload struct {
	Message string `json:"message"`
}
