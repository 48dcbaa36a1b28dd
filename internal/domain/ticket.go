package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusClosed TicketStatus = "closed"
)

// Valid reports whether the status is one of the known states.
func (s TicketStatus) Valid() bool {
	return s == TicketStatusOpen || s == TicketStatusClosed
}

// TicketIDPrefix precedes the random token of every ticket identifier.
const TicketIDPrefix = "TICKET"

// Ticket is a support request bound to one conversation thread.
type Ticket struct {
	ID          string
	UserID      string
	Category    string
	Status      TicketStatus
	FormData    map[string]string
	ThreadID    string
	CommunityID string
	CreatedAt   time.Time
	ClosedAt    *time.Time
	ClosedBy    *string
}

// IsClosed reports whether the ticket reached its terminal state.
func (t *Ticket) IsClosed() bool {
	return t.Status == TicketStatusClosed
}

// CategoryCount is a per-category row of persisted ticket statistics.
type CategoryCount struct {
	Category string
	Count    int64
}

// TicketStatistics summarizes persisted tickets for a community.
type TicketStatistics struct {
	Total      int64
	Open       int64
	Closed     int64
	ByCategory []CategoryCount
}
