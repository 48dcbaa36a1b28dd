// Package notify delivers lifecycle events to external channels through a
// priority queue drained by a single worker.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

// Priority orders queued notifications. Higher values are delivered first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityUrgent:
		return "urgent"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

var eventPriorities = map[events.EventType]Priority{
	events.EventTicketCreated: PriorityHigh,
	events.EventTicketClosed:  PriorityMedium,
	events.EventStaffAssigned: PriorityMedium,
	events.EventUrgentTicket:  PriorityUrgent,
	events.EventDailyReport:   PriorityLow,
	events.EventTest:          PriorityLow,
}

// PriorityFor returns the default priority of an event type.
func PriorityFor(t events.EventType) Priority {
	if p, ok := eventPriorities[t]; ok {
		return p
	}
	return PriorityLow
}

// Notification is one queued delivery.
type Notification struct {
	ID         string
	Type       events.EventType
	Priority   Priority
	TicketID   string
	Actor      events.Actor
	Payload    any
	EnqueuedAt time.Time
}

// Transport delivers notifications to one kind of destination.
//
// Delivery is at-most-once. The queue logs a failed Send and moves on; it
// never retries, and implementations must not retry internally either.
type Transport interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Format renders the human readable text of a notification.
func Format(n Notification) string {
	switch p := n.Payload.(type) {
	case events.TicketCreatedPayload:
		return fmt.Sprintf("🎫 New %s %s ticket `%s` opened by %s in <#%s>",
			p.CategoryEmoji, p.CategoryName, n.TicketID, platform.MentionUser(n.Actor.UserID), p.ThreadID)
	case events.TicketClosedPayload:
		text := fmt.Sprintf("🔒 Ticket `%s` (%s) closed by %s", n.TicketID, p.Category, platform.MentionUser(n.Actor.UserID))
		if p.OpenFor > 0 {
			text += fmt.Sprintf(" after %s", p.OpenFor.Round(time.Minute))
		}
		return text
	case events.StaffAssignedPayload:
		return fmt.Sprintf("👋 %s claimed ticket `%s` in <#%s>", platform.MentionUser(p.StaffID), n.TicketID, p.ThreadID)
	case events.UrgentTicketPayload:
		return fmt.Sprintf("🚨 Urgent %s ticket `%s` needs attention in <#%s>", p.CategoryName, n.TicketID, p.ThreadID)
	case events.DailyReportPayload:
		return formatDailyReport(p)
	case events.TestPayload:
		return "🧪 " + p.Message
	default:
		return fmt.Sprintf("%s notification", n.Type)
	}
}

func formatDailyReport(p events.DailyReportPayload) string {
	s := p.Snapshot
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Daily report %s\n", s.GeneratedAt.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "Threads: %d total, %d active, %d archived\n", s.Total, s.Active, s.Archived)
	if s.AverageResponseTimeMS > 0 {
		fmt.Fprintf(&b, "Average response: %s\n", (time.Duration(s.AverageResponseTimeMS) * time.Millisecond).Round(time.Second))
	}
	for i, staff := range s.TopStaff {
		fmt.Fprintf(&b, "%d. %s (%d messages)\n", i+1, platform.MentionUser(staff.UserID), staff.Count)
	}
	return strings.TrimRight(b.String(), "\n")
}
