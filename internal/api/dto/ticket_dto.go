package dto

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// OpenTicketRequest submits the ticket form on behalf of a user.
type OpenTicketRequest struct {
	UserID          string            `json:"user_id"`
	Username        string            `json:"username"`
	CommunityID     string            `json:"community_id"`
	ParentChannelID string            `json:"parent_channel_id"`
	Category        string            `json:"category"`
	Answers         map[string]string `json:"answers"`
}

// CreateTicketRequest records a ticket for an existing thread.
type CreateTicketRequest struct {
	UserID      string            `json:"user_id"`
	Username    string            `json:"username"`
	Category    string            `json:"category"`
	FormData    map[string]string `json:"form_data"`
	ThreadID    string            `json:"thread_id"`
	CommunityID string            `json:"community_id"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status   domain.TicketStatus `json:"status"`
	ClosedBy *string             `json:"closed_by"`
}

// ThreadActionRequest identifies who acts on a thread.
type ThreadActionRequest struct {
	ActorID string   `json:"actor_id"`
	RoleIDs []string `json:"role_ids"`
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID          string              `json:"ticket_id"`
	UserID      string              `json:"user_id"`
	Category    string              `json:"category"`
	Status      domain.TicketStatus `json:"status"`
	FormData    map[string]string   `json:"form_data"`
	ThreadID    string              `json:"thread_id,omitempty"`
	CommunityID string              `json:"community_id"`
	CreatedAt   time.Time           `json:"created_at"`
	ClosedAt    *time.Time          `json:"closed_at"`
	ClosedBy    *string             `json:"closed_by"`
}

// NewTicketResponse converts a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	form := t.FormData
	if form == nil {
		form = map[string]string{}
	}
	return TicketResponse{
		ID:          t.ID,
		UserID:      t.UserID,
		Category:    t.Category,
		Status:      t.Status,
		FormData:    form,
		ThreadID:    t.ThreadID,
		CommunityID: t.CommunityID,
		CreatedAt:   t.CreatedAt,
		ClosedAt:    t.ClosedAt,
		ClosedBy:    t.ClosedBy,
	}
}

// NewTicketList converts a slice of tickets, never returning nil.
func NewTicketList(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// StatisticsResponse summarizes persisted tickets.
type StatisticsResponse struct {
	Total      int64            `json:"total"`
	Open       int64            `json:"open"`
	Closed     int64            `json:"closed"`
	ByCategory map[string]int64 `json:"by_category"`
}

// NewStatisticsResponse converts persisted statistics.
func NewStatisticsResponse(s *domain.TicketStatistics) StatisticsResponse {
	by := make(map[string]int64, len(s.ByCategory))
	for _, row := range s.ByCategory {
		by[row.Category] = row.Count
	}
	return StatisticsResponse{Total: s.Total, Open: s.Open, Closed: s.Closed, ByCategory: by}
}

// CloseAllResponse reports a bulk close.
type CloseAllResponse struct {
	Closed int `json:"closed"`
	Errors int `json:"errors"`
	Total  int `json:"total"`
}

// QuestionResponse describes one form field.
type QuestionResponse struct {
	ID          string           `json:"id"`
	Label       string           `json:"label"`
	Placeholder string           `json:"placeholder,omitempty"`
	Style       string           `json:"style"`
	Required    bool             `json:"required"`
	MaxLength   int              `json:"max_length,omitempty"`
	Options     []OptionResponse `json:"options,omitempty"`
}

// OptionResponse is a select choice.
type OptionResponse struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// CategoryResponse describes a ticket category.
type CategoryResponse struct {
	Key         string             `json:"key"`
	Name        string             `json:"name"`
	Emoji       string             `json:"emoji"`
	Description string             `json:"description,omitempty"`
	Urgent      bool               `json:"urgent"`
	Questions   []QuestionResponse `json:"questions"`
}

// NewCategoryList converts the configured categories in order.
func NewCategoryList(set domain.CategorySet) []CategoryResponse {
	out := make([]CategoryResponse, 0, set.Len())
	for _, c := range set.All() {
		questions := make([]QuestionResponse, 0, len(c.Questions))
		for _, q := range c.Questions {
			opts := make([]OptionResponse, 0, len(q.Options))
			for _, o := range q.Options {
				opts = append(opts, OptionResponse{Label: o.Label, Value: o.Value})
			}
			questions = append(questions, QuestionResponse{
				ID:          q.ID,
				Label:       q.Label,
				Placeholder: q.Placeholder,
				Style:       questionStyle(q.Style),
				Required:    q.Required,
				MaxLength:   q.MaxLength,
				Options:     opts,
			})
		}
		out = append(out, CategoryResponse{
			Key:         c.Key,
			Name:        c.Name,
			Emoji:       c.Emoji,
			Description: c.Description,
			Urgent:      c.Urgent,
			Questions:   questions,
		})
	}
	return out
}

func questionStyle(s domain.QuestionStyle) string {
	switch s {
	case domain.QuestionStyleParagraph:
		return "paragraph"
	case domain.QuestionStyleSelect:
		return "select"
	default:
		return "short"
	}
}
