// Package platform describes what the ticket core needs from the chat
// platform: enumerating threads, reading their history, creating threads,
// posting into them and archiving them.
package platform

import (
	"context"
	"time"
)

// DefaultPageSize is the largest message page a thread fetch returns.
const DefaultPageSize = 100

// Message is a single chat message as seen by the core.
type Message struct {
	ID            string
	AuthorID      string
	IsAutomated   bool
	Content       string
	CreatedAt     time.Time
	AuthorRoleIDs []string
}

// HasAnyRole reports whether the author holds one of roles.
func (m Message) HasAnyRole(roles map[string]struct{}) bool {
	for _, id := range m.AuthorRoleIDs {
		if _, ok := roles[id]; ok {
			return true
		}
	}
	return false
}

// Thread is a conversation thread in a community.
type Thread interface {
	ID() string
	Name() string
	Archived() bool
	CreatedAt() time.Time
	// FetchMessages returns up to limit messages, newest first. When before
	// is non-empty only messages older than that message id are returned.
	FetchMessages(ctx context.Context, limit int, before string) ([]Message, error)
}

// CreateThreadRequest describes a new ticket thread.
type CreateThreadRequest struct {
	Name               string
	ParentChannelID    string
	AutoArchiveMinutes int
	Reason             string
}

// Client is the chat platform collaborator.
type Client interface {
	ListThreads(ctx context.Context, communityID string) ([]Thread, error)
	GetThread(ctx context.Context, threadID string) (Thread, error)
	CreateThread(ctx context.Context, req CreateThreadRequest) (Thread, error)
	PostMessage(ctx context.Context, channelID, content string) error
	// ArchiveThread archives and locks the thread.
	ArchiveThread(ctx context.Context, threadID string) error
}

// MentionUser formats a user mention.
func MentionUser(userID string) string {
	return "<@" + userID + ">"
}

// MentionRole formats a role mention.
func MentionRole(roleID string) string {
	return "<@&" + roleID + ">"
}
