// Package discord implements platform.Client on top of the Discord REST API.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

const (
	privateThreadType = 12
	maxAttempts       = 3
	maxRetryAfter     = 10 * time.Second
	discordEpochMS    = 1420070400000
	memberRolesTTL    = 10 * time.Minute
)

// APIError is a non-2xx answer from the REST API.
type APIError struct {
	Status  int
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord api %d (code %d): %s", e.Status, e.Code, e.Message)
}

// Client talks to the REST API with a bot token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	parents []string
	logger  *zap.Logger
	rolesMu sync.Mutex
	roles   map[string]cachedRoles
	sleep   func(context.Context, time.Duration) error
	now     func() time.Time
}

type cachedRoles struct {
	ids     []string
	fetched time.Time
}

// New builds a client from the platform configuration.
func New(cfg config.PlatformConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.BotToken,
		http:    &http.Client{Timeout: cfg.Timeout()},
		parents: cfg.TicketChannelIDs,
		logger:  logger.Named("discord"),
		roles:   map[string]cachedRoles{},
		sleep:   sleepCtx,
		now:     time.Now,
	}
}

var _ platform.Client = (*Client)(nil)

type threadMetadata struct {
	Archived         bool       `json:"archived"`
	Locked           bool       `json:"locked"`
	ArchiveTimestamp time.Time  `json:"archive_timestamp"`
	CreateTimestamp  *time.Time `json:"create_timestamp"`
}

type channelPayload struct {
	ID             string          `json:"id"`
	GuildID        string          `json:"guild_id"`
	ParentID       string          `json:"parent_id"`
	Name           string          `json:"name"`
	Type           int             `json:"type"`
	ThreadMetadata *threadMetadata `json:"thread_metadata"`
}

type threadList struct {
	Threads []channelPayload `json:"threads"`
	HasMore bool             `json:"has_more"`
}

type messagePayload struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Author    struct {
		ID  string `json:"id"`
		Bot bool   `json:"bot"`
	} `json:"author"`
	WebhookID string `json:"webhook_id"`
}

type memberPayload struct {
	Roles []string `json:"roles"`
}

// ListThreads returns the active threads of the guild plus the public and
// private archived threads of every configured ticket channel. Listing
// private archives needs the Manage Threads permission.
func (c *Client) ListThreads(ctx context.Context, communityID string) ([]platform.Thread, error) {
	var active threadList
	if err := c.do(ctx, http.MethodGet, "/guilds/"+communityID+"/threads/active", nil, "", &active); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(active.Threads))
	out := make([]platform.Thread, 0, len(active.Threads))
	for _, ch := range active.Threads {
		seen[ch.ID] = struct{}{}
		out = append(out, c.thread(ch, communityID))
	}

	for _, parent := range c.parents {
		for _, visibility := range []string{"public", "private"} {
			archived, err := c.archivedThreads(ctx, parent, visibility)
			if err != nil {
				return nil, err
			}
			for _, ch := range archived {
				if _, dup := seen[ch.ID]; dup {
					continue
				}
				seen[ch.ID] = struct{}{}
				out = append(out, c.thread(ch, communityID))
			}
		}
	}
	return out, nil
}

func (c *Client) archivedThreads(ctx context.Context, parentID, visibility string) ([]channelPayload, error) {
	var (
		all    []channelPayload
		before string
	)
	for {
		q := url.Values{"limit": {"100"}}
		if before != "" {
			q.Set("before", before)
		}
		var page threadList
		path := "/channels/" + parentID + "/threads/archived/" + visibility + "?" + q.Encode()
		if err := c.do(ctx, http.MethodGet, path, nil, "", &page); err != nil {
			return nil, err
		}
		all = append(all, page.Threads...)
		if !page.HasMore || len(page.Threads) == 0 {
			return all, nil
		}
		last := page.Threads[len(page.Threads)-1]
		if last.ThreadMetadata == nil {
			return all, nil
		}
		before = archiveCursor(last)
	}
}

// GetThread loads one thread channel.
func (c *Client) GetThread(ctx context.Context, threadID string) (platform.Thread, error) {
	var ch channelPayload
	if err := c.do(ctx, http.MethodGet, "/channels/"+threadID, nil, "", &ch); err != nil {
		return nil, err
	}
	if ch.ThreadMetadata == nil {
		return nil, fmt.Errorf("channel %s is not a thread", threadID)
	}
	return c.thread(ch, ch.GuildID), nil
}

// CreateThread opens a private thread under the parent channel.
func (c *Client) CreateThread(ctx context.Context, req platform.CreateThreadRequest) (platform.Thread, error) {
	body := map[string]any{
		"name":                  req.Name,
		"type":                  privateThreadType,
		"auto_archive_duration": req.AutoArchiveMinutes,
		"invitable":             false,
	}
	var ch channelPayload
	if err := c.do(ctx, http.MethodPost, "/channels/"+req.ParentChannelID+"/threads", body, req.Reason, &ch); err != nil {
		return nil, err
	}
	return c.thread(ch, ch.GuildID), nil
}

// PostMessage sends a plain text message.
func (c *Client) PostMessage(ctx context.Context, channelID, content string) error {
	body := map[string]any{
		"content":          content,
		"allowed_mentions": map[string]any{"parse": []string{"users", "roles"}},
	}
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", body, "", nil)
}

// ArchiveThread archives and locks the thread.
func (c *Client) ArchiveThread(ctx context.Context, threadID string) error {
	body := map[string]any{"archived": true, "locked": true}
	return c.do(ctx, http.MethodPatch, "/channels/"+threadID, body, "", nil)
}

func (c *Client) fetchMessages(ctx context.Context, guildID, threadID string, limit int, before string) ([]platform.Message, error) {
	if limit <= 0 || limit > platform.DefaultPageSize {
		limit = platform.DefaultPageSize
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if before != "" {
		q.Set("before", before)
	}
	var raw []messagePayload
	if err := c.do(ctx, http.MethodGet, "/channels/"+threadID+"/messages?"+q.Encode(), nil, "", &raw); err != nil {
		return nil, err
	}

	out := make([]platform.Message, 0, len(raw))
	for _, m := range raw {
		msg := platform.Message{
			ID:          m.ID,
			AuthorID:    m.Author.ID,
			IsAutomated: m.Author.Bot || m.WebhookID != "",
			Content:     m.Content,
			CreatedAt:   m.Timestamp.UTC(),
		}
		if !msg.IsAutomated && guildID != "" {
			roles, err := c.memberRoles(ctx, guildID, m.Author.ID)
			if err != nil {
				c.logger.Warn("member roles unavailable", zap.String("user_id", m.Author.ID), zap.Error(err))
			}
			msg.AuthorRoleIDs = roles
		}
		out = append(out, msg)
	}
	return out, nil
}

// memberRoles caches role lookups for a few minutes. Members that left the
// guild resolve to no roles.
func (c *Client) memberRoles(ctx context.Context, guildID, userID string) ([]string, error) {
	key := guildID + "/" + userID
	c.rolesMu.Lock()
	cached, ok := c.roles[key]
	c.rolesMu.Unlock()
	if ok && c.now().Sub(cached.fetched) < memberRolesTTL {
		return cached.ids, nil
	}

	var member memberPayload
	err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/members/"+userID, nil, "", &member)
	if apiErr, isAPI := err.(*APIError); isAPI && apiErr.Status == http.StatusNotFound {
		err = nil
	}
	if err != nil {
		return nil, err
	}
	c.rolesMu.Lock()
	c.roles[key] = cachedRoles{ids: member.Roles, fetched: c.now()}
	c.rolesMu.Unlock()
	return member.Roles, nil
}

func (c *Client) thread(ch channelPayload, guildID string) *thread {
	t := &thread{client: c, id: ch.ID, name: ch.Name, guildID: guildID, created: SnowflakeTime(ch.ID)}
	if ch.GuildID != "" {
		t.guildID = ch.GuildID
	}
	if md := ch.ThreadMetadata; md != nil {
		t.archived = md.Archived
		if md.CreateTimestamp != nil {
			t.created = md.CreateTimestamp.UTC()
		}
	}
	return t
}

func (c *Client) do(ctx context.Context, method, path string, body any, reason string, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bot "+c.token)
		req.Header.Set("User-Agent", "DiscordBot (ticket-bot, 1.0)")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if reason != "" {
			req.Header.Set("X-Audit-Log-Reason", url.PathEscape(reason))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxAttempts {
			wait := retryAfter(resp.Header, raw)
			c.logger.Warn("rate limited", zap.String("path", path), zap.Duration("retry_after", wait))
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{Status: resp.StatusCode}
			_ = json.Unmarshal(raw, apiErr)
			if apiErr.Message == "" {
				apiErr.Message = http.StatusText(resp.StatusCode)
			}
			return apiErr
		}
		if out == nil || len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, out)
	}
}

func retryAfter(h http.Header, body []byte) time.Duration {
	var payload struct {
		RetryAfter float64 `json:"retry_after"`
	}
	secs := 0.0
	if json.Unmarshal(body, &payload) == nil && payload.RetryAfter > 0 {
		secs = payload.RetryAfter
	} else if v, err := strconv.ParseFloat(h.Get("Retry-After"), 64); err == nil {
		secs = v
	}
	wait := time.Duration(secs * float64(time.Second))
	if wait > maxRetryAfter {
		wait = maxRetryAfter
	}
	return wait
}

func archiveCursor(ch channelPayload) string {
	return ch.ThreadMetadata.ArchiveTimestamp.UTC().Format(time.RFC3339Nano)
}

// SnowflakeTime extracts the creation time encoded in a snowflake id.
func SnowflakeTime(id string) time.Time {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(int64(n>>22) + discordEpochMS).UTC()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type thread struct {
	client   *Client
	id       string
	name     string
	guildID  string
	archived bool
	created  time.Time
}

func (t *thread) ID() string           { return t.id }
func (t *thread) Name() string         { return t.name }
func (t *thread) Archived() bool       { return t.archived }
func (t *thread) CreatedAt() time.Time { return t.created }

func (t *thread) FetchMessages(ctx context.Context, limit int, before string) ([]platform.Message, error) {
	return t.client.fetchMessages(ctx, t.guildID, t.id, limit, before)
}
