package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/platform"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// Transcript is the full, oldest-first history of a ticket thread.
type Transcript struct {
	ThreadID    string             `json:"thread_id"`
	ThreadName  string             `json:"thread_name"`
	CreatedAt   time.Time          `json:"created_at"`
	GeneratedAt time.Time          `json:"generated_at"`
	Messages    []platform.Message `json:"messages"`
}

// TranscriptService exports thread histories.
type TranscriptService struct {
	platform platform.Client
	logger   *zap.Logger
	now      func() time.Time
}

// NewTranscriptService constructs the service.
func NewTranscriptService(client platform.Client, logger *zap.Logger) *TranscriptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscriptService{platform: client, logger: logger.Named("transcripts"), now: time.Now}
}

// Collect pages through the whole thread history.
func (s *TranscriptService) Collect(ctx context.Context, threadID string) (*Transcript, error) {
	thread, err := s.platform.GetThread(ctx, threadID)
	if err != nil {
		s.logger.Error("thread lookup failed", zap.String("thread_id", threadID), zap.Error(err))
		return nil, apperrors.NewExternalPlatformFailure(err)
	}

	var (
		all    []platform.Message
		before string
	)
	for {
		batch, err := thread.FetchMessages(ctx, platform.DefaultPageSize, before)
		if err != nil {
			s.logger.Error("thread history fetch failed", zap.String("thread_id", threadID), zap.Error(err))
			return nil, apperrors.NewExternalPlatformFailure(err)
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		before = batch[len(batch)-1].ID
		if len(batch) < platform.DefaultPageSize {
			break
		}
	}

	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if all == nil {
		all = []platform.Message{}
	}
	return &Transcript{
		ThreadID:    thread.ID(),
		ThreadName:  thread.Name(),
		CreatedAt:   thread.CreatedAt(),
		GeneratedAt: s.now().UTC(),
		Messages:    all,
	}, nil
}

// Render formats a transcript as plain text.
func (s *TranscriptService) Render(t *Transcript) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transcript of %s (%s)\n", t.ThreadName, t.ThreadID)
	fmt.Fprintf(&b, "Opened %s, exported %s, %d messages\n\n",
		t.CreatedAt.UTC().Format(time.DateTime), t.GeneratedAt.UTC().Format(time.DateTime), len(t.Messages))
	for _, m := range t.Messages {
		author := m.AuthorID
		if m.IsAutomated {
			author += " [bot]"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.CreatedAt.UTC().Format(time.DateTime), author, m.Content)
	}
	return b.String()
}

// Filename returns a download name for the transcript.
func (s *TranscriptService) Filename(t *Transcript) string {
	return fmt.Sprintf("transcript-%s-%s.txt", t.ThreadID, t.GeneratedAt.UTC().Format("2006-01-02-15-04"))
}
