package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/platform"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

func TestTranscriptCollectsAllPagesOldestFirst(t *testing.T) {
	clock := newFakeClock()
	fake := newFakePlatform(clock)
	thread := fake.addThread("🎫 General Support - alice", false)

	chronological := make([]platform.Message, 0, 250)
	for i := 0; i < 250; i++ {
		chronological = append(chronological, platform.Message{
			ID:        fmt.Sprintf("m%03d", i),
			AuthorID:  "alice",
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: clock.Now().Add(time.Duration(i) * time.Second),
		})
	}
	thread.messages = newestFirst(chronological...)

	svc := NewTranscriptService(fake, nil)
	transcript, err := svc.Collect(context.Background(), thread.ID())
	require.NoError(t, err)

	assert.Equal(t, 3, thread.fetches)
	require.Len(t, transcript.Messages, 250)
	assert.Equal(t, "m000", transcript.Messages[0].ID)
	assert.Equal(t, "m249", transcript.Messages[249].ID)
	assert.Equal(t, thread.ID(), transcript.ThreadID)
	assert.Equal(t, "🎫 General Support - alice", transcript.ThreadName)
}

func TestTranscriptExactPageBoundary(t *testing.T) {
	fake := newFakePlatform(newFakeClock())
	thread := fake.addThread("🎫 a", false)
	msgs := make([]platform.Message, 0, platform.DefaultPageSize)
	for i := 0; i < platform.DefaultPageSize; i++ {
		msgs = append(msgs, platform.Message{ID: fmt.Sprintf("m%03d", i)})
	}
	thread.messages = newestFirst(msgs...)

	transcript, err := NewTranscriptService(fake, nil).Collect(context.Background(), thread.ID())
	require.NoError(t, err)
	assert.Len(t, transcript.Messages, platform.DefaultPageSize)
	assert.Equal(t, 2, thread.fetches, "a full page needs one more fetch to see the end")
}

func TestTranscriptEmptyThread(t *testing.T) {
	fake := newFakePlatform(newFakeClock())
	thread := fake.addThread("🎫 a", false)

	transcript, err := NewTranscriptService(fake, nil).Collect(context.Background(), thread.ID())
	require.NoError(t, err)
	assert.NotNil(t, transcript.Messages)
	assert.Empty(t, transcript.Messages)
}

func TestTranscriptFailures(t *testing.T) {
	fake := newFakePlatform(newFakeClock())
	svc := NewTranscriptService(fake, nil)

	_, err := svc.Collect(context.Background(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeExternalPlatformFailure))

	thread := fake.addThread("🎫 a", false)
	thread.fetchErr = errors.New("missing access")
	_, err = svc.Collect(context.Background(), thread.ID())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeExternalPlatformFailure))
}

func TestTranscriptRender(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := NewTranscriptService(nil, nil)
	transcript := &Transcript{
		ThreadID:    "900",
		ThreadName:  "🎫 General Support - alice",
		CreatedAt:   created,
		GeneratedAt: created.Add(time.Hour),
		Messages: []platform.Message{
			{AuthorID: "bot", IsAutomated: true, Content: "Welcome", CreatedAt: created},
			{AuthorID: "alice", Content: "hello", CreatedAt: created.Add(time.Minute)},
		},
	}

	text := svc.Render(transcript)
	assert.Contains(t, text, "Transcript of 🎫 General Support - alice (900)")
	assert.Contains(t, text, "2 messages")
	assert.Contains(t, text, "[2024-05-01 12:00:00] bot [bot]: Welcome\n")
	assert.Contains(t, text, "[2024-05-01 12:01:00] alice: hello\n")
	assert.Equal(t, "transcript-900-2024-05-01-13-00.txt", svc.Filename(transcript))
}
