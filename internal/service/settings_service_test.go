package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

type reportSchedule struct {
	Hour    int      `json:"hour"`
	Enabled bool     `json:"enabled"`
	Targets []string `json:"targets"`
}

func TestSettingsDefaultWhenAbsent(t *testing.T) {
	svc := NewSettingsService(newTestStore(t).Settings, nil)

	value, err := svc.Get(context.Background(), "missing", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", value)

	var dst reportSchedule
	found, err := svc.Decode(context.Background(), "missing", &dst)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSettingsRoundTripAndOverwrite(t *testing.T) {
	ctx := context.Background()
	svc := NewSettingsService(newTestStore(t).Settings, nil)

	require.NoError(t, svc.Set(ctx, "daily_report", reportSchedule{Hour: 9, Enabled: true, Targets: []string{"c1"}}))
	require.NoError(t, svc.Set(ctx, "daily_report", reportSchedule{Hour: 18, Enabled: true, Targets: []string{"c1", "c2"}}))

	var got reportSchedule
	found, err := svc.Decode(ctx, "daily_report", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, reportSchedule{Hour: 18, Enabled: true, Targets: []string{"c1", "c2"}}, got)

	value, err := svc.Get(ctx, "daily_report", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"hour": float64(18), "enabled": true, "targets": []any{"c1", "c2"}}, value)
}

func TestSettingsAllAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewSettingsService(newTestStore(t).Settings, nil)

	require.NoError(t, svc.Set(ctx, "greeting", "hello"))
	require.NoError(t, svc.Set(ctx, "limit", 3))

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"greeting": "hello", "limit": float64(3)}, all)

	require.NoError(t, svc.Delete(ctx, "greeting"))
	require.NoError(t, svc.Delete(ctx, "greeting"))

	all, err = svc.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"limit": float64(3)}, all)
}

func TestSettingsRejectsEmptyKey(t *testing.T) {
	svc := NewSettingsService(newTestStore(t).Settings, nil)
	err := svc.Set(context.Background(), "  ", 1)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}
