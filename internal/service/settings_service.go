package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// SettingsService stores JSON values by key.
type SettingsService struct {
	settings repository.SettingsRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewSettingsService constructs the service.
func NewSettingsService(repo repository.SettingsRepository, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{settings: repo, logger: logger.Named("settings"), now: time.Now}
}

// Set stores value under key, replacing any previous value.
func (s *SettingsService) Set(ctx context.Context, key string, value any) error {
	if strings.TrimSpace(key) == "" {
		return apperrors.NewValidationError("setting key is required", nil)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return apperrors.NewValidationError("setting value is not JSON serializable", map[string]any{"key": key})
	}
	if err := s.settings.Set(ctx, key, raw, s.now().UTC()); err != nil {
		s.logger.Error("setting write failed", zap.String("key", key), zap.Error(err))
		return apperrors.NewPersistenceFailure(err)
	}
	return nil
}

// Get returns the decoded value stored under key, or def when absent.
func (s *SettingsService) Get(ctx context.Context, key string, def any) (any, error) {
	var value any
	found, err := s.Decode(ctx, key, &value)
	if err != nil {
		return nil, err
	}
	if !found {
		return def, nil
	}
	return value, nil
}

// Decode unmarshals the value under key into dst and reports whether the
// key exists.
func (s *SettingsService) Decode(ctx context.Context, key string, dst any) (bool, error) {
	setting, err := s.settings.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		s.logger.Error("setting read failed", zap.String("key", key), zap.Error(err))
		return false, apperrors.NewPersistenceFailure(err)
	}
	if err := json.Unmarshal(setting.Value, dst); err != nil {
		s.logger.Error("setting decode failed", zap.String("key", key), zap.Error(err))
		return false, apperrors.NewInternalError(err)
	}
	return true, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SettingsService) Delete(ctx context.Context, key string) error {
	if err := s.settings.Delete(ctx, key); err != nil {
		s.logger.Error("setting delete failed", zap.String("key", key), zap.Error(err))
		return apperrors.NewPersistenceFailure(err)
	}
	return nil
}

// All returns every stored setting decoded.
func (s *SettingsService) All(ctx context.Context) (map[string]any, error) {
	settings, err := s.settings.List(ctx)
	if err != nil {
		s.logger.Error("settings listing failed", zap.Error(err))
		return nil, apperrors.NewPersistenceFailure(err)
	}
	out := make(map[string]any, len(settings))
	for _, setting := range settings {
		var value any
		if err := json.Unmarshal(setting.Value, &value); err != nil {
			s.logger.Warn("skipping undecodable setting", zap.String("key", setting.Key), zap.Error(err))
			continue
		}
		out[setting.Key] = value
	}
	return out, nil
}
