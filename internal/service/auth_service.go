package service

import (
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// AuthService exchanges the admin API key for tokens.
type AuthService struct {
	tokenMgr   *auth.TokenManager
	apiKeyHash string
	logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		apiKeyHash: cfg.APIKeyHash,
		logger:     logger.Named("auth"),
	}
}

// TokenManager exposes the signer for the auth middleware.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Login verifies the admin API key and returns an admin token.
func (s *AuthService) Login(apiKey string) (domain.Token, error) {
	if s.apiKeyHash == "" {
		return domain.Token{}, apperrors.NewUnauthorized("api key login is not configured")
	}
	if apiKey == "" || auth.CompareAPIKey(s.apiKeyHash, apiKey) != nil {
		s.logger.Warn("rejected api key login")
		return domain.Token{}, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.issue("admin", domain.APIRoleAdmin)
}

// IssueToken mints a token for another caller, typically an integration.
func (s *AuthService) IssueToken(subject string, role domain.APIRole) (domain.Token, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return domain.Token{}, apperrors.NewValidationError("subject is required", nil)
	}
	if !role.Valid() {
		return domain.Token{}, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}
	return s.issue(subject, role)
}

func (s *AuthService) issue(subject string, role domain.APIRole) (domain.Token, error) {
	token, err := s.tokenMgr.GenerateToken(subject, role)
	if err != nil {
		s.logger.Error("token signing failed", zap.Error(err))
		return domain.Token{}, apperrors.NewInternalError(err)
	}
	s.logger.Info("token issued", zap.String("subject", subject), zap.String("role", string(role)))
	return token, nil
}
