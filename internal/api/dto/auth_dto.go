package dto

import "github.com/spec-kit/ticket-bot/internal/domain"

// TokenRequest exchanges the admin API key for a token.
type TokenRequest struct {
	APIKey string `json:"api_key"`
}

// IssueTokenRequest mints a token for another caller.
type IssueTokenRequest struct {
	Subject string         `json:"subject"`
	Role    domain.APIRole `json:"role"`
}
