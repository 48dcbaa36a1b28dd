package domain

import "time"

// APIRole scopes what an API token may do.
type APIRole string

const (
	// APIRoleAdmin may call every endpoint, including maintenance.
	APIRoleAdmin APIRole = "admin"
	// APIRoleIntegration drives ticket workflows only.
	APIRoleIntegration APIRole = "integration"
)

// Valid reports whether r is a known role.
func (r APIRole) Valid() bool {
	return r == APIRoleAdmin || r == APIRoleIntegration
}

// Token describes an issued API token.
type Token struct {
	Value     string    `json:"token"`
	Subject   string    `json:"subject"`
	Role      APIRole   `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}
