package domain

import "time"

// CooldownTicketCreation throttles ticket creation per user.
const CooldownTicketCreation = "ticket_creation"

// Cooldown is a time-bounded throttle keyed by (user, type).
type Cooldown struct {
	UserID    string
	Type      string
	ExpiresAt time.Time
}

// ActiveAt reports whether the cooldown still applies at now.
func (c *Cooldown) ActiveAt(now time.Time) bool {
	return c != nil && now.Before(c.ExpiresAt)
}

// Remaining returns the time left at now, or zero when expired.
func (c *Cooldown) Remaining(now time.Time) time.Duration {
	if !c.ActiveAt(now) {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}

// Setting is a JSON-serializable value stored under a key.
type Setting struct {
	Key       string
	Value     []byte
	UpdatedAt time.Time
}
