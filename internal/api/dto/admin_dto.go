package dto

// CleanupRequest payload. Zero days means the configured retention.
type CleanupRequest struct {
	Days int `json:"days"`
}

// CleanupResponse reports a maintenance sweep.
type CleanupResponse struct {
	ClearedCooldowns int64 `json:"cleared_cooldowns"`
	DeletedTickets   int64 `json:"deleted_tickets"`
}

// SettingRequest stores any JSON value.
type SettingRequest struct {
	Value any `json:"value"`
}

// NotificationTestRequest payload.
type NotificationTestRequest struct {
	Message string `json:"message"`
}
