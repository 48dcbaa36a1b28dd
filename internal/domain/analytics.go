package domain

import "time"

// BucketCounts holds total/active/archived thread counts.
type BucketCounts struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Archived int `json:"archived"`
}

// StaffActivity is the number of messages a staff member posted.
type StaffActivity struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}

// AnalyticsSnapshot is a fully recomputed view of the live ticket threads.
// Day keys are YYYY-MM-DD and hour keys are 00..23, both in UTC.
type AnalyticsSnapshot struct {
	GeneratedAt           time.Time               `json:"generated_at"`
	Total                 int                     `json:"total"`
	Active                int                     `json:"active"`
	Archived              int                     `json:"archived"`
	ByCategory            map[string]BucketCounts `json:"by_category"`
	ByDay                 map[string]int          `json:"by_day"`
	ByHour                map[string]int          `json:"by_hour"`
	AverageResponseTimeMS int64                   `json:"average_response_time_ms"`
	TopStaff              []StaffActivity         `json:"top_staff"`
}

// LiveStatistics counts currently active threads per category.
type LiveStatistics struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"by_category"`
}
