package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu              sync.Mutex
	started         time.Time
	requestCount    map[string]int64
	errorCount      map[string]int64
	requestDuration map[string]time.Duration
	delivered       map[string]int64
	failed          map[string]int64
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	UptimeSeconds       int64            `json:"uptime_seconds"`
	Requests            map[string]int64 `json:"requests"`
	Errors              map[string]int64 `json:"errors"`
	AverageLatencyMS    map[string]int64 `json:"average_latency_ms"`
	NotificationsSent   map[string]int64 `json:"notifications_sent"`
	NotificationsFailed map[string]int64 `json:"notifications_failed"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		started:         time.Now(),
		requestCount:    make(map[string]int64),
		errorCount:      make(map[string]int64),
		requestDuration: make(map[string]time.Duration),
		delivered:       make(map[string]int64),
		failed:          make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestDuration[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordNotification counts a delivery attempt per event type and transport.
func (m *Metrics) RecordNotification(eventType, transport string, err error) {
	if m == nil {
		return
	}
	key := eventType + "|" + transport
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.failed[key]++
		return
	}
	m.delivered[key]++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	latency := make(map[string]int64, len(m.requestDuration))
	for key, total := range m.requestDuration {
		if n := m.requestCount[key]; n > 0 {
			latency[key] = (total / time.Duration(n)).Milliseconds()
		}
	}
	return Snapshot{
		UptimeSeconds:       int64(time.Since(m.started).Seconds()),
		Requests:            copyCounts(m.requestCount),
		Errors:              copyCounts(m.errorCount),
		AverageLatencyMS:    latency,
		NotificationsSent:   copyCounts(m.delivered),
		NotificationsFailed: copyCounts(m.failed),
	}
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
