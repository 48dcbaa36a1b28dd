package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	responseWindow = platform.DefaultPageSize
	topStaffLimit  = 5
)

// AnalyticsService derives statistics from live thread state.
type AnalyticsService struct {
	platform   platform.Client
	categories domain.CategorySet
	staffRoles map[string]struct{}
	logger     *zap.Logger
	now        func() time.Time
}

// AnalyticsDependencies bundles collaborators for the analytics service.
type AnalyticsDependencies struct {
	Platform     platform.Client
	Categories   domain.CategorySet
	StaffRoleIDs []string
	Logger       *zap.Logger
	Clock        func() time.Time
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(deps AnalyticsDependencies) *AnalyticsService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	roles := make(map[string]struct{}, len(deps.StaffRoleIDs))
	for _, id := range deps.StaffRoleIDs {
		roles[id] = struct{}{}
	}
	return &AnalyticsService{
		platform:   deps.Platform,
		categories: deps.Categories,
		staffRoles: roles,
		logger:     logger.Named("analytics"),
		now:        clock,
	}
}

// Generate scans every thread of the community and recomputes the
// snapshot. Each thread costs one history fetch of up to 100 messages.
func (s *AnalyticsService) Generate(ctx context.Context, communityID string) (*domain.AnalyticsSnapshot, error) {
	threads, err := s.platform.ListThreads(ctx, communityID)
	if err != nil {
		s.logger.Error("thread listing failed", zap.String("community_id", communityID), zap.Error(err))
		return nil, apperrors.NewExternalPlatformFailure(err)
	}
	return s.Aggregate(ctx, threads)
}

// Aggregate builds a snapshot from the given thread population.
func (s *AnalyticsService) Aggregate(ctx context.Context, threads []platform.Thread) (*domain.AnalyticsSnapshot, error) {
	snapshot := &domain.AnalyticsSnapshot{
		GeneratedAt: s.now().UTC(),
		ByCategory:  make(map[string]domain.BucketCounts, s.categories.Len()),
		ByDay:       map[string]int{},
		ByHour:      map[string]int{},
		TopStaff:    []domain.StaffActivity{},
	}
	for _, c := range s.categories.All() {
		snapshot.ByCategory[c.Key] = domain.BucketCounts{}
	}

	var (
		responseSum   time.Duration
		responseCount int64
		staff         = newStaffCounter()
	)

	for _, thread := range threads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		snapshot.Total++
		if thread.Archived() {
			snapshot.Archived++
		} else {
			snapshot.Active++
		}

		if key, ok := s.categories.Classify(thread.Name()); ok {
			bucket := snapshot.ByCategory[key]
			bucket.Total++
			if thread.Archived() {
				bucket.Archived++
			} else {
				bucket.Active++
			}
			snapshot.ByCategory[key] = bucket
		}

		created := thread.CreatedAt().UTC()
		snapshot.ByDay[created.Format("2006-01-02")]++
		snapshot.ByHour[fmt.Sprintf("%02d", created.Hour())]++

		messages, err := thread.FetchMessages(ctx, responseWindow, "")
		if err != nil {
			s.logger.Warn("thread history unavailable", zap.String("thread_id", thread.ID()), zap.Error(err))
			continue
		}
		if rt := s.responseTime(messages); rt > 0 {
			responseSum += rt
			responseCount++
		}
		for _, m := range messages {
			if !m.IsAutomated && m.HasAnyRole(s.staffRoles) {
				staff.add(m.AuthorID)
			}
		}
	}

	if responseCount > 0 {
		mean := responseSum / time.Duration(responseCount)
		snapshot.AverageResponseTimeMS = mean.Round(time.Millisecond).Milliseconds()
	}
	snapshot.TopStaff = staff.top(topStaffLimit)
	return snapshot, nil
}

// responseTime measures the delay between the first human message and the
// first later human message from a staff member. Zero means no staff reply.
// Messages arrive newest first.
func (s *AnalyticsService) responseTime(messages []platform.Message) time.Duration {
	var first *platform.Message
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.IsAutomated {
			continue
		}
		if first == nil {
			first = &messages[i]
			continue
		}
		if m.CreatedAt.After(first.CreatedAt) && m.HasAnyRole(s.staffRoles) {
			return m.CreatedAt.Sub(first.CreatedAt)
		}
	}
	return 0
}

// LiveStatistics counts active threads per category.
func (s *AnalyticsService) LiveStatistics(ctx context.Context, communityID string) (*domain.LiveStatistics, error) {
	threads, err := s.platform.ListThreads(ctx, communityID)
	if err != nil {
		s.logger.Error("thread listing failed", zap.String("community_id", communityID), zap.Error(err))
		return nil, apperrors.NewExternalPlatformFailure(err)
	}

	stats := &domain.LiveStatistics{ByCategory: make(map[string]int, s.categories.Len())}
	for _, c := range s.categories.All() {
		stats.ByCategory[c.Key] = 0
	}
	for _, thread := range threads {
		if thread.Archived() {
			continue
		}
		stats.Total++
		if key, ok := s.categories.Classify(thread.Name()); ok {
			stats.ByCategory[key]++
		}
	}
	return stats, nil
}

// staffCounter counts messages per author and remembers first-seen order.
type staffCounter struct {
	order  []string
	counts map[string]int
}

func newStaffCounter() *staffCounter {
	return &staffCounter{counts: map[string]int{}}
}

func (c *staffCounter) add(userID string) {
	if _, ok := c.counts[userID]; !ok {
		c.order = append(c.order, userID)
	}
	c.counts[userID]++
}

func (c *staffCounter) top(n int) []domain.StaffActivity {
	ranked := make([]domain.StaffActivity, 0, len(c.order))
	for _, id := range c.order {
		ranked = append(ranked, domain.StaffActivity{UserID: id, Count: c.counts[id]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
