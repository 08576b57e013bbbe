package memory

import (
	"context"
	"sync"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/analytics"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// AnalyticsCache is a process-local analytics.Cache without expiry.
type AnalyticsCache struct {
	mu        sync.RWMutex
	summaries map[shared.InstructorID]analytics.Summary
	rankings  map[int][]analytics.RankedPerformer
}

// NewAnalyticsCache creates an empty cache.
func NewAnalyticsCache() *AnalyticsCache {
	return &AnalyticsCache{
		summaries: make(map[shared.InstructorID]analytics.Summary),
		rankings:  make(map[int][]analytics.RankedPerformer),
	}
}

func (c *AnalyticsCache) GetSummary(ctx context.Context, instructorID shared.InstructorID) (*analytics.Summary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.summaries[instructorID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (c *AnalyticsCache) SetSummary(ctx context.Context, s *analytics.Summary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summaries[s.InstructorID] = *s
	return nil
}

func (c *AnalyticsCache) GetTopPerformers(ctx context.Context, limit int) ([]analytics.RankedPerformer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ranked, ok := c.rankings[limit]
	if !ok {
		return nil, nil
	}
	return append([]analytics.RankedPerformer(nil), ranked...), nil
}

func (c *AnalyticsCache) SetTopPerformers(ctx context.Context, limit int, ranked []analytics.RankedPerformer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rankings[limit] = append([]analytics.RankedPerformer(nil), ranked...)
	return nil
}

func (c *AnalyticsCache) InvalidateInstructor(ctx context.Context, instructorID shared.InstructorID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.summaries, instructorID)
	return nil
}

func (c *AnalyticsCache) InvalidateRankings(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rankings = make(map[int][]analytics.RankedPerformer)
	return nil
}
