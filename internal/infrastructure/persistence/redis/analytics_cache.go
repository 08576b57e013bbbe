package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/analytics"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS CACHE
// Implements analytics.Cache. Every call goes through a circuit breaker so an
// unhealthy Redis costs one fast failure instead of a timeout per request.
// ══════════════════════════════════════════════════════════════════════════════

// AnalyticsCache stores computed summaries and rankings.
type AnalyticsCache struct {
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

// NewAnalyticsCache creates an AnalyticsCache. A non-positive ttl uses TTLAnalytics.
func NewAnalyticsCache(cache *Cache, ttl time.Duration, logger *slog.Logger) *AnalyticsCache {
	if ttl <= 0 {
		ttl = TTLAnalytics
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AnalyticsCache{
		cache: cache,
		ttl:   ttl,
		breaker: circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		}),
	}
}

// GetSummary returns (nil, nil) on a miss.
func (c *AnalyticsCache) GetSummary(ctx context.Context, instructorID shared.InstructorID) (*analytics.Summary, error) {
	var s analytics.Summary
	found, err := c.get(ctx, SummaryKey(string(instructorID)), &s)
	if err != nil || !found {
		return nil, err
	}
	return &s, nil
}

// SetSummary stores a summary under its instructor.
func (c *AnalyticsCache) SetSummary(ctx context.Context, s *analytics.Summary) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, SummaryKey(string(s.InstructorID)), s, c.ttl)
	})
}

// GetTopPerformers returns (nil, nil) on a miss.
func (c *AnalyticsCache) GetTopPerformers(ctx context.Context, limit int) ([]analytics.RankedPerformer, error) {
	var ranked []analytics.RankedPerformer
	found, err := c.get(ctx, TopPerformersKey(limit), &ranked)
	if err != nil || !found {
		return nil, err
	}
	if ranked == nil {
		ranked = []analytics.RankedPerformer{}
	}
	return ranked, nil
}

// SetTopPerformers stores a ranking of the given size.
func (c *AnalyticsCache) SetTopPerformers(ctx context.Context, limit int, ranked []analytics.RankedPerformer) error {
	if ranked == nil {
		ranked = []analytics.RankedPerformer{}
	}
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, TopPerformersKey(limit), ranked, c.ttl)
	})
}

// InvalidateInstructor drops the instructor's summary.
func (c *AnalyticsCache) InvalidateInstructor(ctx context.Context, instructorID shared.InstructorID) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Delete(ctx, SummaryKey(string(instructorID)))
	})
}

// InvalidateRankings drops every cached ranking size.
func (c *AnalyticsCache) InvalidateRankings(ctx context.Context) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.DeleteByPattern(ctx, PrefixTopPerformers+"*")
	})
}

// Breaker exposes the circuit breaker for health reporting.
func (c *AnalyticsCache) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// get reads a key through the breaker; a miss is not a failure.
func (c *AnalyticsCache) get(ctx context.Context, key string, dest interface{}) (bool, error) {
	found := false
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		err := c.cache.Get(ctx, key, dest)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}
