package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/analytics"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/catalog"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/infrastructure/persistence/memory"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/circuitbreaker"
)

// unreachable returns a Cache whose every command fails fast.
func unreachable(t *testing.T) *Cache {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheFromClient(client)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "analytics:summary:inst-1", SummaryKey("inst-1"))
	assert.Equal(t, "analytics:top:25", TopPerformersKey(25))
	assert.Equal(t, "catalog:course:c1", CourseKey("c1"))
	assert.Equal(t, "catalog:lesson:l1", LessonOwnerKey("l1"))
	assert.Equal(t, "lock:reconcile", LockKey("reconcile"))
}

func TestConfig_Addr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "cache.local"
	cfg.Port = 6380
	assert.Equal(t, "cache.local:6380", cfg.Addr())
}

func TestCache_ValidatesArguments(t *testing.T) {
	ctx := context.Background()
	c := unreachable(t)

	assert.ErrorIs(t, c.Set(ctx, "", 1, time.Minute), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, time.Minute), ErrCacheNilValue)
	assert.ErrorIs(t, c.Set(ctx, "k", 1, -time.Second), ErrCacheInvalidTTL)

	var v int
	assert.ErrorIs(t, c.Get(ctx, "", &v), ErrCacheKeyEmpty)
}

func TestCatalogCache_ReadsThroughWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	market := memory.NewMarketplace(nil)
	market.PutCourse(catalog.Course{
		ID:           "c1",
		InstructorID: "i1",
		Modules: []catalog.Module{
			{ID: "m1", Position: 1, Lessons: []catalog.Lesson{{ID: "l1", Position: 1}, {ID: "l2", Position: 2}}},
		},
	})
	market.Enroll("s1", "c1", time.Now())

	cc := NewCatalogCache(market, unreachable(t), time.Minute, nil)

	courseID, err := cc.LessonCourse(ctx, "l2")
	require.NoError(t, err)
	assert.Equal(t, "c1", string(courseID))

	course, err := cc.Course(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, course.TotalLessons())

	enrolled, err := cc.IsEnrolled(ctx, "s1", "c1")
	require.NoError(t, err)
	assert.True(t, enrolled)
}

func TestCatalogCache_PropagatesNotFound(t *testing.T) {
	cc := NewCatalogCache(memory.NewMarketplace(nil), unreachable(t), time.Minute, nil)

	_, err := cc.Course(context.Background(), "missing")
	assert.Error(t, err)
}

func TestAnalyticsCache_TripsBreakerWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	ac := NewAnalyticsCache(unreachable(t), time.Minute, nil)

	for i := 0; i < 3; i++ {
		_, err := ac.GetSummary(ctx, "i1")
		require.Error(t, err)
	}
	assert.True(t, ac.Breaker().IsOpen())

	_, err := ac.GetTopPerformers(ctx, 10)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)

	err = ac.SetTopPerformers(ctx, 10, []analytics.RankedPerformer{})
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
}
