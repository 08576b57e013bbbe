package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/catalog"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG CACHE
// Read-through cache for course structure. Membership checks always go to
// the collaborator: a revoked enrollment must take effect immediately.
// ══════════════════════════════════════════════════════════════════════════════

// CatalogCache decorates a catalog.Service.
type CatalogCache struct {
	inner  catalog.Service
	cache  *Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCatalogCache creates a CatalogCache. A non-positive ttl uses TTLCatalog.
func NewCatalogCache(inner catalog.Service, cache *Cache, ttl time.Duration, logger *slog.Logger) *CatalogCache {
	if ttl <= 0 {
		ttl = TTLCatalog
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CatalogCache{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With("component", "catalog_cache"),
	}
}

// LessonCourse implements catalog.Catalog.
func (c *CatalogCache) LessonCourse(ctx context.Context, lessonID shared.LessonID) (shared.CourseID, error) {
	key := LessonOwnerKey(string(lessonID))

	var courseID shared.CourseID
	err := c.cache.Get(ctx, key, &courseID)
	if err == nil {
		return courseID, nil
	}
	c.logMiss(key, err)

	courseID, err = c.inner.LessonCourse(ctx, lessonID)
	if err != nil {
		return "", err
	}

	if err := c.cache.Set(ctx, key, courseID, c.ttl); err != nil {
		c.logger.Warn("failed to cache lesson owner", "key", key, "error", err)
	}
	return courseID, nil
}

// Course implements catalog.Catalog.
func (c *CatalogCache) Course(ctx context.Context, courseID shared.CourseID) (*catalog.Course, error) {
	key := CourseKey(string(courseID))

	var course catalog.Course
	err := c.cache.Get(ctx, key, &course)
	if err == nil {
		return &course, nil
	}
	c.logMiss(key, err)

	loaded, err := c.inner.Course(ctx, courseID)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, loaded, c.ttl); err != nil {
		c.logger.Warn("failed to cache course", "key", key, "error", err)
	}
	return loaded, nil
}

// IsEnrolled implements catalog.Enrollments without caching.
func (c *CatalogCache) IsEnrolled(ctx context.Context, studentID shared.StudentID, courseID shared.CourseID) (bool, error) {
	return c.inner.IsEnrolled(ctx, studentID, courseID)
}

// InvalidateCourse drops a cached course tree, e.g. after an authoring change.
func (c *CatalogCache) InvalidateCourse(ctx context.Context, courseID shared.CourseID) error {
	return c.cache.Delete(ctx, CourseKey(string(courseID)))
}

func (c *CatalogCache) logMiss(key string, err error) {
	if errors.Is(err, ErrCacheMiss) {
		return
	}
	c.logger.Warn("catalog cache unavailable, reading through", "key", key, "error", err)
}
