package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig(srv.URL)
	cfg.APIKey = "secret"
	cfg.Timeout = 2 * time.Second
	return NewClient(cfg)
}

func TestClient_Course(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/courses/c1", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "c1",
			"instructor_id": "i1",
			"title": "Go",
			"modules": [
				{"id": "m2", "position": 2, "lessons": [{"id": "l3", "position": 1}]},
				{"id": "m1", "position": 1, "lessons": [{"id": "l2", "position": 2}, {"id": "l1", "position": 1}]}
			]
		}`))
	})

	course, err := c.Course(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, shared.InstructorID("i1"), course.InstructorID)
	assert.Equal(t, 3, course.TotalLessons())
	assert.Equal(t, "m1", course.Modules[0].ID)
	assert.Equal(t, shared.LessonID("l1"), course.Modules[0].Lessons[0].ID)
}

func TestClient_NotFoundMapsToDomainErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	ctx := context.Background()

	_, err := c.LessonCourse(ctx, "l1")
	assert.ErrorIs(t, err, shared.ErrLessonNotFound)

	_, err = c.Course(ctx, "c1")
	assert.ErrorIs(t, err, shared.ErrCourseNotFound)

	enrolled, err := c.IsEnrolled(ctx, "s1", "c1")
	require.NoError(t, err)
	assert.False(t, enrolled)

	assert.Equal(t, "closed", c.Status().Breaker)
}

func TestClient_IsEnrolled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/courses/c1/enrollments/s1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"student_id":"s1","course_id":"c1","status":"active"}`))
	})

	enrolled, err := c.IsEnrolled(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.True(t, enrolled)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"l1","course_id":"c9"}`))
	})

	courseID, err := c.LessonCourse(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, shared.CourseID("c9"), courseID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_RateLimitIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Course(context.Background(), "c1")
	assert.ErrorIs(t, err, shared.ErrPlatformRateLimited)
	assert.True(t, shared.IsExternalService(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_UnavailableAfterRetries(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Course(context.Background(), "c1")
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
}

func TestCourseDTO_RejectsMissingIDs(t *testing.T) {
	_, err := CourseDTO{}.toDomain()
	assert.ErrorIs(t, err, shared.ErrPlatformInvalidResponse)

	_, err = CourseDTO{ID: "c1", Modules: []ModuleDTO{{ID: "m1", Lessons: []LessonRefDTO{{}}}}}.toDomain()
	assert.ErrorIs(t, err, shared.ErrPlatformInvalidResponse)
}
