package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/application/command"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/application/query"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/analytics"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/catalog"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/certificate"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/infrastructure/persistence/memory"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/interface/http/handlers"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/logger"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/timeutil"
)

const (
	testSecret = "test-secret"
	testIssuer = "marketplace"
	testAPIKey = "ops-key"
)

var monday = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type discardPublisher struct{}

func (discardPublisher) Publish(shared.Event) error { return nil }

type testEnv struct {
	server *Server
	market *memory.Marketplace
}

func newTestEnv(t *testing.T, configure func(*Config, *Dependencies)) *testEnv {
	t.Helper()

	store := memory.NewStore()
	market := memory.NewMarketplace(store)
	market.AddInstructor("inst-1", "Ada")
	market.PutCourse(catalog.Course{
		ID:           "course-1",
		InstructorID: "inst-1",
		Modules: []catalog.Module{{
			ID:      "m1",
			Lessons: []catalog.Lesson{{ID: "l1", Position: 0}, {ID: "l2", Position: 1}},
		}},
	})
	market.Enroll("stu-1", "course-1", monday)

	clock := timeutil.NewFixedClock(monday)
	generator := certificate.NewGenerator("test-key", "https://certs.example/c")
	publisher := discardPublisher{}

	issuer := command.NewIssueCertificateHandler(store.Enrollments(), generator, publisher, clock, nil)
	aggregator := command.NewAggregator(store.Enrollments(), store.Progress(), market, issuer, publisher, clock, nil, command.AggregatorConfig{})
	streaks := command.NewCreditActivityHandler(store.Streaks(), publisher, clock, nil)
	cache := memory.NewAnalyticsCache()

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	cfg.AuthDisabled = true
	cfg.InternalAPIKey = testAPIKey
	cfg.JWTSecret = testSecret
	cfg.JWTIssuer = testIssuer

	deps := Dependencies{
		RecordProgress:    command.NewRecordProgressHandler(store.Progress(), market, aggregator, streaks, publisher, clock, nil, command.RecordProgressHandlerConfig{}),
		Aggregator:        aggregator,
		CourseProgress:    query.NewGetCourseProgressHandler(store.Enrollments(), store.Progress(), market, generator, clock),
		Streak:            query.NewGetStreakHandler(store.Streaks(), clock),
		InstructorSummary: query.NewGetInstructorSummaryHandler(market.Sources(), cache, query.AnalyticsOptions{}, nil),
		MonthlySeries:     query.NewGetMonthlySeriesHandler(market.Sources(), query.AnalyticsOptions{}, clock),
		TopPerformers:     query.NewGetTopPerformersHandler(market, cache, query.AnalyticsOptions{}, nil),
		Certificates:      generator,
		Clock:             clock,
		Logger:            logger.Nop(),
		Metrics: map[string]MetricsProvider{
			"bus": func() any { return map[string]int{"published": 3} },
		},
	}
	if configure != nil {
		configure(&cfg, &deps)
	}

	return &testEnv{server: NewServer(cfg, deps), market: market}
}

// envelope mirrors JSONResponse with raw data.
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	Meta      *ResponseMeta   `json:"meta"`
	RequestID string          `json:"request_id"`
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func asStudent(id string) map[string]string {
	return map[string]string{handlers.UserIDHeader: id}
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

func TestRecordProgress_CompletesLessonAndRollsUp(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodPost, "/progress/lessons/l1",
		`{"status":"completed","timeSpentDelta":15,"quizScore":88.5}`, asStudent("stu-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, body.Success)

	var resp RecordProgressResponse
	decodeData(t, body, &resp)
	assert.True(t, resp.JustCompleted)
	assert.Equal(t, "completed", resp.Lesson.Status)
	assert.Equal(t, 15, resp.Lesson.TimeSpentMinutes)
	require.NotNil(t, resp.Enrollment)
	assert.Equal(t, "50.00", resp.Enrollment.ProgressPercentage)
	require.NotNil(t, resp.Streak)
	assert.Equal(t, 1, resp.Streak.CurrentStreak)

	rec, body = env.do(t, http.MethodGet, "/progress/courses/course-1", "", asStudent("stu-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var course query.CourseProgressDTO
	decodeData(t, body, &course)
	assert.Equal(t, "50.00", course.ProgressPercentage)
	assert.Equal(t, 1, course.CompletedLessons)
	require.Len(t, course.Lessons, 2)
	assert.Equal(t, "not_started", course.Lessons[1].Status)
}

func TestRecordProgress_AcceptsNumericStatusCode(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodPost, "/progress/lessons/l2", `{"status":1}`, asStudent("stu-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp RecordProgressResponse
	decodeData(t, body, &resp)
	assert.Equal(t, "in_progress", resp.Lesson.Status)
	assert.False(t, resp.JustCompleted)
}

func TestRecordProgress_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		student string
		path    string
		body    string
		status  int
		code    string
	}{
		{"negative time", "stu-1", "/progress/lessons/l1", `{"status":"in_progress","timeSpentDelta":-1}`, http.StatusBadRequest, "invalid_request"},
		{"score above 100", "stu-1", "/progress/lessons/l1", `{"status":"completed","quizScore":101}`, http.StatusBadRequest, "invalid_request"},
		{"missing status", "stu-1", "/progress/lessons/l1", `{"timeSpentDelta":3}`, http.StatusBadRequest, "invalid_request"},
		{"unknown status", "stu-1", "/progress/lessons/l1", `{"status":"paused"}`, http.StatusBadRequest, "invalid_request"},
		{"malformed json", "stu-1", "/progress/lessons/l1", `{"status":`, http.StatusBadRequest, "invalid_request"},
		{"unknown lesson", "stu-1", "/progress/lessons/l404", `{"status":"completed"}`, http.StatusNotFound, "lesson_not_found"},
		{"not enrolled", "stu-9", "/progress/lessons/l1", `{"status":"completed"}`, http.StatusForbidden, "not_enrolled"},
		{"client timestamp", "stu-1", "/progress/lessons/l1", `{"status":"in_progress","occurredAt":"2026-03-10T09:00:00Z"}`, http.StatusBadRequest, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			rec, body := env.do(t, http.MethodPost, tt.path, tt.body, asStudent(tt.student))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestRecordProgress_StreakCountsServerDays(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, lesson := range []string{"l1", "l2", "l1"} {
		rec, body := env.do(t, http.MethodPost, "/progress/lessons/"+lesson, `{"status":"in_progress","timeSpentDelta":1}`, asStudent("stu-1"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp RecordProgressResponse
		decodeData(t, body, &resp)
		require.NotNil(t, resp.Streak)
		assert.Equal(t, 1, resp.Streak.CurrentStreak)
	}

	rec, body := env.do(t, http.MethodGet, "/progress/streak", "", asStudent("stu-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var streak query.StreakDTO
	decodeData(t, body, &streak)
	assert.Equal(t, 1, streak.CurrentStreak)
	assert.Equal(t, 1, streak.BestStreak)
}

func TestRecordProgress_ValidationDetailsUseJSONNames(t *testing.T) {
	env := newTestEnv(t, nil)

	_, body := env.do(t, http.MethodPost, "/progress/lessons/l1", `{"status":"completed","timeSpentDelta":-5}`, asStudent("stu-1"))
	require.NotNil(t, body.Error)
	assert.Contains(t, body.Error.Details, "timeSpentDelta")
}

func TestProgressRoutes_RequireIdentity(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/progress/streak", "/progress/courses/course-1", "/analytics/platform/top-performers"} {
		rec, body := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		require.NotNil(t, body.Error, path)
		assert.Equal(t, "unauthorized", body.Error.Code)
	}
}

func TestGetCourseProgress_UnknownEnrollment(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/progress/courses/course-1", "", asStudent("stu-9"))
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	require.NotNil(t, body.Error)
	assert.Equal(t, "enrollment_not_found", body.Error.Code)
}

func TestGetCourseProgress_EnrolledWithoutActivity(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/progress/courses/course-1?lessons=false", "", asStudent("stu-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var course query.CourseProgressDTO
	decodeData(t, body, &course)
	assert.Equal(t, "0.00", course.ProgressPercentage)
	assert.Equal(t, "not_started", course.Status)
	assert.Equal(t, 2, course.TotalLessons)
	assert.Empty(t, course.Lessons)
}

func TestGetStreak_ZeroBeforeFirstActivity(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/progress/streak", "", asStudent("stu-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var dto query.StreakDTO
	decodeData(t, body, &dto)
	assert.Equal(t, "stu-1", dto.StudentID)
	assert.Equal(t, 0, dto.CurrentStreak)
	assert.False(t, dto.ActiveToday)
}

// ══════════════════════════════════════════════════════════════════════════════
// OPERATIONAL
// ══════════════════════════════════════════════════════════════════════════════

func TestRecompute_RequiresInternalKey(t *testing.T) {
	env := newTestEnv(t, nil)

	_, body := env.do(t, http.MethodPost, "/progress/lessons/l1", `{"status":"completed"}`, asStudent("stu-1"))
	var resp RecordProgressResponse
	decodeData(t, body, &resp)
	require.NotNil(t, resp.Enrollment)
	path := fmt.Sprintf("/progress/enrollments/%s/recompute", resp.Enrollment.EnrollmentID)

	rec, body := env.do(t, http.MethodPost, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "invalid_api_key", body.Error.Code)

	rec, body = env.do(t, http.MethodPost, path, "", map[string]string{"X-API-Key": testAPIKey})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out RecomputeResponse
	decodeData(t, body, &out)
	assert.False(t, out.Changed, "recompute is idempotent")
	assert.Equal(t, "50.00", out.Enrollment.ProgressPercentage)
	assert.Equal(t, "50.00", out.PreviousPercentage)
}

func TestRecompute_UnknownEnrollment(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodPost, "/progress/enrollments/missing-1/recompute", "", map[string]string{"X-API-Key": testAPIKey})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "enrollment_not_found", body.Error.Code)
}

func TestMetrics_ExposesProviders(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/metrics", "", map[string]string{"X-API-Key": testAPIKey})
	require.Equal(t, http.StatusOK, rec.Code)

	var metrics map[string]json.RawMessage
	decodeData(t, body, &metrics)
	assert.JSONEq(t, `{"published":3}`, string(metrics["bus"]))
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS
// ══════════════════════════════════════════════════════════════════════════════

func TestAnalytics_InstructorSummary(t *testing.T) {
	env := newTestEnv(t, nil)
	env.market.AddPayment(analytics.Payment{ID: "p1", CourseID: "course-1", StudentID: "stu-1", Amount: decimal.RequireFromString("49.50"), CompletedAt: monday})

	rec, body := env.do(t, http.MethodGet, "/analytics/instructors/inst-1", "", asStudent("stu-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var dto query.InstructorSummaryDTO
	decodeData(t, body, &dto)
	assert.Equal(t, "49.50", dto.TotalRevenue)
	assert.Equal(t, 1, dto.TotalStudents)
}

func TestAnalytics_MonthlySeries(t *testing.T) {
	env := newTestEnv(t, nil)
	env.market.AddPayment(analytics.Payment{ID: "p1", CourseID: "course-1", Amount: decimal.NewFromInt(100), CompletedAt: monday})

	rec, body := env.do(t, http.MethodGet, "/analytics/revenue/monthly?window=3&fill=zero", "", asStudent("stu-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var dto query.MonthlySeriesDTO
	decodeData(t, body, &dto)
	assert.Equal(t, "zero", dto.Fill)
	assert.Len(t, dto.Buckets, 3)

	rec, body = env.do(t, http.MethodGet, "/analytics/refunds/monthly", "", asStudent("stu-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", body.Error.Code)

	rec, _ = env.do(t, http.MethodGet, "/analytics/revenue/monthly?window=abc", "", asStudent("stu-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/analytics/revenue/weekly", "", asStudent("stu-1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body.Error.Code)
}

func TestAnalytics_TopPerformers(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/analytics/platform/top-performers?limit=5", "", asStudent("stu-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var dto query.TopPerformersDTO
	decodeData(t, body, &dto)
	assert.Equal(t, 5, dto.Limit)
	require.Len(t, dto.Performers, 1)
	assert.Equal(t, "inst-1", dto.Performers[0].InstructorID)
}

// ══════════════════════════════════════════════════════════════════════════════
// IDENTITY
// ══════════════════════════════════════════════════════════════════════════════

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestBearerTokens(t *testing.T) {
	env := newTestEnv(t, func(c *Config, _ *Dependencies) {
		c.AuthDisabled = false
	})

	valid := signToken(t, testSecret, jwt.MapClaims{
		"sub":  "stu-1",
		"role": "student",
		"iss":  testIssuer,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	expired := signToken(t, testSecret, jwt.MapClaims{
		"sub": "stu-1",
		"iss": testIssuer,
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	forged := signToken(t, "other-secret", jwt.MapClaims{
		"sub": "stu-1",
		"iss": testIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	wrongIssuer := signToken(t, testSecret, jwt.MapClaims{
		"sub": "stu-1",
		"iss": "elsewhere",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		name   string
		header map[string]string
		status int
	}{
		{"valid", map[string]string{"Authorization": "Bearer " + valid}, http.StatusOK},
		{"expired", map[string]string{"Authorization": "Bearer " + expired}, http.StatusUnauthorized},
		{"forged", map[string]string{"Authorization": "Bearer " + forged}, http.StatusUnauthorized},
		{"wrong issuer", map[string]string{"Authorization": "Bearer " + wrongIssuer}, http.StatusUnauthorized},
		{"header is not trusted", asStudent("stu-1"), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := env.do(t, http.MethodGet, "/progress/streak", "", tt.header)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestTokenVerifier_ReadsRole(t *testing.T) {
	v := handlers.NewTokenVerifier(testSecret, "")
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  "inst-7",
		"role": "instructor",
		"exp":  time.Now().Add(time.Minute).Unix(),
	})

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "inst-7", id.UserID)
	assert.Equal(t, "instructor", id.Role)

	noExpiry := signToken(t, testSecret, jwt.MapClaims{"sub": "inst-7"})
	_, err = v.Verify(noExpiry)
	assert.ErrorIs(t, err, handlers.ErrInvalidToken)
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE & HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/live", "", map[string]string{"X-Request-ID": "req-42"})
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-42", body.RequestID)
	assert.Equal(t, apiVersion, body.Meta.Version)

	rec, _ = env.do(t, http.MethodGet, "/live", "", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config, _ *Dependencies) {
		c.RateLimitPerMinute = 2
	})
	defer env.server.rateLimiter.Stop()

	for i := 0; i < 2; i++ {
		rec, _ := env.do(t, http.MethodGet, "/live", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, body := env.do(t, http.MethodGet, "/live", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limit_exceeded", body.Error.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/progress/streak", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealth_OptionalFailureOnlyDegrades(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("database", func(context.Context) error { return nil })
	checker.AddOptionalCheck("cache", func(context.Context) error { return errors.New("redis down") })

	env := newTestEnv(t, func(_ *Config, d *Dependencies) {
		d.HealthChecker = checker
	})

	rec, body := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status handlers.HealthStatus
	decodeData(t, body, &status)
	assert.False(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Equal(t, "redis down", status.Checks["cache"].Message)

	checker.AddCheck("database", func(context.Context) error { return errors.New("no connection") })
	rec, _ = env.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	env := newTestEnv(t, nil)
	env.server.router.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) { panic("kaboom") })

	rec, body := env.do(t, http.MethodGet, "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", body.Error.Code)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("wrapped: %w", shared.ErrEnrollmentConflict), http.StatusConflict, "concurrent_modification"},
		{shared.ErrPlatformUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{shared.ErrPlatformRateLimited, http.StatusServiceUnavailable, "upstream_rate_limited"},
		{context.DeadlineExceeded, http.StatusServiceUnavailable, "service_unavailable"},
		{shared.ErrCourseNotFound, http.StatusNotFound, "course_not_found"},
		{shared.ErrInvalidWindow, http.StatusBadRequest, "invalid_request"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		got := classifyError(tt.err)
		assert.Equal(t, tt.status, got.status, tt.err.Error())
		assert.Equal(t, tt.code, got.code, tt.err.Error())
	}
}
