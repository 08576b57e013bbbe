package http

import (
	"net/http"
	"sort"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/application/command"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/application/query"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/enrollment"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/interface/http/handlers"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"name":    "progress-engine",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":         "/health",
			"record":         "POST /progress/lessons/{lessonId}",
			"course":         "/progress/courses/{courseId}",
			"streak":         "/progress/streak",
			"instructor":     "/analytics/instructors/{instructorId}",
			"top_performers": "/analytics/platform/top-performers",
			"monthly":        "/analytics/{scope}/monthly",
		},
	})
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": status.Message,
		})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics reports component snapshots as JSON.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.deps.Metrics))
	for name := range s.deps.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}
	for _, name := range names {
		metrics[name] = s.deps.Metrics[name]()
	}
	writeJSON(w, r, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// RecordProgressResponse is returned by POST /progress/lessons/{lessonId}.
type RecordProgressResponse struct {
	Lesson query.LessonProgressDTO `json:"lesson"`

	// JustCompleted - this call completed the lesson.
	JustCompleted bool `json:"just_completed"`

	// Enrollment - recomputed snapshot, absent when nothing was recomputed.
	Enrollment *query.CourseProgressDTO `json:"enrollment,omitempty"`

	// Streak - after crediting, absent when crediting is off.
	Streak *query.StreakDTO `json:"streak,omitempty"`
}

// handleRecordProgress handles POST /progress/lessons/{lessonId}
func (s *Server) handleRecordProgress(w http.ResponseWriter, r *http.Request) {
	const op = "record_progress"

	id, ok := handlers.IdentityFrom(r.Context())
	if !ok {
		s.unauthorized(w, r, handlers.ErrMissingToken)
		return
	}

	var req RecordProgressRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, op, err)
		return
	}

	cmd := command.RecordProgressCommand{
		StudentID:      id.UserID,
		LessonID:       r.PathValue("lessonId"),
		Status:         string(req.Status),
		TimeSpentDelta: req.TimeSpentDelta,
		QuizScore:      req.QuizScore,
		CorrelationID:  getRequestID(r.Context()),
	}

	result, err := s.deps.RecordProgress.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}

	resp := RecordProgressResponse{
		Lesson:        query.PresentLesson(result.LessonProgress),
		JustCompleted: result.JustCompleted,
	}
	if result.Enrollment != nil {
		resp.Enrollment = query.PresentEnrollment(result.Enrollment, s.deps.Certificates)
	}
	if result.Streak != nil {
		resp.Streak = query.PresentStreak(result.Streak, shared.DateOf(s.deps.Clock.Now(), timeutil.Location()))
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleGetCourseProgress handles GET /progress/courses/{courseId}
func (s *Server) handleGetCourseProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := handlers.IdentityFrom(r.Context())
	if !ok {
		s.unauthorized(w, r, handlers.ErrMissingToken)
		return
	}

	dto, err := s.deps.CourseProgress.Handle(r.Context(), query.GetCourseProgressQuery{
		StudentID:      id.UserID,
		CourseID:       r.PathValue("courseId"),
		IncludeLessons: queryBool(r, "lessons", true),
	})
	if err != nil {
		s.writeError(w, r, "get_course_progress", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// handleGetStreak handles GET /progress/streak
func (s *Server) handleGetStreak(w http.ResponseWriter, r *http.Request) {
	id, ok := handlers.IdentityFrom(r.Context())
	if !ok {
		s.unauthorized(w, r, handlers.ErrMissingToken)
		return
	}

	dto, err := s.deps.Streak.Handle(r.Context(), query.GetStreakQuery{StudentID: id.UserID})
	if err != nil {
		s.writeError(w, r, "get_streak", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// RecomputeResponse is returned by the operational recompute endpoint.
type RecomputeResponse struct {
	Enrollment *query.CourseProgressDTO `json:"enrollment"`

	// Changed - the percentage or state moved.
	Changed bool `json:"changed"`

	// BecameCompleted - this recompute completed the enrollment.
	BecameCompleted bool `json:"became_completed"`

	PreviousPercentage string `json:"previous_percentage"`
}

// handleRecompute handles POST /progress/enrollments/{enrollmentId}/recompute
func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	const op = "recompute_enrollment"

	raw := r.PathValue("enrollmentId")
	if _, err := shared.NewEnrollmentID(raw); err != nil {
		s.writeError(w, r, op, err)
		return
	}

	result, err := s.deps.Aggregator.Recompute(r.Context(), shared.EnrollmentID(raw))
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}

	writeJSON(w, r, http.StatusOK, RecomputeResponse{
		Enrollment:         query.PresentEnrollment(result.Enrollment, s.deps.Certificates),
		Changed:            result.Transition.Changed,
		BecameCompleted:    result.Transition.BecameCompleted,
		PreviousPercentage: result.Transition.OldPercentage.StringFixed(enrollment.PercentagePrecision),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleAnalyticsResource handles GET /analytics/{segment}/{leaf}, which is
// either an instructor summary or a monthly series.
func (s *Server) handleAnalyticsResource(w http.ResponseWriter, r *http.Request) {
	segment, leaf := r.PathValue("segment"), r.PathValue("leaf")
	switch {
	case segment == "instructors":
		s.getInstructorSummary(w, r, leaf)
	case leaf == "monthly":
		s.getMonthlySeries(w, r, segment)
	default:
		writeJSONError(w, r, http.StatusNotFound, "not_found", "unknown analytics resource", nil)
	}
}

// getInstructorSummary serves GET /analytics/instructors/{instructorId}
func (s *Server) getInstructorSummary(w http.ResponseWriter, r *http.Request, instructorID string) {
	dto, err := s.deps.InstructorSummary.Handle(r.Context(), query.GetInstructorSummaryQuery{
		InstructorID: instructorID,
		SkipCache:    queryBool(r, "fresh", false),
	})
	if err != nil {
		s.writeError(w, r, "get_instructor_summary", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// getMonthlySeries serves GET /analytics/{scope}/monthly?window=N[&fill=zero]
func (s *Server) getMonthlySeries(w http.ResponseWriter, r *http.Request, scope string) {
	window, err := queryInt(r, "window")
	if err != nil {
		s.writeError(w, r, "get_monthly_series", err)
		return
	}

	dto, err := s.deps.MonthlySeries.Handle(r.Context(), query.GetMonthlySeriesQuery{
		Scope:        scope,
		Window:       window,
		Fill:         r.URL.Query().Get("fill"),
		InstructorID: r.URL.Query().Get("instructorId"),
	})
	if err != nil {
		s.writeError(w, r, "get_monthly_series", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// handleGetTopPerformers handles GET /analytics/platform/top-performers?limit=N
func (s *Server) handleGetTopPerformers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, "get_top_performers", err)
		return
	}

	dto, err := s.deps.TopPerformers.Handle(r.Context(), query.GetTopPerformersQuery{
		Limit:     limit,
		SkipCache: queryBool(r, "fresh", false),
	})
	if err != nil {
		s.writeError(w, r, "get_top_performers", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}
