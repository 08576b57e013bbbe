// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/catalog"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/certificate"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/enrollment"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/progress"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COURSE PROGRESS QUERY
// Returns a student's enrollment snapshot in one course together with the
// state of every lesson, for dashboards and the course player.
// ══════════════════════════════════════════════════════════════════════════════

// GetCourseProgressQuery contains the query parameters.
type GetCourseProgressQuery struct {
	// StudentID - the authenticated learner.
	StudentID string

	// CourseID - the course.
	CourseID string

	// IncludeLessons - include per-lesson rows (default true at the HTTP layer).
	IncludeLessons bool
}

// Validate validates the query.
func (q *GetCourseProgressQuery) Validate() error {
	if _, err := shared.NewStudentID(q.StudentID); err != nil {
		return err
	}
	if _, err := shared.NewCourseID(q.CourseID); err != nil {
		return err
	}
	return nil
}

// CourseProgressDTO is the enrollment snapshot.
type CourseProgressDTO struct {
	// ─────────────────────────────────────────────────────────────────────────
	// Identity
	// ─────────────────────────────────────────────────────────────────────────

	// EnrollmentID - empty while the enrollment exists only upstream.
	EnrollmentID string `json:"enrollment_id,omitempty"`

	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id"`

	// ─────────────────────────────────────────────────────────────────────────
	// Progress
	// ─────────────────────────────────────────────────────────────────────────

	// Status - not_started, in_progress or completed.
	Status string `json:"status"`

	// StatusCode - 0, 1 or 2 for legacy clients.
	StatusCode int `json:"status_code"`

	// ProgressPercentage - two decimal places, e.g. "33.33".
	ProgressPercentage string `json:"progress_percentage"`

	CompletedLessons int `json:"completed_lessons"`
	TotalLessons     int `json:"total_lessons"`

	// TimeSpentMinutes - sum over the course's lessons.
	TimeSpentMinutes int `json:"time_spent_minutes"`

	// AverageQuizScore - rounded to 2 places, absent without scores.
	AverageQuizScore *float64 `json:"average_quiz_score,omitempty"`

	EnrolledAt     time.Time  `json:"enrolled_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`

	// ─────────────────────────────────────────────────────────────────────────
	// Certificate
	// ─────────────────────────────────────────────────────────────────────────

	Certificate *CertificateDTO `json:"certificate,omitempty"`

	// ─────────────────────────────────────────────────────────────────────────
	// Lessons
	// ─────────────────────────────────────────────────────────────────────────

	Lessons []LessonProgressDTO `json:"lessons,omitempty"`
}

// CertificateDTO describes an issued certificate.
type CertificateDTO struct {
	Reference string    `json:"reference"`
	URL       string    `json:"url,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
}

// LessonProgressDTO is one lesson in course order.
type LessonProgressDTO struct {
	LessonID         string     `json:"lesson_id"`
	Status           string     `json:"status"`
	StatusCode       int        `json:"status_code"`
	TimeSpentMinutes int        `json:"time_spent_minutes"`
	QuizScore        *float64   `json:"quiz_score,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetCourseProgressHandler handles GetCourseProgressQuery.
type GetCourseProgressHandler struct {
	enrollments enrollment.Repository
	progress    progress.Repository
	catalog     catalog.Service
	generator   *certificate.Generator
	clock       timeutil.Clock
}

// NewGetCourseProgressHandler creates a new GetCourseProgressHandler.
func NewGetCourseProgressHandler(
	enrollments enrollment.Repository,
	progressRepo progress.Repository,
	cat catalog.Service,
	generator *certificate.Generator,
	clock timeutil.Clock,
) *GetCourseProgressHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &GetCourseProgressHandler{
		enrollments: enrollments,
		progress:    progressRepo,
		catalog:     cat,
		generator:   generator,
		clock:       clock,
	}
}

// Handle executes the query.
func (h *GetCourseProgressHandler) Handle(ctx context.Context, q GetCourseProgressQuery) (*CourseProgressDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_course_progress: validation failed: %w", err)
	}

	studentID := shared.StudentID(q.StudentID)
	courseID := shared.CourseID(q.CourseID)

	e, err := h.enrollments.GetByStudentCourse(ctx, studentID, courseID)
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrEnrollmentNotFound):
		// Enrolled upstream but nothing completed yet: report a fresh snapshot.
		enrolled, err := h.catalog.IsEnrolled(ctx, studentID, courseID)
		if err != nil {
			return nil, fmt.Errorf("get_course_progress: failed to check enrollment: %w", err)
		}
		if !enrolled {
			return nil, fmt.Errorf("get_course_progress: %w", shared.ErrEnrollmentNotFound)
		}
		e = nil
	default:
		return nil, fmt.Errorf("get_course_progress: failed to load enrollment: %w", err)
	}

	var course *catalog.Course
	if e == nil || q.IncludeLessons {
		course, err = h.catalog.Course(ctx, courseID)
		if err != nil {
			return nil, fmt.Errorf("get_course_progress: %w", err)
		}
	}
	if e == nil {
		e = enrollment.NewEnrollment(studentID, courseID, course.TotalLessons(), h.clock.Now())
		e.ID = ""
	}

	dto := PresentEnrollment(e, h.generator)

	if q.IncludeLessons {
		lessons, err := h.lessons(ctx, studentID, course)
		if err != nil {
			return nil, err
		}
		dto.Lessons = lessons
	}

	return dto, nil
}

func (h *GetCourseProgressHandler) lessons(ctx context.Context, studentID shared.StudentID, course *catalog.Course) ([]LessonProgressDTO, error) {
	ids := course.LessonIDs()
	rows, err := h.progress.ListForLessons(ctx, studentID, ids)
	if err != nil {
		return nil, fmt.Errorf("get_course_progress: failed to load lessons: %w", err)
	}

	byLesson := make(map[shared.LessonID]*progress.LessonProgress, len(rows))
	for _, lp := range rows {
		byLesson[lp.LessonID] = lp
	}

	result := make([]LessonProgressDTO, 0, len(ids))
	for _, id := range ids {
		lp, ok := byLesson[id]
		if !ok {
			result = append(result, LessonProgressDTO{
				LessonID:   string(id),
				Status:     string(progress.StatusNotStarted),
				StatusCode: progress.StatusNotStarted.Code(),
			})
			continue
		}
		result = append(result, PresentLesson(lp))
	}
	return result, nil
}
