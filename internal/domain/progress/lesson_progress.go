// Package progress models one student's state on one lesson.
package progress

import (
	"time"

	"github.com/google/uuid"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// LessonProgress is keyed by (StudentID, LessonID). Rows are never deleted.
type LessonProgress struct {
	// ID - surrogate identifier.
	ID string

	// StudentID - the learner.
	StudentID shared.StudentID

	// LessonID - the lesson.
	LessonID shared.LessonID

	// CourseID - course owning the lesson at the time of first access.
	CourseID shared.CourseID

	// Status - monotonic: never moves backward.
	Status Status

	// StartedAt - first access.
	StartedAt time.Time

	// CompletedAt - set only when Status is completed.
	CompletedAt *time.Time

	// TimeSpentMinutes - accumulated time on the lesson.
	TimeSpentMinutes int

	// QuizScore - latest quiz score in [0, 100], if any.
	QuizScore *float64

	// UpdatedAt - last mutation.
	UpdatedAt time.Time
}

// NewLessonProgress creates the row for a first access.
func NewLessonProgress(studentID shared.StudentID, lessonID shared.LessonID, courseID shared.CourseID, now time.Time) *LessonProgress {
	return &LessonProgress{
		ID:        uuid.NewString(),
		StudentID: studentID,
		LessonID:  lessonID,
		CourseID:  courseID,
		Status:    StatusNotStarted,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// IsCompleted reports whether the lesson counts toward the enrollment.
func (lp *LessonProgress) IsCompleted() bool {
	return lp.Status.IsCompleted()
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE
// ══════════════════════════════════════════════════════════════════════════════

// Update is one progress submission.
type Update struct {
	Status         Status
	TimeSpentDelta int
	QuizScore      *float64
}

// Validate checks the submission before it touches storage.
func (u Update) Validate() error {
	if !u.Status.IsValid() {
		return shared.ErrInvalidStatus
	}
	if u.TimeSpentDelta < 0 {
		return shared.ErrNegativeTimeSpent
	}
	if u.QuizScore != nil && (*u.QuizScore < 0 || *u.QuizScore > 100) {
		return shared.ErrInvalidQuizScore
	}
	return nil
}

// Apply merges an update into the row and reports whether this call performed
// the not-completed to completed transition. Re-submitting completed on a
// completed row is idempotent; lower statuses never regress the row, but time
// and quiz score are still applied.
func (lp *LessonProgress) Apply(u Update, now time.Time) (justCompleted bool) {
	lp.TimeSpentMinutes += u.TimeSpentDelta
	if u.QuizScore != nil {
		score := *u.QuizScore
		lp.QuizScore = &score
	}

	if lp.Status.Advances(u.Status) {
		lp.Status = u.Status
		if u.Status.IsCompleted() {
			completedAt := now
			lp.CompletedAt = &completedAt
			justCompleted = true
		}
	}

	lp.UpdatedAt = now
	return justCompleted
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS
// ══════════════════════════════════════════════════════════════════════════════

// Stats summarizes a student's rows over a set of lessons.
type Stats struct {
	// CompletedLessons - distinct completed lessons.
	CompletedLessons int

	// TimeSpentMinutes - sum over all rows.
	TimeSpentMinutes int

	// QuizScoreSum / QuizScoreCount - over rows that carry a score.
	QuizScoreSum   float64
	QuizScoreCount int
}

// AverageQuizScore returns the unrounded mean, or nil without scores.
func (s Stats) AverageQuizScore() *float64 {
	if s.QuizScoreCount == 0 {
		return nil
	}
	avg := s.QuizScoreSum / float64(s.QuizScoreCount)
	return &avg
}

// Add folds a row into the stats.
func (s *Stats) Add(lp *LessonProgress) {
	if lp.IsCompleted() {
		s.CompletedLessons++
	}
	s.TimeSpentMinutes += lp.TimeSpentMinutes
	if lp.QuizScore != nil {
		s.QuizScoreSum += *lp.QuizScore
		s.QuizScoreCount++
	}
}
