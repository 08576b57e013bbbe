package progress

import (
	"context"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// MutateFunc changes a row inside the repository's critical section.
type MutateFunc func(lp *LessonProgress) error

// Repository stores LessonProgress rows.
type Repository interface {
	// Get returns the row for (student, lesson).
	// Returns ErrLessonProgressAbsent if the lesson was never accessed.
	Get(ctx context.Context, studentID shared.StudentID, lessonID shared.LessonID) (*LessonProgress, error)

	// Upsert runs mutate on the existing row, or on initial when none exists,
	// and persists the result. Calls for the same (student, lesson) are
	// serialized, so mutate always sees the latest committed state.
	Upsert(ctx context.Context, initial *LessonProgress, mutate MutateFunc) (*LessonProgress, error)

	// ListForLessons returns the student's rows among the given lessons.
	ListForLessons(ctx context.Context, studentID shared.StudentID, lessonIDs []shared.LessonID) ([]*LessonProgress, error)

	// Stats aggregates the student's rows among the given lessons.
	Stats(ctx context.Context, studentID shared.StudentID, lessonIDs []shared.LessonID) (Stats, error)
}
