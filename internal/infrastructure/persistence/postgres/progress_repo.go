package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/progress"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

const lessonProgressColumns = `
	id, student_id, lesson_id, course_id, status, started_at, completed_at,
	time_spent_minutes, quiz_score, updated_at`

// Get returns the row for (student, lesson).
func (r *ProgressRepository) Get(ctx context.Context, studentID shared.StudentID, lessonID shared.LessonID) (*progress.LessonProgress, error) {
	query := `SELECT ` + lessonProgressColumns + `
		FROM lesson_progress
		WHERE student_id = $1 AND lesson_id = $2`

	lp, err := scanLessonProgress(r.conn.QueryRow(ctx, query, string(studentID), string(lessonID)))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLessonProgressAbsent
		}
		return nil, fmt.Errorf("failed to get lesson progress: %w", err)
	}
	return lp, nil
}

// Upsert locks the (student, lesson) row for the duration of mutate. A missing
// row is inserted first so that concurrent first accesses also serialize on
// the same lock.
func (r *ProgressRepository) Upsert(ctx context.Context, initial *progress.LessonProgress, mutate progress.MutateFunc) (*progress.LessonProgress, error) {
	var result *progress.LessonProgress

	err := r.conn.WithRetryTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		insert := `
			INSERT INTO lesson_progress (` + lessonProgressColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (student_id, lesson_id) DO NOTHING`
		if _, err := tx.Exec(ctx, insert, lessonProgressArgs(initial)...); err != nil {
			return fmt.Errorf("failed to seed lesson progress: %w", err)
		}

		lock := `SELECT ` + lessonProgressColumns + `
			FROM lesson_progress
			WHERE student_id = $1 AND lesson_id = $2
			FOR UPDATE`
		current, err := scanLessonProgress(tx.QueryRow(ctx, lock, string(initial.StudentID), string(initial.LessonID)))
		if err != nil {
			return fmt.Errorf("failed to lock lesson progress: %w", err)
		}

		if err := mutate(current); err != nil {
			return err
		}

		update := `
			UPDATE lesson_progress SET
				status = $1,
				completed_at = $2,
				time_spent_minutes = $3,
				quiz_score = $4,
				updated_at = $5
			WHERE id = $6`
		if _, err := tx.Exec(ctx, update,
			string(current.Status),
			current.CompletedAt,
			current.TimeSpentMinutes,
			current.QuizScore,
			current.UpdatedAt,
			current.ID,
		); err != nil {
			return fmt.Errorf("failed to update lesson progress: %w", err)
		}

		result = current
		return nil
	})
	if err != nil {
		if IsSerializationFailure(err) {
			return nil, shared.WrapError("progress", "Upsert", shared.ErrConcurrentModification, "lesson progress contention", err)
		}
		return nil, err
	}

	return result, nil
}

// ListForLessons returns the student's rows among the given lessons.
func (r *ProgressRepository) ListForLessons(ctx context.Context, studentID shared.StudentID, lessonIDs []shared.LessonID) ([]*progress.LessonProgress, error) {
	if len(lessonIDs) == 0 {
		return []*progress.LessonProgress{}, nil
	}

	query := `SELECT ` + lessonProgressColumns + `
		FROM lesson_progress
		WHERE student_id = $1 AND lesson_id = ANY($2)`

	rows, err := r.conn.Query(ctx, query, string(studentID), lessonIDStrings(lessonIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list lesson progress: %w", err)
	}
	defer rows.Close()

	result := make([]*progress.LessonProgress, 0, len(lessonIDs))
	for rows.Next() {
		lp, err := scanLessonProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lesson progress: %w", err)
		}
		result = append(result, lp)
	}

	return result, rows.Err()
}

// Stats aggregates the student's rows among the given lessons in one query.
func (r *ProgressRepository) Stats(ctx context.Context, studentID shared.StudentID, lessonIDs []shared.LessonID) (progress.Stats, error) {
	var stats progress.Stats
	if len(lessonIDs) == 0 {
		return stats, nil
	}

	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'completed'),
			COALESCE(SUM(time_spent_minutes), 0),
			COALESCE(SUM(quiz_score), 0),
			COUNT(quiz_score)
		FROM lesson_progress
		WHERE student_id = $1 AND lesson_id = ANY($2)`

	err := r.conn.QueryRow(ctx, query, string(studentID), lessonIDStrings(lessonIDs)).Scan(
		&stats.CompletedLessons,
		&stats.TimeSpentMinutes,
		&stats.QuizScoreSum,
		&stats.QuizScoreCount,
	)
	if err != nil {
		return progress.Stats{}, fmt.Errorf("failed to aggregate lesson progress: %w", err)
	}

	return stats, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helper Methods
// ─────────────────────────────────────────────────────────────────────────────

func lessonProgressArgs(lp *progress.LessonProgress) []interface{} {
	return []interface{}{
		lp.ID,
		string(lp.StudentID),
		string(lp.LessonID),
		string(lp.CourseID),
		string(lp.Status),
		lp.StartedAt,
		lp.CompletedAt,
		lp.TimeSpentMinutes,
		lp.QuizScore,
		lp.UpdatedAt,
	}
}

func scanLessonProgress(row pgx.Row) (*progress.LessonProgress, error) {
	var (
		lp                            progress.LessonProgress
		studentID, lessonID, courseID string
		status                        string
		startedAt, updatedAt          time.Time
	)

	err := row.Scan(
		&lp.ID,
		&studentID,
		&lessonID,
		&courseID,
		&status,
		&startedAt,
		&lp.CompletedAt,
		&lp.TimeSpentMinutes,
		&lp.QuizScore,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	lp.StudentID = shared.StudentID(studentID)
	lp.LessonID = shared.LessonID(lessonID)
	lp.CourseID = shared.CourseID(courseID)
	lp.Status = progress.Status(status)
	lp.StartedAt = startedAt
	lp.UpdatedAt = updatedAt

	return &lp, nil
}

func lessonIDStrings(ids []shared.LessonID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
