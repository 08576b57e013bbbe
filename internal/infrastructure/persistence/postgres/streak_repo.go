package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StreakRepository implements streak.Repository for PostgreSQL.
type StreakRepository struct {
	conn *Connection
}

// NewStreakRepository creates a new StreakRepository.
func NewStreakRepository(conn *Connection) *StreakRepository {
	return &StreakRepository{conn: conn}
}

// Get returns the student's streak.
func (r *StreakRepository) Get(ctx context.Context, studentID shared.StudentID) (*streak.Streak, error) {
	query := `
		SELECT student_id, current_streak, best_streak, last_credited_date, updated_at
		FROM learning_streaks
		WHERE student_id = $1
	`

	s, err := scanStreak(r.conn.QueryRow(ctx, query, string(studentID)))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStreakNotFound
		}
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}
	return s, nil
}

// Update locks the student's row (creating it on first use) and persists fn's result.
func (r *StreakRepository) Update(ctx context.Context, studentID shared.StudentID, fn func(s *streak.Streak) error) (*streak.Streak, error) {
	var result *streak.Streak

	err := r.conn.WithRetryTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		seed := `
			INSERT INTO learning_streaks (student_id)
			VALUES ($1)
			ON CONFLICT (student_id) DO NOTHING`
		if _, err := tx.Exec(ctx, seed, string(studentID)); err != nil {
			return fmt.Errorf("failed to seed streak: %w", err)
		}

		lock := `
			SELECT student_id, current_streak, best_streak, last_credited_date, updated_at
			FROM learning_streaks
			WHERE student_id = $1
			FOR UPDATE`
		current, err := scanStreak(tx.QueryRow(ctx, lock, string(studentID)))
		if err != nil {
			return fmt.Errorf("failed to lock streak: %w", err)
		}

		if err := fn(current); err != nil {
			return err
		}

		var lastCredited *time.Time
		if !current.LastCreditedDate.IsZero() {
			day := current.LastCreditedDate.Time()
			lastCredited = &day
		}

		update := `
			UPDATE learning_streaks SET
				current_streak = $1,
				best_streak = $2,
				last_credited_date = $3,
				updated_at = $4
			WHERE student_id = $5`
		if _, err := tx.Exec(ctx, update,
			current.Current,
			current.Best,
			lastCredited,
			current.UpdatedAt,
			string(studentID),
		); err != nil {
			return fmt.Errorf("failed to update streak: %w", err)
		}

		result = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func scanStreak(row pgx.Row) (*streak.Streak, error) {
	var (
		s            streak.Streak
		studentID    string
		lastCredited *time.Time
	)

	if err := row.Scan(&studentID, &s.Current, &s.Best, &lastCredited, &s.UpdatedAt); err != nil {
		return nil, err
	}

	s.StudentID = shared.StudentID(studentID)
	if lastCredited != nil {
		s.LastCreditedDate = shared.DateOf(*lastCredited, time.UTC)
	}

	return &s, nil
}
