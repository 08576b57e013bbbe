package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/analytics"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS REPOSITORY
// Read-only fact queries over payments, reviews, memberships and users.
// ══════════════════════════════════════════════════════════════════════════════

// AnalyticsRepository implements every analytics source for PostgreSQL.
type AnalyticsRepository struct {
	conn *Connection
}

// NewAnalyticsRepository creates a new AnalyticsRepository.
func NewAnalyticsRepository(conn *Connection) *AnalyticsRepository {
	return &AnalyticsRepository{conn: conn}
}

// Sources returns the repository as analytics sources.
func (r *AnalyticsRepository) Sources() analytics.Sources {
	return analytics.Sources{
		Payments:    r,
		Reviews:     r,
		Enrollments: r,
		Users:       r,
		Performance: r,
	}
}

// CompletedPayments implements analytics.PaymentLedger.
func (r *AnalyticsRepository) CompletedPayments(ctx context.Context, f analytics.Filter) ([]analytics.Payment, error) {
	from, to := rangeArgs(f.Range)
	query := `
		SELECT p.id, p.course_id, c.instructor_id, p.student_id, p.amount::text, p.completed_at
		FROM payments p
		JOIN courses c ON c.id = p.course_id
		WHERE p.status = 'completed'
		  AND p.completed_at IS NOT NULL
		  AND ($1 = '' OR c.instructor_id = $1)
		  AND ($2::timestamptz IS NULL OR p.completed_at >= $2)
		  AND ($3::timestamptz IS NULL OR p.completed_at < $3)
		ORDER BY p.completed_at
	`

	rows, err := r.conn.Query(ctx, query, string(f.InstructorID), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	result := make([]analytics.Payment, 0)
	for rows.Next() {
		var (
			p                                 analytics.Payment
			courseID, instructorID, studentID string
			amount                            string
		)
		if err := rows.Scan(&p.ID, &courseID, &instructorID, &studentID, &amount, &p.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid payment amount %q: %w", amount, err)
		}
		p.CourseID = shared.CourseID(courseID)
		p.InstructorID = shared.InstructorID(instructorID)
		p.StudentID = shared.StudentID(studentID)
		result = append(result, p)
	}

	return result, rows.Err()
}

// Ratings implements analytics.ReviewSource.
func (r *AnalyticsRepository) Ratings(ctx context.Context, instructorID shared.InstructorID) ([]analytics.Rating, error) {
	query := `
		SELECT rv.course_id, rv.rating
		FROM reviews rv
		JOIN courses c ON c.id = rv.course_id
		WHERE c.instructor_id = $1
	`

	rows, err := r.conn.Query(ctx, query, string(instructorID))
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	result := make([]analytics.Rating, 0)
	for rows.Next() {
		var courseID string
		var rating analytics.Rating
		if err := rows.Scan(&courseID, &rating.Value); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		rating.CourseID = shared.CourseID(courseID)
		result = append(result, rating)
	}

	return result, rows.Err()
}

// Enrollments implements analytics.EnrollmentFacts. Completion comes from
// the engine's own enrollment aggregates.
func (r *AnalyticsRepository) Enrollments(ctx context.Context, f analytics.Filter) ([]analytics.EnrollmentFact, error) {
	from, to := rangeArgs(f.Range)
	query := `
		SELECT ce.student_id, ce.course_id, c.instructor_id, ce.enrolled_at,
		       (e.completed_at IS NOT NULL) AS completed
		FROM course_enrollments ce
		JOIN courses c ON c.id = ce.course_id
		LEFT JOIN enrollments e ON e.student_id = ce.student_id AND e.course_id = ce.course_id
		WHERE ($1 = '' OR c.instructor_id = $1)
		  AND ($2::timestamptz IS NULL OR ce.enrolled_at >= $2)
		  AND ($3::timestamptz IS NULL OR ce.enrolled_at < $3)
		ORDER BY ce.enrolled_at
	`

	rows, err := r.conn.Query(ctx, query, string(f.InstructorID), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments: %w", err)
	}
	defer rows.Close()

	result := make([]analytics.EnrollmentFact, 0)
	for rows.Next() {
		var fact analytics.EnrollmentFact
		var studentID, courseID, instructorID string
		if err := rows.Scan(&studentID, &courseID, &instructorID, &fact.EnrolledAt, &fact.Completed); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment fact: %w", err)
		}
		fact.StudentID = shared.StudentID(studentID)
		fact.CourseID = shared.CourseID(courseID)
		fact.InstructorID = shared.InstructorID(instructorID)
		result = append(result, fact)
	}

	return result, rows.Err()
}

// SignUps implements analytics.UserDirectory.
func (r *AnalyticsRepository) SignUps(ctx context.Context, tr shared.TimeRange) ([]time.Time, error) {
	from, to := rangeArgs(tr)
	query := `
		SELECT created_at
		FROM users
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at
	`

	rows, err := r.conn.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query sign-ups: %w", err)
	}
	defer rows.Close()

	result := make([]time.Time, 0)
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, fmt.Errorf("failed to scan sign-up: %w", err)
		}
		result = append(result, at)
	}

	return result, rows.Err()
}

// PerformerStats implements analytics.PerformanceSource. Every instructor is
// listed, including those without revenue or students.
func (r *AnalyticsRepository) PerformerStats(ctx context.Context) ([]analytics.PerformerStats, error) {
	query := `
		WITH instructors AS (
			SELECT id, full_name FROM users WHERE role = 'instructor'
			UNION
			SELECT u.id, u.full_name FROM users u JOIN courses c ON c.instructor_id = u.id
		),
		revenue AS (
			SELECT c.instructor_id, SUM(p.amount) AS total
			FROM payments p
			JOIN courses c ON c.id = p.course_id
			WHERE p.status = 'completed'
			GROUP BY c.instructor_id
		),
		students AS (
			SELECT c.instructor_id, COUNT(DISTINCT ce.student_id) AS total
			FROM course_enrollments ce
			JOIN courses c ON c.id = ce.course_id
			GROUP BY c.instructor_id
		)
		SELECT i.id, i.full_name, COALESCE(rv.total, 0)::text, COALESCE(st.total, 0)
		FROM instructors i
		LEFT JOIN revenue rv ON rv.instructor_id = i.id
		LEFT JOIN students st ON st.instructor_id = i.id
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query performer stats: %w", err)
	}
	defer rows.Close()

	result := make([]analytics.PerformerStats, 0)
	for rows.Next() {
		var (
			stats        analytics.PerformerStats
			instructorID string
			revenue      string
		)
		if err := rows.Scan(&instructorID, &stats.Name, &revenue, &stats.Students); err != nil {
			return nil, fmt.Errorf("failed to scan performer stats: %w", err)
		}
		if stats.Revenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, fmt.Errorf("invalid revenue %q: %w", revenue, err)
		}
		stats.InstructorID = shared.InstructorID(instructorID)
		result = append(result, stats)
	}

	return result, rows.Err()
}

// rangeArgs maps an unbounded range to NULL parameters.
func rangeArgs(tr shared.TimeRange) (from, to *time.Time) {
	if !tr.IsValid() {
		return nil, nil
	}
	f, t := tr.From, tr.To
	return &f, &t
}
