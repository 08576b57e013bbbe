package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/enrollment"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentRepository implements enrollment.Repository for PostgreSQL.
type EnrollmentRepository struct {
	conn *Connection
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(conn *Connection) *EnrollmentRepository {
	return &EnrollmentRepository{conn: conn}
}

const enrollmentColumns = `
	id, student_id, course_id, enrolled_at, completed_at, progress_percentage::text,
	completed_lessons, total_lessons, time_spent_minutes, average_quiz_score,
	certificate_issued, certificate_ref, certificate_issued_at, last_accessed_at, version`

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts a new enrollment at version 1.
func (r *EnrollmentRepository) Create(ctx context.Context, e *enrollment.Enrollment) error {
	query := `
		INSERT INTO enrollments (
			id, student_id, course_id, enrolled_at, completed_at, progress_percentage,
			completed_lessons, total_lessons, time_spent_minutes, average_quiz_score,
			last_accessed_at, version
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11, 1)
	`

	_, err := r.conn.Exec(ctx, query,
		string(e.ID),
		string(e.StudentID),
		string(e.CourseID),
		e.EnrolledAt,
		e.CompletedAt,
		e.ProgressPercentage.StringFixed(enrollment.PercentagePrecision),
		e.CompletedLessons,
		e.TotalLessons,
		e.TimeSpentMinutes,
		e.AverageQuizScore,
		e.LastAccessedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrEnrollmentExists
		}
		return fmt.Errorf("failed to create enrollment: %w", err)
	}

	e.Version = 1
	return nil
}

// GetByID returns an enrollment by ID.
func (r *EnrollmentRepository) GetByID(ctx context.Context, id shared.EnrollmentID) (*enrollment.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	return r.getOne(ctx, query, string(id))
}

// GetByStudentCourse returns the enrollment for (student, course).
func (r *EnrollmentRepository) GetByStudentCourse(ctx context.Context, studentID shared.StudentID, courseID shared.CourseID) (*enrollment.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 AND course_id = $2`
	return r.getOne(ctx, query, string(studentID), string(courseID))
}

// Update writes aggregate fields when the stored version matches. Certificate
// columns are left alone.
func (r *EnrollmentRepository) Update(ctx context.Context, e *enrollment.Enrollment) error {
	query := `
		UPDATE enrollments SET
			completed_at = $1,
			progress_percentage = $2::numeric,
			completed_lessons = $3,
			total_lessons = $4,
			time_spent_minutes = $5,
			average_quiz_score = $6,
			last_accessed_at = $7,
			version = version + 1
		WHERE id = $8 AND version = $9
	`

	result, err := r.conn.Exec(ctx, query,
		e.CompletedAt,
		e.ProgressPercentage.StringFixed(enrollment.PercentagePrecision),
		e.CompletedLessons,
		e.TotalLessons,
		e.TimeSpentMinutes,
		e.AverageQuizScore,
		e.LastAccessedAt,
		string(e.ID),
		e.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update enrollment: %w", err)
	}

	if result.RowsAffected() == 0 {
		exists, err := r.exists(ctx, e.ID)
		if err != nil {
			return err
		}
		if !exists {
			return shared.ErrEnrollmentNotFound
		}
		return shared.ErrEnrollmentConflict
	}

	e.Version++
	return nil
}

// SetCertificate is a conditional UPDATE: exactly one caller can flip
// certificate_issued on a completed enrollment.
func (r *EnrollmentRepository) SetCertificate(ctx context.Context, id shared.EnrollmentID, ref string, issuedAt time.Time) (bool, error) {
	query := `
		UPDATE enrollments SET
			certificate_issued = TRUE,
			certificate_ref = $2,
			certificate_issued_at = $3,
			version = version + 1
		WHERE id = $1
		  AND completed_at IS NOT NULL
		  AND certificate_issued = FALSE
	`

	result, err := r.conn.Exec(ctx, query, string(id), ref, issuedAt)
	if err != nil {
		return false, fmt.Errorf("failed to set certificate: %w", err)
	}

	if result.RowsAffected() == 1 {
		return true, nil
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, shared.ErrEnrollmentNotFound
	}
	return false, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Worker Queries
// ─────────────────────────────────────────────────────────────────────────────

// ListCompletedWithoutCertificate returns completed enrollments missing a certificate.
func (r *EnrollmentRepository) ListCompletedWithoutCertificate(ctx context.Context, limit int) ([]*enrollment.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE completed_at IS NOT NULL AND certificate_issued = FALSE
		ORDER BY completed_at ASC
		LIMIT $1`
	return r.list(ctx, query, listLimit(limit))
}

// ListActiveSince returns incomplete enrollments accessed at or after since.
func (r *EnrollmentRepository) ListActiveSince(ctx context.Context, since time.Time, limit int) ([]*enrollment.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE completed_at IS NULL AND last_accessed_at >= $1
		ORDER BY last_accessed_at ASC
		LIMIT $2`
	return r.list(ctx, query, since, listLimit(limit))
}

// ─────────────────────────────────────────────────────────────────────────────
// Helper Methods
// ─────────────────────────────────────────────────────────────────────────────

func (r *EnrollmentRepository) exists(ctx context.Context, id shared.EnrollmentID) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM enrollments WHERE id = $1)`, string(id)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return exists, nil
}

func (r *EnrollmentRepository) getOne(ctx context.Context, query string, args ...interface{}) (*enrollment.Enrollment, error) {
	e, err := scanEnrollment(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return e, nil
}

func (r *EnrollmentRepository) list(ctx context.Context, query string, args ...interface{}) ([]*enrollment.Enrollment, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	result := make([]*enrollment.Enrollment, 0)
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		result = append(result, e)
	}

	return result, rows.Err()
}

func scanEnrollment(row pgx.Row) (*enrollment.Enrollment, error) {
	var (
		e                            enrollment.Enrollment
		id, studentID, courseID, pct string
	)

	err := row.Scan(
		&id,
		&studentID,
		&courseID,
		&e.EnrolledAt,
		&e.CompletedAt,
		&pct,
		&e.CompletedLessons,
		&e.TotalLessons,
		&e.TimeSpentMinutes,
		&e.AverageQuizScore,
		&e.CertificateIssued,
		&e.CertificateRef,
		&e.CertificateIssuedAt,
		&e.LastAccessedAt,
		&e.Version,
	)
	if err != nil {
		return nil, err
	}

	percentage, err := decimal.NewFromString(pct)
	if err != nil {
		return nil, fmt.Errorf("invalid progress percentage %q: %w", pct, err)
	}

	e.ID = shared.EnrollmentID(id)
	e.StudentID = shared.StudentID(studentID)
	e.CourseID = shared.CourseID(courseID)
	e.ProgressPercentage = percentage

	return &e, nil
}

// listLimit bounds worker batch sizes.
func listLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 1000
	}
	return limit
}
