package enrollment

import (
	"context"
	"time"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Repository stores enrollments.
type Repository interface {
	// Create inserts a new enrollment.
	// Returns ErrEnrollmentExists if (student, course) is already enrolled.
	Create(ctx context.Context, e *Enrollment) error

	// GetByID returns ErrEnrollmentNotFound when absent.
	GetByID(ctx context.Context, id shared.EnrollmentID) (*Enrollment, error)

	// GetByStudentCourse returns ErrEnrollmentNotFound when absent.
	GetByStudentCourse(ctx context.Context, studentID shared.StudentID, courseID shared.CourseID) (*Enrollment, error)

	// Update persists aggregate fields if the stored version still equals
	// e.Version, then bumps e.Version. A stale version yields
	// ErrEnrollmentConflict. Certificate fields are never written here.
	Update(ctx context.Context, e *Enrollment) error

	// SetCertificate atomically attaches a certificate when the enrollment is
	// completed and has none. It reports whether this call attached it.
	SetCertificate(ctx context.Context, id shared.EnrollmentID, ref string, issuedAt time.Time) (bool, error)

	// ListCompletedWithoutCertificate returns completed enrollments still
	// missing a certificate, oldest completion first.
	ListCompletedWithoutCertificate(ctx context.Context, limit int) ([]*Enrollment, error)

	// ListActiveSince returns incomplete enrollments accessed at or after since.
	ListActiveSince(ctx context.Context, since time.Time, limit int) ([]*Enrollment, error)
}
