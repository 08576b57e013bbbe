// Package analytics computes read-side rollups over enrollment, payment and
// review facts: per-instructor summaries, monthly time series and the
// top-performer ranking. Everything here is a pure function over facts handed
// in by the source contracts below.
package analytics

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTS
// ══════════════════════════════════════════════════════════════════════════════

// Payment is a completed payment as reported by the payment service.
type Payment struct {
	ID           string
	CourseID     shared.CourseID
	InstructorID shared.InstructorID
	StudentID    shared.StudentID
	Amount       decimal.Decimal
	CompletedAt  time.Time
}

// EnrollmentFact is the analytics view of one enrollment.
type EnrollmentFact struct {
	StudentID    shared.StudentID
	CourseID     shared.CourseID
	InstructorID shared.InstructorID
	EnrolledAt   time.Time
	Completed    bool
}

// Rating is one review score (1..5) on a course.
type Rating struct {
	CourseID shared.CourseID
	Value    int
}

// PerformerStats is the ranking input for one instructor.
type PerformerStats struct {
	InstructorID shared.InstructorID `json:"instructor_id"`
	Name         string              `json:"name,omitempty"`
	Revenue      decimal.Decimal     `json:"revenue"`
	Students     int                 `json:"students"`
}

// Filter narrows fact queries. Zero values mean unbounded.
type Filter struct {
	InstructorID shared.InstructorID
	Range        shared.TimeRange
}

// ══════════════════════════════════════════════════════════════════════════════
// SOURCES (read-only collaborators)
// ══════════════════════════════════════════════════════════════════════════════

// PaymentLedger supplies completed payments. The core never mutates payments.
type PaymentLedger interface {
	CompletedPayments(ctx context.Context, f Filter) ([]Payment, error)
}

// ReviewSource supplies ratings for an instructor's courses.
type ReviewSource interface {
	Ratings(ctx context.Context, instructorID shared.InstructorID) ([]Rating, error)
}

// EnrollmentFacts supplies enrollments for analytics.
type EnrollmentFacts interface {
	Enrollments(ctx context.Context, f Filter) ([]EnrollmentFact, error)
}

// UserDirectory supplies sign-up timestamps of new users.
type UserDirectory interface {
	SignUps(ctx context.Context, r shared.TimeRange) ([]time.Time, error)
}

// PerformanceSource supplies per-instructor revenue and distinct-student
// totals across the platform.
type PerformanceSource interface {
	PerformerStats(ctx context.Context) ([]PerformerStats, error)
}

// Sources bundles every collaborator the rollups read from.
type Sources struct {
	Payments    PaymentLedger
	Reviews     ReviewSource
	Enrollments EnrollmentFacts
	Users       UserDirectory
	Performance PerformanceSource
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE
// ══════════════════════════════════════════════════════════════════════════════

// Cache stores computed views. A miss returns (nil, nil); callers treat any
// cache error as a miss.
type Cache interface {
	GetSummary(ctx context.Context, instructorID shared.InstructorID) (*Summary, error)
	SetSummary(ctx context.Context, s *Summary) error
	GetTopPerformers(ctx context.Context, limit int) ([]RankedPerformer, error)
	SetTopPerformers(ctx context.Context, limit int, ranked []RankedPerformer) error
	InvalidateInstructor(ctx context.Context, instructorID shared.InstructorID) error
	InvalidateRankings(ctx context.Context) error
}
