// Package enrollment owns the per-(student, course) progress aggregate.
// Only the aggregator and the certificate issuer mutate an Enrollment; the
// percentage is always derived from lesson progress, never authored.
package enrollment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE
// ══════════════════════════════════════════════════════════════════════════════

// State is derived from the enrollment's counters.
type State string

const (
	// StateNotStarted - no lesson completed yet.
	StateNotStarted State = "not_started"
	// StateInProgress - at least one lesson completed, course not finished.
	StateInProgress State = "in_progress"
	// StateCompleted - terminal.
	StateCompleted State = "completed"
)

// stateCodes is the stable numeric mapping for legacy clients.
var stateCodes = map[State]int{
	StateNotStarted: 0,
	StateInProgress: 1,
	StateCompleted:  2,
}

// Code returns the stable numeric code, or -1 for an unknown state.
func (s State) Code() int {
	if code, ok := stateCodes[s]; ok {
		return code
	}
	return -1
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Hundred is the percentage of a finished course.
var Hundred = decimal.NewFromInt(100)

// almostComplete is reported when rounding would claim 100 with lessons left.
var almostComplete = decimal.RequireFromString("99.99")

// PercentagePrecision is the number of decimal places kept on the percentage.
const PercentagePrecision = 2

// Enrollment is one student's registration in one course.
type Enrollment struct {
	// ID - unique identifier.
	ID shared.EnrollmentID

	// StudentID / CourseID - the natural key.
	StudentID shared.StudentID
	CourseID  shared.CourseID

	// EnrolledAt - when the enrollment action happened.
	EnrolledAt time.Time

	// CompletedAt - set exactly when ProgressPercentage reaches 100.
	CompletedAt *time.Time

	// ProgressPercentage - 0..100, two decimal places.
	ProgressPercentage decimal.Decimal

	// CompletedLessons / TotalLessons - counters behind the percentage.
	CompletedLessons int
	TotalLessons     int

	// TimeSpentMinutes - sum over the course's lessons.
	TimeSpentMinutes int

	// AverageQuizScore - mean over scored lessons, nil when none.
	AverageQuizScore *float64

	// CertificateIssued implies CompletedAt is set.
	CertificateIssued   bool
	CertificateRef      *string
	CertificateIssuedAt *time.Time

	// LastAccessedAt - refreshed on every recompute.
	LastAccessedAt time.Time

	// Version - optimistic concurrency token.
	Version int
}

// NewEnrollment creates a not-started enrollment.
func NewEnrollment(studentID shared.StudentID, courseID shared.CourseID, totalLessons int, now time.Time) *Enrollment {
	return &Enrollment{
		ID:                 shared.EnrollmentID(uuid.NewString()),
		StudentID:          studentID,
		CourseID:           courseID,
		EnrolledAt:         now,
		ProgressPercentage: decimal.Zero,
		TotalLessons:       totalLessons,
		LastAccessedAt:     now,
	}
}

// IsCompleted reports whether the terminal transition happened.
func (e *Enrollment) IsCompleted() bool {
	return e.CompletedAt != nil
}

// State derives the lifecycle state.
func (e *Enrollment) State() State {
	switch {
	case e.IsCompleted():
		return StateCompleted
	case e.CompletedLessons == 0:
		return StateNotStarted
	default:
		return StateInProgress
	}
}

// CanIssueCertificate reports whether a certificate may be attached.
func (e *Enrollment) CanIssueCertificate() bool {
	return e.IsCompleted() && !e.CertificateIssued
}

// AttachCertificate records an issued certificate. It fails when the
// enrollment is not eligible, which callers treat as a lost race.
func (e *Enrollment) AttachCertificate(ref string, issuedAt time.Time) error {
	if !e.CanIssueCertificate() {
		return shared.NewDomainError("enrollment", "AttachCertificate", shared.ErrInvalidState, "enrollment is not eligible for a certificate")
	}
	r := ref
	at := issuedAt
	e.CertificateIssued = true
	e.CertificateRef = &r
	e.CertificateIssuedAt = &at
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATION
// ══════════════════════════════════════════════════════════════════════════════

// ComputePercentage returns completed/total as a percentage with two decimal
// places, rounded half-up. A course without lessons is 0%. A value that would
// round to 100 while lessons remain is reported as 99.99.
func ComputePercentage(completed, total int) decimal.Decimal {
	if total <= 0 || completed <= 0 {
		return decimal.Zero
	}
	if completed >= total {
		return Hundred
	}
	pct := decimal.NewFromInt(int64(completed)).
		Mul(Hundred).
		Div(decimal.NewFromInt(int64(total))).
		Round(PercentagePrecision)
	if pct.GreaterThanOrEqual(Hundred) {
		return almostComplete
	}
	return pct
}

// Tally is the input of a recompute, read from lesson progress and the catalog.
type Tally struct {
	CompletedLessons int
	TotalLessons     int
	TimeSpentMinutes int
	AverageQuizScore *float64
}

// Transition describes what a recompute changed.
type Transition struct {
	From            State
	To              State
	OldPercentage   decimal.Decimal
	NewPercentage   decimal.Decimal
	BecameCompleted bool

	// Changed is false when only LastAccessedAt moved.
	Changed bool
}

// Recompute derives the aggregate from a tally. It is idempotent: the same
// tally applied twice changes nothing but LastAccessedAt. Completed is
// terminal, so a course that later grows keeps its 100%.
func (e *Enrollment) Recompute(t Tally, now time.Time) Transition {
	tr := Transition{
		From:          e.State(),
		OldPercentage: e.ProgressPercentage,
	}

	completed := t.CompletedLessons
	if t.TotalLessons > 0 && completed > t.TotalLessons {
		completed = t.TotalLessons
	}

	pct := ComputePercentage(completed, t.TotalLessons)
	if e.IsCompleted() {
		pct = Hundred
	} else if pct.Equal(Hundred) {
		completedAt := now
		e.CompletedAt = &completedAt
		tr.BecameCompleted = true
	}

	tr.Changed = tr.BecameCompleted ||
		!pct.Equal(e.ProgressPercentage) ||
		completed != e.CompletedLessons ||
		t.TotalLessons != e.TotalLessons ||
		t.TimeSpentMinutes != e.TimeSpentMinutes ||
		!sameScore(t.AverageQuizScore, e.AverageQuizScore)

	e.ProgressPercentage = pct
	e.CompletedLessons = completed
	e.TotalLessons = t.TotalLessons
	e.TimeSpentMinutes = t.TimeSpentMinutes
	e.AverageQuizScore = t.AverageQuizScore
	e.LastAccessedAt = now

	tr.To = e.State()
	tr.NewPercentage = pct
	return tr
}

func sameScore(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
