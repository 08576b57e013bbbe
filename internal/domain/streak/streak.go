// Package streak tracks consecutive calendar days of learning activity.
package streak

import (
	"context"
	"time"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK
// ══════════════════════════════════════════════════════════════════════════════

// Outcome says what a credit did.
type Outcome string

const (
	// OutcomeStarted - first credited day ever.
	OutcomeStarted Outcome = "started"
	// OutcomeExtended - the day after the last credited day.
	OutcomeExtended Outcome = "extended"
	// OutcomeReset - at least one day was skipped.
	OutcomeReset Outcome = "reset"
	// OutcomeSameDay - the day was already credited.
	OutcomeSameDay Outcome = "same_day"
	// OutcomeStale - the day precedes the last credited day.
	OutcomeStale Outcome = "stale"
)

// Changed reports whether the streak record was modified.
func (o Outcome) Changed() bool {
	return o == OutcomeStarted || o == OutcomeExtended || o == OutcomeReset
}

// Streak is a student's consecutive-day counter.
type Streak struct {
	// StudentID - owner; one record per student.
	StudentID shared.StudentID

	// Current - consecutive days ending at LastCreditedDate.
	Current int

	// Best - longest streak ever reached.
	Best int

	// LastCreditedDate - zero until the first credit.
	LastCreditedDate shared.Date

	// UpdatedAt - last change.
	UpdatedAt time.Time
}

// New creates an empty streak.
func New(studentID shared.StudentID) *Streak {
	return &Streak{StudentID: studentID}
}

// Credit applies one day of activity. Streaks never move backward: late or
// out-of-order days are ignored rather than back-filled.
func (s *Streak) Credit(day shared.Date, now time.Time) Outcome {
	var outcome Outcome
	switch {
	case s.LastCreditedDate.IsZero():
		s.Current = 1
		outcome = OutcomeStarted
	default:
		switch diff := day.DaysSince(s.LastCreditedDate); {
		case diff == 0:
			return OutcomeSameDay
		case diff < 0:
			return OutcomeStale
		case diff == 1:
			s.Current++
			outcome = OutcomeExtended
		default:
			s.Current = 1
			outcome = OutcomeReset
		}
	}

	if s.Current > s.Best {
		s.Best = s.Current
	}
	s.LastCreditedDate = day
	s.UpdatedAt = now
	return outcome
}

// CurrentAsOf returns the streak as it should be displayed on today: a streak
// whose last credited day is before yesterday is already broken.
func (s *Streak) CurrentAsOf(today shared.Date) int {
	if s.LastCreditedDate.IsZero() || today.DaysSince(s.LastCreditedDate) > 1 {
		return 0
	}
	return s.Current
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository stores one streak per student.
type Repository interface {
	// Get returns ErrStreakNotFound when the student was never credited.
	Get(ctx context.Context, studentID shared.StudentID) (*Streak, error)

	// Update atomically applies fn to the student's streak, creating it if
	// needed, and persists the result.
	Update(ctx context.Context, studentID shared.StudentID, fn func(s *Streak) error) (*Streak, error)
}
