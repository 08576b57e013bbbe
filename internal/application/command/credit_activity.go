package command

import (
	"context"
	"fmt"
	"time"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/streak"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/logger"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREDIT ACTIVITY COMMAND
// Credits one calendar day of learning activity to the student's streak.
// ══════════════════════════════════════════════════════════════════════════════

// CreditActivityCommand credits the day containing ActivityAt.
type CreditActivityCommand struct {
	// StudentID is the learner.
	StudentID string

	// ActivityAt is when the activity happened (defaults to now if zero).
	// It is truncated to a calendar day in the configured timezone; a time
	// after now is clamped to now.
	ActivityAt time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CreditActivityCommand) Validate() error {
	if _, err := shared.NewStudentID(c.StudentID); err != nil {
		return err
	}
	return nil
}

// CreditActivityResult contains the streak after the credit.
type CreditActivityResult struct {
	// Streak is the stored streak.
	Streak *streak.Streak

	// Outcome says what the credit did.
	Outcome streak.Outcome

	// PreviousStreak is the value before this credit.
	PreviousStreak int

	// Day is the credited calendar day.
	Day shared.Date
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CreditActivityHandler handles CreditActivityCommand.
type CreditActivityHandler struct {
	streaks        streak.Repository
	eventPublisher shared.EventPublisher
	clock          timeutil.Clock
	log            *logger.Logger
}

// NewCreditActivityHandler creates a new CreditActivityHandler.
func NewCreditActivityHandler(
	streaks streak.Repository,
	eventPublisher shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
) *CreditActivityHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CreditActivityHandler{
		streaks:        streaks,
		eventPublisher: eventPublisher,
		clock:          clock,
		log:            log.With(logger.Component("streak_tracker")),
	}
}

// Handle executes the credit activity command.
func (h *CreditActivityHandler) Handle(ctx context.Context, cmd CreditActivityCommand) (*CreditActivityResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("credit_activity: validation failed: %w", err)
	}

	now := h.clock.Now()
	at := cmd.ActivityAt
	if at.IsZero() || at.After(now) {
		at = now
	}
	day := shared.DateOf(at, timeutil.Location())

	result := &CreditActivityResult{Day: day}
	s, err := h.streaks.Update(ctx, shared.StudentID(cmd.StudentID), func(s *streak.Streak) error {
		result.PreviousStreak = s.Current
		result.Outcome = s.Credit(day, now)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("credit_activity: failed to update streak: %w", err)
	}
	result.Streak = s

	if result.Outcome.Changed() {
		event := shared.NewStreakUpdatedEvent(cmd.StudentID, result.PreviousStreak, s.Current, s.Best, day.String())
		if cmd.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		if err := h.eventPublisher.Publish(event); err != nil {
			h.log.Warn("failed to publish streak event", logger.StudentID(cmd.StudentID), logger.Err(err))
		}
	}

	return result, nil
}
