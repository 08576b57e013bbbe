package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/streak"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STREAK QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetStreakQuery contains the query parameters.
type GetStreakQuery struct {
	// StudentID - the authenticated learner.
	StudentID string
}

// Validate validates the query.
func (q *GetStreakQuery) Validate() error {
	_, err := shared.NewStudentID(q.StudentID)
	return err
}

// StreakDTO is the learning streak as shown today.
type StreakDTO struct {
	StudentID string `json:"student_id"`

	// CurrentStreak - 0 once a full day has been missed.
	CurrentStreak int `json:"current_streak"`

	// BestStreak - longest streak ever reached.
	BestStreak int `json:"best_streak"`

	// LastActiveDate - YYYY-MM-DD, empty before the first activity.
	LastActiveDate string `json:"last_active_date,omitempty"`

	// ActiveToday - today is already credited.
	ActiveToday bool `json:"active_today"`
}

// GetStreakHandler handles GetStreakQuery.
type GetStreakHandler struct {
	streaks streak.Repository
	clock   timeutil.Clock
}

// NewGetStreakHandler creates a new GetStreakHandler.
func NewGetStreakHandler(streaks streak.Repository, clock timeutil.Clock) *GetStreakHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &GetStreakHandler{streaks: streaks, clock: clock}
}

// Handle executes the query. A student who was never credited has a zero streak.
func (h *GetStreakHandler) Handle(ctx context.Context, q GetStreakQuery) (*StreakDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_streak: validation failed: %w", err)
	}

	dto := &StreakDTO{StudentID: q.StudentID}

	s, err := h.streaks.Get(ctx, shared.StudentID(q.StudentID))
	if errors.Is(err, shared.ErrStreakNotFound) {
		return dto, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get_streak: %w", err)
	}

	return PresentStreak(s, shared.DateOf(h.clock.Now(), timeutil.Location())), nil
}
