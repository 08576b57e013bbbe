// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/catalog"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/enrollment"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/progress"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/streak"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/logger"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD PROGRESS COMMAND
// Records a student's progress on one lesson. The lesson row only moves
// forward; completing it rolls up into the enrollment, and every accepted
// submission counts toward the learning streak.
// ══════════════════════════════════════════════════════════════════════════════

// RecordProgressCommand contains one progress submission.
type RecordProgressCommand struct {
	// StudentID is the authenticated learner.
	StudentID string

	// LessonID is the lesson being worked on.
	LessonID string

	// Status is a status name or its numeric code ("completed", "2").
	Status string

	// TimeSpentDelta is minutes to add (>= 0).
	TimeSpentDelta int

	// QuizScore replaces the stored score when set (0..100).
	QuizScore *float64

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command and returns the parsed update.
func (c RecordProgressCommand) Validate() (progress.Update, error) {
	if _, err := shared.NewStudentID(c.StudentID); err != nil {
		return progress.Update{}, err
	}
	if _, err := shared.NewLessonID(c.LessonID); err != nil {
		return progress.Update{}, err
	}

	status, err := progress.ParseStatus(c.Status)
	if err != nil {
		return progress.Update{}, err
	}

	u := progress.Update{
		Status:         status,
		TimeSpentDelta: c.TimeSpentDelta,
		QuizScore:      c.QuizScore,
	}
	if err := u.Validate(); err != nil {
		return progress.Update{}, err
	}
	return u, nil
}

// RecordProgressResult contains the result of recording progress.
type RecordProgressResult struct {
	// LessonProgress is the stored row after the update.
	LessonProgress *progress.LessonProgress

	// JustCompleted is true only for the call that completed the lesson.
	JustCompleted bool

	// Enrollment is the recomputed snapshot, nil when nothing was recomputed.
	Enrollment *enrollment.Enrollment

	// Streak is the streak after crediting, nil when crediting is off.
	Streak *streak.Streak

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordProgressHandlerConfig contains configuration for the handler.
type RecordProgressHandlerConfig struct {
	// CreditStreak decides per student whether streaks are credited.
	// Nil means always.
	CreditStreak func(studentID string) bool
}

// RecordProgressHandler handles RecordProgressCommand.
type RecordProgressHandler struct {
	progress       progress.Repository
	catalog        catalog.Service
	aggregator     *Aggregator
	streaks        *CreditActivityHandler
	eventPublisher shared.EventPublisher
	clock          timeutil.Clock
	log            *logger.Logger

	creditStreak func(studentID string) bool
}

// NewRecordProgressHandler creates a new RecordProgressHandler.
func NewRecordProgressHandler(
	progressRepo progress.Repository,
	cat catalog.Service,
	aggregator *Aggregator,
	streaks *CreditActivityHandler,
	eventPublisher shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
	config RecordProgressHandlerConfig,
) *RecordProgressHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	creditStreak := config.CreditStreak
	if creditStreak == nil {
		creditStreak = func(string) bool { return true }
	}
	return &RecordProgressHandler{
		progress:       progressRepo,
		catalog:        cat,
		aggregator:     aggregator,
		streaks:        streaks,
		eventPublisher: eventPublisher,
		clock:          clock,
		log:            log.With(logger.Component("progress_tracker")),
		creditStreak:   creditStreak,
	}
}

// Handle executes the record progress command.
func (h *RecordProgressHandler) Handle(ctx context.Context, cmd RecordProgressCommand) (*RecordProgressResult, error) {
	update, err := cmd.Validate()
	if err != nil {
		return nil, fmt.Errorf("record_progress: validation failed: %w", err)
	}

	studentID := shared.StudentID(cmd.StudentID)
	lessonID := shared.LessonID(cmd.LessonID)

	courseID, err := h.catalog.LessonCourse(ctx, lessonID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, fmt.Errorf("record_progress: %w", shared.ErrLessonNotFound)
		}
		return nil, fmt.Errorf("record_progress: failed to resolve lesson: %w", err)
	}

	enrolled, err := h.catalog.IsEnrolled(ctx, studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("record_progress: failed to check enrollment: %w", err)
	}
	if !enrolled {
		return nil, fmt.Errorf("record_progress: %w", shared.ErrNotEnrolledInCourse)
	}

	now := h.clock.Now()

	var justCompleted bool
	lp, err := h.progress.Upsert(ctx,
		progress.NewLessonProgress(studentID, lessonID, courseID, now),
		func(lp *progress.LessonProgress) error {
			justCompleted = lp.Apply(update, now)
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("record_progress: failed to save progress: %w", err)
	}

	result := &RecordProgressResult{
		LessonProgress: lp,
		JustCompleted:  justCompleted,
		Events:         make([]shared.Event, 0, 2),
	}

	recorded := shared.NewLessonProgressRecordedEvent(cmd.StudentID, cmd.LessonID, string(courseID), string(lp.Status), update.TimeSpentDelta)
	if cmd.CorrelationID != "" {
		recorded.BaseEvent = recorded.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, recorded)

	if justCompleted {
		completed := shared.NewLessonCompletedEvent(cmd.StudentID, cmd.LessonID, string(courseID), *lp.CompletedAt)
		if cmd.CorrelationID != "" {
			completed.BaseEvent = completed.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		result.Events = append(result.Events, completed)
	}

	// A completed lesson always gets a recompute so that a retried
	// submission repairs an aggregation that failed the first time.
	switch {
	case lp.IsCompleted():
		agg, err := h.aggregator.OnLessonCompleted(ctx, studentID, courseID)
		if err != nil {
			h.publishAll(result.Events)
			return nil, fmt.Errorf("record_progress: %w", err)
		}
		result.Enrollment = agg.Enrollment
	case update.TimeSpentDelta > 0 || update.QuizScore != nil:
		agg, err := h.aggregator.Refresh(ctx, studentID, courseID)
		if err != nil {
			h.log.Warn("enrollment refresh failed",
				logger.StudentID(cmd.StudentID),
				logger.CourseID(string(courseID)),
				logger.Err(err),
			)
		} else if agg != nil {
			result.Enrollment = agg.Enrollment
		}
	}

	if h.streaks != nil && h.creditStreak(cmd.StudentID) {
		credit, err := h.streaks.Handle(ctx, CreditActivityCommand{
			StudentID:     cmd.StudentID,
			ActivityAt:    now,
			CorrelationID: cmd.CorrelationID,
		})
		if err != nil {
			h.log.Warn("streak credit failed", logger.StudentID(cmd.StudentID), logger.Err(err))
		} else {
			result.Streak = credit.Streak
		}
	}

	h.publishAll(result.Events)

	h.log.Debug("progress recorded",
		logger.StudentID(cmd.StudentID),
		logger.LessonID(cmd.LessonID),
		logger.String("status", string(lp.Status)),
		logger.Bool("just_completed", justCompleted),
	)

	return result, nil
}

func (h *RecordProgressHandler) publishAll(events []shared.Event) {
	for _, event := range events {
		if err := h.eventPublisher.Publish(event); err != nil {
			h.log.Warn("failed to publish event", logger.String("event_type", string(event.EventType())), logger.Err(err))
		}
	}
}
