package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/application/command"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/enrollment"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE ACTIVE ENROLLMENTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// Recomputer re-derives one enrollment snapshot from lesson progress.
type Recomputer interface {
	Recompute(ctx context.Context, enrollmentID shared.EnrollmentID) (*command.RecomputeResult, error)
}

// RecomputeEnrollmentsJob re-aggregates recently active, incomplete
// enrollments so that course structure changes reach their percentages.
type RecomputeEnrollmentsJob struct {
	enrollments enrollment.Repository
	recomputer  Recomputer
	logger      *slog.Logger
	config      RecomputeEnrollmentsConfig
	now         func() time.Time
}

// RecomputeEnrollmentsConfig contains configuration for the job.
type RecomputeEnrollmentsConfig struct {
	// Lookback selects enrollments accessed within this window.
	Lookback time.Duration

	// BatchSize caps enrollments handled per run.
	BatchSize int
}

// DefaultRecomputeEnrollmentsConfig returns sensible defaults.
func DefaultRecomputeEnrollmentsConfig() RecomputeEnrollmentsConfig {
	return RecomputeEnrollmentsConfig{
		Lookback:  24 * time.Hour,
		BatchSize: 500,
	}
}

// NewRecomputeEnrollmentsJob creates the job. now may be nil.
func NewRecomputeEnrollmentsJob(
	enrollments enrollment.Repository,
	recomputer Recomputer,
	logger *slog.Logger,
	config RecomputeEnrollmentsConfig,
	now func() time.Time,
) *RecomputeEnrollmentsJob {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultRecomputeEnrollmentsConfig()
	if config.Lookback <= 0 {
		config.Lookback = defaults.Lookback
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if now == nil {
		now = time.Now
	}

	return &RecomputeEnrollmentsJob{
		enrollments: enrollments,
		recomputer:  recomputer,
		logger:      logger.With("job", "recompute_active_enrollments"),
		config:      config,
		now:         now,
	}
}

// Name returns the job name.
func (j *RecomputeEnrollmentsJob) Name() string {
	return "recompute_active_enrollments"
}

// Description returns a human-readable description.
func (j *RecomputeEnrollmentsJob) Description() string {
	return "Recomputes recently active enrollments against the current course structure"
}

// Run executes the job.
func (j *RecomputeEnrollmentsJob) Run(ctx context.Context) error {
	since := j.now().Add(-j.config.Lookback)

	active, err := j.enrollments.ListActiveSince(ctx, since, j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("list active enrollments: %w", err)
	}

	var (
		errs      []error
		changed   int
		completed int
	)
	for _, e := range active {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		res, err := j.recomputer.Recompute(ctx, e.ID)
		if err != nil {
			if shared.IsNotFound(err) {
				// Course withdrawn from the catalog; nothing to recompute against.
				j.logger.Debug("skipping enrollment", "enrollment_id", e.ID, "error", err)
				continue
			}
			errs = append(errs, fmt.Errorf("enrollment %s: %w", e.ID, err))
			continue
		}
		if res.Transition.Changed {
			changed++
		}
		if res.Transition.BecameCompleted {
			completed++
		}
	}

	j.logger.Info("enrollment recompute finished",
		"scanned", len(active),
		"changed", changed,
		"completed", completed,
		"failed", len(errs),
	)

	return errors.Join(errs...)
}
