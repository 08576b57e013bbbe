package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// WARM ANALYTICS JOB
// ══════════════════════════════════════════════════════════════════════════════

// Ranker computes the platform top-performer ranking.
type Ranker interface {
	Handle(ctx context.Context, q query.GetTopPerformersQuery) (*query.TopPerformersDTO, error)
}

// WarmAnalyticsJob recomputes the rankings dashboards ask for most, writing
// them through to the analytics cache.
type WarmAnalyticsJob struct {
	ranker Ranker
	limits []int
	logger *slog.Logger
}

// NewWarmAnalyticsJob creates the job. Empty limits warm the default size only.
func NewWarmAnalyticsJob(ranker Ranker, limits []int, logger *slog.Logger) *WarmAnalyticsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if len(limits) == 0 {
		limits = []int{0}
	}

	return &WarmAnalyticsJob{
		ranker: ranker,
		limits: limits,
		logger: logger.With("job", "warm_analytics"),
	}
}

// Name returns the job name.
func (j *WarmAnalyticsJob) Name() string {
	return "warm_analytics"
}

// Description returns a human-readable description.
func (j *WarmAnalyticsJob) Description() string {
	return "Precomputes the platform top-performer ranking into the analytics cache"
}

// Run executes the job.
func (j *WarmAnalyticsJob) Run(ctx context.Context) error {
	var errs []error
	for _, limit := range j.limits {
		dto, err := j.ranker.Handle(ctx, query.GetTopPerformersQuery{Limit: limit, SkipCache: true})
		if err != nil {
			errs = append(errs, fmt.Errorf("limit %d: %w", limit, err))
			continue
		}
		j.logger.Debug("ranking warmed", "limit", dto.Limit, "performers", len(dto.Performers))
	}
	return errors.Join(errs...)
}
