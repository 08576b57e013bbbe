package query

import (
	"context"
	"fmt"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/analytics"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TOP PERFORMERS QUERY
// Platform-wide instructor ranking: revenue, then distinct students, then id.
// ══════════════════════════════════════════════════════════════════════════════

// GetTopPerformersQuery contains the query parameters.
type GetTopPerformersQuery struct {
	// Limit - 0 means the default; values above the maximum are capped.
	Limit int

	// SkipCache - force recomputation (used by the warm-up job).
	SkipCache bool
}

// Validate validates the query.
func (q *GetTopPerformersQuery) Validate() error {
	if q.Limit < 0 {
		return shared.ErrInvalidLimit
	}
	return nil
}

// PerformerDTO is one ranked instructor.
type PerformerDTO struct {
	Rank         int    `json:"rank"`
	InstructorID string `json:"instructor_id"`
	Name         string `json:"name,omitempty"`
	Revenue      string `json:"revenue"`
	Students     int    `json:"students"`
}

// TopPerformersDTO is the presented ranking.
type TopPerformersDTO struct {
	Limit      int            `json:"limit"`
	Performers []PerformerDTO `json:"performers"`
	Cached     bool           `json:"cached"`
}

// GetTopPerformersHandler handles GetTopPerformersQuery.
type GetTopPerformersHandler struct {
	source analytics.PerformanceSource
	cache  analytics.Cache
	opts   AnalyticsOptions
	log    *logger.Logger
}

// NewGetTopPerformersHandler creates a new handler. cache may be nil.
func NewGetTopPerformersHandler(source analytics.PerformanceSource, cache analytics.Cache, opts AnalyticsOptions, log *logger.Logger) *GetTopPerformersHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetTopPerformersHandler{
		source: source,
		cache:  cache,
		opts:   opts.withDefaults(),
		log:    log.With(logger.Component("analytics_ranking")),
	}
}

// Handle executes the query.
func (h *GetTopPerformersHandler) Handle(ctx context.Context, q GetTopPerformersQuery) (*TopPerformersDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_top_performers: validation failed: %w", err)
	}

	limit := q.Limit
	switch {
	case limit == 0:
		limit = h.opts.DefaultTopN
	case limit > h.opts.MaxTopN:
		limit = h.opts.MaxTopN
	}

	useCache := h.cache != nil && h.opts.UseCache()

	if useCache && !q.SkipCache {
		ranked, err := h.cache.GetTopPerformers(ctx, limit)
		if err != nil {
			h.log.Warn("ranking cache read failed", logger.Err(err))
		} else if ranked != nil {
			dto := presentRanking(limit, ranked)
			dto.Cached = true
			return dto, nil
		}
	}

	stats, err := h.source.PerformerStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_top_performers: load performer stats: %w", err)
	}
	ranked := analytics.RankTopPerformers(stats, limit)

	if useCache {
		if err := h.cache.SetTopPerformers(ctx, limit, ranked); err != nil {
			h.log.Warn("ranking cache write failed", logger.Err(err))
		}
	}

	return presentRanking(limit, ranked), nil
}

func presentRanking(limit int, ranked []analytics.RankedPerformer) *TopPerformersDTO {
	dto := &TopPerformersDTO{Limit: limit, Performers: make([]PerformerDTO, len(ranked))}
	for i, r := range ranked {
		dto.Performers[i] = PerformerDTO{
			Rank:         r.Rank,
			InstructorID: string(r.InstructorID),
			Name:         r.Name,
			Revenue:      money(r.Revenue),
			Students:     r.Students,
		}
	}
	return dto
}
