package query

import (
	"context"
	"fmt"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/analytics"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET INSTRUCTOR SUMMARY QUERY
// Revenue, enrollment and rating rollup for one instructor. Served from the
// analytics cache when possible; source failures are surfaced, never masked.
// ══════════════════════════════════════════════════════════════════════════════

// GetInstructorSummaryQuery contains the query parameters.
type GetInstructorSummaryQuery struct {
	// InstructorID - the instructor.
	InstructorID string

	// SkipCache - force recomputation.
	SkipCache bool
}

// Validate validates the query.
func (q *GetInstructorSummaryQuery) Validate() error {
	_, err := shared.NewInstructorID(q.InstructorID)
	return err
}

// InstructorSummaryDTO is the presented summary.
type InstructorSummaryDTO struct {
	InstructorID string `json:"instructor_id"`

	// TotalRevenue - sum of completed payments, two decimals.
	TotalRevenue string `json:"total_revenue"`
	PaymentCount int    `json:"payment_count"`

	// TotalStudents - distinct students across the instructor's courses.
	TotalStudents int `json:"total_students"`

	TotalEnrollments     int `json:"total_enrollments"`
	CompletedEnrollments int `json:"completed_enrollments"`

	// CompletionRate - percentage 0..100, two decimals.
	CompletionRate float64 `json:"completion_rate"`

	// AverageRating - 0..5, two decimals; 0 without reviews.
	AverageRating float64 `json:"average_rating"`
	ReviewCount   int     `json:"review_count"`

	// Cached - served from the analytics cache.
	Cached bool `json:"cached"`
}

// AnalyticsOptions configures the analytics query handlers.
type AnalyticsOptions struct {
	DefaultWindow int
	MaxWindow     int
	DefaultTopN   int
	MaxTopN       int

	// UseCache is consulted per request. Nil means use the cache when one is set.
	UseCache func() bool

	// ZeroFillByDefault applies when the caller does not choose a fill policy.
	ZeroFillByDefault func() bool
}

func (o AnalyticsOptions) withDefaults() AnalyticsOptions {
	if o.MaxWindow <= 0 || o.MaxWindow > analytics.MaxWindow {
		o.MaxWindow = analytics.MaxWindow
	}
	if o.DefaultWindow <= 0 || o.DefaultWindow > o.MaxWindow {
		o.DefaultWindow = 12
		if o.DefaultWindow > o.MaxWindow {
			o.DefaultWindow = o.MaxWindow
		}
	}
	if o.MaxTopN <= 0 || o.MaxTopN > analytics.MaxTopN {
		o.MaxTopN = analytics.MaxTopN
	}
	if o.DefaultTopN <= 0 || o.DefaultTopN > o.MaxTopN {
		o.DefaultTopN = analytics.DefaultTopN
		if o.DefaultTopN > o.MaxTopN {
			o.DefaultTopN = o.MaxTopN
		}
	}
	if o.UseCache == nil {
		o.UseCache = func() bool { return true }
	}
	if o.ZeroFillByDefault == nil {
		o.ZeroFillByDefault = func() bool { return false }
	}
	return o
}

// GetInstructorSummaryHandler handles GetInstructorSummaryQuery.
type GetInstructorSummaryHandler struct {
	sources analytics.Sources
	cache   analytics.Cache
	opts    AnalyticsOptions
	log     *logger.Logger
}

// NewGetInstructorSummaryHandler creates a new handler. cache may be nil.
func NewGetInstructorSummaryHandler(sources analytics.Sources, cache analytics.Cache, opts AnalyticsOptions, log *logger.Logger) *GetInstructorSummaryHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetInstructorSummaryHandler{
		sources: sources,
		cache:   cache,
		opts:    opts.withDefaults(),
		log:     log.With(logger.Component("analytics_summary")),
	}
}

// Handle executes the query.
func (h *GetInstructorSummaryHandler) Handle(ctx context.Context, q GetInstructorSummaryQuery) (*InstructorSummaryDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_instructor_summary: validation failed: %w", err)
	}
	instructorID := shared.InstructorID(q.InstructorID)
	useCache := h.cache != nil && h.opts.UseCache() && !q.SkipCache

	if useCache {
		cached, err := h.cache.GetSummary(ctx, instructorID)
		if err != nil {
			h.log.Warn("summary cache read failed", logger.InstructorID(q.InstructorID), logger.Err(err))
		} else if cached != nil {
			dto := presentSummary(cached)
			dto.Cached = true
			return dto, nil
		}
	}

	summary, err := h.compute(ctx, instructorID)
	if err != nil {
		return nil, fmt.Errorf("get_instructor_summary: %w", err)
	}

	if useCache {
		if err := h.cache.SetSummary(ctx, summary); err != nil {
			h.log.Warn("summary cache write failed", logger.InstructorID(q.InstructorID), logger.Err(err))
		}
	}

	return presentSummary(summary), nil
}

func (h *GetInstructorSummaryHandler) compute(ctx context.Context, instructorID shared.InstructorID) (*analytics.Summary, error) {
	filter := analytics.Filter{InstructorID: instructorID}

	payments, err := h.sources.Payments.CompletedPayments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	enrollments, err := h.sources.Enrollments.Enrollments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load enrollments: %w", err)
	}
	ratings, err := h.sources.Reviews.Ratings(ctx, instructorID)
	if err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}

	return analytics.Summarize(instructorID, payments, enrollments, ratings), nil
}

func presentSummary(s *analytics.Summary) *InstructorSummaryDTO {
	return &InstructorSummaryDTO{
		InstructorID:         string(s.InstructorID),
		TotalRevenue:         money(s.Revenue),
		PaymentCount:         s.PaymentCount,
		TotalStudents:        s.DistinctStudents,
		TotalEnrollments:     s.TotalEnrollments,
		CompletedEnrollments: s.CompletedEnrollments,
		CompletionRate:       analytics.Present(s.CompletionRate()),
		AverageRating:        analytics.Present(s.AverageRating()),
		ReviewCount:          s.ReviewCount,
	}
}
