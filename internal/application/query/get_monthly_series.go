package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/analytics"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET MONTHLY SERIES QUERY
// Trailing-window monthly rollups of revenue, enrollments or sign-ups.
// ══════════════════════════════════════════════════════════════════════════════

// GetMonthlySeriesQuery contains the query parameters.
type GetMonthlySeriesQuery struct {
	// Scope - revenue, enrollments or new-users.
	Scope string

	// Window - months, 0 means the configured default.
	Window int

	// Fill - "zero", "sparse" or empty for the configured default.
	Fill string

	// InstructorID - optional, narrows revenue and enrollments.
	InstructorID string
}

// MonthBucketDTO is one month of the series.
type MonthBucketDTO struct {
	// Month - YYYY-MM.
	Month string `json:"month"`
	Year  int    `json:"year"`

	// Value - revenue with two decimals, or a count.
	Value string `json:"value"`

	// Count - number of facts in the month.
	Count int `json:"count"`
}

// MonthlySeriesDTO is the presented series.
type MonthlySeriesDTO struct {
	Scope  string `json:"scope"`
	Window int    `json:"window"`

	// Fill - the policy that was applied.
	Fill string `json:"fill"`

	From    time.Time        `json:"from"`
	To      time.Time        `json:"to"`
	Buckets []MonthBucketDTO `json:"buckets"`
}

// GetMonthlySeriesHandler handles GetMonthlySeriesQuery.
type GetMonthlySeriesHandler struct {
	sources analytics.Sources
	opts    AnalyticsOptions
	clock   timeutil.Clock
}

// NewGetMonthlySeriesHandler creates a new handler.
func NewGetMonthlySeriesHandler(sources analytics.Sources, opts AnalyticsOptions, clock timeutil.Clock) *GetMonthlySeriesHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &GetMonthlySeriesHandler{sources: sources, opts: opts.withDefaults(), clock: clock}
}

// Handle executes the query.
func (h *GetMonthlySeriesHandler) Handle(ctx context.Context, q GetMonthlySeriesQuery) (*MonthlySeriesDTO, error) {
	scope, err := analytics.ParseScope(q.Scope)
	if err != nil {
		return nil, fmt.Errorf("get_monthly_series: %w", err)
	}

	window := q.Window
	if window == 0 {
		window = h.opts.DefaultWindow
	}
	if window < analytics.MinWindow || window > h.opts.MaxWindow {
		return nil, fmt.Errorf("get_monthly_series: %w", shared.ErrInvalidWindow)
	}

	fill, err := h.fillPolicy(q.Fill)
	if err != nil {
		return nil, fmt.Errorf("get_monthly_series: %w", err)
	}

	var instructorID shared.InstructorID
	if q.InstructorID != "" {
		if instructorID, err = shared.NewInstructorID(q.InstructorID); err != nil {
			return nil, fmt.Errorf("get_monthly_series: %w", err)
		}
	}

	now := h.clock.Now()
	r, err := analytics.WindowRange(now, window)
	if err != nil {
		return nil, fmt.Errorf("get_monthly_series: %w", err)
	}

	points, err := h.points(ctx, scope, analytics.Filter{InstructorID: instructorID, Range: r})
	if err != nil {
		return nil, fmt.Errorf("get_monthly_series: %w", err)
	}

	series, err := analytics.BuildMonthlySeries(scope, points, window, now, fill)
	if err != nil {
		return nil, fmt.Errorf("get_monthly_series: %w", err)
	}

	return presentSeries(series), nil
}

func (h *GetMonthlySeriesHandler) fillPolicy(raw string) (analytics.FillPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		if h.opts.ZeroFillByDefault() {
			return analytics.FillZero, nil
		}
		return analytics.FillSparse, nil
	case string(analytics.FillZero), "dense":
		return analytics.FillZero, nil
	case string(analytics.FillSparse):
		return analytics.FillSparse, nil
	}
	return "", shared.NewDomainError("analytics", "Validate", shared.ErrInvalidInput, "fill must be zero or sparse")
}

func (h *GetMonthlySeriesHandler) points(ctx context.Context, scope analytics.Scope, f analytics.Filter) ([]analytics.Point, error) {
	switch scope {
	case analytics.ScopeRevenue:
		payments, err := h.sources.Payments.CompletedPayments(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("load payments: %w", err)
		}
		return analytics.PaymentPoints(payments), nil

	case analytics.ScopeEnrollments:
		facts, err := h.sources.Enrollments.Enrollments(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("load enrollments: %w", err)
		}
		times := make([]time.Time, len(facts))
		for i, fact := range facts {
			times[i] = fact.EnrolledAt
		}
		return analytics.CountPoints(times), nil

	case analytics.ScopeNewUsers:
		signUps, err := h.sources.Users.SignUps(ctx, f.Range)
		if err != nil {
			return nil, fmt.Errorf("load users: %w", err)
		}
		return analytics.CountPoints(signUps), nil
	}
	return nil, shared.ErrInvalidScope
}

func presentSeries(s *analytics.Series) *MonthlySeriesDTO {
	dto := &MonthlySeriesDTO{
		Scope:   string(s.Scope),
		Window:  s.Window,
		Fill:    string(s.Fill),
		From:    s.Range.From,
		To:      s.Range.To,
		Buckets: make([]MonthBucketDTO, len(s.Buckets)),
	}
	for i, b := range s.Buckets {
		value := b.Value.String()
		if s.Scope == analytics.ScopeRevenue {
			value = money(b.Value)
		}
		dto.Buckets[i] = MonthBucketDTO{
			Month: b.Label,
			Year:  b.Year,
			Value: value,
			Count: b.Count,
		}
	}
	return dto
}
