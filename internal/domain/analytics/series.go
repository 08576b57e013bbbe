package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCOPE & FILL POLICY
// ══════════════════════════════════════════════════════════════════════════════

// Scope selects which facts a monthly series counts.
type Scope string

const (
	ScopeRevenue     Scope = "revenue"
	ScopeEnrollments Scope = "enrollments"
	ScopeNewUsers    Scope = "new-users"
)

// ParseScope accepts "new-users", "new_users" and "users" for the user scope.
func ParseScope(raw string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "revenue":
		return ScopeRevenue, nil
	case "enrollments":
		return ScopeEnrollments, nil
	case "new-users", "new_users", "users":
		return ScopeNewUsers, nil
	}
	return "", shared.ErrInvalidScope
}

// FillPolicy decides what happens to months without facts.
type FillPolicy string

const (
	// FillSparse omits empty months.
	FillSparse FillPolicy = "sparse"
	// FillZero emits every month of the window, empty ones as zero.
	FillZero FillPolicy = "zero"
)

// Window bounds, in months.
const (
	MinWindow = 1
	MaxWindow = 36
)

// ══════════════════════════════════════════════════════════════════════════════
// SERIES
// ══════════════════════════════════════════════════════════════════════════════

// Point is one fact on the time axis.
type Point struct {
	At    time.Time
	Value decimal.Decimal
}

// Bucket is one calendar month.
type Bucket struct {
	Year  int             `json:"year"`
	Month time.Month      `json:"month"`
	Label string          `json:"label"`
	Value decimal.Decimal `json:"value"`
	Count int             `json:"count"`
}

// Series is a chronologically ordered monthly rollup.
type Series struct {
	Scope   Scope            `json:"scope"`
	Window  int              `json:"window"`
	Fill    FillPolicy       `json:"fill"`
	Range   shared.TimeRange `json:"-"`
	Buckets []Bucket         `json:"buckets"`
}

// WindowRange returns the [from, to) span of the trailing window ending with
// the month containing now.
func WindowRange(now time.Time, window int) (shared.TimeRange, error) {
	if window < MinWindow || window > MaxWindow {
		return shared.TimeRange{}, shared.ErrInvalidWindow
	}
	from, to := timeutil.TrailingMonths(now, window)
	return shared.TimeRange{From: from, To: to}, nil
}

type monthKey struct {
	year  int
	month time.Month
}

// BuildMonthlySeries groups points by calendar month within the trailing
// window. Points outside the window are ignored.
func BuildMonthlySeries(scope Scope, points []Point, window int, now time.Time, fill FillPolicy) (*Series, error) {
	r, err := WindowRange(now, window)
	if err != nil {
		return nil, err
	}
	if fill != FillZero {
		fill = FillSparse
	}

	byMonth := make(map[monthKey]*Bucket)
	for _, p := range points {
		if !r.Contains(p.At) {
			continue
		}
		y, m := timeutil.MonthKey(p.At)
		k := monthKey{y, m}
		b, ok := byMonth[k]
		if !ok {
			b = &Bucket{Year: y, Month: m, Label: timeutil.FormatMonth(y, m), Value: decimal.Zero}
			byMonth[k] = b
		}
		b.Value = b.Value.Add(p.Value)
		b.Count++
	}

	s := &Series{Scope: scope, Window: window, Fill: fill, Range: r}

	if fill == FillZero {
		s.Buckets = make([]Bucket, 0, window)
		for i := 0; i < window; i++ {
			y, m := timeutil.MonthKey(timeutil.AddMonths(r.From, i))
			if b, ok := byMonth[monthKey{y, m}]; ok {
				s.Buckets = append(s.Buckets, *b)
				continue
			}
			s.Buckets = append(s.Buckets, Bucket{Year: y, Month: m, Label: timeutil.FormatMonth(y, m), Value: decimal.Zero})
		}
		return s, nil
	}

	s.Buckets = make([]Bucket, 0, len(byMonth))
	for _, b := range byMonth {
		s.Buckets = append(s.Buckets, *b)
	}
	sort.Slice(s.Buckets, func(i, j int) bool {
		if s.Buckets[i].Year != s.Buckets[j].Year {
			return s.Buckets[i].Year < s.Buckets[j].Year
		}
		return s.Buckets[i].Month < s.Buckets[j].Month
	})
	return s, nil
}

// PaymentPoints converts payments into revenue points.
func PaymentPoints(payments []Payment) []Point {
	points := make([]Point, len(payments))
	for i, p := range payments {
		points[i] = Point{At: p.CompletedAt, Value: p.Amount}
	}
	return points
}

// CountPoints turns timestamps into points worth one each.
func CountPoints(times []time.Time) []Point {
	one := decimal.NewFromInt(1)
	points := make([]Point, len(times))
	for i, t := range times {
		points[i] = Point{At: t, Value: one}
	}
	return points
}
