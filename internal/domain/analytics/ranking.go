package analytics

import (
	"sort"
)

// Ranking limits.
const (
	DefaultTopN = 10
	MaxTopN     = 100
)

// RankedPerformer is one row of the top-performer list.
type RankedPerformer struct {
	Rank int `json:"rank"`
	PerformerStats
}

// less orders by revenue desc, then distinct students desc, then instructor
// id asc. It is a total order over distinct instructor ids.
func less(a, b PerformerStats) bool {
	if c := a.Revenue.Cmp(b.Revenue); c != 0 {
		return c > 0
	}
	if a.Students != b.Students {
		return a.Students > b.Students
	}
	return a.InstructorID < b.InstructorID
}

// RankTopPerformers sorts a copy of stats and returns the first limit rows
// with 1-based ranks. A non-positive limit returns every row.
func RankTopPerformers(stats []PerformerStats, limit int) []RankedPerformer {
	sorted := make([]PerformerStats, len(stats))
	copy(sorted, stats)
	sort.Slice(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}

	ranked := make([]RankedPerformer, len(sorted))
	for i, s := range sorted {
		ranked[i] = RankedPerformer{Rank: i + 1, PerformerStats: s}
	}
	return ranked
}

// ClampLimit applies the default and the ceiling to a requested top-N.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultTopN
	case limit > MaxTopN:
		return MaxTopN
	default:
		return limit
	}
}
