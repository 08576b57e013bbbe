package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func at(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 12, 0, 0, 0, time.UTC)
}

// ══════════════════════════════════════════════════════════════════════════════
// SUMMARY
// ══════════════════════════════════════════════════════════════════════════════

func TestSummarize(t *testing.T) {
	payments := []Payment{
		{Amount: d("19.99")},
		{Amount: d("0.01")},
		{Amount: d("80.10")},
	}
	enrollments := []EnrollmentFact{
		{StudentID: "s1", CourseID: "c1", Completed: true},
		{StudentID: "s1", CourseID: "c2"},
		{StudentID: "s2", CourseID: "c1"},
	}
	ratings := []Rating{{Value: 5}, {Value: 4}, {Value: 4}}

	s := Summarize("i1", payments, enrollments, ratings)

	assert.True(t, d("100.10").Equal(s.Revenue), "revenue %s", s.Revenue)
	assert.Equal(t, 2, s.DistinctStudents)
	assert.Equal(t, 3, s.TotalEnrollments)
	assert.Equal(t, 1, s.CompletedEnrollments)
	assert.Equal(t, 4.33, Present(s.AverageRating()))
	assert.Equal(t, 33.33, Present(s.CompletionRate()))
}

func TestSummarize_NewInstructorIsAllZeros(t *testing.T) {
	s := Summarize("i1", nil, nil, nil)

	assert.True(t, s.Revenue.IsZero())
	assert.Equal(t, 0, s.DistinctStudents)
	assert.Equal(t, 0.0, Present(s.AverageRating()))
	assert.Equal(t, 0.0, Present(s.CompletionRate()))
}

func TestSummarize_NoFloatDrift(t *testing.T) {
	payments := make([]Payment, 0, 10)
	for i := 0; i < 10; i++ {
		payments = append(payments, Payment{Amount: d("0.1")})
	}

	s := Summarize("i1", payments, nil, nil)

	assert.Equal(t, "1", s.Revenue.String())
}

// ══════════════════════════════════════════════════════════════════════════════
// MONTHLY SERIES
// ══════════════════════════════════════════════════════════════════════════════

func TestBuildMonthlySeries_Revenue(t *testing.T) {
	now := at(2025, time.May, 10)
	payments := []Payment{
		{Amount: d("100"), CompletedAt: at(2025, time.March, 3)},
		{Amount: d("250"), CompletedAt: at(2025, time.March, 28)},
		{Amount: d("50"), CompletedAt: at(2025, time.April, 1)},
		{Amount: d("999"), CompletedAt: at(2024, time.January, 1)},
	}

	s, err := BuildMonthlySeries(ScopeRevenue, PaymentPoints(payments), 6, now, FillSparse)
	require.NoError(t, err)

	require.Len(t, s.Buckets, 2)
	assert.Equal(t, "2025-03", s.Buckets[0].Label)
	assert.True(t, d("350").Equal(s.Buckets[0].Value))
	assert.Equal(t, 2, s.Buckets[0].Count)
	assert.Equal(t, "2025-04", s.Buckets[1].Label)
	assert.True(t, d("50").Equal(s.Buckets[1].Value))
	assert.Equal(t, FillSparse, s.Fill)
}

func TestBuildMonthlySeries_ZeroFill(t *testing.T) {
	now := at(2025, time.May, 10)
	payments := []Payment{
		{Amount: d("100"), CompletedAt: at(2025, time.March, 3)},
		{Amount: d("250"), CompletedAt: at(2025, time.March, 28)},
		{Amount: d("50"), CompletedAt: at(2025, time.April, 1)},
	}

	s, err := BuildMonthlySeries(ScopeRevenue, PaymentPoints(payments), 4, now, FillZero)
	require.NoError(t, err)

	labels := make([]string, 0, len(s.Buckets))
	for _, b := range s.Buckets {
		labels = append(labels, b.Label)
	}
	assert.Equal(t, []string{"2025-02", "2025-03", "2025-04", "2025-05"}, labels)
	assert.True(t, s.Buckets[0].Value.IsZero())
	assert.True(t, d("350").Equal(s.Buckets[1].Value))
	assert.True(t, d("50").Equal(s.Buckets[2].Value))
	assert.True(t, s.Buckets[3].Value.IsZero())
}

func TestBuildMonthlySeries_Counts(t *testing.T) {
	now := at(2025, time.January, 15)
	times := []time.Time{at(2024, time.December, 31), at(2025, time.January, 1), at(2025, time.January, 2)}

	s, err := BuildMonthlySeries(ScopeEnrollments, CountPoints(times), 2, now, FillSparse)
	require.NoError(t, err)

	require.Len(t, s.Buckets, 2)
	assert.Equal(t, "2024-12", s.Buckets[0].Label)
	assert.True(t, d("1").Equal(s.Buckets[0].Value))
	assert.Equal(t, "2025-01", s.Buckets[1].Label)
	assert.True(t, d("2").Equal(s.Buckets[1].Value))
}

func TestBuildMonthlySeries_EmptyWindow(t *testing.T) {
	s, err := BuildMonthlySeries(ScopeNewUsers, nil, 12, at(2025, time.May, 1), FillSparse)
	require.NoError(t, err)
	assert.Empty(t, s.Buckets)
	assert.NotNil(t, s.Buckets)
}

func TestBuildMonthlySeries_InvalidWindow(t *testing.T) {
	_, err := BuildMonthlySeries(ScopeRevenue, nil, 0, time.Now(), FillSparse)
	assert.ErrorIs(t, err, shared.ErrInvalidWindow)

	_, err = BuildMonthlySeries(ScopeRevenue, nil, MaxWindow+1, time.Now(), FillSparse)
	assert.True(t, shared.IsValidation(err))
}

func TestParseScope(t *testing.T) {
	for raw, want := range map[string]Scope{
		"revenue":     ScopeRevenue,
		"Enrollments": ScopeEnrollments,
		"new-users":   ScopeNewUsers,
		"new_users":   ScopeNewUsers,
	} {
		got, err := ParseScope(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseScope("refunds")
	assert.ErrorIs(t, err, shared.ErrInvalidScope)
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING
// ══════════════════════════════════════════════════════════════════════════════

func TestRankTopPerformers_StudentsBreakRevenueTies(t *testing.T) {
	stats := []PerformerStats{
		{InstructorID: "A", Revenue: d("500"), Students: 10},
		{InstructorID: "B", Revenue: d("500"), Students: 20},
		{InstructorID: "C", Revenue: d("900"), Students: 1},
	}

	ranked := RankTopPerformers(stats, 10)

	require.Len(t, ranked, 3)
	assert.Equal(t, shared.InstructorID("C"), ranked[0].InstructorID)
	assert.Equal(t, shared.InstructorID("B"), ranked[1].InstructorID)
	assert.Equal(t, shared.InstructorID("A"), ranked[2].InstructorID)
	assert.Equal(t, []int{1, 2, 3}, []int{ranked[0].Rank, ranked[1].Rank, ranked[2].Rank})
}

func TestRankTopPerformers_FullTiesAreDeterministic(t *testing.T) {
	a := []PerformerStats{
		{InstructorID: "z", Revenue: d("10.00"), Students: 2},
		{InstructorID: "m", Revenue: d("10"), Students: 2},
		{InstructorID: "a", Revenue: d("10.0"), Students: 2},
	}
	b := []PerformerStats{a[1], a[2], a[0]}

	first := RankTopPerformers(a, 0)
	second := RankTopPerformers(b, 0)

	assert.Equal(t, first, second)
	assert.Equal(t, shared.InstructorID("a"), first[0].InstructorID)
	assert.Equal(t, shared.InstructorID("z"), first[2].InstructorID)
	// Input is left untouched.
	assert.Equal(t, shared.InstructorID("z"), a[0].InstructorID)
}

func TestRankTopPerformers_Limit(t *testing.T) {
	stats := []PerformerStats{
		{InstructorID: "a", Revenue: d("1")},
		{InstructorID: "b", Revenue: d("2")},
		{InstructorID: "c", Revenue: d("3")},
	}

	ranked := RankTopPerformers(stats, 2)

	require.Len(t, ranked, 2)
	assert.Equal(t, shared.InstructorID("c"), ranked[0].InstructorID)
	assert.Empty(t, RankTopPerformers(nil, 5))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultTopN, ClampLimit(0))
	assert.Equal(t, 5, ClampLimit(5))
	assert.Equal(t, MaxTopN, ClampLimit(1000))
}
