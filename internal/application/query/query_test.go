package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/analytics"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/catalog"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/certificate"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/enrollment"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/progress"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/streak"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/infrastructure/persistence/memory"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/timeutil"
)

var now = time.Date(2025, time.May, 10, 12, 0, 0, 0, time.UTC)

func seededMarket(store *memory.Store) *memory.Marketplace {
	m := memory.NewMarketplace(store)
	m.AddInstructor("inst-a", "Ada")
	m.AddInstructor("inst-b", "Bo")
	m.PutCourse(catalog.Course{
		ID:           "course-1",
		InstructorID: "inst-a",
		Modules: []catalog.Module{
			{ID: "m1", Position: 0, Lessons: []catalog.Lesson{{ID: "l1", Position: 0}, {ID: "l2", Position: 1}}},
			{ID: "m2", Position: 1, Lessons: []catalog.Lesson{{ID: "l3", Position: 0}}},
		},
	})
	m.PutCourse(catalog.Course{ID: "course-2", InstructorID: "inst-b", Modules: []catalog.Module{{ID: "m", Lessons: []catalog.Lesson{{ID: "x1"}}}}})
	return m
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

func TestGetCourseProgress_EnrolledWithoutActivity(t *testing.T) {
	store := memory.NewStore()
	m := seededMarket(store)
	m.Enroll("stu-1", "course-1", now)

	h := NewGetCourseProgressHandler(store.Enrollments(), store.Progress(), m, nil, timeutil.NewFixedClock(now))
	dto, err := h.Handle(context.Background(), GetCourseProgressQuery{StudentID: "stu-1", CourseID: "course-1", IncludeLessons: true})
	require.NoError(t, err)

	assert.Equal(t, "not_started", dto.Status)
	assert.Equal(t, 0, dto.StatusCode)
	assert.Equal(t, "0.00", dto.ProgressPercentage)
	assert.Equal(t, 3, dto.TotalLessons)
	assert.Empty(t, dto.EnrollmentID)
	require.Len(t, dto.Lessons, 3)
	assert.Equal(t, []string{"l1", "l2", "l3"}, []string{dto.Lessons[0].LessonID, dto.Lessons[1].LessonID, dto.Lessons[2].LessonID})
}

func TestGetCourseProgress_NotEnrolled(t *testing.T) {
	store := memory.NewStore()
	m := seededMarket(store)

	h := NewGetCourseProgressHandler(store.Enrollments(), store.Progress(), m, nil, nil)
	_, err := h.Handle(context.Background(), GetCourseProgressQuery{StudentID: "stu-1", CourseID: "course-1"})
	assert.ErrorIs(t, err, shared.ErrEnrollmentNotFound)
}

func TestGetCourseProgress_Snapshot(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m := seededMarket(store)
	m.Enroll("stu-1", "course-1", now)
	gen := certificate.NewGenerator("k", "https://certs.example")

	score := 88.456
	_, err := store.Progress().Upsert(ctx, progress.NewLessonProgress("stu-1", "l2", "course-1", now), func(lp *progress.LessonProgress) error {
		lp.Apply(progress.Update{Status: progress.StatusCompleted, TimeSpentDelta: 30, QuizScore: &score}, now)
		return nil
	})
	require.NoError(t, err)

	e := enrollment.NewEnrollment("stu-1", "course-1", 3, now)
	require.NoError(t, store.Enrollments().Create(ctx, e))
	e.Recompute(enrollment.Tally{CompletedLessons: 1, TotalLessons: 3, TimeSpentMinutes: 30, AverageQuizScore: &score}, now)
	require.NoError(t, store.Enrollments().Update(ctx, e))

	h := NewGetCourseProgressHandler(store.Enrollments(), store.Progress(), m, gen, nil)
	dto, err := h.Handle(ctx, GetCourseProgressQuery{StudentID: "stu-1", CourseID: "course-1", IncludeLessons: true})
	require.NoError(t, err)

	assert.Equal(t, string(e.ID), dto.EnrollmentID)
	assert.Equal(t, "in_progress", dto.Status)
	assert.Equal(t, "33.33", dto.ProgressPercentage)
	require.NotNil(t, dto.AverageQuizScore)
	assert.Equal(t, 88.46, *dto.AverageQuizScore)
	assert.Nil(t, dto.Certificate)

	assert.Equal(t, "not_started", dto.Lessons[0].Status)
	assert.Equal(t, "completed", dto.Lessons[1].Status)
	assert.Equal(t, 2, dto.Lessons[1].StatusCode)
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK
// ══════════════════════════════════════════════════════════════════════════════

func TestGetStreak(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := timeutil.NewFixedClock(now)
	h := NewGetStreakHandler(store.Streaks(), clock)

	dto, err := h.Handle(ctx, GetStreakQuery{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, dto.CurrentStreak)
	assert.Empty(t, dto.LastActiveDate)

	today := shared.DateOf(now, time.UTC)
	_, err = store.Streaks().Update(ctx, "stu-1", func(s *streak.Streak) error {
		s.Credit(today.AddDays(-1), now)
		s.Credit(today, now)
		return nil
	})
	require.NoError(t, err)

	dto, err = h.Handle(ctx, GetStreakQuery{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, dto.CurrentStreak)
	assert.Equal(t, 2, dto.BestStreak)
	assert.True(t, dto.ActiveToday)
	assert.Equal(t, "2025-05-10", dto.LastActiveDate)

	clock.Advance(72 * time.Hour)
	dto, err = h.Handle(ctx, GetStreakQuery{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, dto.CurrentStreak, "a missed day breaks the displayed streak")
	assert.Equal(t, 2, dto.BestStreak)
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS
// ══════════════════════════════════════════════════════════════════════════════

func TestGetInstructorSummary_UsesCache(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m := seededMarket(store)
	m.Enroll("stu-1", "course-1", now)
	m.Enroll("stu-2", "course-1", now)
	m.AddPayment(analytics.Payment{ID: "p1", CourseID: "course-1", StudentID: "stu-1", Amount: decimal.RequireFromString("49.50"), CompletedAt: now})
	m.AddReview("course-1", 5)
	m.AddReview("course-1", 4)

	cache := memory.NewAnalyticsCache()
	h := NewGetInstructorSummaryHandler(m.Sources(), cache, AnalyticsOptions{}, nil)

	dto, err := h.Handle(ctx, GetInstructorSummaryQuery{InstructorID: "inst-a"})
	require.NoError(t, err)
	assert.False(t, dto.Cached)
	assert.Equal(t, "49.50", dto.TotalRevenue)
	assert.Equal(t, 2, dto.TotalStudents)
	assert.Equal(t, 4.5, dto.AverageRating)
	assert.Equal(t, 0.0, dto.CompletionRate)

	dto, err = h.Handle(ctx, GetInstructorSummaryQuery{InstructorID: "inst-a"})
	require.NoError(t, err)
	assert.True(t, dto.Cached)
	assert.Equal(t, "49.50", dto.TotalRevenue)
}

type failingLedger struct{ mock.Mock }

func (f *failingLedger) CompletedPayments(ctx context.Context, filter analytics.Filter) ([]analytics.Payment, error) {
	args := f.Called(filter.InstructorID)
	return nil, args.Error(0)
}

func TestGetInstructorSummary_SourceFailureIsSurfaced(t *testing.T) {
	store := memory.NewStore()
	m := seededMarket(store)
	ledger := &failingLedger{}
	boom := errors.New("ledger down")
	ledger.On("CompletedPayments", shared.InstructorID("inst-a")).Return(boom)

	sources := m.Sources()
	sources.Payments = ledger
	h := NewGetInstructorSummaryHandler(sources, nil, AnalyticsOptions{}, nil)

	_, err := h.Handle(context.Background(), GetInstructorSummaryQuery{InstructorID: "inst-a"})
	assert.ErrorIs(t, err, boom)
	ledger.AssertExpectations(t)
}

func TestGetMonthlySeries_FillPolicies(t *testing.T) {
	store := memory.NewStore()
	m := seededMarket(store)
	for i, p := range []struct {
		amount string
		at     time.Time
	}{
		{"100", time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)},
		{"250", time.Date(2025, time.March, 28, 0, 0, 0, 0, time.UTC)},
		{"50", time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)},
	} {
		m.AddPayment(analytics.Payment{ID: string(rune('a' + i)), CourseID: "course-1", Amount: decimal.RequireFromString(p.amount), CompletedAt: p.at})
	}

	zeroByDefault := false
	h := NewGetMonthlySeriesHandler(m.Sources(), AnalyticsOptions{ZeroFillByDefault: func() bool { return zeroByDefault }}, timeutil.NewFixedClock(now))
	ctx := context.Background()

	dto, err := h.Handle(ctx, GetMonthlySeriesQuery{Scope: "revenue", Window: 6})
	require.NoError(t, err)
	assert.Equal(t, "sparse", dto.Fill)
	require.Len(t, dto.Buckets, 2)
	assert.Equal(t, "2025-03", dto.Buckets[0].Month)
	assert.Equal(t, "350.00", dto.Buckets[0].Value)
	assert.Equal(t, "50.00", dto.Buckets[1].Value)

	dto, err = h.Handle(ctx, GetMonthlySeriesQuery{Scope: "revenue", Window: 6, Fill: "zero"})
	require.NoError(t, err)
	assert.Equal(t, "zero", dto.Fill)
	assert.Len(t, dto.Buckets, 6)

	zeroByDefault = true
	dto, err = h.Handle(ctx, GetMonthlySeriesQuery{Scope: "revenue", Window: 3})
	require.NoError(t, err)
	assert.Equal(t, "zero", dto.Fill)
	assert.Len(t, dto.Buckets, 3)

	dto, err = h.Handle(ctx, GetMonthlySeriesQuery{Scope: "revenue", Window: 3, InstructorID: "inst-b"})
	require.NoError(t, err)
	for _, b := range dto.Buckets {
		assert.Equal(t, "0.00", b.Value)
	}

	_, err = h.Handle(ctx, GetMonthlySeriesQuery{Scope: "revenue", Window: 37})
	assert.ErrorIs(t, err, shared.ErrInvalidWindow)

	_, err = h.Handle(ctx, GetMonthlySeriesQuery{Scope: "refunds"})
	assert.ErrorIs(t, err, shared.ErrInvalidScope)

	_, err = h.Handle(ctx, GetMonthlySeriesQuery{Scope: "revenue", Fill: "smooth"})
	assert.True(t, shared.IsValidation(err))
}

func TestGetMonthlySeries_NewUsers(t *testing.T) {
	store := memory.NewStore()
	m := seededMarket(store)
	m.AddUser("u1", time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC))
	m.AddUser("u2", time.Date(2025, time.May, 2, 0, 0, 0, 0, time.UTC))
	m.AddUser("u3", time.Date(2020, time.May, 2, 0, 0, 0, 0, time.UTC))

	h := NewGetMonthlySeriesHandler(m.Sources(), AnalyticsOptions{}, timeutil.NewFixedClock(now))
	dto, err := h.Handle(context.Background(), GetMonthlySeriesQuery{Scope: "new-users"})
	require.NoError(t, err)
	assert.Equal(t, 12, dto.Window)
	require.Len(t, dto.Buckets, 1)
	assert.Equal(t, "2", dto.Buckets[0].Value)
	assert.Equal(t, 2, dto.Buckets[0].Count)
}

func TestGetTopPerformers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m := seededMarket(store)
	m.AddInstructor("inst-c", "Cy")
	m.Enroll("stu-1", "course-1", now)
	m.Enroll("stu-2", "course-2", now)
	m.Enroll("stu-3", "course-2", now)
	m.AddPayment(analytics.Payment{ID: "p1", CourseID: "course-1", Amount: decimal.NewFromInt(100), CompletedAt: now})
	m.AddPayment(analytics.Payment{ID: "p2", CourseID: "course-2", Amount: decimal.NewFromInt(100), CompletedAt: now})

	cache := memory.NewAnalyticsCache()
	h := NewGetTopPerformersHandler(m, cache, AnalyticsOptions{}, nil)

	dto, err := h.Handle(ctx, GetTopPerformersQuery{})
	require.NoError(t, err)
	assert.Equal(t, 10, dto.Limit)
	require.Len(t, dto.Performers, 3)
	assert.Equal(t, "inst-b", dto.Performers[0].InstructorID, "revenue tie broken by students")
	assert.Equal(t, "inst-a", dto.Performers[1].InstructorID)
	assert.Equal(t, "inst-c", dto.Performers[2].InstructorID)
	assert.Equal(t, "0.00", dto.Performers[2].Revenue)

	dto, err = h.Handle(ctx, GetTopPerformersQuery{Limit: 1})
	require.NoError(t, err)
	require.Len(t, dto.Performers, 1)
	assert.Equal(t, 1, dto.Performers[0].Rank)

	dto, err = h.Handle(ctx, GetTopPerformersQuery{Limit: 1})
	require.NoError(t, err)
	assert.True(t, dto.Cached)

	dto, err = h.Handle(ctx, GetTopPerformersQuery{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, dto.Limit)

	_, err = h.Handle(ctx, GetTopPerformersQuery{Limit: -1})
	assert.ErrorIs(t, err, shared.ErrInvalidLimit)
}
