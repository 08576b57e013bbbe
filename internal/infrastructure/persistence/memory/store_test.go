package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/analytics"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/catalog"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/enrollment"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/progress"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/streak"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func TestProgressUpsert_SerializesPerKey(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Progress()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Upsert(ctx,
				progress.NewLessonProgress("s1", "l1", "c1", t0),
				func(lp *progress.LessonProgress) error {
					lp.Apply(progress.Update{Status: progress.StatusInProgress, TimeSpentDelta: 2}, t0)
					return nil
				})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	lp, err := repo.Get(ctx, "s1", "l1")
	require.NoError(t, err)
	assert.Equal(t, 100, lp.TimeSpentMinutes)
	assert.Equal(t, progress.StatusInProgress, lp.Status)
}

func TestProgressStats(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Progress()
	score := 80.0

	for _, u := range []struct {
		lesson shared.LessonID
		update progress.Update
	}{
		{"l1", progress.Update{Status: progress.StatusCompleted, TimeSpentDelta: 10, QuizScore: &score}},
		{"l2", progress.Update{Status: progress.StatusInProgress, TimeSpentDelta: 5}},
		{"other", progress.Update{Status: progress.StatusCompleted}},
	} {
		update := u.update
		_, err := repo.Upsert(ctx, progress.NewLessonProgress("s1", u.lesson, "c1", t0), func(lp *progress.LessonProgress) error {
			lp.Apply(update, t0)
			return nil
		})
		require.NoError(t, err)
	}

	stats, err := repo.Stats(ctx, "s1", []shared.LessonID{"l1", "l2", "l3", "l1"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CompletedLessons)
	assert.Equal(t, 15, stats.TimeSpentMinutes)
	require.NotNil(t, stats.AverageQuizScore())
	assert.Equal(t, 80.0, *stats.AverageQuizScore())

	_, err = repo.Get(ctx, "s1", "l3")
	assert.ErrorIs(t, err, shared.ErrLessonProgressAbsent)
}

func TestEnrollmentUpdate_RejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Enrollments()

	e := enrollment.NewEnrollment("s1", "c1", 4, t0)
	require.NoError(t, repo.Create(ctx, e))
	assert.ErrorIs(t, repo.Create(ctx, enrollment.NewEnrollment("s1", "c1", 4, t0)), shared.ErrEnrollmentExists)

	a, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	b, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)

	a.Recompute(enrollment.Tally{CompletedLessons: 1, TotalLessons: 4}, t0)
	require.NoError(t, repo.Update(ctx, a))

	b.Recompute(enrollment.Tally{CompletedLessons: 2, TotalLessons: 4}, t0)
	assert.ErrorIs(t, repo.Update(ctx, b), shared.ErrEnrollmentConflict)

	stored, err := repo.GetByStudentCourse(ctx, "s1", "c1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(25).Equal(stored.ProgressPercentage))
}

func TestSetCertificate_OnlyOneWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Enrollments()

	e := enrollment.NewEnrollment("s1", "c1", 1, t0)
	require.NoError(t, repo.Create(ctx, e))

	won, err := repo.SetCertificate(ctx, e.ID, "CERT-X", t0)
	require.NoError(t, err)
	assert.False(t, won, "incomplete enrollments are not eligible")

	e.Recompute(enrollment.Tally{CompletedLessons: 1, TotalLessons: 1}, t0)
	require.NoError(t, repo.Update(ctx, e))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.SetCertificate(ctx, e.ID, "CERT-X", t0)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	stored, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, stored.CertificateIssued)

	pending, err := repo.ListCompletedWithoutCertificate(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStreakUpdate_CreatesOnFirstUse(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Streaks()

	_, err := repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, shared.ErrStreakNotFound)

	day := shared.DateOf(t0, time.UTC)
	s, err := repo.Update(ctx, "s1", func(s *streak.Streak) error {
		s.Credit(day, t0)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Current)

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Best)
}

func TestMarketplace_Sources(t *testing.T) {
	ctx := context.Background()
	m := NewMarketplace(NewStore())
	m.AddInstructor("i1", "Ada")
	m.PutCourse(catalog.Course{
		ID:           "c1",
		InstructorID: "i1",
		Modules: []catalog.Module{
			{ID: "m1", Lessons: []catalog.Lesson{{ID: "l1"}, {ID: "l2", Position: 1}}},
		},
	})
	m.Enroll("s1", "c1", t0)
	m.Enroll("s2", "c1", t0)
	m.AddPayment(analytics.Payment{ID: "p1", CourseID: "c1", StudentID: "s1", Amount: decimal.NewFromInt(100), CompletedAt: t0})

	courseID, err := m.LessonCourse(ctx, "l2")
	require.NoError(t, err)
	assert.Equal(t, shared.CourseID("c1"), courseID)

	_, err = m.LessonCourse(ctx, "nope")
	assert.ErrorIs(t, err, shared.ErrLessonNotFound)

	ok, err := m.IsEnrolled(ctx, "s1", "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	payments, err := m.CompletedPayments(ctx, analytics.Filter{InstructorID: "i1"})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, shared.InstructorID("i1"), payments[0].InstructorID)

	stats, err := m.PerformerStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].Students)
	assert.True(t, decimal.NewFromInt(100).Equal(stats[0].Revenue))
}
