package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/application/command"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/application/query"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/catalog"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/certificate"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/enrollment"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/progress"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/infrastructure/persistence/memory"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/timeutil"
)

var t0 = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

type issuerMock struct{ mock.Mock }

func (m *issuerMock) IssueIfEligible(ctx context.Context, id shared.EnrollmentID) (*certificate.Certificate, error) {
	args := m.Called(ctx, id)
	cert, _ := args.Get(0).(*certificate.Certificate)
	return cert, args.Error(1)
}

type rankerMock struct{ mock.Mock }

func (m *rankerMock) Handle(ctx context.Context, q query.GetTopPerformersQuery) (*query.TopPerformersDTO, error) {
	args := m.Called(ctx, q)
	dto, _ := args.Get(0).(*query.TopPerformersDTO)
	return dto, args.Error(1)
}

func completedEnrollment(t *testing.T, store *memory.Store, student shared.StudentID, course shared.CourseID) *enrollment.Enrollment {
	t.Helper()
	e := enrollment.NewEnrollment(student, course, 1, t0)
	done := t0.Add(time.Hour)
	e.CompletedAt = &done
	e.CompletedLessons = 1
	e.ProgressPercentage = decimal.NewFromInt(100)
	require.NoError(t, store.Enrollments().Create(context.Background(), e))
	return e
}

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE CERTIFICATES
// ══════════════════════════════════════════════════════════════════════════════

func TestReconcileCertificates_IssuesMissing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	e := completedEnrollment(t, store, "stu-1", "course-1")

	issuer := command.NewIssueCertificateHandler(
		store.Enrollments(),
		certificate.NewGenerator("key", "https://certs.example/c"),
		nil, timeutil.NewFixedClock(t0.Add(2*time.Hour)), nil,
	)
	job := NewReconcileCertificatesJob(store.Enrollments(), issuer, nil, ReconcileCertificatesConfig{})

	require.NoError(t, job.Run(ctx))

	got, err := store.Enrollments().GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, got.CertificateIssued)
	require.NotNil(t, job.LastStats())
	assert.Equal(t, 1, job.LastStats().Issued)

	// Second run finds nothing to do.
	require.NoError(t, job.Run(ctx))
	assert.Equal(t, 0, job.LastStats().Candidates)
}

func TestReconcileCertificates_ContinuesPastFailures(t *testing.T) {
	store := memory.NewStore()
	a := completedEnrollment(t, store, "stu-1", "course-1")
	b := completedEnrollment(t, store, "stu-2", "course-1")

	issuer := &issuerMock{}
	issuer.On("IssueIfEligible", mock.Anything, a.ID).Return(nil, errors.New("boom")).Once()
	issuer.On("IssueIfEligible", mock.Anything, b.ID).Return(&certificate.Certificate{Reference: "ref"}, nil).Once()

	job := NewReconcileCertificatesJob(store.Enrollments(), issuer, nil, ReconcileCertificatesConfig{})
	err := job.Run(context.Background())

	assert.Error(t, err)
	issuer.AssertExpectations(t)
	assert.Equal(t, 1, job.LastStats().Issued)
	assert.Equal(t, 1, job.LastStats().Failed)
}

func TestReconcileCertificates_RespectsFlag(t *testing.T) {
	store := memory.NewStore()
	completedEnrollment(t, store, "stu-1", "course-1")

	issuer := &issuerMock{}
	job := NewReconcileCertificatesJob(store.Enrollments(), issuer, nil, ReconcileCertificatesConfig{
		Enabled: func() bool { return false },
	})

	require.NoError(t, job.Run(context.Background()))
	issuer.AssertNotCalled(t, "IssueIfEligible", mock.Anything, mock.Anything)
}

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE ACTIVE ENROLLMENTS
// ══════════════════════════════════════════════════════════════════════════════

func TestRecomputeEnrollments_PicksUpCourseChanges(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	market := memory.NewMarketplace(store)
	market.PutCourse(catalog.Course{
		ID: "course-1", InstructorID: "inst-1",
		Modules: []catalog.Module{{ID: "m1", Lessons: []catalog.Lesson{{ID: "l1"}, {ID: "l2"}}}},
	})

	e := enrollment.NewEnrollment("stu-1", "course-1", 1, t0)
	require.NoError(t, store.Enrollments().Create(ctx, e))

	_, err := store.Progress().Upsert(ctx,
		progress.NewLessonProgress("stu-1", "l1", "course-1", t0),
		func(lp *progress.LessonProgress) error {
			lp.Apply(progress.Update{Status: progress.StatusCompleted}, t0)
			return nil
		})
	require.NoError(t, err)

	clock := timeutil.NewFixedClock(t0.Add(time.Hour))
	agg := command.NewAggregator(store.Enrollments(), store.Progress(), market, nil, nil, clock, nil, command.AggregatorConfig{})
	job := NewRecomputeEnrollmentsJob(store.Enrollments(), agg, nil, RecomputeEnrollmentsConfig{}, clock.Now)

	require.NoError(t, job.Run(ctx))

	got, err := store.Enrollments().GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalLessons)
	assert.Equal(t, 1, got.CompletedLessons)
	assert.True(t, decimal.NewFromInt(50).Equal(got.ProgressPercentage))
}

func TestRecomputeEnrollments_IgnoresStaleEnrollments(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	e := enrollment.NewEnrollment("stu-1", "course-1", 2, t0)
	require.NoError(t, store.Enrollments().Create(ctx, e))

	later := func() time.Time { return t0.Add(72 * time.Hour) }
	rec := &recomputerSpy{}
	job := NewRecomputeEnrollmentsJob(store.Enrollments(), rec, nil, RecomputeEnrollmentsConfig{Lookback: 24 * time.Hour}, later)

	require.NoError(t, job.Run(ctx))
	assert.Zero(t, rec.calls)
}

type recomputerSpy struct{ calls int }

func (r *recomputerSpy) Recompute(ctx context.Context, id shared.EnrollmentID) (*command.RecomputeResult, error) {
	r.calls++
	return &command.RecomputeResult{}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WARM ANALYTICS
// ══════════════════════════════════════════════════════════════════════════════

func TestWarmAnalytics_BypassesCacheForEveryLimit(t *testing.T) {
	ranker := &rankerMock{}
	for _, limit := range []int{10, 25} {
		ranker.On("Handle", mock.Anything, query.GetTopPerformersQuery{Limit: limit, SkipCache: true}).
			Return(&query.TopPerformersDTO{Limit: limit}, nil).Once()
	}

	job := NewWarmAnalyticsJob(ranker, []int{10, 25}, nil)
	require.NoError(t, job.Run(context.Background()))
	ranker.AssertExpectations(t)
}

func TestWarmAnalytics_ReportsFailures(t *testing.T) {
	ranker := &rankerMock{}
	ranker.On("Handle", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	job := NewWarmAnalyticsJob(ranker, nil, nil)
	assert.Error(t, job.Run(context.Background()))
}
