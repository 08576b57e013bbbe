package enrollment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

func TestComputePercentage(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		total     int
		want      string
	}{
		{"zero lessons", 0, 0, "0"},
		{"zero lessons with stray completions", 3, 0, "0"},
		{"none completed", 0, 3, "0"},
		{"one third", 1, 3, "33.33"},
		{"two thirds rounds half up", 2, 3, "66.67"},
		{"half", 1, 2, "50"},
		{"all", 3, 3, "100"},
		{"more than total", 4, 3, "100"},
		{"never rounds to 100 early", 19999, 20000, "99.99"},
		{"tiny fraction", 1, 30000, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputePercentage(tt.completed, tt.total)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestRecompute_DrivesToCompletedOnce(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	e := NewEnrollment("s1", "c1", 3, start)
	assert.Equal(t, StateNotStarted, e.State())

	tr := e.Recompute(Tally{CompletedLessons: 1, TotalLessons: 3}, start.Add(time.Minute))
	assert.Equal(t, StateNotStarted, tr.From)
	assert.Equal(t, StateInProgress, tr.To)
	assert.True(t, tr.Changed)
	assert.False(t, tr.BecameCompleted)
	assert.Nil(t, e.CompletedAt)

	doneAt := start.Add(2 * time.Minute)
	tr = e.Recompute(Tally{CompletedLessons: 3, TotalLessons: 3}, doneAt)
	require.True(t, tr.BecameCompleted)
	assert.Equal(t, StateCompleted, e.State())
	assert.True(t, e.ProgressPercentage.Equal(Hundred))
	assert.Equal(t, doneAt, *e.CompletedAt)

	again := e.Recompute(Tally{CompletedLessons: 3, TotalLessons: 3}, doneAt.Add(time.Hour))
	assert.False(t, again.BecameCompleted)
	assert.False(t, again.Changed)
	assert.Equal(t, doneAt, *e.CompletedAt)
	assert.Equal(t, doneAt.Add(time.Hour), e.LastAccessedAt)
}

func TestRecompute_CompletedIsTerminal(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	e := NewEnrollment("s1", "c1", 2, now)
	e.Recompute(Tally{CompletedLessons: 2, TotalLessons: 2}, now)
	completedAt := *e.CompletedAt

	// The course grows after completion.
	tr := e.Recompute(Tally{CompletedLessons: 2, TotalLessons: 4}, now.Add(time.Hour))

	assert.Equal(t, StateCompleted, tr.To)
	assert.True(t, e.ProgressPercentage.Equal(Hundred))
	assert.Equal(t, completedAt, *e.CompletedAt)
	assert.Equal(t, 4, e.TotalLessons)
}

func TestRecompute_ZeroLessonCourse(t *testing.T) {
	now := time.Now()
	e := NewEnrollment("s1", "c1", 0, now)

	tr := e.Recompute(Tally{TotalLessons: 0}, now)

	assert.True(t, e.ProgressPercentage.IsZero())
	assert.False(t, tr.BecameCompleted)
	assert.Equal(t, StateNotStarted, e.State())
}

func TestRecompute_TracksTimeAndQuiz(t *testing.T) {
	now := time.Now()
	e := NewEnrollment("s1", "c1", 4, now)
	avg := 85.5

	tr := e.Recompute(Tally{CompletedLessons: 1, TotalLessons: 4, TimeSpentMinutes: 42, AverageQuizScore: &avg}, now)

	assert.True(t, tr.Changed)
	assert.Equal(t, 42, e.TimeSpentMinutes)
	assert.Equal(t, 85.5, *e.AverageQuizScore)
	assert.True(t, decimal.NewFromInt(25).Equal(e.ProgressPercentage))
}

func TestAttachCertificate(t *testing.T) {
	now := time.Now()
	e := NewEnrollment("s1", "c1", 1, now)

	err := e.AttachCertificate("CERT-1", now)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	e.Recompute(Tally{CompletedLessons: 1, TotalLessons: 1}, now)
	require.NoError(t, e.AttachCertificate("CERT-1", now))
	assert.True(t, e.CertificateIssued)
	assert.Equal(t, "CERT-1", *e.CertificateRef)

	assert.Error(t, e.AttachCertificate("CERT-2", now))
	assert.Equal(t, "CERT-1", *e.CertificateRef)
}

func TestStateCodes(t *testing.T) {
	assert.Equal(t, 0, StateNotStarted.Code())
	assert.Equal(t, 1, StateInProgress.Code())
	assert.Equal(t, 2, StateCompleted.Code())
}
