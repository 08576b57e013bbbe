package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	mu   sync.Mutex
	runs int
	err  error
}

func (j *countingJob) Name() string        { return "counting" }
func (j *countingJob) Description() string { return "counts runs" }

func (j *countingJob) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs++
	return j.err
}

func (j *countingJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

// fakeLocker grants each name once until released.
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func (l *fakeLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	if l.err != nil {
		return func() {}, false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] {
		return func() {}, false, nil
	}
	l.held[name] = true
	return func() {
		l.mu.Lock()
		delete(l.held, name)
		l.mu.Unlock()
	}, true, nil
}

func jobInfo(t *testing.T, s *Scheduler, name string) JobInfo {
	t.Helper()
	for _, info := range s.ListJobs() {
		if info.Name == name {
			return info
		}
	}
	require.FailNow(t, "job not registered", name)
	return JobInfo{}
}

func TestRegister_Validates(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())

	assert.ErrorIs(t, s.Register(nil, "@hourly"), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{}, ""), ErrEmptySchedule)
	assert.ErrorIs(t, s.Register(&countingJob{}, "not a spec"), ErrInvalidSchedule)

	require.NoError(t, s.Register(&countingJob{}, "*/5 * * * *"))
	assert.ErrorIs(t, s.Register(&countingJob{}, "@hourly"), ErrJobAlreadyExists)
	assert.Len(t, s.ListJobs(), 1)
}

func TestRunNow_RecordsResult(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	job := &countingJob{}
	require.NoError(t, s.Register(job, "@daily"))

	res, err := s.RunNow(context.Background(), "counting")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, job.count())

	info := jobInfo(t, s, "counting")
	assert.Equal(t, int64(1), info.RunCount)
	assert.Equal(t, "@daily", info.Schedule)
	assert.Len(t, s.GetHistory(0), 1)
	assert.Equal(t, int64(1), s.GetMetrics().Snapshot().TotalSuccesses)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRunNow_FailureIsCounted(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	job := &countingJob{err: errors.New("boom")}
	require.NoError(t, s.Register(job, "@daily"))

	_, err := s.RunNow(context.Background(), "counting")
	assert.Error(t, err)

	info := jobInfo(t, s, "counting")
	assert.Equal(t, int64(1), info.FailCount)
	assert.Equal(t, int64(1), s.GetMetrics().Snapshot().TotalFailures)
}

func TestLock_SkipsWhenHeldElsewhere(t *testing.T) {
	locker := &fakeLocker{held: map[string]bool{"job:counting": true}}
	cfg := DefaultSchedulerConfig()
	cfg.Locker = locker
	s := NewScheduler(cfg)
	job := &countingJob{}
	require.NoError(t, s.Register(job, "@daily"))

	res, err := s.RunNow(context.Background(), "counting")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, job.count())

	info := jobInfo(t, s, "counting")
	assert.Equal(t, int64(1), info.SkipCount)

	// Released locks let the next run through.
	delete(locker.held, "job:counting")
	res, err = s.RunNow(context.Background(), "counting")
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, job.count())
	assert.Empty(t, locker.held)
}

func TestLock_ErrorFailsRun(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	cfg.Locker = &fakeLocker{err: errors.New("redis down")}
	s := NewScheduler(cfg)
	job := &countingJob{}
	require.NoError(t, s.Register(job, "@daily"))

	_, err := s.RunNow(context.Background(), "counting")
	assert.Error(t, err)
	assert.Zero(t, job.count())
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	require.NoError(t, s.Register(&countingJob{}, "@hourly"))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	info := jobInfo(t, s, "counting")
	assert.False(t, info.NextRun.IsZero())

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}
