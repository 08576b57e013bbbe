// Package memory provides in-process implementations of the progress store
// and its collaborators. They honor the same atomicity contracts as the
// PostgreSQL implementations and back tests and local development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/enrollment"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/progress"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store holds every table of the progress engine.
type Store struct {
	mu sync.RWMutex

	lessons     map[lessonKey]*progress.LessonProgress
	enrollments map[shared.EnrollmentID]*enrollment.Enrollment
	byStudent   map[courseKey]shared.EnrollmentID
	streaks     map[shared.StudentID]*streak.Streak

	// Row locks for read-modify-write cycles.
	locks keyedMutex
}

type lessonKey struct {
	student shared.StudentID
	lesson  shared.LessonID
}

type courseKey struct {
	student shared.StudentID
	course  shared.CourseID
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		lessons:     make(map[lessonKey]*progress.LessonProgress),
		enrollments: make(map[shared.EnrollmentID]*enrollment.Enrollment),
		byStudent:   make(map[courseKey]shared.EnrollmentID),
		streaks:     make(map[shared.StudentID]*streak.Streak),
	}
}

// Progress returns the lesson progress repository.
func (s *Store) Progress() progress.Repository { return (*progressRepo)(s) }

// Enrollments returns the enrollment repository.
func (s *Store) Enrollments() enrollment.Repository { return (*enrollmentRepo)(s) }

// Streaks returns the streak repository.
func (s *Store) Streaks() streak.Repository { return (*streakRepo)(s) }

// keyedMutex hands out one mutex per key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

type progressRepo Store

func (r *progressRepo) Get(ctx context.Context, studentID shared.StudentID, lessonID shared.LessonID) (*progress.LessonProgress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lp, ok := r.lessons[lessonKey{studentID, lessonID}]
	if !ok {
		return nil, shared.ErrLessonProgressAbsent
	}
	return cloneLessonProgress(lp), nil
}

func (r *progressRepo) Upsert(ctx context.Context, initial *progress.LessonProgress, mutate progress.MutateFunc) (*progress.LessonProgress, error) {
	key := lessonKey{initial.StudentID, initial.LessonID}
	unlock := r.locks.lock("lesson:" + string(key.student) + "/" + string(key.lesson))
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	current, ok := r.lessons[key]
	r.mu.RUnlock()

	var working *progress.LessonProgress
	if ok {
		working = cloneLessonProgress(current)
	} else {
		working = cloneLessonProgress(initial)
	}

	if err := mutate(working); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.lessons[key] = cloneLessonProgress(working)
	r.mu.Unlock()

	return working, nil
}

func (r *progressRepo) ListForLessons(ctx context.Context, studentID shared.StudentID, lessonIDs []shared.LessonID) ([]*progress.LessonProgress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*progress.LessonProgress, 0, len(lessonIDs))
	for _, id := range lessonIDs {
		if lp, ok := r.lessons[lessonKey{studentID, id}]; ok {
			result = append(result, cloneLessonProgress(lp))
		}
	}
	return result, nil
}

func (r *progressRepo) Stats(ctx context.Context, studentID shared.StudentID, lessonIDs []shared.LessonID) (progress.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats progress.Stats
	seen := make(map[shared.LessonID]struct{}, len(lessonIDs))
	for _, id := range lessonIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if lp, ok := r.lessons[lessonKey{studentID, id}]; ok {
			stats.Add(lp)
		}
	}
	return stats, nil
}

func cloneLessonProgress(lp *progress.LessonProgress) *progress.LessonProgress {
	c := *lp
	if lp.CompletedAt != nil {
		t := *lp.CompletedAt
		c.CompletedAt = &t
	}
	if lp.QuizScore != nil {
		q := *lp.QuizScore
		c.QuizScore = &q
	}
	return &c
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENTS
// ══════════════════════════════════════════════════════════════════════════════

type enrollmentRepo Store

func (r *enrollmentRepo) Create(ctx context.Context, e *enrollment.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := courseKey{e.StudentID, e.CourseID}
	if _, ok := r.byStudent[key]; ok {
		return shared.ErrEnrollmentExists
	}
	if _, ok := r.enrollments[e.ID]; ok {
		return shared.ErrEnrollmentExists
	}

	e.Version = 1
	r.enrollments[e.ID] = cloneEnrollment(e)
	r.byStudent[key] = e.ID
	return nil
}

func (r *enrollmentRepo) GetByID(ctx context.Context, id shared.EnrollmentID) (*enrollment.Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.enrollments[id]
	if !ok {
		return nil, shared.ErrEnrollmentNotFound
	}
	return cloneEnrollment(e), nil
}

func (r *enrollmentRepo) GetByStudentCourse(ctx context.Context, studentID shared.StudentID, courseID shared.CourseID) (*enrollment.Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byStudent[courseKey{studentID, courseID}]
	if !ok {
		return nil, shared.ErrEnrollmentNotFound
	}
	return cloneEnrollment(r.enrollments[id]), nil
}

func (r *enrollmentRepo) Update(ctx context.Context, e *enrollment.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.enrollments[e.ID]
	if !ok {
		return shared.ErrEnrollmentNotFound
	}
	if stored.Version != e.Version {
		return shared.ErrEnrollmentConflict
	}

	next := cloneEnrollment(e)
	next.CertificateIssued = stored.CertificateIssued
	next.CertificateRef = stored.CertificateRef
	next.CertificateIssuedAt = stored.CertificateIssuedAt
	next.Version = stored.Version + 1

	r.enrollments[e.ID] = next
	e.Version = next.Version
	return nil
}

func (r *enrollmentRepo) SetCertificate(ctx context.Context, id shared.EnrollmentID, ref string, issuedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.enrollments[id]
	if !ok {
		return false, shared.ErrEnrollmentNotFound
	}

	next := cloneEnrollment(stored)
	if err := next.AttachCertificate(ref, issuedAt); err != nil {
		return false, nil
	}
	next.Version = stored.Version + 1
	r.enrollments[id] = next
	return true, nil
}

func (r *enrollmentRepo) ListCompletedWithoutCertificate(ctx context.Context, limit int) ([]*enrollment.Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*enrollment.Enrollment, 0)
	for _, e := range r.enrollments {
		if e.CanIssueCertificate() {
			result = append(result, cloneEnrollment(e))
		}
	}
	sortEnrollments(result, func(e *enrollment.Enrollment) time.Time { return *e.CompletedAt })
	return truncate(result, limit), nil
}

func (r *enrollmentRepo) ListActiveSince(ctx context.Context, since time.Time, limit int) ([]*enrollment.Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*enrollment.Enrollment, 0)
	for _, e := range r.enrollments {
		if !e.IsCompleted() && !e.LastAccessedAt.Before(since) {
			result = append(result, cloneEnrollment(e))
		}
	}
	sortEnrollments(result, func(e *enrollment.Enrollment) time.Time { return e.LastAccessedAt })
	return truncate(result, limit), nil
}

func cloneEnrollment(e *enrollment.Enrollment) *enrollment.Enrollment {
	c := *e
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		c.CompletedAt = &t
	}
	if e.AverageQuizScore != nil {
		q := *e.AverageQuizScore
		c.AverageQuizScore = &q
	}
	if e.CertificateRef != nil {
		ref := *e.CertificateRef
		c.CertificateRef = &ref
	}
	if e.CertificateIssuedAt != nil {
		t := *e.CertificateIssuedAt
		c.CertificateIssuedAt = &t
	}
	return &c
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAKS
// ══════════════════════════════════════════════════════════════════════════════

type streakRepo Store

func (r *streakRepo) Get(ctx context.Context, studentID shared.StudentID) (*streak.Streak, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.streaks[studentID]
	if !ok {
		return nil, shared.ErrStreakNotFound
	}
	c := *s
	return &c, nil
}

func (r *streakRepo) Update(ctx context.Context, studentID shared.StudentID, fn func(s *streak.Streak) error) (*streak.Streak, error) {
	unlock := r.locks.lock("streak:" + string(studentID))
	defer unlock()

	r.mu.RLock()
	current, ok := r.streaks[studentID]
	r.mu.RUnlock()

	working := streak.New(studentID)
	if ok {
		c := *current
		working = &c
	}

	if err := fn(working); err != nil {
		return nil, err
	}

	stored := *working
	r.mu.Lock()
	r.streaks[studentID] = &stored
	r.mu.Unlock()

	return working, nil
}
