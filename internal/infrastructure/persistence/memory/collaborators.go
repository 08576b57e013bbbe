package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/analytics"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/catalog"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/enrollment"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MARKETPLACE
// Stands in for the marketplace services the engine reads from: course
// structure, enrollment membership, payments, reviews and users.
// ══════════════════════════════════════════════════════════════════════════════

// Marketplace is a seeded, in-memory marketplace.
type Marketplace struct {
	mu sync.RWMutex

	courses     map[shared.CourseID]*catalog.Course
	lessonOwner map[shared.LessonID]shared.CourseID
	members     map[courseKey]time.Time
	instructors map[shared.InstructorID]string
	payments    []analytics.Payment
	reviews     []analytics.Rating
	signUps     map[string]time.Time

	// progress, when set, supplies completion state for enrollment facts.
	progress *Store
}

// NewMarketplace creates an empty marketplace. store may be nil.
func NewMarketplace(store *Store) *Marketplace {
	return &Marketplace{
		courses:     make(map[shared.CourseID]*catalog.Course),
		lessonOwner: make(map[shared.LessonID]shared.CourseID),
		members:     make(map[courseKey]time.Time),
		instructors: make(map[shared.InstructorID]string),
		signUps:     make(map[string]time.Time),
		progress:    store,
	}
}

// Sources returns the marketplace as analytics sources.
func (m *Marketplace) Sources() analytics.Sources {
	return analytics.Sources{
		Payments:    m,
		Reviews:     m,
		Enrollments: m,
		Users:       m,
		Performance: m,
	}
}

// --- Seeding ---

// AddInstructor registers an instructor display name.
func (m *Marketplace) AddInstructor(id shared.InstructorID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instructors[id] = name
}

// PutCourse adds or replaces a course tree.
func (m *Marketplace) PutCourse(c catalog.Course) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.courses[c.ID]; ok {
		for _, id := range old.LessonIDs() {
			delete(m.lessonOwner, id)
		}
	}
	course := c
	m.courses[c.ID] = &course
	for _, id := range course.LessonIDs() {
		m.lessonOwner[id] = c.ID
	}
	if _, ok := m.instructors[c.InstructorID]; !ok && c.InstructorID != "" {
		m.instructors[c.InstructorID] = ""
	}
}

// Enroll records an active membership.
func (m *Marketplace) Enroll(studentID shared.StudentID, courseID shared.CourseID, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[courseKey{studentID, courseID}] = at
}

// AddPayment records a completed payment; the instructor is taken from the course.
func (m *Marketplace) AddPayment(p analytics.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.InstructorID == "" {
		if c, ok := m.courses[p.CourseID]; ok {
			p.InstructorID = c.InstructorID
		}
	}
	m.payments = append(m.payments, p)
}

// AddReview records a rating on a course.
func (m *Marketplace) AddReview(courseID shared.CourseID, value int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews = append(m.reviews, analytics.Rating{CourseID: courseID, Value: value})
}

// AddUser records a sign-up.
func (m *Marketplace) AddUser(id string, createdAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signUps[id] = createdAt
}

// --- catalog.Service ---

// LessonCourse implements catalog.Catalog.
func (m *Marketplace) LessonCourse(ctx context.Context, lessonID shared.LessonID) (shared.CourseID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	courseID, ok := m.lessonOwner[lessonID]
	if !ok {
		return "", shared.ErrLessonNotFound
	}
	return courseID, nil
}

// Course implements catalog.Catalog.
func (m *Marketplace) Course(ctx context.Context, courseID shared.CourseID) (*catalog.Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.courses[courseID]
	if !ok {
		return nil, shared.ErrCourseNotFound
	}
	course := *c
	course.Modules = make([]catalog.Module, len(c.Modules))
	for i, mod := range c.Modules {
		mod.Lessons = append([]catalog.Lesson(nil), mod.Lessons...)
		course.Modules[i] = mod
	}
	return &course, nil
}

// IsEnrolled implements catalog.Enrollments.
func (m *Marketplace) IsEnrolled(ctx context.Context, studentID shared.StudentID, courseID shared.CourseID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.members[courseKey{studentID, courseID}]
	return ok, nil
}

// --- analytics sources ---

// CompletedPayments implements analytics.PaymentLedger.
func (m *Marketplace) CompletedPayments(ctx context.Context, f analytics.Filter) ([]analytics.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]analytics.Payment, 0)
	for _, p := range m.payments {
		if f.InstructorID != "" && p.InstructorID != f.InstructorID {
			continue
		}
		if f.Range.IsValid() && !f.Range.Contains(p.CompletedAt) {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

// Ratings implements analytics.ReviewSource.
func (m *Marketplace) Ratings(ctx context.Context, instructorID shared.InstructorID) ([]analytics.Rating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]analytics.Rating, 0)
	for _, r := range m.reviews {
		if c, ok := m.courses[r.CourseID]; ok && c.InstructorID == instructorID {
			result = append(result, r)
		}
	}
	return result, nil
}

// Enrollments implements analytics.EnrollmentFacts.
func (m *Marketplace) Enrollments(ctx context.Context, f analytics.Filter) ([]analytics.EnrollmentFact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]analytics.EnrollmentFact, 0, len(m.members))
	for key, at := range m.members {
		c, ok := m.courses[key.course]
		if !ok {
			continue
		}
		if f.InstructorID != "" && c.InstructorID != f.InstructorID {
			continue
		}
		if f.Range.IsValid() && !f.Range.Contains(at) {
			continue
		}
		result = append(result, analytics.EnrollmentFact{
			StudentID:    key.student,
			CourseID:     key.course,
			InstructorID: c.InstructorID,
			EnrolledAt:   at,
			Completed:    m.completed(ctx, key),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EnrolledAt.Before(result[j].EnrolledAt) })
	return result, nil
}

func (m *Marketplace) completed(ctx context.Context, key courseKey) bool {
	if m.progress == nil {
		return false
	}
	e, err := m.progress.Enrollments().GetByStudentCourse(ctx, key.student, key.course)
	return err == nil && e.IsCompleted()
}

// SignUps implements analytics.UserDirectory.
func (m *Marketplace) SignUps(ctx context.Context, r shared.TimeRange) ([]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]time.Time, 0, len(m.signUps))
	for _, at := range m.signUps {
		if r.IsValid() && !r.Contains(at) {
			continue
		}
		result = append(result, at)
	}
	return result, nil
}

// PerformerStats implements analytics.PerformanceSource: revenue from
// completed payments and distinct enrolled students, per instructor.
func (m *Marketplace) PerformerStats(ctx context.Context) ([]analytics.PerformerStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	revenue := make(map[shared.InstructorID]decimal.Decimal, len(m.instructors))
	students := make(map[shared.InstructorID]map[shared.StudentID]struct{}, len(m.instructors))

	for _, p := range m.payments {
		revenue[p.InstructorID] = revenue[p.InstructorID].Add(p.Amount)
	}
	for key := range m.members {
		c, ok := m.courses[key.course]
		if !ok {
			continue
		}
		if students[c.InstructorID] == nil {
			students[c.InstructorID] = make(map[shared.StudentID]struct{})
		}
		students[c.InstructorID][key.student] = struct{}{}
	}

	result := make([]analytics.PerformerStats, 0, len(m.instructors))
	for id, name := range m.instructors {
		result = append(result, analytics.PerformerStats{
			InstructorID: id,
			Name:         name,
			Revenue:      revenue[id],
			Students:     len(students[id]),
		})
	}
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func sortEnrollments(list []*enrollment.Enrollment, at func(*enrollment.Enrollment) time.Time) {
	sort.Slice(list, func(i, j int) bool {
		ti, tj := at(list[i]), at(list[j])
		if ti.Equal(tj) {
			return list[i].ID < list[j].ID
		}
		return ti.Before(tj)
	})
}

func truncate(list []*enrollment.Enrollment, limit int) []*enrollment.Enrollment {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}
