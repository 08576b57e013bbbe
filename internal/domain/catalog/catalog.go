// Package catalog defines the read-only view of course structure and
// enrollment membership owned by the marketplace's enrollment-lifecycle
// service. The progress engine never writes through these contracts.
package catalog

import (
	"context"
	"sort"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// Lesson is a lesson's position in the course tree.
type Lesson struct {
	ID       shared.LessonID `json:"id"`
	Position int             `json:"position"`
}

// Module is an ordered group of lessons.
type Module struct {
	ID       string   `json:"id"`
	Position int      `json:"position"`
	Lessons  []Lesson `json:"lessons"`
}

// Course is the structure the progress percentage is computed against.
type Course struct {
	ID           shared.CourseID     `json:"id"`
	InstructorID shared.InstructorID `json:"instructor_id"`
	Title        string              `json:"title"`
	Modules      []Module            `json:"modules"`
}

// TotalLessons is the sum of lesson counts across modules, the denominator of
// every progress percentage on this course.
func (c *Course) TotalLessons() int {
	total := 0
	for _, m := range c.Modules {
		total += len(m.Lessons)
	}
	return total
}

// LessonIDs returns lesson IDs in course order (module position, then lesson
// position).
func (c *Course) LessonIDs() []shared.LessonID {
	modules := make([]Module, len(c.Modules))
	copy(modules, c.Modules)
	sort.SliceStable(modules, func(i, j int) bool { return modules[i].Position < modules[j].Position })

	ids := make([]shared.LessonID, 0, c.TotalLessons())
	for _, m := range modules {
		lessons := make([]Lesson, len(m.Lessons))
		copy(lessons, m.Lessons)
		sort.SliceStable(lessons, func(i, j int) bool { return lessons[i].Position < lessons[j].Position })
		for _, l := range lessons {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

// HasLesson reports whether the lesson belongs to the course.
func (c *Course) HasLesson(id shared.LessonID) bool {
	for _, m := range c.Modules {
		for _, l := range m.Lessons {
			if l.ID == id {
				return true
			}
		}
	}
	return false
}

// Catalog resolves course structure.
type Catalog interface {
	// LessonCourse returns the course owning a lesson.
	// Returns ErrLessonNotFound for unknown lessons.
	LessonCourse(ctx context.Context, lessonID shared.LessonID) (shared.CourseID, error)

	// Course returns the course tree.
	// Returns ErrCourseNotFound for unknown courses.
	Course(ctx context.Context, courseID shared.CourseID) (*Course, error)
}

// Enrollments answers membership questions.
type Enrollments interface {
	// IsEnrolled reports whether the student holds an active enrollment.
	IsEnrolled(ctx context.Context, studentID shared.StudentID, courseID shared.CourseID) (bool, error)
}

// Service is the whole enrollment-lifecycle collaborator.
type Service interface {
	Catalog
	Enrollments
}
