package platform

import (
	"sort"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/catalog"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE DTOs
// ══════════════════════════════════════════════════════════════════════════════

// LessonDTO is the lesson lookup response.
type LessonDTO struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	ModuleID string `json:"module_id"`
}

// LessonRefDTO is a lesson inside a module.
type LessonRefDTO struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// ModuleDTO is an ordered group of lessons.
type ModuleDTO struct {
	ID       string         `json:"id"`
	Position int            `json:"position"`
	Lessons  []LessonRefDTO `json:"lessons"`
}

// CourseDTO is the course tree response.
type CourseDTO struct {
	ID           string      `json:"id"`
	InstructorID string      `json:"instructor_id"`
	Title        string      `json:"title"`
	Modules      []ModuleDTO `json:"modules"`
}

// MembershipDTO is the enrollment lookup response.
type MembershipDTO struct {
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id"`
	Status    string `json:"status"`
}

// Active reports whether the membership grants access.
func (m MembershipDTO) Active() bool {
	return m.Status == "active"
}

// ══════════════════════════════════════════════════════════════════════════════
// MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// toDomain converts the tree, ordering modules and lessons by position.
func (d CourseDTO) toDomain() (*catalog.Course, error) {
	if d.ID == "" {
		return nil, shared.ErrPlatformInvalidResponse
	}

	modules := make([]catalog.Module, 0, len(d.Modules))
	for _, m := range d.Modules {
		lessons := make([]catalog.Lesson, 0, len(m.Lessons))
		for _, l := range m.Lessons {
			if l.ID == "" {
				return nil, shared.ErrPlatformInvalidResponse
			}
			lessons = append(lessons, catalog.Lesson{
				ID:       shared.LessonID(l.ID),
				Position: l.Position,
			})
		}
		sort.SliceStable(lessons, func(i, j int) bool { return lessons[i].Position < lessons[j].Position })

		modules = append(modules, catalog.Module{
			ID:       m.ID,
			Position: m.Position,
			Lessons:  lessons,
		})
	}
	sort.SliceStable(modules, func(i, j int) bool { return modules[i].Position < modules[j].Position })

	return &catalog.Course{
		ID:           shared.CourseID(d.ID),
		InstructorID: shared.InstructorID(d.InstructorID),
		Title:        d.Title,
		Modules:      modules,
	}, nil
}
