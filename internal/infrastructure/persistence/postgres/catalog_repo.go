package postgres

import (
	"context"
	"fmt"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/catalog"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG REPOSITORY
// Reads course structure and membership straight from the marketplace tables.
// ══════════════════════════════════════════════════════════════════════════════

// CatalogRepository implements catalog.Service for PostgreSQL.
type CatalogRepository struct {
	conn *Connection
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(conn *Connection) *CatalogRepository {
	return &CatalogRepository{conn: conn}
}

// LessonCourse returns the course owning a lesson.
func (r *CatalogRepository) LessonCourse(ctx context.Context, lessonID shared.LessonID) (shared.CourseID, error) {
	query := `
		SELECT m.course_id
		FROM lessons l
		JOIN course_modules m ON m.id = l.module_id
		WHERE l.id = $1
	`

	var courseID string
	if err := r.conn.QueryRow(ctx, query, string(lessonID)).Scan(&courseID); err != nil {
		if IsNoRows(err) {
			return "", shared.ErrLessonNotFound
		}
		return "", fmt.Errorf("failed to resolve lesson course: %w", err)
	}

	return shared.CourseID(courseID), nil
}

// Course loads the course with its modules and lessons in course order.
func (r *CatalogRepository) Course(ctx context.Context, courseID shared.CourseID) (*catalog.Course, error) {
	var course catalog.Course
	var instructorID string

	err := r.conn.QueryRow(ctx,
		`SELECT id, instructor_id, title FROM courses WHERE id = $1`,
		string(courseID),
	).Scan(&course.ID, &instructorID, &course.Title)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	course.InstructorID = shared.InstructorID(instructorID)

	query := `
		SELECT m.id, m.position, l.id, l.position
		FROM course_modules m
		LEFT JOIN lessons l ON l.module_id = m.id
		WHERE m.course_id = $1
		ORDER BY m.position, m.id, l.position, l.id
	`

	rows, err := r.conn.Query(ctx, query, string(courseID))
	if err != nil {
		return nil, fmt.Errorf("failed to load course structure: %w", err)
	}
	defer rows.Close()

	course.Modules = make([]catalog.Module, 0)
	for rows.Next() {
		var (
			moduleID       string
			modulePosition int
			lessonID       *string
			lessonPosition *int
		)
		if err := rows.Scan(&moduleID, &modulePosition, &lessonID, &lessonPosition); err != nil {
			return nil, fmt.Errorf("failed to scan course structure: %w", err)
		}

		if n := len(course.Modules); n == 0 || course.Modules[n-1].ID != moduleID {
			course.Modules = append(course.Modules, catalog.Module{
				ID:       moduleID,
				Position: modulePosition,
				Lessons:  make([]catalog.Lesson, 0),
			})
		}
		if lessonID == nil {
			continue
		}

		mod := &course.Modules[len(course.Modules)-1]
		lesson := catalog.Lesson{ID: shared.LessonID(*lessonID)}
		if lessonPosition != nil {
			lesson.Position = *lessonPosition
		}
		mod.Lessons = append(mod.Lessons, lesson)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read course structure: %w", err)
	}

	return &course, nil
}

// IsEnrolled reports whether the student holds an active enrollment.
func (r *CatalogRepository) IsEnrolled(ctx context.Context, studentID shared.StudentID, courseID shared.CourseID) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM course_enrollments
			WHERE student_id = $1 AND course_id = $2 AND status = 'active'
		)
	`

	var enrolled bool
	if err := r.conn.QueryRow(ctx, query, string(studentID), string(courseID)).Scan(&enrolled); err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}

	return enrolled, nil
}
