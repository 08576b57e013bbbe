package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

func TestCourse_LessonOrderAndTotal(t *testing.T) {
	c := &Course{
		ID: "c1",
		Modules: []Module{
			{ID: "m2", Position: 2, Lessons: []Lesson{{ID: "l4", Position: 1}}},
			{ID: "m1", Position: 1, Lessons: []Lesson{{ID: "l2", Position: 2}, {ID: "l1", Position: 1}, {ID: "l3", Position: 3}}},
		},
	}

	assert.Equal(t, 4, c.TotalLessons())
	assert.Equal(t, []shared.LessonID{"l1", "l2", "l3", "l4"}, c.LessonIDs())
	assert.True(t, c.HasLesson("l4"))
	assert.False(t, c.HasLesson("l9"))
	// Ordering works on copies.
	assert.Equal(t, "m2", c.Modules[0].ID)
}

func TestCourse_Empty(t *testing.T) {
	c := &Course{ID: "c1", Modules: []Module{{ID: "m1"}}}

	assert.Equal(t, 0, c.TotalLessons())
	assert.Empty(t, c.LessonIDs())
}
