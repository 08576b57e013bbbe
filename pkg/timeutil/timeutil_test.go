package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysBetween_UsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	SetLocation(loc)
	defer SetLocation(time.UTC)

	// 20:00 UTC on the 1st is already the 2nd at UTC+5.
	a := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	b := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, DaysBetween(a, b))
	assert.False(t, IsSameDay(a, b))
}

func TestDaysBetween_Signed(t *testing.T) {
	a := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	b := time.Date(2025, 3, 8, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, -2, DaysBetween(a, b))
	assert.Equal(t, 2, DaysBetween(b, a))
}

func TestTrailingMonths(t *testing.T) {
	now := time.Date(2025, 4, 17, 9, 30, 0, 0, time.UTC)

	from, to := TrailingMonths(now, 3)

	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), to)
}

func TestTrailingMonths_CrossesYear(t *testing.T) {
	now := time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)

	from, to := TrailingMonths(now, 2)

	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), to)
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = LoadLocation("Not/AZone")
	assert.Error(t, err)
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	c := NewFixedClock(start)

	c.Advance(36 * time.Hour)

	assert.Equal(t, start.Add(36*time.Hour), c.Now())
	assert.Equal(t, "2025-03", FormatMonth(MonthKey(start)))
}
