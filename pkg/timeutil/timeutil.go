// Package timeutil provides calendar helpers for a configurable business timezone.
// Streak days and monthly analytics buckets are both calendar-based, so every
// day and month boundary in the service is computed here.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

var (
	mu       sync.RWMutex
	location = time.UTC
)

// SetLocation sets the timezone used for calendar boundaries.
func SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	mu.Lock()
	location = loc
	mu.Unlock()
}

// Location returns the timezone used for calendar boundaries.
func Location() *time.Location {
	mu.RLock()
	defer mu.RUnlock()
	return location
}

// LoadLocation resolves an IANA zone name, treating "" and "UTC" as UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timeutil: unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// Clock abstracts time.Now so handlers can be tested at fixed instants.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock is a settable clock for tests.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixedClock creates a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

// Now implements Clock.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// ══════════════════════════════════════════════════════════════════════════════
// DAYS
// ══════════════════════════════════════════════════════════════════════════════

// StartOfDay returns local midnight of t in the configured location.
func StartOfDay(t time.Time) time.Time {
	l := t.In(Location())
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, l.Location())
}

// IsSameDay checks if two times fall on the same calendar day.
func IsSameDay(t1, t2 time.Time) bool {
	a1, a2 := t1.In(Location()), t2.In(Location())
	return a1.Year() == a2.Year() && a1.YearDay() == a2.YearDay()
}

// DaysBetween returns the signed number of calendar days from t1 to t2.
func DaysBetween(t1, t2 time.Time) int {
	y1, m1, d1 := t1.In(Location()).Date()
	y2, m2, d2 := t2.In(Location()).Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// ══════════════════════════════════════════════════════════════════════════════
// MONTHS
// ══════════════════════════════════════════════════════════════════════════════

// MonthLayout is the label format of a monthly bucket.
const MonthLayout = "2006-01"

// StartOfMonth returns the first instant of t's month in the configured location.
func StartOfMonth(t time.Time) time.Time {
	l := t.In(Location())
	return time.Date(l.Year(), l.Month(), 1, 0, 0, 0, 0, l.Location())
}

// AddMonths shifts a month start by n months. Only safe on month starts, where
// day-of-month normalization cannot overflow.
func AddMonths(monthStart time.Time, n int) time.Time {
	return monthStart.AddDate(0, n, 0)
}

// TrailingMonths returns [from, to) covering the n most recent calendar months,
// the month containing now included.
func TrailingMonths(now time.Time, n int) (from, to time.Time) {
	current := StartOfMonth(now)
	return AddMonths(current, -(n - 1)), AddMonths(current, 1)
}

// MonthKey returns the year and month of t in the configured location.
func MonthKey(t time.Time) (int, time.Month) {
	l := t.In(Location())
	return l.Year(), l.Month()
}

// FormatMonth formats a month label such as "2025-03".
func FormatMonth(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}
