// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Identifiers come from the marketplace (UUIDs for users, numeric or slug ids
// for catalog records), so only the shape is checked here.
var idRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-:.]{0,127}$`)

// StudentID identifies a learner, as supplied by the identity collaborator.
type StudentID string

// IsValid checks the identifier shape.
func (s StudentID) IsValid() bool { return idRegex.MatchString(string(s)) }

// String returns the string representation.
func (s StudentID) String() string { return string(s) }

// NewStudentID creates a new StudentID with validation.
func NewStudentID(id string) (StudentID, error) {
	sid := StudentID(strings.TrimSpace(id))
	if !sid.IsValid() {
		return "", NewDomainError("shared", "NewStudentID", ErrInvalidID, "invalid student ID format")
	}
	return sid, nil
}

// CourseID identifies a course in the catalog.
type CourseID string

// IsValid checks the identifier shape.
func (c CourseID) IsValid() bool { return idRegex.MatchString(string(c)) }

// String returns the string representation.
func (c CourseID) String() string { return string(c) }

// NewCourseID creates a new CourseID with validation.
func NewCourseID(id string) (CourseID, error) {
	cid := CourseID(strings.TrimSpace(id))
	if !cid.IsValid() {
		return "", NewDomainError("shared", "NewCourseID", ErrInvalidID, "invalid course ID format")
	}
	return cid, nil
}

// LessonID identifies a lesson inside a course module.
type LessonID string

// IsValid checks the identifier shape.
func (l LessonID) IsValid() bool { return idRegex.MatchString(string(l)) }

// String returns the string representation.
func (l LessonID) String() string { return string(l) }

// NewLessonID creates a new LessonID with validation.
func NewLessonID(id string) (LessonID, error) {
	lid := LessonID(strings.TrimSpace(id))
	if !lid.IsValid() {
		return "", NewDomainError("shared", "NewLessonID", ErrInvalidID, "invalid lesson ID format")
	}
	return lid, nil
}

// EnrollmentID identifies one (student, course) registration.
type EnrollmentID string

// IsValid checks the identifier shape.
func (e EnrollmentID) IsValid() bool { return idRegex.MatchString(string(e)) }

// String returns the string representation.
func (e EnrollmentID) String() string { return string(e) }

// NewEnrollmentID creates a new EnrollmentID with validation.
func NewEnrollmentID(id string) (EnrollmentID, error) {
	eid := EnrollmentID(strings.TrimSpace(id))
	if !eid.IsValid() {
		return "", NewDomainError("shared", "NewEnrollmentID", ErrInvalidID, "invalid enrollment ID format")
	}
	return eid, nil
}

// InstructorID identifies the user owning a set of courses.
type InstructorID string

// IsValid checks the identifier shape.
func (i InstructorID) IsValid() bool { return idRegex.MatchString(string(i)) }

// String returns the string representation.
func (i InstructorID) String() string { return string(i) }

// NewInstructorID creates a new InstructorID with validation.
func NewInstructorID(id string) (InstructorID, error) {
	iid := InstructorID(strings.TrimSpace(id))
	if !iid.IsValid() {
		return "", NewDomainError("shared", "NewInstructorID", ErrInvalidID, "invalid instructor ID format")
	}
	return iid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Date Value Object
// ═══════════════════════════════════════════════════════════════════════════

// DateLayout is the wire format of a calendar date.
const DateLayout = "2006-01-02"

// Date is a calendar day without a time-of-day or zone. Streak rules compare
// Dates, never timestamps.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, WrapError("shared", "ParseDate", ErrInvalidInput, "invalid date", err)
	}
	return DateOf(t, time.UTC), nil
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n), time.UTC)
}

// DaysSince returns the number of calendar days from other to d.
func (d Date) DaysSince(other Date) int {
	return int(d.Time().Sub(other.Time()).Hours() / 24)
}

// Before reports whether d is an earlier day than other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// Equal reports whether both dates are the same day.
func (d Date) Equal(other Date) bool {
	return d == other
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// ═══════════════════════════════════════════════════════════════════════════
// TimeRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange represents a half-open time period [From, To).
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks if the time range is valid.
func (t TimeRange) IsValid() bool {
	return !t.From.IsZero() && !t.To.IsZero() && t.From.Before(t.To)
}

// Contains checks if a time is within the range.
func (t TimeRange) Contains(tm time.Time) bool {
	return !tm.Before(t.From) && tm.Before(t.To)
}

// NewTimeRange creates a new TimeRange with validation.
func NewTimeRange(from, to time.Time) (TimeRange, error) {
	tr := TimeRange{From: from, To: to}
	if !tr.IsValid() {
		return TimeRange{}, NewDomainError("shared", "NewTimeRange", ErrInvalidInput, "'from' must be before 'to'")
	}
	return tr, nil
}
