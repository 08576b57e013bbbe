// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotEnrolled  = errors.New("not enrolled")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progress", "enrollment", "analytics"
	Op      string // Operation that failed, e.g., "Record", "Recompute"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok {
		return e == t || (e.Domain == t.Domain && e.Op == t.Op && e.Message == t.Message)
	}
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Progress domain errors
var (
	ErrLessonNotFound       = NewDomainError("progress", "Record", ErrNotFound, "lesson not found")
	ErrNotEnrolledInCourse  = NewDomainError("progress", "Record", ErrNotEnrolled, "student is not enrolled in the course owning this lesson")
	ErrInvalidStatus        = NewDomainError("progress", "Validate", ErrInvalidInput, "invalid lesson status")
	ErrNegativeTimeSpent    = NewDomainError("progress", "Validate", ErrNegativeValue, "time spent delta cannot be negative")
	ErrInvalidQuizScore     = NewDomainError("progress", "Validate", ErrValueOutOfRange, "quiz score must be between 0 and 100")
	ErrLessonProgressAbsent = NewDomainError("progress", "Find", ErrNotFound, "lesson progress not found")
)

// Enrollment domain errors
var (
	ErrEnrollmentNotFound = NewDomainError("enrollment", "Find", ErrNotFound, "enrollment not found")
	ErrEnrollmentExists   = NewDomainError("enrollment", "Create", ErrAlreadyExists, "enrollment already exists")
	ErrCourseNotFound     = NewDomainError("catalog", "Find", ErrNotFound, "course not found")
	ErrEnrollmentConflict = NewDomainError("enrollment", "Update", ErrConcurrentModification, "enrollment was modified concurrently")
)

// Streak domain errors
var (
	ErrStreakNotFound = NewDomainError("streak", "Find", ErrNotFound, "streak not found")
)

// Analytics domain errors
var (
	ErrInvalidScope  = NewDomainError("analytics", "Validate", ErrInvalidInput, "unknown analytics scope")
	ErrInvalidWindow = NewDomainError("analytics", "Validate", ErrValueOutOfRange, "window is out of range")
	ErrInvalidLimit  = NewDomainError("analytics", "Validate", ErrValueOutOfRange, "limit is out of range")
)

// External service errors
var (
	ErrPlatformUnavailable     = NewDomainError("platform", "Request", ErrServiceUnavailable, "course platform API is unavailable")
	ErrPlatformRateLimited     = NewDomainError("platform", "Request", ErrRateLimited, "course platform API rate limit exceeded")
	ErrPlatformInvalidResponse = NewDomainError("platform", "Parse", ErrExternalService, "invalid response from course platform API")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsNotEnrolled checks if the error rejects a student outside the course.
func IsNotEnrolled(err error) bool {
	return errors.Is(err, ErrNotEnrolled)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsConcurrentModification checks if a compare-and-set lost a race.
func IsConcurrentModification(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsUnauthorized checks if the caller identity is missing or invalid.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
