// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that happened
// to a student's progress or an enrollment.
const (
	// Progress events
	EventLessonProgressRecorded EventType = "progress.lesson_recorded"
	EventLessonCompleted        EventType = "progress.lesson_completed"
	EventStreakUpdated          EventType = "progress.streak_updated"
	EventStreakBroken           EventType = "progress.streak_broken"

	// Enrollment events
	EventEnrollmentProgressed EventType = "enrollment.progressed"
	EventEnrollmentCompleted  EventType = "enrollment.completed"

	// Certificate events
	EventCertificateIssued EventType = "certificate.issued"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// LessonProgressRecordedEvent is emitted for every accepted progress update.
type LessonProgressRecordedEvent struct {
	BaseEvent
	StudentID        string `json:"student_id"`
	LessonID         string `json:"lesson_id"`
	CourseID         string `json:"course_id"`
	Status           string `json:"status"`
	TimeSpentMinutes int    `json:"time_spent_minutes"`
}

// Payload implements Event interface.
func (e LessonProgressRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":         e.StudentID,
		"lesson_id":          e.LessonID,
		"course_id":          e.CourseID,
		"status":             e.Status,
		"time_spent_minutes": e.TimeSpentMinutes,
	}
}

// NewLessonProgressRecordedEvent creates a new LessonProgressRecordedEvent.
func NewLessonProgressRecordedEvent(studentID, lessonID, courseID, status string, minutes int) LessonProgressRecordedEvent {
	return LessonProgressRecordedEvent{
		BaseEvent:        NewBaseEvent(EventLessonProgressRecorded, studentID),
		StudentID:        studentID,
		LessonID:         lessonID,
		CourseID:         courseID,
		Status:           status,
		TimeSpentMinutes: minutes,
	}
}

// LessonCompletedEvent is emitted exactly once per (student, lesson), on the
// not-completed to completed transition.
type LessonCompletedEvent struct {
	BaseEvent
	StudentID   string    `json:"student_id"`
	LessonID    string    `json:"lesson_id"`
	CourseID    string    `json:"course_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// Payload implements Event interface.
func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":   e.StudentID,
		"lesson_id":    e.LessonID,
		"course_id":    e.CourseID,
		"completed_at": e.CompletedAt.Format(time.RFC3339),
	}
}

// NewLessonCompletedEvent creates a new LessonCompletedEvent.
func NewLessonCompletedEvent(studentID, lessonID, courseID string, completedAt time.Time) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent:   NewBaseEvent(EventLessonCompleted, studentID),
		StudentID:   studentID,
		LessonID:    lessonID,
		CourseID:    courseID,
		CompletedAt: completedAt,
	}
}

// StreakUpdatedEvent is emitted when a credited day changes the streak.
type StreakUpdatedEvent struct {
	BaseEvent
	StudentID     string `json:"student_id"`
	OldStreak     int    `json:"old_streak"`
	NewStreak     int    `json:"new_streak"`
	BestStreak    int    `json:"best_streak"`
	LastCreditDay string `json:"last_credited_date"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":         e.StudentID,
		"old_streak":         e.OldStreak,
		"new_streak":         e.NewStreak,
		"best_streak":        e.BestStreak,
		"last_credited_date": e.LastCreditDay,
	}
}

// NewStreakUpdatedEvent creates a StreakUpdatedEvent, or a streak-broken one
// when the new value is a reset.
func NewStreakUpdatedEvent(studentID string, oldStreak, newStreak, best int, day string) StreakUpdatedEvent {
	eventType := EventStreakUpdated
	if newStreak < oldStreak {
		eventType = EventStreakBroken
	}
	return StreakUpdatedEvent{
		BaseEvent:     NewBaseEvent(eventType, studentID),
		StudentID:     studentID,
		OldStreak:     oldStreak,
		NewStreak:     newStreak,
		BestStreak:    best,
		LastCreditDay: day,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Enrollment Events
// ═══════════════════════════════════════════════════════════════════════════

// EnrollmentProgressedEvent is emitted when a recompute changes the percentage.
type EnrollmentProgressedEvent struct {
	BaseEvent
	StudentID        string `json:"student_id"`
	CourseID         string `json:"course_id"`
	OldPercentage    string `json:"old_percentage"`
	NewPercentage    string `json:"new_percentage"`
	CompletedLessons int    `json:"completed_lessons"`
	TotalLessons     int    `json:"total_lessons"`
}

// Payload implements Event interface.
func (e EnrollmentProgressedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":        e.StudentID,
		"course_id":         e.CourseID,
		"old_percentage":    e.OldPercentage,
		"new_percentage":    e.NewPercentage,
		"completed_lessons": e.CompletedLessons,
		"total_lessons":     e.TotalLessons,
	}
}

// NewEnrollmentProgressedEvent creates a new EnrollmentProgressedEvent.
func NewEnrollmentProgressedEvent(enrollmentID, studentID, courseID, oldPct, newPct string, completed, total int) EnrollmentProgressedEvent {
	return EnrollmentProgressedEvent{
		BaseEvent:        NewBaseEvent(EventEnrollmentProgressed, enrollmentID),
		StudentID:        studentID,
		CourseID:         courseID,
		OldPercentage:    oldPct,
		NewPercentage:    newPct,
		CompletedLessons: completed,
		TotalLessons:     total,
	}
}

// EnrollmentCompletedEvent is emitted once, on the terminal transition to Completed.
type EnrollmentCompletedEvent struct {
	BaseEvent
	StudentID   string    `json:"student_id"`
	CourseID    string    `json:"course_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// Payload implements Event interface.
func (e EnrollmentCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":   e.StudentID,
		"course_id":    e.CourseID,
		"completed_at": e.CompletedAt.Format(time.RFC3339),
	}
}

// NewEnrollmentCompletedEvent creates a new EnrollmentCompletedEvent.
func NewEnrollmentCompletedEvent(enrollmentID, studentID, courseID string, completedAt time.Time) EnrollmentCompletedEvent {
	return EnrollmentCompletedEvent{
		BaseEvent:   NewBaseEvent(EventEnrollmentCompleted, enrollmentID),
		StudentID:   studentID,
		CourseID:    courseID,
		CompletedAt: completedAt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Certificate Events
// ═══════════════════════════════════════════════════════════════════════════

// CertificateIssuedEvent is emitted by the issuer that won the compare-and-set.
type CertificateIssuedEvent struct {
	BaseEvent
	StudentID string    `json:"student_id"`
	CourseID  string    `json:"course_id"`
	Reference string    `json:"reference"`
	URL       string    `json:"url"`
	IssuedAt  time.Time `json:"issued_at"`
}

// Payload implements Event interface.
func (e CertificateIssuedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"course_id":  e.CourseID,
		"reference":  e.Reference,
		"url":        e.URL,
		"issued_at":  e.IssuedAt.Format(time.RFC3339),
	}
}

// NewCertificateIssuedEvent creates a new CertificateIssuedEvent.
func NewCertificateIssuedEvent(enrollmentID, studentID, courseID, ref, url string, issuedAt time.Time) CertificateIssuedEvent {
	return CertificateIssuedEvent{
		BaseEvent: NewBaseEvent(EventCertificateIssued, enrollmentID),
		StudentID: studentID,
		CourseID:  courseID,
		Reference: ref,
		URL:       url,
		IssuedAt:  issuedAt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope serializes an event payload into an envelope.
func NewEventEnvelope(id string, event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		ID:          id,
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Version:     1,
		Payload:     payload,
	}, nil
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards events. Useful where no bus is wired.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
