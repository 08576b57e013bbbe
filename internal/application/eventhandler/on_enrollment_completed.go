// Package eventhandler contains domain event handlers.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/application/command"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/analytics"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/catalog"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ENROLLMENT COMPLETED HANDLER
// Runs after the completion transition has been persisted:
// 1. Certificate safety net - the synchronous issuance may have failed;
//    issuing is idempotent, so asking again is harmless.
// 2. Analytics cache - the instructor's completion rate changed.
// ═══════════════════════════════════════════════════════════════════════════

// OnEnrollmentCompletedHandler handles enrollment.completed events.
type OnEnrollmentCompletedHandler struct {
	issuer  command.CertificateIssuer
	catalog catalog.Catalog
	cache   analytics.Cache

	logger *slog.Logger
	config EnrollmentCompletedConfig
}

// EnrollmentCompletedConfig contains handler configuration.
type EnrollmentCompletedConfig struct {
	// IssueCertificates is consulted per event. Nil means always.
	IssueCertificates func() bool

	// Timeout bounds one event's work.
	Timeout time.Duration
}

// DefaultEnrollmentCompletedConfig returns the default configuration.
func DefaultEnrollmentCompletedConfig() EnrollmentCompletedConfig {
	return EnrollmentCompletedConfig{
		IssueCertificates: func() bool { return true },
		Timeout:           10 * time.Second,
	}
}

// NewOnEnrollmentCompletedHandler creates the handler. issuer and cache may be nil.
func NewOnEnrollmentCompletedHandler(
	issuer command.CertificateIssuer,
	cat catalog.Catalog,
	cache analytics.Cache,
	logger *slog.Logger,
	config EnrollmentCompletedConfig,
) *OnEnrollmentCompletedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultEnrollmentCompletedConfig()
	if config.IssueCertificates == nil {
		config.IssueCertificates = defaults.IssueCertificates
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &OnEnrollmentCompletedHandler{
		issuer:  issuer,
		catalog: cat,
		cache:   cache,
		logger:  logger.With("handler", "on_enrollment_completed"),
		config:  config,
	}
}

// Register subscribes the handler on a bus.
func (h *OnEnrollmentCompletedHandler) Register(bus shared.EventSubscriber) error {
	return bus.Subscribe(shared.EventEnrollmentCompleted, h.Handle)
}

// Handle implements shared.EventHandler.
func (h *OnEnrollmentCompletedHandler) Handle(event shared.Event) error {
	completed, ok := event.(shared.EnrollmentCompletedEvent)
	if !ok {
		h.logger.Warn("received unexpected event", "event_type", event.EventType())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var firstErr error

	if h.issuer != nil && h.config.IssueCertificates() {
		cert, err := h.issuer.IssueIfEligible(ctx, shared.EnrollmentID(completed.AggregateID()))
		if err != nil {
			h.logger.Error("certificate safety net failed",
				"enrollment_id", completed.AggregateID(),
				"error", err,
			)
			firstErr = fmt.Errorf("issue certificate: %w", err)
		} else if cert != nil {
			h.logger.Debug("certificate present",
				"enrollment_id", completed.AggregateID(),
				"certificate_ref", cert.Reference,
			)
		}
	}

	if h.cache != nil {
		if err := h.invalidate(ctx, shared.CourseID(completed.CourseID)); err != nil {
			h.logger.Warn("analytics cache invalidation failed",
				"course_id", completed.CourseID,
				"error", err,
			)
		}
	}

	return firstErr
}

func (h *OnEnrollmentCompletedHandler) invalidate(ctx context.Context, courseID shared.CourseID) error {
	course, err := h.catalog.Course(ctx, courseID)
	if err != nil {
		return fmt.Errorf("load course: %w", err)
	}
	if course.InstructorID == "" {
		return nil
	}
	return h.cache.InvalidateInstructor(ctx, course.InstructorID)
}
