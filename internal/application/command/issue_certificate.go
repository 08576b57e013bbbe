package command

import (
	"context"
	"fmt"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/certificate"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/enrollment"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/logger"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/retry"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ISSUE CERTIFICATE COMMAND
// Attaches a certificate to a completed enrollment exactly once. Concurrent
// issuers compute the same reference; the store's compare-and-set decides
// which of them publishes.
// ══════════════════════════════════════════════════════════════════════════════

// IssueCertificateCommand asks for a certificate on one enrollment.
type IssueCertificateCommand struct {
	// EnrollmentID is the enrollment to certify.
	EnrollmentID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c IssueCertificateCommand) Validate() error {
	if _, err := shared.NewEnrollmentID(c.EnrollmentID); err != nil {
		return err
	}
	return nil
}

// IssueCertificateResult contains the outcome of an issuance attempt.
type IssueCertificateResult struct {
	// Certificate is nil when the enrollment is not completed yet.
	Certificate *certificate.Certificate

	// Issued is true only for the call that attached the certificate.
	Issued bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// IssueCertificateHandler handles IssueCertificateCommand.
type IssueCertificateHandler struct {
	enrollments    enrollment.Repository
	generator      *certificate.Generator
	eventPublisher shared.EventPublisher
	clock          timeutil.Clock
	retrier        *retry.Retrier
	log            *logger.Logger
}

// NewIssueCertificateHandler creates a new IssueCertificateHandler.
func NewIssueCertificateHandler(
	enrollments enrollment.Repository,
	generator *certificate.Generator,
	eventPublisher shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
) *IssueCertificateHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &IssueCertificateHandler{
		enrollments:    enrollments,
		generator:      generator,
		eventPublisher: eventPublisher,
		clock:          clock,
		retrier:        retry.ContentionRetrier(shared.IsConcurrentModification),
		log:            log.With(logger.Component("certificate_issuer")),
	}
}

// Handle executes the issue certificate command.
func (h *IssueCertificateHandler) Handle(ctx context.Context, cmd IssueCertificateCommand) (*IssueCertificateResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("issue_certificate: validation failed: %w", err)
	}

	var result *IssueCertificateResult
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = h.issue(ctx, shared.EnrollmentID(cmd.EnrollmentID), cmd.CorrelationID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("issue_certificate: %w", err)
	}
	return result, nil
}

// IssueIfEligible issues a certificate when the enrollment is completed and
// returns the one attached, or nil when it is not completed.
func (h *IssueCertificateHandler) IssueIfEligible(ctx context.Context, enrollmentID shared.EnrollmentID) (*certificate.Certificate, error) {
	result, err := h.Handle(ctx, IssueCertificateCommand{EnrollmentID: string(enrollmentID)})
	if err != nil {
		return nil, err
	}
	return result.Certificate, nil
}

func (h *IssueCertificateHandler) issue(ctx context.Context, id shared.EnrollmentID, correlationID string) (*IssueCertificateResult, error) {
	e, err := h.enrollments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !e.IsCompleted() {
		return &IssueCertificateResult{}, nil
	}
	if e.CertificateIssued {
		return &IssueCertificateResult{Certificate: h.existing(e)}, nil
	}

	cert := h.generator.Issue(e.ID, h.clock.Now())
	won, err := h.enrollments.SetCertificate(ctx, e.ID, cert.Reference, cert.IssuedAt)
	if err != nil {
		return nil, fmt.Errorf("set certificate: %w", err)
	}

	if !won {
		// Someone else attached it between our read and the compare-and-set.
		current, err := h.enrollments.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !current.CertificateIssued {
			return nil, shared.ErrEnrollmentConflict
		}
		return &IssueCertificateResult{Certificate: h.existing(current)}, nil
	}

	event := shared.NewCertificateIssuedEvent(
		string(e.ID), string(e.StudentID), string(e.CourseID),
		cert.Reference, cert.URL, cert.IssuedAt,
	)
	if correlationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(correlationID)
	}
	if err := h.eventPublisher.Publish(event); err != nil {
		h.log.Warn("failed to publish certificate event", logger.EnrollmentID(string(e.ID)), logger.Err(err))
	}

	h.log.Info("certificate issued",
		logger.EnrollmentID(string(e.ID)),
		logger.StudentID(string(e.StudentID)),
		logger.CertificateRef(cert.Reference),
	)

	return &IssueCertificateResult{Certificate: &cert, Issued: true}, nil
}

func (h *IssueCertificateHandler) existing(e *enrollment.Enrollment) *certificate.Certificate {
	cert := certificate.Certificate{EnrollmentID: e.ID}
	if e.CertificateRef != nil {
		cert.Reference = *e.CertificateRef
	}
	if e.CertificateIssuedAt != nil {
		cert.IssuedAt = *e.CertificateIssuedAt
	}
	cert.URL = h.generator.URL(cert.Reference)
	return &cert
}
