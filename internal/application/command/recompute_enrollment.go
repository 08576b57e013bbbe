package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/catalog"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/certificate"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/enrollment"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/progress"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/logger"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/retry"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT AGGREGATOR
// Derives an enrollment's percentage from lesson progress and the current
// course structure. Recomputing is idempotent and safe to repeat.
// ══════════════════════════════════════════════════════════════════════════════

// CertificateIssuer issues certificates for completed enrollments.
type CertificateIssuer interface {
	IssueIfEligible(ctx context.Context, enrollmentID shared.EnrollmentID) (*certificate.Certificate, error)
}

// RecomputeResult contains the enrollment after a recompute.
type RecomputeResult struct {
	// Enrollment is the persisted snapshot.
	Enrollment *enrollment.Enrollment

	// Transition describes what changed.
	Transition enrollment.Transition

	// Certificate is set when this recompute completed the enrollment and a
	// certificate is attached.
	Certificate *certificate.Certificate
}

// AggregatorConfig contains configuration for the aggregator.
type AggregatorConfig struct {
	// AutoIssueCertificates is consulted on every completion transition.
	// Nil means always.
	AutoIssueCertificates func() bool
}

// Aggregator recomputes enrollments.
type Aggregator struct {
	enrollments    enrollment.Repository
	progress       progress.Repository
	catalog        catalog.Catalog
	issuer         CertificateIssuer
	eventPublisher shared.EventPublisher
	clock          timeutil.Clock
	retrier        *retry.Retrier
	log            *logger.Logger

	autoIssue func() bool
}

// NewAggregator creates a new Aggregator. issuer may be nil, in which case
// certificates are left to the reconciliation job.
func NewAggregator(
	enrollments enrollment.Repository,
	progressRepo progress.Repository,
	cat catalog.Catalog,
	issuer CertificateIssuer,
	eventPublisher shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
	config AggregatorConfig,
) *Aggregator {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	autoIssue := config.AutoIssueCertificates
	if autoIssue == nil {
		autoIssue = func() bool { return true }
	}
	return &Aggregator{
		enrollments:    enrollments,
		progress:       progressRepo,
		catalog:        cat,
		issuer:         issuer,
		eventPublisher: eventPublisher,
		clock:          clock,
		retrier:        retry.ContentionRetrier(shared.IsConcurrentModification),
		log:            log.With(logger.Component("enrollment_aggregator")),
		autoIssue:      autoIssue,
	}
}

// OnLessonCompleted recomputes the student's enrollment in the course,
// creating the local enrollment record on first completion.
func (a *Aggregator) OnLessonCompleted(ctx context.Context, studentID shared.StudentID, courseID shared.CourseID) (*RecomputeResult, error) {
	e, err := a.ensure(ctx, studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	return a.Recompute(ctx, e.ID)
}

// Refresh recomputes the enrollment if one is recorded and does nothing
// otherwise. It keeps time and quiz aggregates current between completions.
func (a *Aggregator) Refresh(ctx context.Context, studentID shared.StudentID, courseID shared.CourseID) (*RecomputeResult, error) {
	e, err := a.enrollments.GetByStudentCourse(ctx, studentID, courseID)
	if errors.Is(err, shared.ErrEnrollmentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	return a.Recompute(ctx, e.ID)
}

// Recompute re-derives an enrollment. A concurrent update is re-read and
// re-evaluated once before the conflict is surfaced.
func (a *Aggregator) Recompute(ctx context.Context, enrollmentID shared.EnrollmentID) (*RecomputeResult, error) {
	var result *RecomputeResult
	err := a.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = a.recompute(ctx, enrollmentID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("recompute %s: %w", enrollmentID, err)
	}

	e := result.Enrollment
	tr := result.Transition

	if tr.Changed {
		a.log.Debug("enrollment progressed",
			logger.EnrollmentID(string(e.ID)),
			logger.Percentage(tr.NewPercentage.StringFixed(enrollment.PercentagePrecision)),
		)
		a.publish(shared.NewEnrollmentProgressedEvent(
			string(e.ID), string(e.StudentID), string(e.CourseID),
			tr.OldPercentage.StringFixed(enrollment.PercentagePrecision),
			tr.NewPercentage.StringFixed(enrollment.PercentagePrecision),
			e.CompletedLessons, e.TotalLessons,
		))
	}

	if tr.BecameCompleted {
		a.publish(shared.NewEnrollmentCompletedEvent(string(e.ID), string(e.StudentID), string(e.CourseID), *e.CompletedAt))
		a.log.Info("enrollment completed",
			logger.EnrollmentID(string(e.ID)),
			logger.StudentID(string(e.StudentID)),
			logger.CourseID(string(e.CourseID)),
		)

		if a.issuer != nil && a.autoIssue() {
			cert, err := a.issuer.IssueIfEligible(ctx, e.ID)
			if err != nil {
				// The reconciliation job picks it up later.
				a.log.Error("certificate issuance failed", logger.EnrollmentID(string(e.ID)), logger.Err(err))
			} else if cert != nil {
				result.Certificate = cert
				if e.CanIssueCertificate() {
					if err := e.AttachCertificate(cert.Reference, cert.IssuedAt); err != nil {
						a.log.Warn("certificate not attached to snapshot", logger.EnrollmentID(string(e.ID)), logger.Err(err))
					}
				}
			}
		}
	}

	return result, nil
}

func (a *Aggregator) recompute(ctx context.Context, id shared.EnrollmentID) (*RecomputeResult, error) {
	e, err := a.enrollments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	course, err := a.catalog.Course(ctx, e.CourseID)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}

	stats, err := a.progress.Stats(ctx, e.StudentID, course.LessonIDs())
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	tr := e.Recompute(enrollment.Tally{
		CompletedLessons: stats.CompletedLessons,
		TotalLessons:     course.TotalLessons(),
		TimeSpentMinutes: stats.TimeSpentMinutes,
		AverageQuizScore: stats.AverageQuizScore(),
	}, a.clock.Now())

	if err := a.enrollments.Update(ctx, e); err != nil {
		return nil, err
	}

	return &RecomputeResult{Enrollment: e, Transition: tr}, nil
}

// ensure returns the local enrollment record, creating it when missing.
func (a *Aggregator) ensure(ctx context.Context, studentID shared.StudentID, courseID shared.CourseID) (*enrollment.Enrollment, error) {
	e, err := a.enrollments.GetByStudentCourse(ctx, studentID, courseID)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, shared.ErrEnrollmentNotFound) {
		return nil, err
	}

	course, err := a.catalog.Course(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}

	e = enrollment.NewEnrollment(studentID, courseID, course.TotalLessons(), a.clock.Now())
	if err := a.enrollments.Create(ctx, e); err != nil {
		if errors.Is(err, shared.ErrEnrollmentExists) {
			return a.enrollments.GetByStudentCourse(ctx, studentID, courseID)
		}
		return nil, err
	}
	return e, nil
}

func (a *Aggregator) publish(event shared.Event) {
	if err := a.eventPublisher.Publish(event); err != nil {
		a.log.Warn("failed to publish event", logger.String("event_type", string(event.EventType())), logger.Err(err))
	}
}
