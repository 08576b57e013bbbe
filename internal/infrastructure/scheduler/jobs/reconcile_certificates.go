// Package jobs contains the worker's scheduled reconciliation jobs. Each job
// repairs state that the request path normally maintains, so a missed event
// or a crashed instance converges on the next run.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/application/command"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/enrollment"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE CERTIFICATES JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileCertificatesJob issues certificates for completed enrollments that
// missed issuance. Issuance goes through the same compare-and-set as the
// request path, so racing a live completion is harmless.
type ReconcileCertificatesJob struct {
	enrollments enrollment.Repository
	issuer      command.CertificateIssuer
	logger      *slog.Logger
	config      ReconcileCertificatesConfig

	lastStats atomic.Value // *ReconcileStats
}

// ReconcileCertificatesConfig contains configuration for the job.
type ReconcileCertificatesConfig struct {
	// BatchSize caps enrollments handled per run.
	BatchSize int

	// Enabled is consulted per run; nil means always.
	Enabled func() bool
}

// DefaultReconcileCertificatesConfig returns sensible defaults.
func DefaultReconcileCertificatesConfig() ReconcileCertificatesConfig {
	return ReconcileCertificatesConfig{BatchSize: 200}
}

// ReconcileStats contains statistics from a run.
type ReconcileStats struct {
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Candidates int           `json:"candidates"`
	Issued     int           `json:"issued"`
	Failed     int           `json:"failed"`
}

// NewReconcileCertificatesJob creates the job.
func NewReconcileCertificatesJob(
	enrollments enrollment.Repository,
	issuer command.CertificateIssuer,
	logger *slog.Logger,
	config ReconcileCertificatesConfig,
) *ReconcileCertificatesJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultReconcileCertificatesConfig().BatchSize
	}

	return &ReconcileCertificatesJob{
		enrollments: enrollments,
		issuer:      issuer,
		logger:      logger.With("job", "reconcile_certificates"),
		config:      config,
	}
}

// Name returns the job name.
func (j *ReconcileCertificatesJob) Name() string {
	return "reconcile_certificates"
}

// Description returns a human-readable description.
func (j *ReconcileCertificatesJob) Description() string {
	return "Issues certificates for completed enrollments that missed issuance"
}

// Run executes the job.
func (j *ReconcileCertificatesJob) Run(ctx context.Context) error {
	stats := &ReconcileStats{StartedAt: time.Now()}
	defer func() {
		stats.Duration = time.Since(stats.StartedAt)
		j.lastStats.Store(stats)
	}()

	if j.config.Enabled != nil && !j.config.Enabled() {
		j.logger.Debug("certificate auto-issue disabled, skipping")
		return nil
	}

	pending, err := j.enrollments.ListCompletedWithoutCertificate(ctx, j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("list completed enrollments: %w", err)
	}
	stats.Candidates = len(pending)

	var errs []error
	for _, e := range pending {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		cert, err := j.issuer.IssueIfEligible(ctx, e.ID)
		if err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("enrollment %s: %w", e.ID, err))
			j.logger.Warn("certificate reconciliation failed",
				"enrollment_id", e.ID,
				"error", err,
			)
			continue
		}
		if cert != nil {
			stats.Issued++
		}
	}

	j.logger.Info("certificate reconciliation finished",
		"candidates", stats.Candidates,
		"issued", stats.Issued,
		"failed", stats.Failed,
	)

	return errors.Join(errs...)
}

// LastStats returns statistics of the previous run, or nil.
func (j *ReconcileCertificatesJob) LastStats() *ReconcileStats {
	if s, ok := j.lastStats.Load().(*ReconcileStats); ok {
		return s
	}
	return nil
}
