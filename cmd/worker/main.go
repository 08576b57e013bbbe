// Package main is the entry point of the progress engine worker.
//
// The worker runs the reconciliation jobs on cron schedules:
//   - issuing certificates that a completion transition failed to issue
//   - recomputing recently active enrollments after course changes
//   - warming the platform top-performer rankings
//
// Every run holds a Redis lock, so several worker replicas never run the same
// job concurrently.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/config"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/bootstrap"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/infrastructure/persistence/redis"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/infrastructure/scheduler"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/infrastructure/scheduler/jobs"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := bootstrap.NewLogger(cfg).With("process", "worker")
	log.Info("starting progress engine worker",
		"version", cfg.App.Version,
		"store", string(cfg.Store.Driver),
		"timezone", cfg.App.Timezone,
	)

	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler disabled, nothing to do")
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORAGE, COLLABORATORS AND HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	container, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer container.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = log
	schedCfg.Timezone = cfg.App.Location
	schedCfg.JobTimeout = cfg.Scheduler.JobTimeout
	schedCfg.LockTTL = cfg.Scheduler.LockTTL
	if container.Cache != nil {
		schedCfg.Locker = redis.NewLocker(container.Cache)
	} else {
		log.Warn("redis unavailable, jobs run without cross-instance locks")
	}
	sched := scheduler.NewScheduler(schedCfg)

	if err := registerJobs(sched, container, log); err != nil {
		return fmt.Errorf("failed to register jobs: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	for _, info := range sched.ListJobs() {
		log.Info("job scheduled", "job", info.Name, "schedule", info.Schedule)
	}
	log.Info("progress engine worker is running")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	if err := stopWithTimeout(sched, cfg); err != nil {
		log.Error("scheduler did not stop cleanly", "error", err)
	}

	snapshot := sched.GetMetrics().Snapshot()
	log.Info("shutdown completed successfully",
		"executions", snapshot.TotalExecutions,
		"failures", snapshot.TotalFailures,
	)
	return nil
}

// registerJobs registers the reconciliation jobs on their configured specs.
func registerJobs(sched *scheduler.Scheduler, c *bootstrap.Container, log *slog.Logger) error {
	cfg := c.Config
	flags := cfg.Features

	reconcile := jobs.NewReconcileCertificatesJob(c.Enrollments, c.Issuer, log,
		jobs.ReconcileCertificatesConfig{
			BatchSize: cfg.Scheduler.BatchSize,
			Enabled:   func() bool { return flags.Enabled(config.FeatureCertificateAutoIssue) },
		},
	)
	recompute := jobs.NewRecomputeEnrollmentsJob(c.Enrollments, c.Aggregator, log,
		jobs.RecomputeEnrollmentsConfig{
			Lookback:  cfg.Scheduler.RecomputeLookback,
			BatchSize: cfg.Scheduler.BatchSize,
		},
		c.Clock.Now,
	)
	warm := jobs.NewWarmAnalyticsJob(c.TopPerformers,
		[]int{0, cfg.Analytics.MaxTopN},
		log,
	)

	return errors.Join(
		sched.Register(reconcile, cfg.Scheduler.ReconcileCertificatesSpec),
		sched.Register(recompute, cfg.Scheduler.RecomputeEnrollmentsSpec),
		sched.Register(warm, cfg.Scheduler.WarmAnalyticsSpec),
	)
}

// stopWithTimeout stops the scheduler, giving running jobs until the
// shutdown timeout to finish.
func stopWithTimeout(sched *scheduler.Scheduler, cfg *config.Config) error {
	done := make(chan error, 1)
	go func() { done <- sched.Stop() }()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("running jobs still active after %s", cfg.App.ShutdownTimeout)
	}
}
