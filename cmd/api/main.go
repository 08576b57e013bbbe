// Package main is the entry point of the progress engine HTTP API.
//
// The API records lesson progress, serves course progress and streaks, and
// exposes the instructor and platform analytics rollups.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/config"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/bootstrap"
	httpapi "github.com/Microsource-PH/CeceLearningPortal-sub003/internal/interface/http"
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
	log := bootstrap.NewLogger(cfg)
	log.Info("starting progress engine API",
		"version", cfg.App.Version,
		"store", string(cfg.Store.Driver),
		"catalog", string(cfg.Catalog.Source),
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORAGE, COLLABORATORS AND HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	container, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer container.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	metrics := make(map[string]httpapi.MetricsProvider)
	for name, provider := range container.Metrics() {
		metrics[name] = provider
	}

	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.RequestTimeout = cfg.HTTP.RequestTimeout
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMin
	serverCfg.InternalAPIKey = cfg.HTTP.InternalAPIKey
	serverCfg.JWTSecret = cfg.Auth.JWTSecret
	serverCfg.JWTIssuer = cfg.Auth.Issuer
	serverCfg.AuthDisabled = cfg.Auth.Disabled
	serverCfg.Version = cfg.App.Version

	server := httpapi.NewServer(serverCfg, httpapi.Dependencies{
		RecordProgress:    container.RecordProgress,
		Aggregator:        container.Aggregator,
		CourseProgress:    container.CourseProgress,
		Streak:            container.Streak,
		InstructorSummary: container.InstructorSummary,
		MonthlySeries:     container.MonthlySeries,
		TopPerformers:     container.TopPerformers,
		Certificates:      container.Certificates,
		Clock:             container.Clock,
		Logger:            container.AppLog,
		HealthChecker:     container.HealthChecker(),
		Metrics:           metrics,
	})

	if cfg.Auth.Disabled {
		log.Warn("authentication disabled, X-User-ID is trusted")
	}

	serverErr := server.StartAsync()
	log.Info("progress engine API is running", "addr", serverCfg.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("http server shutdown failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}
