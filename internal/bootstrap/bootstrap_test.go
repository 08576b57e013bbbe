package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/config"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/infrastructure/persistence/memory"
)

func memoryConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "progress-engine",
			Environment: config.EnvDevelopment,
			Version:     "test",
			Timezone:    "UTC",
			Location:    time.UTC,
		},
		Store: config.StoreConfig{Driver: config.StoreMemory},
		Redis: config.RedisConfig{Disabled: true},
		Catalog: config.CatalogConfig{
			Source:         config.CatalogPlatform,
			BaseURL:        "http://127.0.0.1:1",
			RequestTimeout: 100 * time.Millisecond,
			CacheTTL:       time.Minute,
		},
		Certificate: config.CertificateConfig{BaseURL: "https://certs.example/c", SigningKey: "k"},
		Analytics: config.AnalyticsConfig{
			CacheTTL:      time.Minute,
			DefaultWindow: 12,
			MaxWindow:     36,
			DefaultTopN:   10,
			MaxTopN:       100,
		},
		Features:      config.NewFeatureFlags(),
		Observability: config.ObservabilityConfig{LogLevel: "error", LogFormat: "json"},
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_MemoryStoreWithPlatformCatalog(t *testing.T) {
	c, err := New(context.Background(), memoryConfig(), discard())
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.DB)
	assert.Nil(t, c.Cache)
	require.NotNil(t, c.Platform)
	assert.Same(t, c.Platform, c.Catalog)
	assert.IsType(t, &memory.AnalyticsCache{}, c.AnalyticsCache)

	for name, v := range map[string]any{
		"issuer":             c.Issuer,
		"aggregator":         c.Aggregator,
		"record_progress":    c.RecordProgress,
		"course_progress":    c.CourseProgress,
		"streak":             c.Streak,
		"instructor_summary": c.InstructorSummary,
		"monthly_series":     c.MonthlySeries,
		"top_performers":     c.TopPerformers,
	} {
		assert.NotNil(t, v, name)
	}
}

func TestNew_UnreachableRedisDegrades(t *testing.T) {
	cfg := memoryConfig()
	cfg.Redis = config.RedisConfig{
		Host:         "127.0.0.1",
		Port:         1,
		PoolSize:     1,
		DialTimeout:  200 * time.Millisecond,
		ReadTimeout:  200 * time.Millisecond,
		WriteTimeout: 200 * time.Millisecond,
	}

	c, err := New(context.Background(), cfg, discard())
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.Cache)
	assert.IsType(t, &memory.AnalyticsCache{}, c.AnalyticsCache)
}

func TestNew_UnreachableDatabaseFails(t *testing.T) {
	cfg := memoryConfig()
	cfg.Store.Driver = config.StorePostgres
	cfg.Catalog.Source = config.CatalogPostgres
	cfg.Database = config.DatabaseConfig{URL: "postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=1"}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := New(ctx, cfg, discard())
	require.Error(t, err)
	assert.Nil(t, c)
}

func TestHealthChecker_OptionalChecksOnly(t *testing.T) {
	c, err := New(context.Background(), memoryConfig(), discard())
	require.NoError(t, err)
	defer c.Close()

	status := c.HealthChecker().Check(context.Background())
	assert.True(t, status.Ready)
	require.Contains(t, status.Checks, "platform_api_breaker")
	assert.False(t, status.Checks["platform_api_breaker"].Critical)
	assert.NotContains(t, status.Checks, "database")
}

func TestMetrics_Providers(t *testing.T) {
	c, err := New(context.Background(), memoryConfig(), discard())
	require.NoError(t, err)
	defer c.Close()

	m := c.Metrics()
	require.Contains(t, m, "event_bus")
	require.Contains(t, m, "platform_api")
	assert.NotContains(t, m, "analytics_cache")
	assert.NotContains(t, m, "database", "memory store has no pool to report")
	assert.NotNil(t, m["event_bus"]())
}

func TestClose_Idempotent(t *testing.T) {
	c, err := New(context.Background(), memoryConfig(), discard())
	require.NoError(t, err)

	c.Close()
	assert.NotPanics(t, c.Close)
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, slogLevel(in), in)
	}
}
