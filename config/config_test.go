package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_MemoryDevDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("CATALOG_SOURCE", "platform")
	t.Setenv("PLATFORM_BASE_URL", "http://platform.local")
	t.Setenv("AUTH_DISABLED", "true")
	t.Setenv("APP_TIMEZONE", "Asia/Manila")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, CatalogPlatform, cfg.Catalog.Source)
	assert.Equal(t, "Asia/Manila", cfg.App.Location.String())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, 12, cfg.Analytics.DefaultWindow)
	assert.Equal(t, 10*time.Minute, cfg.Analytics.CacheTTL)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.True(t, cfg.IsDevelopment())
}

func TestFromEnv_CollectsAllProblems(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("CATALOG_SOURCE", "postgres")
	t.Setenv("AUTH_DISABLED", "true")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")

	_, err := FromEnv()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "STORE_DRIVER=memory is not allowed in production")
	assert.Contains(t, msg, "CATALOG_SOURCE=postgres requires STORE_DRIVER=postgres")
	assert.Contains(t, msg, "AUTH_DISABLED is not allowed in production")
	assert.Contains(t, msg, "CERTIFICATE_SIGNING_KEY is required in production")
}

func TestFromEnv_BadTimezone(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFeatureFlags_Defaults(t *testing.T) {
	ff := NewFeatureFlags()

	assert.True(t, ff.Enabled(FeatureCertificateAutoIssue))
	assert.True(t, ff.Enabled(FeatureStreakCredit))
	assert.False(t, ff.Enabled(FeatureMonthlyZeroFill))
	assert.False(t, ff.Enabled("unknown.flag"))

	var nilFlags *FeatureFlags
	assert.False(t, nilFlags.Enabled(FeatureAnalyticsCache))
}

func TestFeatureFlags_Environment(t *testing.T) {
	t.Setenv("FEATURE_ANALYTICS_MONTHLY_ZERO_FILL", "true")
	t.Setenv("FEATURE_STREAKS_CREDIT", "0")

	ff := LoadFeatureFlags()

	assert.True(t, ff.Enabled(FeatureMonthlyZeroFill))
	assert.False(t, ff.EnabledFor(FeatureStreakCredit, "student-1"))
}

func TestFeatureFlags_RolloutIsSticky(t *testing.T) {
	ff := NewFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureStreakCredit, 50))

	first := ff.EnabledFor(FeatureStreakCredit, "student-42")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ff.EnabledFor(FeatureStreakCredit, "student-42"))
	}

	ff.SetUserOverride("student-42", FeatureStreakCredit, !first)
	assert.Equal(t, !first, ff.EnabledFor(FeatureStreakCredit, "student-42"))

	assert.ErrorIs(t, ff.SetRolloutPercent("missing", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureStreakCredit, 101), ErrInvalidRolloutPercent)
}
