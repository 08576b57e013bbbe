// Package bootstrap wires configuration into the repositories, collaborators
// and handlers shared by the API and worker processes.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/config"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/application/command"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/application/eventhandler"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/application/query"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/analytics"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/catalog"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/certificate"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/enrollment"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/progress"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/streak"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/infrastructure/external/platform"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/infrastructure/messaging"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/infrastructure/persistence/memory"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/infrastructure/persistence/postgres"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/infrastructure/persistence/redis"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/interface/http/handlers"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/logger"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTAINER
// ══════════════════════════════════════════════════════════════════════════════

// Container holds every wired component of a process.
type Container struct {
	Config *config.Config
	Log    *slog.Logger
	AppLog *logger.Logger
	Clock  timeutil.Clock

	// Storage
	DB          *postgres.Connection // nil with the memory driver
	Cache       *redis.Cache         // nil when Redis is disabled or unreachable
	Progress    progress.Repository
	Enrollments enrollment.Repository
	Streaks     streak.Repository

	// Collaborators
	Catalog        catalog.Service
	Platform       *platform.Client // nil unless the catalog is the platform API
	Sources        analytics.Sources
	AnalyticsCache analytics.Cache
	Certificates   *certificate.Generator
	Bus            *messaging.InMemoryEventBus

	// Commands
	Issuer         *command.IssueCertificateHandler
	Aggregator     *command.Aggregator
	RecordProgress *command.RecordProgressHandler

	// Queries
	CourseProgress    *query.GetCourseProgressHandler
	Streak            *query.GetStreakHandler
	InstructorSummary *query.GetInstructorSummaryHandler
	MonthlySeries     *query.GetMonthlySeriesHandler
	TopPerformers     *query.GetTopPerformersHandler

	closers []func()
}

// New wires a container from cfg. Close releases what it opened.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Log:    log,
		AppLog: NewAppLogger(cfg),
		Clock:  timeutil.SystemClock{},
	}
	timeutil.SetLocation(cfg.App.Location)

	if err := c.initStorage(ctx); err != nil {
		c.Close()
		return nil, err
	}
	c.initCache()
	if err := c.initCatalog(); err != nil {
		c.Close()
		return nil, err
	}
	c.initAnalytics()
	c.initEventBus()
	c.initHandlers()

	if err := c.registerSubscribers(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func (c *Container) onClose(fn func()) {
	c.closers = append(c.closers, fn)
}

// ─────────────────────────────────────────────────────────────────────────────
// Storage
// ─────────────────────────────────────────────────────────────────────────────

func (c *Container) initStorage(ctx context.Context) error {
	cfg := c.Config

	if cfg.Store.Driver == config.StoreMemory {
		c.Log.Warn("using in-memory store, progress is lost on restart")
		store := memory.NewStore()
		c.Progress = store.Progress()
		c.Enrollments = store.Enrollments()
		c.Streaks = store.Streaks()

		marketplace := memory.NewMarketplace(store)
		c.Catalog = marketplace
		c.Sources = marketplace.Sources()
		return nil
	}

	c.Log.Info("connecting to database...")
	conn, err := postgres.NewConnection(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	c.DB = conn
	c.onClose(func() {
		c.Log.Info("closing database connection...")
		conn.Close()
	})
	c.Log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		c.Log.Info("checking database migrations...")
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		c.Log.Info("database schema is up to date")
	}

	c.Progress = postgres.NewProgressRepository(conn)
	c.Enrollments = postgres.NewEnrollmentRepository(conn)
	c.Streaks = postgres.NewStreakRepository(conn)
	c.Catalog = postgres.NewCatalogRepository(conn)
	c.Sources = postgres.NewAnalyticsRepository(conn).Sources()
	return nil
}

// initCache connects to Redis. Failure degrades to uncached operation.
func (c *Container) initCache() {
	cfg := c.Config.Redis
	if cfg.Disabled {
		c.Log.Info("redis disabled, caching uses process memory")
		return
	}

	c.Log.Info("connecting to Redis...")
	cache, err := redis.NewCache(redis.Config{
		Host:         cfg.Host,
		Port:         cfg.Port,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   redis.DefaultConfig().MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err != nil {
		c.Log.Warn("failed to connect to Redis, caching degraded", "error", err)
		return
	}

	c.Cache = cache
	c.onClose(func() {
		c.Log.Info("closing Redis connection...")
		_ = cache.Close()
	})
	c.Log.Info("Redis connection established")
}

// ─────────────────────────────────────────────────────────────────────────────
// Collaborators
// ─────────────────────────────────────────────────────────────────────────────

func (c *Container) initCatalog() error {
	cfg := c.Config

	if cfg.Catalog.Source == config.CatalogPlatform {
		pc := platform.DefaultClientConfig(cfg.Catalog.BaseURL)
		pc.APIKey = cfg.Catalog.APIKey
		pc.Timeout = cfg.Catalog.RequestTimeout
		pc.Logger = c.Log
		pc.Debug = cfg.App.Debug && cfg.IsDevelopment()
		c.Platform = platform.NewClient(pc)
		c.Catalog = c.Platform
	}
	if c.Catalog == nil {
		return fmt.Errorf("catalog source %q is not available with store driver %q",
			cfg.Catalog.Source, cfg.Store.Driver)
	}

	if c.Cache != nil {
		c.Catalog = redis.NewCatalogCache(c.Catalog, c.Cache, cfg.Catalog.CacheTTL, c.Log)
	}
	return nil
}

func (c *Container) initAnalytics() {
	if c.Cache != nil {
		c.AnalyticsCache = redis.NewAnalyticsCache(c.Cache, c.Config.Analytics.CacheTTL, c.Log)
	} else {
		c.AnalyticsCache = memory.NewAnalyticsCache()
	}
	c.Certificates = certificate.NewGenerator(c.Config.Certificate.SigningKey, c.Config.Certificate.BaseURL)
}

func (c *Container) initEventBus() {
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = c.Log
	bus := messaging.NewInMemoryEventBus(busCfg)
	c.Bus = bus
	c.onClose(func() {
		c.Log.Info("closing event bus...")
		_ = bus.Close()
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────────────────────────────────────

func (c *Container) initHandlers() {
	flags := c.Config.Features
	analyticsCfg := c.Config.Analytics

	c.Issuer = command.NewIssueCertificateHandler(c.Enrollments, c.Certificates, c.Bus, c.Clock, c.AppLog)
	c.Aggregator = command.NewAggregator(
		c.Enrollments, c.Progress, c.Catalog, c.Issuer, c.Bus, c.Clock, c.AppLog,
		command.AggregatorConfig{
			AutoIssueCertificates: func() bool { return flags.Enabled(config.FeatureCertificateAutoIssue) },
		},
	)
	credit := command.NewCreditActivityHandler(c.Streaks, c.Bus, c.Clock, c.AppLog)
	c.RecordProgress = command.NewRecordProgressHandler(
		c.Progress, c.Catalog, c.Aggregator, credit, c.Bus, c.Clock, c.AppLog,
		command.RecordProgressHandlerConfig{
			CreditStreak: func(studentID string) bool {
				return flags.EnabledFor(config.FeatureStreakCredit, studentID)
			},
		},
	)

	opts := query.AnalyticsOptions{
		DefaultWindow:     analyticsCfg.DefaultWindow,
		MaxWindow:         analyticsCfg.MaxWindow,
		DefaultTopN:       analyticsCfg.DefaultTopN,
		MaxTopN:           analyticsCfg.MaxTopN,
		UseCache:          func() bool { return flags.Enabled(config.FeatureAnalyticsCache) },
		ZeroFillByDefault: func() bool { return flags.Enabled(config.FeatureMonthlyZeroFill) },
	}
	c.CourseProgress = query.NewGetCourseProgressHandler(c.Enrollments, c.Progress, c.Catalog, c.Certificates, c.Clock)
	c.Streak = query.NewGetStreakHandler(c.Streaks, c.Clock)
	c.InstructorSummary = query.NewGetInstructorSummaryHandler(c.Sources, c.AnalyticsCache, opts, c.AppLog)
	c.MonthlySeries = query.NewGetMonthlySeriesHandler(c.Sources, opts, c.Clock)
	c.TopPerformers = query.NewGetTopPerformersHandler(c.Sources.Performance, c.AnalyticsCache, opts, c.AppLog)
}

func (c *Container) registerSubscribers() error {
	if err := c.Bus.SubscribeAll(messaging.EventLogger(c.Log)); err != nil {
		return fmt.Errorf("subscribe event logger: %w", err)
	}

	flags := c.Config.Features
	onCompleted := eventhandler.NewOnEnrollmentCompletedHandler(
		c.Issuer, c.Catalog, c.AnalyticsCache, c.Log,
		eventhandler.EnrollmentCompletedConfig{
			IssueCertificates: func() bool { return flags.Enabled(config.FeatureCertificateAutoIssue) },
		},
	)
	if err := onCompleted.Register(c.Bus); err != nil {
		return fmt.Errorf("subscribe enrollment completed handler: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & METRICS
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecker reports the database as critical and every cache or
// upstream breaker as optional.
func (c *Container) HealthChecker() *handlers.CompositeHealthChecker {
	hc := handlers.NewCompositeHealthChecker(c.Config.App.Version)
	if c.DB != nil {
		hc.AddCheck("database", handlers.NewPingCheck(c.DB))
	}
	if c.Cache != nil {
		hc.AddOptionalCheck("redis", handlers.NewPingCheck(c.Cache))
		if rc, ok := c.AnalyticsCache.(*redis.AnalyticsCache); ok {
			hc.AddOptionalCheck("analytics_cache_breaker", handlers.NewBreakerCheck(rc.Breaker()))
		}
	}
	if c.Platform != nil {
		hc.AddOptionalCheck("platform_api_breaker", handlers.NewBreakerCheck(c.Platform.Breaker()))
	}
	return hc
}

// metricsPingTimeout bounds the database ping behind GET /metrics.
const metricsPingTimeout = 2 * time.Second

// Metrics returns named snapshot providers.
func (c *Container) Metrics() map[string]func() any {
	m := map[string]func() any{
		"event_bus": func() any { return c.Bus.Metrics().Snapshot() },
	}
	if c.DB != nil {
		m["database"] = func() any {
			ctx, cancel := context.WithTimeout(context.Background(), metricsPingTimeout)
			defer cancel()
			status, err := c.DB.PoolStats(ctx)
			if err != nil {
				return map[string]string{"error": err.Error()}
			}
			return status
		}
	}
	if c.Platform != nil {
		m["platform_api"] = func() any { return c.Platform.Status() }
	}
	if rc, ok := c.AnalyticsCache.(*redis.AnalyticsCache); ok {
		m["analytics_cache"] = func() any {
			cb := rc.Breaker()
			return map[string]any{
				"breaker":              cb.State().String(),
				"consecutive_failures": cb.Counts().ConsecutiveFailures,
			}
		}
	}
	return m
}

// ══════════════════════════════════════════════════════════════════════════════
// LOGGING
// ══════════════════════════════════════════════════════════════════════════════

// NewLogger builds the process logger: colored text in development,
// JSON everywhere else.
func NewLogger(cfg *config.Config) *slog.Logger {
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Observability.LogLevel))
	if cfg.App.Debug {
		level.Set(slog.LevelDebug)
	}

	var handler slog.Handler
	if cfg.IsDevelopment() || strings.EqualFold(cfg.Observability.LogFormat, "text") {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level:     level,
			AddSource: cfg.App.Debug,
		})
	}

	log := slog.New(handler).With("app", cfg.App.Name, "env", string(cfg.App.Environment))
	slog.SetDefault(log)
	return log
}

// NewAppLogger builds the field logger used by the application layer.
func NewAppLogger(cfg *config.Config) *logger.Logger {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = logger.LevelDebug
	}
	format := logger.ParseFormat(cfg.Observability.LogFormat)
	if cfg.IsDevelopment() {
		format = logger.FormatText
	}
	return logger.New(logger.Options{
		Output:    os.Stderr,
		Level:     level,
		Format:    format,
		AddCaller: cfg.App.Debug,
	})
}

func slogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
