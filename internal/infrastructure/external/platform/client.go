// Package platform implements the course platform REST client.
// The marketplace service owns course structure and memberships; this client
// reads both and exposes them as a catalog.Service.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/catalog"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/circuitbreaker"
	"github.com/Microsource-PH/CeceLearningPortal-sub003/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the platform API client.
type ClientConfig struct {
	// BaseURL is the platform API base URL
	BaseURL string

	// APIKey is sent as a bearer token when set
	APIKey string

	// Timeout is the per-request HTTP timeout
	Timeout time.Duration

	// MaxAttempts bounds retries of transient failures
	MaxAttempts int

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables request logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:     baseURL,
		Timeout:     10 * time.Second,
		MaxAttempts: 3,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the platform API client.
type Client struct {
	config  ClientConfig
	http    *resty.Client
	logger  *slog.Logger
	breaker *circuitbreaker.CircuitBreaker
	retrier *retry.Retrier
}

// NewClient creates a new platform API client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}

	logger := config.Logger.With("component", "platform_client")

	httpClient := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetHeader("Accept", "application/json").
		SetDebug(config.Debug)
	if config.APIKey != "" {
		httpClient.SetAuthToken(config.APIKey)
	}

	c := &Client{
		config: config,
		http:   httpClient,
		logger: logger,
	}

	c.breaker = circuitbreaker.PlatformAPIBreaker(
		func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		countsAsOutage,
	)

	c.retrier = retry.PlatformAPIRetrier(
		retry.WithMaxAttempts(config.MaxAttempts),
		retry.WithRetryIf(shared.IsRetryable),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Debug("retrying platform request",
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
		}),
	)

	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// LessonCourse resolves the course owning a lesson.
func (c *Client) LessonCourse(ctx context.Context, lessonID shared.LessonID) (shared.CourseID, error) {
	path := "/lessons/" + url.PathEscape(string(lessonID))

	var dto LessonDTO
	status, err := c.get(ctx, path, &dto)
	if err != nil {
		return "", fmt.Errorf("get lesson %s: %w", lessonID, err)
	}
	if status == http.StatusNotFound {
		return "", shared.ErrLessonNotFound
	}
	if dto.CourseID == "" {
		return "", shared.ErrPlatformInvalidResponse
	}

	return shared.CourseID(dto.CourseID), nil
}

// Course fetches the course tree.
func (c *Client) Course(ctx context.Context, courseID shared.CourseID) (*catalog.Course, error) {
	path := "/courses/" + url.PathEscape(string(courseID))

	var dto CourseDTO
	status, err := c.get(ctx, path, &dto)
	if err != nil {
		return nil, fmt.Errorf("get course %s: %w", courseID, err)
	}
	if status == http.StatusNotFound {
		return nil, shared.ErrCourseNotFound
	}

	course, err := dto.toDomain()
	if err != nil {
		return nil, fmt.Errorf("get course %s: %w", courseID, err)
	}
	return course, nil
}

// IsEnrolled reports whether the student holds an active membership.
// A 404 means no membership.
func (c *Client) IsEnrolled(ctx context.Context, studentID shared.StudentID, courseID shared.CourseID) (bool, error) {
	path := fmt.Sprintf("/courses/%s/enrollments/%s",
		url.PathEscape(string(courseID)),
		url.PathEscape(string(studentID)),
	)

	var dto MembershipDTO
	status, err := c.get(ctx, path, &dto)
	if err != nil {
		return false, fmt.Errorf("get membership: %w", err)
	}
	if status == http.StatusNotFound {
		return false, nil
	}

	return dto.Active(), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// get performs a GET through the breaker and the retrier. A 404 is returned
// as a status, not an error, because it is a valid answer.
func (c *Client) get(ctx context.Context, path string, result interface{}) (int, error) {
	var status int

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			s, err := c.doSingleRequest(ctx, path, result)
			status = s
			return err
		})
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return 0, shared.WrapError("platform", "Request", shared.ErrServiceUnavailable, "circuit open", err)
	}

	return status, err
}

// doSingleRequest performs one HTTP request and classifies the response.
func (c *Client) doSingleRequest(ctx context.Context, path string, result interface{}) (int, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(result).
		Get(path)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, shared.WrapError("platform", "Request", shared.ErrServiceUnavailable, "request failed", err)
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusNotFound:
		return status, nil
	case status == http.StatusTooManyRequests:
		c.logger.Warn("platform rate limit hit",
			"path", path,
			"retry_after", retryAfter(resp.Header().Get("Retry-After")),
		)
		return status, shared.ErrPlatformRateLimited
	case status >= 500:
		return status, shared.WrapError("platform", "Request", shared.ErrServiceUnavailable,
			fmt.Sprintf("status %d", status), nil)
	case status >= 400:
		return status, shared.WrapError("platform", "Request", shared.ErrExternalService,
			fmt.Sprintf("status %d: %s", status, truncate(resp.String(), 200)), nil)
	}

	return status, nil
}

// countsAsOutage keeps answers that prove the API is up out of the breaker's
// failure count.
func countsAsOutage(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, shared.ErrServiceUnavailable) || errors.Is(err, context.DeadlineExceeded)
}

func retryAfter(header string) time.Duration {
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return time.Minute
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// ClientStatus describes the client's fault-tolerance state.
type ClientStatus struct {
	Breaker  string `json:"breaker"`
	Failures int    `json:"consecutive_failures"`
}

// Status returns the current status of the client.
func (c *Client) Status() ClientStatus {
	counts := c.breaker.Counts()
	return ClientStatus{
		Breaker:  c.breaker.State().String(),
		Failures: counts.ConsecutiveFailures,
	}
}

// Reset closes the circuit breaker.
func (c *Client) Reset() {
	c.breaker.Reset()
}

// Breaker exposes the circuit breaker for health checks.
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}
