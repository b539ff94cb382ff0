// Package client provides HTTP clients for the metadata and lyrics backends.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"lyrics-relay/internal/domain"
	"lyrics-relay/internal/metrics"
	"lyrics-relay/internal/resilience"
)

const userAgent = "lyrics-relay/1.0"

// maxBodyBytes caps how much of a backend response is read.
const maxBodyBytes = 8 << 20

// Options configures the shared behavior of a backend client.
type Options struct {
	// Timeout bounds each call, including rate limiter waits.
	Timeout time.Duration
	// RatePerSecond limits outbound calls. Zero disables limiting.
	RatePerSecond float64
	Burst         int
	Breaker       resilience.CircuitBreakerConfig
	// Registry receives the client's breaker for stats reporting. May be nil.
	Registry *resilience.Registry
	// Transport overrides the outbound round tripper. Used by tests.
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// DefaultOptions returns options suitable for public APIs.
func DefaultOptions() Options {
	return Options{
		Timeout:       10 * time.Second,
		RatePerSecond: 5,
		Burst:         10,
		Breaker:       resilience.DefaultCircuitBreakerConfig(),
	}
}

// StatusError reports a non-200 answer from a backend.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return "unexpected status " + strconv.Itoa(e.StatusCode)
}

// countsAgainstBreaker keeps client-side mistakes from tripping the circuit.
func countsAgainstBreaker(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// backendClient holds what every backend shares: one http.Client, a limiter,
// a breaker and a per-call timeout.
type backendClient struct {
	name       string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.CircuitBreaker
	timeout    time.Duration
	logger     *slog.Logger
}

func newBackendClient(name string, opts Options) *backendClient {
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("backend", name)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	breakerConfig := opts.Breaker
	if breakerConfig.FailureThreshold <= 0 {
		breakerConfig = resilience.DefaultCircuitBreakerConfig()
	}
	if breakerConfig.IsFailure == nil {
		breakerConfig.IsFailure = countsAgainstBreaker
	}
	next := breakerConfig.OnStateChange
	breakerConfig.OnStateChange = func(name string, from, to resilience.CircuitState) {
		metrics.SetCircuitState(name, int(to))
		logger.Warn("circuit breaker state changed", "from", from.String(), "to", to.String())
		if next != nil {
			next(name, from, to)
		}
	}
	breaker := resilience.NewCircuitBreaker(name, breakerConfig)
	if opts.Registry != nil {
		opts.Registry.Register(breaker)
	}

	return &backendClient{
		name: name,
		httpClient: &http.Client{
			Transport: transport,
			// Timeouts are applied per call through the context deadline.
		},
		limiter: limiter,
		breaker: breaker,
		timeout: opts.Timeout,
		logger:  logger,
	}
}

// withTimeout derives the per-call context.
func (c *backendClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// get performs one guarded GET and returns the body of a 200 response.
// Every failure wraps domain.ErrCollaboratorUnavailable.
func (c *backendClient) get(ctx context.Context, operation, rawURL string, header http.Header) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.RecordCollaborator(c.name, operation, "rate_limited")
		return nil, c.unavailable(operation, err)
	}

	body, err := resilience.Execute(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		for k, vv := range header {
			req.Header[k] = vv
		}
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", userAgent)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
			return nil, &StatusError{StatusCode: resp.StatusCode}
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	})
	if err != nil {
		metrics.RecordCollaborator(c.name, operation, statusLabel(err))
		c.logger.DebugContext(ctx, "backend call failed", "operation", operation, "error", err)
		return nil, c.unavailable(operation, err)
	}

	metrics.RecordCollaborator(c.name, operation, "ok")
	return body, nil
}

// getJSON performs get and decodes the body into out.
func (c *backendClient) getJSON(ctx context.Context, operation, rawURL string, header http.Header, out any) error {
	body, err := c.get(ctx, operation, rawURL, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		metrics.RecordCollaborator(c.name, operation, "decode_error")
		return c.unavailable(operation, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *backendClient) unavailable(operation string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", c.name, operation, domain.ErrCollaboratorUnavailable, err)
}

func statusLabel(err error) string {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return strconv.Itoa(statusErr.StatusCode)
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
