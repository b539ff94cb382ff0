// Package server provides the proxy and admin listeners for lyrics-relay.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"lyrics-relay/internal/resilience"
)

const shutdownTimeout = 10 * time.Second

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// StatsResponse lists the circuit breakers of the backend clients.
type StatsResponse struct {
	CircuitBreakers []CircuitBreakerStatsResponse `json:"circuit_breakers"`
}

// CircuitBreakerStatsResponse represents circuit breaker statistics in the API response.
type CircuitBreakerStatsResponse struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	TotalSuccesses int64  `json:"total_successes"`
	TotalFailures  int64  `json:"total_failures"`
}

// Config holds listener configuration.
type Config struct {
	ProxyAddr      string
	AdminAddr      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxHeaderBytes int
}

// NewProxyServer creates the intercepting server. The handler answers every
// request with Connection: close, so each connection carries one request.
// Unparseable requests get net/http's 400.
func NewProxyServer(cfg Config, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.ProxyAddr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}

// NewAdminHandler serves /health, /metrics and /v1/stats.
func NewAdminHandler(registry *resilience.Registry) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(HealthResponse{
			Status:  "healthy",
			Service: "lyrics-relay",
		})
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := StatsResponse{CircuitBreakers: []CircuitBreakerStatsResponse{}}
		if registry != nil {
			for _, cb := range registry.Stats() {
				stats.CircuitBreakers = append(stats.CircuitBreakers, CircuitBreakerStatsResponse{
					Name:           cb.Name,
					State:          cb.State.String(),
					TotalSuccesses: cb.TotalSuccesses,
					TotalFailures:  cb.TotalFailures,
				})
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(stats)
	})

	return mux
}

// NewAdminServer wraps the admin handler in an http.Server.
func NewAdminServer(cfg Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.AdminAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Runner runs the proxy server and the optional admin server until the
// context is canceled or one of them fails.
type Runner struct {
	Proxy  *http.Server
	Admin  *http.Server
	Logger *slog.Logger
}

// Run listens on the configured addresses and serves.
func (r *Runner) Run(ctx context.Context) error {
	proxyLn, err := net.Listen("tcp", r.Proxy.Addr)
	if err != nil {
		return err
	}

	var adminLn net.Listener
	if r.Admin != nil {
		adminLn, err = net.Listen("tcp", r.Admin.Addr)
		if err != nil {
			proxyLn.Close()
			return err
		}
	}

	return r.Serve(ctx, proxyLn, adminLn)
}

// Serve serves on the given listeners. adminLn may be nil.
func (r *Runner) Serve(ctx context.Context, proxyLn, adminLn net.Listener) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r.Logger.InfoContext(ctx, "starting proxy listener", "address", proxyLn.Addr().String())
		if err := r.Proxy.Serve(proxyLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if r.Admin != nil && adminLn != nil {
		g.Go(func() error {
			r.Logger.InfoContext(ctx, "starting admin listener", "address", adminLn.Addr().String())
			if err := r.Admin.Serve(adminLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		r.Logger.Info("shutting down listeners...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		errs := []error{r.Proxy.Shutdown(shutdownCtx)}
		if r.Admin != nil {
			errs = append(errs, r.Admin.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
