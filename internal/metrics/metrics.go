// Package metrics provides Prometheus metrics for lyrics-relay.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ForwardTotal counts pass-through requests by upstream status.
	ForwardTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lyrics_relay",
			Name:      "forward_total",
			Help:      "Total number of requests forwarded upstream",
		},
		[]string{"method", "status"},
	)

	// ForwardErrorsTotal counts forwarding failures by error kind.
	ForwardErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lyrics_relay",
			Name:      "forward_errors_total",
			Help:      "Total number of failed upstream forwards",
		},
		[]string{"kind"},
	)

	// ForwardDuration measures upstream round trips including body buffering.
	ForwardDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lyrics_relay",
			Name:      "forward_duration_seconds",
			Help:      "Duration of upstream forwards in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// LyricsRequestsTotal counts local lyrics requests by outcome.
	LyricsRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lyrics_relay",
			Name:      "lyrics_requests_total",
			Help:      "Total number of lyrics requests answered locally",
		},
		[]string{"outcome", "provider"},
	)

	// LyricsDuration measures the full lyrics pipeline.
	LyricsDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lyrics_relay",
			Name:      "lyrics_duration_seconds",
			Help:      "Duration of the lyrics pipeline in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// CollaboratorRequestsTotal counts outbound collaborator calls.
	CollaboratorRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lyrics_relay",
			Name:      "collaborator_requests_total",
			Help:      "Total number of calls to metadata and lyrics providers",
		},
		[]string{"collaborator", "operation", "status"},
	)

	// CircuitState tracks breaker state per collaborator (0 closed, 1 open, 2 half-open).
	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "lyrics_relay",
			Name:      "circuit_state",
			Help:      "Circuit breaker state per collaborator",
		},
		[]string{"collaborator"},
	)

	// TokenRefreshTotal counts OAuth token exchanges.
	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lyrics_relay",
			Name:      "token_refresh_total",
			Help:      "Total number of OAuth token exchanges",
		},
		[]string{"collaborator", "status"},
	)
)

// RecordForward records a relayed upstream response.
func RecordForward(method string, statusCode int, seconds float64) {
	ForwardTotal.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	ForwardDuration.WithLabelValues(method).Observe(seconds)
}

// RecordForwardError records a failed forward.
func RecordForwardError(kind string) {
	ForwardErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordLyrics records the outcome of a local lyrics request.
func RecordLyrics(outcome, provider string, seconds float64) {
	LyricsRequestsTotal.WithLabelValues(outcome, provider).Inc()
	LyricsDuration.Observe(seconds)
}

// RecordCollaborator records one outbound collaborator call.
func RecordCollaborator(collaborator, operation, status string) {
	CollaboratorRequestsTotal.WithLabelValues(collaborator, operation, status).Inc()
}

// SetCircuitState publishes a breaker state.
func SetCircuitState(collaborator string, state int) {
	CircuitState.WithLabelValues(collaborator).Set(float64(state))
}

// RecordTokenRefresh records an OAuth token exchange.
func RecordTokenRefresh(collaborator, status string) {
	TokenRefreshTotal.WithLabelValues(collaborator, status).Inc()
}
