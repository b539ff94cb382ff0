// Package resilience guards outbound collaborator calls with circuit breakers.
package resilience

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and not allowing requests.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed CircuitState = iota
	// StateOpen means the circuit has tripped and is rejecting requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the collaborator has recovered.
	StateHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig holds the configuration for a circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening the circuit.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive successes in half-open state before closing.
	SuccessThreshold int
	// OpenTimeout is how long the circuit stays open before transitioning to half-open.
	OpenTimeout time.Duration
	// IsFailure decides which errors count against the circuit.
	// Nil counts every error except caller cancellation.
	IsFailure func(error) bool
	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(name string, from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns a configuration with sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
	}
}

// CircuitBreakerStats holds statistics about the circuit breaker.
type CircuitBreakerStats struct {
	Name            string
	State           CircuitState
	TotalSuccesses  int64
	TotalFailures   int64
	ConsecFailures  int
	ConsecSuccesses int
}

// CircuitBreaker implements the circuit breaker pattern for one collaborator.
type CircuitBreaker struct {
	mu sync.RWMutex

	name   string
	config CircuitBreakerConfig

	state           CircuitState
	consecFailures  int
	consecSuccesses int
	lastFailure     time.Time

	totalSuccesses int64
	totalFailures  int64
}

// NewCircuitBreaker creates a named circuit breaker.
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		name:   name,
		config: config,
		state:  StateClosed,
	}
}

// Name returns the collaborator name the breaker guards.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	state := cb.state
	lastFailure := cb.lastFailure
	cb.mu.RUnlock()

	if state == StateOpen && time.Since(lastFailure) > cb.config.OpenTimeout {
		return StateHalfOpen
	}

	return state
}

// Allow reports whether a call may go through.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		cb.mu.Unlock()
		return true

	case StateOpen:
		if time.Since(cb.lastFailure) > cb.config.OpenTimeout {
			cb.state = StateHalfOpen
			cb.consecSuccesses = 0
			cb.mu.Unlock()
			cb.notify(StateOpen, StateHalfOpen)
			return true
		}
		cb.mu.Unlock()
		return false

	default:
		cb.mu.Unlock()
		return false
	}
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	atomic.AddInt64(&cb.totalSuccesses, 1)

	cb.mu.Lock()
	cb.consecFailures = 0
	cb.consecSuccesses++

	from := cb.state
	if cb.state == StateHalfOpen && cb.consecSuccesses >= cb.config.SuccessThreshold {
		cb.state = StateClosed
		cb.consecSuccesses = 0
	}
	to := cb.state
	cb.mu.Unlock()

	if from != to {
		cb.notify(from, to)
	}
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	atomic.AddInt64(&cb.totalFailures, 1)

	cb.mu.Lock()
	cb.consecSuccesses = 0
	cb.consecFailures++
	cb.lastFailure = time.Now()

	from := cb.state
	switch cb.state {
	case StateClosed:
		if cb.consecFailures >= cb.config.FailureThreshold {
			cb.state = StateOpen
		}
	case StateHalfOpen:
		cb.state = StateOpen
	}
	to := cb.state
	cb.mu.Unlock()

	if from != to {
		cb.notify(from, to)
	}
}

// Stats returns the current statistics.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return CircuitBreakerStats{
		Name:            cb.name,
		State:           cb.state,
		TotalSuccesses:  atomic.LoadInt64(&cb.totalSuccesses),
		TotalFailures:   atomic.LoadInt64(&cb.totalFailures),
		ConsecFailures:  cb.consecFailures,
		ConsecSuccesses: cb.consecSuccesses,
	}
}

// Reset resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state = StateClosed
	cb.consecFailures = 0
	cb.consecSuccesses = 0
	cb.mu.Unlock()

	if from != StateClosed {
		cb.notify(from, StateClosed)
	}
}

func (cb *CircuitBreaker) isFailure(err error) bool {
	if cb.config.IsFailure != nil {
		return cb.config.IsFailure(err)
	}
	return !errors.Is(err, context.Canceled)
}

func (cb *CircuitBreaker) notify(from, to CircuitState) {
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.name, from, to)
	}
}

// Execute runs fn if the circuit breaker allows it and records the outcome.
// Errors rejected by IsFailure are returned but count as neither outcome.
func Execute[T any](ctx context.Context, cb *CircuitBreaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if cb == nil {
		return fn(ctx)
	}

	if !cb.Allow() {
		return zero, ErrCircuitOpen
	}

	result, err := fn(ctx)
	if err != nil {
		if cb.isFailure(err) {
			cb.RecordFailure()
		}
		return result, err
	}

	cb.RecordSuccess()
	return result, nil
}

// Registry keeps the breakers of a process for stats reporting.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*CircuitBreaker)}
}

// Register adds a breaker, replacing any breaker with the same name.
func (r *Registry) Register(cb *CircuitBreaker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakers[cb.Name()] = cb
}

// Stats returns the stats of every registered breaker sorted by name.
func (r *Registry) Stats() []CircuitBreakerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make([]CircuitBreakerStats, 0, len(r.breakers))
	for _, cb := range r.breakers {
		stats = append(stats, cb.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}
