package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when an operation is rejected because the breaker is open.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// Operation is a unit of work executed through a circuit breaker.
type Operation func(ctx context.Context) (interface{}, error)

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings tunes a circuit breaker.
type Settings struct {
	// Name identifies the breaker in logs and metrics.
	Name string
	// Interval is the rolling window after which failure counts reset while closed.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing with half-open.
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
	// SuccessThreshold is the number of half-open successes required to close.
	SuccessThreshold uint32
}

// CircuitBreaker protects a downstream dependency from repeated failing calls.
type CircuitBreaker struct {
	name     string
	settings Settings
	fallback FallbackFunc

	mu           sync.Mutex
	state        State
	failures     uint32
	successes    uint32
	windowStart  time.Time
	openedAt     time.Time
}

// NewCircuitBreaker creates a circuit breaker with the given settings and fallback.
// A nil fallback behaves like NoopFallback.
func NewCircuitBreaker(settings Settings, fallback FallbackFunc) *CircuitBreaker {
	if settings.Interval <= 0 {
		settings.Interval = time.Minute
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 5
	}
	if settings.SuccessThreshold == 0 {
		settings.SuccessThreshold = 1
	}
	if fallback == nil {
		fallback = NoopFallback
	}

	name := nextBreakerName(settings.Name)
	cb := &CircuitBreaker{
		name:        name,
		settings:    settings,
		fallback:    fallback,
		state:       StateClosed,
		windowStart: time.Now(),
	}
	recordBreakerState(name, StateClosed)
	return cb
}

// Name returns the breaker's metric/log identifier.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState(time.Now())
}

// Execute runs the operation through the breaker. When the breaker is open the
// operation is not attempted and the fallback decides the result.
func (cb *CircuitBreaker) Execute(ctx context.Context, op Operation) (interface{}, error) {
	if !cb.allow() {
		recordBreakerFallback(cb.name)
		return cb.fallback(ctx, ErrCircuitOpen)
	}

	recordBreakerRequest(cb.name)
	result, err := op(ctx)
	cb.record(err)
	if err != nil {
		recordBreakerFailure(cb.name)
	}
	return result, err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	switch cb.currentState(now) {
	case StateOpen:
		return false
	case StateClosed:
		// Reset the failure window when the interval elapses.
		if now.Sub(cb.windowStart) > cb.settings.Interval {
			cb.windowStart = now
			cb.failures = 0
		}
	}
	return true
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state := cb.currentState(now)

	if err == nil {
		switch state {
		case StateHalfOpen:
			cb.successes++
			if cb.successes >= cb.settings.SuccessThreshold {
				cb.transition(state, StateClosed, now)
			}
		case StateClosed:
			cb.failures = 0
		}
		return
	}

	switch state {
	case StateHalfOpen:
		cb.transition(state, StateOpen, now)
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.settings.FailureThreshold {
			cb.transition(state, StateOpen, now)
		}
	}
}

// currentState folds the open→half-open timeout into state reads. Callers hold mu.
func (cb *CircuitBreaker) currentState(now time.Time) State {
	if cb.state == StateOpen && now.Sub(cb.openedAt) >= cb.settings.Timeout {
		cb.transition(StateOpen, StateHalfOpen, now)
	}
	return cb.state
}

func (cb *CircuitBreaker) transition(from, to State, now time.Time) {
	if from == to {
		return
	}
	cb.state = to
	switch to {
	case StateOpen:
		cb.openedAt = now
	case StateHalfOpen:
		cb.successes = 0
	case StateClosed:
		cb.failures = 0
		cb.successes = 0
		cb.windowStart = now
	}
	recordBreakerStateChange(cb.name, from, to)
}
