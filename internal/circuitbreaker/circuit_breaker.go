// Package circuitbreaker guards external endpoints (subgraph gateway,
// price API, beacon API) so a dead upstream fails fast instead of
// stalling every collector in the cycle.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/crypto-tracker/internal/logging"
)

// State represents the circuit breaker state
type State string

const (
	// StateClosed means the circuit is closed and requests are allowed
	StateClosed State = "closed"
	// StateOpen means the circuit is open and requests are blocked
	StateOpen State = "open"
	// StateHalfOpen means the circuit is testing if the service has recovered
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrTooManyRequests is returned when too many requests are made in half-open state
var ErrTooManyRequests = errors.New("too many requests in half-open state")

// Config configures a circuit breaker
type Config struct {
	Name             string
	MaxFailures      int
	FailureThreshold float64
	Timeout          time.Duration
	HalfOpenMaxCalls int
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) *Config {
	return &Config{
		Name:             name,
		MaxFailures:      10,
		FailureThreshold: 0.5,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	name             string
	maxFailures      int
	failureThreshold float64
	timeout          time.Duration
	halfOpenMaxCalls int

	mu               sync.RWMutex
	state            State
	failures         int
	successes        int
	totalCalls       int
	lastFailureTime  time.Time
	lastStateChange  time.Time
	consecutiveFails int
}

// New creates a new circuit breaker
func New(config *Config) *CircuitBreaker {
	return &CircuitBreaker{
		name:             config.Name,
		maxFailures:      config.MaxFailures,
		failureThreshold: config.FailureThreshold,
		timeout:          config.Timeout,
		halfOpenMaxCalls: config.HalfOpenMaxCalls,
		state:            StateClosed,
		lastStateChange:  time.Now(),
	}
}

// Execute executes a function with circuit breaker protection
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn()
	cb.afterRequest(err)
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(cb.lastStateChange) > cb.timeout {
			cb.setState(StateHalfOpen)
			// Half-open probes are counted from zero so closed-phase
			// traffic cannot trip the probe limit.
			cb.reset()
			logging.L().Infow("Circuit breaker transitioning to half-open", "breaker", cb.name)
			return nil
		}
		return ErrCircuitOpen

	case StateHalfOpen:
		if cb.totalCalls >= cb.halfOpenMaxCalls {
			return ErrTooManyRequests
		}
		return nil

	default:
		return nil
	}
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalCalls++

	if err != nil {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.successes++
	cb.consecutiveFails = 0

	if cb.state == StateHalfOpen && cb.successes >= cb.halfOpenMaxCalls {
		cb.setState(StateClosed)
		cb.reset()
		logging.L().Infow("Circuit breaker closed after recovery", "breaker", cb.name)
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.failures++
	cb.consecutiveFails++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.shouldOpen() {
			cb.setState(StateOpen)
			logging.L().Warnw("Circuit breaker opened",
				"breaker", cb.name,
				"failures", cb.failures,
				"totalCalls", cb.totalCalls,
				"failureRate", cb.getFailureRate(),
				"consecutiveFails", cb.consecutiveFails,
			)
		}

	case StateHalfOpen:
		// Any failure in half-open reopens the circuit
		cb.setState(StateOpen)
		logging.L().Warnw("Circuit breaker reopened after failure in half-open state", "breaker", cb.name)
	}
}

func (cb *CircuitBreaker) shouldOpen() bool {
	// Need a minimum number of calls before rate-based decisions
	if cb.consecutiveFails >= cb.maxFailures {
		return true
	}
	if cb.totalCalls < cb.maxFailures {
		return false
	}
	return cb.getFailureRate() >= cb.failureThreshold
}

func (cb *CircuitBreaker) getFailureRate() float64 {
	if cb.totalCalls == 0 {
		return 0.0
	}
	return float64(cb.failures) / float64(cb.totalCalls)
}

func (cb *CircuitBreaker) setState(state State) {
	cb.state = state
	cb.lastStateChange = time.Now()
}

func (cb *CircuitBreaker) reset() {
	cb.failures = 0
	cb.successes = 0
	cb.totalCalls = 0
	cb.consecutiveFails = 0
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Stats represents circuit breaker statistics
type Stats struct {
	Name             string    `json:"name"`
	State            State     `json:"state"`
	Failures         int       `json:"failures"`
	Successes        int       `json:"successes"`
	TotalCalls       int       `json:"totalCalls"`
	ConsecutiveFails int       `json:"consecutiveFails"`
	FailureRate      float64   `json:"failureRate"`
	LastFailureTime  time.Time `json:"lastFailureTime"`
	LastStateChange  time.Time `json:"lastStateChange"`
}

// GetStats returns statistics about the circuit breaker
func (cb *CircuitBreaker) GetStats() *Stats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return &Stats{
		Name:             cb.name,
		State:            cb.state,
		Failures:         cb.failures,
		Successes:        cb.successes,
		TotalCalls:       cb.totalCalls,
		ConsecutiveFails: cb.consecutiveFails,
		FailureRate:      cb.getFailureRate(),
		LastFailureTime:  cb.lastFailureTime,
		LastStateChange:  cb.lastStateChange,
	}
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(StateClosed)
	cb.reset()
}
