package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ahrav/go-geoscore/internal/domain"
	"github.com/ahrav/go-geoscore/internal/ports"
)

// ErrCircuitOpen indicates that the circuit breaker rejected a fetch. It
// wraps ports.ErrSourceUnavailable.
var ErrCircuitOpen = fmt.Errorf("circuit breaker is open: %w", ports.ErrSourceUnavailable)

// CircuitBreakerState represents the current state of a circuit breaker.
type CircuitBreakerState int

// Circuit breaker states.
const (
	// StateClosed allows all fetches through.
	StateClosed CircuitBreakerState = iota
	// StateOpen rejects fetches until the cooldown expires.
	StateOpen
	// StateHalfOpen lets a single probe through to test recovery.
	StateHalfOpen
)

// Metric names recorded by the circuit breaker.
const (
	metricBreakerState = "source_circuit_state"
	metricBreakerTrips = "source_circuit_rejections_total"
)

// CircuitBreaker opens after maxFailures consecutive failures and stays
// open for cooldown before letting a probe through. The lock is held only
// while reading or updating state, never across the call.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        CircuitBreakerState
	failureCount int
	maxFailures  int
	cooldown     time.Duration
	openedAt     time.Time
	probing      bool
	now          func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:       StateClosed,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Call runs fn unless the circuit is open.
func (cb *CircuitBreaker) Call(fn func() error) error {
	probe, err := cb.allow()
	if err != nil {
		return err
	}

	err = fn()
	cb.record(probe, err)
	return err
}

func (cb *CircuitBreaker) allow() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probing = true
		return true, nil
	case StateHalfOpen:
		if cb.probing {
			return false, ErrCircuitOpen
		}
		cb.probing = true
		return true, nil
	default:
		return false, nil
	}
}

func (cb *CircuitBreaker) record(probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe {
		cb.probing = false
	}

	if !countsAsFailure(err) {
		if probe || cb.state == StateClosed {
			cb.failureCount = 0
			cb.state = StateClosed
		}
		return
	}

	cb.failureCount++
	if probe || cb.failureCount >= cb.maxFailures {
		cb.state = StateOpen
		cb.openedAt = cb.now()
	}
}

// countsAsFailure reports whether err reflects on the source's health.
// Missing prompts and cancelled callers do not.
func countsAsFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ports.ErrPromptNotFound):
		return false
	case errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

type circuitBreakerSource struct {
	next    ports.EvaluationSource
	cb      *CircuitBreaker
	metrics ports.MetricsCollector
}

// CircuitBreakerMiddleware creates middleware that stops calling the
// source after maxFailures consecutive failures. All sources wrapped by
// the returned middleware share one breaker. metrics may be nil.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration, metrics ports.MetricsCollector) Middleware {
	cb := NewCircuitBreaker(maxFailures, cooldown)

	return func(next ports.EvaluationSource) ports.EvaluationSource {
		return &circuitBreakerSource{next: next, cb: cb, metrics: metrics}
	}
}

func (c *circuitBreakerSource) FetchRuns(ctx context.Context, promptID string) ([]domain.JudgeRun, error) {
	var runs []domain.JudgeRun
	err := c.cb.Call(func() error {
		var err error
		runs, err = c.next.FetchRuns(ctx, promptID)
		return err
	})

	if c.metrics != nil {
		labels := map[string]string{"unit": "evaluation_source"}
		if errors.Is(err, ErrCircuitOpen) {
			c.metrics.RecordCounter(metricBreakerTrips, 1, labels)
		}
		c.metrics.RecordGauge(metricBreakerState, float64(c.cb.State()), labels)
	}

	if err != nil {
		return nil, err
	}
	return runs, nil
}
