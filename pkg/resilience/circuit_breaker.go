package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anthanhphan/gosdk/logger"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitOpenError reports circuit-open status for one cache node with a
// concrete retry delay.
type CircuitOpenError struct {
	Node       string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	retryAfter := e.RetryAfter
	if retryAfter < 0 {
		retryAfter = 0
	}
	if e.Node == "" {
		return fmt.Sprintf("%v: retry in %s", ErrCircuitOpen, retryAfter)
	}
	return fmt.Sprintf("%v for node %s: retry in %s", ErrCircuitOpen, e.Node, retryAfter)
}

func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

type CircuitBreakerState string

const (
	CircuitClosed   CircuitBreakerState = "closed"
	CircuitOpen     CircuitBreakerState = "open"
	CircuitHalfOpen CircuitBreakerState = "half_open"
)

type CircuitBreakerConfig struct {
	Node              string
	FailureThreshold  int
	SuccessThreshold  int
	OpenTimeout       time.Duration
	HalfOpenMaxFlight int
}

// CircuitBreaker fails calls to a node fast after repeated failures.
// It never redirects a call elsewhere; an open circuit is just an error.
type CircuitBreaker struct {
	mu sync.Mutex

	cfg CircuitBreakerConfig
	now func() time.Time

	state        CircuitBreakerState
	failureCount int
	successCount int
	openUntil    time.Time
	halfInFlight int
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 5 * time.Second
	}
	if cfg.HalfOpenMaxFlight <= 0 {
		cfg.HalfOpenMaxFlight = 1
	}

	return &CircuitBreaker{
		cfg:   cfg,
		now:   time.Now,
		state: CircuitClosed,
	}
}

func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.refreshStateLocked(cb.now())
	return cb.state
}

// Verdict is how the result of one call counts toward a breaker.
type Verdict int

const (
	VerdictSuccess Verdict = iota
	VerdictFailure
	// VerdictIgnore releases the call without counting it either way.
	VerdictIgnore
)

// Classifier judges the result of a call made with ctx.
type Classifier[T any] func(ctx context.Context, result T, err error) Verdict

// DefaultClassifier counts every error as a node failure unless the caller
// cancelled or its context ended.
func DefaultClassifier(ctx context.Context, err error) Verdict {
	switch {
	case err == nil:
		return VerdictSuccess
	case errors.Is(err, context.Canceled), ctx.Err() != nil:
		return VerdictIgnore
	default:
		return VerdictFailure
	}
}

// Execute runs fn unless the circuit is open and judges its error with
// DefaultClassifier.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	_, err := Call(ctx, cb, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, func(ctx context.Context, _ struct{}, err error) Verdict {
		return DefaultClassifier(ctx, err)
	})
	return err
}

// Call runs fn through cb unless the circuit is open. classify decides how
// the result counts, so a call may return a value and still fail the node.
func Call[T any](ctx context.Context, cb *CircuitBreaker, fn func(context.Context) (T, error), classify Classifier[T]) (T, error) {
	var zero T
	if err := cb.beforeRequest(); err != nil {
		return zero, err
	}

	result, err := fn(ctx)
	cb.record(classify(ctx, result, err))
	return result, err
}

func (cb *CircuitBreaker) record(v Verdict) {
	switch v {
	case VerdictSuccess:
		cb.afterSuccess()
	case VerdictFailure:
		cb.afterFailure()
	default:
		cb.afterIgnored()
	}
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cb.refreshStateLocked(now)

	switch cb.state {
	case CircuitOpen:
		return cb.openErrLocked(now)
	case CircuitHalfOpen:
		if cb.halfInFlight >= cb.cfg.HalfOpenMaxFlight {
			return cb.openErrLocked(now)
		}
		cb.halfInFlight++
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) afterSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitHalfOpen:
		cb.releaseHalfLocked()
		cb.successCount++
		if cb.successCount >= cb.cfg.SuccessThreshold {
			cb.resetLocked(CircuitClosed)
			logger.Infow("Circuit closed", "node", cb.cfg.Node)
		}
	default:
		cb.failureCount = 0
	}
}

func (cb *CircuitBreaker) afterFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitHalfOpen:
		cb.releaseHalfLocked()
		cb.tripLocked()
	default:
		cb.failureCount++
		if cb.failureCount >= cb.cfg.FailureThreshold {
			cb.tripLocked()
		}
	}
}

func (cb *CircuitBreaker) afterIgnored() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitHalfOpen {
		cb.releaseHalfLocked()
	}
}

func (cb *CircuitBreaker) releaseHalfLocked() {
	if cb.halfInFlight > 0 {
		cb.halfInFlight--
	}
}

func (cb *CircuitBreaker) refreshStateLocked(now time.Time) {
	if cb.state == CircuitOpen && !now.Before(cb.openUntil) {
		cb.resetLocked(CircuitHalfOpen)
	}
}

func (cb *CircuitBreaker) tripLocked() {
	cb.resetLocked(CircuitOpen)
	cb.openUntil = cb.now().Add(cb.cfg.OpenTimeout)
	logger.Warnw("Circuit opened", "node", cb.cfg.Node, "open_timeout", cb.cfg.OpenTimeout.String())
}

func (cb *CircuitBreaker) resetLocked(state CircuitBreakerState) {
	cb.state = state
	cb.failureCount = 0
	cb.successCount = 0
	cb.halfInFlight = 0
}

func (cb *CircuitBreaker) openErrLocked(now time.Time) error {
	remaining := cb.openUntil.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return &CircuitOpenError{
		Node:       cb.cfg.Node,
		RetryAfter: remaining,
	}
}
