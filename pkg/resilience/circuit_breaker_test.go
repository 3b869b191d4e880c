package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *time.Time) {
	cb := NewCircuitBreaker(cfg)
	now := time.Unix(1_700_000_000, 0)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{
		Node:             "10.0.0.1:6379",
		FailureThreshold: 2,
		OpenTimeout:      200 * time.Millisecond,
	})

	fail := func(context.Context) error { return errors.New("connection refused") }

	if err := cb.Execute(context.Background(), fail); err == nil {
		t.Fatalf("expected first failure")
	}
	if err := cb.Execute(context.Background(), fail); err == nil {
		t.Fatalf("expected second failure")
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("expected circuit open, got %s", cb.State())
	}
	if err := cb.Execute(context.Background(), fail); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestCircuitBreakerHalfOpenClosesOnSuccess(t *testing.T) {
	cb, now := newTestBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		OpenTimeout:      100 * time.Millisecond,
	})

	_ = cb.Execute(context.Background(), func(context.Context) error {
		return errors.New("boom")
	})
	*now = now.Add(120 * time.Millisecond)

	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open after timeout, got %s", cb.State())
	}
	if err := cb.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("expected success in half-open, got %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("expected circuit closed, got %s", cb.State())
	}
}

func TestCircuitBreakerIgnoresCallerCancellation(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1})

	err := cb.Execute(context.Background(), func(context.Context) error {
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("cancellation must not trip the breaker, got %s", cb.State())
	}
}

func TestCircuitBreakerOpenErrorCarriesRetryAfter(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{
		Node:             "node-a:8081",
		FailureThreshold: 1,
		OpenTimeout:      200 * time.Millisecond,
	})

	_ = cb.Execute(context.Background(), func(context.Context) error {
		return errors.New("boom")
	})

	err := cb.Execute(context.Background(), func(context.Context) error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}

	var openErr *CircuitOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected CircuitOpenError, got %T", err)
	}
	if openErr.RetryAfter != 200*time.Millisecond {
		t.Fatalf("expected retry_after 200ms, got %s", openErr.RetryAfter)
	}
	if openErr.Node != "node-a:8081" {
		t.Fatalf("expected node node-a:8081, got %s", openErr.Node)
	}
}

func TestCallCountsClassifiedFailures(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{Node: "node-a:8081", FailureThreshold: 2})

	// A returned value can still count against the node.
	serverError := func(context.Context) (int, error) { return 503, nil }
	byStatus := func(_ context.Context, status int, err error) Verdict {
		if err == nil && status >= 500 {
			return VerdictFailure
		}
		return DefaultClassifier(context.Background(), err)
	}

	for i := 0; i < 2; i++ {
		status, err := Call(context.Background(), cb, serverError, byStatus)
		if err != nil || status != 503 {
			t.Fatalf("expected 503 without error, got %d, %v", status, err)
		}
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("expected circuit open, got %s", cb.State())
	}

	status, err := Call(context.Background(), cb, serverError, byStatus)
	if !errors.Is(err, ErrCircuitOpen) || status != 0 {
		t.Fatalf("expected open error and zero value, got %d, %v", status, err)
	}
}

func TestDefaultClassifierIgnoresEndedCallerContext(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1})

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("a caller deadline must not trip the breaker, got %s", cb.State())
	}

	if got := DefaultClassifier(context.Background(), errors.New("reset by peer")); got != VerdictFailure {
		t.Fatalf("expected failure verdict, got %d", got)
	}
	if got := DefaultClassifier(context.Background(), nil); got != VerdictSuccess {
		t.Fatalf("expected success verdict, got %d", got)
	}
}
