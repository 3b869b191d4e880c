package resilience

import (
	"context"
	"errors"
	"testing"
)

func TestBreakerSetPerNode(t *testing.T) {
	set := NewBreakerSet(CircuitBreakerConfig{FailureThreshold: 1})

	if set.Get("a:1") != set.Get("a:1") {
		t.Fatal("expected the same breaker for the same node")
	}

	_ = set.Get("a:1").Execute(context.Background(), func(context.Context) error {
		return errors.New("boom")
	})

	states := set.States()
	if states["a:1"] != CircuitOpen {
		t.Fatalf("expected a:1 open, got %s", states["a:1"])
	}
	if set.Get("b:2").State() != CircuitClosed {
		t.Fatal("a failing node must not affect other nodes")
	}

	err := set.Get("a:1").Execute(context.Background(), func(context.Context) error { return nil })
	var openErr *CircuitOpenError
	if !errors.As(err, &openErr) || openErr.Node != "a:1" {
		t.Fatalf("expected open error for a:1, got %v", err)
	}
}

func TestBreakerSetForget(t *testing.T) {
	set := NewBreakerSet(CircuitBreakerConfig{FailureThreshold: 1})
	_ = set.Get("a:1").Execute(context.Background(), func(context.Context) error {
		return errors.New("boom")
	})

	set.Forget("a:1")
	set.Forget("missing:1")

	if _, ok := set.States()["a:1"]; ok {
		t.Fatal("forgotten node still tracked")
	}
	if set.Get("a:1").State() != CircuitClosed {
		t.Fatal("expected a fresh closed breaker after Forget")
	}
}
