package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolExecutesJobs(t *testing.T) {
	pool := NewWorkerPool("test", 3, 6)

	var count atomic.Int32
	for i := 0; i < 10; i++ {
		if err := pool.Submit(context.Background(), func() { count.Add(1) }); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}
	pool.Close()
	pool.Wait()

	if got := count.Load(); got != 10 {
		t.Fatalf("expected 10 jobs executed, got %d", got)
	}
}

func TestWorkerPoolSingleWorkerKeepsOrder(t *testing.T) {
	pool := NewWorkerPool("ordered", 1, 4)

	var (
		mu    sync.Mutex
		order []int
	)
	for i := 0; i < 20; i++ {
		if err := pool.Submit(context.Background(), func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}
	pool.Close()
	pool.Wait()

	if len(order) != 20 {
		t.Fatalf("expected 20 jobs, got %d", len(order))
	}
	for pos, v := range order {
		if v != pos {
			t.Fatalf("job %d ran at position %d", v, pos)
		}
	}
}

func TestWorkerPoolSubmitAfterClose(t *testing.T) {
	pool := NewWorkerPool("closed", 1, 1)
	pool.Close()
	pool.Close()

	if err := pool.Submit(context.Background(), func() {}); err != ErrWorkerPoolClosed {
		t.Fatalf("expected ErrWorkerPoolClosed, got %v", err)
	}
	if err := pool.TrySubmit(func() {}); err != ErrWorkerPoolClosed {
		t.Fatalf("expected ErrWorkerPoolClosed from TrySubmit, got %v", err)
	}
}

func TestWorkerPoolBackpressure(t *testing.T) {
	pool := NewWorkerPool("busy", 1, 1)
	release := make(chan struct{})
	started := make(chan struct{})
	defer func() {
		close(release)
		pool.Close()
		pool.Wait()
	}()

	// Occupy the worker, then fill the queue.
	_ = pool.Submit(context.Background(), func() {
		close(started)
		<-release
	})
	<-started
	if err := pool.TrySubmit(func() {}); err != nil {
		t.Fatalf("expected queued job, got %v", err)
	}

	if err := pool.TrySubmit(func() {}); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := pool.Submit(ctx, func() {}); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWorkerPoolSurvivesPanic(t *testing.T) {
	pool := NewWorkerPool("panicky", 1, 2)

	var ran atomic.Bool
	_ = pool.Submit(context.Background(), func() { panic("boom") })
	_ = pool.Submit(context.Background(), func() { ran.Store(true) })
	pool.Close()
	pool.Wait()

	if !ran.Load() {
		t.Fatal("job after a panic did not run")
	}
	if got := pool.Panics(); got != 1 {
		t.Fatalf("expected 1 panic, got %d", got)
	}
}
