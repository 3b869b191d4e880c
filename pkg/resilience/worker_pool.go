package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/anthanhphan/gosdk/logger"
)

var (
	ErrWorkerPoolClosed = errors.New("worker pool is closed")
	ErrQueueFull        = errors.New("worker pool queue is full")
)

// WorkerPool runs jobs on a fixed set of goroutines. A pool with one worker
// runs jobs one at a time in submission order. A panicking job is logged and
// does not take its worker down.
type WorkerPool struct {
	name   string
	queue  chan func()
	mu     sync.RWMutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
	panics atomic.Int64
}

func NewWorkerPool(name string, workers, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}

	p := &WorkerPool{
		name:  name,
		queue: make(chan func(), queueSize),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

func (p *WorkerPool) work() {
	defer p.wg.Done()
	for job := range p.queue {
		p.run(job)
	}
}

func (p *WorkerPool) run(job func()) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			logger.Errorw("Worker pool job panicked", "pool", p.name, "panic", fmt.Sprint(r))
		}
	}()
	job()
}

// Submit queues job, blocking while the queue is full.
func (p *WorkerPool) Submit(ctx context.Context, job func()) error {
	if job == nil {
		return nil
	}

	// Held across the send so Close cannot close the queue under a submitter.
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrWorkerPoolClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.queue <- job:
		return nil
	}
}

// TrySubmit queues job without blocking and fails with ErrQueueFull when
// there is no room.
func (p *WorkerPool) TrySubmit(job func()) error {
	if job == nil {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrWorkerPoolClosed
	}

	select {
	case p.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Panics reports how many jobs have panicked.
func (p *WorkerPool) Panics() int64 {
	return p.panics.Load()
}

// Close stops accepting jobs. Queued jobs still run.
func (p *WorkerPool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
	})
}

// Wait blocks until every worker has exited. Call Close first.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
