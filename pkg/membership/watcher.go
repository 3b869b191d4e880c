// Package membership tracks the set of live cache nodes published in a
// registry and reports changes to listeners.
package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anthanhphan/gosdk/logger"

	"github.com/anthanhphan/go-distributed-cache/pkg/registry"
	"github.com/anthanhphan/go-distributed-cache/pkg/resilience"
)

const (
	refreshTimeout = 10 * time.Second
	errorBuffer    = 16
	queueSize      = 4
)

// ChangeListener is called with the previous and the new snapshot after the
// membership changed.
type ChangeListener func(old, new Snapshot) error

// Watcher keeps the last known membership of a registry path.
//
// Every change signal from the registry schedules a full re-read on a single
// worker, so refreshes and listener calls never overlap and run in order.
type Watcher struct {
	reg  registry.Registry
	path string
	sub  registry.Subscription
	pool *resilience.WorkerPool

	ctx    context.Context
	cancel context.CancelFunc

	pending atomic.Bool
	closed  atomic.Bool

	mu      sync.RWMutex
	current Snapshot

	// notifyMu is held while a new snapshot is published and listeners run.
	notifyMu  sync.Mutex
	listeners []ChangeListener

	errs      chan error
	closeOnce sync.Once
	closeErr  error
}

// NewWatcher subscribes to path and loads the initial membership. The
// watcher takes ownership of reg and closes it on Close. If the initial read
// fails, it returns an error wrapping ErrRegistryUnavailable and reg is left
// open for the caller.
func NewWatcher(ctx context.Context, reg registry.Registry, path string) (*Watcher, error) {
	wctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		reg:     reg,
		path:    registry.Normalize(path),
		pool:    resilience.NewWorkerPool("membership "+path, 1, queueSize),
		ctx:     wctx,
		cancel:  cancel,
		current: NewSnapshot(),
		errs:    make(chan error, errorBuffer),
	}

	sub, err := reg.Subscribe(w.path, w.schedule)
	if err != nil {
		w.stop()
		return nil, fmt.Errorf("%w: subscribe %s: %w", ErrRegistryUnavailable, w.path, err)
	}
	w.sub = sub

	if err := w.Refresh(ctx); err != nil {
		sub.Cancel()
		w.stop()
		if !errors.Is(err, ErrRegistryUnavailable) {
			err = fmt.Errorf("%w: %w", ErrRegistryUnavailable, err)
		}
		return nil, err
	}

	logger.Infow("Membership watcher started", "path", w.path, "nodes", w.Nodes().Sorted())
	return w, nil
}

// Nodes returns a copy of the current snapshot.
func (w *Watcher) Nodes() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current.Clone()
}

// AddChangeListener registers fn and returns the snapshot that the first
// call to fn will report as old. fn must not call back into the watcher.
func (w *Watcher) AddChangeListener(fn ChangeListener) Snapshot {
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()
	w.listeners = append(w.listeners, fn)
	return w.Nodes()
}

// Errors reports refresh failures and listener faults. Reports are dropped
// when the buffer is full. The channel is closed by Close.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Refresh re-reads the membership on the watcher's worker and waits for it.
func (w *Watcher) Refresh(ctx context.Context) error {
	if w.closed.Load() {
		return registry.ErrClosed
	}
	done := make(chan error, 1)
	if err := w.pool.Submit(ctx, func() { done <- w.refresh() }); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops watching, waits for a running refresh and closes the registry.
// No listener runs after Close returns.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.closed.Store(true)
		if w.sub != nil {
			w.sub.Cancel()
		}
		w.stop()
		close(w.errs)
		if err := w.reg.Close(); err != nil {
			w.closeErr = fmt.Errorf("close registry: %w", err)
		}
		logger.Infow("Membership watcher closed", "path", w.path)
	})
	return w.closeErr
}

func (w *Watcher) stop() {
	w.cancel()
	w.pool.Close()
	w.pool.Wait()
}

// schedule queues a refresh unless one is already waiting to run.
func (w *Watcher) schedule() {
	if w.closed.Load() || !w.pending.CompareAndSwap(false, true) {
		return
	}
	// A job already queued reads the registry after this event.
	err := w.pool.TrySubmit(func() {
		w.pending.Store(false)
		if w.closed.Load() {
			return
		}
		_ = w.refresh()
	})
	if err != nil {
		w.pending.Store(false)
	}
}

func (w *Watcher) refresh() error {
	ctx, cancel := context.WithTimeout(w.ctx, refreshTimeout)
	defer cancel()

	next, err := w.read(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrRegistryUnavailable, err)
		logger.Warnw("Membership refresh failed, keeping previous snapshot", "path", w.path, "error", err.Error())
		w.report(err)
		return err
	}

	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()

	w.mu.Lock()
	prev := w.current
	if prev.Equal(next) {
		w.mu.Unlock()
		return nil
	}
	w.current = next
	w.mu.Unlock()

	removed, added := Diff(prev, next)
	logger.Infow("Membership changed", "path", w.path, "removed", removed, "added", added)

	for i, fn := range w.listeners {
		if err := w.invoke(fn, prev, next); err != nil {
			logger.Errorw("Membership listener failed", "listener", i, "error", err.Error())
			w.report(err)
		}
	}
	return nil
}

func (w *Watcher) invoke(fn ChangeListener, prev, next Snapshot) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrListenerFault, r)
		}
	}()
	if err := fn(prev.Clone(), next.Clone()); err != nil {
		return fmt.Errorf("%w: %w", ErrListenerFault, err)
	}
	return nil
}

// read lists the children and their payloads. A missing parent is an empty
// membership; a child deleted between list and read is skipped.
func (w *Watcher) read(ctx context.Context) (Snapshot, error) {
	names, err := w.reg.Children(ctx, w.path)
	if errors.Is(err, registry.ErrNoNode) {
		return NewSnapshot(), nil
	}
	if err != nil {
		return nil, err
	}

	snap := make(Snapshot, len(names))
	for _, name := range names {
		data, err := w.reg.Payload(ctx, registry.ChildPath(w.path, name))
		if errors.Is(err, registry.ErrNoNode) {
			continue
		}
		if err != nil {
			return nil, err
		}
		node := strings.TrimSpace(strings.ToValidUTF8(string(data), "�"))
		if node == "" {
			continue
		}
		snap[node] = struct{}{}
	}
	return snap, nil
}

func (w *Watcher) report(err error) {
	if w.closed.Load() {
		return
	}
	select {
	case w.errs <- err:
	default:
	}
}
