// Package zookeeper implements registry.Registry on Apache ZooKeeper.
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/go-zookeeper/zk"

	"github.com/anthanhphan/go-distributed-cache/pkg/registry"
)

const (
	// DefaultTarget is the connect string used when nothing else is configured.
	DefaultTarget = "localhost:2181"

	defaultSessionTimeout = 10 * time.Second
	watchRetryMin         = 200 * time.Millisecond
	watchRetryMax         = 5 * time.Second
)

type Config struct {
	Servers        []string
	SessionTimeout time.Duration
}

// Registry is a ZooKeeper-backed registry.Registry.
type Registry struct {
	conn *zk.Conn
	acl  []zk.ACL

	mu         sync.Mutex
	registered map[string][]byte // ephemeral child -> payload, restored after session expiry

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ registry.Registry = (*Registry)(nil)

// New connects to the ensemble. The connection is established in the
// background; calls block until a session exists or fail with an error.
func New(cfg Config) (*Registry, error) {
	if len(cfg.Servers) == 0 {
		cfg.Servers = []string{DefaultTarget}
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = defaultSessionTimeout
	}

	conn, events, err := zk.Connect(cfg.Servers, cfg.SessionTimeout, zk.WithLogger(zkLogger{}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper %v: %w", cfg.Servers, err)
	}

	r := &Registry{
		conn:       conn,
		acl:        zk.WorldACL(zk.PermAll),
		registered: make(map[string][]byte),
		closing:    make(chan struct{}),
	}

	r.wg.Add(1)
	go r.sessionLoop(events)

	return r, nil
}

func (r *Registry) Children(ctx context.Context, p string) ([]string, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	children, _, err := r.conn.Children(registry.Normalize(p))
	if err != nil {
		return nil, mapErr(p, err)
	}
	return children, nil
}

func (r *Registry) Payload(ctx context.Context, p string) ([]byte, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	data, _, err := r.conn.Get(registry.Normalize(p))
	if err != nil {
		return nil, mapErr(p, err)
	}
	return data, nil
}

// Subscribe watches the child list of p and the data of every child.
// ZooKeeper watches fire once, so each one is re-armed after it fires.
func (r *Registry) Subscribe(p string, onChange func()) (registry.Subscription, error) {
	if err := r.check(context.Background()); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	var once sync.Once

	r.wg.Add(1)
	go r.watchLoop(registry.Normalize(p), onChange, done)

	return registry.SubscriptionFunc(func() {
		once.Do(func() { close(done) })
	}), nil
}

// watchState tracks which one-shot watches are pending for a subscription.
type watchState struct {
	listArmed   bool
	children    []string
	dataWatched map[string]bool
}

func (r *Registry) watchLoop(p string, onChange func(), done <-chan struct{}) {
	defer r.wg.Done()

	// "" marks the child-list (or existence) watch, anything else a child's data watch.
	fired := make(chan string, 16)
	st := &watchState{dataWatched: make(map[string]bool)}
	backoff := watchRetryMin

	forward := func(w <-chan zk.Event, name string) {
		select {
		case <-w:
			select {
			case fired <- name:
			case <-done:
			case <-r.closing:
			}
		case <-done:
		case <-r.closing:
		}
	}

	for {
		if err := r.arm(p, st, forward); err != nil {
			if r.isClosed() {
				return
			}
			logger.Warnw("Failed to arm registry watch, retrying", "path", p, "backoff", backoff.String(), "error", err.Error())
			select {
			case <-done:
				return
			case <-r.closing:
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > watchRetryMax {
				backoff = watchRetryMax
			}
			continue
		}
		backoff = watchRetryMin

		select {
		case <-done:
			return
		case <-r.closing:
			return
		case name := <-fired:
			if name == "" {
				st.listArmed = false
			} else {
				delete(st.dataWatched, name)
			}
		}
		onChange()
	}
}

func (r *Registry) arm(p string, st *watchState, forward func(<-chan zk.Event, string)) error {
	if !st.listArmed {
		children, _, w, err := r.conn.ChildrenW(p)
		switch {
		case errors.Is(err, zk.ErrNoNode):
			exists, _, ew, existsErr := r.conn.ExistsW(p)
			if existsErr != nil {
				return existsErr
			}
			if exists {
				// Created between the two calls; list again.
				return r.arm(p, st, forward)
			}
			st.listArmed = true
			st.children = nil
			go forward(ew, "")
		case err != nil:
			return err
		default:
			st.listArmed = true
			st.children = children
			go forward(w, "")
		}

		live := make(map[string]bool, len(st.children))
		for _, c := range st.children {
			live[c] = true
		}
		for c := range st.dataWatched {
			if !live[c] {
				// The pending watch fires on deletion; stop tracking it.
				delete(st.dataWatched, c)
			}
		}
	}

	for _, c := range st.children {
		if st.dataWatched[c] {
			continue
		}
		_, _, dw, err := r.conn.GetW(path.Join(p, c))
		if errors.Is(err, zk.ErrNoNode) {
			continue
		}
		if err != nil {
			return err
		}
		st.dataWatched[c] = true
		go forward(dw, c)
	}
	return nil
}

// Register creates missing parents as persistent nodes and the child as an
// ephemeral node. A leftover node with the same name from an earlier session
// is replaced.
func (r *Registry) Register(ctx context.Context, p, name string, payload []byte) (string, error) {
	if err := r.check(ctx); err != nil {
		return "", err
	}
	p = registry.Normalize(p)
	child := registry.ChildPath(p, name)

	if err := r.ensurePath(p); err != nil {
		return "", err
	}
	if err := r.createEphemeral(child, payload); err != nil {
		return "", err
	}

	r.mu.Lock()
	r.registered[child] = append([]byte(nil), payload...)
	r.mu.Unlock()
	return child, nil
}

func (r *Registry) Deregister(ctx context.Context, childPath string) error {
	if err := r.check(ctx); err != nil {
		return err
	}
	childPath = registry.Normalize(childPath)

	r.mu.Lock()
	delete(r.registered, childPath)
	r.mu.Unlock()

	if err := r.conn.Delete(childPath, -1); err != nil {
		return mapErr(childPath, err)
	}
	return nil
}

func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		close(r.closing)
		r.conn.Close()
	})
	r.wg.Wait()
	return nil
}

func (r *Registry) ensurePath(p string) error {
	current := ""
	for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
		if part == "" {
			continue
		}
		current += "/" + part
		_, err := r.conn.Create(current, nil, 0, r.acl)
		if err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return fmt.Errorf("failed to create %s: %w", current, err)
		}
	}
	return nil
}

func (r *Registry) createEphemeral(child string, payload []byte) error {
	_, err := r.conn.Create(child, payload, zk.FlagEphemeral, r.acl)
	if errors.Is(err, zk.ErrNodeExists) {
		if delErr := r.conn.Delete(child, -1); delErr != nil && !errors.Is(delErr, zk.ErrNoNode) {
			return fmt.Errorf("failed to replace stale %s: %w", child, delErr)
		}
		_, err = r.conn.Create(child, payload, zk.FlagEphemeral, r.acl)
	}
	if err != nil {
		return fmt.Errorf("failed to create ephemeral %s: %w", child, err)
	}
	return nil
}

// sessionLoop restores ephemeral registrations after the session expires.
func (r *Registry) sessionLoop(events <-chan zk.Event) {
	defer r.wg.Done()

	expired := false
	for {
		select {
		case <-r.closing:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.State {
			case zk.StateExpired:
				expired = true
				logger.Warnw("ZooKeeper session expired", "server", ev.Server)
			case zk.StateHasSession:
				if expired {
					expired = false
					r.restoreRegistrations()
				}
			}
		}
	}
}

func (r *Registry) restoreRegistrations() {
	r.mu.Lock()
	pending := make(map[string][]byte, len(r.registered))
	for child, payload := range r.registered {
		pending[child] = payload
	}
	r.mu.Unlock()

	for child, payload := range pending {
		parent, _ := path.Split(child)
		if err := r.ensurePath(parent); err != nil {
			logger.Errorw("Failed to restore registry parent", "path", parent, "error", err.Error())
			continue
		}
		if err := r.createEphemeral(child, payload); err != nil {
			logger.Errorw("Failed to restore registration", "path", child, "error", err.Error())
			continue
		}
		logger.Infow("Restored registration after session expiry", "path", child)
	}
}

func (r *Registry) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.isClosed() {
		return registry.ErrClosed
	}
	return nil
}

func (r *Registry) isClosed() bool {
	select {
	case <-r.closing:
		return true
	default:
		return false
	}
}

func mapErr(p string, err error) error {
	switch {
	case errors.Is(err, zk.ErrNoNode):
		return fmt.Errorf("%s: %w", p, registry.ErrNoNode)
	case errors.Is(err, zk.ErrClosing), errors.Is(err, zk.ErrConnectionClosed):
		return fmt.Errorf("%s: %w", p, registry.ErrClosed)
	default:
		return fmt.Errorf("zookeeper %s: %w", p, err)
	}
}

type zkLogger struct{}

func (zkLogger) Printf(format string, args ...interface{}) {
	logger.Debugw("zookeeper", "detail", fmt.Sprintf(format, args...))
}
