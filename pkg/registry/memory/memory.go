// Package memory is an in-process registry.
//
// A Store holds the tree shared by every session. Each Session behaves like a
// client connection: children it registers are ephemeral and disappear when
// the session is closed.
package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/anthanhphan/go-distributed-cache/pkg/registry"
)

// Store is the shared state behind memory sessions.
type Store struct {
	mu     sync.Mutex
	tree   map[string]map[string][]byte
	subs   map[string]map[uint64]func()
	nextID uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		tree: make(map[string]map[string][]byte),
		subs: make(map[string]map[uint64]func()),
	}
}

// Ensure creates a persistent parent path if it does not exist.
func (s *Store) Ensure(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(registry.Normalize(p))
}

// Session opens a new client session on the store.
func (s *Store) Session() *Session {
	return &Session{
		store:     s,
		ephemeral: make(map[string]struct{}),
		subs:      make(map[uint64]string),
	}
}

func (s *Store) ensureLocked(p string) map[string][]byte {
	children, ok := s.tree[p]
	if !ok {
		children = make(map[string][]byte)
		s.tree[p] = children
	}
	return children
}

func (s *Store) put(parent, name string, payload []byte) {
	s.mu.Lock()
	children := s.ensureLocked(parent)
	children[name] = append([]byte(nil), payload...)
	fns := s.subscribersLocked(parent)
	s.mu.Unlock()

	notify(fns)
}

func (s *Store) remove(parent, name string) bool {
	s.mu.Lock()
	children, ok := s.tree[parent]
	if ok {
		_, ok = children[name]
		delete(children, name)
	}
	fns := s.subscribersLocked(parent)
	s.mu.Unlock()

	if ok {
		notify(fns)
	}
	return ok
}

func (s *Store) subscribersLocked(parent string) []func() {
	fns := make([]func(), 0, len(s.subs[parent]))
	for _, fn := range s.subs[parent] {
		fns = append(fns, fn)
	}
	return fns
}

func notify(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

// Session is a registry.Registry backed by a Store.
type Session struct {
	store *Store

	mu        sync.Mutex
	closed    bool
	ephemeral map[string]struct{}
	subs      map[uint64]string
}

var _ registry.Registry = (*Session)(nil)

func (r *Session) Children(ctx context.Context, p string) ([]string, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	p = registry.Normalize(p)

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	children, ok := r.store.tree[p]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, registry.ErrNoNode)
	}
	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *Session) Payload(ctx context.Context, p string) ([]byte, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	p = registry.Normalize(p)
	parent, name := path.Split(p)
	parent = registry.Normalize(parent)

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	data, ok := r.store.tree[parent][name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, registry.ErrNoNode)
	}
	return append([]byte(nil), data...), nil
}

func (r *Session) Subscribe(p string, onChange func()) (registry.Subscription, error) {
	if err := r.check(context.Background()); err != nil {
		return nil, err
	}
	p = registry.Normalize(p)

	r.store.mu.Lock()
	r.store.nextID++
	id := r.store.nextID
	if r.store.subs[p] == nil {
		r.store.subs[p] = make(map[uint64]func())
	}
	r.store.subs[p][id] = onChange
	r.store.mu.Unlock()

	r.mu.Lock()
	r.subs[id] = p
	r.mu.Unlock()

	return registry.SubscriptionFunc(func() { r.unsubscribe(id) }), nil
}

func (r *Session) unsubscribe(id uint64) {
	r.mu.Lock()
	p, ok := r.subs[id]
	delete(r.subs, id)
	r.mu.Unlock()
	if !ok {
		return
	}

	r.store.mu.Lock()
	delete(r.store.subs[p], id)
	r.store.mu.Unlock()
}

func (r *Session) Register(ctx context.Context, p, name string, payload []byte) (string, error) {
	if err := r.check(ctx); err != nil {
		return "", err
	}
	p = registry.Normalize(p)
	child := registry.ChildPath(p, name)

	r.mu.Lock()
	r.ephemeral[child] = struct{}{}
	r.mu.Unlock()

	r.store.put(p, name, payload)
	return child, nil
}

func (r *Session) Deregister(ctx context.Context, childPath string) error {
	if err := r.check(ctx); err != nil {
		return err
	}
	childPath = registry.Normalize(childPath)

	r.mu.Lock()
	delete(r.ephemeral, childPath)
	r.mu.Unlock()

	parent, name := path.Split(childPath)
	if !r.store.remove(registry.Normalize(parent), name) {
		return fmt.Errorf("%s: %w", childPath, registry.ErrNoNode)
	}
	return nil
}

// Close ends the session: subscriptions stop and ephemeral children vanish.
func (r *Session) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	ids := make([]uint64, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	children := make([]string, 0, len(r.ephemeral))
	for c := range r.ephemeral {
		children = append(children, c)
	}
	r.ephemeral = make(map[string]struct{})
	r.mu.Unlock()

	for _, id := range ids {
		r.unsubscribe(id)
	}
	for _, c := range children {
		parent, name := path.Split(c)
		r.store.remove(registry.Normalize(parent), name)
	}
	return nil
}

func (r *Session) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return registry.ErrClosed
	}
	return nil
}
