// Package gossip implements registry.Registry on a memberlist cluster.
//
// Every member advertises its registrations in its node metadata. A child of
// a path exists as long as some live member advertises it, so registrations
// vanish when their member leaves or is declared dead.
package gossip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/hashicorp/memberlist"

	"github.com/anthanhphan/go-distributed-cache/pkg/registry"
)

// ErrMetaTooLarge is returned when a registration would not fit in the
// member's gossip metadata.
var ErrMetaTooLarge = errors.New("gossip node meta too large")

const (
	leaveTimeout  = 5 * time.Second
	updateTimeout = 5 * time.Second
)

type Config struct {
	NodeName string
	BindAddr string
	BindPort int
	Seeds    []string
}

// entry is one advertised registration.
type entry struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Payload string `json:"payload"`
}

// Registry is a memberlist-backed registry.Registry.
type Registry struct {
	list *memberlist.Memberlist

	mu      sync.Mutex
	entries map[string]entry // child path -> entry advertised by this member
	subs    map[uint64]func()
	nextID  uint64
	closed  bool
}

var (
	_ registry.Registry        = (*Registry)(nil)
	_ memberlist.Delegate      = (*Registry)(nil)
	_ memberlist.EventDelegate = (*Registry)(nil)
)

// New starts a memberlist agent and joins the given seeds.
func New(cfg Config) (*Registry, error) {
	conf := memberlist.DefaultLANConfig()
	if cfg.NodeName != "" {
		conf.Name = cfg.NodeName
	}
	if cfg.BindAddr != "" {
		conf.BindAddr = cfg.BindAddr
	}
	conf.BindPort = cfg.BindPort
	conf.AdvertisePort = cfg.BindPort
	conf.LogOutput = io.Discard

	r := &Registry{
		entries: make(map[string]entry),
		subs:    make(map[uint64]func()),
	}
	conf.Events = r
	conf.Delegate = r

	list, err := memberlist.Create(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create memberlist: %w", err)
	}
	r.list = list

	if len(cfg.Seeds) > 0 {
		if _, err := list.Join(cfg.Seeds); err != nil {
			_ = list.Shutdown()
			return nil, fmt.Errorf("failed to join cluster: %w", err)
		}
	}
	return r, nil
}

func (r *Registry) Children(ctx context.Context, p string) ([]string, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	p = registry.Normalize(p)

	seen := make(map[string]struct{})
	for _, e := range r.advertised() {
		if e.Path == p {
			seen[e.Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *Registry) Payload(ctx context.Context, p string) ([]byte, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	p = registry.Normalize(p)
	parent, name := path.Split(p)
	parent = registry.Normalize(parent)

	for _, e := range r.advertised() {
		if e.Path == parent && e.Name == name {
			return []byte(e.Payload), nil
		}
	}
	return nil, fmt.Errorf("%s: %w", p, registry.ErrNoNode)
}

// Subscribe calls onChange on every membership event. Events are not
// filtered by path since any member may carry entries for any path.
func (r *Registry) Subscribe(_ string, onChange func()) (registry.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, registry.ErrClosed
	}
	r.nextID++
	id := r.nextID
	r.subs[id] = onChange

	return registry.SubscriptionFunc(func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}), nil
}

func (r *Registry) Register(ctx context.Context, p, name string, payload []byte) (string, error) {
	if err := r.check(ctx); err != nil {
		return "", err
	}
	p = registry.Normalize(p)
	child := registry.ChildPath(p, name)

	r.mu.Lock()
	prev, hadPrev := r.entries[child]
	r.entries[child] = entry{Path: p, Name: name, Payload: string(payload)}
	size, err := r.metaSizeLocked()
	if err == nil && size > memberlist.MetaMaxSize {
		err = fmt.Errorf("%w: %d bytes, limit %d", ErrMetaTooLarge, size, memberlist.MetaMaxSize)
	}
	if err != nil {
		r.restoreLocked(child, prev, hadPrev)
		r.mu.Unlock()
		return "", fmt.Errorf("failed to advertise %s: %w", child, err)
	}
	r.mu.Unlock()

	if err := r.list.UpdateNode(updateTimeout); err != nil {
		r.mu.Lock()
		r.restoreLocked(child, prev, hadPrev)
		r.mu.Unlock()
		return "", fmt.Errorf("failed to advertise %s: %w", child, err)
	}
	r.notify()
	return child, nil
}

func (r *Registry) Deregister(ctx context.Context, childPath string) error {
	if err := r.check(ctx); err != nil {
		return err
	}
	childPath = registry.Normalize(childPath)

	r.mu.Lock()
	_, ok := r.entries[childPath]
	delete(r.entries, childPath)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", childPath, registry.ErrNoNode)
	}

	if err := r.list.UpdateNode(updateTimeout); err != nil {
		return fmt.Errorf("failed to withdraw %s: %w", childPath, err)
	}
	r.notify()
	return nil
}

// Close leaves the cluster gracefully and stops the agent.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.subs = make(map[uint64]func())
	r.mu.Unlock()

	if err := r.list.Leave(leaveTimeout); err != nil {
		logger.Warnw("failed to leave gossip cluster", "error", err.Error())
	}
	return r.list.Shutdown()
}

func (r *Registry) restoreLocked(child string, prev entry, hadPrev bool) {
	if hadPrev {
		r.entries[child] = prev
		return
	}
	delete(r.entries, child)
}

func (r *Registry) metaSizeLocked() (int, error) {
	data, err := encodeMeta(r.entriesLocked())
	return len(data), err
}

func (r *Registry) entriesLocked() []entry {
	entries := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	return entries
}

// NodeMeta advertises this member's registrations.
func (r *Registry) NodeMeta(limit int) []byte {
	r.mu.Lock()
	entries := r.entriesLocked()
	r.mu.Unlock()

	data, err := encodeMeta(entries)
	if err != nil {
		logger.Warnw("failed to marshal gossip node meta", "error", err.Error())
		return nil
	}
	if len(data) > limit {
		logger.Warnw("gossip node meta exceeds limit", "size", len(data), "limit", limit)
		return nil
	}
	return data
}

func (r *Registry) NotifyMsg([]byte)                           {}
func (r *Registry) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (r *Registry) LocalState(join bool) []byte                { return nil }
func (r *Registry) MergeRemoteState(buf []byte, join bool)     {}

func (r *Registry) NotifyJoin(node *memberlist.Node) {
	logger.Infow("Member joined", "name", node.Name, "addr", node.Address())
	r.notify()
}

func (r *Registry) NotifyLeave(node *memberlist.Node) {
	logger.Infow("Member left", "name", node.Name)
	r.notify()
}

func (r *Registry) NotifyUpdate(node *memberlist.Node) {
	r.notify()
}

func (r *Registry) notify() {
	r.mu.Lock()
	fns := make([]func(), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// advertised collects the entries of every live member.
func (r *Registry) advertised() []entry {
	var out []entry
	for _, m := range r.list.Members() {
		out = append(out, decodeMeta(m.Meta)...)
	}
	return out
}

func (r *Registry) check(ctx context.Context) error {
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

func encodeMeta(entries []entry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Path != entries[j].Path {
			return entries[i].Path < entries[j].Path
		}
		return entries[i].Name < entries[j].Name
	})
	return json.Marshal(entries)
}

func decodeMeta(meta []byte) []entry {
	if len(meta) == 0 {
		return nil
	}
	var entries []entry
	if err := json.Unmarshal(meta, &entries); err != nil {
		logger.Warnw("failed to decode node metadata", "error", err.Error())
		return nil
	}
	return entries
}
