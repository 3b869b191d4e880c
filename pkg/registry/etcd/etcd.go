// Package etcd implements registry.Registry on etcd v3. Children are keys
// directly below the parent prefix; ephemeral registrations are bound to a
// lease that is kept alive until Deregister or Close.
package etcd

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/anthanhphan/go-distributed-cache/pkg/registry"
)

const (
	// DefaultTarget is the endpoint used when nothing else is configured.
	DefaultTarget = "localhost:2379"

	defaultDialTimeout = 5 * time.Second
	defaultLeaseTTL    = 10 * time.Second
	revokeTimeout      = 2 * time.Second
	relistInterval     = time.Second
)

type Config struct {
	Endpoints   []string
	DialTimeout time.Duration
	LeaseTTL    time.Duration
}

type lease struct {
	id     clientv3.LeaseID
	cancel context.CancelFunc
}

// Registry is an etcd-backed registry.Registry.
type Registry struct {
	cli      *clientv3.Client
	leaseTTL int64

	mu     sync.Mutex
	leases map[string]*lease

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ registry.Registry = (*Registry)(nil)

func New(cfg Config) (*Registry, error) {
	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = []string{DefaultTarget}
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.LeaseTTL < time.Second {
		cfg.LeaseTTL = defaultLeaseTTL
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd %v: %w", cfg.Endpoints, err)
	}

	return &Registry{
		cli:      cli,
		leaseTTL: int64(cfg.LeaseTTL / time.Second),
		leases:   make(map[string]*lease),
		closing:  make(chan struct{}),
	}, nil
}

func (r *Registry) Children(ctx context.Context, p string) ([]string, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	prefix := dirPrefix(p)
	resp, err := r.cli.Get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return nil, fmt.Errorf("etcd list %s: %w", prefix, err)
	}

	names := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		if name, ok := childName(prefix, string(kv.Key)); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func (r *Registry) Payload(ctx context.Context, p string) ([]byte, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	key := registry.Normalize(p)
	resp, err := r.cli.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("etcd get %s: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("%s: %w", key, registry.ErrNoNode)
	}
	return resp.Kvs[0].Value, nil
}

// Subscribe watches every key below p. A broken watch stream is re-opened
// and followed by one notification so the caller re-reads the full state.
func (r *Registry) Subscribe(p string, onChange func()) (registry.Subscription, error) {
	if err := r.check(context.Background()); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(clientv3.WithRequireLeader(context.Background()))
	prefix := dirPrefix(p)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		r.watchLoop(ctx, prefix, onChange)
	}()

	return registry.SubscriptionFunc(cancel), nil
}

func (r *Registry) watchLoop(ctx context.Context, prefix string, onChange func()) {
	for {
		wch := r.cli.Watch(ctx, prefix, clientv3.WithPrefix())
		for resp := range wch {
			if err := resp.Err(); err != nil {
				logger.Warnw("etcd watch error", "prefix", prefix, "error", err.Error())
				continue
			}
			if len(resp.Events) > 0 {
				onChange()
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-r.closing:
			return
		case <-time.After(relistInterval):
		}
		logger.Infow("etcd watch re-opened", "prefix", prefix)
		onChange()
	}
}

// Register puts name below p bound to a fresh lease and keeps the lease
// alive in the background.
func (r *Registry) Register(ctx context.Context, p, name string, payload []byte) (string, error) {
	if err := r.check(ctx); err != nil {
		return "", err
	}
	child := registry.ChildPath(registry.Normalize(p), name)

	id, err := r.grantAndPut(ctx, child, payload)
	if err != nil {
		return "", err
	}

	kaCtx, cancel := context.WithCancel(context.Background())
	l := &lease{id: id, cancel: cancel}

	r.mu.Lock()
	if old, ok := r.leases[child]; ok {
		old.cancel()
	}
	r.leases[child] = l
	r.mu.Unlock()

	r.wg.Add(1)
	go r.keepAlive(kaCtx, child, payload, l)

	return child, nil
}

func (r *Registry) grantAndPut(ctx context.Context, child string, payload []byte) (clientv3.LeaseID, error) {
	grant, err := r.cli.Grant(ctx, r.leaseTTL)
	if err != nil {
		return 0, fmt.Errorf("etcd grant lease for %s: %w", child, err)
	}
	if _, err := r.cli.Put(ctx, child, string(payload), clientv3.WithLease(grant.ID)); err != nil {
		return 0, fmt.Errorf("etcd put %s: %w", child, err)
	}
	return grant.ID, nil
}

// keepAlive renews the lease and re-registers with a new one if it is lost.
func (r *Registry) keepAlive(ctx context.Context, child string, payload []byte, l *lease) {
	defer r.wg.Done()

	for {
		ch, err := r.cli.KeepAlive(ctx, l.id)
		if err == nil {
			for range ch {
			}
		}
		if ctx.Err() != nil {
			return
		}

		logger.Warnw("etcd lease lost, registering again", "key", child)
		select {
		case <-ctx.Done():
			return
		case <-time.After(relistInterval):
		}

		id, err := r.grantAndPut(ctx, child, payload)
		if err != nil {
			logger.Errorw("Failed to re-register after lease loss", "key", child, "error", err.Error())
			continue
		}
		r.mu.Lock()
		l.id = id
		r.mu.Unlock()
	}
}

func (r *Registry) Deregister(ctx context.Context, childPath string) error {
	if err := r.check(ctx); err != nil {
		return err
	}
	key := registry.Normalize(childPath)

	r.mu.Lock()
	l, ok := r.leases[key]
	delete(r.leases, key)
	var id clientv3.LeaseID
	if ok {
		l.cancel()
		id = l.id
	}
	r.mu.Unlock()

	if ok {
		if _, err := r.cli.Revoke(ctx, id); err == nil {
			return nil
		}
	}

	resp, err := r.cli.Delete(ctx, key)
	if err != nil {
		return fmt.Errorf("etcd delete %s: %w", key, err)
	}
	if resp.Deleted == 0 {
		return fmt.Errorf("%s: %w", key, registry.ErrNoNode)
	}
	return nil
}

// Close revokes every lease held by this registry, which removes its
// registrations, and closes the client.
func (r *Registry) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.closing)

		r.mu.Lock()
		leases := r.leases
		r.leases = make(map[string]*lease)
		ids := make([]clientv3.LeaseID, 0, len(leases))
		for _, l := range leases {
			l.cancel()
			ids = append(ids, l.id)
		}
		r.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), revokeTimeout)
		defer cancel()
		for _, id := range ids {
			if _, revokeErr := r.cli.Revoke(ctx, id); revokeErr != nil {
				logger.Warnw("Failed to revoke etcd lease", "lease", int64(id), "error", revokeErr.Error())
			}
		}

		err = r.cli.Close()
	})
	r.wg.Wait()
	return err
}

func (r *Registry) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-r.closing:
		return registry.ErrClosed
	default:
		return nil
	}
}

func dirPrefix(p string) string {
	return strings.TrimSuffix(registry.Normalize(p), "/") + "/"
}

// childName returns the direct child segment of key below prefix.
func childName(prefix, key string) (string, bool) {
	rest := strings.TrimPrefix(key, prefix)
	if rest == key || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
