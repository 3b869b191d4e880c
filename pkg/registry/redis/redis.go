// Package redis implements registry.Registry on Redis.
//
// A child is a key named after its full path holding the payload with a TTL.
// The owner refreshes the key on a heartbeat, so a crashed owner's entries
// expire. Changes are announced on a pub/sub channel per parent path, and
// subscribers also re-check on every heartbeat interval to notice expiries.
package redis

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/redis/go-redis/v9"

	"github.com/anthanhphan/go-distributed-cache/pkg/registry"
)

const (
	// DefaultTarget is the address used when nothing else is configured.
	DefaultTarget = "localhost:6379"

	defaultTTL    = 10 * time.Second
	channelPrefix = "registry:"
	scanCount     = 256
	closeTimeout  = 2 * time.Second
)

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Registry is a Redis-backed registry.Registry.
type Registry struct {
	rdb *redis.Client
	ttl time.Duration

	mu         sync.Mutex
	heartbeats map[string]context.CancelFunc

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ registry.Registry = (*Registry)(nil)

func New(cfg Config) *Registry {
	if cfg.Addr == "" {
		cfg.Addr = DefaultTarget
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg.TTL)
}

// NewWithClient wraps an existing client. The registry owns it and closes it.
func NewWithClient(rdb *redis.Client, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Registry{
		rdb:        rdb,
		ttl:        ttl,
		heartbeats: make(map[string]context.CancelFunc),
		closing:    make(chan struct{}),
	}
}

func (r *Registry) Children(ctx context.Context, p string) ([]string, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	prefix := dirPrefix(p)

	seen := make(map[string]struct{})
	iter := r.rdb.Scan(ctx, 0, escapeGlob(prefix)+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		if name, ok := childName(prefix, iter.Val()); ok {
			seen[name] = struct{}{}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", prefix, err)
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	return names, nil
}

func (r *Registry) Payload(ctx context.Context, p string) ([]byte, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	key := registry.Normalize(p)
	data, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: %w", key, registry.ErrNoNode)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (r *Registry) Subscribe(p string, onChange func()) (registry.Subscription, error) {
	if err := r.check(context.Background()); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := r.rdb.Subscribe(ctx, channelName(registry.Normalize(p)))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer pubsub.Close()

		ticker := time.NewTicker(r.ttl)
		defer ticker.Stop()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.closing:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				onChange()
			case <-ticker.C:
				onChange()
			}
		}
	}()

	return registry.SubscriptionFunc(cancel), nil
}

// Register stores the payload under the child key and refreshes its TTL
// until Deregister or Close.
func (r *Registry) Register(ctx context.Context, p, name string, payload []byte) (string, error) {
	if err := r.check(ctx); err != nil {
		return "", err
	}
	p = registry.Normalize(p)
	child := registry.ChildPath(p, name)

	if err := r.rdb.Set(ctx, child, payload, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set %s: %w", child, err)
	}
	r.announce(ctx, p)

	hbCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	if old, ok := r.heartbeats[child]; ok {
		old()
	}
	r.heartbeats[child] = cancel
	r.mu.Unlock()

	data := append([]byte(nil), payload...)
	r.wg.Add(1)
	go r.heartbeat(hbCtx, p, child, data)

	return child, nil
}

func (r *Registry) heartbeat(ctx context.Context, parent, child string, payload []byte) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// SET rather than EXPIRE so the key comes back after a Redis restart.
			created, err := r.rdb.SetArgs(ctx, child, payload, redis.SetArgs{TTL: r.ttl, Get: true}).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				if ctx.Err() == nil {
					logger.Warnw("Failed to refresh registration", "key", child, "error", err.Error())
				}
				continue
			}
			if created == "" {
				r.announce(ctx, parent)
			}
		}
	}
}

func (r *Registry) Deregister(ctx context.Context, childPath string) error {
	if err := r.check(ctx); err != nil {
		return err
	}
	key := registry.Normalize(childPath)

	r.mu.Lock()
	if cancel, ok := r.heartbeats[key]; ok {
		cancel()
		delete(r.heartbeats, key)
	}
	r.mu.Unlock()

	n, err := r.rdb.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", key, registry.ErrNoNode)
	}
	parent, _ := path.Split(key)
	r.announce(ctx, registry.Normalize(parent))
	return nil
}

// Close removes this registry's registrations and closes the client.
func (r *Registry) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.closing)

		r.mu.Lock()
		keys := make([]string, 0, len(r.heartbeats))
		for key, cancel := range r.heartbeats {
			cancel()
			keys = append(keys, key)
		}
		r.heartbeats = make(map[string]context.CancelFunc)
		r.mu.Unlock()

		r.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		for _, key := range keys {
			if delErr := r.rdb.Del(ctx, key).Err(); delErr != nil {
				logger.Warnw("Failed to remove registration", "key", key, "error", delErr.Error())
				continue
			}
			parent, _ := path.Split(key)
			r.announce(ctx, registry.Normalize(parent))
		}

		err = r.rdb.Close()
	})
	return err
}

func (r *Registry) announce(ctx context.Context, parent string) {
	if err := r.rdb.Publish(ctx, channelName(parent), "changed").Err(); err != nil {
		logger.Warnw("Failed to publish registry change", "path", parent, "error", err.Error())
	}
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

func channelName(parent string) string {
	return channelPrefix + parent
}

func dirPrefix(p string) string {
	return strings.TrimSuffix(registry.Normalize(p), "/") + "/"
}

func childName(prefix, key string) (string, bool) {
	rest := strings.TrimPrefix(key, prefix)
	if rest == key || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// escapeGlob quotes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
