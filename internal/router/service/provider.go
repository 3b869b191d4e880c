package service

import (
	"context"
	"sync"
	"sync/atomic"
)

// Factory builds a client. onClose must be passed to the client as
// Options.OnClose so the provider forgets it once closed.
type Factory func(ctx context.Context, onClose func()) (*RoutingClient, error)

// Provider lazily builds one shared RoutingClient.
type Provider struct {
	factory Factory

	mu      sync.Mutex
	current atomic.Pointer[RoutingClient]
}

func NewProvider(factory Factory) *Provider {
	return &Provider{factory: factory}
}

// Acquire returns the shared client, building it on first use. Concurrent
// first callers share a single construction. A failed construction is not
// cached.
func (p *Provider) Acquire(ctx context.Context) (*RoutingClient, error) {
	if c := p.current.Load(); c != nil {
		return c, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c := p.current.Load(); c != nil {
		return c, nil
	}

	var built atomic.Pointer[RoutingClient]
	c, err := p.factory(ctx, func() {
		p.current.CompareAndSwap(built.Load(), nil)
	})
	if err != nil {
		return nil, err
	}
	built.Store(c)
	p.current.Store(c)
	return c, nil
}

// Shutdown closes the shared client if one was built.
func (p *Provider) Shutdown() error {
	c := p.current.Load()
	if c == nil {
		return nil
	}
	return c.Close()
}
