package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anthanhphan/gosdk/logger"

	"github.com/anthanhphan/go-distributed-cache/internal/router/port"
	"github.com/anthanhphan/go-distributed-cache/pkg/membership"
)

const defaultShutdownGrace = 5 * time.Second

type Options struct {
	// ShutdownGrace bounds how long Close waits for in-flight requests.
	ShutdownGrace time.Duration
	// OnClose runs as the last step of Close.
	OnClose func()
}

// RoutingClient sends each key operation to the node that owns the key on a
// consistent-hash ring kept in sync with cluster membership.
type RoutingClient struct {
	ring      port.Ring
	members   port.Membership
	transport port.NodeTransport
	grace     time.Duration
	onClose   func()

	// applyMu serializes ring updates.
	applyMu sync.Mutex
	updated bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ port.CacheService = (*RoutingClient)(nil)

// NewRoutingClient follows members and routes over ring. ring should already
// hold members' current nodes; it is reconciled once more after the change
// listener is registered.
func NewRoutingClient(ring port.Ring, members port.Membership, transport port.NodeTransport, opts Options) *RoutingClient {
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = defaultShutdownGrace
	}
	c := &RoutingClient{
		ring:      ring,
		members:   members,
		transport: transport,
		grace:     opts.ShutdownGrace,
		onClose:   opts.OnClose,
	}

	base := members.AddChangeListener(c.onMembershipChange)

	c.applyMu.Lock()
	if !c.updated {
		c.reconcileLocked(base)
	}
	c.applyMu.Unlock()

	logger.Infow("Routing client ready", "nodes", ring.Nodes())
	return c
}

func (c *RoutingClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	node, err := c.route(key)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.transport.Fetch(ctx, node, key)
	if err != nil {
		return nil, false, &port.TransportError{Op: "get", Node: node, Key: key, Err: err}
	}
	switch resp.Outcome {
	case port.OutcomeSuccess:
		return resp.Body, true, nil
	case port.OutcomeNotFound:
		return nil, false, nil
	default:
		return nil, false, &port.TransportError{Op: "get", Node: node, Key: key, StatusCode: resp.StatusCode}
	}
}

func (c *RoutingClient) Put(ctx context.Context, key string, value []byte) error {
	node, err := c.route(key)
	if err != nil {
		return err
	}

	resp, err := c.transport.Store(ctx, node, key, value)
	if err != nil {
		return &port.TransportError{Op: "put", Node: node, Key: key, Err: err}
	}
	if resp.Outcome != port.OutcomeSuccess {
		return &port.TransportError{Op: "put", Node: node, Key: key, StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *RoutingClient) Delete(ctx context.Context, key string) error {
	node, err := c.route(key)
	if err != nil {
		return err
	}

	resp, err := c.transport.Remove(ctx, node, key)
	if err != nil {
		return &port.TransportError{Op: "delete", Node: node, Key: key, Err: err}
	}
	if resp.Outcome == port.OutcomeFailure {
		return &port.TransportError{Op: "delete", Node: node, Key: key, StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *RoutingClient) Locate(key string) (string, bool) {
	return c.ring.Locate(key)
}

func (c *RoutingClient) Nodes() []string {
	return c.ring.Nodes()
}

// Close stops following membership, drains in-flight requests for up to the
// grace period, releases connections and runs OnClose. Every step runs even
// if an earlier one fails. Only the first call does work.
func (c *RoutingClient) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		var errs []error

		if err := c.members.Close(); err != nil {
			logger.Errorw("Failed to close membership watcher", "error", err.Error())
			errs = append(errs, fmt.Errorf("close membership: %w", err))
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.grace)
		if err := c.transport.Shutdown(ctx); err != nil {
			logger.Warnw("In-flight requests cancelled at shutdown", "grace", c.grace.String(), "error", err.Error())
			errs = append(errs, fmt.Errorf("shutdown transport: %w", err))
		}
		cancel()

		if err := c.transport.Close(); err != nil {
			logger.Errorw("Failed to close transport", "error", err.Error())
			errs = append(errs, fmt.Errorf("close transport: %w", err))
		}

		if c.onClose != nil {
			c.onClose()
		}

		c.closeErr = errors.Join(errs...)
		logger.Info("Routing client closed")
	})
	return c.closeErr
}

func (c *RoutingClient) route(key string) (string, error) {
	if c.closed.Load() {
		return "", port.ErrClientClosed
	}
	node, ok := c.ring.Locate(key)
	if !ok {
		return "", port.ErrNoNodesAvailable
	}
	return node, nil
}

func (c *RoutingClient) onMembershipChange(_, next membership.Snapshot) error {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	c.updated = true
	c.reconcileLocked(next)
	return nil
}

// reconcileLocked moves the ring to next, removing departed nodes before
// adding new ones.
func (c *RoutingClient) reconcileLocked(next membership.Snapshot) {
	removed, added := membership.Diff(membership.NewSnapshot(c.ring.Nodes()...), next)
	for _, node := range removed {
		logger.Infow("Removing node from ring", "node", node)
		c.ring.RemoveNode(node)
		c.transport.Forget(node)
	}
	for _, node := range added {
		logger.Infow("Adding node to ring", "node", node)
		c.ring.AddNode(node)
	}
}
