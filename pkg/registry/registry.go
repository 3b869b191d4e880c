// Package registry abstracts the coordination service that holds the list of
// live cache nodes.
//
// A registry exposes a tree of paths. Servers register themselves as
// ephemeral children of a well-known path with their host:port as payload;
// clients list the children, read the payloads and subscribe to a payload-less
// change signal.
package registry

import (
	"context"
	"errors"
	"path"
	"strconv"
	"strings"
)

//go:generate mockgen -destination=mocks/registry_mock.go -package=mocks -source=registry.go

// DefaultPath is the parent path cache servers register under.
const DefaultPath = "/cache/nodes"

var (
	// ErrNoNode is returned when a path does not exist.
	ErrNoNode = errors.New("registry: node does not exist")
	// ErrClosed is returned by operations on a closed registry.
	ErrClosed = errors.New("registry: closed")
)

// Registry is the client side of a coordination service.
type Registry interface {
	// Children lists the child names directly under p.
	// It returns ErrNoNode if p does not exist.
	Children(ctx context.Context, p string) ([]string, error)

	// Payload returns the data stored at a full child path.
	// It returns ErrNoNode if the child does not exist.
	Payload(ctx context.Context, p string) ([]byte, error)

	// Subscribe calls onChange whenever a child under p is created, updated
	// or deleted. onChange carries no detail; callers re-read state.
	Subscribe(p string, onChange func()) (Subscription, error)

	// Register creates an ephemeral child named name under p holding payload
	// and returns its full path. The child disappears when the registry
	// session ends.
	Register(ctx context.Context, p, name string, payload []byte) (string, error)

	// Deregister removes a child created by Register.
	Deregister(ctx context.Context, childPath string) error

	// Close releases the connection. Subscriptions stop firing.
	Close() error
}

// Subscription is a live change subscription.
type Subscription interface {
	// Cancel stops notifications. It is safe to call more than once.
	Cancel()
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Cancel() { f() }

// ChildPath joins a parent path and a child name.
func ChildPath(parent, name string) string {
	return path.Join(parent, name)
}

// Normalize cleans p into an absolute path without a trailing slash.
func Normalize(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return DefaultPath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// NodeName returns the conventional child name for a cache server.
func NodeName(host string, port int) string {
	return "node-" + host + "-" + strconv.Itoa(port)
}
