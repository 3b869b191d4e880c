package port

import "context"

//go:generate mockgen -destination=../service/mocks/transport_mock.go -package=mocks -source=transport.go

// Outcome classifies a node response.
type Outcome int

const (
	// OutcomeSuccess is any 2xx status.
	OutcomeSuccess Outcome = iota
	// OutcomeNotFound is a 404.
	OutcomeNotFound
	// OutcomeFailure is every other status.
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "failure"
	}
}

// Response is what a cache node answered.
type Response struct {
	Outcome    Outcome
	StatusCode int
	Body       []byte
}

// NodeTransport sends single-key requests to a cache node addressed as
// "host:port". It returns an error only when no response was received.
type NodeTransport interface {
	// Fetch reads key from node.
	Fetch(ctx context.Context, node, key string) (*Response, error)

	// Store writes value under key on node.
	Store(ctx context.Context, node, key string, value []byte) (*Response, error)

	// Remove deletes key on node.
	Remove(ctx context.Context, node, key string) (*Response, error)

	// Forget drops per-node state for a node that left the cluster.
	Forget(node string)

	// Shutdown stops accepting requests and waits for in-flight ones until
	// ctx is done, then cancels the rest.
	Shutdown(ctx context.Context) error

	// Close releases pooled connections.
	Close() error
}
