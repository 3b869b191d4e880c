package port

import "context"

// CacheService routes key operations to the owning cache node.
type CacheService interface {
	// Get returns the value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores value under key.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key succeeds.
	Delete(ctx context.Context, key string) error

	// Locate returns the node that currently owns key.
	Locate(key string) (string, bool)

	// Nodes returns the nodes currently on the ring, sorted.
	Nodes() []string
}
