package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthanhphan/go-distributed-cache/internal/router/config"
	"github.com/anthanhphan/go-distributed-cache/pkg/registry/backend"
)

func TestNewProvider_MemoryRegistry(t *testing.T) {
	ctx := context.Background()
	path := "/app-test/nodes"

	server := backend.SharedStore().Session()
	defer server.Close()
	_, err := server.Register(ctx, path, "node-127.0.0.1-7001", []byte("127.0.0.1:7001"))
	require.NoError(t, err)

	cfg := config.DefaultClientConfig()
	cfg.Registry.Kind = backend.KindMemory
	cfg.Registry.Path = path

	provider := NewProvider(cfg)
	client, err := provider.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1:7001"}, client.Nodes())

	node, ok := client.Locate("any-key")
	assert.True(t, ok)
	assert.Equal(t, "127.0.0.1:7001", node)

	require.NoError(t, provider.Shutdown())
}

func TestNewProvider_UnknownRegistry(t *testing.T) {
	cfg := config.DefaultClientConfig()
	cfg.Registry.Kind = "unknown"

	_, err := NewProvider(cfg).Acquire(context.Background())
	assert.Error(t, err)
}
