package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthanhphan/go-distributed-cache/pkg/registry"
)

func TestSession_MissingPath(t *testing.T) {
	s := NewStore().Session()
	_, err := s.Children(context.Background(), registry.DefaultPath)
	assert.True(t, errors.Is(err, registry.ErrNoNode))

	_, err = s.Payload(context.Background(), registry.DefaultPath+"/missing")
	assert.True(t, errors.Is(err, registry.ErrNoNode))
}

func TestSession_RegisterListReadDeregister(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	server := store.Session()
	client := store.Session()

	var fired atomic.Int32
	sub, err := client.Subscribe(registry.DefaultPath, func() { fired.Add(1) })
	require.NoError(t, err)
	defer sub.Cancel()

	child, err := server.Register(ctx, registry.DefaultPath, "node-a", []byte("10.0.0.1:6379"))
	require.NoError(t, err)
	assert.Equal(t, "/cache/nodes/node-a", child)

	names, err := client.Children(ctx, registry.DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"node-a"}, names)

	data, err := client.Payload(ctx, child)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:6379", string(data))

	require.NoError(t, server.Deregister(ctx, child))
	names, err = client.Children(ctx, registry.DefaultPath)
	require.NoError(t, err)
	assert.Empty(t, names)

	assert.Equal(t, int32(2), fired.Load())
}

func TestSession_CloseRemovesEphemeralChildren(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.Ensure(registry.DefaultPath)
	server := store.Session()
	client := store.Session()

	_, err := server.Register(ctx, registry.DefaultPath, "node-a", []byte("a:1"))
	require.NoError(t, err)

	var fired atomic.Int32
	_, err = client.Subscribe(registry.DefaultPath, func() { fired.Add(1) })
	require.NoError(t, err)

	require.NoError(t, server.Close())
	require.NoError(t, server.Close())

	names, err := client.Children(ctx, registry.DefaultPath)
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Equal(t, int32(1), fired.Load())

	_, err = server.Children(ctx, registry.DefaultPath)
	assert.ErrorIs(t, err, registry.ErrClosed)
}

func TestSession_CancelStopsNotifications(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	s := store.Session()

	var fired atomic.Int32
	sub, err := s.Subscribe(registry.DefaultPath, func() { fired.Add(1) })
	require.NoError(t, err)
	sub.Cancel()
	sub.Cancel()

	_, err = s.Register(ctx, registry.DefaultPath, "node-a", []byte("a:1"))
	require.NoError(t, err)
	assert.Zero(t, fired.Load())
}
