// Package it runs the routing client against real cache servers.
package it

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthanhphan/go-distributed-cache/internal/cacheserver/adapter/outbound/memstore"
	cacheapp "github.com/anthanhphan/go-distributed-cache/internal/cacheserver/app"
	cacheconfig "github.com/anthanhphan/go-distributed-cache/internal/cacheserver/config"
	routerapp "github.com/anthanhphan/go-distributed-cache/internal/router/app"
	routerconfig "github.com/anthanhphan/go-distributed-cache/internal/router/config"
	"github.com/anthanhphan/go-distributed-cache/internal/router/port"
	"github.com/anthanhphan/go-distributed-cache/internal/router/service"
	"github.com/anthanhphan/go-distributed-cache/pkg/registry/backend"
)

type cluster struct {
	t     *testing.T
	path  string
	nodes map[string]*cacheapp.Node
	store map[string]*memstore.Store
}

func newCluster(t *testing.T, path string, n int) *cluster {
	c := &cluster{
		t:     t,
		path:  path,
		nodes: make(map[string]*cacheapp.Node),
		store: make(map[string]*memstore.Store),
	}
	for i := 0; i < n; i++ {
		c.start()
	}
	t.Cleanup(func() {
		for _, node := range c.nodes {
			_ = node.Stop(context.Background())
		}
	})
	return c
}

func (c *cluster) start() string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(c.t, err)

	store := memstore.New()
	cfg := cacheconfig.DefaultConfig().Server
	node, err := cacheapp.StartNode(context.Background(), cfg, store, backend.SharedStore().Session(), c.path, ln, "127.0.0.1")
	require.NoError(c.t, err)

	c.nodes[node.Addr()] = node
	c.store[node.Addr()] = store
	return node.Addr()
}

func (c *cluster) stop(addr string) {
	require.NoError(c.t, c.nodes[addr].Stop(context.Background()))
	delete(c.nodes, addr)
	delete(c.store, addr)
}

func (c *cluster) addrs() []string {
	out := make([]string, 0, len(c.nodes))
	for addr := range c.nodes {
		out = append(out, addr)
	}
	return out
}

func newClient(t *testing.T, path string) *service.RoutingClient {
	return newClientWith(t, path, func(*routerconfig.ClientConfig) {})
}

func newClientWith(t *testing.T, path string, tune func(*routerconfig.ClientConfig)) *service.RoutingClient {
	cfg := routerconfig.DefaultClientConfig()
	cfg.Registry.Kind = backend.KindMemory
	cfg.Registry.Path = path
	cfg.Transport.ShutdownGraceMS = 1000
	tune(&cfg)

	provider := routerapp.NewProvider(cfg)
	t.Cleanup(func() { _ = provider.Shutdown() })

	client, err := provider.Acquire(context.Background())
	require.NoError(t, err)
	return client
}

func TestCluster_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	c := newCluster(t, "/it/put-get-delete", 3)
	client := newClient(t, c.path)

	assert.ElementsMatch(t, c.addrs(), client.Nodes())

	keys := []string{"alpha", "beta", "gamma", "delta", "a/b c", "ключ"}
	for _, key := range keys {
		require.NoError(t, client.Put(ctx, key, []byte("value-"+key)))
	}

	for _, key := range keys {
		value, found, err := client.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, found, key)
		assert.Equal(t, "value-"+key, string(value))

		// The value lives on exactly the node the ring picked.
		owner, ok := client.Locate(key)
		require.True(t, ok)
		stored, ok := c.store[owner].Get(key)
		require.True(t, ok, key)
		assert.Equal(t, "value-"+key, string(stored))
	}

	require.NoError(t, client.Delete(ctx, "alpha"))
	_, found, err := client.Get(ctx, "alpha")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, client.Delete(ctx, "never-written"))

	total := 0
	for _, store := range c.store {
		total += store.Len()
	}
	assert.Equal(t, len(keys)-1, total)
}

func TestCluster_FollowsMembership(t *testing.T) {
	ctx := context.Background()
	c := newCluster(t, "/it/membership", 3)
	client := newClient(t, c.path)

	added := c.start()
	require.Eventually(t, func() bool {
		return len(client.Nodes()) == 4
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, client.Nodes(), added)

	victim := c.addrs()[0]
	c.stop(victim)
	require.Eventually(t, func() bool {
		return len(client.Nodes()) == 3
	}, 5*time.Second, 10*time.Millisecond)
	assert.NotContains(t, client.Nodes(), victim)

	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("key-%d", i)
		require.NoError(t, client.Put(ctx, key, []byte("v")))
		owner, ok := client.Locate(key)
		require.True(t, ok)
		assert.NotEqual(t, victim, owner)
	}
}

func TestCluster_EmptyMembership(t *testing.T) {
	client := newClient(t, "/it/empty")

	_, _, err := client.Get(context.Background(), "k")
	assert.ErrorIs(t, err, port.ErrNoNodesAvailable)
	assert.Empty(t, client.Nodes())
}

func TestCluster_SlowNodeFailsWithTransportError(t *testing.T) {
	path := "/it/slow"
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)
	addr := strings.TrimPrefix(slow.URL, "http://")

	session := backend.SharedStore().Session()
	defer session.Close()
	_, err := session.Register(context.Background(), path, "slow", []byte(addr))
	require.NoError(t, err)

	client := newClientWith(t, path, func(cfg *routerconfig.ClientConfig) {
		cfg.Transport.RequestTimeoutMS = 100
	})

	start := time.Now()
	_, found, err := client.Get(context.Background(), "k")
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, found)
	require.ErrorIs(t, err, port.ErrTransport)

	var terr *port.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "get", terr.Op)
	assert.Equal(t, addr, terr.Node)
	assert.Zero(t, terr.StatusCode)
}
