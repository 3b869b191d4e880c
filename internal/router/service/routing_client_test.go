package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anthanhphan/go-distributed-cache/internal/router/port"
	"github.com/anthanhphan/go-distributed-cache/internal/router/service/mocks"
	"github.com/anthanhphan/go-distributed-cache/pkg/membership"
	"github.com/anthanhphan/go-distributed-cache/pkg/shard"
)

type fixture struct {
	client    *RoutingClient
	members   *mocks.MockMembership
	transport *mocks.MockNodeTransport
	ring      *shard.Ring
	listener  membership.ChangeListener
}

func newFixture(t *testing.T, nodes ...string) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		members:   mocks.NewMockMembership(ctrl),
		transport: mocks.NewMockNodeTransport(ctrl),
		ring:      shard.NewRing(shard.DefaultVNodesPerNode, nodes),
	}
	f.members.EXPECT().AddChangeListener(gomock.Any()).DoAndReturn(
		func(fn membership.ChangeListener) membership.Snapshot {
			f.listener = fn
			return membership.NewSnapshot(nodes...)
		})
	f.client = NewRoutingClient(f.ring, f.members, f.transport, Options{})
	return f
}

func TestRoutingClient_Get(t *testing.T) {
	f := newFixture(t, "10.0.0.1:6379", "10.0.0.2:6379")
	ctx := context.Background()
	owner, ok := f.ring.Locate("user:1")
	require.True(t, ok)

	f.transport.EXPECT().Fetch(ctx, owner, "user:1").Return(&port.Response{Outcome: port.OutcomeSuccess, StatusCode: 200, Body: []byte("alice")}, nil)
	value, found, err := f.client.Get(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "alice", string(value))

	f.transport.EXPECT().Fetch(ctx, owner, "user:1").Return(&port.Response{Outcome: port.OutcomeNotFound, StatusCode: 404}, nil)
	value, found, err = f.client.Get(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, value)

	f.transport.EXPECT().Fetch(ctx, owner, "user:1").Return(&port.Response{Outcome: port.OutcomeFailure, StatusCode: 503}, nil)
	_, _, err = f.client.Get(ctx, "user:1")
	var terr *port.TransportError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, port.ErrTransport)
	assert.Equal(t, 503, terr.StatusCode)
	assert.Equal(t, owner, terr.Node)
	assert.Equal(t, "get", terr.Op)

	dialErr := errors.New("connection refused")
	f.transport.EXPECT().Fetch(ctx, owner, "user:1").Return(nil, dialErr)
	_, _, err = f.client.Get(ctx, "user:1")
	assert.ErrorIs(t, err, port.ErrTransport)
	assert.ErrorIs(t, err, dialErr)
}

func TestRoutingClient_Put(t *testing.T) {
	f := newFixture(t, "10.0.0.1:6379")
	ctx := context.Background()

	f.transport.EXPECT().Store(ctx, "10.0.0.1:6379", "k", []byte("v")).Return(&port.Response{Outcome: port.OutcomeSuccess, StatusCode: 200}, nil)
	require.NoError(t, f.client.Put(ctx, "k", []byte("v")))

	f.transport.EXPECT().Store(ctx, "10.0.0.1:6379", "k", []byte("")).Return(&port.Response{Outcome: port.OutcomeFailure, StatusCode: 400}, nil)
	err := f.client.Put(ctx, "k", []byte(""))
	var terr *port.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 400, terr.StatusCode)

	f.transport.EXPECT().Store(ctx, "10.0.0.1:6379", "k", []byte("v")).Return(&port.Response{Outcome: port.OutcomeNotFound, StatusCode: 404}, nil)
	assert.ErrorIs(t, f.client.Put(ctx, "k", []byte("v")), port.ErrTransport)
}

func TestRoutingClient_Delete(t *testing.T) {
	f := newFixture(t, "10.0.0.1:6379")
	ctx := context.Background()

	f.transport.EXPECT().Remove(ctx, "10.0.0.1:6379", "k").Return(&port.Response{Outcome: port.OutcomeSuccess, StatusCode: 200}, nil)
	require.NoError(t, f.client.Delete(ctx, "k"))

	f.transport.EXPECT().Remove(ctx, "10.0.0.1:6379", "k").Return(&port.Response{Outcome: port.OutcomeNotFound, StatusCode: 404}, nil)
	require.NoError(t, f.client.Delete(ctx, "k"))

	f.transport.EXPECT().Remove(ctx, "10.0.0.1:6379", "k").Return(&port.Response{Outcome: port.OutcomeFailure, StatusCode: 500}, nil)
	assert.ErrorIs(t, f.client.Delete(ctx, "k"), port.ErrTransport)
}

func TestRoutingClient_NoNodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.client.Get(ctx, "k")
	assert.ErrorIs(t, err, port.ErrNoNodesAvailable)
	assert.ErrorIs(t, f.client.Put(ctx, "k", []byte("v")), port.ErrNoNodesAvailable)
	assert.ErrorIs(t, f.client.Delete(ctx, "k"), port.ErrNoNodesAvailable)

	_, ok := f.client.Locate("k")
	assert.False(t, ok)
	assert.Empty(t, f.client.Nodes())
}

func TestRoutingClient_MembershipChangeUpdatesRing(t *testing.T) {
	f := newFixture(t, "A:1", "B:1")

	f.transport.EXPECT().Forget("A:1")
	require.NoError(t, f.listener(membership.NewSnapshot("A:1", "B:1"), membership.NewSnapshot("B:1", "C:1")))
	assert.Equal(t, []string{"B:1", "C:1"}, f.client.Nodes())

	f.transport.EXPECT().Forget("B:1")
	f.transport.EXPECT().Forget("C:1")
	require.NoError(t, f.listener(membership.NewSnapshot("B:1", "C:1"), membership.NewSnapshot()))
	assert.Empty(t, f.client.Nodes())
}

func TestRoutingClient_RemovalsPrecedeAdditions(t *testing.T) {
	ctrl := gomock.NewController(t)
	ring := mocks.NewMockRing(ctrl)
	members := mocks.NewMockMembership(ctrl)
	transport := mocks.NewMockNodeTransport(ctrl)

	var listener membership.ChangeListener
	members.EXPECT().AddChangeListener(gomock.Any()).DoAndReturn(
		func(fn membership.ChangeListener) membership.Snapshot {
			listener = fn
			return membership.NewSnapshot("A", "B", "C")
		})
	ring.EXPECT().Nodes().Return([]string{"A", "B", "C"}).AnyTimes()

	NewRoutingClient(ring, members, transport, Options{})
	require.NotNil(t, listener)

	gomock.InOrder(
		ring.EXPECT().RemoveNode("A"),
		transport.EXPECT().Forget("A"),
		ring.EXPECT().AddNode("D"),
	)
	require.NoError(t, listener(membership.NewSnapshot("A", "B", "C"), membership.NewSnapshot("B", "C", "D")))
}

func TestRoutingClient_CloseRunsStepsInOrderOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	members := mocks.NewMockMembership(ctrl)
	transport := mocks.NewMockNodeTransport(ctrl)
	members.EXPECT().AddChangeListener(gomock.Any()).Return(membership.NewSnapshot("A:1"))

	var hookCalls atomic.Int32
	client := NewRoutingClient(shard.NewRing(shard.DefaultVNodesPerNode, []string{"A:1"}), members, transport, Options{
		OnClose: func() { hookCalls.Add(1) },
	})

	gomock.InOrder(
		members.EXPECT().Close().Return(nil),
		transport.EXPECT().Shutdown(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return nil
		}),
		transport.EXPECT().Close().Return(nil),
	)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	assert.Equal(t, int32(1), hookCalls.Load())

	_, _, err := client.Get(context.Background(), "k")
	assert.ErrorIs(t, err, port.ErrClientClosed)
}

func TestRoutingClient_CloseContinuesAfterFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	members := mocks.NewMockMembership(ctrl)
	transport := mocks.NewMockNodeTransport(ctrl)
	members.EXPECT().AddChangeListener(gomock.Any()).Return(membership.NewSnapshot())

	hookCalled := false
	client := NewRoutingClient(shard.NewRing(shard.DefaultVNodesPerNode, nil), members, transport, Options{
		OnClose: func() { hookCalled = true },
	})

	watchErr := errors.New("session lost")
	members.EXPECT().Close().Return(watchErr)
	transport.EXPECT().Shutdown(gomock.Any()).Return(context.DeadlineExceeded)
	transport.EXPECT().Close().Return(nil)

	err := client.Close()
	assert.ErrorIs(t, err, watchErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, hookCalled)
}

func TestProvider_AcquireBuildsOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	var builds atomic.Int32

	provider := NewProvider(func(ctx context.Context, onClose func()) (*RoutingClient, error) {
		builds.Add(1)
		members := mocks.NewMockMembership(ctrl)
		transport := mocks.NewMockNodeTransport(ctrl)
		members.EXPECT().AddChangeListener(gomock.Any()).Return(membership.NewSnapshot())
		members.EXPECT().Close().Return(nil).AnyTimes()
		transport.EXPECT().Shutdown(gomock.Any()).Return(nil).AnyTimes()
		transport.EXPECT().Close().Return(nil).AnyTimes()
		return NewRoutingClient(shard.NewRing(shard.DefaultVNodesPerNode, nil), members, transport, Options{OnClose: onClose}), nil
	})

	const callers = 32
	clients := make([]*RoutingClient, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := provider.Acquire(context.Background())
			assert.NoError(t, err)
			clients[i] = c
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	for _, c := range clients {
		assert.Same(t, clients[0], c)
	}

	require.NoError(t, provider.Shutdown())
	require.NoError(t, provider.Shutdown())

	next, err := provider.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, clients[0], next)
	assert.Equal(t, int32(2), builds.Load())
}

func TestProvider_FailedBuildIsRetried(t *testing.T) {
	boom := errors.New("registry unavailable")
	calls := 0
	provider := NewProvider(func(ctx context.Context, onClose func()) (*RoutingClient, error) {
		calls++
		return nil, boom
	})

	_, err := provider.Acquire(context.Background())
	assert.ErrorIs(t, err, boom)
	_, err = provider.Acquire(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
	assert.NoError(t, provider.Shutdown())
}
