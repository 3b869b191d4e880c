package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/anthanhphan/gosdk/logger"

	httpHandler "github.com/anthanhphan/go-distributed-cache/internal/cacheserver/adapter/inbound/http"
	"github.com/anthanhphan/go-distributed-cache/internal/cacheserver/config"
	"github.com/anthanhphan/go-distributed-cache/internal/cacheserver/port"
	"github.com/anthanhphan/go-distributed-cache/pkg/registry"
)

// Node is a serving cache server that is registered in the registry.
type Node struct {
	server *httpHandler.Server
	reg    registry.Registry
	addr   string
	child  string
	errCh  chan error
}

// StartNode serves store on ln and registers host plus the listener's port
// under path. The node owns reg and closes it on Stop.
func StartNode(ctx context.Context, cfg config.ServerConfig, store port.Store, reg registry.Registry, path string, ln net.Listener, host string) (*Node, error) {
	tcpAddr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("listener address %s is not TCP", ln.Addr())
	}
	addr := net.JoinHostPort(host, strconv.Itoa(tcpAddr.Port))

	n := &Node{
		server: httpHandler.NewServer(cfg, store),
		reg:    reg,
		addr:   addr,
		errCh:  make(chan error, 1),
	}
	go func() {
		if err := n.server.Serve(ln); err != nil {
			n.errCh <- err
		}
	}()

	child, err := reg.Register(ctx, path, registry.NodeName(host, tcpAddr.Port), []byte(addr))
	if err != nil {
		_ = n.server.Stop(context.Background())
		_ = ln.Close()
		return nil, fmt.Errorf("failed to register %s: %w", addr, err)
	}
	n.child = child

	logger.Infow("Cache node registered", "addr", addr, "path", child)
	return n, nil
}

// Addr is the advertised host:port.
func (n *Node) Addr() string {
	return n.addr
}

// Errors delivers a server failure.
func (n *Node) Errors() <-chan error {
	return n.errCh
}

// Stop deregisters the node, stops serving and closes the registry.
func (n *Node) Stop(ctx context.Context) error {
	var errs []error
	if err := n.reg.Deregister(ctx, n.child); err != nil && !errors.Is(err, registry.ErrNoNode) {
		logger.Warnw("Failed to deregister cache node", "path", n.child, "error", err.Error())
		errs = append(errs, fmt.Errorf("deregister: %w", err))
	}
	if err := n.server.Stop(ctx); err != nil {
		logger.Warnw("Cache node server stop failed", "error", err.Error())
		errs = append(errs, fmt.Errorf("stop server: %w", err))
	}
	if err := n.reg.Close(); err != nil {
		logger.Warnw("Registry close failed", "error", err.Error())
		errs = append(errs, fmt.Errorf("close registry: %w", err))
	}
	return errors.Join(errs...)
}
