package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthanhphan/gosdk/logger"

	httpHandler "github.com/anthanhphan/go-distributed-cache/internal/router/adapter/inbound/http"
	"github.com/anthanhphan/go-distributed-cache/internal/router/adapter/outbound/cache_node"
	"github.com/anthanhphan/go-distributed-cache/internal/router/config"
	"github.com/anthanhphan/go-distributed-cache/internal/router/service"
	"github.com/anthanhphan/go-distributed-cache/pkg/membership"
	"github.com/anthanhphan/go-distributed-cache/pkg/registry"
	"github.com/anthanhphan/go-distributed-cache/pkg/registry/backend"
	"github.com/anthanhphan/go-distributed-cache/pkg/shard"
)

const startupTimeout = 30 * time.Second

type App struct {
	cfg      *config.Config
	provider *service.Provider
}

// Overrides are command line values that take precedence over the config file.
type Overrides struct {
	RegistryTarget string
}

func New(configPath string, overrides Overrides) (*App, error) {
	// 1. Load Config
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if overrides.RegistryTarget != "" {
		cfg.Client.Registry.Target = overrides.RegistryTarget
	}

	// 2. Initialize Logger
	logger.InitLogger(&cfg.Logger)

	// 3. Routing client, built on first use
	return &App{
		cfg:      cfg,
		provider: NewProvider(cfg.Client),
	}, nil
}

// NewProvider wires registry, membership watcher, ring and HTTP transport
// into a lazily built routing client.
func NewProvider(cfg config.ClientConfig) *service.Provider {
	return service.NewProvider(func(ctx context.Context, onClose func()) (*service.RoutingClient, error) {
		return buildClient(ctx, cfg, onClose)
	})
}

func buildClient(ctx context.Context, cfg config.ClientConfig, onClose func()) (*service.RoutingClient, error) {
	reg, err := backend.Open(cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}

	path := registry.Normalize(cfg.Registry.Path)
	watcher, err := membership.NewWatcher(ctx, reg, path)
	if err != nil {
		_ = reg.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	vnodes := cfg.Ring.VNodesPerNode
	if vnodes <= 0 {
		vnodes = shard.DefaultVNodesPerNode
	}
	ring := shard.NewRing(vnodes, watcher.Nodes().Sorted())

	transport := cache_node.NewHTTPAdapter(cache_node.Config{
		Scheme:              cfg.Transport.Scheme,
		ConnectTimeout:      time.Duration(cfg.Transport.ConnectTimeoutMS) * time.Millisecond,
		RequestTimeout:      time.Duration(cfg.Transport.RequestTimeoutMS) * time.Millisecond,
		MaxIdleConnsPerHost: cfg.Transport.MaxIdleConnsPerHost,
		FailureThreshold:    cfg.Transport.FailureThreshold,
		OpenTimeout:         time.Duration(cfg.Transport.OpenTimeoutMS) * time.Millisecond,
	})

	logger.Infow("Routing client connected", "registry", cfg.Registry.Kind, "target", backend.ResolveTarget(cfg.Registry), "path", path)
	return service.NewRoutingClient(ring, watcher, transport, service.Options{
		ShutdownGrace: cfg.Transport.ShutdownGrace(),
		OnClose:       onClose,
	}), nil
}

func (a *App) Run() error {
	// Connect before serving so a missing registry fails fast
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	client, err := a.provider.Acquire(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to start routing client: %w", err)
	}
	defer func() {
		if err := a.provider.Shutdown(); err != nil {
			logger.Errorw("Routing client shutdown error", "error", err.Error())
		}
	}()

	server := httpHandler.NewServer(a.cfg.Server, client)

	logger.Infow("Cache gateway starting", "addr", a.cfg.Server.Addr)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- err
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case sig := <-stop:
		logger.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-serverErrCh:
		runErr = fmt.Errorf("http server failed: %w", err)
		logger.Errorw("Gateway server exited unexpectedly", "error", err.Error())
	}

	logger.Info("Shutting down gateway")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), a.cfg.Server.StopGrace())
	defer stopCancel()
	if err := server.Stop(stopCtx); err != nil {
		logger.Errorw("Gateway shutdown error", "error", err.Error())
		if runErr == nil {
			runErr = err
		}
	}

	return runErr
}
