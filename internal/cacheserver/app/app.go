package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthanhphan/gosdk/logger"

	"github.com/anthanhphan/go-distributed-cache/internal/cacheserver/adapter/outbound/memstore"
	"github.com/anthanhphan/go-distributed-cache/internal/cacheserver/config"
	"github.com/anthanhphan/go-distributed-cache/pkg/registry"
	"github.com/anthanhphan/go-distributed-cache/pkg/registry/backend"
)

type App struct {
	cfg   *config.Config
	store *memstore.Store
	host  string
	port  int
}

// Overrides are command line values that take precedence over the config file.
type Overrides struct {
	Port           int
	RegistryTarget string
}

func New(configPath string, overrides Overrides) (*App, error) {
	// 1. Load Config
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if overrides.Port != 0 {
		cfg.Server.Port = overrides.Port
	}
	if overrides.RegistryTarget != "" {
		cfg.Registry.Target = overrides.RegistryTarget
	}

	// 2. Initialize Logger
	logger.InitLogger(&cfg.Logger)

	// 3. Advertised address
	host := cfg.Server.Hostname
	if host == "" {
		host = DetectHostAddress()
	}

	return &App{
		cfg:   cfg,
		store: memstore.New(),
		host:  host,
		port:  ValidatePort(cfg.Server.Port),
	}, nil
}

func (a *App) Run() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", a.port, err)
	}

	reg, err := backend.Open(a.cfg.Registry)
	if err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to open registry: %w", err)
	}

	node, err := StartNode(context.Background(), a.cfg.Server, a.store, reg, registry.Normalize(a.cfg.Registry.Path), listener, a.host)
	if err != nil {
		_ = reg.Close()
		return err
	}
	logger.Infow("Cache server started", "addr", node.Addr(), "registry", a.cfg.Registry.Kind)

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case sig := <-stop:
		logger.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-node.Errors():
		runErr = fmt.Errorf("http server failed: %w", err)
		logger.Errorw("Cache server exited unexpectedly", "error", err.Error())
	}

	logger.Info("Shutting down cache server")
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.StopGrace())
	defer cancel()
	if err := node.Stop(ctx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
