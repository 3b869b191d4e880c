package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"golang.org/x/sync/errgroup"

	"github.com/anthanhphan/go-distributed-cache/internal/loadgen/config"
	routerapp "github.com/anthanhphan/go-distributed-cache/internal/router/app"
	"github.com/anthanhphan/go-distributed-cache/internal/router/port"
	"github.com/anthanhphan/go-distributed-cache/internal/router/service"
)

// ClientSource hands out the shared routing client.
type ClientSource interface {
	Acquire(ctx context.Context) (port.CacheService, error)
}

type App struct {
	cfg    *config.Config
	source *providerSource
}

// Overrides are command line values that take precedence over the config file.
type Overrides struct {
	RegistryTarget string
	Workers        int
	DurationMS     int
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
	if overrides.Workers > 0 {
		cfg.Workload.Workers = overrides.Workers
	}
	if overrides.DurationMS > 0 {
		cfg.Workload.DurationMS = overrides.DurationMS
	}
	if err := cfg.Workload.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workload: %w", err)
	}

	// 2. Initialize Logger
	logger.InitLogger(&cfg.Logger)

	return &App{
		cfg:    cfg,
		source: &providerSource{provider: routerapp.NewProvider(cfg.Client)},
	}, nil
}

func (a *App) Run() error {
	defer func() {
		if err := a.source.provider.Shutdown(); err != nil {
			logger.Errorw("Routing client shutdown error", "error", err.Error())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Infow("Load generator starting",
		"workers", a.cfg.Workload.Workers,
		"duration", a.cfg.Workload.Duration().String(),
		"key_space", a.cfg.Workload.KeySpace,
	)

	stats, err := RunWorkload(ctx, a.cfg.Workload, a.source)
	logger.Infow("Load generator finished", stats.Fields()...)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if ctx.Err() != nil {
		logger.Info("Load generator stopped by signal")
	}
	return nil
}

// RunWorkload runs cfg.Workers workers until the duration elapses or ctx is
// done. Operation failures are counted, not returned; the error reports a
// worker that could not obtain a client.
func RunWorkload(ctx context.Context, cfg config.WorkloadConfig, source ClientSource) (*Stats, error) {
	if d := cfg.Duration(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	stats := &Stats{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		report(gctx, cfg.ReportEvery(), stats)
		return nil
	})

	seed := uint64(time.Now().UnixNano())
	for i := 0; i < cfg.Workers; i++ {
		w := NewWorkload(cfg, seed+uint64(i))
		g.Go(func() error {
			return runWorker(gctx, w, source, stats)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	return stats, err
}

func runWorker(ctx context.Context, w *Workload, source ClientSource, stats *Stats) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		client, err := source.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("acquire routing client: %w", err)
		}

		op := w.NextOp()
		stats.Record(op, execute(ctx, client, op, w))

		if d := w.Think(); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

func execute(ctx context.Context, client port.CacheService, op Op, w *Workload) Result {
	key := w.Key()
	var err error
	switch op {
	case OpGet:
		var found bool
		_, found, err = client.Get(ctx, key)
		if err == nil && !found {
			return ResultMiss
		}
	case OpPut:
		err = client.Put(ctx, key, w.Value())
	case OpDelete:
		err = client.Delete(ctx, key)
	}
	if err != nil {
		if ctx.Err() == nil {
			logger.Debugw("Load operation failed", "op", op.String(), "key", key, "error", err.Error())
		}
		return ResultError
	}
	return ResultOK
}

func report(ctx context.Context, every time.Duration, stats *Stats) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Infow("Load generator progress", stats.Fields()...)
		}
	}
}

type providerSource struct {
	provider *service.Provider
}

func (s *providerSource) Acquire(ctx context.Context) (port.CacheService, error) {
	client, err := s.provider.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}
