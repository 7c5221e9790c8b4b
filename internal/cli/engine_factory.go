package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/trajview"
	"github.com/aretw0/trajview/internal/config"
	"github.com/aretw0/trajview/pkg/adapters/fetch"
	"github.com/aretw0/trajview/pkg/adapters/redis"
	"github.com/aretw0/trajview/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Runtime bundles an Engine with the resources created for it.
type Runtime struct {
	Engine   *trajview.Engine
	Registry *prometheus.Registry
	store    *redis.Store
}

// NewRuntime initializes an Engine from cfg with standard CLI conventions.
func NewRuntime(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// 1. Service clients
	structures, err := fetch.New(cfg.Services.StructureURL, clientOptions(cfg.Services, logger)...)
	if err != nil {
		return nil, fmt.Errorf("structure service: %w", err)
	}
	trajectories, err := fetch.New(cfg.Services.TrajectoryURL, clientOptions(cfg.Services, logger)...)
	if err != nil {
		return nil, fmt.Errorf("trajectory service: %w", err)
	}

	// 2. Hooks: logs always, metrics when enabled
	rt := &Runtime{}
	hooks := observability.LogHooks(logger)
	if cfg.HTTP.Metrics {
		rt.Registry = prometheus.NewRegistry()
		metrics, err := observability.NewMetrics(rt.Registry)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		hooks = observability.Chain(hooks, metrics.Hooks())
	}

	engineOpts := []trajview.Option{
		trajview.WithLogger(logger),
		trajview.WithHooks(hooks),
		trajview.WithStructurePolicy(cfg.Cache.Structure.Policy()),
		trajview.WithTrajectoryPolicy(cfg.Cache.Trajectory.Policy()),
		trajview.WithTrajectoryFormat(cfg.Cache.TrajectoryFormat),
		trajview.WithJanitorInterval(cfg.Cache.JanitorInterval),
		trajview.WithSurfaceFeedback(cfg.HTTP.SurfaceFeedback),
	}

	// 3. Shared request memory
	if cfg.Redis.Addr != "" {
		rt.store = redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		)
		engineOpts = append(engineOpts, trajview.WithRequestStore(rt.store))
		if cfg.Redis.Lock {
			engineOpts = append(engineOpts, trajview.WithLocker(redis.NewLocker(rt.store.Client(), cfg.Redis.Prefix)))
		}
		logger.Info("Request memory backed by Redis", "addr", cfg.Redis.Addr, "lock", cfg.Redis.Lock)
	}

	// 4. Initialize
	engine, err := trajview.New(structures, trajectories, engineOpts...)
	if err != nil {
		_ = rt.closeStore()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	rt.Engine = engine
	return rt, nil
}

// Close stops the engine and releases the Redis connection, if any.
func (r *Runtime) Close() error {
	var errs []error
	if r.Engine != nil {
		errs = append(errs, r.Engine.Close())
	}
	errs = append(errs, r.closeStore())
	return errors.Join(errs...)
}

func (r *Runtime) closeStore() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}

func clientOptions(cfg config.ServicesConfig, logger *slog.Logger) []fetch.Option {
	opts := []fetch.Option{fetch.WithLogger(logger)}
	if cfg.Timeout > 0 {
		opts = append(opts, fetch.WithTimeout(cfg.Timeout))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, fetch.WithHeader(k, v))
	}
	return opts
}

