// Package app wires configuration into the numbering and report services
// shared by the server and the admin CLI.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"inspecta/internal/config"
	"inspecta/internal/core/numerator"
	"inspecta/internal/domain/reports"
	"inspecta/internal/infrastructure/metrics"
	infranumerator "inspecta/internal/infrastructure/numerator"
	"inspecta/internal/infrastructure/storage/postgres"
	"inspecta/internal/infrastructure/storage/postgres/report_repo"
	"inspecta/pkg/logger"
)

// App holds long-lived dependencies. Pool is nil when no DSN is configured;
// Redis is nil unless enabled.
type App struct {
	Config    *config.Config
	Log       *logger.Logger
	Pool      *postgres.Pool
	TxManager *postgres.TxManager
	Redis     *redis.Client
	Reports   *report_repo.Registry
	Audit     *postgres.CounterAudit
	Numerator *infranumerator.Service
	Metrics   *metrics.NumeratorMetrics
	Options   *numerator.Options
}

// New connects to the configured stores and builds the numerator.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	opts, err := cfg.Numerator.Options()
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Log:     log,
		Options: opts,
		Metrics: metrics.NumeratorWithConfig(metrics.Config{
			ServiceName: cfg.App.Name,
			Environment: cfg.App.Env,
		}),
	}

	if cfg.Database.DSN != "" {
		poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN)
		poolCfg.ApplicationName = cfg.App.Name
		if cfg.Database.MaxConns > 0 {
			poolCfg.MaxConns = cfg.Database.MaxConns
		}
		if cfg.Database.MinConns > 0 {
			poolCfg.MinConns = cfg.Database.MinConns
		}
		if cfg.Database.MaxConnLifetime > 0 {
			poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
		}
		if cfg.Database.MaxConnIdleTime > 0 {
			poolCfg.MaxConnIdleTime = cfg.Database.MaxConnIdleTime
		}

		pool, err := postgres.NewPool(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.Pool = pool
		a.TxManager = postgres.NewTxManager(pool)

		codec, err := report_repo.NewFormCodec(report_repo.DefaultCompressThreshold)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Reports = report_repo.NewRegistry(a.TxManager, codec)
		a.Audit = postgres.NewCounterAudit(a.TxManager)
	}

	if cfg.Redis.Enabled {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	counter, err := a.counter()
	if err != nil {
		a.Close()
		return nil, err
	}

	svcOpts := []infranumerator.Option{infranumerator.WithMetrics(a.Metrics)}
	if a.Reports != nil {
		svcOpts = append(svcOpts,
			infranumerator.WithSource(a.Reports),
			infranumerator.WithChangeRecorder(a.Audit))
	}
	a.Numerator = infranumerator.New(counter, svcOpts...)

	log.Infow("numerator initialized",
		"backend", cfg.Numerator.Backend,
		"strategy", opts.Strategy.String(),
		"pad_width", cfg.Numerator.PadWidth)

	return a, nil
}

func (a *App) counter() (infranumerator.Counter, error) {
	switch a.Config.Numerator.Backend {
	case config.BackendPostgres:
		if a.TxManager == nil {
			return nil, fmt.Errorf("postgres counter: database is not configured")
		}
		txm := a.TxManager
		return infranumerator.NewPostgresCounterFromContext(func(ctx context.Context) infranumerator.Querier {
			return txm.GetQuerier(ctx)
		}), nil
	case config.BackendRedis:
		if a.Redis == nil {
			return nil, fmt.Errorf("redis counter: redis is not enabled")
		}
		return infranumerator.NewRedisCounter(a.Redis, a.Config.Redis.KeyPrefix), nil
	case config.BackendMemory:
		return infranumerator.NewMemoryCounter(), nil
	default:
		return nil, fmt.Errorf("unknown numerator backend %q", a.Config.Numerator.Backend)
	}
}

// NumberConfig returns the numbering configuration of a family.
func (a *App) NumberConfig(family reports.Family) numerator.Config {
	cfg := numerator.DefaultConfig(family.Prefix)
	if a.Config.Numerator.PadWidth > 0 {
		cfg.PadWidth = a.Config.Numerator.PadWidth
	}
	return cfg
}

// ReportService builds the report service of a family.
func (a *App) ReportService(family reports.Family) (*reports.Service, error) {
	if a.Reports == nil {
		return nil, fmt.Errorf("report storage requires database.dsn")
	}
	repo, ok := a.Reports.Repo(family.Prefix)
	if !ok {
		return nil, fmt.Errorf("no repository for family %s", family.Prefix)
	}
	return reports.NewService(reports.ServiceConfig{
		Family:    family,
		Repo:      repo,
		Numerator: a.Numerator,
		TxManager: a.TxManager,
		Options:   a.Options,
		PadWidth:  a.Config.Numerator.PadWidth,
		Observer:  a.Metrics,
	}), nil
}

// Close releases connections.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Warnw("failed to close redis", "error", err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
