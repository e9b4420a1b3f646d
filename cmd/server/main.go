// Package main is the entry point for the inspecta ops server: health probes,
// metrics and read-only numbering state.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"inspecta/internal/app"
	"inspecta/internal/config"
	v1 "inspecta/internal/infrastructure/http/v1"
	"inspecta/internal/infrastructure/http/v1/handlers"
	"inspecta/internal/infrastructure/storage/postgres"
	"inspecta/internal/infrastructure/storage/postgres/migrations"
	"inspecta/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ./configs/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development || cfg.App.IsDevelopment(),
		Encoding:    cfg.Log.Encoding,
		Service:     cfg.App.Name,
		Environment: cfg.App.Env,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting inspecta server", "env", cfg.App.Env, "version", cfg.App.Version)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize", "error", err)
	}
	defer a.Close()

	if a.Pool != nil && cfg.Database.AutoMigrate {
		db := a.Pool.StdDB()
		version, err := migrations.Up(ctx, db)
		_ = db.Close()
		if err != nil {
			log.Fatalw("failed to migrate database", "error", err)
		}
		log.Infow("database schema ready", "version", version)
	}

	router := v1.NewRouter(v1.RouterConfig{
		Logger: log,
		Info: handlers.AppInfo{
			Name:        cfg.App.Name,
			Version:     cfg.App.Version,
			Environment: cfg.App.Env,
			Backend:     cfg.Numerator.Backend,
			Strategy:    a.Options.Strategy.String(),
		},
		Checks:    healthChecks(a),
		PoolStats: poolStats(a.Pool),
		Counters:  a.Numerator,
		PadWidth:  cfg.Numerator.PadWidth,
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	if a.Pool != nil {
		postgres.LogPoolStats(ctx, a.Pool)
	}

	log.Info("server stopped")
}

func healthChecks(a *app.App) []handlers.Check {
	var checks []handlers.Check
	if a.Pool != nil {
		checks = append(checks, handlers.Check{Name: "database", Ping: a.Pool.Ping})
	}
	if a.Redis != nil {
		checks = append(checks, handlers.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}})
	}
	return checks
}

func poolStats(pool *postgres.Pool) func() map[string]any {
	if pool == nil {
		return nil
	}
	return func() map[string]any {
		stat := pool.Stat()
		return map[string]any{
			"total_conns":    stat.TotalConns(),
			"acquired_conns": stat.AcquiredConns(),
			"idle_conns":     stat.IdleConns(),
			"max_conns":      stat.MaxConns(),
		}
	}
}
