package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/dnscache"

	"github.com/eugener/cacheaside/internal/app"
	"github.com/eugener/cacheaside/internal/cache"
	"github.com/eugener/cacheaside/internal/config"
	"github.com/eugener/cacheaside/internal/server"
	"github.com/eugener/cacheaside/internal/storage"
	"github.com/eugener/cacheaside/internal/storage/sqlite"
	"github.com/eugener/cacheaside/internal/telemetry"
	"github.com/eugener/cacheaside/internal/worker"
)

// startupPingTimeout bounds the initial cache connectivity check.
const startupPingTimeout = 5 * time.Second

func run(configPath string) error {
	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.Info("starting cacheaside", "version", version, "addr", cfg.Server.Addr, "cache", cfg.Cache.Backend)

	// Tracing
	if cfg.Telemetry.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(context.Background(), cfg.Telemetry.Tracing.Endpoint, version, cfg.Telemetry.Tracing.SampleRate)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				slog.Warn("tracer shutdown", "error", err)
			}
		}()
	}

	// Metrics
	var (
		metrics        *telemetry.Metrics
		metricsHandler http.Handler
	)
	if cfg.Telemetry.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = telemetry.NewMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	// Open database
	db, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	// Bootstrap from config
	ctx := context.Background()
	if err := config.Bootstrap(ctx, cfg, db); err != nil {
		return err
	}
	movies, err := db.CountMovies(ctx)
	if err != nil {
		return fmt.Errorf("count movies: %w", err)
	}
	slog.Info("record store ready", "dsn", cfg.Database.DSN, "movies", movies)
	records := storage.WithLatency(db, cfg.Database.ReadLatency, cfg.Database.WriteLatency)

	// Cache store and its background workers
	store, workers, err := openCache(cfg, metrics)
	if err != nil {
		return err
	}
	defer store.Close()

	pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	err = store.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("cache store unreachable: %w", err)
	}

	// Wire services
	handler := server.New(server.Deps{
		Movies:      app.NewMovieService(records, store, cfg.Policy.MovieTTL, metrics),
		Profiles:    app.NewProfileService(store, cfg.Policy.ProfileTTL, metrics),
		Leaderboard: app.NewLeaderboardService(store, cfg.Policy.LeaderboardKey, cfg.Policy.TopMax, metrics),
		Keys:        app.NewKeyService(store, metrics),
		ReadyCheck: func(ctx context.Context) error {
			if err := store.Ping(ctx); err != nil {
				return err
			}
			return db.Ping(ctx)
		},
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Background workers
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	var workerDone chan error // nil blocks forever when there are no workers
	if len(workers) > 0 {
		workerDone = make(chan error, 1)
		go func() { workerDone <- worker.NewRunner(workers...).Run(workerCtx) }()
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("cacheaside ready", "addr", cfg.Server.Addr)

	// Wait for signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		return err
	case err := <-workerDone:
		if err != nil {
			return fmt.Errorf("worker: %w", err)
		}
	}

	// Shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	stopWorkers()

	slog.Info("cacheaside stopped")
	return nil
}

// openCache builds the configured cache store along with the workers that
// maintain it.
func openCache(cfg *config.Config, metrics *telemetry.Metrics) (cache.Store, []worker.Worker, error) {
	switch cfg.Cache.Backend {
	case config.BackendMemory:
		mem, err := cache.NewMemory(cfg.Cache.Memory.MaxSize)
		if err != nil {
			return nil, nil, err
		}
		var swept prometheus.Counter
		if metrics != nil {
			swept = metrics.ExpiredKeysSwept
		}
		return mem, []worker.Worker{
			worker.NewExpirySweeper(mem, cfg.Cache.Memory.SweepInterval, swept),
		}, nil

	default:
		var (
			resolver *dnscache.Resolver
			workers  []worker.Worker
		)
		if cfg.Cache.Redis.DNSCache {
			resolver = &dnscache.Resolver{}
			workers = append(workers, worker.NewDNSRefresher(resolver, cfg.Cache.Redis.DNSRefresh))
		}
		rdb, err := cache.NewRedis(cfg.Cache.Redis.URL, resolver)
		if err != nil {
			return nil, nil, err
		}
		return rdb, workers, nil
	}
}
