package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/argus/internal/api"
	"github.com/gyaneshwarpardhi/argus/internal/config"
	"github.com/gyaneshwarpardhi/argus/internal/ingest"
	"github.com/gyaneshwarpardhi/argus/internal/logging"
	"github.com/gyaneshwarpardhi/argus/internal/metrics"
	"github.com/gyaneshwarpardhi/argus/internal/repository"
	"github.com/gyaneshwarpardhi/argus/internal/tracing"
)

var version = "dev"

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides config and "+config.EnvEndpoint+")")
	cfgPath := flag.String("config", "", "Path to YAML config (optional)")
	repoKind := flag.String("repository", "", "Repository backend: memory, noop or redis")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := *loader.Config()
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *repoKind != "" {
		cfg.Repository.Kind = *repoKind
	}
	if err := config.Validate(&cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	// ── Logging ──────────────────────────────────────────────────────────────
	var level slog.LevelVar
	lvl, _ := logging.ParseLevel(cfg.Logging.Level)
	level.Set(lvl)
	logger, err := logging.New(os.Stdout, cfg.Logging.Format, &level)
	if err != nil {
		slog.Error("failed to build logger", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	// ── Hot-reload watcher (log level only) ──────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		lvl, err := logging.ParseLevel(newCfg.Logging.Level)
		if err != nil {
			slog.Warn("hot-reload skipped: invalid log level", "err", err)
			return
		}
		level.Set(lvl)
		slog.Info("log level reloaded", "level", lvl)
	})
	stopWatch, err := loader.Watch(func(err error) {
		slog.Warn("config reload failed", "err", err)
	})
	switch {
	case errors.Is(err, config.ErrNoFile):
	case err != nil:
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	default:
		defer stopWatch()
	}

	// ── Tracing ──────────────────────────────────────────────────────────────
	tp, shutdownTracing, err := tracing.Setup(cfg.Tracing.Enabled, os.Stderr, version)
	if err != nil {
		slog.Error("failed to set up tracing", "err", err)
		os.Exit(1)
	}

	// ── Repository ───────────────────────────────────────────────────────────
	base, err := repository.New(cfg.Repository.Kind, repository.Options{
		Redis: repository.RedisOptions{
			Addr:      cfg.Repository.Redis.Addr,
			Password:  cfg.Repository.Redis.Password,
			DB:        cfg.Repository.Redis.DB,
			KeyPrefix: cfg.Repository.Redis.KeyPrefix,
		},
	})
	if err != nil {
		slog.Error("failed to open repository", "kind", cfg.Repository.Kind, "err", err)
		os.Exit(1)
	}
	var repo repository.Repository = base
	if cfg.Tracing.Enabled {
		repo = repository.NewTraced(base, tp)
	}
	slog.Info("repository ready", "kind", cfg.Repository.Kind, "tracing", cfg.Tracing.Enabled)

	// ── Metrics ──────────────────────────────────────────────────────────────
	rec, err := metrics.New(cfg.Metrics.Kind)
	if err != nil {
		slog.Error("failed to create metrics recorder", "err", err)
		os.Exit(1)
	}

	// ── Batch ingest pool ────────────────────────────────────────────────────
	pool := ingest.NewPool(cfg.Ingest.Workers, cfg.Ingest.QueueDepth, repo.Insert)

	// ── HTTP server ──────────────────────────────────────────────────────────
	handler := api.New(repo, rec, pool, api.Options{
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		MaxBatchSize: cfg.Ingest.MaxBatchSize,
	})
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  ms(cfg.Server.ReadTimeoutMs),
		WriteTimeout: ms(cfg.Server.WriteTimeoutMs),
		IdleTimeout:  ms(cfg.Server.IdleTimeoutMs),
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Server.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), ms(cfg.Server.ShutdownTimeoutMs))
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("http shutdown incomplete", "err", err)
	}
	pool.Drain()
	if c, ok := base.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Warn("repository close failed", "err", err)
		}
	}
	if err := shutdownTracing(shutCtx); err != nil {
		slog.Warn("tracing shutdown failed", "err", err)
	}
	slog.Info("goodbye")
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
