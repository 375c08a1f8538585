package config

import (
	"fmt"
	"strings"

	"github.com/gyaneshwarpardhi/argus/internal/logging"
)

// Validate checks the config for unknown backend kinds, bad log settings and
// non-positive sizes. All problems are reported together.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.Repository.Kind {
	case "memory", "noop":
	case "redis":
		if cfg.Repository.Redis.Addr == "" {
			errs = append(errs, "repository.redis.addr is required for kind redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("repository.kind: unknown kind %q (want memory, noop or redis)", cfg.Repository.Kind))
	}

	switch cfg.Metrics.Kind {
	case "prom", "noop":
	default:
		errs = append(errs, fmt.Sprintf("metrics.kind: unknown kind %q (want prom or noop)", cfg.Metrics.Kind))
	}

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, "logging.level: "+err.Error())
	}
	switch cfg.Logging.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Sprintf("logging.format: unknown format %q", cfg.Logging.Format))
	}

	if cfg.Ingest.Workers < 0 {
		errs = append(errs, "ingest.workers must be positive")
	}
	if cfg.Ingest.QueueDepth < 0 {
		errs = append(errs, "ingest.queue_depth must be positive")
	}
	if cfg.Ingest.MaxBatchSize < 0 {
		errs = append(errs, "ingest.max_batch_size must be positive")
	}
	if cfg.Server.MaxBodyBytes < 0 {
		errs = append(errs, "server.max_body_bytes must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
