// Hearth watchdog - supervises the hearthd server process.
//
// hearthwatch spawns hearthd, watches for exits and failed health
// probes, restarts with exponential backoff, and gives up once the
// restart budget is exhausted. Its own stats API stays up either way
// so operators can read crash history after a give-up.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hearthstead/hearth-core/internal/alerting"
	"github.com/hearthstead/hearth-core/internal/infrastructure/config"
	"github.com/hearthstead/hearth-core/internal/infrastructure/logging"
	"github.com/hearthstead/hearth-core/internal/supervisor"
)

// Version information set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting hearthwatch", "version", version, "commit", commit)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath)

	// The supervisor keeps its own small alert buffer: if hearthd is
	// down, its API is down too, so supervision events must live here.
	alerts, err := alerting.NewService(cfg.Alerting.BufferCapacity, log)
	if err != nil {
		return fmt.Errorf("creating alerting service: %w", err)
	}

	sup := supervisor.New(cfg.Supervisor, version, alerts, log)

	stats := supervisor.NewStatsServer(cfg.Supervisor, sup, alerts, log)
	if err := stats.Start(); err != nil {
		return fmt.Errorf("starting stats server: %w", err)
	}
	defer func() {
		if closeErr := stats.Close(); closeErr != nil {
			log.Error("error closing stats server", "error", closeErr)
		}
	}()

	if err := sup.Start(ctx); err != nil {
		return fmt.Errorf("starting supervision: %w", err)
	}

	log.Info("supervision active",
		"command", cfg.Supervisor.Command,
		"max_restarts", cfg.Supervisor.MaxRestarts,
		"health_check_url", cfg.Supervisor.HealthCheckURL,
	)

	<-ctx.Done()

	log.Info("shutdown signal received, stopping supervised process")
	if err := sup.Stop(); err != nil {
		log.Error("error stopping supervised process", "error", err)
	}

	log.Info("hearthwatch stopped")
	return nil
}

// getConfigPath returns HEARTH_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
