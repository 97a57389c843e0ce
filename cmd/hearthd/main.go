// Hearth server - the long-running process of the Hearth home platform.
//
// hearthd owns the device health monitor, the alerting service, and the
// HTTP/WebSocket API. It is designed to run under the hearthwatch
// supervisor, which probes /api/v1/health and restarts the process on
// crash or hang.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/hearthstead/hearth-core/migrations"

	"github.com/hearthstead/hearth-core/internal/alerting"
	"github.com/hearthstead/hearth-core/internal/api"
	"github.com/hearthstead/hearth-core/internal/device"
	"github.com/hearthstead/hearth-core/internal/infrastructure/config"
	"github.com/hearthstead/hearth-core/internal/infrastructure/database"
	"github.com/hearthstead/hearth-core/internal/infrastructure/influxdb"
	"github.com/hearthstead/hearth-core/internal/infrastructure/logging"
	"github.com/hearthstead/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearthstead/hearth-core/internal/monitor"
)

// Version information set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
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

// run is the application logic, separated from main so failures map to
// exit codes in one place.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting hearthd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath)

	// Database and catalogue.
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	if err := registry.Load(ctx); err != nil {
		return fmt.Errorf("loading device catalogue: %w", err)
	}
	log.Info("device catalogue loaded", "devices", registry.Count())

	// Alerting service: the in-memory buffer is the authoritative store.
	alerts, err := alerting.NewService(cfg.Alerting.BufferCapacity, log)
	if err != nil {
		return fmt.Errorf("creating alerting service: %w", err)
	}

	// MQTT heartbeat path (optional).
	tracker := monitor.NewHeartbeatTracker(cfg.Monitor.HeartbeatAge())
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() { log.Info("mqtt connected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("mqtt disconnected", "error", err) })

		if err := tracker.Subscribe(mqttClient, byte(cfg.MQTT.QoS)); err != nil {
			return fmt.Errorf("subscribing to device heartbeats: %w", err)
		}
		alerts.AddSink(alerting.NewMQTTSink(mqttClient, byte(cfg.MQTT.QoS)))
		log.Info("mqtt heartbeat path active",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("mqtt disabled; heartbeat probes will fail until enabled")
	}

	// Probe adapters. The heartbeat probe is built in; anything else
	// would be registered here.
	probers := func(d device.Device) (monitor.Prober, bool) {
		if d.Probe == device.ProbeHeartbeat {
			return tracker.ProberFor(d.ID), true
		}
		return nil, false
	}

	// Health monitor over the enabled catalogue.
	var targets []monitor.Target
	for _, d := range registry.ListEnabled() {
		prober, ok := probers(d)
		if !ok {
			log.Warn("no probe adapter for device", "device_id", d.ID, "probe", d.Probe)
			continue
		}
		targets = append(targets, monitor.Target{
			DeviceID: d.ID,
			Kind:     d.Kind,
			Name:     d.Name,
			Prober:   prober,
		})
	}

	mon := monitor.New(monitor.Config{
		PollInterval:          cfg.Monitor.Interval(),
		ProbeTimeout:          cfg.Monitor.Timeout(),
		MaxParallel:           cfg.Monitor.MaxParallel,
		AlarmFailureThreshold: cfg.Monitor.AlarmFailureThreshold,
	}, targets, alerts, log)

	// InfluxDB export (optional).
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("influxdb write error", "error", err)
		})

		alerts.AddSink(alerting.NewInfluxSink(influxClient))
		mon.SetCycleObserver(func(cs monitor.CycleStats) {
			byState := make(map[string]int, len(cs.ByState))
			for state, n := range cs.ByState {
				byState[string(state)] = n
			}
			influxClient.WriteCycleSummary(cs.Probed, cs.Failed, byState)
		})
		log.Info("influxdb export active", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("influxdb disabled")
	}

	// API server.
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Logger:   log,
		Registry: registry,
		Monitor:  mon,
		Alerts:   alerts,
		Probers:  probers,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing api server", "error", closeErr)
		}
	}()

	// Alerts reach WebSocket clients as soon as the hub exists.
	alerts.AddSink(api.NewAlertBroadcastSink(server.Hub()))

	if err := mon.Start(ctx); err != nil {
		return fmt.Errorf("starting monitor: %w", err)
	}
	defer mon.Stop()

	if _, err := alerts.Publish(alerting.SeverityInfo, "system", "hearthd", "server started", map[string]any{
		"version": version,
		"devices": registry.Count(),
	}); err != nil {
		log.Warn("startup message not published", "error", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns HEARTH_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
