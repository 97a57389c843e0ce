package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Hearth Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Alerting   AlertingConfig   `yaml:"alerting"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host        string           `yaml:"host"`
	Port        int              `yaml:"port"`
	MetricsPath string           `yaml:"metrics_path"`
	Timeouts    APITimeoutConfig `yaml:"timeouts"`
	WebSocket   WebSocketConfig  `yaml:"websocket"`
}

// WebSocketConfig contains WebSocket hub settings.
type WebSocketConfig struct {
	// PingInterval is the protocol ping cadence in seconds.
	PingInterval int `yaml:"ping_interval"`
	// PongTimeout is how long in seconds to wait for a pong before
	// dropping the connection.
	PongTimeout int `yaml:"pong_timeout"`
	// MaxMessageSize caps inbound client messages in bytes.
	MaxMessageSize int `yaml:"max_message_size"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings.
//
// InfluxDB is an optional export sink. The core's own retention is the
// bounded in-memory alert buffer; InfluxDB only receives a copy of
// published alerts and per-cycle health gauges for external dashboards.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MonitorConfig contains device health monitor settings.
type MonitorConfig struct {
	// PollInterval is the scheduled gap between polling cycles (seconds).
	PollInterval int `yaml:"poll_interval"`

	// ProbeTimeout bounds each individual device probe (seconds).
	ProbeTimeout int `yaml:"probe_timeout"`

	// MaxParallel caps how many probes run concurrently within a cycle.
	MaxParallel int `yaml:"max_parallel"`

	// AlarmFailureThreshold is the consecutive-failure count that escalates
	// a device from degraded to offline. The first failure always degrades.
	AlarmFailureThreshold int `yaml:"alarm_failure_threshold"`

	// HeartbeatMaxAge is how stale an MQTT device heartbeat may be before
	// the built-in heartbeat prober reports the device as failed (seconds).
	HeartbeatMaxAge int `yaml:"heartbeat_max_age"`
}

// AlertingConfig contains alerting service settings.
type AlertingConfig struct {
	// BufferCapacity is the fixed size of the message retention buffer.
	BufferCapacity int `yaml:"buffer_capacity"`
}

// SupervisorConfig contains hearthwatch process supervision settings.
type SupervisorConfig struct {
	// Command is the path to the server binary to supervise.
	Command string `yaml:"command"`

	// Args are command-line arguments passed to the server.
	Args []string `yaml:"args"`

	// MaxRestarts is the restart budget before the supervisor gives up.
	MaxRestarts int `yaml:"max_restarts"`

	// RestartDelay is the initial delay before the first restart (seconds,
	// fractional values allowed).
	RestartDelay float64 `yaml:"restart_delay"`

	// BackoffMultiplier scales the delay after every restart.
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`

	// MaxRestartDelay caps the backoff delay (seconds).
	MaxRestartDelay float64 `yaml:"max_restart_delay"`

	// HealthCheckURL is the child's health endpoint probed by the watchdog.
	HealthCheckURL string `yaml:"health_check_url"`

	// HealthCheckInterval is how often the watchdog probes (seconds).
	HealthCheckInterval int `yaml:"health_check_interval"`

	// HealthCheckTimeout bounds each watchdog probe (seconds).
	HealthCheckTimeout int `yaml:"health_check_timeout"`

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL (seconds).
	GracefulTimeout int `yaml:"graceful_timeout"`

	// StderrTailLines is how many trailing stderr lines are kept per crash event.
	StderrTailLines int `yaml:"stderr_tail_lines"`

	// CrashReportPath is where the final crash report JSON is written.
	CrashReportPath string `yaml:"crash_report_path"`

	// StatsHost and StatsPort are where the supervisor's own stats API listens.
	StatsHost string `yaml:"stats_host"`
	StatsPort int    `yaml:"stats_port"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HEARTH_SECTION_KEY
// For example: HEARTH_DATABASE_PATH, HEARTH_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Hearth",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/hearth.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hearth-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host:        "0.0.0.0",
			Port:        8095,
			MetricsPath: "/metrics",
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				PingInterval:   30,
				PongTimeout:    60,
				MaxMessageSize: 4096,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Monitor: MonitorConfig{
			PollInterval:          30,
			ProbeTimeout:          10,
			MaxParallel:           8,
			AlarmFailureThreshold: 3,
			HeartbeatMaxAge:       90,
		},
		Alerting: AlertingConfig{
			BufferCapacity: 1000,
		},
		Supervisor: SupervisorConfig{
			Command:             "./hearthd",
			MaxRestarts:         10,
			RestartDelay:        1.0,
			BackoffMultiplier:   2.0,
			MaxRestartDelay:     300.0,
			HealthCheckURL:      "http://127.0.0.1:8095/api/v1/health",
			HealthCheckInterval: 30,
			HealthCheckTimeout:  10,
			GracefulTimeout:     10,
			StderrTailLines:     40,
			CrashReportPath:     "./data/crash-report.json",
			StatsHost:           "127.0.0.1",
			StatsPort:           8096,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HEARTH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("HEARTH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("HEARTH_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HEARTH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HEARTH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("HEARTH_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("HEARTH_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("HEARTH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Supervisor
	if v := os.Getenv("HEARTH_SUPERVISOR_COMMAND"); v != "" {
		cfg.Supervisor.Command = v
	}
}

// Validate checks the configuration for errors.
//
// A configuration failure is terminal at startup: the supervisor and
// monitor refuse to start rather than run in an undefined state.
func (c *Config) Validate() error {
	var errs []string

	// Site validation
	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.WebSocket.PingInterval < 1 {
		errs = append(errs, "api.websocket.ping_interval must be at least 1 second")
	}
	if c.API.WebSocket.PongTimeout < 1 {
		errs = append(errs, "api.websocket.pong_timeout must be at least 1 second")
	}
	if c.API.WebSocket.MaxMessageSize < 1 {
		errs = append(errs, "api.websocket.max_message_size must be positive")
	}

	// Monitor validation
	if c.Monitor.PollInterval < 1 {
		errs = append(errs, "monitor.poll_interval must be at least 1 second")
	}
	if c.Monitor.ProbeTimeout < 1 {
		errs = append(errs, "monitor.probe_timeout must be at least 1 second")
	}
	if c.Monitor.MaxParallel < 1 {
		errs = append(errs, "monitor.max_parallel must be at least 1")
	}
	if c.Monitor.AlarmFailureThreshold < 1 {
		errs = append(errs, "monitor.alarm_failure_threshold must be at least 1")
	}

	// Alerting validation
	if c.Alerting.BufferCapacity < 1 {
		errs = append(errs, "alerting.buffer_capacity must be at least 1")
	}

	// Supervisor validation
	if c.Supervisor.Command == "" {
		errs = append(errs, "supervisor.command is required")
	}
	if c.Supervisor.MaxRestarts < 0 {
		errs = append(errs, "supervisor.max_restarts must not be negative")
	}
	if c.Supervisor.RestartDelay <= 0 {
		errs = append(errs, "supervisor.restart_delay must be positive")
	}
	if c.Supervisor.BackoffMultiplier < 1.0 {
		errs = append(errs, "supervisor.backoff_multiplier must be at least 1.0")
	}
	if c.Supervisor.MaxRestartDelay < c.Supervisor.RestartDelay {
		errs = append(errs, "supervisor.max_restart_delay must not be below supervisor.restart_delay")
	}
	if c.Supervisor.HealthCheckInterval < 1 {
		errs = append(errs, "supervisor.health_check_interval must be at least 1 second")
	}
	if c.Supervisor.StatsPort < 1 || c.Supervisor.StatsPort > 65535 {
		errs = append(errs, "supervisor.stats_port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// Interval returns the monitor poll interval as a Duration.
func (c *MonitorConfig) Interval() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// Timeout returns the per-device probe timeout as a Duration.
func (c *MonitorConfig) Timeout() time.Duration {
	return time.Duration(c.ProbeTimeout) * time.Second
}

// HeartbeatAge returns the heartbeat staleness limit as a Duration.
func (c *MonitorConfig) HeartbeatAge() time.Duration {
	return time.Duration(c.HeartbeatMaxAge) * time.Second
}

// InitialDelay returns the first restart delay as a Duration.
func (c *SupervisorConfig) InitialDelay() time.Duration {
	return time.Duration(c.RestartDelay * float64(time.Second))
}

// DelayCap returns the maximum restart delay as a Duration.
func (c *SupervisorConfig) DelayCap() time.Duration {
	return time.Duration(c.MaxRestartDelay * float64(time.Second))
}

// Interval returns the health check interval as a Duration.
func (c *SupervisorConfig) Interval() time.Duration {
	return time.Duration(c.HealthCheckInterval) * time.Second
}

// Timeout returns the per-probe health check timeout as a Duration.
func (c *SupervisorConfig) Timeout() time.Duration {
	return time.Duration(c.HealthCheckTimeout) * time.Second
}
