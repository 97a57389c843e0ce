package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hearthstead/hearth-core/internal/alerting"
	"github.com/hearthstead/hearth-core/internal/infrastructure/config"
	"github.com/hearthstead/hearth-core/internal/infrastructure/logging"
	"github.com/hearthstead/hearth-core/internal/process"
)

// alertCategory tags every message the supervisor publishes.
const alertCategory = "supervisor"

// Supervisor owns the hearthd child process. It wraps the process
// manager with an HTTP health probe against the server's health
// endpoint, publishes lifecycle events into its own alert buffer, and
// flushes a crash report at shutdown.
type Supervisor struct {
	cfg     config.SupervisorConfig
	version string
	logger  *logging.Logger
	alerts  *alerting.Service
	manager *process.Manager
	client  *http.Client
}

// New wires a supervisor around the configured server command. The
// alerting service receives one message per start, crash and give-up,
// so the stats API can expose the supervisor's own event history.
func New(cfg config.SupervisorConfig, version string, alerts *alerting.Service, logger *logging.Logger) *Supervisor {
	s := &Supervisor{
		cfg:     cfg,
		version: version,
		logger:  logger,
		alerts:  alerts,
		client: &http.Client{
			// Per-probe deadlines come from the request context; this is
			// a backstop against a wedged transport.
			Timeout: 2 * cfg.Timeout(),
		},
	}

	pcfg := process.Config{
		Name:                "hearthd",
		Binary:              cfg.Command,
		Args:                cfg.Args,
		MaxRestarts:         cfg.MaxRestarts,
		RestartDelay:        cfg.InitialDelay(),
		BackoffMultiplier:   cfg.BackoffMultiplier,
		MaxRestartDelay:     cfg.DelayCap(),
		GracefulTimeout:     time.Duration(cfg.GracefulTimeout) * time.Second,
		HealthCheckInterval: cfg.Interval(),
		HealthCheckTimeout:  cfg.Timeout(),
		StderrTailLines:     cfg.StderrTailLines,
		OnStart:             s.onStart,
		OnCrash:             s.onCrash,
		OnGiveUp:            s.onGiveUp,
	}
	if cfg.HealthCheckURL != "" {
		pcfg.HealthCheck = s.probeHealth
	}

	s.manager = process.NewManager(pcfg)
	s.manager.SetLogger(logger)

	return s
}

// Start spawns the server child process and begins supervising it.
func (s *Supervisor) Start(ctx context.Context) error {
	return s.manager.Start(ctx)
}

// Stop shuts the child down gracefully and flushes the final crash
// report. A report write failure is logged and contained; the shutdown
// still completes cleanly.
func (s *Supervisor) Stop() error {
	err := s.manager.Stop()

	if s.cfg.CrashReportPath != "" {
		if werr := s.WriteReport(); werr != nil {
			s.logger.Error("failed to write crash report", "path", s.cfg.CrashReportPath, "error", werr)
		}
	}

	return err
}

// probeHealth issues one bounded GET against the child's health
// endpoint. Any transport error, timeout or non-2xx status counts as
// unhealthy.
func (s *Supervisor) probeHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.HealthCheckURL, nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("health probe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health probe: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (s *Supervisor) onStart(pid int) {
	s.alerts.Publish(alerting.SeverityInfo, alertCategory, "hearthwatch",
		"server process started",
		map[string]any{"pid": pid, "command": s.cfg.Command},
	)
}

func (s *Supervisor) onCrash(ev process.CrashEvent) {
	s.alerts.Publish(alerting.SeverityWarning, alertCategory, "hearthwatch",
		"server process crashed",
		map[string]any{
			"exit_code":       ev.ExitCode,
			"uptime_seconds":  ev.Uptime,
			"restart_attempt": ev.RestartAttempt,
			"pid":             ev.PID,
		},
	)
}

func (s *Supervisor) onGiveUp(ev process.CrashEvent) {
	s.alerts.Publish(alerting.SeverityAlarm, alertCategory, "hearthwatch",
		fmt.Sprintf("restart budget exhausted after %d restarts, supervision suspended", s.cfg.MaxRestarts),
		map[string]any{
			"last_exit_code": ev.ExitCode,
			"max_restarts":   s.cfg.MaxRestarts,
		},
	)
}

// Stats is the supervisor's get_stats payload: the process snapshot
// plus the probe target, safe to call from any goroutine.
type Stats struct {
	process.Stats
	HealthCheckURL string `json:"health_check_url,omitempty"`
}

// Stats returns a point-in-time snapshot of the supervised process.
func (s *Supervisor) Stats() Stats {
	return Stats{
		Stats:          s.manager.Stats(),
		HealthCheckURL: s.cfg.HealthCheckURL,
	}
}

// Report builds the current crash report aggregate.
func (s *Supervisor) Report() CrashReport {
	stats := s.manager.Stats()
	return CrashReport{
		GeneratedAt:        time.Now().UTC(),
		TotalCrashes:       stats.CrashCount,
		TotalRestarts:      stats.RestartCount,
		TotalUptime:        stats.TotalUptime,
		MaxRestartsAllowed: s.cfg.MaxRestarts,
		CrashEvents:        s.manager.CrashEvents(),
		SystemInfo:         collectSystemInfo(),
		AppInfo: AppInfo{
			Name:          "hearthd",
			Version:       s.version,
			Command:       s.cfg.Command,
			Args:          s.cfg.Args,
			SupervisorPID: os.Getpid(),
		},
	}
}

// WriteReport flushes the current crash report to the configured path.
func (s *Supervisor) WriteReport() error {
	return writeReportFile(s.cfg.CrashReportPath, s.Report())
}
