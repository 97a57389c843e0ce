package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status represents the current state of a managed process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
	// StatusGivenUp is terminal: the restart budget is spent and the
	// manager only answers stats queries from here on.
	StatusGivenUp Status = "given_up"
)

// outputBufferSize is the buffer size for capturing subprocess stdout.
const outputBufferSize = 4096

// killWaitTimeout bounds how long the watchdog waits for a killed
// process to actually exit.
const killWaitTimeout = 5 * time.Second

// Config holds configuration for a managed subprocess.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format).
	// If nil, inherits from parent process.
	Env []string

	// WorkDir is the working directory for the process.
	// If empty, inherits from parent process.
	WorkDir string

	// MaxRestarts limits restart attempts before the manager gives up.
	MaxRestarts int

	// RestartDelay is the initial delay before the first restart.
	RestartDelay time.Duration

	// BackoffMultiplier scales the delay after each restart.
	BackoffMultiplier float64

	// MaxRestartDelay caps the backoff growth.
	MaxRestartDelay time.Duration

	// StableThreshold is the uptime after which a run counts as stable
	// and the backoff sequence resets. Zero disables the reset.
	StableThreshold time.Duration

	// GracefulTimeout is how long to wait for graceful shutdown before SIGKILL.
	GracefulTimeout time.Duration

	// HealthCheck is called periodically to verify the process is
	// responsive, not merely alive. If nil, liveness is exit-based only.
	HealthCheck func(ctx context.Context) error

	// HealthCheckInterval is how often to run health checks.
	HealthCheckInterval time.Duration

	// HealthCheckTimeout bounds each individual probe.
	HealthCheckTimeout time.Duration

	// StderrTailLines is how many trailing stderr lines each CrashEvent keeps.
	StderrTailLines int

	// OnStart is called when the process starts successfully.
	OnStart func(pid int)

	// OnCrash is called with the recorded event after every unexpected exit.
	OnCrash func(ev CrashEvent)

	// OnGiveUp is called once when the restart budget is exhausted.
	OnGiveUp func(ev CrashEvent)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(name, binary string, args []string) Config {
	return Config{
		Name:                name,
		Binary:              binary,
		Args:                args,
		MaxRestarts:         10,
		RestartDelay:        time.Second,
		BackoffMultiplier:   2.0,
		MaxRestartDelay:     5 * time.Minute,
		StableThreshold:     2 * time.Minute,
		GracefulTimeout:     10 * time.Second,
		HealthCheckInterval: 30 * time.Second,
		HealthCheckTimeout:  10 * time.Second,
		StderrTailLines:     50,
	}
}

// Logger defines the logging interface for the process manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager owns the lifecycle of one subprocess: spawn, watch for exit
// or hang, restart with exponential backoff, give up when the budget
// is spent. Restart accounting is shared between the exit-wait path
// and the health-check path and is always mutated under mu.
type Manager struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	status        Status
	restartCount  int
	lastError     error
	startTime     time.Time
	totalUptime   time.Duration
	crashes       []CrashEvent
	stopRequested bool

	backoff    *backoff
	stderrTail *tailBuffer

	done   chan struct{}
	stopCh chan struct{}
}

// NewManager creates a new process manager with the given configuration.
func NewManager(cfg Config) *Manager {
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = time.Second
	}
	if cfg.BackoffMultiplier == 0 {
		cfg.BackoffMultiplier = 2.0
	}
	if cfg.MaxRestartDelay == 0 {
		cfg.MaxRestartDelay = 5 * time.Minute
	}
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = 10 * time.Second
	}
	if cfg.HealthCheckInterval == 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}
	if cfg.HealthCheckTimeout == 0 {
		cfg.HealthCheckTimeout = 10 * time.Second
	}
	if cfg.StderrTailLines == 0 {
		cfg.StderrTailLines = 50
	}

	return &Manager{
		config:     cfg,
		logger:     noopLogger{},
		status:     StatusStopped,
		backoff:    newBackoff(cfg.RestartDelay, cfg.BackoffMultiplier, cfg.MaxRestartDelay),
		stderrTail: newTailBuffer(cfg.StderrTailLines),
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Start launches the subprocess and begins supervising it. Returns an
// error if the first spawn fails. Starting again after a give-up
// resets the restart budget; crash history is kept.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusRunning || m.status == StatusStarting {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, m.config.Name)
	}
	m.status = StatusStarting
	m.stopRequested = false
	m.restartCount = 0
	m.backoff.reset()
	m.done = make(chan struct{})
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	if err := m.startProcess(ctx); err != nil {
		m.mu.Lock()
		m.status = StatusFailed
		m.lastError = err
		m.mu.Unlock()
		return err
	}

	go m.supervise(ctx)

	return nil
}

// startProcess actually starts the subprocess.
func (m *Manager) startProcess(ctx context.Context) error {
	m.logger.Info("starting process",
		"name", m.config.Name,
		"binary", m.config.Binary,
		"args", m.config.Args,
	)

	cmd := exec.CommandContext(ctx, m.config.Binary, m.config.Args...)

	// New process group so shutdown can signal all children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if m.config.Env != nil {
		cmd.Env = append(os.Environ(), m.config.Env...)
	}
	if m.config.WorkDir != "" {
		cmd.Dir = m.config.WorkDir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", m.config.Name, err)
	}

	m.stderrTail.clear()

	m.mu.Lock()
	m.cmd = cmd
	m.status = StatusRunning
	m.startTime = time.Now()
	m.mu.Unlock()

	go m.captureStdout(stdout)
	go m.captureStderr(stderr)

	m.logger.Info("process started",
		"name", m.config.Name,
		"pid", cmd.Process.Pid,
	)

	if m.config.OnStart != nil {
		m.config.OnStart(cmd.Process.Pid)
	}

	return nil
}

// captureStdout drains stdout into the debug log.
func (m *Manager) captureStdout(r io.Reader) {
	buf := make([]byte, outputBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			m.logger.Debug("process output",
				"name", m.config.Name,
				"stream", "stdout",
				"output", string(buf[:n]),
			)
		}
		if err != nil {
			return
		}
	}
}

// captureStderr drains stderr line by line into the tail buffer, so a
// crash report can show the child's final output, and into the debug log.
func (m *Manager) captureStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, outputBufferSize), outputBufferSize)
	for scanner.Scan() {
		line := scanner.Text()
		m.stderrTail.add(line)
		m.logger.Debug("process output",
			"name", m.config.Name,
			"stream", "stderr",
			"output", line,
		)
	}
}

// waitForExitOrHealthFailure waits for the process to exit or for an
// active health check to fail. A failed probe means the child is hung
// but alive; the watchdog kills it so the failure flows through the
// same restart path as a crash.
func (m *Manager) waitForExitOrHealthFailure(ctx context.Context, cmd *exec.Cmd) error {
	exitCh := make(chan error, 1)
	go func() {
		exitCh <- cmd.Wait()
	}()

	if m.config.HealthCheck == nil {
		return <-exitCh
	}

	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-exitCh:
			return err

		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, m.config.HealthCheckTimeout)
			err := m.config.HealthCheck(checkCtx)
			cancel()
			if err == nil {
				continue
			}

			m.logger.Error("health check failed, terminating hung process",
				"name", m.config.Name,
				"error", err,
			)

			if cmd.Process != nil {
				syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			}

			select {
			case <-exitCh:
				return fmt.Errorf("%w: %v", ErrHealthCheck, err)
			case <-time.After(killWaitTimeout):
				return fmt.Errorf("%w: %v (process did not exit after kill)", ErrHealthCheck, err)
			}
		}
	}
}

// supervise is the control loop: wait for exit or hang, record the
// crash, back off and respawn, or give up once the budget is spent.
func (m *Manager) supervise(ctx context.Context) {
	defer close(m.done)

	for {
		m.mu.RLock()
		cmd := m.cmd
		m.mu.RUnlock()

		if cmd == nil {
			return
		}

		err := m.waitForExitOrHealthFailure(ctx, cmd)

		m.mu.Lock()
		uptime := time.Since(m.startTime)
		m.totalUptime += uptime
		stopRequested := m.stopRequested
		m.mu.Unlock()

		if stopRequested || errors.Is(err, context.Canceled) {
			m.logger.Info("process stopped as requested", "name", m.config.Name)
			m.mu.Lock()
			m.status = StatusStopped
			m.mu.Unlock()
			return
		}

		ev := m.recordCrash(cmd, err, uptime)

		m.logger.Warn("process exited unexpectedly",
			"name", m.config.Name,
			"exit_code", ev.ExitCode,
			"uptime", uptime.Round(time.Millisecond),
			"error", err,
		)

		if m.config.OnCrash != nil {
			m.config.OnCrash(ev)
		}

		m.mu.Lock()
		m.lastError = err
		m.status = StatusFailed
		if m.config.StableThreshold > 0 && uptime >= m.config.StableThreshold {
			// A long run earns a fresh backoff sequence.
			m.backoff.reset()
		}
		m.mu.Unlock()

		if !m.respawnWithBackoff(ctx, ev) {
			return
		}
	}
}

// respawnWithBackoff applies the restart policy until a spawn succeeds.
// A failed spawn is fatal to that attempt only and consumes a restart
// from the same budget. Returns false once the budget is spent, stop
// was requested, or the context is cancelled.
func (m *Manager) respawnWithBackoff(ctx context.Context, lastCrash CrashEvent) bool {
	for {
		m.mu.Lock()
		if m.restartCount >= m.config.MaxRestarts {
			m.status = StatusGivenUp
			m.lastError = fmt.Errorf("%w after %d restarts", ErrGivenUp, m.restartCount)
			crashes := len(m.crashes)
			m.mu.Unlock()

			m.logger.Error("restart budget exhausted, giving up",
				"name", m.config.Name,
				"restarts", m.config.MaxRestarts,
				"crashes", crashes,
			)
			if m.config.OnGiveUp != nil {
				m.config.OnGiveUp(lastCrash)
			}
			return false
		}
		delay := m.backoff.next()
		m.restartCount++
		attempt := m.restartCount
		m.mu.Unlock()

		m.logger.Info("restarting process",
			"name", m.config.Name,
			"attempt", attempt,
			"delay", delay,
		)

		m.mu.RLock()
		stopCh := m.stopCh
		m.mu.RUnlock()

		select {
		case <-ctx.Done():
			m.logger.Info("context cancelled, not restarting", "name", m.config.Name)
			m.mu.Lock()
			m.status = StatusStopped
			m.mu.Unlock()
			return false
		case <-stopCh:
			m.logger.Info("stop requested, not restarting", "name", m.config.Name)
			m.mu.Lock()
			m.status = StatusStopped
			m.mu.Unlock()
			return false
		case <-time.After(delay):
		}

		m.mu.RLock()
		stopRequested := m.stopRequested
		m.mu.RUnlock()
		if stopRequested {
			return false
		}

		err := m.startProcess(ctx)
		if err == nil {
			return true
		}

		m.logger.Error("failed to restart process",
			"name", m.config.Name,
			"attempt", attempt,
			"error", err,
		)
		m.mu.Lock()
		m.lastError = err
		m.status = StatusFailed
		m.mu.Unlock()
	}
}

// recordCrash appends a CrashEvent for the exit described by err.
func (m *Manager) recordCrash(cmd *exec.Cmd, err error, uptime time.Duration) CrashEvent {
	exitCode := -1
	var exitErr *exec.ExitError
	if err == nil {
		exitCode = 0
	} else if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	pid := 0
	if cmd.Process != nil {
		pid = cmd.Process.Pid
	}

	ev := CrashEvent{
		Timestamp:      time.Now().UTC(),
		ExitCode:       exitCode,
		Uptime:         uptime.Seconds(),
		RestartAttempt: 0,
		PID:            pid,
		StderrTail:     m.stderrTail.snapshot(),
	}

	m.mu.Lock()
	ev.RestartAttempt = m.restartCount
	m.crashes = append(m.crashes, ev)
	m.mu.Unlock()

	return ev
}

// Stop gracefully stops the subprocess: SIGTERM to the process group,
// wait up to the grace period, then SIGKILL. Returns once the
// supervise loop has fully wound down.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.status != StatusRunning && m.status != StatusStarting && m.status != StatusFailed {
		m.mu.Unlock()
		return nil
	}
	if !m.stopRequested {
		m.stopRequested = true
		if m.stopCh != nil {
			close(m.stopCh)
		}
	}
	cmd := m.cmd
	done := m.done
	m.mu.Unlock()

	if cmd == nil || cmd.Process == nil || done == nil {
		return nil
	}

	pid := cmd.Process.Pid
	m.logger.Info("stopping process", "name", m.config.Name, "pid", pid)

	// Negative PID signals the whole process group (created via Setpgid).
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			m.logger.Warn("failed to send SIGTERM to process group", "name", m.config.Name, "error", err)
		}
	}

	select {
	case <-done:
		m.logger.Info("process stopped gracefully", "name", m.config.Name)
		return nil
	case <-time.After(m.config.GracefulTimeout):
		m.logger.Warn("graceful shutdown timeout, sending SIGKILL",
			"name", m.config.Name,
			"timeout", m.config.GracefulTimeout,
		)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("killing process group %s: %w", m.config.Name, err)
		}
	}

	<-done
	m.logger.Info("process killed", "name", m.config.Name)

	return nil
}

// Status returns the current status of the managed process.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsRunning returns true if the process is currently running.
func (m *Manager) IsRunning() bool {
	return m.Status() == StatusRunning
}

// LastError returns the last error that caused the process to exit.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// RestartCount returns the number of times the process has been restarted.
func (m *Manager) RestartCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.restartCount
}

// CrashEvents returns a copy of every crash recorded so far, oldest first.
func (m *Manager) CrashEvents() []CrashEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CrashEvent, len(m.crashes))
	copy(out, m.crashes)
	return out
}

// Uptime returns how long the current run has been up, or 0 if the
// process is not running.
func (m *Manager) Uptime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status != StatusRunning {
		return 0
	}
	return time.Since(m.startTime)
}

// TotalUptime returns accumulated uptime across all runs.
func (m *Manager) TotalUptime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := m.totalUptime
	if m.status == StatusRunning {
		total += time.Since(m.startTime)
	}
	return total
}

// PID returns the process ID, or 0 if not running.
func (m *Manager) PID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status == StatusRunning && m.cmd != nil && m.cmd.Process != nil {
		return m.cmd.Process.Pid
	}
	return 0
}

// Stats is a point-in-time snapshot of the managed process.
type Stats struct {
	Name           string  `json:"name"`
	Status         Status  `json:"status"`
	ProcessRunning bool    `json:"process_running"`
	PID            int     `json:"pid,omitempty"`
	RestartCount   int     `json:"restart_count"`
	CrashCount     int     `json:"crash_count"`
	Uptime         float64 `json:"uptime_seconds"`
	TotalUptime    float64 `json:"total_uptime_seconds"`
	NextDelay      float64 `json:"next_restart_delay_seconds"`
	LastError      string  `json:"last_error,omitempty"`
}

// Stats returns current statistics for the process. Safe to call
// concurrently from any goroutine.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Name:           m.config.Name,
		Status:         m.status,
		ProcessRunning: m.status == StatusRunning,
		RestartCount:   m.restartCount,
		CrashCount:     len(m.crashes),
		TotalUptime:    m.totalUptime.Seconds(),
		NextDelay:      m.backoff.peek().Seconds(),
	}

	if m.status == StatusRunning {
		if m.cmd != nil && m.cmd.Process != nil {
			stats.PID = m.cmd.Process.Pid
		}
		up := time.Since(m.startTime)
		stats.Uptime = up.Seconds()
		stats.TotalUptime = (m.totalUptime + up).Seconds()
	}

	if m.lastError != nil {
		stats.LastError = m.lastError.Error()
	}

	return stats
}
