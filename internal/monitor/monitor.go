package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hearthstead/hearth-core/internal/alerting"
	"github.com/hearthstead/hearth-core/internal/infrastructure/logging"
)

// alertCategory tags every message the monitor publishes.
const alertCategory = "device_health"

// Config holds monitor tuning. All values must be positive; the
// configuration layer validates ranges before the monitor is built.
type Config struct {
	// PollInterval is the gap between scheduled polling cycles.
	PollInterval time.Duration

	// ProbeTimeout bounds each individual device probe.
	ProbeTimeout time.Duration

	// MaxParallel caps concurrent probes within one cycle.
	MaxParallel int

	// AlarmFailureThreshold is the consecutive-failure count at which a
	// degraded device is declared offline.
	AlarmFailureThreshold int
}

// Monitor owns the per-device health state machines and the periodic
// concurrent poll cycle. State transitions publish into the alerting
// service; the monitor itself never exposes a user interface.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Monitor struct {
	cfg    Config
	alerts *alerting.Service
	logger *logging.Logger

	mu      sync.RWMutex
	records map[string]*record
	targets map[string]Target

	// pollMu serialises cycles: a tick arriving while a cycle is still
	// running is skipped rather than overlapped.
	pollMu sync.Mutex
	sem    *semaphore.Weighted

	statsMu sync.Mutex
	stats   Stats

	// onCycleEnd, if set, receives stats after every completed cycle
	// (used to export per-cycle gauges to InfluxDB).
	onCycleEnd func(CycleStats)

	// Loop lifecycle. The run loop is a supervised task: Stop cancels
	// it and joins before returning.
	manual   chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	running  bool
	clock    func() time.Time
	lifecyMu sync.Mutex
}

// New creates a monitor over the given targets.
//
// Every target becomes a DeviceRecord starting in the unknown state.
// Records persist for the monitor's lifetime.
func New(cfg Config, targets []Target, alerts *alerting.Service, logger *logging.Logger) *Monitor {
	m := &Monitor{
		cfg:     cfg,
		alerts:  alerts,
		logger:  logger.With("component", "monitor"),
		records: make(map[string]*record, len(targets)),
		targets: make(map[string]Target, len(targets)),
		sem:     semaphore.NewWeighted(int64(cfg.MaxParallel)),
		manual:  make(chan struct{}, 1),
		clock:   time.Now,
	}
	m.stats.ByState = make(map[HealthState]int)
	for _, t := range targets {
		m.records[t.DeviceID] = &record{
			deviceID: t.DeviceID,
			kind:     t.Kind,
			name:     t.Name,
			state:    StateUnknown,
		}
		m.targets[t.DeviceID] = t
	}
	return m
}

// AddTarget registers a device for polling. Replacing an existing
// target resets its record to the unknown state; the next cycle
// establishes a fresh baseline.
func (m *Monitor) AddTarget(t Target) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[t.DeviceID] = t
	m.records[t.DeviceID] = &record{
		deviceID: t.DeviceID,
		kind:     t.Kind,
		name:     t.Name,
		state:    StateUnknown,
	}
}

// RemoveTarget stops polling a device and drops its health record.
// Removing an unknown device is a no-op.
func (m *Monitor) RemoveTarget(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.targets, deviceID)
	delete(m.records, deviceID)
}

// SetCycleObserver registers a callback invoked after every completed
// cycle. Wire during startup; not safe to call while running.
func (m *Monitor) SetCycleObserver(fn func(CycleStats)) {
	m.onCycleEnd = fn
}

// Start launches the periodic polling loop. Returns ErrAlreadyRunning
// if the loop is active. Stop (or ctx cancellation) halts it; Stop
// joins the loop goroutine before returning.
func (m *Monitor) Start(ctx context.Context) error {
	m.lifecyMu.Lock()
	defer m.lifecyMu.Unlock()
	if m.running {
		return ErrAlreadyRunning
	}
	m.running = true
	m.done = make(chan struct{})
	m.wg.Add(1)
	go m.run(ctx)

	m.logger.Info("monitor started",
		"devices", len(m.records),
		"poll_interval", m.cfg.PollInterval,
		"alarm_threshold", m.cfg.AlarmFailureThreshold,
	)
	return nil
}

// Stop halts the polling loop and waits for it to exit. In-flight
// probes finish within their existing timeout. Safe to call once.
func (m *Monitor) Stop() {
	m.lifecyMu.Lock()
	defer m.lifecyMu.Unlock()
	if !m.running {
		return
	}
	close(m.done)
	m.wg.Wait()
	m.running = false
	m.logger.Info("monitor stopped")
}

// run is the polling loop: scheduled ticks plus out-of-band manual
// triggers, strictly serialised through PollAll.
func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	// Establish baseline states immediately rather than waiting a full
	// interval for the first cycle.
	m.PollAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			m.PollAll(ctx)
		case <-m.manual:
			m.PollAll(ctx)
		}
	}
}

// TriggerManualCheck forces an immediate out-of-band polling cycle.
// If a cycle is already queued or running, the request coalesces.
func (m *Monitor) TriggerManualCheck() {
	select {
	case m.manual <- struct{}{}:
		m.logger.Debug("manual check requested")
	default:
		// A manual cycle is already pending.
	}
}

// PollAll runs one polling cycle: every device is probed concurrently
// with a per-device timeout, bounded by the max-parallelism limit. One
// device's failure or hang never blocks the others.
//
// Cycles are strictly serialised; a call arriving while a cycle is
// running is counted as skipped and returns immediately.
func (m *Monitor) PollAll(ctx context.Context) {
	if !m.pollMu.TryLock() {
		m.statsMu.Lock()
		m.stats.CyclesSkipped++
		m.statsMu.Unlock()
		m.logger.Warn("poll cycle still running, skipping tick")
		return
	}
	defer m.pollMu.Unlock()

	start := m.clock()

	m.mu.RLock()
	targets := make([]Target, 0, len(m.targets))
	for _, t := range m.targets {
		targets = append(targets, t)
	}
	m.mu.RUnlock()

	var (
		wg     sync.WaitGroup
		failMu sync.Mutex
		failed int
	)
	for _, t := range targets {
		if err := m.sem.Acquire(ctx, 1); err != nil {
			// Shutdown during fan-out; remaining devices keep their state.
			break
		}
		wg.Add(1)
		go func(t Target) {
			defer wg.Done()
			defer m.sem.Release(1)

			err := m.probeOne(ctx, t)
			if err != nil {
				failMu.Lock()
				failed++
				failMu.Unlock()
			}
			m.applyResult(t.DeviceID, err)
		}(t)
	}
	wg.Wait()

	duration := m.clock().Sub(start)
	byState := m.countByState()

	m.statsMu.Lock()
	m.stats.CyclesRun++
	m.stats.ProbesTotal += uint64(len(targets))
	m.stats.ProbeFailures += uint64(failed)
	m.stats.LastCycleDuration = duration
	m.stats.ByState = byState
	m.statsMu.Unlock()

	m.logger.Debug("poll cycle complete",
		"probed", len(targets),
		"failed", failed,
		"duration", duration,
	)

	if m.onCycleEnd != nil {
		m.onCycleEnd(CycleStats{
			Started:  start,
			Duration: duration,
			Probed:   len(targets),
			Failed:   failed,
			ByState:  byState,
		})
	}
}

// probeOne runs a single probe bounded by the per-device timeout.
//
// The probe runs in its own goroutine so an adapter that ignores
// context cancellation still cannot stall the cycle: the result
// channel is abandoned at timeout and the adapter finishes (or leaks)
// on its own.
func (m *Monitor) probeOne(ctx context.Context, t Target) error {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- t.Prober.Probe(probeCtx)
	}()

	select {
	case err := <-result:
		return err
	case <-probeCtx.Done():
		return ErrProbeTimeout
	}
}

// applyResult advances one device's state machine and publishes the
// corresponding alert on every transition.
func (m *Monitor) applyResult(deviceID string, probeErr error) {
	m.mu.Lock()
	rec, ok := m.records[deviceID]
	if !ok {
		m.mu.Unlock()
		return
	}

	now := m.clock().UTC()
	rec.lastChecked = now

	var publish func()

	if probeErr == nil {
		prev := rec.state
		rec.state = StateOnline
		rec.consecutiveFailures = 0
		rec.lastSuccess = now
		rec.lastError = ""
		if prev != StateOnline {
			name := rec.name
			publish = func() {
				m.alerts.Publish(alerting.SeverityInfo, alertCategory, deviceID,
					name+" reconnected", map[string]any{
						"previous_state": string(prev),
					})
			}
		}
	} else {
		rec.consecutiveFailures++
		rec.lastError = probeErr.Error()
		failures := rec.consecutiveFailures
		name := rec.name

		switch rec.state {
		case StateOnline, StateUnknown:
			// First consecutive failure always degrades; a device never
			// jumps straight to offline.
			rec.state = StateDegraded
			publish = func() {
				m.alerts.Publish(alerting.SeverityWarning, alertCategory, deviceID,
					name+" degraded", map[string]any{
						"error":                probeErr.Error(),
						"consecutive_failures": failures,
					})
			}
		case StateDegraded:
			if failures >= m.cfg.AlarmFailureThreshold {
				rec.state = StateOffline
				publish = func() {
					m.alerts.Publish(alerting.SeverityAlarm, alertCategory, deviceID,
						name+" offline", map[string]any{
							"error":                probeErr.Error(),
							"consecutive_failures": failures,
						})
				}
			}
		case StateOffline:
			// Already offline; recovery is detected opportunistically on a
			// later cycle.
		}
	}
	state := rec.state
	m.mu.Unlock()

	// Publish outside the record lock: the alerting service has its own
	// locking and sinks may be slow.
	if publish != nil {
		publish()
		m.logger.Info("device state changed", "device", deviceID, "state", state)
	}
}

// countByState tallies current device states.
func (m *Monitor) countByState() map[HealthState]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[HealthState]int, 4)
	for _, rec := range m.records {
		out[rec.state]++
	}
	return out
}

// GetHealthReport returns the current state, counters, and error detail
// for every device. Safe for concurrent read.
func (m *Monitor) GetHealthReport() Report {
	m.mu.RLock()
	devices := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		devices = append(devices, rec.snapshot())
	}
	m.mu.RUnlock()

	sortRecords(devices)

	byState := make(map[HealthState]int, 4)
	for i := range devices {
		byState[devices[i].State]++
	}
	return Report{
		GeneratedAt: m.clock().UTC(),
		Devices:     devices,
		ByState:     byState,
	}
}

// GetRecord returns the snapshot for one device.
func (m *Monitor) GetRecord(deviceID string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[deviceID]
	if !ok {
		return Record{}, ErrDeviceNotFound
	}
	return rec.snapshot(), nil
}

// GetStats returns cumulative cycle counters for the metrics exposition.
func (m *Monitor) GetStats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	out := m.stats
	out.ByState = make(map[HealthState]int, len(m.stats.ByState))
	for k, v := range m.stats.ByState {
		out.ByState[k] = v
	}
	return out
}

// sortRecords orders a report by device id for stable output.
func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].DeviceID < records[j].DeviceID
	})
}
