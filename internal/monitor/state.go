package monitor

import "time"

// HealthState is the connectivity state of one monitored device.
//
// Transitions follow fixed edges:
//
//	any state  -> online   on a successful probe
//	online     -> degraded on the 1st consecutive failure
//	unknown    -> degraded on the 1st consecutive failure
//	degraded   -> offline  once consecutive failures reach the alarm threshold
//
// There is no direct online -> offline edge; a device always passes
// through degraded first.
type HealthState string

const (
	StateUnknown  HealthState = "unknown"
	StateOnline   HealthState = "online"
	StateDegraded HealthState = "degraded"
	StateOffline  HealthState = "offline"
)

// record is the monitor's mutable per-device entry. It lives for the
// monitor's lifetime and is re-initialised only on a full restart.
// Guarded by Monitor.mu.
type record struct {
	deviceID            string
	kind                string
	name                string
	state               HealthState
	consecutiveFailures int
	lastSuccess         time.Time
	lastChecked         time.Time
	lastError           string
}

// Record is an immutable snapshot of one device's health, as returned
// by GetHealthReport.
type Record struct {
	DeviceID            string      `json:"device_id"`
	Kind                string      `json:"kind"`
	Name                string      `json:"name"`
	State               HealthState `json:"state"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
	LastSuccess         *time.Time  `json:"last_success,omitempty"`
	LastChecked         *time.Time  `json:"last_checked,omitempty"`
	LastError           string      `json:"last_error,omitempty"`
}

// snapshot converts the internal record to its exported form.
func (r *record) snapshot() Record {
	out := Record{
		DeviceID:            r.deviceID,
		Kind:                r.kind,
		Name:                r.name,
		State:               r.state,
		ConsecutiveFailures: r.consecutiveFailures,
		LastError:           r.lastError,
	}
	if !r.lastSuccess.IsZero() {
		t := r.lastSuccess
		out.LastSuccess = &t
	}
	if !r.lastChecked.IsZero() {
		t := r.lastChecked
		out.LastChecked = &t
	}
	return out
}

// Report is the full health view returned by GetHealthReport.
type Report struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Devices     []Record            `json:"devices"`
	ByState     map[HealthState]int `json:"by_state"`
}

// CycleStats describes one completed polling cycle.
type CycleStats struct {
	Started  time.Time
	Duration time.Duration
	Probed   int
	Failed   int
	ByState  map[HealthState]int
}

// Stats carries cumulative monitor counters for the metrics exposition.
type Stats struct {
	CyclesRun         uint64
	CyclesSkipped     uint64
	ProbesTotal       uint64
	ProbeFailures     uint64
	LastCycleDuration time.Duration
	ByState           map[HealthState]int
}
