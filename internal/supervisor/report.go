package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/hearthstead/hearth-core/internal/process"
)

// reportFileMode is the permission mode for the crash report file.
const reportFileMode = 0o600

// SystemInfo describes the host the supervisor ran on.
type SystemInfo struct {
	Hostname  string `json:"hostname"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	NumCPU    int    `json:"num_cpu"`
	GoVersion string `json:"go_version"`
}

// AppInfo describes the supervised application.
type AppInfo struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Command       string   `json:"command"`
	Args          []string `json:"args,omitempty"`
	SupervisorPID int      `json:"supervisor_pid"`
}

// CrashReport is the aggregate snapshot built from every recorded
// CrashEvent plus system and app metadata. Generated on demand or at
// shutdown; write-once, never mutated after write.
type CrashReport struct {
	GeneratedAt        time.Time            `json:"generated_at"`
	TotalCrashes       int                  `json:"total_crashes"`
	TotalRestarts      int                  `json:"total_restarts"`
	TotalUptime        float64              `json:"total_uptime_seconds"`
	MaxRestartsAllowed int                  `json:"max_restarts_allowed"`
	CrashEvents        []process.CrashEvent `json:"crash_events"`
	SystemInfo         SystemInfo           `json:"system_info"`
	AppInfo            AppInfo              `json:"app_info"`
}

// collectSystemInfo gathers host metadata for the report.
func collectSystemInfo() SystemInfo {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return SystemInfo{
		Hostname:  hostname,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		NumCPU:    runtime.NumCPU(),
		GoVersion: runtime.Version(),
	}
}

// writeReportFile serialises the report to path as indented JSON.
// Callers contain the error: a disk write failure must never take the
// supervisor down.
func writeReportFile(path string, report CrashReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding crash report: %w", err)
	}
	if err := os.WriteFile(path, data, reportFileMode); err != nil {
		return fmt.Errorf("writing crash report to %s: %w", path, err)
	}
	return nil
}
