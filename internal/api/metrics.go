package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/hearthstead/hearth-core/internal/alerting"
	"github.com/hearthstead/hearth-core/internal/monitor"
)

// handleMetrics renders the plain-text metrics exposition: monitor
// gauges and counters followed by the alerting service's own lines.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	stats := s.monitor.GetStats()

	var sb strings.Builder
	for _, state := range []monitor.HealthState{monitor.StateOnline, monitor.StateDegraded, monitor.StateOffline, monitor.StateUnknown} {
		sb.WriteString(alerting.FormatMetric("hearth_devices",
			map[string]string{"state": string(state)}, float64(stats.ByState[state])))
		sb.WriteByte('\n')
	}
	sb.WriteString(alerting.FormatMetric("hearth_poll_cycles_total", nil, float64(stats.CyclesRun)))
	sb.WriteByte('\n')
	sb.WriteString(alerting.FormatMetric("hearth_poll_cycles_skipped_total", nil, float64(stats.CyclesSkipped)))
	sb.WriteByte('\n')
	sb.WriteString(alerting.FormatMetric("hearth_probes_total", nil, float64(stats.ProbesTotal)))
	sb.WriteByte('\n')
	sb.WriteString(alerting.FormatMetric("hearth_probe_failures_total", nil, float64(stats.ProbeFailures)))
	sb.WriteByte('\n')
	sb.WriteString(alerting.FormatMetric("hearth_last_cycle_duration_seconds", nil, stats.LastCycleDuration.Seconds()))
	sb.WriteByte('\n')

	if s.hub != nil {
		sb.WriteString(alerting.FormatMetric("hearth_websocket_clients", nil, float64(s.hub.ClientCount())))
		sb.WriteByte('\n')
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, sb.String())
	fmt.Fprint(w, s.alerts.RenderExposition())
}
