package alerting

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FormatMetric renders one exposition line: name{label="value"} number.
//
// Labels are emitted in sorted key order so output is deterministic and
// diff-friendly for scrapers. Integer-valued floats render without a
// fractional part.
func FormatMetric(name string, labels map[string]string, value float64) string {
	var sb strings.Builder
	sb.WriteString(name)

	if len(labels) > 0 {
		keys := make([]string, 0, len(labels))
		for k := range labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "%s=%q", k, labels[k])
		}
		sb.WriteByte('}')
	}

	sb.WriteByte(' ')
	sb.WriteString(strconv.FormatFloat(value, 'f', -1, 64))
	return sb.String()
}

// RenderExposition renders Metrics() in the pull-based text exposition
// format, one metric per line, suitable for a periodic scraper.
func (s *Service) RenderExposition() string {
	m := s.Metrics()

	var sb strings.Builder
	for _, sev := range []Severity{SeverityInfo, SeverityWarning, SeverityAlarm} {
		sb.WriteString(FormatMetric("hearth_messages_total",
			map[string]string{"severity": string(sev)}, float64(m.BySeverity[sev])))
		sb.WriteByte('\n')
	}
	sb.WriteString(FormatMetric("hearth_alarms_unacknowledged", nil, float64(m.UnacknowledgedAlarms)))
	sb.WriteByte('\n')
	sb.WriteString(FormatMetric("hearth_messages_last_hour", nil, float64(m.LastHour)))
	sb.WriteByte('\n')
	sb.WriteString(FormatMetric("hearth_messages_buffered", nil, float64(m.Buffered)))
	sb.WriteByte('\n')
	sb.WriteString(FormatMetric("hearth_messages_evicted_total", nil, float64(m.TotalEvicted)))
	sb.WriteByte('\n')
	return sb.String()
}
