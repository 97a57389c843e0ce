package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteAlertEvent records one published alert message as a point in the
// alerts measurement. Severity, category, and source become tags so
// dashboards can group by them.
func (c *Client) WriteAlertEvent(severity, category, source string, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"alerts",
		map[string]string{
			"severity": severity,
			"category": category,
			"source":   source,
		},
		map[string]interface{}{
			"count": 1,
		},
		timestamp,
	)
	c.writeAPI.WritePoint(point)
}

// WriteDeviceState records a device's health state after a poll cycle.
// State is recorded both as a tag and as a numeric gauge (0 online,
// 1 degraded, 2 offline) for threshold queries.
func (c *Client) WriteDeviceState(deviceID, state string, consecutiveFailures int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_health",
		map[string]string{
			"device_id": deviceID,
			"state":     state,
		},
		map[string]interface{}{
			"state_code":           stateCode(state),
			"consecutive_failures": consecutiveFailures,
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// WriteCycleSummary records aggregate gauges for one completed poll cycle.
func (c *Client) WriteCycleSummary(probed, failed int, byState map[string]int) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"probed": probed,
		"failed": failed,
	}
	for state, n := range byState {
		fields["devices_"+state] = n
	}

	point := write.NewPoint("poll_cycles", nil, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom measurement for anything the helpers do not
// cover. Tags should stay low-cardinality.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func stateCode(state string) int {
	switch state {
	case "online":
		return 0
	case "degraded":
		return 1
	case "offline":
		return 2
	}
	return -1
}
