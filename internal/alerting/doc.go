// Package alerting provides the tiered alerting/messaging service for
// Hearth Core.
//
// The service ingests severity-tagged events from any producer (the
// device health monitor, the process supervisor, future callers),
// retains a bounded recent window, and exposes filtered queries,
// acknowledgement, and two export formats: a pull-based text metrics
// exposition and one structured log line per publish.
//
// # Separation of concerns
//
// The service never decides whether something is alarm-worthy; that
// judgment belongs entirely to producers. It is a dumb, reliable sink
// with retention and query capability.
//
// # Key Types
//
//   - Message: one severity-tagged event (immutable except the
//     acknowledged flag)
//   - Severity: info | warning | alarm
//   - Service: publish / query / acknowledge / metrics / exposition
//   - Sink: optional export path (MQTT, InfluxDB, WebSocket broadcast)
//
// # Usage
//
//	svc, err := alerting.NewService(cfg.Alerting.BufferCapacity, log)
//	if err != nil {
//	    return err
//	}
//	svc.AddSink(mqttSink)
//
//	svc.Publish(alerting.SeverityWarning, "device_health", "camera-front",
//	    "probe failed", map[string]any{"error": "timeout"})
//
//	alarms := svc.Query(alerting.Filter{Severity: alerting.SeverityAlarm})
//
// # Thread Safety
//
// All Service methods are safe for concurrent use. Buffer mutation is
// guarded by a single writer lock; queries and metrics operate on
// snapshots so readers never observe a partially-mutated buffer.
package alerting
