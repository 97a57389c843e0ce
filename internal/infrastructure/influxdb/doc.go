// Package influxdb exports alert events and device health gauges to an
// InfluxDB v2 instance for long-term dashboards.
//
// The export is strictly optional and best-effort: the alerting buffer
// remains the authoritative message store, writes are batched and
// non-blocking, and every write helper silently drops points once the
// client is closed. Losing InfluxDB degrades dashboards, never the
// reliability core.
package influxdb
