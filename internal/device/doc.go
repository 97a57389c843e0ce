// Package device holds the catalogue of monitored devices.
//
// A Device names what the health monitor watches: its kind, its
// display name, and which probe checks it. Persistence is SQLite via
// Repository; Registry is the in-memory cache the monitor and API
// read from. The catalogue knows nothing about device protocols; that
// is the adapters' job.
package device
