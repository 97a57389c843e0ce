// Package logging provides structured logging for Hearth Core.
//
// It wraps log/slog with service defaults so every record carries the
// service name and version, making the output directly ingestible by a
// log-shipping agent. The alerting service additionally emits one
// structured line per published message through this package.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("monitor started", "devices", n)
//
//	apiLog := log.With("component", "api")
package logging
