package monitor

import "errors"

// Domain errors for the monitor package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, monitor.ErrProbeTimeout) {
//	    // handle hung adapter
//	}
var (
	// ErrProbeTimeout is returned when a device probe exceeds its per-device timeout.
	ErrProbeTimeout = errors.New("monitor: probe timeout")

	// ErrNoHeartbeat is returned by the heartbeat prober when a device has not
	// reported within the configured maximum age.
	ErrNoHeartbeat = errors.New("monitor: no recent heartbeat")

	// ErrDeviceNotFound is returned when a device id is not monitored.
	ErrDeviceNotFound = errors.New("monitor: device not found")

	// ErrAlreadyRunning is returned when Start is called on a running monitor.
	ErrAlreadyRunning = errors.New("monitor: already running")
)
