package monitor

import "context"

// Prober is the uniform probe contract every monitored device fulfils.
//
// The monitor never speaks a device's native protocol; adapters
// (camera, smart-plug, lighting-bridge, doorbell, weather-station)
// implement Prober externally and are handed to the monitor as part of
// a Target. A nil return means the device answered; an error carries
// the failure detail recorded against the device.
//
// Probe must respect ctx cancellation. Adapters that ignore the
// context are still isolated by the monitor's per-device timeout, but
// their goroutine lingers until they return.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) error

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// Target binds a catalogue device to its probe adapter.
type Target struct {
	DeviceID string
	Kind     string
	Name     string
	Prober   Prober
}
