package device

import (
	"fmt"
	"strings"
	"time"
)

// ProbeHeartbeat is the built-in probe backed by MQTT status
// heartbeats. Any other probe value names an external adapter
// registered at startup.
const ProbeHeartbeat = "heartbeat"

// maxNameLength bounds device names.
const maxNameLength = 128

// Device is one catalogue entry the health monitor watches.
type Device struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Probe     string    `json:"probe"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the device is well-formed. Kind and probe are
// free-form identifiers; the catalogue only insists they exist.
func (d *Device) Validate() error {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidDevice)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidDevice, maxNameLength)
	}
	if strings.TrimSpace(d.Kind) == "" {
		return fmt.Errorf("%w: kind is empty", ErrInvalidDevice)
	}
	if strings.TrimSpace(d.Probe) == "" {
		return fmt.Errorf("%w: probe is empty", ErrInvalidDevice)
	}
	return nil
}
