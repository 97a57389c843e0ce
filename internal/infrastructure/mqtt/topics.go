package mqtt

import "fmt"

// Topic prefixes for the Hearth MQTT namespace.
//
// Device agents publish heartbeats to hearth/devices/{id}/status and the
// server republishes alert messages under hearth/alerts/{severity}.
const (
	// TopicPrefix is the root of all Hearth topics.
	TopicPrefix = "hearth"

	// TopicPrefixDevices is the base for device heartbeat topics.
	TopicPrefixDevices = "hearth/devices"

	// TopicPrefixAlerts is the base for alert export topics.
	TopicPrefixAlerts = "hearth/alerts"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "hearth/system"
)

// Topics provides builders for Hearth MQTT topics. Using these helpers
// keeps topic naming consistent across publishers and subscribers.
type Topics struct{}

// DeviceStatus returns the heartbeat topic for a single device.
//
// Example: hearth/devices/sensor-hallway/status
func (Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixDevices, deviceID)
}

// AllDeviceStatus returns a pattern matching every device heartbeat.
//
// Pattern: hearth/devices/+/status
func (Topics) AllDeviceStatus() string {
	return TopicPrefixDevices + "/+/status"
}

// Alert returns the export topic for alerts of a given severity.
//
// Example: hearth/alerts/alarm
func (Topics) Alert(severity string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixAlerts, severity)
}

// AllAlerts returns a pattern matching alerts of every severity.
//
// Pattern: hearth/alerts/+
func (Topics) AllAlerts() string {
	return TopicPrefixAlerts + "/+"
}

// SystemStatus returns the server online/offline status topic.
// The broker retains the last message so new subscribers see current state.
//
// Example: hearth/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllTopics returns a pattern matching every Hearth topic.
// Use with caution, this receives all traffic.
//
// Pattern: hearth/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
