package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// heartbeatTopicFilter matches every device status topic. Devices (or
// their protocol adapters) publish retained status messages here, with
// an MQTT Last Will flipping the status to offline on ungraceful
// disconnect.
const heartbeatTopicFilter = "hearth/devices/+/status"

// Subscriber is the slice of the MQTT client the tracker needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
}

// heartbeatStatus is the wire payload on a device status topic.
type heartbeatStatus struct {
	DeviceID  string `json:"device_id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// HeartbeatTracker records the last time each device reported itself
// online over MQTT and answers probes from that record.
//
// It is the built-in availability prober for devices whose platform
// integration heartbeats over the broker; protocol-specific adapters
// remain external and implement Prober directly.
//
// Thread Safety: all methods are safe for concurrent use.
type HeartbeatTracker struct {
	maxAge time.Duration
	clock  func() time.Time

	mu       sync.RWMutex
	lastSeen map[string]time.Time
}

// NewHeartbeatTracker creates a tracker that treats heartbeats older
// than maxAge as failures.
func NewHeartbeatTracker(maxAge time.Duration) *HeartbeatTracker {
	return &HeartbeatTracker{
		maxAge:   maxAge,
		clock:    time.Now,
		lastSeen: make(map[string]time.Time),
	}
}

// Subscribe attaches the tracker to the broker's device status topics.
// Retained messages replay immediately, so devices already online are
// known before the first poll cycle.
func (h *HeartbeatTracker) Subscribe(sub Subscriber, qos byte) error {
	return sub.Subscribe(heartbeatTopicFilter, qos, h.handleStatus)
}

// handleStatus ingests one status message.
func (h *HeartbeatTracker) handleStatus(topic string, payload []byte) error {
	var status heartbeatStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return fmt.Errorf("parsing device status on %s: %w", topic, err)
	}

	deviceID := status.DeviceID
	if deviceID == "" {
		deviceID = deviceIDFromTopic(topic)
	}
	if deviceID == "" {
		return fmt.Errorf("device status on %s carries no device id", topic)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if strings.EqualFold(status.Status, "online") {
		h.lastSeen[deviceID] = h.clock()
	} else {
		// Explicit offline (graceful shutdown or LWT) forgets the device
		// so the next probe fails immediately.
		delete(h.lastSeen, deviceID)
	}
	return nil
}

// MarkSeen records a heartbeat directly, bypassing MQTT. Used by
// adapters that observe device traffic out of band.
func (h *HeartbeatTracker) MarkSeen(deviceID string) {
	h.mu.Lock()
	h.lastSeen[deviceID] = h.clock()
	h.mu.Unlock()
}

// LastSeen returns when the device last reported online.
func (h *HeartbeatTracker) LastSeen(deviceID string) (time.Time, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.lastSeen[deviceID]
	return t, ok
}

// ProberFor returns a Prober backed by this tracker for one device.
func (h *HeartbeatTracker) ProberFor(deviceID string) Prober {
	return ProberFunc(func(_ context.Context) error {
		h.mu.RLock()
		seen, ok := h.lastSeen[deviceID]
		h.mu.RUnlock()

		if !ok {
			return fmt.Errorf("%w: device %s has never reported", ErrNoHeartbeat, deviceID)
		}
		age := h.clock().Sub(seen)
		if age > h.maxAge {
			return fmt.Errorf("%w: last heartbeat %s ago", ErrNoHeartbeat, age.Round(time.Second))
		}
		return nil
	})
}

// deviceIDFromTopic extracts the device segment of a status topic.
// Topic shape: hearth/devices/<id>/status.
func deviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "hearth" || parts[1] != "devices" || parts[3] != "status" {
		return ""
	}
	return parts[2]
}
