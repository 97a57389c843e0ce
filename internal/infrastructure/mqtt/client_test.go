package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DeviceStatus", topics.DeviceStatus("sensor-hallway"), "hearth/devices/sensor-hallway/status"},
		{"AllDeviceStatus", topics.AllDeviceStatus(), "hearth/devices/+/status"},
		{"Alert", topics.Alert("alarm"), "hearth/alerts/alarm"},
		{"AllAlerts", topics.AllAlerts(), "hearth/alerts/+"},
		{"SystemStatus", topics.SystemStatus(), "hearth/system/status"},
		{"AllTopics", topics.AllTopics(), "hearth/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestEncodeStatus(t *testing.T) {
	payload := encodeStatus("offline", "hearth-core", "graceful_shutdown")

	var status statusPayload
	if err := json.Unmarshal(payload, &status); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if status.Status != "offline" {
		t.Errorf("Status = %q, want %q", status.Status, "offline")
	}
	if status.ClientID != "hearth-core" {
		t.Errorf("ClientID = %q, want %q", status.ClientID, "hearth-core")
	}
	if status.Reason != "graceful_shutdown" {
		t.Errorf("Reason = %q, want %q", status.Reason, "graceful_shutdown")
	}
	if _, err := time.Parse(time.RFC3339, status.Timestamp); err != nil {
		t.Errorf("Timestamp %q is not RFC3339: %v", status.Timestamp, err)
	}
}

func TestEncodeStatus_OnlineOmitsReason(t *testing.T) {
	payload := encodeStatus("online", "hearth-core", "")

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, ok := raw["reason"]; ok {
		t.Error("online payload should omit reason")
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestPublishValidation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", nil, 0, ErrInvalidTopic},
		{"invalid qos", "hearth/system/status", nil, 3, ErrInvalidQoS},
		{"oversized payload", "hearth/system/status", make([]byte, maxPayloadSize+1), 0, ErrPublishFailed},
		{"not connected", "hearth/system/status", []byte("{}"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	handler := func(_ string, _ []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe() error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Subscribe("hearth/devices/+/status", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe() error = %v, want ErrInvalidQoS", err)
	}
	if err := client.Subscribe("hearth/devices/+/status", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe() error = %v, want ErrSubscribeFailed", err)
	}
	if err := client.Subscribe("hearth/devices/+/status", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}

	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0 after failed subscribes", client.SubscriptionCount())
	}
}

func TestUnsubscribeValidation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe() error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Unsubscribe("hearth/devices/+/status"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestHasSubscription_NotSubscribed(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	if client.HasSubscription("hearth/devices/nonexistent/status") {
		t.Error("HasSubscription() should be false for unsubscribed topic")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}
