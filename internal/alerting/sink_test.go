package alerting

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type fakePublisher struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
	err      error
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.topic = topic
	f.payload = payload
	f.qos = qos
	f.retained = retained
	return f.err
}

func TestMQTTSink_PublishesBySeverity(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub, 1)

	msg := Message{
		ID:        "msg-1",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Severity:  SeverityAlarm,
		Category:  "device_health",
		Source:    "sensor-hallway",
		Text:      "device offline",
	}

	if err := sink.Deliver(msg); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	if pub.topic != "hearth/alerts/alarm" {
		t.Errorf("topic = %q, want %q", pub.topic, "hearth/alerts/alarm")
	}
	if pub.qos != 1 {
		t.Errorf("qos = %d, want 1", pub.qos)
	}
	if pub.retained {
		t.Error("alert messages should not be retained")
	}

	var decoded Message
	if err := json.Unmarshal(pub.payload, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.ID != msg.ID || decoded.Text != msg.Text || decoded.Severity != msg.Severity {
		t.Errorf("decoded = %+v, want %+v", decoded, msg)
	}
}

func TestMQTTSink_PropagatesPublishError(t *testing.T) {
	wantErr := errors.New("broker down")
	sink := NewMQTTSink(&fakePublisher{err: wantErr}, 0)

	err := sink.Deliver(Message{ID: "msg-2", Severity: SeverityInfo, Text: "hello"})
	if !errors.Is(err, wantErr) {
		t.Errorf("Deliver() error = %v, want %v", err, wantErr)
	}
}

type fakeRecorder struct {
	severity, category, source string
	timestamp                  time.Time
	calls                      int
}

func (f *fakeRecorder) WriteAlertEvent(severity, category, source string, timestamp time.Time) {
	f.severity, f.category, f.source, f.timestamp = severity, category, source, timestamp
	f.calls++
}

func TestInfluxSink_RecordsEvent(t *testing.T) {
	rec := &fakeRecorder{}
	sink := NewInfluxSink(rec)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := Message{
		ID:        "msg-3",
		Timestamp: ts,
		Severity:  SeverityWarning,
		Category:  "supervisor",
		Source:    "hearthwatch",
		Text:      "server process crashed",
	}

	if err := sink.Deliver(msg); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if rec.calls != 1 {
		t.Fatalf("calls = %d, want 1", rec.calls)
	}
	if rec.severity != "warning" || rec.category != "supervisor" || rec.source != "hearthwatch" {
		t.Errorf("recorded %s/%s/%s", rec.severity, rec.category, rec.source)
	}
	if !rec.timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", rec.timestamp, ts)
	}
}

func TestService_SinkFailureDoesNotFailPublish(t *testing.T) {
	svc := newTestService(t, 8, nil)
	svc.AddSink(SinkFunc(func(Message) error { return errors.New("sink broken") }))

	if _, err := svc.Publish(SeverityWarning, "device_health", "sensor-1", "degraded", nil); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msgs := svc.Query(Filter{})
	if len(msgs) != 1 {
		t.Fatalf("Query() returned %d messages, want 1", len(msgs))
	}
}
