package alerting

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/hearthstead/hearth-core/internal/infrastructure/config"
	"github.com/hearthstead/hearth-core/internal/infrastructure/logging"
)

// newTestService returns a service writing log lines into buf.
func newTestService(t *testing.T, capacity int, buf *bytes.Buffer) *Service {
	t.Helper()
	if buf == nil {
		buf = &bytes.Buffer{}
	}
	log := logging.NewWithWriter(config.LoggingConfig{Level: "debug", Format: "json"}, "test", buf)
	svc, err := NewService(capacity, log)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestNewService_InvalidCapacity(t *testing.T) {
	log := logging.Default()
	if _, err := NewService(0, log); !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("NewService(0) error = %v, want ErrInvalidCapacity", err)
	}
}

func TestPublish_RoundTrip(t *testing.T) {
	svc := newTestService(t, 10, nil)

	details := map[string]any{"attempt": 2}
	published, err := svc.Publish(SeverityWarning, "device_health", "camera-front", "probe failed", details)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if published.ID == "" {
		t.Error("published message has empty ID")
	}

	got := svc.Query(Filter{
		Severity: SeverityWarning,
		Category: "device_health",
		Source:   "camera-front",
	})
	if len(got) != 1 {
		t.Fatalf("Query() returned %d messages, want 1", len(got))
	}
	if got[0].Text != "probe failed" {
		t.Errorf("Text = %q, want %q", got[0].Text, "probe failed")
	}
	if !reflect.DeepEqual(got[0].Details, details) {
		t.Errorf("Details = %v, want %v", got[0].Details, details)
	}
	if got[0].Acknowledged {
		t.Error("fresh message is acknowledged")
	}
}

func TestPublish_InvalidInput(t *testing.T) {
	svc := newTestService(t, 10, nil)

	if _, err := svc.Publish("critical", "c", "s", "text", nil); !errors.Is(err, ErrInvalidSeverity) {
		t.Errorf("bad severity error = %v, want ErrInvalidSeverity", err)
	}
	if _, err := svc.Publish(SeverityInfo, "c", "s", "", nil); !errors.Is(err, ErrEmptyText) {
		t.Errorf("empty text error = %v, want ErrEmptyText", err)
	}
}

func TestPublish_EmitsStructuredLogLine(t *testing.T) {
	var out bytes.Buffer
	svc := newTestService(t, 10, &out)

	if _, err := svc.Publish(SeverityAlarm, "supervision", "hearthwatch", "restart budget exhausted", nil); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	var record map[string]any
	if err := json.Unmarshal(out.Bytes(), &record); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	if record["msg"] != "restart budget exhausted" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record["category"] != "supervision" {
		t.Errorf("category = %v", record["category"])
	}
	labels, ok := record["labels"].(map[string]any)
	if !ok {
		t.Fatalf("labels missing from log line: %v", record)
	}
	if labels["app"] != "hearth" || labels["severity"] != "alarm" {
		t.Errorf("labels = %v", labels)
	}
}

// Publishing 1001 messages into a capacity-1000 buffer retains exactly
// 1000 and the original oldest message is gone.
func TestBuffer_FIFOEviction(t *testing.T) {
	svc := newTestService(t, 1000, nil)

	var firstID string
	for i := 0; i < 1001; i++ {
		m, err := svc.Publish(SeverityInfo, "test", "gen", fmt.Sprintf("msg %d", i), nil)
		if err != nil {
			t.Fatalf("Publish(%d) error = %v", i, err)
		}
		if i == 0 {
			firstID = m.ID
		}
	}

	all := svc.Query(Filter{})
	if len(all) != 1000 {
		t.Fatalf("Query(all) returned %d messages, want 1000", len(all))
	}
	if all[0].Text != "msg 1" {
		t.Errorf("oldest retained = %q, want %q", all[0].Text, "msg 1")
	}
	if all[len(all)-1].Text != "msg 1000" {
		t.Errorf("newest retained = %q, want %q", all[len(all)-1].Text, "msg 1000")
	}
	for i := range all {
		if all[i].ID == firstID {
			t.Error("original oldest message still present after eviction")
		}
	}

	m := svc.Metrics()
	if m.TotalEvicted != 1 {
		t.Errorf("TotalEvicted = %d, want 1", m.TotalEvicted)
	}
}

func TestBuffer_NeverExceedsCapacity(t *testing.T) {
	svc := newTestService(t, 5, nil)
	for i := 0; i < 37; i++ {
		if _, err := svc.Publish(SeverityInfo, "test", "gen", "m", nil); err != nil {
			t.Fatalf("Publish error = %v", err)
		}
		if n := len(svc.Query(Filter{})); n > 5 {
			t.Fatalf("buffer holds %d messages, capacity 5", n)
		}
	}
}

func TestAcknowledge_Idempotent(t *testing.T) {
	svc := newTestService(t, 10, nil)

	m1, _ := svc.Publish(SeverityAlarm, "test", "s", "a1", nil)
	m2, _ := svc.Publish(SeverityAlarm, "test", "s", "a2", nil)

	if changed := svc.Acknowledge(m1.ID); changed != 1 {
		t.Errorf("first Acknowledge changed %d, want 1", changed)
	}
	snapshotAfterFirst := svc.Query(Filter{})

	// Second call with the same id is a no-op.
	if changed := svc.Acknowledge(m1.ID); changed != 0 {
		t.Errorf("second Acknowledge changed %d, want 0", changed)
	}
	if !reflect.DeepEqual(svc.Query(Filter{}), snapshotAfterFirst) {
		t.Error("repeated Acknowledge altered observable state")
	}

	// Unknown ids are skipped.
	if changed := svc.Acknowledge("no-such-id", m2.ID); changed != 1 {
		t.Errorf("Acknowledge with unknown id changed %d, want 1", changed)
	}
}

// After 3 alarms with 1 acknowledged, metrics report 2 unacknowledged.
func TestMetrics_UnacknowledgedAlarms(t *testing.T) {
	svc := newTestService(t, 10, nil)

	var first Message
	for i := 0; i < 3; i++ {
		m, err := svc.Publish(SeverityAlarm, "test", "s", "alarm", nil)
		if err != nil {
			t.Fatalf("Publish error = %v", err)
		}
		if i == 0 {
			first = m
		}
	}
	svc.Acknowledge(first.ID)

	m := svc.Metrics()
	if m.UnacknowledgedAlarms != 2 {
		t.Errorf("UnacknowledgedAlarms = %d, want 2", m.UnacknowledgedAlarms)
	}
	if m.BySeverity[SeverityAlarm] != 3 {
		t.Errorf("BySeverity[alarm] = %d, want 3", m.BySeverity[SeverityAlarm])
	}
}

func TestMetrics_LastHour(t *testing.T) {
	svc := newTestService(t, 10, nil)

	now := time.Now().UTC()
	clock := now.Add(-2 * time.Hour)
	svc.clock = func() time.Time { return clock }

	svc.Publish(SeverityInfo, "test", "s", "old", nil)
	clock = now
	svc.Publish(SeverityInfo, "test", "s", "fresh", nil)

	m := svc.Metrics()
	if m.LastHour != 1 {
		t.Errorf("LastHour = %d, want 1", m.LastHour)
	}
}

func TestQuery_SinceFilter(t *testing.T) {
	svc := newTestService(t, 10, nil)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	svc.clock = func() time.Time { return clock }

	svc.Publish(SeverityInfo, "test", "s", "before", nil)
	clock = base.Add(10 * time.Minute)
	svc.Publish(SeverityInfo, "test", "s", "after", nil)

	got := svc.Query(Filter{Since: base.Add(5 * time.Minute)})
	if len(got) != 1 || got[0].Text != "after" {
		t.Errorf("Query(since) = %v, want single %q message", got, "after")
	}
}

func TestPublish_SinkDelivery(t *testing.T) {
	svc := newTestService(t, 10, nil)

	var delivered []Message
	svc.AddSink(SinkFunc(func(m Message) error {
		delivered = append(delivered, m)
		return nil
	}))
	// A failing sink must not fail the publish.
	svc.AddSink(SinkFunc(func(Message) error {
		return errors.New("broker unreachable")
	}))

	if _, err := svc.Publish(SeverityInfo, "test", "s", "hello", nil); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(delivered) != 1 || delivered[0].Text != "hello" {
		t.Errorf("sink received %v, want the published message", delivered)
	}
}

func TestService_ConcurrentPublishAndQuery(t *testing.T) {
	svc := newTestService(t, 100, nil)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				svc.Publish(SeverityInfo, "test", fmt.Sprintf("worker-%d", w), "m", nil)
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				svc.Query(Filter{})
				svc.Metrics()
			}
		}()
	}
	wg.Wait()

	m := svc.Metrics()
	if m.TotalPublished != 400 {
		t.Errorf("TotalPublished = %d, want 400", m.TotalPublished)
	}
	if m.Buffered != 100 {
		t.Errorf("Buffered = %d, want 100 (capacity)", m.Buffered)
	}
}
