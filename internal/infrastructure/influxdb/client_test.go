package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hearthstead/hearth-core/internal/infrastructure/config"
	"github.com/hearthstead/hearth-core/internal/infrastructure/influxdb"
)

// fakeInflux stands in for an InfluxDB v2 server: it answers the ping
// and captures line-protocol write bodies.
type fakeInflux struct {
	mu     sync.Mutex
	writes []string
	server *httptest.Server
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/ping"):
			w.WriteHeader(http.StatusNoContent)
		case strings.HasSuffix(r.URL.Path, "/api/v2/write"):
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.writes = append(f.writes, string(body))
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeInflux) config() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           f.server.URL,
		Token:         "hearth-test-token",
		Org:           "hearthstead",
		Bucket:        "metrics",
		BatchSize:     1, // flush every point for deterministic tests
		FlushInterval: 1,
	}
}

func (f *fakeInflux) body(t *testing.T) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		joined := strings.Join(f.writes, "\n")
		f.mu.Unlock()
		if joined != "" {
			return joined
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for a write")
	return ""
}

func TestConnect(t *testing.T) {
	fake := newFakeInflux(t)

	client, err := influxdb.Connect(fake.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := config.InfluxDBConfig{Enabled: false}

	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:1", // nothing listens here
		Token:   "x",
	}

	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheck(t *testing.T) {
	fake := newFakeInflux(t)

	client, err := influxdb.Connect(fake.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheck_AfterClose(t *testing.T) {
	fake := newFakeInflux(t)

	client, err := influxdb.Connect(fake.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Close()

	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestWriteAlertEvent(t *testing.T) {
	fake := newFakeInflux(t)

	client, err := influxdb.Connect(fake.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	client.WriteAlertEvent("alarm", "device_health", "sensor-hallway", time.Now())
	client.Flush()

	body := fake.body(t)
	if !strings.Contains(body, "alerts,") {
		t.Errorf("write body %q missing alerts measurement", body)
	}
	for _, tag := range []string{"severity=alarm", "category=device_health", "source=sensor-hallway"} {
		if !strings.Contains(body, tag) {
			t.Errorf("write body %q missing tag %s", body, tag)
		}
	}
}

func TestWriteDeviceState(t *testing.T) {
	fake := newFakeInflux(t)

	client, err := influxdb.Connect(fake.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	client.WriteDeviceState("sensor-hallway", "degraded", 2)
	client.Flush()

	body := fake.body(t)
	if !strings.Contains(body, "device_health,") {
		t.Errorf("write body %q missing device_health measurement", body)
	}
	if !strings.Contains(body, "state=degraded") {
		t.Errorf("write body %q missing state tag", body)
	}
	if !strings.Contains(body, "state_code=1i") {
		t.Errorf("write body %q missing state_code gauge", body)
	}
	if !strings.Contains(body, "consecutive_failures=2i") {
		t.Errorf("write body %q missing failure count", body)
	}
}

func TestWriteCycleSummary(t *testing.T) {
	fake := newFakeInflux(t)

	client, err := influxdb.Connect(fake.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	client.WriteCycleSummary(5, 1, map[string]int{"online": 4, "degraded": 1})
	client.Flush()

	body := fake.body(t)
	for _, field := range []string{"probed=5i", "failed=1i", "devices_online=4i", "devices_degraded=1i"} {
		if !strings.Contains(body, field) {
			t.Errorf("write body %q missing field %s", body, field)
		}
	}
}

func TestWriteAfterClose_Dropped(t *testing.T) {
	fake := newFakeInflux(t)

	client, err := influxdb.Connect(fake.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Close()

	// Must not panic or block.
	client.WriteAlertEvent("info", "test", "test", time.Now())
	client.WriteDeviceState("sensor-1", "online", 0)
	client.Flush()
}

func TestClose_Nil(t *testing.T) {
	var client influxdb.Client

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}
