package supervisor

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestStatsServer(t *testing.T) (*StatsServer, *httptest.Server) {
	t.Helper()
	alerts := testAlerts(t)
	cfg := crashLoopConfig(t, 3)
	cfg.HealthCheckURL = "http://127.0.0.1:8095/api/v1/health"
	sup := New(cfg, "test", alerts, testLogger())

	stats := NewStatsServer(cfg, sup, alerts, testLogger())
	srv := httptest.NewServer(stats.buildRouter())
	t.Cleanup(srv.Close)
	return stats, srv
}

func TestStatsServer_Stats(t *testing.T) {
	_, srv := newTestStatsServer(t)

	resp, err := http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got Stats
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if got.ProcessRunning {
		t.Error("ProcessRunning = true for a never-started supervisor")
	}
	if got.HealthCheckURL != "http://127.0.0.1:8095/api/v1/health" {
		t.Errorf("HealthCheckURL = %q", got.HealthCheckURL)
	}
}

func TestStatsServer_Report(t *testing.T) {
	_, srv := newTestStatsServer(t)

	resp, err := http.Get(srv.URL + "/report")
	if err != nil {
		t.Fatalf("GET /report: %v", err)
	}
	defer resp.Body.Close()

	var report CrashReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if report.GeneratedAt.IsZero() {
		t.Error("GeneratedAt is zero")
	}
	if report.MaxRestartsAllowed != 3 {
		t.Errorf("MaxRestartsAllowed = %d, want 3", report.MaxRestartsAllowed)
	}
	if report.AppInfo.Command != "/bin/sh" {
		t.Errorf("AppInfo.Command = %q", report.AppInfo.Command)
	}
}

func TestStatsServer_Metrics(t *testing.T) {
	stats, srv := newTestStatsServer(t)
	stats.alerts.Publish("warning", "supervisor", "hearthwatch", "server process crashed", nil)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading metrics body: %v", err)
	}
	body := string(raw)

	for _, want := range []string{
		"hearth_supervisor_process_running 0",
		"hearth_supervisor_restarts_total 0",
		"hearth_supervisor_crashes_total 0",
		`hearth_messages_total{severity="warning"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestStatsServer_Messages(t *testing.T) {
	stats, srv := newTestStatsServer(t)
	stats.alerts.Publish("info", "supervisor", "hearthwatch", "server process started", nil)
	stats.alerts.Publish("alarm", "supervisor", "hearthwatch", "restart budget exhausted", nil)

	resp, err := http.Get(srv.URL + "/messages?severity=alarm")
	if err != nil {
		t.Fatalf("GET /messages: %v", err)
	}
	defer resp.Body.Close()

	var got struct {
		Messages []struct {
			Severity string `json:"severity"`
			Text     string `json:"text"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decoding messages: %v", err)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(got.Messages))
	}
	if got.Messages[0].Text != "restart budget exhausted" {
		t.Errorf("message text = %q", got.Messages[0].Text)
	}
}

func TestStatsServer_MessagesBadFilters(t *testing.T) {
	_, srv := newTestStatsServer(t)

	tests := []struct {
		name string
		url  string
	}{
		{"bad severity", "/messages?severity=critical"},
		{"bad since", "/messages?since=yesterday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.url)
			if err != nil {
				t.Fatalf("GET %s: %v", tt.url, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}
