package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hearthstead/hearth-core/internal/alerting"
	"github.com/hearthstead/hearth-core/internal/infrastructure/config"
	"github.com/hearthstead/hearth-core/internal/infrastructure/logging"
)

// statsShutdownTimeout bounds the drain of in-flight requests when the
// stats server closes.
const statsShutdownTimeout = 5 * time.Second

// StatsServer serves the supervisor's own observation surface on a
// dedicated port: process stats, the crash report, exposition metrics
// and the local alert buffer. It stays available after a give-up so an
// operator can inspect what happened.
type StatsServer struct {
	cfg    config.SupervisorConfig
	sup    *Supervisor
	alerts *alerting.Service
	logger *logging.Logger
	server *http.Server
}

// NewStatsServer creates the stats API around a supervisor and its
// alert buffer. Not started until Start() is called.
func NewStatsServer(cfg config.SupervisorConfig, sup *Supervisor, alerts *alerting.Service, logger *logging.Logger) *StatsServer {
	return &StatsServer{
		cfg:    cfg,
		sup:    sup,
		alerts: alerts,
		logger: logger,
	}
}

// Start begins listening in a background goroutine.
func (s *StatsServer) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.StatsHost, s.cfg.StatsPort),
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	s.logger.Info("stats server starting", "addr", s.server.Addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("stats server failed", "error", err)
		}
	}()

	return nil
}

// Close drains in-flight requests and stops the listener.
func (s *StatsServer) Close() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), statsShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *StatsServer) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/stats", s.handleStats)
	r.Get("/report", s.handleReport)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/messages", s.handleMessages)

	return r
}

func (s *StatsServer) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sup.Stats())
}

func (s *StatsServer) handleReport(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sup.Report())
}

func (s *StatsServer) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	stats := s.sup.Stats()

	running := 0.0
	if stats.ProcessRunning {
		running = 1.0
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, alerting.FormatMetric("hearth_supervisor_process_running", nil, running))
	fmt.Fprintln(w, alerting.FormatMetric("hearth_supervisor_restarts_total", nil, float64(stats.RestartCount)))
	fmt.Fprintln(w, alerting.FormatMetric("hearth_supervisor_crashes_total", nil, float64(stats.CrashCount)))
	fmt.Fprintln(w, alerting.FormatMetric("hearth_supervisor_uptime_seconds", nil, stats.Uptime))
	fmt.Fprintln(w, alerting.FormatMetric("hearth_supervisor_uptime_seconds_total", nil, stats.TotalUptime))
	fmt.Fprint(w, s.alerts.RenderExposition())
}

func (s *StatsServer) handleMessages(w http.ResponseWriter, r *http.Request) {
	filter := alerting.Filter{
		Category: r.URL.Query().Get("category"),
		Source:   r.URL.Query().Get("source"),
	}

	if sev := r.URL.Query().Get("severity"); sev != "" {
		parsed, err := alerting.ParseSeverity(sev)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid severity %q", sev))
			return
		}
		filter.Severity = parsed
	}

	if since := r.URL.Query().Get("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		filter.Since = ts
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"messages": s.alerts.Query(filter),
	})
}

func (s *StatsServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *StatsServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
