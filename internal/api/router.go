package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter assembles routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	metricsPath := s.cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	r.Get(metricsPath, s.handleMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/messages", func(r chi.Router) {
			r.Get("/", s.handleListMessages)
			r.Post("/ack", s.handleAckMessages)
		})

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleCreateDevice)
			r.Get("/health", s.handleDevicesHealth)
			r.Post("/rescan", s.handleRescan)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Patch("/", s.handleUpdateDevice)
				r.Delete("/", s.handleDeleteDevice)
				r.Get("/health", s.handleDeviceHealth)
			})
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth answers the liveness probe. The supervisor polls this
// endpoint; a non-200 or a hang gets the process killed and restarted.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        s.version,
		"uptime_seconds": time.Since(s.started).Seconds(),
	})
}
