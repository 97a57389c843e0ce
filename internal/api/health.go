package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearthstead/hearth-core/internal/monitor"
)

// handleDevicesHealth returns the aggregate health report: one record
// per monitored device plus state totals.
func (s *Server) handleDevicesHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.GetHealthReport())
}

// handleDeviceHealth returns the health record for one device.
func (s *Server) handleDeviceHealth(w http.ResponseWriter, r *http.Request) {
	record, err := s.monitor.GetRecord(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, monitor.ErrDeviceNotFound) {
			writeNotFound(w, "device not monitored")
			return
		}
		writeInternalError(w, "failed to read device health")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleRescan requests an immediate out-of-band poll cycle. The cycle
// runs asynchronously; concurrent requests coalesce.
func (s *Server) handleRescan(w http.ResponseWriter, _ *http.Request) {
	s.monitor.TriggerManualCheck()
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "rescan requested",
	})
}
