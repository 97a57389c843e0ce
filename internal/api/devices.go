package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearthstead/hearth-core/internal/device"
	"github.com/hearthstead/hearth-core/internal/monitor"
)

// handleListDevices returns the full catalogue sorted by name.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// createDeviceRequest is the body for POST /api/v1/devices.
type createDeviceRequest struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Probe   string `json:"probe"`
	Enabled *bool  `json:"enabled"`
}

// handleCreateDevice adds a device to the catalogue and, when enabled
// and a probe adapter exists, registers it with the monitor.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	d := device.Device{
		Kind:    req.Kind,
		Name:    req.Name,
		Probe:   req.Probe,
		Enabled: true,
	}
	if req.Enabled != nil {
		d.Enabled = *req.Enabled
	}

	created, err := s.registry.Create(r.Context(), d)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrInvalidDevice):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		case errors.Is(err, device.ErrDeviceExists):
			writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
		default:
			s.logger.Error("device create failed", "error", err)
			writeInternalError(w, "failed to create device")
		}
		return
	}

	s.syncTarget(created)
	writeJSON(w, http.StatusCreated, created)
}

// handleGetDevice returns one device by id.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// updateDeviceRequest is the body for PATCH /api/v1/devices/{id}.
// Absent fields keep their current value.
type updateDeviceRequest struct {
	Kind    *string `json:"kind"`
	Name    *string `json:"name"`
	Probe   *string `json:"probe"`
	Enabled *bool   `json:"enabled"`
}

// handleUpdateDevice applies a partial update and re-syncs the
// device's monitor target.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := s.registry.Get(id)
	if err != nil {
		writeNotFound(w, "device not found")
		return
	}

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Kind != nil {
		existing.Kind = *req.Kind
	}
	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Probe != nil {
		existing.Probe = *req.Probe
	}
	if req.Enabled != nil {
		existing.Enabled = *req.Enabled
	}

	updated, err := s.registry.Update(r.Context(), existing)
	if err != nil {
		if errors.Is(err, device.ErrInvalidDevice) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		s.logger.Error("device update failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to update device")
		return
	}

	s.syncTarget(updated)
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteDevice removes a device from the catalogue and the monitor.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.Delete(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("device delete failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to delete device")
		return
	}

	s.monitor.RemoveTarget(id)
	w.WriteHeader(http.StatusNoContent)
}

// syncTarget aligns the monitor with the catalogue entry: enabled
// devices with a known probe kind are polled, everything else is not.
func (s *Server) syncTarget(d device.Device) {
	if !d.Enabled {
		s.monitor.RemoveTarget(d.ID)
		return
	}
	if s.probers == nil {
		return
	}
	prober, ok := s.probers(d)
	if !ok {
		s.logger.Warn("no probe adapter for device", "device_id", d.ID, "probe", d.Probe)
		s.monitor.RemoveTarget(d.ID)
		return
	}
	s.monitor.AddTarget(monitor.Target{
		DeviceID: d.ID,
		Kind:     d.Kind,
		Name:     d.Name,
		Prober:   prober,
	})
}
