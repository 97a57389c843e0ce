package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hearthstead/hearth-core/internal/alerting"
)

// handleListMessages returns retained messages, oldest first. Query
// parameters severity, category, source, and since (RFC3339) narrow
// the result.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	msgs := s.alerts.Query(filter)
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"count":    len(msgs),
	})
}

// ackRequest is the body for POST /api/v1/messages/ack.
type ackRequest struct {
	IDs []string `json:"ids"`
}

// handleAckMessages acknowledges messages by id. Unknown ids are
// skipped; the response reports how many messages changed state.
func (s *Server) handleAckMessages(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.IDs) == 0 {
		writeBadRequest(w, "ids must not be empty")
		return
	}

	changed := s.alerts.Acknowledge(req.IDs...)
	writeJSON(w, http.StatusOK, map[string]any{
		"acknowledged": changed,
	})
}

// filterFromQuery parses alert filter query parameters.
func filterFromQuery(r *http.Request) (alerting.Filter, error) {
	var f alerting.Filter

	if v := r.URL.Query().Get("severity"); v != "" {
		sev, err := alerting.ParseSeverity(v)
		if err != nil {
			return f, errors.New("invalid severity: " + v)
		}
		f.Severity = sev
	}
	f.Category = r.URL.Query().Get("category")
	f.Source = r.URL.Query().Get("source")
	if v := r.URL.Query().Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errors.New("since must be RFC3339")
		}
		f.Since = since
	}
	return f, nil
}
