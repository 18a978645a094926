package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"fleet-monitor-backend/internal/fleet"
)

// handleFlights returns the root listing exactly as stored.
func (s *Server) handleFlights(w http.ResponseWriter, r *http.Request) {
	raw, err := s.fleet.Store().ReadRoot(r.Context())
	if err != nil {
		if !errors.Is(err, fleet.ErrNotFound) {
			s.logger.Warn("read fleet listing", zap.Error(err))
		}
		s.writeError(w, http.StatusInternalServerError, "failed to read flights")
		return
	}
	if !json.Valid(raw) {
		s.writeError(w, http.StatusInternalServerError, "invalid flights file")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) handleFleetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, fleet.ComputeFleetSummary(s.fleet.Dataset(r.Context())))
}

func (s *Server) handleGetFlight(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !fleet.ValidID(id) {
		s.writeError(w, http.StatusBadRequest, "invalid flight id")
		return
	}
	e, ok := s.fleet.Dataset(r.Context()).Detail(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "flight not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handlePutFlight stores the body as the override record for id.
func (s *Server) handlePutFlight(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !fleet.ValidID(id) {
		s.writeError(w, http.StatusBadRequest, "invalid flight id")
		return
	}
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.fleet.Store().WriteOverride(r.Context(), id, pretty.Bytes()); err != nil {
		s.logger.Error("write override", zap.String("id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to save flight")
		return
	}
	s.fleet.Invalidate()
	writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}
