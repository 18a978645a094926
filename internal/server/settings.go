package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"fleet-monitor-backend/internal/types"
)

// handleGetTuner returns the saved gesture tuner settings, {} when none.
func (s *Server) handleGetTuner(w http.ResponseWriter, r *http.Request) {
	raw, err := s.tuner.Read()
	if err != nil || raw == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, raw)
}

func (s *Server) handlePutTuner(w http.ResponseWriter, r *http.Request) {
	var payload any
	if err := decodeBody(r, &payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if err := s.tuner.Write(payload); err != nil {
		s.logger.Error("save tuner", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to save")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

func (s *Server) handleGestureLog(w http.ResponseWriter, r *http.Request) {
	var payload any
	if err := decodeBody(r, &payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.gestures.Append(payload); err != nil {
		s.logger.Error("append gesture log", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to append log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

func (s *Server) handleGetSummaryCache(w http.ResponseWriter, r *http.Request) {
	entry, err := s.summary.Get()
	if err != nil || entry == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handlePostSummaryCache(w http.ResponseWriter, r *http.Request) {
	var payload map[string]json.RawMessage
	if err := decodeBody(r, &payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid-summary")
		return
	}
	var summary string
	raw := bytes.TrimSpace(payload["summary"])
	if len(raw) == 0 || raw[0] != '"' || json.Unmarshal(raw, &summary) != nil {
		s.writeError(w, http.StatusBadRequest, "invalid-summary")
		return
	}
	saved, err := s.summary.Put(types.SummaryCacheEntry{
		Summary: summary,
		Backend: orNull(payload["backend"]),
		Project: orNull(payload["project"]),
		Stats:   orNull(payload["stats"]),
	})
	if err != nil {
		s.logger.Error("persist summary cache", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "persist-failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved": true, "ts": saved.TS})
}

// orNull decodes raw, mapping absent and falsy values to nil.
func orNull(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
	case bool:
		if !t {
			return nil
		}
	case float64:
		if t == 0 {
			return nil
		}
	}
	return v
}
