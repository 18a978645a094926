package server

import (
	"encoding/json"
	"net/http"

	"fleet-monitor-backend/internal/types"
)

// decodeChatRequest reads a chat body field by field. A field of the wrong
// type is left at its zero value instead of discarding the whole request;
// a body that is not a JSON object yields an empty request.
func decodeChatRequest(r *http.Request) types.ChatRequest {
	var req types.ChatRequest
	b, err := readBody(r)
	if err != nil {
		return req
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return req
	}
	field(raw, "message", &req.Message)
	field(raw, "history", &req.History)
	field(raw, "entityId", &req.EntityID)
	field(raw, "flightId", &req.FlightID)
	field(raw, "carId", &req.CarID)
	field(raw, "promptId", &req.PromptID)
	field(raw, "bypassLocal", &req.BypassLocal)
	field(raw, "projectOverride", &req.ProjectOverride)
	field(raw, "summaryMode", &req.SummaryMode)
	return req
}

// field sets *dst from raw[key] only when the value decodes cleanly.
func field[T any](raw map[string]json.RawMessage, key string, dst *T) {
	v, ok := raw[key]
	if !ok {
		return
	}
	var out T
	if err := json.Unmarshal(v, &out); err == nil {
		*dst = out
	}
}
