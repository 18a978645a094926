package types

// HistoryMessage is one prior turn supplied by the client.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of both chat routes. flightId and carId are
// accepted as aliases of entityId.
type ChatRequest struct {
	Message         string           `json:"message"`
	History         []HistoryMessage `json:"history,omitempty"`
	EntityID        string           `json:"entityId,omitempty"`
	FlightID        string           `json:"flightId,omitempty"`
	CarID           string           `json:"carId,omitempty"`
	PromptID        string           `json:"promptId,omitempty"`
	BypassLocal     bool             `json:"bypassLocal,omitempty"`
	ProjectOverride string           `json:"projectOverride,omitempty"`
	SummaryMode     bool             `json:"summaryMode,omitempty"`
}

// TargetID resolves the entity the request is scoped to, if any.
func (r ChatRequest) TargetID() string {
	switch {
	case r.EntityID != "":
		return r.EntityID
	case r.FlightID != "":
		return r.FlightID
	}
	return r.CarID
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Detail  any    `json:"detail,omitempty"`
	Project string `json:"project,omitempty"`
	Message string `json:"message,omitempty"`
}

// SummaryCacheEntry is the persisted last squadron AI analysis.
type SummaryCacheEntry struct {
	Summary string `json:"summary"`
	Backend any    `json:"backend"`
	Project any    `json:"project"`
	TS      int64  `json:"ts"`
	Stats   any    `json:"stats"`
}

// AppConfig is the non-secret runtime configuration exposed to the UI.
type AppConfig struct {
	NeuroSanSummaryProjectConfigured bool    `json:"neuroSanSummaryProjectConfigured"`
	NeuroSanSummaryProjectName       *string `json:"neuroSanSummaryProjectName"`
}
