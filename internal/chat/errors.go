package chat

import (
	"fmt"
	"net/http"
)

// Kind classifies a caller-visible chat failure.
type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindBackendNotConfigured
	KindUnknownAgent
	KindUpstreamHTTP
	KindUpstreamUnavailable
	KindUpstreamParse
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid-input"
	case KindBackendNotConfigured:
		return "backend-not-configured"
	case KindUnknownAgent:
		return "unknown-agent"
	case KindUpstreamHTTP:
		return "upstream-http"
	case KindUpstreamUnavailable:
		return "upstream-unavailable"
	case KindUpstreamParse:
		return "upstream-parse"
	case KindInternal:
		return "internal"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a typed chat failure carrying everything the HTTP layer needs
// to render it: Status, the wire Code and optional Detail, Project and
// Message fields.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Detail  any
	Project string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("chat %s (%d): %s", e.Kind, e.Status, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Generic-LLM route errors.

func llmInvalidInput() *Error {
	return &Error{Kind: KindInvalidInput, Status: http.StatusBadRequest, Code: "missing message"}
}

func llmNotConfigured() *Error {
	return &Error{Kind: KindBackendNotConfigured, Status: http.StatusInternalServerError, Code: "azure openai not configured"}
}

func llmUpstreamHTTP(status int, detail string, err error) *Error {
	if status < 400 || status > 599 {
		status = http.StatusBadGateway
	}
	return &Error{Kind: KindUpstreamHTTP, Status: status, Code: "azure-error", Detail: detail, Err: err}
}

func llmUpstreamParse(err error) *Error {
	return &Error{Kind: KindUpstreamParse, Status: http.StatusInternalServerError, Code: "failed-to-parse-azure-response", Detail: errString(err), Err: err}
}

func llmUnavailable(err error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Status: http.StatusInternalServerError, Code: "azure-request-failed", Detail: errString(err), Err: err}
}

// Agent route errors.

func agentInvalidInput() *Error {
	return &Error{Kind: KindInvalidInput, Status: http.StatusBadRequest, Code: `Missing or invalid "message" in request body`}
}

func agentNotConfigured() *Error {
	return &Error{Kind: KindBackendNotConfigured, Status: http.StatusInternalServerError, Code: "neuro-san-not-configured"}
}

func agentUnknown(project string) *Error {
	return &Error{
		Kind:    KindUnknownAgent,
		Status:  http.StatusBadRequest,
		Code:    "unknown-agent",
		Project: project,
		Message: fmt.Sprintf("Unknown Neuro-SAN agent '%s' (404).", project),
	}
}

func agentUpstreamHTTP(detail any, err error) *Error {
	return &Error{Kind: KindUpstreamHTTP, Status: http.StatusBadGateway, Code: "ai-service-error", Detail: detail, Err: err}
}

func agentUnavailable(err error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Status: http.StatusServiceUnavailable, Code: "ai-service-unavailable", Detail: "The AI service did not respond.", Err: err}
}

func agentUpstreamParse(err error) *Error {
	return &Error{Kind: KindUpstreamParse, Status: http.StatusInternalServerError, Code: "internal-server-error", Detail: errString(err), Err: err}
}

func agentInternal(err error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Code: "internal-server-error", Detail: errString(err), Err: err}
}

// InternalError wraps an unexpected failure for the given route.
func InternalError(err error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Code: "ai-chat-failed", Detail: errString(err), Err: err}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
