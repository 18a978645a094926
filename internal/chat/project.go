package chat

import (
	"net/url"
	"strings"
)

// ProjectChoice is the outcome of ResolveProject.
type ProjectChoice struct {
	Project string
	// Denied is set when the caller asked for a project other than the
	// configured alternate; Project then falls back to the canonical one.
	Denied bool
}

// ResolveProject picks the agent project for one request. Only the
// configured alternate may be requested explicitly; summary mode selects
// it implicitly when it is configured. The result is per request and
// never written back to shared configuration.
func ResolveProject(canonical, alternate, override string, summaryMode bool) ProjectChoice {
	override = strings.TrimSpace(override)
	alternate = strings.TrimSpace(alternate)
	switch {
	case override != "" && alternate != "" && override == alternate:
		return ProjectChoice{Project: alternate}
	case override != "":
		return ProjectChoice{Project: canonical, Denied: true}
	case summaryMode && alternate != "":
		return ProjectChoice{Project: alternate}
	}
	return ProjectChoice{Project: canonical}
}

// AgentURL builds the streaming chat endpoint for project. Trailing
// slashes and a trailing /api/v1 or /v1 on base are dropped first, so
// configuring either form yields the same URL.
func AgentURL(base, project string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	base = trimSuffixFold(base, "/api/v1")
	base = trimSuffixFold(base, "/v1")
	base = strings.TrimRight(base, "/")
	return base + "/api/v1/" + url.PathEscape(project) + "/streaming_chat"
}

func trimSuffixFold(s, suffix string) string {
	if len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		return s[:len(s)-len(suffix)]
	}
	return s
}
