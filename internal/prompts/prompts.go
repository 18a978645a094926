package prompts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultID names the template used when a request's prompt id is unknown.
const DefaultID = "default"

// Set maps prompt ids to system prompt templates.
type Set struct {
	templates map[string]string
}

// Load reads a YAML mapping of prompt id to template. A missing file yields
// an empty Set; a malformed one is an error.
func Load(path string) (*Set, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(nil), nil
		}
		return New(nil), err
	}
	var templates map[string]string
	if err := yaml.Unmarshal(b, &templates); err != nil {
		return New(nil), fmt.Errorf("parse prompts %s: %w", path, err)
	}
	return New(templates), nil
}

func New(templates map[string]string) *Set {
	out := make(map[string]string, len(templates))
	for k, v := range templates {
		out[k] = strings.TrimSpace(v)
	}
	return &Set{templates: out}
}

// Lookup returns the template for id, falling back to the default template
// and then to "".
func (s *Set) Lookup(id string) string {
	if s == nil {
		return ""
	}
	if t, ok := s.templates[id]; ok && id != "" {
		return t
	}
	return s.templates[DefaultID]
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.templates)
}
