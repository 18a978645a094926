package fleet

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Component is a monitored sub-part of an entity.
type Component struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName,omitempty"`
	ComponentName  string `json:"componentName,omitempty"`
	Status         string `json:"status"`
	MaintenanceDue string `json:"maintenanceDue,omitempty"`
	FaultCode      string `json:"faultCode,omitempty"`
	PriorityLevel  string `json:"priorityLevel,omitempty"`
	Description    string `json:"descriptionText,omitempty"`
}

// Name returns the most readable label available for the component.
func (c Component) Name() string {
	switch {
	case c.ComponentName != "":
		return c.ComponentName
	case c.DisplayName != "":
		return c.DisplayName
	}
	return c.ID
}

// Entity is a monitored vehicle or flight. Raw keeps every field of the
// source record so context building can surface fields we do not model.
type Entity struct {
	ID          string
	DisplayName string
	Components  []Component
	Raw         map[string]any
}

func (e *Entity) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	e.Raw = raw
	e.ID = stringField(raw, "id")
	e.DisplayName = stringField(raw, "displayName")
	e.Components = nil
	if list, ok := raw["components"].([]any); ok {
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			e.Components = append(e.Components, Component{
				ID:             stringField(m, "id"),
				DisplayName:    stringField(m, "displayName"),
				ComponentName:  stringField(m, "componentName"),
				Status:         stringField(m, "status"),
				MaintenanceDue: stringField(m, "maintenanceDue"),
				FaultCode:      stringField(m, "faultCode"),
				PriorityLevel:  stringField(m, "priorityLevel"),
				Description:    stringField(m, "descriptionText"),
			})
		}
	}
	return nil
}

func (e Entity) MarshalJSON() ([]byte, error) {
	if e.Raw != nil {
		return json.Marshal(e.Raw)
	}
	return json.Marshal(map[string]any{
		"id":          e.ID,
		"displayName": e.DisplayName,
		"components":  e.Components,
	})
}

// Label is the display name, or the id when no name is set.
func (e Entity) Label() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return e.ID
}

// Dataset is a read-only snapshot of the root listing plus per-entity
// override records. Consumers must accept an empty Dataset.
type Dataset struct {
	Entities  []Entity
	Overrides map[string]Entity
	LoadedAt  time.Time
}

// Lookup finds an entity in the root listing.
func (d *Dataset) Lookup(id string) (Entity, bool) {
	if d == nil || id == "" {
		return Entity{}, false
	}
	for _, e := range d.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}

// Detail prefers the override record for id and falls back to the entry
// embedded in the root listing.
func (d *Dataset) Detail(id string) (Entity, bool) {
	if d == nil || id == "" {
		return Entity{}, false
	}
	if e, ok := d.Overrides[id]; ok {
		return e, true
	}
	return d.Lookup(id)
}

// listingKeys are the object keys a root listing may wrap its array in.
var listingKeys = []string{"flights", "cars", "vehicles", "entities"}

// DecodeListing accepts either a bare JSON array of entities or an object
// holding the array under one of the listing keys.
func DecodeListing(b []byte) ([]Entity, error) {
	var list []Entity
	if err := json.Unmarshal(b, &list); err == nil {
		return list, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	for _, k := range listingKeys {
		inner, ok := wrapped[k]
		if !ok {
			continue
		}
		if err := json.Unmarshal(inner, &list); err != nil {
			return nil, fmt.Errorf("decode listing %q: %w", k, err)
		}
		return list, nil
	}
	return []Entity{}, nil
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}
