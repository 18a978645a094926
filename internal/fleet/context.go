package fleet

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// MaxContextChars bounds BuildContext output, ellipsis included.
	MaxContextChars = 3000

	maxScalarChars     = 400
	maxInlineArray     = 12
	maxComponentRows   = 25
	maxCriticalFocus   = 5
	maxFleetEntities   = 10
	maxDescChars       = 120
	truncationEllipsis = "..."
)

// priorityRank orders component priorities; unrecognized levels sort last.
var priorityRank = map[string]int{
	"CRITICAL": 0,
	"HIGH":     1,
	"MEDIUM":   2,
	"LOW":      3,
	"INFO":     4,
}

// BuildContext renders a bounded plain-text digest of one entity (when
// entityID resolves in ds) or of the first entities of the listing (when
// fleetWide). It returns "" when there is nothing to say. The output is a
// pure function of ds and the arguments.
func BuildContext(ds *Dataset, entityID string, fleetWide bool) string {
	var lines []string
	if detail, ok := ds.Detail(entityID); ok {
		lines = entityContext(entityID, detail)
	} else if fleetWide && ds != nil {
		lines = fleetContext(ds.Entities)
	}
	if len(lines) == 0 {
		return ""
	}
	return Truncate(strings.Join(lines, "\n"), MaxContextChars)
}

func entityContext(id string, e Entity) []string {
	lines := []string{"Selected Entity: " + id}

	keys := make([]string, 0, len(e.Raw))
	for k := range e.Raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := e.Raw[k].(type) {
		case string:
			if utf8.RuneCountInString(v) < maxScalarChars {
				lines = append(lines, k+": "+v)
			}
		case float64, bool:
			lines = append(lines, k+": "+scalarString(v))
		case []any:
			if inline, ok := inlineArray(v); ok {
				lines = append(lines, k+": ["+inline+"]")
			}
		}
	}

	if len(e.Components) == 0 {
		return lines
	}
	rows := make([]componentRow, 0, len(e.Components))
	for _, c := range e.Components {
		rows = append(rows, newComponentRow(c))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].rank() < rows[j].rank()
	})

	lines = append(lines, "Components Summary (name | status | due | priority | fault):")
	for i, r := range rows {
		if i == maxComponentRows {
			break
		}
		lines = append(lines, fmt.Sprintf(" * %s | %s | %s | %s | %s", r.name, r.status, r.due, r.priority, r.fault))
	}

	var focus []string
	for _, r := range rows {
		if len(focus) == maxCriticalFocus {
			break
		}
		if r.critical() {
			focus = append(focus, fmt.Sprintf(" - %s: %s; %s", r.name, r.status, r.desc))
		}
	}
	if len(focus) > 0 {
		lines = append(lines, "Critical Focus:")
		lines = append(lines, focus...)
	}
	return lines
}

func fleetContext(entities []Entity) []string {
	if len(entities) == 0 {
		return nil
	}
	if len(entities) > maxFleetEntities {
		entities = entities[:maxFleetEntities]
	}
	lines := []string{fmt.Sprintf("Fleet Summary (first %d entities):", maxFleetEntities)}
	for _, e := range entities {
		if e.ID == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf(" - %s: %s", e.ID, listingStatus(e)))
	}
	return lines
}

// listingStatus is the best-effort status field of a listing entry.
func listingStatus(e Entity) string {
	for _, k := range []string{"status", "health", "state"} {
		if s := stringField(e.Raw, k); s != "" {
			return s
		}
	}
	return "unknown"
}

type componentRow struct {
	name, status, due, priority, fault, desc string
}

func newComponentRow(c Component) componentRow {
	name := c.DisplayName
	if name == "" {
		name = c.ComponentName
	}
	if name == "" {
		name = c.ID
	}
	return componentRow{
		name:     name,
		status:   orDefault(c.Status, "Unknown"),
		due:      orDefault(c.MaintenanceDue, "n/a"),
		priority: orDefault(c.PriorityLevel, "MEDIUM"),
		fault:    orDefault(c.FaultCode, "-"),
		desc:     CutRunes(c.Description, maxDescChars),
	}
}

func (r componentRow) rank() int {
	if rank, ok := priorityRank[strings.ToUpper(r.priority)]; ok {
		return rank
	}
	return len(priorityRank)
}

func (r componentRow) critical() bool {
	p := strings.ToUpper(r.priority)
	return strings.Contains(strings.ToLower(r.status), "critical") ||
		strings.Contains(p, "HIGH") || strings.Contains(p, "CRITICAL")
}

func inlineArray(items []any) (string, bool) {
	if len(items) == 0 || len(items) >= maxInlineArray {
		return "", false
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string, float64, bool:
			parts = append(parts, scalarString(v))
		default:
			return "", false
		}
	}
	return strings.Join(parts, ", "), true
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}

// Truncate cuts s to at most limit runes, ending in an ellipsis when cut.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	keep := limit - len(truncationEllipsis)
	if keep < 0 {
		keep = 0
	}
	return CutRunes(s, keep) + truncationEllipsis
}

// CutRunes returns the first n runes of s.
func CutRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
