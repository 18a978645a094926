package fleet

import (
	"fmt"
	"math"
	"strings"
)

// Status is the health of a component or, for an entity, its worst component.
type Status string

const (
	StatusGood     Status = "Good"
	StatusWarning  Status = "Warning"
	StatusCritical Status = "Critical"
)

// statusRank orders severities; unknown statuses rank as Warning.
func statusRank(status string) int {
	switch status {
	case string(StatusGood):
		return 0
	case string(StatusCritical):
		return 2
	}
	return 1
}

func statusForRank(rank int) Status {
	switch rank {
	case 2:
		return StatusCritical
	case 1:
		return StatusWarning
	}
	return StatusGood
}

// WorstStatus is the highest-severity status among components, Good when
// there are none.
func WorstStatus(components []Component) Status {
	worst := 0
	for _, c := range components {
		if r := statusRank(c.Status); r > worst {
			worst = r
		}
	}
	return statusForRank(worst)
}

// EntityStatus is the per-entity line of a FleetSummary.
type EntityStatus struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	WorstStatus Status `json:"worstStatus"`
}

// FleetSummary aggregates health across the root listing.
// OperationalCount + OutOfServiceCount == Total always holds.
type FleetSummary struct {
	Total             int            `json:"total"`
	CountGood         int            `json:"countGood"`
	CountWarning      int            `json:"countWarning"`
	CountCritical     int            `json:"countCritical"`
	OperationalCount  int            `json:"operationalCount"`
	OperationalPct    int            `json:"operationalPct"`
	OutOfServiceCount int            `json:"outOfServiceCount"`
	CriticalIDs       []string       `json:"criticalIds"`
	PerEntity         []EntityStatus `json:"perEntity"`
}

// ComputeFleetSummary reduces the root listing of ds. A nil or empty
// dataset yields a zero summary.
func ComputeFleetSummary(ds *Dataset) FleetSummary {
	s := FleetSummary{CriticalIDs: []string{}, PerEntity: []EntityStatus{}}
	if ds == nil {
		return s
	}
	for _, e := range ds.Entities {
		worst := WorstStatus(e.Components)
		switch worst {
		case StatusCritical:
			s.CountCritical++
			s.CriticalIDs = append(s.CriticalIDs, e.ID)
		case StatusWarning:
			s.CountWarning++
		default:
			s.CountGood++
		}
		if worst != StatusCritical {
			s.OperationalCount++
		}
		s.PerEntity = append(s.PerEntity, EntityStatus{ID: e.ID, DisplayName: e.DisplayName, WorstStatus: worst})
	}
	s.Total = len(ds.Entities)
	s.OutOfServiceCount = s.Total - s.OperationalCount
	s.OperationalPct = percent(s.OperationalCount, s.Total)
	return s
}

// percent is round(part/total*100), 0 when total is 0.
func percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

// EntitySummary is the one-line health digest of a single entity.
type EntitySummary struct {
	WorstStatus Status `json:"worstStatus"`
	KeyIssue    string `json:"keyIssue"`
}

// ComputeEntitySummary reports the first Critical component, else the
// first Warning one, else "No issues detected.".
func ComputeEntitySummary(e Entity) EntitySummary {
	var critical, warning *Component
	for i := range e.Components {
		c := &e.Components[i]
		switch strings.ToLower(c.Status) {
		case "critical":
			if critical == nil {
				critical = c
			}
		case "warning":
			if warning == nil {
				warning = c
			}
		}
	}
	switch {
	case critical != nil:
		return EntitySummary{WorstStatus: StatusCritical, KeyIssue: keyIssue(*critical, StatusCritical)}
	case warning != nil:
		return EntitySummary{WorstStatus: StatusWarning, KeyIssue: keyIssue(*warning, StatusWarning)}
	}
	return EntitySummary{WorstStatus: StatusGood, KeyIssue: "No issues detected."}
}

func keyIssue(c Component, status Status) string {
	return fmt.Sprintf("%s (%s) = %s (maintenanceDue: %s)",
		c.Name(), orDefault(c.FaultCode, "N/A"), status, orDefault(c.MaintenanceDue, "unknown"))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
