package chat

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"fleet-monitor-backend/internal/fleet"
)

// LocalSummaryReply answers an aggregate question from the dataset alone.
// When entity is non-nil the reply is scoped to it and offers the fleet
// view as an alternative.
func LocalSummaryReply(ds *fleet.Dataset, entity *fleet.Entity) string {
	s := fleet.ComputeFleetSummary(ds)
	if entity != nil {
		return entityReply(s, *entity)
	}
	return fleetReply(s, ds)
}

func fleetReply(s fleet.FleetSummary, ds *fleet.Dataset) string {
	example := "FL-204"
	if ds != nil && len(ds.Entities) > 0 && ds.Entities[0].ID != "" {
		example = ds.Entities[0].ID
	}
	var b strings.Builder
	b.WriteString("Fleet summary (from local data):\n")
	fmt.Fprintf(&b, "- Total vehicles: %d\n", s.Total)
	fmt.Fprintf(&b, "- Cars all good: %d\n", s.CountGood)
	fmt.Fprintf(&b, "- Cars with warnings: %d\n", s.CountWarning)
	fmt.Fprintf(&b, "- Cars with critical issues: %d\n", s.CountCritical)
	fmt.Fprintf(&b, "- Operational (no Critical components): %d (%d%%)\n", s.OperationalCount, s.OperationalPct)
	fmt.Fprintf(&b, "- Out-of-service / maintenance planned: %d\n", s.OutOfServiceCount)
	fmt.Fprintf(&b, "- Out-of-service IDs: %s\n\n", idList(s.CriticalIDs))
	fmt.Fprintf(&b, "If you want details for a specific vehicle, mention its id (for example: %s).", example)
	return b.String()
}

func entityReply(s fleet.FleetSummary, e fleet.Entity) string {
	es := fleet.ComputeEntitySummary(e)
	outPct := 0
	if s.Total > 0 {
		outPct = int(math.Round(float64(s.OutOfServiceCount) / float64(s.Total) * 100))
	}
	verdict := "operational"
	if es.WorstStatus == fleet.StatusCritical {
		verdict = "out-of-service"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Context: %s\n\n", e.ID)
	fmt.Fprintf(&b, "I'm currently scoped to %s. Do you want:\n", e.Label())
	fmt.Fprintf(&b, "- A: a short summary for this vehicle only (%s), or\n", e.ID)
	b.WriteString("- B: the fleet-level summary (all vehicles)?\n\n")
	b.WriteString("If you want the fleet summary now, here's the latest from the dataset:\n")
	fmt.Fprintf(&b, "- Total vehicles: %d\n", s.Total)
	fmt.Fprintf(&b, "- Operational (no Critical components): %d (%d%%)\n", s.OperationalCount, s.OperationalPct)
	fmt.Fprintf(&b, "- Out-of-service (>= 1 Critical): %d (%d%%), IDs: %s\n\n", s.OutOfServiceCount, outPct, idList(s.CriticalIDs))
	fmt.Fprintf(&b, "Quick summary for %s:\n", e.ID)
	fmt.Fprintf(&b, "- Worst status: %s\n", es.WorstStatus)
	fmt.Fprintf(&b, "- Key issue: %s, vehicle is %s until the issue is resolved.\n\n", es.KeyIssue, verdict)
	fmt.Fprintf(&b, "Tell me which view you want (A or B), or ask for per-component details for %s.", e.ID)
	return b.String()
}

func idList(ids []string) string {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(b)
}
