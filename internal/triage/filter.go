package triage

import "nodehealth/internal/model"

// FilterNode keeps only the summary for one node id. Filters run after
// aggregation so the core summarization stays pure.
func FilterNode(summaries []NodeSummary, nodeID string) []NodeSummary {
	if nodeID == "" {
		return summaries
	}
	out := make([]NodeSummary, 0, 1)
	for _, s := range summaries {
		if s.NodeID == nodeID {
			out = append(out, s)
		}
	}
	return out
}

// FilterDegraded keeps nodes currently DEGRADED or UNHEALTHY.
func FilterDegraded(summaries []NodeSummary) []NodeSummary {
	return filterHealth(summaries, model.HealthDegraded, model.HealthUnhealthy)
}

// FilterUnhealthy keeps nodes currently UNHEALTHY.
func FilterUnhealthy(summaries []NodeSummary) []NodeSummary {
	return filterHealth(summaries, model.HealthUnhealthy)
}

func filterHealth(summaries []NodeSummary, states ...string) []NodeSummary {
	out := make([]NodeSummary, 0, len(summaries))
	for _, s := range summaries {
		for _, state := range states {
			if s.CurrentHealth == state {
				out = append(out, s)
				break
			}
		}
	}
	return out
}
