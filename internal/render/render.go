// Package render formats triage summaries for operators. Renderers only
// format what the aggregator computed; they never derive new values.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"nodehealth/internal/model"
	"nodehealth/internal/triage"
)

// Renderer formats a summary set plus its aggregation metadata.
type Renderer func(summaries []triage.NodeSummary, meta triage.Meta) (string, error)

var renderers = map[string]Renderer{
	"text":    Text,
	"json":    JSON,
	"table":   Table,
	"pretty":  Pretty,
	"explain": Explain,
}

// ByName looks up a renderer by its format name.
func ByName(name string) (Renderer, bool) {
	r, ok := renderers[name]
	return r, ok
}

// Names lists the supported format names, sorted.
func Names() []string {
	names := make([]string, 0, len(renderers))
	for name := range renderers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Text renders the line-per-field operator view.
func Text(summaries []triage.NodeSummary, meta triage.Meta) (string, error) {
	lines := []string{
		fmt.Sprintf("nodes_seen_tail: %d", meta.NodesSeen),
		fmt.Sprintf("nodes_emitted: %d", meta.NodesEmitted),
	}
	if meta.FilesSeen > 0 {
		lines = append(lines, fmt.Sprintf("files_seen: %d", meta.FilesSeen))
	}

	for _, s := range summaries {
		lines = append(lines, "")
		lines = append(lines, "node_id: "+s.NodeID)
		lines = append(lines, "current_boot_id: "+s.CurrentBootID)
		lines = append(lines, "latest_health: "+s.CurrentHealth)
		lines = append(lines, "latest_seq: "+displaySeq(s.LatestSeq))
		lines = append(lines, "latest_emitted_at: "+s.LatestEmittedAt)
		lines = append(lines, fmt.Sprintf("degraded_count_tail: %d / %d", s.DegradedCount, s.ReportsSeen))
		lines = append(lines, fmt.Sprintf("unhealthy_count_tail: %d / %d", s.UnhealthyCount, s.ReportsSeen))
		lines = append(lines, "top_reasons_tail: "+joinTopReasons(s.TopReasons))
		lines = append(lines, "current_reasons: "+joinCurrentReasons(s))
	}

	return strings.Join(lines, "\n"), nil
}

// JSON renders the machine-readable payload: {"meta": ..., "nodes": [...]}.
func JSON(summaries []triage.NodeSummary, meta triage.Meta) (string, error) {
	payload := struct {
		Meta  triage.Meta         `json:"meta"`
		Nodes []triage.NodeSummary `json:"nodes"`
	}{Meta: meta, Nodes: summaries}
	if payload.Nodes == nil {
		payload.Nodes = []triage.NodeSummary{}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Table renders one compact row per node.
func Table(summaries []triage.NodeSummary, meta triage.Meta) (string, error) {
	rows := [][]string{{"NODE", "HEALTH", "CPU1", "MEM_FREE", "DISK_FREE", "DEG", "UNH"}}
	for _, s := range summaries {
		rows = append(rows, []string{
			s.NodeID,
			s.CurrentHealth,
			formatLoad(s.Loadavg1m),
			formatGBCompact(s.MemAvailableBytes),
			formatGBCompact(s.DiskFreeBytes),
			fmt.Sprintf("%d", s.DegradedCount),
			fmt.Sprintf("%d", s.UnhealthyCount),
		})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		padded := make([]string, len(row))
		for i, cell := range row {
			padded[i] = cell + strings.Repeat(" ", widths[i]-len(cell))
		}
		lines = append(lines, strings.TrimRight(strings.Join(padded, "  "), " "))
	}
	return strings.Join(lines, "\n"), nil
}

// Pretty renders a readable block per node.
func Pretty(summaries []triage.NodeSummary, meta triage.Meta) (string, error) {
	var blocks []string
	for _, s := range summaries {
		header := "NODE " + s.NodeID
		blocks = append(blocks, header)
		blocks = append(blocks, strings.Repeat("-", len(header)))
		blocks = append(blocks, "Health: "+s.CurrentHealth)
		blocks = append(blocks, fmt.Sprintf("Seq: %s   Boot: %s", displaySeq(s.LatestSeq), s.CurrentBootID))
		blocks = append(blocks, "Emitted: "+s.LatestEmittedAt)
		blocks = append(blocks, "")
		blocks = append(blocks, fmt.Sprintf(
			"CPU load (1m/5m/15m): %s / %s / %s",
			formatLoad(s.Loadavg1m), formatLoad(s.Loadavg5m), formatLoad(s.Loadavg15m)))
		blocks = append(blocks, "Disk free: "+formatGB(s.DiskFreeBytes))
		blocks = append(blocks, "Memory available: "+formatGB(s.MemAvailableBytes))
		blocks = append(blocks, "")
		blocks = append(blocks, fmt.Sprintf("Degraded (tail): %d / %d", s.DegradedCount, s.ReportsSeen))
		blocks = append(blocks, fmt.Sprintf("Unhealthy (tail): %d / %d", s.UnhealthyCount, s.ReportsSeen))
		blocks = append(blocks, "Top reasons: "+joinTopReasons(s.TopReasons))
		blocks = append(blocks, "")
	}
	return strings.TrimRight(strings.Join(blocks, "\n"), "\n"), nil
}

var reasonLabels = map[string]string{
	"signal:cpu_high":                 "CPU load high",
	"signal:cpu_critical":             "CPU load critical",
	"signal:disk_free_low":            "Disk free low",
	"signal:disk_free_critical":       "Disk free critical",
	"signal:mem_available_low":        "Memory available low",
	"signal:mem_available_critical":   "Memory available critical",
}

// Explain renders a plain-language account of why each node is in its
// current state.
func Explain(summaries []triage.NodeSummary, meta triage.Meta) (string, error) {
	var blocks []string
	for _, s := range summaries {
		blocks = append(blocks, "Node: "+s.NodeID)
		blocks = append(blocks, "Status: "+s.CurrentHealth)
		blocks = append(blocks, "")
		blocks = append(blocks, "Reasons:")
		if len(s.CurrentReasons) > 0 {
			for _, reason := range s.CurrentReasons {
				blocks = append(blocks, "- "+reasonMessage(s, reason))
			}
		} else {
			blocks = append(blocks, "- none")
		}
		blocks = append(blocks, "")
		blocks = append(blocks, "Tail Summary:")
		blocks = append(blocks, fmt.Sprintf("- Degraded: %d / %d", s.DegradedCount, s.ReportsSeen))
		blocks = append(blocks, fmt.Sprintf("- Unhealthy: %d / %d", s.UnhealthyCount, s.ReportsSeen))
		if len(s.TopReasons) > 0 {
			blocks = append(blocks, "- Most frequent issue: "+s.TopReasons[0].Reason)
		} else {
			blocks = append(blocks, "- Most frequent issue: none")
		}
		blocks = append(blocks, "")
	}
	return strings.TrimRight(strings.Join(blocks, "\n"), "\n"), nil
}

func reasonMessage(s triage.NodeSummary, reason string) string {
	label, ok := reasonLabels[reason]
	if !ok {
		return reason
	}
	switch reason {
	case "signal:cpu_high", "signal:cpu_critical":
		if s.CPUCount != nil && s.Loadavg1m != nil {
			return fmt.Sprintf("%s (load %s on %d cores)", label, formatLoad(s.Loadavg1m), *s.CPUCount)
		}
	case "signal:mem_available_low", "signal:mem_available_critical":
		if s.MemAvailableBytes != nil {
			return fmt.Sprintf("%s (%s available)", label, formatGB(s.MemAvailableBytes))
		}
	case "signal:disk_free_low", "signal:disk_free_critical":
		if s.DiskFreeBytes != nil {
			return fmt.Sprintf("%s (%s free)", label, formatGB(s.DiskFreeBytes))
		}
	}
	return label
}

func displaySeq(seq *int64) string {
	if seq == nil {
		return "unknown"
	}
	return fmt.Sprintf("%d", *seq)
}

func joinTopReasons(reasons []triage.ReasonCount) string {
	if len(reasons) == 0 {
		return "none"
	}
	parts := make([]string, len(reasons))
	for i, rc := range reasons {
		parts[i] = fmt.Sprintf("%s:%d", rc.Reason, rc.Count)
	}
	return strings.Join(parts, ", ")
}

// joinCurrentReasons shows the latest reasons only when the node is not
// healthy; a healthy node's stale reasons would just confuse triage.
func joinCurrentReasons(s triage.NodeSummary) string {
	if s.CurrentHealth != model.HealthDegraded && s.CurrentHealth != model.HealthUnhealthy {
		return "none"
	}
	if len(s.CurrentReasons) == 0 {
		return "none"
	}
	return strings.Join(s.CurrentReasons, ", ")
}

func formatLoad(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

func formatGB(v *uint64) string {
	if v == nil {
		return "n/a"
	}
	gb := float64(*v) / (1 << 30)
	if gb >= 10 {
		return fmt.Sprintf("%.0f GB", gb)
	}
	return fmt.Sprintf("%.1f GB", gb)
}

func formatGBCompact(v *uint64) string {
	if v == nil {
		return "n/a"
	}
	gb := float64(*v) / (1 << 30)
	if gb >= 10 {
		return fmt.Sprintf("%.0fG", gb)
	}
	return fmt.Sprintf("%.1fG", gb)
}
