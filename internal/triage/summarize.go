// Package triage turns a tail window of spool records into deterministic
// per-node health summaries.
package triage

import (
	"sort"

	"nodehealth/internal/model"
)

// SchemaVersion versions the triage output payload.
const SchemaVersion = "1"

// HealthUnknown is reported when a record carries no usable assessment.
const HealthUnknown = "unknown"

// ReasonCount is one ranked entry in a node's top reasons.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// NodeSummary is the derived view of one node over the tail window. It is
// recomputed from scratch on every call; renderers only format it.
type NodeSummary struct {
	NodeID          string        `json:"node_id"`
	CurrentBootID   string        `json:"current_boot_id"`
	LatestSeq       *int64        `json:"latest_seq"`
	LatestEmittedAt string        `json:"latest_emitted_at"`
	CurrentHealth   string        `json:"current_health"`
	CurrentReasons  []string      `json:"current_reasons"`
	ReportsSeen     int           `json:"reports_seen_tail"`
	DegradedCount   int           `json:"degraded_count_tail"`
	UnhealthyCount  int           `json:"unhealthy_count_tail"`
	TopReasons      []ReasonCount `json:"top_reasons_tail"`

	// Signal readings from the latest record, for the richer renderers.
	Loadavg1m  *float64 `json:"loadavg_1m,omitempty"`
	Loadavg5m  *float64 `json:"loadavg_5m,omitempty"`
	Loadavg15m *float64 `json:"loadavg_15m,omitempty"`
	CPUCount   *int     `json:"cpu_count_logical,omitempty"`
	MemTotalBytes     *uint64 `json:"mem_total_bytes,omitempty"`
	MemAvailableBytes *uint64 `json:"mem_available_bytes,omitempty"`
	DiskTotalBytes    *uint64 `json:"disk_total_bytes,omitempty"`
	DiskFreeBytes     *uint64 `json:"disk_free_bytes,omitempty"`
}

// Meta carries the aggregation counts handed to renderers alongside the
// summaries. Renderers must not recompute any of it.
type Meta struct {
	SchemaVersion  string `json:"schema_version"`
	SpoolPath      string `json:"spool_path,omitempty"`
	SpoolDir       string `json:"spool_dir,omitempty"`
	TailN          int    `json:"tail_n"`
	NodesSeen      int    `json:"nodes_seen_tail"`
	NodesEmitted   int    `json:"nodes_emitted"`
	ReportsParsed  int    `json:"reports_parsed"`
	ReportsInvalid int    `json:"reports_invalid"`
	FilesSeen      int    `json:"files_seen,omitempty"`
	ComputedAt     string `json:"computed_at"`
}

type accumulator struct {
	reportsSeen  int
	degraded     int
	unhealthy    int
	reasonCounts map[string]int
	latest       *model.RawRecord
	latestAt     string
	latestSeq    int64
	hasLatest    bool
}

// orderingKey ranks records by emitted_at then seq. Absent fields rank
// lowest so any real timestamp beats a record without one.
func orderingKey(rec *model.RawRecord) (string, int64) {
	seq, _ := rec.Seq()
	return rec.EmittedAt(), seq
}

func keyLess(aAt string, aSeq int64, bAt string, bSeq int64) bool {
	if aAt != bAt {
		return aAt < bAt
	}
	return aSeq < bSeq
}

// Summarize groups records by node id and derives one summary per node,
// sorted by node id. The result is invariant to input order: the latest
// record is chosen by (emitted_at, seq), not by position in the window.
func Summarize(records []*model.RawRecord, topK int) []NodeSummary {
	if len(records) == 0 {
		return []NodeSummary{}
	}

	accs := make(map[string]*accumulator)

	for _, rec := range records {
		nodeID := rec.NodeID()
		if nodeID == "" {
			nodeID = "unknown"
		}

		acc, ok := accs[nodeID]
		if !ok {
			acc = &accumulator{reasonCounts: make(map[string]int)}
			accs[nodeID] = acc
		}

		acc.reportsSeen++

		switch rec.Health() {
		case model.HealthDegraded:
			acc.degraded++
		case model.HealthUnhealthy:
			acc.unhealthy++
		}

		for _, reason := range rec.Reasons() {
			acc.reasonCounts[reason]++
		}

		at, seq := orderingKey(rec)
		if !acc.hasLatest || keyLess(acc.latestAt, acc.latestSeq, at, seq) {
			acc.hasLatest = true
			acc.latest = rec
			acc.latestAt = at
			acc.latestSeq = seq
		}
	}

	summaries := make([]NodeSummary, 0, len(accs))
	for nodeID, acc := range accs {
		summaries = append(summaries, buildSummary(nodeID, acc, topK))
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].NodeID < summaries[j].NodeID
	})
	return summaries
}

func buildSummary(nodeID string, acc *accumulator, topK int) NodeSummary {
	latest := acc.latest

	bootID := latest.BootID()
	if bootID == "" {
		bootID = "unknown"
	}
	emittedAt := latest.EmittedAt()
	if emittedAt == "" {
		emittedAt = "unknown"
	}
	health := latest.Health()
	if health == "" {
		health = HealthUnknown
	}

	var latestSeq *int64
	if seq, ok := latest.Seq(); ok {
		latestSeq = &seq
	}

	currentReasons := append([]string{}, latest.Reasons()...)
	sort.Strings(currentReasons)

	s := NodeSummary{
		NodeID:          nodeID,
		CurrentBootID:   bootID,
		LatestSeq:       latestSeq,
		LatestEmittedAt: emittedAt,
		CurrentHealth:   health,
		CurrentReasons:  currentReasons,
		ReportsSeen:     acc.reportsSeen,
		DegradedCount:   acc.degraded,
		UnhealthyCount:  acc.unhealthy,
		TopReasons:      rankReasons(acc.reasonCounts, topK),
	}

	if latest.Signals != nil {
		s.Loadavg1m = latest.Signals.Loadavg1m
		s.Loadavg5m = latest.Signals.Loadavg5m
		s.Loadavg15m = latest.Signals.Loadavg15m
		s.CPUCount = latest.Signals.CPUCount
		s.MemTotalBytes = latest.Signals.MemTotalBytes
		s.MemAvailableBytes = latest.Signals.MemAvailableBytes
		s.DiskTotalBytes = latest.Signals.DiskTotalBytes
		s.DiskFreeBytes = latest.Signals.DiskFreeBytes
	}

	return s
}

// rankReasons orders reasons by descending count, ties broken by ascending
// reason string, truncated to topK when positive.
func rankReasons(counts map[string]int, topK int) []ReasonCount {
	ranked := make([]ReasonCount, 0, len(counts))
	for reason, count := range counts {
		ranked = append(ranked, ReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Reason < ranked[j].Reason
	})
	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}
