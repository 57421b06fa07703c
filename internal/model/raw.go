package model

import (
	"strings"

	"github.com/goccy/go-json"
)

// RawRecord is a spool line as seen by consumers. Every nested field is
// independently optional: a record written by an older agent, or one with
// a failed collector, still parses and degrades to "unknown" at the edges.
type RawRecord struct {
	Identity   *RawIdentity   `json:"identity"`
	Timing     *RawTiming     `json:"timing"`
	Signals    *RawSignals    `json:"signals"`
	Assessment *RawAssessment `json:"assessment"`
}

type RawIdentity struct {
	NodeID *string `json:"node_id"`
	BootID *string `json:"boot_id"`
}

type RawTiming struct {
	EmittedAt *string `json:"emitted_at"`
	Seq       *int64  `json:"seq"`
}

type RawSignals struct {
	Loadavg1m  *float64 `json:"loadavg_1m"`
	Loadavg5m  *float64 `json:"loadavg_5m"`
	Loadavg15m *float64 `json:"loadavg_15m"`
	CPUCount   *int     `json:"cpu_count_logical"`
	MemTotalBytes     *uint64 `json:"mem_total_bytes"`
	MemAvailableBytes *uint64 `json:"mem_available_bytes"`
	DiskTotalBytes    *uint64 `json:"disk_total_bytes"`
	DiskFreeBytes     *uint64 `json:"disk_free_bytes"`
}

type RawAssessment struct {
	Health  *string  `json:"health"`
	Reasons []string `json:"reasons"`
}

// ParseRawRecord parses one spool line into a RawRecord. Only single JSON
// objects are accepted; scalars, arrays and null are rejected so malformed
// lines are counted rather than silently producing empty records.
func ParseRawRecord(line string) (*RawRecord, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || trimmed[0] != '{' {
		return nil, false
	}
	var rec RawRecord
	if err := json.Unmarshal([]byte(trimmed), &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

// NodeID returns identity.node_id or "" when absent.
func (r *RawRecord) NodeID() string {
	if r == nil || r.Identity == nil || r.Identity.NodeID == nil {
		return ""
	}
	return *r.Identity.NodeID
}

// BootID returns identity.boot_id or "" when absent.
func (r *RawRecord) BootID() string {
	if r == nil || r.Identity == nil || r.Identity.BootID == nil {
		return ""
	}
	return *r.Identity.BootID
}

// EmittedAt returns timing.emitted_at or "" when absent.
func (r *RawRecord) EmittedAt() string {
	if r == nil || r.Timing == nil || r.Timing.EmittedAt == nil {
		return ""
	}
	return *r.Timing.EmittedAt
}

// Seq returns timing.seq and whether it was present.
func (r *RawRecord) Seq() (int64, bool) {
	if r == nil || r.Timing == nil || r.Timing.Seq == nil {
		return 0, false
	}
	return *r.Timing.Seq, true
}

// Health returns assessment.health or "" when absent.
func (r *RawRecord) Health() string {
	if r == nil || r.Assessment == nil || r.Assessment.Health == nil {
		return ""
	}
	return *r.Assessment.Health
}

// Reasons returns assessment.reasons, never nil.
func (r *RawRecord) Reasons() []string {
	if r == nil || r.Assessment == nil || r.Assessment.Reasons == nil {
		return []string{}
	}
	return r.Assessment.Reasons
}
