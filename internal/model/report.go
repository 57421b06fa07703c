package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
)

// SchemaVersion is the report envelope version written to every spool line.
const SchemaVersion = "1"

// Health states carried in assessment.health.
const (
	HealthOK        = "OK"
	HealthDegraded  = "DEGRADED"
	HealthUnhealthy = "UNHEALTHY"
)

// Identity ties a report to a specific node and boot.
type Identity struct {
	NodeID string `json:"node_id"`
	BootID string `json:"boot_id"`
}

// Timing orders reports within a boot scope.
type Timing struct {
	EmittedAt string `json:"emitted_at"`
	Seq       int64  `json:"seq"`
}

// Signals holds raw collector readings. Every field is optional so a
// failed collector leaves its fields absent instead of zeroed.
type Signals struct {
	HeartbeatOK *bool  `json:"heartbeat_ok,omitempty"`
	Loadavg1m   *float64 `json:"loadavg_1m,omitempty"`
	Loadavg5m   *float64 `json:"loadavg_5m,omitempty"`
	Loadavg15m  *float64 `json:"loadavg_15m,omitempty"`
	CPUCount    *int     `json:"cpu_count_logical,omitempty"`
	MemTotalBytes     *uint64 `json:"mem_total_bytes,omitempty"`
	MemAvailableBytes *uint64 `json:"mem_available_bytes,omitempty"`
	DiskTotalBytes    *uint64 `json:"disk_total_bytes,omitempty"`
	DiskFreeBytes     *uint64 `json:"disk_free_bytes,omitempty"`
}

// Assessment is the health verdict for one report.
type Assessment struct {
	Health  string   `json:"health"`
	Reasons []string `json:"reasons"`
}

// Meta versions the report for downstream compatibility checks.
type Meta struct {
	SchemaVersion string `json:"schema_version"`
	AgentVersion  string `json:"agent_version"`
}

// Report is the top-level spool record.
type Report struct {
	Identity   Identity   `json:"identity"`
	Timing     Timing     `json:"timing"`
	Signals    Signals    `json:"signals"`
	Assessment Assessment `json:"assessment"`
	Meta       Meta       `json:"meta"`
}

// Validate checks required structure before serialization.
func Validate(r Report) error {
	if r.Identity.NodeID == "" {
		return fmt.Errorf("identity.node_id is empty")
	}
	if r.Identity.BootID == "" {
		return fmt.Errorf("identity.boot_id is empty")
	}
	if r.Timing.Seq < 1 {
		return fmt.Errorf("timing.seq must be >= 1, got %d", r.Timing.Seq)
	}
	if r.Timing.EmittedAt == "" {
		return fmt.Errorf("timing.emitted_at is empty")
	}
	switch r.Assessment.Health {
	case HealthOK, HealthDegraded, HealthUnhealthy:
	default:
		return fmt.Errorf("assessment.health %q is not a known state", r.Assessment.Health)
	}
	if r.Meta.SchemaVersion != SchemaVersion {
		return fmt.Errorf("meta.schema_version must be %q", SchemaVersion)
	}
	if r.Meta.AgentVersion == "" {
		return fmt.Errorf("meta.agent_version is empty")
	}
	return nil
}

// Encode serializes a validated report to a single JSON object with
// sorted reasons and no trailing newline.
func Encode(r Report) (string, error) {
	if err := Validate(r); err != nil {
		return "", err
	}
	if r.Assessment.Reasons == nil {
		r.Assessment.Reasons = []string{}
	} else {
		reasons := make([]string, len(r.Assessment.Reasons))
		copy(reasons, r.Assessment.Reasons)
		sort.Strings(reasons)
		r.Assessment.Reasons = reasons
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UTCNow returns the current time formatted for timing.emitted_at.
func UTCNow() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
