// Package evaluate maps collector signals to a health verdict. It is a
// pure function of its inputs so the same signals always produce the same
// assessment.
package evaluate

import (
	"sort"
	"strings"

	"nodehealth/internal/collect"
	"nodehealth/internal/model"
)

// Thresholds, expressed the way operators reason about them: load as a
// multiple of logical cores, memory and disk as percent still available.
const (
	CPUDegradedFactor  = 0.85
	CPUUnhealthyFactor = 1.25

	MemDegradedPct  = 15.0
	MemUnhealthyPct = 8.0

	DiskDegradedPct  = 10.0
	DiskUnhealthyPct = 5.0
)

// Reason strings carried in assessment.reasons.
const (
	ReasonCPUHigh      = "signal:cpu_high"
	ReasonCPUCritical  = "signal:cpu_critical"
	ReasonMemLow       = "signal:mem_available_low"
	ReasonMemCritical  = "signal:mem_available_critical"
	ReasonDiskLow      = "signal:disk_free_low"
	ReasonDiskCritical = "signal:disk_free_critical"
)

// FailureReason formats a collector failure for assessment.reasons.
func FailureReason(collector string) string {
	return "collector_failed:" + collector
}

func pct(available, total uint64) (float64, bool) {
	if total == 0 {
		return 0, false
	}
	return float64(available) / float64(total) * 100.0, true
}

// Health derives (health, reasons) from the signals and any collector
// failures. Nil results mean the collector did not produce a reading this
// tick. Reasons come back sorted.
func Health(cpu *collect.CPUResult, mem *collect.MemoryResult, disk *collect.DiskResult, failureReasons []string) (string, []string) {
	reasonSet := make(map[string]struct{})
	for _, r := range failureReasons {
		reasonSet[r] = struct{}{}
	}

	if cpu != nil && cpu.Loadavg1m != nil && cpu.CPUCount != nil && *cpu.CPUCount > 0 {
		cores := float64(*cpu.CPUCount)
		switch {
		case *cpu.Loadavg1m > cores*CPUUnhealthyFactor:
			reasonSet[ReasonCPUCritical] = struct{}{}
		case *cpu.Loadavg1m > cores*CPUDegradedFactor:
			reasonSet[ReasonCPUHigh] = struct{}{}
		}
	}

	if mem != nil && mem.AvailableBytes != nil && mem.TotalBytes != nil {
		if memPct, ok := pct(*mem.AvailableBytes, *mem.TotalBytes); ok {
			switch {
			case memPct < MemUnhealthyPct:
				reasonSet[ReasonMemCritical] = struct{}{}
			case memPct < MemDegradedPct:
				reasonSet[ReasonMemLow] = struct{}{}
			}
		}
	}

	if disk != nil && disk.FreeBytes != nil && disk.TotalBytes != nil {
		if diskPct, ok := pct(*disk.FreeBytes, *disk.TotalBytes); ok {
			switch {
			case diskPct < DiskUnhealthyPct:
				reasonSet[ReasonDiskCritical] = struct{}{}
			case diskPct < DiskDegradedPct:
				reasonSet[ReasonDiskLow] = struct{}{}
			}
		}
	}

	reasons := make([]string, 0, len(reasonSet))
	for r := range reasonSet {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)

	hasCritical := false
	hasSignal := false
	hasFailure := false
	for _, r := range reasons {
		if strings.HasSuffix(r, "_critical") {
			hasCritical = true
		}
		if strings.HasPrefix(r, "signal:") {
			hasSignal = true
		}
		if strings.HasPrefix(r, "collector_failed:") {
			hasFailure = true
		}
	}

	switch {
	case hasCritical:
		return model.HealthUnhealthy, reasons
	case hasSignal || hasFailure:
		return model.HealthDegraded, reasons
	default:
		return model.HealthOK, reasons
	}
}
