package evaluate

import (
	"reflect"
	"testing"

	"nodehealth/internal/collect"
	"nodehealth/internal/model"
)

func f64(v float64) *float64 { return &v }
func u64(v uint64) *uint64   { return &v }
func i(v int) *int           { return &v }

func TestHealth_AllClear(t *testing.T) {
	t.Parallel()

	cpu := &collect.CPUResult{Loadavg1m: f64(0.5), CPUCount: i(4)}
	mem := &collect.MemoryResult{TotalBytes: u64(1000), AvailableBytes: u64(600)}
	disk := &collect.DiskResult{TotalBytes: u64(1000), FreeBytes: u64(500)}

	health, reasons := Health(cpu, mem, disk, nil)
	if health != model.HealthOK {
		t.Fatalf("health=%q", health)
	}
	if len(reasons) != 0 {
		t.Fatalf("reasons=%v", reasons)
	}
}

func TestHealth_CPUThresholds(t *testing.T) {
	t.Parallel()

	// 4 cores: degraded above 3.4, critical above 5.0.
	cases := []struct {
		load   float64
		health string
		reason string
	}{
		{3.4, model.HealthOK, ""},
		{3.5, model.HealthDegraded, ReasonCPUHigh},
		{5.0, model.HealthDegraded, ReasonCPUHigh},
		{5.1, model.HealthUnhealthy, ReasonCPUCritical},
	}
	for _, tc := range cases {
		cpu := &collect.CPUResult{Loadavg1m: f64(tc.load), CPUCount: i(4)}
		health, reasons := Health(cpu, nil, nil, nil)
		if health != tc.health {
			t.Fatalf("load=%v health=%q", tc.load, health)
		}
		if tc.reason != "" && !reflect.DeepEqual(reasons, []string{tc.reason}) {
			t.Fatalf("load=%v reasons=%v", tc.load, reasons)
		}
	}
}

func TestHealth_MemoryAndDiskThresholds(t *testing.T) {
	t.Parallel()

	mem := &collect.MemoryResult{TotalBytes: u64(1000), AvailableBytes: u64(100)}
	health, reasons := Health(nil, mem, nil, nil)
	if health != model.HealthDegraded || !reflect.DeepEqual(reasons, []string{ReasonMemLow}) {
		t.Fatalf("mem 10%%: %q %v", health, reasons)
	}

	mem.AvailableBytes = u64(50)
	health, reasons = Health(nil, mem, nil, nil)
	if health != model.HealthUnhealthy || !reflect.DeepEqual(reasons, []string{ReasonMemCritical}) {
		t.Fatalf("mem 5%%: %q %v", health, reasons)
	}

	disk := &collect.DiskResult{TotalBytes: u64(1000), FreeBytes: u64(60)}
	health, reasons = Health(nil, nil, disk, nil)
	if health != model.HealthDegraded || !reflect.DeepEqual(reasons, []string{ReasonDiskLow}) {
		t.Fatalf("disk 6%%: %q %v", health, reasons)
	}

	disk.FreeBytes = u64(40)
	health, reasons = Health(nil, nil, disk, nil)
	if health != model.HealthUnhealthy || !reflect.DeepEqual(reasons, []string{ReasonDiskCritical}) {
		t.Fatalf("disk 4%%: %q %v", health, reasons)
	}
}

func TestHealth_CollectorFailureDegrades(t *testing.T) {
	t.Parallel()

	health, reasons := Health(nil, nil, nil, []string{FailureReason("memory")})
	if health != model.HealthDegraded {
		t.Fatalf("health=%q", health)
	}
	if !reflect.DeepEqual(reasons, []string{"collector_failed:memory"}) {
		t.Fatalf("reasons=%v", reasons)
	}
}

func TestHealth_ReasonsSortedAndDeduped(t *testing.T) {
	t.Parallel()

	cpu := &collect.CPUResult{Loadavg1m: f64(9.9), CPUCount: i(4)}
	mem := &collect.MemoryResult{TotalBytes: u64(1000), AvailableBytes: u64(100)}
	health, reasons := Health(cpu, mem, nil, []string{FailureReason("disk"), FailureReason("disk")})
	if health != model.HealthUnhealthy {
		t.Fatalf("health=%q", health)
	}
	want := []string{"collector_failed:disk", ReasonCPUCritical, ReasonMemLow}
	if !reflect.DeepEqual(reasons, want) {
		t.Fatalf("reasons=%v", reasons)
	}
}

func TestHealth_MissingSignalsAreNotPenalized(t *testing.T) {
	t.Parallel()

	// Zero totals and absent fields must not generate reasons.
	mem := &collect.MemoryResult{TotalBytes: u64(0), AvailableBytes: u64(0)}
	health, reasons := Health(&collect.CPUResult{}, mem, &collect.DiskResult{}, nil)
	if health != model.HealthOK || len(reasons) != 0 {
		t.Fatalf("health=%q reasons=%v", health, reasons)
	}
}
