package spool

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteLine_AppendsWithNewline(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "spool", "node_reports.jsonl")
	target := Target{Path: path}

	for i := 0; i < 3; i++ {
		rot, err := WriteLine(target, fmt.Sprintf(`{"seq":%d}`, i))
		if err != nil {
			t.Fatalf("WriteLine %d: %v", i, err)
		}
		if rot != nil {
			t.Fatalf("unexpected rotation: %+v", rot)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "{\"seq\":0}\n{\"seq\":1}\n{\"seq\":2}\n" {
		t.Fatalf("content=%q", data)
	}
}

func TestWriteLine_RotatesAtThreshold(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	path := filepath.Join(tmp, "node_reports.jsonl")
	prior := strings.Repeat("x", 200)
	if err := os.WriteFile(path, []byte(prior), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	target := Target{Path: path, MaxBytes: 100, RotateCount: 2}
	rot, err := WriteLine(target, "{}")
	if err != nil {
		t.Fatalf("WriteLine: %v", err)
	}
	if rot == nil {
		t.Fatalf("expected rotation")
	}
	if rot.PriorSize != 200 {
		t.Fatalf("prior_size=%d", rot.PriorSize)
	}

	backup := filepath.Join(tmp, "node_reports.1.jsonl")
	if rot.BackupPath != backup {
		t.Fatalf("backup_path=%q", rot.BackupPath)
	}
	data, err := os.ReadFile(backup)
	if err != nil {
		t.Fatalf("ReadFile backup: %v", err)
	}
	if string(data) != prior {
		t.Fatalf("backup bytes lost: len=%d", len(data))
	}

	live, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile live: %v", err)
	}
	if string(live) != "{}\n" {
		t.Fatalf("live=%q", live)
	}
}

func TestWriteLine_RotationIsNotRepeatedWithoutGrowth(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	path := filepath.Join(tmp, "node_reports.jsonl")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 200)), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	target := Target{Path: path, MaxBytes: 100, RotateCount: 2}
	if _, err := WriteLine(target, "{}"); err != nil {
		t.Fatalf("WriteLine #1: %v", err)
	}
	// The fresh file is far below the threshold, so no second shift.
	rot, err := WriteLine(target, "{}")
	if err != nil {
		t.Fatalf("WriteLine #2: %v", err)
	}
	if rot != nil {
		t.Fatalf("unexpected rotation: %+v", rot)
	}
	if _, err := os.Stat(filepath.Join(tmp, "node_reports.2.jsonl")); !os.IsNotExist(err) {
		t.Fatalf("backup 2 should not exist")
	}
}

func TestWriteLine_BoundedBackupRing(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	path := filepath.Join(tmp, "node_reports.jsonl")
	target := Target{Path: path, MaxBytes: 1, RotateCount: 2}

	// Every write rotates (threshold 1 byte), so generations shift through
	// slots 1..2 and the oldest falls off.
	for i := 0; i < 4; i++ {
		if _, err := WriteLine(target, fmt.Sprintf(`{"gen":%d}`, i)); err != nil {
			t.Fatalf("WriteLine %d: %v", i, err)
		}
	}

	slot1, err := os.ReadFile(filepath.Join(tmp, "node_reports.1.jsonl"))
	if err != nil {
		t.Fatalf("ReadFile slot1: %v", err)
	}
	if string(slot1) != "{\"gen\":2}\n" {
		t.Fatalf("slot1=%q", slot1)
	}
	slot2, err := os.ReadFile(filepath.Join(tmp, "node_reports.2.jsonl"))
	if err != nil {
		t.Fatalf("ReadFile slot2: %v", err)
	}
	if string(slot2) != "{\"gen\":1}\n" {
		t.Fatalf("slot2=%q", slot2)
	}
	if _, err := os.Stat(filepath.Join(tmp, "node_reports.3.jsonl")); !os.IsNotExist(err) {
		t.Fatalf("slot3 should have been deleted")
	}
}

func TestWriteLine_RotationDisabled(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	path := filepath.Join(tmp, "node_reports.jsonl")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 500)), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	for _, target := range []Target{
		{Path: path, MaxBytes: 0, RotateCount: 3},
		{Path: path, MaxBytes: -1, RotateCount: 3},
		{Path: path, MaxBytes: 100, RotateCount: 0},
	} {
		rot, err := WriteLine(target, "{}")
		if err != nil {
			t.Fatalf("WriteLine: %v", err)
		}
		if rot != nil {
			t.Fatalf("rotation should be disabled: %+v", rot)
		}
	}
	if _, err := os.Stat(filepath.Join(tmp, "node_reports.1.jsonl")); !os.IsNotExist(err) {
		t.Fatalf("backup created with rotation disabled")
	}
}

func TestWriteLine_ErrorCallback(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	// Make the spool path a directory so the open fails.
	path := filepath.Join(tmp, "node_reports.jsonl")
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	var stage string
	target := Target{Path: path, OnError: func(s string, err error) { stage = s }}
	if _, err := WriteLine(target, "{}"); err == nil {
		t.Fatalf("expected error")
	}
	if stage != "open" {
		t.Fatalf("stage=%q", stage)
	}
}

func TestBackupPath_NoSuffix(t *testing.T) {
	t.Parallel()

	if got := backupPath("/var/spool/reports", 3); got != "/var/spool/reports.3" {
		t.Fatalf("got=%q", got)
	}
	if got := backupPath("reports.jsonl", 1); got != "reports.1.jsonl" {
		t.Fatalf("got=%q", got)
	}
}
