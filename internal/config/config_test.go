package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaults_Agent(t *testing.T) {
	t.Parallel()

	cfg := Config{Agent: &AgentConfig{}}
	ApplyDefaults(&cfg)

	if cfg.Agent.SpoolPath != DefaultSpoolPath {
		t.Fatalf("spool_path=%q", cfg.Agent.SpoolPath)
	}
	if cfg.Agent.SpoolMaxBytes != DefaultSpoolMaxBytes {
		t.Fatalf("spool_max_bytes=%d", cfg.Agent.SpoolMaxBytes)
	}
	if cfg.Agent.SpoolRotateCount != DefaultSpoolRotateCount {
		t.Fatalf("spool_rotate_count=%d", cfg.Agent.SpoolRotateCount)
	}
	if cfg.Agent.IntervalSec != DefaultIntervalSec {
		t.Fatalf("interval_sec=%d", cfg.Agent.IntervalSec)
	}
	if cfg.Agent.EchoStdout == nil || !*cfg.Agent.EchoStdout {
		t.Fatalf("echo_stdout default not true")
	}
}

func TestApplyDefaults_NegativeMaxBytesDisablesRotation(t *testing.T) {
	t.Parallel()

	cfg := Config{Agent: &AgentConfig{SpoolMaxBytes: -1}}
	ApplyDefaults(&cfg)
	if cfg.Agent.SpoolMaxBytes != -1 {
		t.Fatalf("spool_max_bytes=%d", cfg.Agent.SpoolMaxBytes)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_RejectsBadRotation(t *testing.T) {
	t.Parallel()

	cfg := Config{Agent: &AgentConfig{SpoolMaxBytes: 100, SpoolRotateCount: -2}}
	ApplyDefaults(&cfg)
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidate_RequiresSection(t *testing.T) {
	t.Parallel()

	if err := Validate(Config{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadSave_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nodehealth.yaml")
	echo := false
	in := Config{
		Agent:  &AgentConfig{SpoolPath: "/var/spool/nh.jsonl", IntervalSec: 5, EchoStdout: &echo},
		Triage: &TriageConfig{TailN: 50},
	}
	if err := Save(path, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode=%o", info.Mode().Perm())
	}

	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Agent.SpoolPath != "/var/spool/nh.jsonl" || out.Agent.IntervalSec != 5 {
		t.Fatalf("agent=%+v", out.Agent)
	}
	if out.Agent.EchoStdout == nil || *out.Agent.EchoStdout {
		t.Fatalf("echo_stdout lost")
	}
	if out.Triage.TailN != 50 || out.Triage.TopKReasons != DefaultTopKReasons {
		t.Fatalf("triage=%+v", out.Triage)
	}
}
