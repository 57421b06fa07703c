// Package config loads and validates the YAML configuration shared by the
// agent and triage commands.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSpoolPath   = "spool/node_reports.jsonl"
	DefaultStateDir    = "state"
	DefaultDiskMount   = "/"
	DefaultIntervalSec = 60

	// DefaultSpoolMaxBytes bounds the live spool at 10 MiB before
	// rotation. Set spool_max_bytes to a negative value to disable
	// rotation entirely.
	DefaultSpoolMaxBytes    = int64(10 << 20)
	DefaultSpoolRotateCount = 5

	DefaultTailN       = 200
	DefaultTopKReasons = 5
	DefaultFormat      = "text"
)

// Config holds both agent and triage settings.
type Config struct {
	Agent  *AgentConfig  `yaml:"agent,omitempty"`
	Triage *TriageConfig `yaml:"triage,omitempty"`
}

// AgentConfig is used by the producing agent process.
type AgentConfig struct {
	SpoolPath        string `yaml:"spool_path"`
	SpoolMaxBytes    int64  `yaml:"spool_max_bytes"`
	SpoolRotateCount int    `yaml:"spool_rotate_count"`
	IntervalSec      int    `yaml:"interval_sec"`
	StateDir         string `yaml:"state_dir"`
	DiskMount        string `yaml:"disk_mount"`
	EchoStdout       *bool  `yaml:"echo_stdout"`
}

// TriageConfig supplies defaults for the consuming triage commands.
type TriageConfig struct {
	SpoolPath   string `yaml:"spool_path"`
	TailN       int    `yaml:"tail_n"`
	TopKReasons int    `yaml:"top_k_reasons"`
	Format      string `yaml:"format"`
}

// Load reads and parses a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	ApplyDefaults(&cfg)
	return cfg, nil
}

// Save writes a YAML config file to disk.
func Save(path string, cfg Config) error {
	ApplyDefaults(&cfg)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate rejects configurations the pipeline cannot safely run with.
func Validate(cfg Config) error {
	if cfg.Agent == nil && cfg.Triage == nil {
		return fmt.Errorf("config must contain agent or triage section")
	}
	if cfg.Agent != nil {
		if cfg.Agent.SpoolPath == "" {
			return fmt.Errorf("agent.spool_path is required")
		}
		if cfg.Agent.IntervalSec < 1 {
			return fmt.Errorf("agent.interval_sec must be >= 1")
		}
		if cfg.Agent.SpoolMaxBytes > 0 && cfg.Agent.SpoolRotateCount < 1 {
			return fmt.Errorf("agent.spool_rotate_count must be >= 1 when spool_max_bytes is set")
		}
		if cfg.Agent.StateDir == "" {
			return fmt.Errorf("agent.state_dir is required")
		}
	}
	if cfg.Triage != nil {
		if cfg.Triage.SpoolPath == "" {
			return fmt.Errorf("triage.spool_path is required")
		}
		if cfg.Triage.TailN < 1 {
			return fmt.Errorf("triage.tail_n must be >= 1")
		}
	}
	return nil
}

// ApplyDefaults fills in default values when empty. A negative
// spool_max_bytes is kept as-is and disables rotation.
func ApplyDefaults(cfg *Config) {
	if cfg.Agent != nil {
		a := cfg.Agent
		if a.SpoolPath == "" {
			a.SpoolPath = DefaultSpoolPath
		}
		if a.SpoolMaxBytes == 0 {
			a.SpoolMaxBytes = DefaultSpoolMaxBytes
		}
		if a.SpoolRotateCount == 0 {
			a.SpoolRotateCount = DefaultSpoolRotateCount
		}
		if a.IntervalSec == 0 {
			a.IntervalSec = DefaultIntervalSec
		}
		if a.StateDir == "" {
			a.StateDir = DefaultStateDir
		}
		if a.DiskMount == "" {
			a.DiskMount = DefaultDiskMount
		}
		if a.EchoStdout == nil {
			echo := true
			a.EchoStdout = &echo
		}
	}

	if cfg.Triage != nil {
		tr := cfg.Triage
		if tr.SpoolPath == "" {
			tr.SpoolPath = DefaultSpoolPath
		}
		if tr.TailN == 0 {
			tr.TailN = DefaultTailN
		}
		if tr.TopKReasons == 0 {
			tr.TopKReasons = DefaultTopKReasons
		}
		if tr.Format == "" {
			tr.Format = DefaultFormat
		}
	}
}
