// Package agent runs the producing loop: collect signals, assess health,
// append one report line to the spool, then commit the sequence number.
package agent

import (
	"context"
	"fmt"
	"io"
	"time"

	"nodehealth/internal/collect"
	"nodehealth/internal/config"
	"nodehealth/internal/evaluate"
	"nodehealth/internal/events"
	"nodehealth/internal/model"
	"nodehealth/internal/seqstore"
	"nodehealth/internal/spool"
)

// Version is stamped into meta.agent_version of every report.
const Version = "0.2.0"

// Options wires one agent invocation.
type Options struct {
	Config config.AgentConfig
	Events *events.Logger
	Stdout io.Writer // report echo target when echo_stdout is on
}

// tickResult carries the loop-local outcome of one tick; nothing about a
// tick survives into the next one except what the seq store persists.
type tickResult struct {
	emitted   bool
	seq       int64
	nodeID    string
	collectMs int64
	err       error
}

// Run executes the tick loop until ctx is cancelled. A failed tick is
// reported and skipped; the loop itself keeps going, because stream
// availability matters more than any single sample. Cancellation takes
// effect between ticks, never mid-write.
func Run(ctx context.Context, opts Options) error {
	log := opts.Events
	interval := time.Duration(opts.Config.IntervalSec) * time.Second

	log.Emit(events.AgentStart, map[string]interface{}{
		"mode":       "run",
		"interval_s": opts.Config.IntervalSec,
		"spool_path": opts.Config.SpoolPath,
	})
	defer log.Emit(events.AgentShutdown, map[string]interface{}{"mode": "run"})

	store := seqstore.New(opts.Config.StateDir)

	for {
		tickStart := time.Now()
		res := tick(opts, store)

		elapsed := time.Since(tickStart)
		sleep := interval - elapsed
		overrun := sleep < 0
		if overrun {
			// An overrun tick starts the next cycle immediately
			// instead of sleeping a negative duration.
			sleep = 0
		}

		fields := map[string]interface{}{
			"mode":            "run",
			"interval_s":      opts.Config.IntervalSec,
			"tick_elapsed_ms": elapsed.Milliseconds(),
			"collect_elapsed_ms": res.collectMs,
			"sleep_ms":        sleep.Milliseconds(),
			"overrun":         overrun,
			"reports_emitted": 0,
		}
		if res.emitted {
			fields["reports_emitted"] = 1
			fields["seq"] = res.seq
			fields["node_id"] = res.nodeID
		}
		if res.err != nil {
			fields["skip_emit"] = true
			fields["message"] = res.err.Error()
		}
		log.Emit(events.AgentTick, fields)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// Once runs a single tick. Unlike the loop, any failure is fatal: a
// one-shot invocation has no next tick to recover on.
func Once(opts Options) error {
	log := opts.Events

	log.Emit(events.AgentStart, map[string]interface{}{
		"mode":       "once",
		"spool_path": opts.Config.SpoolPath,
	})
	defer log.Emit(events.AgentShutdown, map[string]interface{}{"mode": "once"})

	store := seqstore.New(opts.Config.StateDir)
	res := tick(opts, store)
	return res.err
}

// tick performs one full collect → evaluate → emit → commit cycle.
func tick(opts Options, store *seqstore.Store) tickResult {
	log := opts.Events
	cfg := opts.Config

	collectStart := time.Now()

	identity, err := collect.CollectIdentity(cfg.StateDir)
	if err != nil {
		// Without identity there is no boot scope and no report.
		log.Emit(events.CollectorFailed, map[string]interface{}{
			"collector": "identity",
			"message":   err.Error(),
		})
		return tickResult{err: fmt.Errorf("identity collector: %w", err)}
	}

	var failures []string
	fail := func(name string, err error) {
		failures = append(failures, evaluate.FailureReason(name))
		log.Emit(events.CollectorFailed, map[string]interface{}{
			"collector": name,
			"message":   err.Error(),
		})
	}

	var cpuRes *collect.CPUResult
	if cpu, err := collect.CollectCPU(); err != nil {
		fail("cpu", err)
	} else {
		cpuRes = &cpu
	}

	var memRes *collect.MemoryResult
	if mem, err := collect.CollectMemory(); err != nil {
		fail("memory", err)
	} else {
		memRes = &mem
	}

	var diskRes *collect.DiskResult
	if disk, err := collect.CollectDisk(cfg.DiskMount); err != nil {
		fail("disk", err)
	} else {
		diskRes = &disk
	}

	heartbeat := collect.CollectHeartbeat()
	collectMs := time.Since(collectStart).Milliseconds()

	health, reasons := evaluate.Health(cpuRes, memRes, diskRes, failures)
	seq := store.PeekNext(identity.BootID)

	report := buildReport(identity, heartbeat, cpuRes, memRes, diskRes, health, reasons, seq)
	line, err := model.Encode(report)
	if err != nil {
		return tickResult{collectMs: collectMs, err: fmt.Errorf("encode report: %w", err)}
	}

	target := spool.Target{
		Path:        cfg.SpoolPath,
		MaxBytes:    cfg.SpoolMaxBytes,
		RotateCount: cfg.SpoolRotateCount,
		OnError: func(stage string, err error) {
			log.Emit(events.SpoolWriteFailed, map[string]interface{}{
				"stage":      stage,
				"spool_path": cfg.SpoolPath,
				"message":    err.Error(),
			})
		},
	}

	rotation, err := spool.WriteLine(target, line)
	if err != nil {
		return tickResult{collectMs: collectMs, err: err}
	}
	if rotation != nil {
		log.Emit(events.SpoolRotated, map[string]interface{}{
			"spool_path":  cfg.SpoolPath,
			"backup_path": rotation.BackupPath,
			"prior_bytes": rotation.PriorSize,
		})
	}

	if cfg.EchoStdout != nil && *cfg.EchoStdout && opts.Stdout != nil {
		fmt.Fprintln(opts.Stdout, line)
	}

	// Commit only after the line is durably written. A crash before this
	// point repeats seq after restart; it never leaves a gap.
	if err := store.Commit(identity.BootID, seq); err != nil {
		return tickResult{collectMs: collectMs, err: err}
	}

	log.Emit(events.HealthReportEmitted, map[string]interface{}{
		"node_id":    identity.NodeID,
		"boot_id":    identity.BootID,
		"seq":        seq,
		"health":     health,
		"spool_path": cfg.SpoolPath,
	})

	return tickResult{
		emitted:   true,
		seq:       seq,
		nodeID:    identity.NodeID,
		collectMs: collectMs,
	}
}

func buildReport(
	identity collect.IdentityResult,
	heartbeat collect.HeartbeatResult,
	cpu *collect.CPUResult,
	mem *collect.MemoryResult,
	disk *collect.DiskResult,
	health string,
	reasons []string,
	seq int64,
) model.Report {
	signals := model.Signals{HeartbeatOK: &heartbeat.HeartbeatOK}
	if cpu != nil {
		signals.Loadavg1m = cpu.Loadavg1m
		signals.Loadavg5m = cpu.Loadavg5m
		signals.Loadavg15m = cpu.Loadavg15m
		signals.CPUCount = cpu.CPUCount
	}
	if mem != nil {
		signals.MemTotalBytes = mem.TotalBytes
		signals.MemAvailableBytes = mem.AvailableBytes
	}
	if disk != nil {
		signals.DiskTotalBytes = disk.TotalBytes
		signals.DiskFreeBytes = disk.FreeBytes
	}

	return model.Report{
		Identity:   model.Identity{NodeID: identity.NodeID, BootID: identity.BootID},
		Timing:     model.Timing{EmittedAt: model.UTCNow(), Seq: seq},
		Signals:    signals,
		Assessment: model.Assessment{Health: health, Reasons: reasons},
		Meta:       model.Meta{SchemaVersion: model.SchemaVersion, AgentVersion: Version},
	}
}
