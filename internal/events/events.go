// Package events emits the agent's structured JSON event stream: one
// object per line on stdout, with a fixed event vocabulary so downstream
// ingestion never sees a surprise event type.
package events

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Event vocabulary. Emit rejects anything not listed here.
const (
	AgentStart          = "agent_start"
	AgentTick           = "agent_tick"
	HealthReportEmitted = "health_report_emitted"
	CollectorFailed     = "collector_failed"
	SpoolWriteFailed    = "spool_write_failed"
	SpoolRotated        = "spool_rotated"
	AgentShutdown       = "agent_shutdown"
)

var validTypes = map[string]struct{}{
	AgentStart:          {},
	AgentTick:           {},
	HealthReportEmitted: {},
	CollectorFailed:     {},
	SpoolWriteFailed:    {},
	SpoolRotated:        {},
	AgentShutdown:       {},
}

const messageLimit = 200

// Logger writes event lines for one agent process.
type Logger struct {
	log          zerolog.Logger
	agentVersion string
}

// New builds a logger writing to w. The zerolog timestamp is disabled;
// every event carries an explicit utc_now field instead.
func New(w io.Writer, agentVersion string) *Logger {
	return &Logger{
		log:          zerolog.New(w),
		agentVersion: agentVersion,
	}
}

// Emit writes one event line. event_type, utc_now and agent_version are
// always present; extra fields are appended in sorted key order so the
// line layout is deterministic. Long message fields are truncated.
func (l *Logger) Emit(eventType string, fields map[string]interface{}) error {
	if _, ok := validTypes[eventType]; !ok {
		return fmt.Errorf("invalid event_type: %q", eventType)
	}

	ev := l.log.Log().
		Str("event_type", eventType).
		Str("utc_now", time.Now().UTC().Format(time.RFC3339Nano)).
		Str("agent_version", l.agentVersion)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := fields[k]
		if k == "message" {
			if msg, ok := v.(string); ok {
				v = truncateMessage(msg)
			}
		}
		ev = ev.Interface(k, v)
	}

	ev.Send()
	return nil
}

// truncateMessage caps message length to keep event lines compact.
func truncateMessage(msg string) string {
	if len(msg) <= messageLimit {
		return msg
	}
	return fmt.Sprintf("%s...[truncated %d chars]", msg[:messageLimit], len(msg)-messageLimit)
}
