// Package seqstore persists the per-boot report sequence counter.
//
// The counter is requested before a report is written and committed only
// after the write succeeds, so a crash in between repeats a sequence
// number instead of leaving a gap.
package seqstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
)

const stateFile = "seq.json"

// ErrStateWrite wraps failures to persist the sequence state. Read
// failures are never surfaced; they fall back to a fresh counter.
var ErrStateWrite = errors.New("seq state write failed")

// State is the persisted counter, scoped to one boot.
type State struct {
	BootID  string `json:"boot_id"`
	NextSeq int64  `json:"next_seq"`
}

// Store reads and writes the sequence state under a state directory.
type Store struct {
	dir string
}

// New returns a store rooted at dir. The directory is created lazily on
// the first commit.
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path() string {
	return filepath.Join(s.dir, stateFile)
}

// load returns the stored state, or nil when the file is missing,
// unreadable, or malformed. Corrupt state never crashes the agent.
func (s *Store) load() *State {
	data, err := os.ReadFile(s.path())
	if err != nil {
		return nil
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil
	}
	st.BootID = strings.TrimSpace(st.BootID)
	if st.BootID == "" || st.NextSeq < 1 {
		return nil
	}
	return &st
}

// PeekNext returns the sequence number the next report should carry,
// without mutating state. A missing file, unreadable state, or a boot
// scope change all reset to 1.
func (s *Store) PeekNext(bootID string) int64 {
	bootID = strings.TrimSpace(bootID)
	if bootID == "" {
		return 1
	}

	st := s.load()
	if st == nil || st.BootID != bootID {
		return 1
	}
	return st.NextSeq
}

// Commit records that a report numbered emittedSeq was durably written.
// A boot scope change stores emittedSeq+1 unconditionally; within the same
// scope the counter only advances, so duplicate or out-of-order commits
// cannot move it backward.
func (s *Store) Commit(bootID string, emittedSeq int64) error {
	bootID = strings.TrimSpace(bootID)
	if bootID == "" {
		return nil
	}

	next := emittedSeq + 1
	if next < 1 {
		next = 1
	}

	if st := s.load(); st != nil && st.BootID == bootID && st.NextSeq > next {
		next = st.NextSeq
	}

	return s.save(State{BootID: bootID, NextSeq: next})
}

// save replaces the state file atomically: write a temp file in the same
// directory, then rename over the target. A crash mid-write leaves either
// the old or the complete new state, never a torn read.
func (s *Store) save(st State) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrStateWrite, err)
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStateWrite, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, stateFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStateWrite, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrStateWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrStateWrite, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrStateWrite, err)
	}
	if err := os.Rename(tmpPath, s.path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrStateWrite, err)
	}
	return nil
}
