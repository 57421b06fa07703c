// Package spool appends health reports to a size-bounded JSONL file and
// reads bounded tail windows back out of it.
package spool

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrWrite wraps spool append and rotation failures so callers can tell
// them apart from configuration problems.
var ErrWrite = errors.New("spool write failed")

// Target describes one spool destination. MaxBytes <= 0 or RotateCount < 1
// disables rotation; the file then grows without bound.
type Target struct {
	Path        string
	MaxBytes    int64
	RotateCount int

	// OnError, when set, observes failures before they are returned.
	// It keeps the writer decoupled from any logging component.
	OnError func(stage string, err error)
}

// Rotation reports that a rotation happened before a write.
type Rotation struct {
	PriorSize  int64
	BackupPath string
}

// WriteLine appends one JSON line plus a single trailing newline to the
// target, rotating first when the live file is at or over MaxBytes. The
// write is synced to storage before returning so a concurrent tail reader
// observes it immediately.
func WriteLine(target Target, line string) (*Rotation, error) {
	var rotated *Rotation

	if target.MaxBytes > 0 && target.RotateCount >= 1 {
		info, err := os.Stat(target.Path)
		if err == nil && info.Size() >= target.MaxBytes {
			rotated, err = rotate(target, info.Size())
			if err != nil {
				target.fail("rotate", err)
				return nil, err
			}
		} else if err != nil && !os.IsNotExist(err) {
			err = fmt.Errorf("%w: stat: %v", ErrWrite, err)
			target.fail("stat", err)
			return nil, err
		}
	}

	if dir := filepath.Dir(target.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			err = fmt.Errorf("%w: mkdir: %v", ErrWrite, err)
			target.fail("mkdir", err)
			return nil, err
		}
	}

	f, err := os.OpenFile(target.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		err = fmt.Errorf("%w: open: %v", ErrWrite, err)
		target.fail("open", err)
		return nil, err
	}

	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		err = fmt.Errorf("%w: append: %v", ErrWrite, err)
		target.fail("append", err)
		return nil, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		err = fmt.Errorf("%w: sync: %v", ErrWrite, err)
		target.fail("sync", err)
		return nil, err
	}
	if err := f.Close(); err != nil {
		err = fmt.Errorf("%w: close: %v", ErrWrite, err)
		target.fail("close", err)
		return nil, err
	}

	return rotated, nil
}

func (t Target) fail(stage string, err error) {
	if t.OnError != nil {
		t.OnError(stage, err)
	}
}

// rotate shifts numbered backups up by one, oldest first so no backup is
// overwritten mid-shift, then moves the live file into slot 1.
func rotate(target Target, priorSize int64) (*Rotation, error) {
	oldest := backupPath(target.Path, target.RotateCount)
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: drop oldest backup: %v", ErrWrite, err)
	}

	for i := target.RotateCount - 1; i >= 1; i-- {
		src := backupPath(target.Path, i)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		if err := os.Rename(src, backupPath(target.Path, i+1)); err != nil {
			return nil, fmt.Errorf("%w: shift backup %d: %v", ErrWrite, i, err)
		}
	}

	backup := backupPath(target.Path, 1)
	if err := os.Rename(target.Path, backup); err != nil {
		return nil, fmt.Errorf("%w: rotate: %v", ErrWrite, err)
	}

	return &Rotation{PriorSize: priorSize, BackupPath: backup}, nil
}

// backupPath builds "<stem>.<index><suffix>", e.g. node_reports.1.jsonl.
func backupPath(path string, index int) string {
	suffix := filepath.Ext(path)
	stem := strings.TrimSuffix(path, suffix)
	return fmt.Sprintf("%s.%d%s", stem, index, suffix)
}
