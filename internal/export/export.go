// Package export writes a tail window of spool records as a gzip-compressed
// JSONL snapshot, for archiving or shipping a triage capture elsewhere.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"nodehealth/internal/model"
)

// Write encodes records as JSONL and gzips them onto w, one object per
// line, in the order given.
func Write(w io.Writer, records []*model.RawRecord) error {
	gz, err := gzip.NewWriterLevel(w, gzip.BestSpeed)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(gz)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			gz.Close()
			return fmt.Errorf("encode record: %w", err)
		}
	}

	return gz.Close()
}

// WriteFile writes a snapshot to path, creating parent directories. The
// file is written whole; a failed export leaves no partial snapshot.
func WriteFile(path string, records []*model.RawRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := Write(tmp, records); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// Read decodes a snapshot back into records, mostly for tests and for
// re-feeding an archived window into triage.
func Read(r io.Reader) ([]*model.RawRecord, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	var records []*model.RawRecord
	dec := json.NewDecoder(gz)
	for {
		var rec model.RawRecord
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				return records, nil
			}
			return nil, fmt.Errorf("decode record: %w", err)
		}
		records = append(records, &rec)
	}
}
