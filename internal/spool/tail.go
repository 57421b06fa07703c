package spool

import (
	"bytes"
	"io"
	"os"
	"strings"

	"nodehealth/internal/model"
)

const tailBlockSize = 4096

// ReadTail parses the last n lines of a JSONL spool into records, in file
// order. Empty lines are ignored; non-empty lines that are not single JSON
// objects are counted as invalid and skipped. A missing file means "no
// reports yet" and returns an empty window.
func ReadTail(path string, n int) ([]*model.RawRecord, int, error) {
	if n <= 0 {
		return nil, 0, nil
	}

	lines, err := tailLines(path, n)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	records := make([]*model.RawRecord, 0, len(lines))
	invalid := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, ok := model.ParseRawRecord(line)
		if !ok {
			invalid++
			continue
		}
		records = append(records, rec)
	}

	return records, invalid, nil
}

// tailLines reads the last n newline-delimited lines without loading the
// whole file: fixed-size blocks are read backward from the end until
// enough newlines have been seen or the start of the file is reached.
func tailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pos, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}

	var buf []byte
	block := make([]byte, tailBlockSize)
	for pos > 0 && bytes.Count(buf, []byte{'\n'}) <= n {
		readSize := int64(tailBlockSize)
		if readSize > pos {
			readSize = pos
		}
		pos -= readSize
		if _, err := f.ReadAt(block[:readSize], pos); err != nil {
			return nil, err
		}
		buf = append(append([]byte{}, block[:readSize]...), buf...)
	}

	lines := splitLines(buf)
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	out := make([]string, len(lines))
	for i, line := range lines {
		// Substitute invalid byte runs so one corrupt line cannot
		// abort the whole tail read.
		out[i] = strings.ToValidUTF8(string(line), "�")
	}
	return out, nil
}

// splitLines splits on '\n' without producing a phantom empty line after
// a trailing newline.
func splitLines(buf []byte) [][]byte {
	if len(buf) == 0 {
		return nil
	}
	lines := bytes.Split(buf, []byte{'\n'})
	if len(lines) > 0 && len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	return lines
}
