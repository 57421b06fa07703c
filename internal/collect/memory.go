package collect

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var procMeminfoPath = "/proc/meminfo"

// MemoryResult holds total and available memory in bytes.
type MemoryResult struct {
	TotalBytes     *uint64
	AvailableBytes *uint64
}

// CollectMemory reads MemTotal and MemAvailable from /proc/meminfo.
func CollectMemory() (MemoryResult, error) {
	f, err := os.Open(procMeminfoPath)
	if err != nil {
		return MemoryResult{}, fmt.Errorf("meminfo unavailable: %w", err)
	}
	defer f.Close()

	return parseMeminfo(f)
}

func parseMeminfo(r io.Reader) (MemoryResult, error) {
	var res MemoryResult

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			if v, ok := meminfoKB(line); ok {
				res.TotalBytes = &v
			}
		case strings.HasPrefix(line, "MemAvailable:"):
			if v, ok := meminfoKB(line); ok {
				res.AvailableBytes = &v
			}
		}
		if res.TotalBytes != nil && res.AvailableBytes != nil {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return MemoryResult{}, fmt.Errorf("meminfo read: %w", err)
	}

	if res.TotalBytes == nil {
		return MemoryResult{}, fmt.Errorf("meminfo missing MemTotal")
	}
	return res, nil
}

// meminfoKB parses a "MemTotal:  16314372 kB" line into bytes.
func meminfoKB(line string) (uint64, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, false
	}
	kb, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return kb * 1024, true
}
