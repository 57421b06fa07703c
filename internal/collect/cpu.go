package collect

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

var procLoadavgPath = "/proc/loadavg"

// CPUResult holds load averages and the logical CPU count. Load averages
// are nil on platforms that do not expose /proc/loadavg.
type CPUResult struct {
	Loadavg1m  *float64
	Loadavg5m  *float64
	Loadavg15m *float64
	CPUCount   *int
}

// CollectCPU reads load averages and the logical CPU count. It fails only
// when neither signal is available.
func CollectCPU() (CPUResult, error) {
	var res CPUResult

	if data, err := os.ReadFile(procLoadavgPath); err == nil {
		if l1, l5, l15, err := parseLoadavg(string(data)); err == nil {
			res.Loadavg1m = &l1
			res.Loadavg5m = &l5
			res.Loadavg15m = &l15
		}
	}

	if n := runtime.NumCPU(); n > 0 {
		res.CPUCount = &n
	}

	if res.Loadavg1m == nil && res.CPUCount == nil {
		return CPUResult{}, fmt.Errorf("cpu metrics unavailable")
	}
	return res, nil
}

// parseLoadavg extracts the three load averages from /proc/loadavg
// ("0.52 0.58 0.59 1/389 12345").
func parseLoadavg(content string) (float64, float64, float64, error) {
	fields := strings.Fields(content)
	if len(fields) < 3 {
		return 0, 0, 0, fmt.Errorf("short loadavg: %q", content)
	}
	vals := make([]float64, 3)
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("loadavg field %d: %w", i, err)
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], nil
}
