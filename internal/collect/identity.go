// Package collect reads the machine signals that feed a health report.
// Collectors are simple OS and file queries; each degrades to an error
// the caller can fold into the report instead of aborting a tick.
package collect

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// NodeIDEnv overrides the node identifier, for multi-node simulation on
// one machine and for stable IDs in demos.
const NodeIDEnv = "NODEHEALTH_NODE_ID"

const devBootIDFile = "boot_id"

var linuxBootIDPath = "/proc/sys/kernel/random/boot_id"

// IdentityResult names the node and its current boot.
type IdentityResult struct {
	NodeID string
	BootID string
	Source string // "env", "hostname" + "linux_proc" or "dev_cache"
}

// CollectIdentity resolves node_id (env override, else hostname) and
// boot_id (kernel boot_id, else a cached per-checkout fallback under
// stateDir so non-Linux dev machines still get a stable scope).
func CollectIdentity(stateDir string) (IdentityResult, error) {
	nodeID := strings.TrimSpace(os.Getenv(NodeIDEnv))
	source := "env"
	if nodeID == "" {
		host, err := os.Hostname()
		if err != nil || strings.TrimSpace(host) == "" {
			return IdentityResult{}, fmt.Errorf("node id unavailable: %v", err)
		}
		nodeID = strings.TrimSpace(host)
		source = "hostname"
	}

	if bootID := readLinuxBootID(); bootID != "" {
		return IdentityResult{NodeID: nodeID, BootID: bootID, Source: source + "+linux_proc"}, nil
	}

	bootID, err := devBootID(stateDir)
	if err != nil {
		return IdentityResult{}, fmt.Errorf("boot id unavailable: %w", err)
	}
	return IdentityResult{NodeID: nodeID, BootID: bootID, Source: source + "+dev_cache"}, nil
}

func readLinuxBootID() string {
	data, err := os.ReadFile(linuxBootIDPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// devBootID returns a cached random boot id, generating one on first use.
// The cache survives process restarts but not a deliberate state wipe,
// which is the closest a dev environment gets to reboot semantics.
func devBootID(stateDir string) (string, error) {
	path := filepath.Join(stateDir, devBootIDFile)
	if data, err := os.ReadFile(path); err == nil {
		if cached := strings.TrimSpace(string(data)); cached != "" {
			return cached, nil
		}
	}

	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	bootID := "dev-" + hex.EncodeToString(b[:])

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(bootID+"\n"), 0o644); err != nil {
		return "", err
	}
	return bootID, nil
}
