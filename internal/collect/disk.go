package collect

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// DiskResult holds total and free bytes for one mount point. Free space
// is what an unprivileged writer can actually use (f_bavail).
type DiskResult struct {
	TotalBytes *uint64
	FreeBytes  *uint64
}

// CollectDisk stats the filesystem backing mount.
func CollectDisk(mount string) (DiskResult, error) {
	var fs unix.Statfs_t
	if err := unix.Statfs(mount, &fs); err != nil {
		return DiskResult{}, fmt.Errorf("statfs %s: %w", mount, err)
	}

	bsize := uint64(fs.Bsize)
	total := fs.Blocks * bsize
	free := fs.Bavail * bsize
	return DiskResult{TotalBytes: &total, FreeBytes: &free}, nil
}
