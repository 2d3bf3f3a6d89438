//go:build linux || darwin

package preflight

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/Aman-CERP/syncignore/internal/profiling"
)

// MinFileDescriptors is the minimum required file descriptor limit.
const MinFileDescriptors = 1024

// MinDiskSpaceBytes is the free space wanted for rotated logs (50MB).
const MinDiskSpaceBytes = 50 * 1024 * 1024

// CheckFileDescriptors checks if the file descriptor limit is sufficient.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{
		Name:     "file_descriptors",
		Required: true,
	}

	var rLimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", rLimit.Cur, MinFileDescriptors)
	if rLimit.Cur < MinFileDescriptors {
		result.Status = StatusFail
		result.Details = "Run 'ulimit -n 10240' to increase the limit"
		return result
	}

	result.Status = StatusPass
	return result
}

// CheckDiskSpace checks that the filesystem holding path has room for logs.
// The nearest existing ancestor of path is measured.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	result := CheckResult{
		Name:     "disk_space",
		Required: false,
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(existingAncestor(path), &stat); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	available := stat.Bavail * uint64(stat.Bsize)
	result.Message = fmt.Sprintf("%s free (minimum: %s)", profiling.FormatBytes(available), profiling.FormatBytes(MinDiskSpaceBytes))
	if available < MinDiskSpaceBytes {
		result.Status = StatusWarn
		result.Details = "Log rotation may fail; set logging.file elsewhere"
		return result
	}

	result.Status = StatusPass
	return result
}
