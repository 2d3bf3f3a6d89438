//go:build !linux && !darwin

package preflight

import (
	"fmt"
	"runtime"
)

// MinFileDescriptors is the minimum required file descriptor limit.
const MinFileDescriptors = 1024

// MinDiskSpaceBytes is the free space wanted for rotated logs (50MB).
const MinDiskSpaceBytes = 50 * 1024 * 1024

// CheckFileDescriptors is not measured on this platform.
func (c *Checker) CheckFileDescriptors() CheckResult {
	return CheckResult{
		Name:    "file_descriptors",
		Status:  StatusWarn,
		Message: fmt.Sprintf("not checked on %s", runtime.GOOS),
	}
}

// CheckDiskSpace is not measured on this platform.
func (c *Checker) CheckDiskSpace(string) CheckResult {
	return CheckResult{
		Name:    "disk_space",
		Status:  StatusWarn,
		Message: fmt.Sprintf("not checked on %s", runtime.GOOS),
	}
}
