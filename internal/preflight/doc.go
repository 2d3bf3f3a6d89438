// Package preflight checks that syncignore can watch a root before it starts.
//
// The package validates:
//   - The watch root is a readable directory
//   - Lock and log files can be written under ~/.syncignore
//   - File descriptor limits (minimum 1024)
//   - The inotify watch limit covers every directory (Linux)
//   - Files under the root accept the ignore attribute
//   - No other syncignore process watches the same root
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, "/home/me/Dropbox")
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
