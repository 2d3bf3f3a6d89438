package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/syncignore/internal/lock"
	"github.com/Aman-CERP/syncignore/internal/xattr"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status as PASS, WARN or FAIL in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose      bool
	output       io.Writer
	stateDir     string
	inotifyLimit string
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// WithStateDir sets the directory holding lock and log files.
func WithStateDir(dir string) Option {
	return func(c *Checker) {
		c.stateDir = dir
	}
}

// WithInotifyLimitFile overrides the file the inotify watch limit is read
// from.
func WithInotifyLimitFile(path string) Option {
	return func(c *Checker) {
		c.inotifyLimit = path
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output:       os.Stdout,
		stateDir:     filepath.Dir(lock.DefaultDir()),
		inotifyLimit: DefaultInotifyLimitFile,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs all preflight checks for the watch root and returns the results.
// Checks that need the root are skipped when the root itself is unusable.
func (c *Checker) RunAll(ctx context.Context, root string) []CheckResult {
	var results []CheckResult

	rootResult := c.CheckRoot(root)
	results = append(results, rootResult)

	results = append(results, c.CheckStateDir())
	results = append(results, c.CheckFileDescriptors())
	results = append(results, c.CheckDiskSpace(c.stateDir))

	if rootResult.Status == StatusFail {
		return results
	}

	results = append(results, c.CheckInotifyWatches(ctx, root))
	results = append(results, c.CheckExtendedAttributes(root))
	results = append(results, c.CheckInstanceLock(root))

	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "syncignore doctor")
	_, _ = fmt.Fprintln(c.output, "=================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if r.Details != "" && (c.verbose || r.Status != StatusPass) {
			_, _ = fmt.Fprintf(c.output, "       %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	status := c.SummaryStatus(results)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(status))

	var warnings, errs []string
	for _, r := range results {
		if r.IsCritical() {
			errs = append(errs, r.Name+": "+r.Message)
		} else if r.Status != StatusPass {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}

	if len(errs) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d error(s):\n", len(errs))
		for _, e := range errs {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", e)
		}
	}

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d warning(s):\n", len(warnings))
		for _, w := range warnings {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", w)
		}
	}
}

// CheckRoot checks that the watch root is a readable directory.
func (c *Checker) CheckRoot(root string) CheckResult {
	result := CheckResult{
		Name:     "watch_root",
		Required: true,
	}

	info, err := os.Stat(root)
	switch {
	case err != nil:
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot access %s: %v", root, err)
		return result
	case !info.IsDir():
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s is not a directory", root)
		return result
	}

	if _, err := os.ReadDir(root); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot read %s: %v", root, err)
		return result
	}

	result.Status = StatusPass
	result.Message = root
	return result
}

// CheckStateDir checks that lock and log files can be written.
func (c *Checker) CheckStateDir() CheckResult {
	result := CheckResult{
		Name:     "state_dir",
		Required: true,
	}

	if err := os.MkdirAll(c.stateDir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", c.stateDir, err)
		return result
	}

	testFile := filepath.Join(c.stateDir, ".syncignore-preflight-test")
	f, err := os.Create(testFile)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	result.Status = StatusPass
	result.Message = c.stateDir
	return result
}

// CheckExtendedAttributes probes whether files under root can carry the
// ignore attribute. Without it only apply.mode log or none is useful.
func (c *Checker) CheckExtendedAttributes(root string) CheckResult {
	result := CheckResult{
		Name:     "extended_attributes",
		Required: false,
	}

	if err := xattr.Supported(root); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot set %s: %v", xattr.AttrName, err)
		if errors.Is(err, xattr.ErrUnsupported) {
			result.Message = "not supported on this platform"
		}
		result.Details = "Set apply.mode to 'log' to run without tagging"
		return result
	}

	result.Status = StatusPass
	result.Message = xattr.AttrName
	return result
}

// CheckInstanceLock warns when another process is already watching root.
func (c *Checker) CheckInstanceLock(root string) CheckResult {
	result := CheckResult{
		Name:     "instance_lock",
		Required: false,
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	l := lock.ForRoot(filepath.Join(c.stateDir, "locks"), abs)
	acquired, err := l.TryLock()
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot check lock: %v", err)
		return result
	}
	if !acquired {
		result.Status = StatusWarn
		result.Message = "another syncignore process is watching this root"
		result.Details = l.Path()
		return result
	}
	_ = l.Unlock()

	result.Status = StatusPass
	result.Message = "no other watcher"
	return result
}
