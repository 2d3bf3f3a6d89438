package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultInotifyLimitFile holds the per-user inotify watch limit on Linux.
const DefaultInotifyLimitFile = "/proc/sys/fs/inotify/max_user_watches"

// CheckInotifyWatches compares the number of directories under root with the
// inotify watch limit. Every directory costs one watch; past the limit the
// watcher falls back to polling, so this check is not required.
func (c *Checker) CheckInotifyWatches(ctx context.Context, root string) CheckResult {
	result := CheckResult{
		Name:     "inotify_watches",
		Required: false,
	}

	data, err := os.ReadFile(c.inotifyLimit)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			result.Status = StatusPass
			result.Message = "not applicable"
			return result
		}
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot read watch limit: %v", err)
		return result
	}

	limit, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot parse watch limit %q", strings.TrimSpace(string(data)))
		return result
	}

	dirs, err := countDirs(ctx, root)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot count directories: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d directories, limit %d", dirs, limit)
	switch {
	case dirs > limit:
		result.Status = StatusFail
		result.Details = fmt.Sprintf("Watcher will poll. Raise it with 'sudo sysctl fs.inotify.max_user_watches=%d'", dirs*2)
	case dirs > limit/2:
		result.Status = StatusWarn
		result.Details = "Other programs share this limit"
	default:
		result.Status = StatusPass
	}
	return result
}

// countDirs counts directories under root, including root. Unreadable
// subtrees are skipped.
func countDirs(ctx context.Context, root string) (int, error) {
	n := 0
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return nil
		}
		if d.IsDir() {
			n++
		}
		return nil
	})
	return n, err
}

// existingAncestor returns path or its nearest ancestor that exists.
func existingAncestor(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}
