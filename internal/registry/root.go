package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	syerrors "github.com/Aman-CERP/syncignore/internal/errors"
)

// ResolveRoot returns the absolute, symlink-resolved form of root.
// It fails with an InvalidRootError when root is missing or not a directory.
func ResolveRoot(root string) (string, error) {
	if root == "" {
		return "", syerrors.InvalidRootError(root, fmt.Errorf("empty path"))
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", syerrors.InvalidRootError(root, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", syerrors.InvalidRootError(root, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", syerrors.InvalidRootError(root, err)
	}
	if !info.IsDir() {
		return "", syerrors.InvalidRootError(root, fmt.Errorf("not a directory"))
	}

	return resolved, nil
}

// RelPath converts absPath to a slash-separated path relative to root.
// The root itself maps to "". Relative paths and paths outside root fail
// with OutOfScopePath.
func RelPath(root, absPath string) (string, error) {
	if !filepath.IsAbs(absPath) {
		return "", syerrors.OutOfScopePath(absPath, root)
	}

	rel, err := filepath.Rel(root, filepath.Clean(absPath))
	if err != nil {
		return "", syerrors.OutOfScopePath(absPath, root)
	}
	rel = filepath.ToSlash(rel)

	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", syerrors.OutOfScopePath(absPath, root)
	}
	if rel == "." {
		return "", nil
	}
	return rel, nil
}
