package registry

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	syerrors "github.com/Aman-CERP/syncignore/internal/errors"
	"github.com/Aman-CERP/syncignore/internal/gitignore"
)

// Rescan re-reads the ignore-file set of one directory: files present on disk
// are registered again and registered files that vanished are dropped. A
// directory that no longer exists loses all ignore files at and below it.
func (r *Registry) Rescan(ctx context.Context, relDir string) error {
	dir := gitignore.Normalize(relDir)
	absDir := r.absPath(dir)

	entries, err := os.ReadDir(absDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			_, uerr := r.UnregisterTree(absDir)
			return uerr
		}
		return syerrors.Wrap(syerrors.ErrCodeFilePermission, err).WithDetail("dir", absDir)
	}

	present := make(map[string]bool)
	for _, e := range entries {
		if !r.IsIgnoreFile(e.Name()) || !isFileEntry(e) {
			continue
		}
		present[e.Name()] = true
		if err := r.Register(ctx, filepath.Join(absDir, e.Name())); err != nil {
			return err
		}
	}

	for _, f := range r.Snapshot(dir).Files() {
		if present[f.Name] {
			continue
		}
		if err := r.Unregister(r.absPath(f.RelPath())); err != nil {
			return err
		}
	}
	return nil
}

// Resync brings the registry back in line with the disk after change
// notifications were dropped. The whole tree is walked because a lost
// Create may have been an ignore file in a directory the registry has
// never seen.
func (r *Registry) Resync(ctx context.Context) error {
	slog.Info("resyncing ignore files", slog.Int("known_files", r.Len()))
	_, err := r.ScanTree(ctx)
	return err
}

// ScanTree walks the whole watch root, registers every ignore file it finds
// and drops registered files that no longer exist. Rules below directories
// that cannot be read are kept. Files are parsed in parallel. It returns the
// number of ignore files found.
func (r *Registry) ScanTree(ctx context.Context) (int, error) {
	var (
		paths      []string
		unreadable []string
	)
	found := make(map[string]bool)

	err := filepath.WalkDir(r.root, func(p string, d fs.DirEntry, err error) error {
		// Check context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rel, relErr := RelPath(r.root, p)
		if relErr != nil {
			return nil
		}

		if err != nil {
			// Skip entries we can't access, remembering directories so
			// their registered rules survive.
			if d == nil || d.IsDir() {
				unreadable = append(unreadable, rel)
			}
			return nil
		}
		if rel == "" {
			return nil
		}

		if d.IsDir() {
			if r.excluded(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !r.IsIgnoreFile(d.Name()) || !isFileEntry(d) || r.excluded(rel, false) {
			return nil
		}

		paths = append(paths, p)
		found[rel] = true
		return nil
	})
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for _, p := range paths {
		g.Go(func() error {
			return r.Register(gctx, p)
		})
	}
	if err := g.Wait(); err != nil {
		return len(paths), err
	}

	for _, dir := range r.Dirs() {
		for _, f := range r.Snapshot(dir).Files() {
			if found[f.RelPath()] || within(dir, unreadable) {
				continue
			}
			if err := r.Unregister(r.absPath(f.RelPath())); err != nil {
				return len(paths), err
			}
		}
	}

	slog.Info("ignore files scanned",
		slog.String("root", r.root),
		slog.Int("files", len(paths)),
		slog.Int("dirs", len(r.Dirs())))

	return len(paths), nil
}

// within reports whether dir is one of dirs or below one of them. The root
// is "".
func within(dir string, dirs []string) bool {
	for _, d := range dirs {
		if d == "" || dir == d || strings.HasPrefix(dir, d+"/") {
			return true
		}
	}
	return false
}

func (r *Registry) excluded(rel string, isDir bool) bool {
	return r.opts.Exclude != nil && r.opts.Exclude.Match(rel, isDir)
}

// isFileEntry accepts regular files and symlinks; ParseFile follows the latter.
func isFileEntry(e fs.DirEntry) bool {
	return e.Type().IsRegular() || e.Type()&fs.ModeSymlink != 0
}
