package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	syerrors "github.com/Aman-CERP/syncignore/internal/errors"
	"github.com/Aman-CERP/syncignore/internal/gitignore"
)

// DefaultSuffixes are the ignore-file naming conventions recognized by default.
var DefaultSuffixes = []string{".gitignore", ".dropboxignore"}

// Options configures a Registry.
type Options struct {
	// Suffixes are the filename suffixes that mark an ignore file.
	Suffixes []string

	// MaxFileSize bounds how much of an ignore file is read.
	MaxFileSize int64

	// ReadTimeout bounds one Register call, retries included.
	ReadTimeout time.Duration

	// Retry controls re-reading an ignore file after a transient failure.
	Retry syerrors.RetryConfig

	// Exclude lists paths ScanTree never enters. May be nil.
	Exclude *gitignore.Matcher

	// Concurrency bounds parallel parsing in ScanTree. Zero means 8.
	Concurrency int
}

// DefaultOptions returns the default registry options.
func DefaultOptions() Options {
	return Options{
		Suffixes:    DefaultSuffixes,
		MaxFileSize: gitignore.DefaultMaxFileSize,
		ReadTimeout: 2 * time.Second,
		Retry:       syerrors.DefaultRetryConfig(),
		Concurrency: 8,
	}
}

// Registry maps each directory of the watch root to the ignore files declared
// directly inside it.
//
// Each directory's rule set is an immutable value swapped under the write
// lock, so readers see either the state before or after a mutation, never a
// mix. A directory without ignore files has no entry.
type Registry struct {
	root string
	opts Options

	mu   sync.RWMutex
	dirs map[string]DirectoryRuleSet

	generation atomic.Uint64
}

// New creates an empty registry for root.
// root must be an existing directory (see ResolveRoot).
func New(root string, opts Options) (*Registry, error) {
	resolved, err := ResolveRoot(root)
	if err != nil {
		return nil, err
	}

	defaults := DefaultOptions()
	if len(opts.Suffixes) == 0 {
		opts.Suffixes = defaults.Suffixes
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = defaults.MaxFileSize
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaults.ReadTimeout
	}
	if opts.Retry.Multiplier <= 0 {
		opts.Retry = defaults.Retry
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaults.Concurrency
	}

	return &Registry{
		root: resolved,
		opts: opts,
		dirs: make(map[string]DirectoryRuleSet),
	}, nil
}

// Root returns the resolved watch root.
func (r *Registry) Root() string {
	return r.root
}

// IsIgnoreFile reports whether name follows an ignore-file naming convention.
func (r *Registry) IsIgnoreFile(name string) bool {
	for _, suffix := range r.opts.Suffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Register parses the ignore file at absPath and inserts or replaces it under
// its parent directory. Registering the same path again replaces its rules.
//
// Unreadable or malformed content is not an error: the file is registered
// with an empty rule set and a warning is logged. A file that vanished before
// it could be read is unregistered instead.
func (r *Registry) Register(ctx context.Context, absPath string) error {
	rel, err := RelPath(r.root, absPath)
	if err != nil {
		return err
	}
	if rel == "" {
		return syerrors.ValidationError("watch root cannot be an ignore file", nil)
	}

	dir, name := splitRel(rel)
	if !r.IsIgnoreFile(name) {
		return syerrors.ValidationError(fmt.Sprintf("%s is not an ignore file", name), nil).
			WithDetail("path", absPath)
	}

	matcher, parseErr := r.parse(ctx, absPath)
	if parseErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(parseErr, fs.ErrNotExist) {
			slog.Debug("ignore file vanished before read",
				slog.String("path", rel))
			r.remove(dir, name)
			return nil
		}
		if !errors.Is(parseErr, syerrors.ErrIgnoreFileParse) {
			parseErr = syerrors.ParseError(absPath, parseErr)
		}
		slog.Warn("ignore file unreadable, using empty rule set",
			syerrors.LogAttrs(parseErr)...)
		matcher = gitignore.New()
	}

	file := &IgnoreFile{Dir: dir, Name: name, Matcher: matcher, ParseErr: parseErr}

	r.mu.Lock()
	current := r.dirs[dir]
	previous, existed := current.File(name)
	r.dirs[dir] = current.with(file)
	r.generation.Add(1)
	r.mu.Unlock()

	if existed {
		added, removed := gitignore.DiffRules(previous.Matcher, matcher)
		if len(added) == 0 && len(removed) == 0 {
			slog.Debug("ignore file unchanged", slog.String("path", rel))
			return nil
		}
		slog.Info("ignore file updated",
			slog.String("path", rel),
			slog.Int("rules", matcher.Len()),
			slog.Any("added", added),
			slog.Any("removed", removed))
		return nil
	}

	slog.Info("ignore file registered",
		slog.String("path", rel),
		slog.Int("rules", matcher.Len()))
	return nil
}

// Unregister removes the ignore file at absPath. Unknown paths are a no-op.
func (r *Registry) Unregister(absPath string) error {
	rel, err := RelPath(r.root, absPath)
	if err != nil {
		return err
	}
	if rel == "" {
		return nil
	}

	dir, name := splitRel(rel)
	if r.remove(dir, name) {
		slog.Info("ignore file unregistered", slog.String("path", rel))
	}
	return nil
}

// UnregisterTree removes every ignore file at or below absDir and returns how
// many were removed. It covers directory deletions whose per-file
// notifications were coalesced or lost.
func (r *Registry) UnregisterTree(absDir string) (int, error) {
	rel, err := RelPath(r.root, absDir)
	if err != nil {
		return 0, err
	}

	removed := 0
	r.mu.Lock()
	for dir, set := range r.dirs {
		if !isWithin(dir, rel) {
			continue
		}
		removed += set.Len()
		delete(r.dirs, dir)
	}
	if removed > 0 {
		r.generation.Add(1)
	}
	r.mu.Unlock()

	if removed > 0 {
		slog.Info("ignore files unregistered with directory",
			slog.String("dir", rel),
			slog.Int("files", removed))
	}
	return removed, nil
}

// Snapshot returns the rule set of relDir, or an empty set if the directory
// has no ignore files.
func (r *Registry) Snapshot(relDir string) DirectoryRuleSet {
	dir := gitignore.Normalize(relDir)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if set, ok := r.dirs[dir]; ok {
		return set
	}
	return DirectoryRuleSet{dir: dir}
}

// Dirs returns the directories that currently hold ignore files, sorted.
func (r *Registry) Dirs() []string {
	r.mu.RLock()
	dirs := make([]string, 0, len(r.dirs))
	for dir := range r.dirs {
		dirs = append(dirs, dir)
	}
	r.mu.RUnlock()

	sort.Strings(dirs)
	return dirs
}

// Len returns the number of registered ignore files.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, set := range r.dirs {
		n += set.Len()
	}
	return n
}

// Generation returns a counter that increases on every mutation.
func (r *Registry) Generation() uint64 {
	return r.generation.Load()
}

func (r *Registry) remove(dir, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.dirs[dir]
	if !ok {
		return false
	}
	next, removed := set.without(name)
	if !removed {
		return false
	}
	if next.Empty() {
		delete(r.dirs, dir)
	} else {
		r.dirs[dir] = next
	}
	r.generation.Add(1)
	return true
}

// parse reads absPath with the configured timeout and retry budget.
// Content errors and missing files are not retried.
func (r *Registry) parse(ctx context.Context, absPath string) (*gitignore.Matcher, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.ReadTimeout)
	defer cancel()

	type result struct {
		matcher *gitignore.Matcher
		err     error
	}

	return syerrors.RetryWithResult(ctx, r.opts.Retry, func() (*gitignore.Matcher, error) {
		done := make(chan result, 1)
		go func() {
			m, err := gitignore.ParseFile(absPath, r.opts.MaxFileSize)
			done <- result{matcher: m, err: err}
		}()

		select {
		case res := <-done:
			if res.err != nil && !transient(res.err) {
				return nil, syerrors.Permanent(res.err)
			}
			return res.matcher, res.err
		case <-ctx.Done():
			return nil, syerrors.ParseError(absPath, ctx.Err())
		}
	})
}

func transient(err error) bool {
	switch {
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, gitignore.ErrBinaryContent),
		errors.Is(err, gitignore.ErrFileTooLarge):
		return false
	}
	return true
}

// splitRel splits a root-relative file path into its directory and name.
func splitRel(rel string) (dir, name string) {
	dir, name = path.Split(rel)
	return strings.TrimSuffix(dir, "/"), name
}

// isWithin reports whether dir equals base or lies below it.
// The root ("") contains everything.
func isWithin(dir, base string) bool {
	if base == "" || dir == base {
		return true
	}
	return strings.HasPrefix(dir, base+"/")
}

// absPath converts a root-relative path back to an absolute one.
func (r *Registry) absPath(rel string) string {
	return filepath.Join(r.root, filepath.FromSlash(rel))
}
