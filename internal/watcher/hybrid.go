package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	syerrors "github.com/Aman-CERP/syncignore/internal/errors"
	"github.com/Aman-CERP/syncignore/internal/gitignore"
)

// HybridWatcher implements the Watcher interface using fsnotify as the primary
// watching mechanism with polling as a fallback.
type HybridWatcher struct {
	fsWatcher      *fsnotify.Watcher
	pollWatcher    *PollingWatcher
	useFsnotify    bool
	debouncer      *Debouncer
	exclude        *gitignore.Matcher
	events         chan []FileEvent
	errors         chan error
	stopCh         chan struct{}
	rootPath       string
	opts           Options
	mu             sync.RWMutex
	stopped        bool
	droppedBatches atomic.Uint64

	// dirs holds every directory currently watched, so deletions of
	// directories can be reported with IsDir after the fact.
	dirsMu sync.Mutex
	dirs   map[string]struct{}
}

// Ensure HybridWatcher implements Watcher interface.
var _ Watcher = (*HybridWatcher)(nil)

// NewHybridWatcher creates a new hybrid watcher with the given options.
// Attempts to use fsnotify first, falls back to polling if it fails.
func NewHybridWatcher(opts Options) (*HybridWatcher, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()

	h := &HybridWatcher{
		debouncer: NewDebouncer(opts.DebounceWindow, WithKeepDeletes(opts.KeepDeletes)),
		exclude:   gitignore.New(),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
		dirs:      make(map[string]struct{}),
	}
	h.debouncer.onDrop = h.reportDropped

	for _, pattern := range opts.Exclude {
		h.exclude.AddPattern(pattern)
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			h.fsWatcher = fsw
			h.useFsnotify = true
			return h, nil
		}
		slog.Warn("fsnotify unavailable, falling back to polling",
			slog.String("error", err.Error()))
	}

	h.pollWatcher = NewPollingWatcher(opts.PollInterval)
	h.pollWatcher.exclude = h.exclude
	return h, nil
}

// Start begins watching the given directory.
func (h *HybridWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return syerrors.InvalidRootError(absPath, err)
	}
	if !info.IsDir() {
		return syerrors.InvalidRootError(absPath, fmt.Errorf("not a directory"))
	}

	h.mu.Lock()
	h.rootPath = absPath
	h.mu.Unlock()

	// Start debouncer forwarding
	go h.forwardDebouncedEvents(ctx)

	if h.useFsnotify {
		return h.startFsnotify(ctx)
	}
	return h.startPolling(ctx)
}

// startFsnotify starts the fsnotify-based watcher.
func (h *HybridWatcher) startFsnotify(ctx context.Context) error {
	// Recursively add all directories to watch
	if err := h.addRecursive(h.rootPath, false); err != nil {
		return syerrors.New(syerrors.ErrCodeWatchFailed, "add directories to watcher", err)
	}

	slog.Debug("watching",
		slog.String("root", h.rootPath),
		slog.String("type", h.WatcherType()),
		slog.Int("dirs", h.WatchedDirs()))

	for {
		select {
		case <-ctx.Done():
			_ = h.Stop()
			return ctx.Err()
		case <-h.stopCh:
			return nil
		case event, ok := <-h.fsWatcher.Events:
			if !ok {
				return nil
			}
			h.handleFsnotifyEvent(event)
		case err, ok := <-h.fsWatcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				h.emitError(syerrors.NotificationOverflow(err))
				continue
			}
			h.emitError(syerrors.Wrap(syerrors.ErrCodeWatchFailed, err))
		}
	}
}

// startPolling starts the polling-based watcher.
func (h *HybridWatcher) startPolling(ctx context.Context) error {
	// Forward polling events through debouncer
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.stopCh:
				return
			case event, ok := <-h.pollWatcher.Events():
				if !ok {
					return
				}
				h.debouncer.Add(event)
			case err, ok := <-h.pollWatcher.Errors():
				if !ok {
					return
				}
				h.emitError(err)
			}
		}
	}()

	return h.pollWatcher.Start(ctx, h.rootPath)
}

// handleFsnotifyEvent converts and filters fsnotify events.
func (h *HybridWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	relPath, ok := h.relPath(path)
	if !ok {
		return
	}

	var op Operation
	var isDir bool
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
		isDir = isDirectory(path)
	case event.Op&fsnotify.Write != 0:
		op = OpModify
		isDir = isDirectory(path)
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
		isDir = h.forgetDir(path, false)
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
		isDir = h.forgetDir(path, true)
	default:
		// Chmod carries no content change
		return
	}

	if h.shouldIgnore(relPath, isDir) {
		return
	}

	h.debouncer.Add(FileEvent{
		Path:      path,
		Operation: op,
		IsDir:     isDir,
		Timestamp: time.Now(),
	})

	if op == OpCreate && isDir {
		// Files may land in the directory before its watch exists; report
		// what is already there.
		if err := h.addRecursive(path, true); err != nil {
			h.emitError(syerrors.New(syerrors.ErrCodeWatchFailed,
				fmt.Sprintf("watch new directory %s", path), err))
		}
	}
}

// forwardDebouncedEvents forwards debounced events to the output channel.
func (h *HybridWatcher) forwardDebouncedEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case events, ok := <-h.debouncer.Output():
			if !ok {
				return
			}
			if len(events) == 0 {
				continue
			}
			h.emitEvents(events)
		}
	}
}

// addRecursive adds dir and every non-excluded directory below it to the
// fsnotify watcher. With emit set, entries found below dir are reported as
// creations.
func (h *HybridWatcher) addRecursive(dir string, emit bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil // Skip entries we can't access
		}

		relPath, ok := h.relPath(path)
		if ok && h.shouldIgnore(relPath, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if err := h.fsWatcher.Add(path); err != nil {
				if path == dir {
					return err
				}
				h.emitError(syerrors.Wrap(syerrors.ErrCodeWatchFailed, err))
				return filepath.SkipDir
			}
			h.dirsMu.Lock()
			h.dirs[path] = struct{}{}
			h.dirsMu.Unlock()
		}

		if emit && path != dir {
			h.debouncer.Add(FileEvent{
				Path:      path,
				Operation: OpCreate,
				IsDir:     d.IsDir(),
				Timestamp: time.Now(),
			})
		}
		return nil
	})
}

// forgetDir drops path and everything below it from the watched set and
// reports whether path was a watched directory. Moved directories keep
// their inotify watch under the old name, so unwatch clears it explicitly.
func (h *HybridWatcher) forgetDir(path string, unwatch bool) bool {
	h.dirsMu.Lock()
	defer h.dirsMu.Unlock()

	if _, ok := h.dirs[path]; !ok {
		return false
	}

	prefix := path + string(filepath.Separator)
	for dir := range h.dirs {
		if dir != path && !strings.HasPrefix(dir, prefix) {
			continue
		}
		delete(h.dirs, dir)
		if unwatch {
			_ = h.fsWatcher.Remove(dir)
		}
	}
	return true
}

// relPath returns path relative to the root in slash form.
// ok is false for the root itself and for paths outside it.
func (h *HybridWatcher) relPath(path string) (string, bool) {
	rel, err := filepath.Rel(h.rootPath, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// shouldIgnore returns true if the path is excluded from watching.
func (h *HybridWatcher) shouldIgnore(relPath string, isDir bool) bool {
	return h.exclude.Match(relPath, isDir)
}

// isDirectory reports whether path is a directory, without following symlinks.
func isDirectory(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.IsDir()
}

// emitEvents sends events to the output channel.
func (h *HybridWatcher) emitEvents(events []FileEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.stopped {
		return
	}

	select {
	case h.events <- events:
	default:
		h.reportDroppedLocked(len(events))
	}
}

// reportDropped records a lost batch and tells the consumer to resync.
func (h *HybridWatcher) reportDropped(batchSize int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.reportDroppedLocked(batchSize)
}

func (h *HybridWatcher) reportDroppedLocked(batchSize int) {
	count := h.droppedBatches.Add(1)
	slog.Warn("event buffer full, dropping batch",
		slog.Int("batch_size", batchSize),
		slog.Uint64("total_dropped_batches", count),
	)
	if h.stopped {
		return
	}
	select {
	case h.errors <- syerrors.NotificationOverflow(fmt.Errorf("dropped batch of %d events", batchSize)):
	default:
	}
}

// DroppedBatches returns the number of event batches dropped due to buffer overflow.
func (h *HybridWatcher) DroppedBatches() uint64 {
	return h.droppedBatches.Load()
}

// emitError sends an error to the error channel.
func (h *HybridWatcher) emitError(err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.stopped {
		return
	}

	select {
	case h.errors <- err:
	default:
		slog.Warn("watcher error dropped", slog.String("error", err.Error()))
	}
}

// Stop stops the watcher and releases resources.
func (h *HybridWatcher) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil
	}

	h.stopped = true
	close(h.stopCh)

	// Stop debouncer
	h.debouncer.Stop()

	// Stop underlying watcher
	if h.useFsnotify && h.fsWatcher != nil {
		_ = h.fsWatcher.Close()
	}
	if h.pollWatcher != nil {
		_ = h.pollWatcher.Stop()
	}

	close(h.events)
	close(h.errors)
	return nil
}

// Events returns the channel of batched file events.
func (h *HybridWatcher) Events() <-chan []FileEvent {
	return h.events
}

// Errors returns the channel of errors.
func (h *HybridWatcher) Errors() <-chan error {
	return h.errors
}

// WatcherType returns the type of watcher being used ("fsnotify" or "polling").
func (h *HybridWatcher) WatcherType() string {
	if h.useFsnotify {
		return "fsnotify"
	}
	return "polling"
}

// WatchedDirs returns the number of directories under an fsnotify watch.
func (h *HybridWatcher) WatchedDirs() int {
	h.dirsMu.Lock()
	defer h.dirsMu.Unlock()
	return len(h.dirs)
}
