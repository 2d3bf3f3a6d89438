package watcher

import (
	"context"
	"time"

	syerrors "github.com/Aman-CERP/syncignore/internal/errors"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file or directory was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file or directory was deleted.
	OpDelete
	// OpRename indicates a file or directory was moved away from Path.
	// The new location, if inside the root, arrives as a separate OpCreate.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Removes reports whether the operation means Path no longer exists.
func (op Operation) Removes() bool {
	return op == OpDelete || op == OpRename
}

// FileEvent represents a file system event.
type FileEvent struct {
	// Path is the absolute path of the file or directory.
	Path string

	// Operation is the type of file system operation.
	Operation Operation

	// IsDir indicates if the event is for a directory.
	// For deletions it reflects what the watcher last knew about the path.
	IsDir bool

	// Timestamp is when the event was first detected.
	Timestamp time.Time
}

// Watcher defines the interface for file system watching.
type Watcher interface {
	// Start begins watching the given directory recursively.
	// Returns an error if watching fails to initialize.
	// The watcher runs until Stop is called or context is cancelled.
	Start(ctx context.Context, path string) error

	// Stop stops the watcher and releases resources.
	// Safe to call multiple times.
	Stop() error

	// Events returns a channel of debounced event batches.
	// The channel is closed when the watcher stops.
	Events() <-chan []FileEvent

	// Errors returns a channel of watcher errors.
	// Non-fatal errors are sent here; the watcher continues running.
	// Dropped notifications arrive as ERR_301_NOTIFICATION_OVERFLOW.
	// The channel is closed when the watcher stops.
	Errors() <-chan error
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the time to wait before emitting coalesced events.
	// Default: 200ms
	DebounceWindow time.Duration

	// PollInterval is the interval for polling mode (fallback).
	// Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the size of the event channel buffer.
	// Default: 1000
	EventBufferSize int

	// Exclude lists paths that are never watched or reported.
	// Patterns use gitignore syntax and are relative to the watch root.
	Exclude []string

	// ForcePolling skips fsnotify and always polls.
	ForcePolling bool

	// KeepDeletes reports paths whose removal is delivered even when they
	// were created within the same debounce window. A create may have
	// replaced an existing file (rename over it), so for files that carry
	// state downstream the removal cannot be dropped.
	KeepDeletes func(path string) bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  200 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 1000,
		Exclude:         nil,
	}
}

// Validate validates the options and returns an error if invalid.
func (o Options) Validate() error {
	if o.DebounceWindow < 0 {
		return syerrors.ValidationError("debounce window must not be negative", nil)
	}
	if o.PollInterval < 0 {
		return syerrors.ValidationError("poll interval must not be negative", nil)
	}
	if o.EventBufferSize < 0 {
		return syerrors.ValidationError("event buffer size must not be negative", nil)
	}
	return nil
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}
