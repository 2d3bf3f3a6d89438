package adapter

import (
	"log/slog"
	"sort"
	"sync"
)

// Flagger applies or clears the sync-ignore mark on a path.
// *xattr.Flagger implements it.
type Flagger interface {
	ApplyIgnoredFlag(path string, ignored bool) error
}

// FlaggerFunc adapts a plain function to the Flagger interface.
type FlaggerFunc func(path string, ignored bool) error

// ApplyIgnoredFlag calls f(path, ignored).
func (f FlaggerFunc) ApplyIgnoredFlag(path string, ignored bool) error {
	return f(path, ignored)
}

// LogFlagger logs every decision instead of touching the filesystem.
// Used for dry runs.
type LogFlagger struct {
	Logger *slog.Logger

	// OnlyIgnored suppresses "not ignored" lines.
	OnlyIgnored bool
}

// ApplyIgnoredFlag logs the decision.
func (f LogFlagger) ApplyIgnoredFlag(path string, ignored bool) error {
	if f.OnlyIgnored && !ignored {
		return nil
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("dry run",
		slog.String("path", path),
		slog.Bool("ignored", ignored))
	return nil
}

// RecordingFlagger remembers the last flag applied per path.
// It is safe for concurrent use.
type RecordingFlagger struct {
	mu    sync.Mutex
	flags map[string]bool
	calls int
}

// NewRecordingFlagger creates an empty RecordingFlagger.
func NewRecordingFlagger() *RecordingFlagger {
	return &RecordingFlagger{flags: make(map[string]bool)}
}

// ApplyIgnoredFlag records the flag for path.
func (f *RecordingFlagger) ApplyIgnoredFlag(path string, ignored bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags[path] = ignored
	f.calls++
	return nil
}

// Flag returns the last flag applied to path and whether one was applied.
func (f *RecordingFlagger) Flag(path string) (ignored, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ignored, ok = f.flags[path]
	return ignored, ok
}

// Calls returns the number of ApplyIgnoredFlag calls.
func (f *RecordingFlagger) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Ignored returns the paths currently flagged as ignored, sorted.
func (f *RecordingFlagger) Ignored() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for p, ignored := range f.flags {
		if ignored {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
