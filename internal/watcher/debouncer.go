package watcher

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Debouncer coalesces rapid file events per path. Events for the same path
// within the debounce window are merged according to these rules:
//   - CREATE + MODIFY = CREATE (file is still new)
//   - CREATE + DELETE = nothing (file never really existed), or DELETE
//     for paths selected by WithKeepDeletes
//   - MODIFY + DELETE = DELETE (file is gone)
//   - DELETE + CREATE = MODIFY (file was replaced)
//
// A flushed batch is ordered by the time each path was first seen, so
// changes to different paths keep their relative order.
type Debouncer struct {
	window  time.Duration
	pending map[string]*pendingEvent
	mu      sync.Mutex
	output  chan []FileEvent
	timer   *time.Timer
	stopCh  chan struct{}
	stopped bool
	seq     uint64

	// onDrop is called with the batch size when a batch cannot be delivered.
	onDrop func(int)

	keepDeletes func(path string) bool
}

// DebouncerOption configures a Debouncer.
type DebouncerOption func(*Debouncer)

// WithKeepDeletes makes CREATE + DELETE coalesce to DELETE for paths where
// keep returns true.
func WithKeepDeletes(keep func(path string) bool) DebouncerOption {
	return func(d *Debouncer) {
		d.keepDeletes = keep
	}
}

type pendingEvent struct {
	event     FileEvent
	firstOp   Operation // Track the first operation for coalescing
	firstSeen time.Time
	seq       uint64
}

// NewDebouncer creates a new debouncer with the given window duration.
// Events are coalesced within this window before being emitted.
func NewDebouncer(window time.Duration, opts ...DebouncerOption) *Debouncer {
	d := &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan []FileEvent, 10),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Add adds an event to be debounced.
// Events for the same path are coalesced according to the coalescing rules.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	path := event.Path
	now := time.Now()

	if existing, ok := d.pending[path]; ok {
		// Coalesce with existing event
		coalesced := d.coalesce(existing, event)
		if coalesced == nil {
			// Events cancelled each other out (CREATE + DELETE)
			delete(d.pending, path)
		} else {
			// A directory removal can be reported twice (by the directory
			// and by its parent); only the first knows it was a directory.
			if coalesced.Operation.Removes() && existing.event.IsDir {
				coalesced.IsDir = true
			}
			coalesced.Timestamp = existing.firstSeen
			existing.event = *coalesced
		}
	} else {
		// New event for this path
		d.seq++
		if event.Timestamp.IsZero() {
			event.Timestamp = now
		}
		d.pending[path] = &pendingEvent{
			event:     event,
			firstOp:   event.Operation,
			firstSeen: event.Timestamp,
			seq:       d.seq,
		}
	}

	d.scheduleFlush()
}

// coalesce merges two events according to the coalescing rules.
// Returns nil if the events cancel each other out.
func (d *Debouncer) coalesce(existing *pendingEvent, next FileEvent) *FileEvent {
	switch existing.firstOp {
	case OpCreate:
		switch next.Operation {
		case OpModify:
			// CREATE + MODIFY = CREATE (keep original)
			kept := existing.event
			return &kept
		case OpDelete, OpRename:
			if d.keepDeletes != nil && d.keepDeletes(next.Path) {
				return &next
			}
			// CREATE + DELETE = nothing
			return nil
		default:
			return &next
		}

	case OpDelete, OpRename:
		if next.Operation == OpCreate {
			// DELETE + CREATE = MODIFY (file was replaced)
			result := next
			result.Operation = OpModify
			return &result
		}
		return &next

	default:
		// MODIFY + anything keeps the latest
		return &next
	}
}

// scheduleFlush schedules a flush after the debounce window.
func (d *Debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.window, func() {
		d.flush()
	})
}

// flush emits all pending events.
func (d *Debouncer) flush() {
	d.mu.Lock()

	if d.stopped || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}

	pending := make([]*pendingEvent, 0, len(d.pending))
	for _, pe := range d.pending {
		pending = append(pending, pe)
	}
	d.pending = make(map[string]*pendingEvent)

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].seq < pending[j].seq
	})

	events := make([]FileEvent, len(pending))
	for i, pe := range pending {
		events[i] = pe.event
	}

	// Non-blocking send
	dropped := false
	select {
	case d.output <- events:
	default:
		dropped = true
	}
	onDrop := d.onDrop
	d.mu.Unlock()

	if dropped {
		slog.Warn("debouncer output full, dropping batch",
			slog.Int("batch_size", len(events)),
		)
		// Called without the lock: the handler may take the owner's locks.
		if onDrop != nil {
			onDrop(len(events))
		}
	}
}

// Output returns the channel of debounced events.
// Events are emitted as batches after the debounce window.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop stops the debouncer and closes the output channel.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.stopCh)
	close(d.output)
}
