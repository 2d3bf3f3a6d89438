// Package adapter turns watcher events into registry updates and ignore
// flags. It is the boundary where per-event errors are logged and counted
// instead of propagated.
package adapter

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	syerrors "github.com/Aman-CERP/syncignore/internal/errors"
	"github.com/Aman-CERP/syncignore/internal/gitignore"
	"github.com/Aman-CERP/syncignore/internal/registry"
	"github.com/Aman-CERP/syncignore/internal/resolver"
	"github.com/Aman-CERP/syncignore/internal/watcher"
)

// RuleStore is the part of the registry the adapter mutates.
// *registry.Registry implements it.
type RuleStore interface {
	Root() string
	IsIgnoreFile(name string) bool
	Register(ctx context.Context, absPath string) error
	Unregister(absPath string) error
	UnregisterTree(absDir string) (int, error)
	Rescan(ctx context.Context, relDir string) error
	Resync(ctx context.Context) error
}

// Decider answers ignore queries. *resolver.Engine implements it.
type Decider interface {
	Decide(absPath string, isDir bool) (resolver.Decision, error)
}

// Options configures an Adapter.
type Options struct {
	// Reconcile re-flags the subtree of a directory whose ignore file
	// changed, and the whole tree after a notification overflow.
	Reconcile bool

	// Exclude skips paths during reconciliation walks.
	Exclude *gitignore.Matcher

	// BreakerMaxFailures is the number of consecutive flag failures that
	// pause flagging. Default: 10
	BreakerMaxFailures int

	// BreakerResetTimeout is how long flagging stays paused.
	// Default: 30s
	BreakerResetTimeout time.Duration
}

// DefaultOptions returns the default adapter options.
func DefaultOptions() Options {
	return Options{
		Reconcile:           true,
		BreakerMaxFailures:  10,
		BreakerResetTimeout: 30 * time.Second,
	}
}

// Stats is a snapshot of the adapter counters.
type Stats struct {
	Events      uint64 `json:"events"`
	RuleChanges uint64 `json:"rule_changes"`
	Decisions   uint64 `json:"decisions"`
	Ignored     uint64 `json:"ignored"`
	Flagged     uint64 `json:"flagged"`
	FlagSkipped uint64 `json:"flag_skipped"`
	Errors      uint64 `json:"errors"`
	Resyncs     uint64 `json:"resyncs"`
}

type counters struct {
	events      atomic.Uint64
	ruleChanges atomic.Uint64
	decisions   atomic.Uint64
	ignored     atomic.Uint64
	flagged     atomic.Uint64
	flagSkipped atomic.Uint64
	errors      atomic.Uint64
	resyncs     atomic.Uint64
}

// Adapter classifies events: ignore-file changes update the rule store,
// everything else is decided and flagged.
//
// Handle and Run are meant for a single consumer; events are applied in
// delivery order.
type Adapter struct {
	rules   RuleStore
	decider Decider
	flagger Flagger
	breaker *syerrors.CircuitBreaker
	opts    Options
	root    string

	stats counters
}

// New creates an adapter. A nil flagger only logs decisions.
func New(rules RuleStore, decider Decider, flagger Flagger, opts Options) *Adapter {
	defaults := DefaultOptions()
	if opts.BreakerMaxFailures <= 0 {
		opts.BreakerMaxFailures = defaults.BreakerMaxFailures
	}
	if opts.BreakerResetTimeout <= 0 {
		opts.BreakerResetTimeout = defaults.BreakerResetTimeout
	}

	return &Adapter{
		rules:   rules,
		decider: decider,
		flagger: flagger,
		breaker: syerrors.NewCircuitBreaker("flagger",
			syerrors.WithMaxFailures(opts.BreakerMaxFailures),
			syerrors.WithResetTimeout(opts.BreakerResetTimeout),
			syerrors.WithStateChange(logBreakerChange(opts.BreakerResetTimeout))),
		opts: opts,
		root: rules.Root(),
	}
}

// Run consumes event batches and watch errors until ctx is cancelled or the
// event channel closes. A notification overflow triggers a registry resync.
func (a *Adapter) Run(ctx context.Context, events <-chan []watcher.FileEvent, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case batch, ok := <-events:
			if !ok {
				return nil
			}
			if err := a.HandleBatch(ctx, batch); err != nil {
				return err
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err := a.handleWatchError(ctx, err); err != nil {
				return err
			}
		}
	}
}

// Handle applies one event. It only fails when ctx is cancelled.
func (a *Adapter) Handle(ctx context.Context, ev watcher.FileEvent) error {
	return a.HandleBatch(ctx, []watcher.FileEvent{ev})
}

// HandleBatch applies events in order. Reconciliation of directories whose
// rules changed runs once, after the whole batch. It only fails when ctx is
// cancelled.
func (a *Adapter) HandleBatch(ctx context.Context, batch []watcher.FileEvent) error {
	changed := make(map[string]struct{})
	for _, ev := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.handle(ctx, ev, changed); err != nil {
			return err
		}
	}

	if !a.opts.Reconcile || len(changed) == 0 {
		return nil
	}
	for _, dir := range topmost(changed) {
		if err := a.Reconcile(ctx, dir); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (a *Adapter) Stats() Stats {
	return Stats{
		Events:      a.stats.events.Load(),
		RuleChanges: a.stats.ruleChanges.Load(),
		Decisions:   a.stats.decisions.Load(),
		Ignored:     a.stats.ignored.Load(),
		Flagged:     a.stats.flagged.Load(),
		FlagSkipped: a.stats.flagSkipped.Load(),
		Errors:      a.stats.errors.Load(),
		Resyncs:     a.stats.resyncs.Load(),
	}
}

func (a *Adapter) handle(ctx context.Context, ev watcher.FileEvent, changed map[string]struct{}) error {
	a.stats.events.Add(1)

	if !ev.IsDir && a.rules.IsIgnoreFile(filepath.Base(ev.Path)) {
		return a.handleIgnoreFile(ctx, ev, changed)
	}

	if ev.Operation.Removes() {
		// IsDir may be unknown for paths the watcher never saw, so every
		// removal drops rule sets at or below the path.
		n, err := a.rules.UnregisterTree(ev.Path)
		if err != nil {
			a.recordError("unregister tree failed", ev.Path, err)
		} else if n > 0 {
			a.stats.ruleChanges.Add(uint64(n))
			slog.Info("ignore files removed with directory",
				slog.String("dir", ev.Path),
				slog.Int("files", n))
		}
	}

	if ev.IsDir && ev.Operation == watcher.OpCreate {
		// A directory moved in arrives with its ignore files already in
		// place; load them before its contents are decided.
		if err := a.rescanDir(ctx, ev.Path); err != nil {
			return err
		}
	}

	a.decideAndFlag(ev.Path, ev.IsDir, ev.Operation)
	return nil
}

func (a *Adapter) rescanDir(ctx context.Context, absDir string) error {
	rel, err := registry.RelPath(a.root, absDir)
	if err != nil {
		a.recordError("rescan failed", absDir, err)
		return nil
	}
	if err := a.rules.Rescan(ctx, rel); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.recordError("rescan failed", absDir, err)
	}
	return nil
}

func (a *Adapter) handleIgnoreFile(ctx context.Context, ev watcher.FileEvent, changed map[string]struct{}) error {
	var err error
	if ev.Operation.Removes() {
		err = a.rules.Unregister(ev.Path)
	} else {
		err = a.rules.Register(ctx, ev.Path)
	}

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.recordError("ignore file update failed", ev.Path, err)
		return nil
	}

	a.stats.ruleChanges.Add(1)
	changed[filepath.Dir(ev.Path)] = struct{}{}
	return nil
}

func (a *Adapter) decideAndFlag(path string, isDir bool, op watcher.Operation) {
	d, err := a.decider.Decide(path, isDir)
	if err != nil {
		a.recordError("decision failed", path, err)
		return
	}

	a.stats.decisions.Add(1)
	if d.Ignored {
		a.stats.ignored.Add(1)
	}

	if op.Removes() {
		slog.Debug("path removed",
			slog.String("path", path),
			slog.Bool("ignored", d.Ignored))
		return
	}

	attrs := []any{
		slog.String("path", path),
		slog.String("op", op.String()),
		slog.Bool("ignored", d.Ignored),
	}
	if d.File != "" {
		attrs = append(attrs, slog.String("file", d.File), slog.String("rule", d.Rule.Raw))
	}
	slog.Debug("decision", attrs...)

	a.flag(path, d.Ignored)
}

func (a *Adapter) flag(path string, ignored bool) {
	if a.flagger == nil {
		return
	}

	err := a.breaker.Execute(func() error {
		return a.flagger.ApplyIgnoredFlag(path, ignored)
	})
	switch {
	case err == nil:
		a.stats.flagged.Add(1)
	case errors.Is(err, syerrors.ErrCircuitOpen):
		a.stats.flagSkipped.Add(1)
	default:
		a.recordError("flag failed", path, err)
	}
}

func logBreakerChange(pause time.Duration) func(from, to syerrors.State) {
	return func(from, to syerrors.State) {
		switch to {
		case syerrors.StateOpen:
			slog.Warn("flagging paused after repeated failures",
				slog.Duration("retry_in", pause))
		case syerrors.StateClosed:
			slog.Info("flagging resumed")
		}
	}
}

// Reconcile decides and flags every path below absDir. Directories that are
// ignored are flagged but not descended into; ignore files themselves are
// left alone. Unreadable directories, absDir included, are counted as errors
// and skipped; only a cancelled ctx is returned.
func (a *Adapter) Reconcile(ctx context.Context, absDir string) error {
	start := time.Now()
	var visited int

	err := filepath.WalkDir(absDir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == absDir {
				if !errors.Is(err, fs.ErrNotExist) {
					a.recordError("reconcile failed", path, err)
				}
				return fs.SkipAll
			}
			slog.Debug("reconcile skipped path",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == absDir {
			return nil
		}

		isDir := d.IsDir()
		if a.excluded(path, isDir) {
			if isDir {
				return fs.SkipDir
			}
			return nil
		}
		if !isDir && a.rules.IsIgnoreFile(d.Name()) {
			return nil
		}

		visited++
		decision, derr := a.decider.Decide(path, isDir)
		if derr != nil {
			a.recordError("decision failed", path, derr)
			return nil
		}
		a.stats.decisions.Add(1)
		if decision.Ignored {
			a.stats.ignored.Add(1)
		}
		a.flag(path, decision.Ignored)

		if isDir && decision.Ignored {
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		a.recordError("reconcile failed", absDir, err)
	}

	slog.Debug("reconciled",
		slog.String("dir", absDir),
		slog.Int("paths", visited),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (a *Adapter) handleWatchError(ctx context.Context, err error) error {
	a.stats.errors.Add(1)
	slog.Warn("watch error", syerrors.LogAttrs(err)...)

	if !errors.Is(err, syerrors.ErrNotificationOverflow) {
		return nil
	}

	a.stats.resyncs.Add(1)
	slog.Info("resyncing ignore files after dropped notifications")
	if rerr := a.rules.Resync(ctx); rerr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.recordError("resync failed", a.root, rerr)
	}
	if a.opts.Reconcile {
		return a.Reconcile(ctx, a.root)
	}
	return nil
}

func (a *Adapter) excluded(path string, isDir bool) bool {
	if a.opts.Exclude == nil {
		return false
	}
	rel, err := registry.RelPath(a.root, path)
	if err != nil || rel == "" {
		return false
	}
	return a.opts.Exclude.Match(rel, isDir)
}

func (a *Adapter) recordError(msg, path string, err error) {
	a.stats.errors.Add(1)
	attrs := append([]any{slog.String("path", path)}, syerrors.LogAttrs(err)...)
	slog.Warn(msg, attrs...)
}

// topmost returns the directories of set that have no ancestor in set.
func topmost(set map[string]struct{}) []string {
	dirs := make([]string, 0, len(set))
	for d := range set {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	var out []string
next:
	for _, d := range dirs {
		for _, kept := range out {
			if strings.HasPrefix(d, kept+string(filepath.Separator)) {
				continue next
			}
		}
		out = append(out, d)
	}
	return out
}
