package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/syncignore/internal/adapter"
	"github.com/Aman-CERP/syncignore/internal/config"
	"github.com/Aman-CERP/syncignore/internal/lock"
	"github.com/Aman-CERP/syncignore/internal/output"
	"github.com/Aman-CERP/syncignore/internal/profiling"
	"github.com/Aman-CERP/syncignore/internal/registry"
	"github.com/Aman-CERP/syncignore/internal/resolver"
	"github.com/Aman-CERP/syncignore/internal/watcher"
)

type watchOptions struct {
	root           string
	dryRun         bool
	noInitialApply bool
	forcePolling   bool
	profile        profiling.Options
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch [root]",
		Short: "Watch a directory and flag ignored paths",
		Long: `Watch a directory tree and keep the sync client's ignore attribute in
step with the ignore files inside it.

On start every ignore file is loaded and, unless --no-initial-apply is
given, the whole tree is flagged once. After that, changes are applied as
they happen: a new or edited ignore file re-flags its directory, and new
paths are decided as they appear.

The root defaults to watch.root from the configuration.`,
		Example: `  # Watch your Dropbox folder
  syncignore watch ~/Dropbox

  # Show what would be flagged without touching attributes
  syncignore watch ~/Dropbox --dry-run

  # Write JSON logs for 'syncignore logs'
  syncignore watch ~/Dropbox --log-file ~/.syncignore/logs/watch.log`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.root = args[0]
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return runWatch(ctx, cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Log decisions instead of setting attributes")
	cmd.Flags().BoolVar(&opts.noInitialApply, "no-initial-apply", false, "Skip flagging the whole tree at startup")
	cmd.Flags().BoolVar(&opts.forcePolling, "poll", false, "Poll for changes instead of using native notifications")
	cmd.Flags().StringVar(&opts.profile.CPUProfile, "cpuprofile", "", "Write a CPU profile to this file")
	cmd.Flags().StringVar(&opts.profile.MemProfile, "memprofile", "", "Write a heap profile to this file on exit")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, opts watchOptions) error {
	out := output.New(cmd.OutOrStdout())

	cfg, root, err := loadConfig(opts.root)
	if err != nil {
		return err
	}
	if root == "" {
		return fmt.Errorf("no watch root: pass a directory or set watch.root")
	}
	if opts.dryRun {
		cfg.Apply.Mode = config.ApplyLog
	}
	if opts.noInitialApply {
		cfg.Apply.Initial = false
	}
	if opts.forcePolling {
		cfg.Watch.ForcePolling = true
	}

	if err := startLogging(cmd, cfg); err != nil {
		return err
	}

	reg, err := registry.New(root, registryOptions(cfg))
	if err != nil {
		return err
	}

	prof, err := profiling.Start(opts.profile)
	if err != nil {
		return err
	}
	defer func() {
		if err := prof.Stop(); err != nil {
			slog.Warn("profiling failed", slog.String("error", err.Error()))
		}
	}()

	lk, err := lock.Acquire(lock.DefaultDir(), reg.Root())
	if err != nil {
		return err
	}
	defer func() { _ = lk.Unlock() }()

	out.Statusf("👀", "Watching %s", reg.Root())
	out.KeyValue("mode", cfg.Apply.Mode)

	start := time.Now()
	files, err := reg.ScanTree(ctx)
	if err != nil {
		return ignoreCanceled(err)
	}
	out.Successf("Loaded %d ignore files in %d directories (%s)",
		files, reg.Len(), time.Since(start).Round(time.Millisecond))

	engine, err := resolver.New(reg, resolverOptions(cfg))
	if err != nil {
		return err
	}

	ad := adapter.New(reg, engine, newFlagger(cfg.Apply.Mode), adapterOptions(cfg))

	w, err := watcher.NewHybridWatcher(watcherOptions(cfg, reg))
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	out.Statusf("", "Using %s notifications. Press Ctrl+C to stop.", w.WatcherType())

	// The watcher starts first so changes made during the initial pass are
	// buffered and applied after it.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Start(gctx, reg.Root())
	})
	g.Go(func() error {
		if cfg.Apply.Initial {
			start := time.Now()
			if err := ad.Reconcile(gctx, reg.Root()); err != nil {
				return err
			}
			stats := ad.Stats()
			out.Successf("Initial pass: %d paths, %d ignored (%s)",
				stats.Decisions, stats.Ignored, time.Since(start).Round(time.Millisecond))
		}
		return ad.Run(gctx, w.Events(), w.Errors())
	})

	err = ignoreCanceled(g.Wait())

	stats := ad.Stats()
	slog.Info("watch stopped",
		slog.Uint64("events", stats.Events),
		slog.Uint64("rule_changes", stats.RuleChanges),
		slog.Uint64("decisions", stats.Decisions),
		slog.Uint64("ignored", stats.Ignored),
		slog.Uint64("flagged", stats.Flagged),
		slog.Uint64("flag_skipped", stats.FlagSkipped),
		slog.Uint64("errors", stats.Errors),
		slog.Uint64("resyncs", stats.Resyncs),
		slog.Uint64("dropped_batches", w.DroppedBatches()))
	out.Newline()
	out.Successf("Stopped after %d events, %d rule changes, %d errors, %d dropped batches",
		stats.Events, stats.RuleChanges, stats.Errors, w.DroppedBatches())

	return err
}

// ignoreCanceled treats shutdown by signal as success.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
