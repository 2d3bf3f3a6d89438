package cmd

import (
	"log/slog"
	"path/filepath"

	"github.com/Aman-CERP/syncignore/internal/adapter"
	"github.com/Aman-CERP/syncignore/internal/config"
	syerrors "github.com/Aman-CERP/syncignore/internal/errors"
	"github.com/Aman-CERP/syncignore/internal/gitignore"
	"github.com/Aman-CERP/syncignore/internal/registry"
	"github.com/Aman-CERP/syncignore/internal/resolver"
	"github.com/Aman-CERP/syncignore/internal/watcher"
	"github.com/Aman-CERP/syncignore/internal/xattr"
)

// newFlagger returns the flagger for an apply mode. Tests replace it.
var newFlagger = func(mode string) adapter.Flagger {
	switch mode {
	case config.ApplyXattr:
		return xattr.New()
	case config.ApplyLog:
		return adapter.LogFlagger{Logger: slog.Default()}
	default:
		return nil
	}
}

func excludeMatcher(cfg *config.Config) *gitignore.Matcher {
	m := gitignore.New()
	for _, pattern := range cfg.Watch.Exclude {
		m.AddPattern(pattern)
	}
	return m
}

func registryOptions(cfg *config.Config) registry.Options {
	opts := registry.DefaultOptions()
	opts.Suffixes = cfg.Watch.IgnoreSuffixes
	opts.MaxFileSize = cfg.Rules.MaxFileSize
	opts.ReadTimeout = cfg.ReadTimeoutDuration()
	opts.Retry = syerrors.DefaultRetryConfig()
	opts.Retry.MaxRetries = cfg.Rules.ReadRetries
	opts.Exclude = excludeMatcher(cfg)
	return opts
}

func resolverOptions(cfg *config.Config) resolver.Options {
	return resolver.Options{CacheSize: cfg.Resolver.CacheSize}
}

// watcherOptions keeps ignore-file removals that follow a create in the same
// window, since the create may have replaced a registered file.
func watcherOptions(cfg *config.Config, reg *registry.Registry) watcher.Options {
	return watcher.Options{
		DebounceWindow:  cfg.DebounceDuration(),
		PollInterval:    cfg.PollIntervalDuration(),
		EventBufferSize: cfg.Watch.EventBufferSize,
		Exclude:         cfg.Watch.Exclude,
		ForcePolling:    cfg.Watch.ForcePolling,
		KeepDeletes: func(path string) bool {
			return reg.IsIgnoreFile(filepath.Base(path))
		},
	}
}

func adapterOptions(cfg *config.Config) adapter.Options {
	opts := adapter.DefaultOptions()
	opts.Reconcile = cfg.Apply.Reconcile
	opts.Exclude = excludeMatcher(cfg)
	return opts
}
