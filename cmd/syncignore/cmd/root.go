// Package cmd provides the CLI commands for syncignore.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/syncignore/internal/config"
	syerrors "github.com/Aman-CERP/syncignore/internal/errors"
	"github.com/Aman-CERP/syncignore/internal/logging"
	"github.com/Aman-CERP/syncignore/pkg/version"
)

// Persistent flags
var (
	debugMode  bool
	configFile string
	logFile    string
)

// loggingCleanup closes the log file opened by startLogging.
var loggingCleanup func()

// NewRootCmd creates the root command for the syncignore CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "syncignore",
		Short: "Keep gitignored files out of your sync client",
		Long: `syncignore watches a synced directory (such as ~/Dropbox) and marks every
path matched by a .gitignore or .dropboxignore file with the extended
attribute the sync client reads, so build output and dependencies stay local.

Rules follow git semantics: nested ignore files, negation, directory-only
patterns, and excluded parent directories.

Run 'syncignore watch ~/Dropbox' to get started.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("syncignore version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to an explicit config file")
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write JSON logs to this file instead of stderr")

	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		stopLogging()
	}

	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints a failure to stderr.
func Execute() error {
	cmd := NewRootCmd()
	err := cmd.Execute()
	stopLogging()
	if err != nil {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), syerrors.FormatForCLI(err))
	}
	return err
}

// loadConfig loads the configuration for the root given on the command line.
// Without one, watch.root from the user or explicit config is used, and the
// project file of that root is layered in. The returned root is "" when
// neither is set.
func loadConfig(rootArg string) (*config.Config, string, error) {
	root := expandHome(rootArg)

	cfg, err := config.Load(root, configFile)
	if err != nil {
		return nil, "", err
	}

	if root == "" && cfg.Watch.Root != "" {
		root = expandHome(cfg.Watch.Root)
		if cfg, err = config.Load(root, configFile); err != nil {
			return nil, "", err
		}
	}

	if debugMode {
		cfg.Logging.Level = "debug"
	}
	if logFile != "" {
		cfg.Logging.File = logFile
	}
	return cfg, root, nil
}

// startLogging installs the logger described by cfg as the default logger.
// Logs go to stderr unless a log file is configured.
func startLogging(cmd *cobra.Command, cfg *config.Config) error {
	stopLogging()

	logger, cleanup, err := logging.Setup(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		FilePath:  expandHome(cfg.Logging.File),
		MaxSizeMB: logging.DefaultConfig().MaxSizeMB,
		MaxFiles:  logging.DefaultConfig().MaxFiles,
	}, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("logging started",
		slog.String("level", cfg.Logging.Level),
		slog.String("file", cfg.Logging.File),
		slog.String("version", version.Version))
	return nil
}

func stopLogging() {
	if loggingCleanup != nil {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
		loggingCleanup()
		loggingCleanup = nil
	}
}

// expandHome replaces a leading ~ with the home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
