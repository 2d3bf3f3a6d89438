package cmd

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/syncignore/internal/config"
	"github.com/Aman-CERP/syncignore/internal/preflight"
)

// errDoctorFailed is returned when a required check fails.
var errDoctorFailed = errors.New("system check failed")

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor [root]",
		Short: "Check that a directory can be watched",
		Long: `Run diagnostics to ensure syncignore can watch a directory.

Checks:
  - Configuration loads and validates
  - Watch root is a readable directory
  - ~/.syncignore is writable (locks and logs)
  - File descriptor limit (1024 minimum)
  - Free disk space for logs
  - inotify watch limit covers every directory (Linux)
  - Files accept the ignore attribute
  - No other syncignore process watches the root

The root defaults to watch.root from the configuration, then the current
directory.`,
		Example: `  # Check your Dropbox folder
  syncignore doctor ~/Dropbox

  # JSON output for scripting
  syncignore doctor ~/Dropbox --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) > 0 {
				root = args[0]
			}
			return runDoctor(cmd, root, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// doctorReport is the structure for JSON output.
type doctorReport struct {
	Root   string                  `json:"root"`
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func runDoctor(cmd *cobra.Command, rootArg string, verbose, jsonOutput bool) error {
	configResult := preflight.CheckResult{Name: "config", Required: true}

	cfg, root, err := loadConfig(rootArg)
	if err != nil {
		configResult.Status = preflight.StatusFail
		configResult.Message = err.Error()
		cfg, root = config.NewConfig(), expandHome(rootArg)
	} else {
		configResult.Status = preflight.StatusPass
		configResult.Message = "valid"
		if path := config.FindProjectConfig(root); path != "" {
			configResult.Details = path
		}
	}
	if root == "" {
		root, _ = os.Getwd()
	}

	if err := startLogging(cmd, cfg); err != nil {
		return err
	}

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := append([]preflight.CheckResult{configResult}, checker.RunAll(cmd.Context(), root)...)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(doctorReport{
			Root:   root,
			Status: checker.SummaryStatus(results),
			Checks: results,
		}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return errDoctorFailed
	}
	return nil
}
