package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/syncignore/internal/output"
	"github.com/Aman-CERP/syncignore/internal/registry"
	"github.com/Aman-CERP/syncignore/internal/resolver"
)

type checkOptions struct {
	explain    bool
	jsonOutput bool
}

// checkResult is one path in check --json output.
type checkResult struct {
	Path             string `json:"path"`
	Ignored          bool   `json:"ignored"`
	IsDir            bool   `json:"is_dir"`
	Verdict          string `json:"verdict,omitempty"`
	File             string `json:"file,omitempty"`
	Line             int    `json:"line,omitempty"`
	Rule             string `json:"rule,omitempty"`
	ExcludedAncestor string `json:"excluded_ancestor,omitempty"`
	Error            string `json:"error,omitempty"`
}

func newCheckCmd() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check <root> <path>...",
		Short: "Show whether paths are ignored",
		Long: `Load every ignore file under root and print the decision for each path.

Relative paths are resolved against root. A path that does not exist is
treated as a file unless it ends with a slash.

Nothing is flagged; use this to test rules before running 'syncignore watch'.`,
		Example: `  # Is the build directory ignored?
  syncignore check ~/Dropbox/project build/

  # Which rule decided?
  syncignore check ~/Dropbox/project node_modules/lodash --explain

  # Machine-readable output
  syncignore check ~/Dropbox/project a.log b.txt --json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args[0], args[1:], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show the deciding ignore file and rule")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runCheck(cmd *cobra.Command, rootArg string, paths []string, opts checkOptions) error {
	cfg, root, err := loadConfig(rootArg)
	if err != nil {
		return err
	}
	if err := startLogging(cmd, cfg); err != nil {
		return err
	}

	reg, err := registry.New(root, registryOptions(cfg))
	if err != nil {
		return err
	}
	if _, err := reg.ScanTree(cmd.Context()); err != nil {
		return err
	}
	engine, err := resolver.New(reg, resolverOptions(cfg))
	if err != nil {
		return err
	}

	given, err := filepath.Abs(root)
	if err != nil {
		given = root
	}

	results := make([]checkResult, 0, len(paths))
	failed := 0
	for _, p := range paths {
		abs := resolveCheckPath(reg.Root(), given, p)
		isDir := isDirPath(abs, p)

		d, err := engine.Decide(abs, isDir)
		if err != nil {
			failed++
			results = append(results, checkResult{Path: p, IsDir: isDir, Error: err.Error()})
			continue
		}
		results = append(results, toCheckResult(d))
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		printCheckResults(output.New(cmd.OutOrStdout()), results, opts.explain)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d paths could not be checked", failed, len(paths))
	}
	return nil
}

func toCheckResult(d resolver.Decision) checkResult {
	r := checkResult{
		Path:             d.Path,
		Ignored:          d.Ignored,
		IsDir:            d.IsDir,
		Verdict:          d.Verdict.String(),
		File:             d.File,
		ExcludedAncestor: d.ExcludedAncestor,
	}
	if d.File != "" {
		r.Line = d.Rule.Line
		r.Rule = d.Rule.Raw
	}
	return r
}

func printCheckResults(out *output.Writer, results []checkResult, explain bool) {
	for _, r := range results {
		if r.Error != "" {
			out.Errorf("%s: %s", r.Path, r.Error)
			continue
		}

		path := r.Path
		if r.IsDir {
			path += "/"
		}
		out.Verdict(path, r.Ignored)

		if !explain {
			continue
		}
		if r.File == "" {
			out.KeyValue("  rule", "none")
			continue
		}
		out.KeyValue("  rule", fmt.Sprintf("%s:%d  %s", r.File, r.Line, r.Rule))
		if r.ExcludedAncestor != "" {
			out.KeyValue("  via", r.ExcludedAncestor+"/")
		}
	}
}

// resolveCheckPath maps p onto the resolved root. Relative paths are taken
// from root; absolute paths written against the root as given (before
// symlinks were resolved) are rebased.
func resolveCheckPath(root, given, p string) string {
	if !filepath.IsAbs(p) {
		return filepath.Join(root, p)
	}
	if rel, err := filepath.Rel(given, p); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Join(root, rel)
	}
	return filepath.Clean(p)
}

// isDirPath reports whether abs is a directory, falling back to a trailing
// slash on what the user typed when abs does not exist.
func isDirPath(abs, typed string) bool {
	if info, err := os.Lstat(abs); err == nil {
		return info.IsDir()
	}
	return strings.HasSuffix(typed, "/")
}
