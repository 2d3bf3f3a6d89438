package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/syncignore/configs"
	"github.com/Aman-CERP/syncignore/internal/config"
	"github.com/Aman-CERP/syncignore/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage syncignore configuration files.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/syncignore/config.yaml)
  3. Project config (.syncignore.yaml in the watch root)
  4. Explicit file (--config)
  5. Environment variables (SYNCIGNORE_*)`,
		Example: `  # Create user config from template
  syncignore config init

  # Create a project config in a watch root
  syncignore config init --project ~/Dropbox

  # Show effective configuration for a root
  syncignore config show ~/Dropbox

  # Print user config file path
  syncignore config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force   bool
		project string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from the template",
		Long: `Create the user configuration file at ~/.config/syncignore/config.yaml
(or $XDG_CONFIG_HOME/syncignore/config.yaml), or with --project a
.syncignore.yaml in the given watch root.

An existing file is kept unless --force is given, in which case it is
backed up first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force, project)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file (a backup is kept)")
	cmd.Flags().StringVar(&project, "project", "", "Create .syncignore.yaml in this watch root instead")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show [root]",
		Short: "Show effective configuration",
		Long: `Show the configuration after merging all sources for a watch root.

--source limits the output to one layer: defaults, user or project.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) > 0 {
				root = args[0]
			}
			return runConfigShow(cmd, root, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, project, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func runConfigInit(cmd *cobra.Command, force bool, project string) error {
	out := output.New(cmd.OutOrStdout())

	configPath, template := config.GetUserConfigPath(), configs.UserConfigTemplate
	if project != "" {
		configPath = filepath.Join(expandHome(project), config.ProjectConfigNames[0])
		template = configs.ProjectConfigTemplate
	}

	if _, err := os.Stat(configPath); err == nil {
		if !force {
			out.Warning("Configuration already exists")
			out.Statusf("📁", "Location: %s", configPath)
			out.Status("💡", "Use --force to replace it (a backup is kept)")
			return nil
		}

		backupPath, err := config.BackupFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
		out.Statusf("💾", "Backup: %s", backupPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(template), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created configuration")
	out.Statusf("📁", "Location: %s", configPath)
	out.Status("📋", "Run 'syncignore config show' to verify")
	return nil
}

func runConfigShow(cmd *cobra.Command, root string, jsonOutput bool, source string) error {
	var cfg *config.Config

	switch source {
	case "merged":
		merged, _, err := loadConfig(root)
		if err != nil {
			return err
		}
		cfg = merged
	case "defaults":
		cfg = config.NewConfig()
	case "user":
		cfg = config.NewConfig()
		if config.UserConfigExists() {
			if err := cfg.LoadYAML(config.GetUserConfigPath()); err != nil {
				return err
			}
		}
	case "project":
		path := config.FindProjectConfig(expandHome(root))
		if path == "" {
			return fmt.Errorf("no project config found in %q", root)
		}
		cfg = config.NewConfig()
		if err := cfg.LoadYAML(path); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown source %q (use merged, user, project or defaults)", source)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
