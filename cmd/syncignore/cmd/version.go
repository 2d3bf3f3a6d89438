package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/syncignore/internal/xattr"
	"github.com/Aman-CERP/syncignore/pkg/version"
)

// versionReport is the version --json output.
type versionReport struct {
	version.BuildInfo
	Attribute string `json:"attribute"`
}

// newVersionCmd creates the version command.
func newVersionCmd() *cobra.Command {
	var jsonOutput bool
	var shortOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print version information including git commit, build date, Go version
and the extended attribute written on this platform.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if shortOutput {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Short())
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(versionReport{
					BuildInfo: version.GetInfo(),
					Attribute: xattr.AttrName,
				})
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\nattribute: %s\n", version.String(), xattr.AttrName)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	cmd.Flags().BoolVar(&shortOutput, "short", false, "Output only the version number")

	return cmd
}
