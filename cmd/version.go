package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/mdserve/internal/version"
)

var (
	versionFormat   string
	versionShort    bool
	versionDetailed bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for mdserve: version, git commit, build
time, Go version and target platform.

Examples:
  mdserve version               # Show version
  mdserve version --detailed    # Show every build detail
  mdserve version --format json # Output as JSON`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json, yaml)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	switch versionFormat {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(version.GetBuildInfo())
	case "yaml":
		return yaml.NewEncoder(out).Encode(version.GetBuildInfo())
	case "text":
		return writeVersionText(out)
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json, yaml)", versionFormat)
	}
}

func writeVersionText(out io.Writer) error {
	var err error
	switch {
	case versionShort:
		_, err = fmt.Fprintln(out, version.GetShortVersion())
	case versionDetailed:
		_, err = fmt.Fprintln(out, version.GetDetailedVersion())
	default:
		_, err = fmt.Fprintf(out, "mdserve %s\n", version.GetShortVersion())
	}
	return err
}
