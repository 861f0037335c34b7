package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/mdserve/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect mdserve configuration",
	Long: `Inspect the configuration mdserve resolves from flags, environment
variables and the config file.

Examples:
  mdserve config show                  # Show resolved configuration as YAML
  mdserve config show --format json    # Show it as JSON
  mdserve config validate              # Check the resolved configuration
  mdserve --config site.yml config validate`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show resolved configuration",
	Long: `Display the configuration after loading the config file, applying
environment overrides and filling in defaults. Values are shown even when
they would fail validation.`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate resolved configuration",
	Long: `Check that the resolved configuration names an existing directory, a
host:port address, readable template files and a known log level and
format.`,
	RunE: runConfigValidate,
}

var configFormat string

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format (yaml, json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Resolve()
	if err != nil {
		return err
	}

	return writeConfig(cmd.OutOrStdout(), cfg, configFormat)
}

func writeConfig(w io.Writer, cfg *config.Config, format string) error {
	switch format {
	case "yaml", "yml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(cfg); err != nil {
			return fmt.Errorf("encoding configuration: %w", err)
		}
		return encoder.Close()
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (supported: yaml, json)", format)
	}
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Resolve()
	if err != nil {
		return err
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
	return nil
}
