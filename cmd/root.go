// Package cmd provides the command-line interface for mdserve.
//
// Configuration System:
//
//	Settings are resolved from several sources with clear precedence:
//	1. Command-line flags (--dir, --address, etc.) - highest priority
//	2. MDSERVE_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (MDSERVE_SERVER_DIR, etc.)
//	4. Configuration files (.mdserve.yml) - lowest priority
//
// Environment Variables:
//
//	MDSERVE_CONFIG_FILE: Path to custom configuration file
//	MDSERVE_SERVER_DIR: Directory to serve
//	MDSERVE_SERVER_ADDRESS: Listen address (host:port)
//	MDSERVE_DEVELOPMENT_LIVE_RELOAD: Enable/disable live reload
//	And the rest following the MDSERVE_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/mdserve/internal/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mdserve",
	Short: "Serve a directory of Markdown as HTML",
	Long: `mdserve serves a directory over HTTP, rendering Markdown files to
sanitized HTML on request and passing every other file through untouched.

Rendered pages are cached by file path and modification time, so each
version of a document is rendered once no matter how many requests ask
for it.

Quick Start:
  mdserve serve -d ./docs -a 127.0.0.1:8080     Serve ./docs
  mdserve serve -d . -a :8080 --live-reload     Serve with browser reload
  mdserve render README.md                      Render one file to stdout
  mdserve config show                           Show resolved configuration`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .mdserve.yml, can also use MDSERVE_CONFIG_FILE env var)")
	flags.StringP("log-level", "l", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("log-format", config.DefaultLogFormat, "log format (text, json)")
	flags.String("log-file", "", "also write JSON logs to a dated file in this directory")

	mustBindFlags(flags, map[string]string{
		"logging.level":  "log-level",
		"logging.format": "log-format",
		"logging.file":   "log-file",
	})
}

// initConfig selects the config file and enables environment overrides.
//
// Config file selection (highest to lowest):
//  1. --config flag
//  2. MDSERVE_CONFIG_FILE environment variable
//  3. .mdserve.yml in the current directory
//
// A missing default file is not an error; an explicitly named file that
// cannot be read is reported on stderr.
func initConfig() {
	explicit := true

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvPrefix + "_" + config.EnvConfigFileSuffix); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		explicit = false
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(config.DefaultConfigName)
	}

	if err := config.BindEnvironment(); err != nil {
		fmt.Fprintln(os.Stderr, "Binding environment:", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || explicit {
			fmt.Fprintln(os.Stderr, "Reading config file:", err)
		}
		return
	}

	fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
}
