// Package config provides configuration management for mdserve using Viper
// for layered loading from files, environment variables, and command-line
// flags.
//
// The configuration system supports YAML files, environment variable
// overrides with the MDSERVE_ prefix, defaults, and validation. It covers the
// served directory and listen address, rendering options, template overrides,
// live reload, and logging.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingSetting is returned when a required setting is absent.
var ErrMissingSetting = errors.New("missing required setting")

const (
	DefaultDebounce     = 300 * time.Millisecond
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultConfigName   = ".mdserve"
	EnvPrefix           = "MDSERVE"
	EnvConfigFileSuffix = "CONFIG_FILE"
)

type Config struct {
	Server      ServerConfig      `yaml:"server" json:"server" mapstructure:"server"`
	Render      RenderConfig      `yaml:"render" json:"render" mapstructure:"render"`
	Templates   TemplatesConfig   `yaml:"templates" json:"templates" mapstructure:"templates"`
	Development DevelopmentConfig `yaml:"development" json:"development" mapstructure:"development"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging" mapstructure:"logging"`
}

type ServerConfig struct {
	Address string `yaml:"address" json:"address" mapstructure:"address"`
	Dir     string `yaml:"dir" json:"dir" mapstructure:"dir"`
}

type RenderConfig struct {
	HeadingIDPrefix string `yaml:"heading_id_prefix" json:"heading_id_prefix" mapstructure:"heading_id_prefix"`
}

type TemplatesConfig struct {
	Head string `yaml:"head,omitempty" json:"head,omitempty" mapstructure:"head"`
	Tail string `yaml:"tail,omitempty" json:"tail,omitempty" mapstructure:"tail"`
}

type DevelopmentConfig struct {
	LiveReload bool          `yaml:"live_reload" json:"live_reload" mapstructure:"live_reload"`
	Debounce   time.Duration `yaml:"debounce" json:"debounce" mapstructure:"debounce"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" mapstructure:"level"`
	Format string `yaml:"format" json:"format" mapstructure:"format"`
	File   string `yaml:"file,omitempty" json:"file,omitempty" mapstructure:"file"`
}

// Keys lists every setting. Binding them lets MDSERVE_<SECTION>_<KEY>
// variables resolve even when no file or flag mentions the key.
var Keys = []string{
	"server.address",
	"server.dir",
	"render.heading_id_prefix",
	"templates.head",
	"templates.tail",
	"development.live_reload",
	"development.debounce",
	"logging.level",
	"logging.format",
	"logging.file",
}

// BindEnvironment enables MDSERVE_ prefixed environment overrides on the
// global viper instance.
func BindEnvironment() error {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for _, key := range Keys {
		if err := viper.BindEnv(key); err != nil {
			return fmt.Errorf("binding %s: %w", key, err)
		}
	}

	return nil
}

// Load reads the configuration from the global viper instance, applies
// defaults, and validates the result.
func Load() (*Config, error) {
	config, err := Resolve()
	if err != nil {
		return nil, err
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Resolve unmarshals and defaults the configuration without validating it.
func Resolve() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	applyDefaults(&config)
	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Development.Debounce <= 0 {
		config.Development.Debounce = DefaultDebounce
	}
	if config.Logging.Level == "" {
		config.Logging.Level = DefaultLogLevel
	}
	if config.Logging.Format == "" {
		config.Logging.Format = DefaultLogFormat
	}
}

// Validate checks configuration values for correctness.
func Validate(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateTemplatesConfig(&config.Templates); err != nil {
		return fmt.Errorf("templates config: %w", err)
	}

	if err := validateLoggingConfig(&config.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateServerConfig(config *ServerConfig) error {
	if config.Dir == "" {
		return fmt.Errorf("%w: server.dir (--dir)", ErrMissingSetting)
	}
	if config.Address == "" {
		return fmt.Errorf("%w: server.address (--address)", ErrMissingSetting)
	}

	info, err := os.Stat(config.Dir)
	if err != nil {
		return fmt.Errorf("directory %s: %w", config.Dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", config.Dir)
	}

	if _, _, err := net.SplitHostPort(config.Address); err != nil {
		return fmt.Errorf("address %q: %w", config.Address, err)
	}

	return nil
}

func validateTemplatesConfig(config *TemplatesConfig) error {
	for name, path := range map[string]string{"head": config.Head, "tail": config.Tail} {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("%s template %s: %w", name, path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%s template %s is a directory", name, path)
		}
	}

	return nil
}

func validateLoggingConfig(config *LoggingConfig) error {
	switch strings.ToLower(config.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown level %q", config.Level)
	}

	switch config.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown format %q", config.Format)
	}

	return nil
}
