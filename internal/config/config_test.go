package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.md")
	require.NoError(t, os.WriteFile(file, []byte("# x"), 0o644))

	tests := []struct {
		name        string
		setup       func()
		expectError bool
		missing     bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "successful load with defaults",
			setup: func() {
				viper.Reset()
				viper.Set("server.dir", dir)
				viper.Set("server.address", "127.0.0.1:8080")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, dir, cfg.Server.Dir)
				assert.Equal(t, "127.0.0.1:8080", cfg.Server.Address)
				assert.Equal(t, DefaultDebounce, cfg.Development.Debounce)
				assert.False(t, cfg.Development.LiveReload)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "text", cfg.Logging.Format)
			},
		},
		{
			name: "custom values",
			setup: func() {
				viper.Reset()
				viper.Set("server.dir", dir)
				viper.Set("server.address", ":3000")
				viper.Set("development.live_reload", true)
				viper.Set("development.debounce", "50ms")
				viper.Set("render.heading_id_prefix", "h-")
				viper.Set("logging.level", "debug")
				viper.Set("logging.format", "json")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Development.LiveReload)
				assert.Equal(t, 50*time.Millisecond, cfg.Development.Debounce)
				assert.Equal(t, "h-", cfg.Render.HeadingIDPrefix)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)
			},
		},
		{
			name: "missing directory",
			setup: func() {
				viper.Reset()
				viper.Set("server.address", ":3000")
			},
			expectError: true,
			missing:     true,
		},
		{
			name: "missing address",
			setup: func() {
				viper.Reset()
				viper.Set("server.dir", dir)
			},
			expectError: true,
			missing:     true,
		},
		{
			name: "directory is a file",
			setup: func() {
				viper.Reset()
				viper.Set("server.dir", file)
				viper.Set("server.address", ":3000")
			},
			expectError: true,
		},
		{
			name: "address without port",
			setup: func() {
				viper.Reset()
				viper.Set("server.dir", dir)
				viper.Set("server.address", "localhost")
			},
			expectError: true,
		},
		{
			name: "unknown log level",
			setup: func() {
				viper.Reset()
				viper.Set("server.dir", dir)
				viper.Set("server.address", ":3000")
				viper.Set("logging.level", "chatty")
			},
			expectError: true,
		},
		{
			name: "missing head template",
			setup: func() {
				viper.Reset()
				viper.Set("server.dir", dir)
				viper.Set("server.address", ":3000")
				viper.Set("templates.head", filepath.Join(dir, "nope.html"))
			},
			expectError: true,
		},
		{
			name: "invalid debounce",
			setup: func() {
				viper.Reset()
				viper.Set("server.dir", dir)
				viper.Set("server.address", ":3000")
				viper.Set("development.debounce", "soon")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer viper.Reset()

			cfg, err := Load()

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				assert.Equal(t, tt.missing, errors.Is(err, ErrMissingSetting))
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			tt.check(t, cfg)
		})
	}
}

func TestResolveSkipsValidation(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cfg, err := Resolve()
	require.NoError(t, err)
	assert.Empty(t, cfg.Server.Dir)
	assert.Equal(t, DefaultDebounce, cfg.Development.Debounce)
}

func TestLoadFromYAMLFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	dir := t.TempDir()
	content := "server:\n  address: \"127.0.0.1:9090\"\n  dir: \"" + filepath.ToSlash(dir) + "\"\n" +
		"development:\n  live_reload: true\n  debounce: 1s\n"
	cfgPath := filepath.Join(dir, ".mdserve.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	viper.SetConfigFile(cfgPath)
	require.NoError(t, viper.ReadInConfig())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Address)
	assert.True(t, cfg.Development.LiveReload)
	assert.Equal(t, time.Second, cfg.Development.Debounce)
}

func TestBindEnvironment(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	dir := t.TempDir()
	t.Setenv("MDSERVE_SERVER_DIR", dir)
	t.Setenv("MDSERVE_SERVER_ADDRESS", "127.0.0.1:7000")
	t.Setenv("MDSERVE_RENDER_HEADING_ID_PREFIX", "doc-")
	t.Setenv("MDSERVE_LOGGING_FORMAT", "json")

	require.NoError(t, BindEnvironment())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Server.Dir)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Address)
	assert.Equal(t, "doc-", cfg.Render.HeadingIDPrefix)
	assert.Equal(t, "json", cfg.Logging.Format)
}
