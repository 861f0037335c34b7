package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/mdserve/internal/config"
	"github.com/conneroisu/mdserve/internal/version"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	renderWrap = false
	configFormat = "yaml"
	versionFormat = "text"
	versionShort = false
	versionDetailed = false

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRenderCommand(t *testing.T) {
	path := writeTempFile(t, "doc.md", "# Title\n\n<script>alert(1)</script>\n\nx^2^ and 'quotes'\n")

	stdout, _, err := execute(t, "render", path)
	require.NoError(t, err)

	assert.Contains(t, stdout, `<h1 id="title">Title</h1>`)
	assert.Contains(t, stdout, "<sup>2</sup>")
	assert.NotContains(t, stdout, "<script>")
	assert.NotContains(t, stdout, "<!DOCTYPE html>")
}

func TestRenderCommandWrap(t *testing.T) {
	path := writeTempFile(t, "doc.md", "hello\n")

	stdout, _, err := execute(t, "render", "--wrap", path)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(stdout, "<!DOCTYPE html>"))
	assert.Contains(t, stdout, "<p>hello</p>")
	assert.Contains(t, stdout, "</html>")
}

func TestRenderCommandErrors(t *testing.T) {
	_, _, err := execute(t, "render", filepath.Join(t.TempDir(), "missing.md"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading")

	bad := writeTempFile(t, "bad.md", "\xff\xfe")
	_, _, err = execute(t, "render", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding")

	_, _, err = execute(t, "render")
	assert.Error(t, err)
}

func TestServeRequiresDirAndAddress(t *testing.T) {
	t.Setenv("MDSERVE_SERVER_DIR", "")
	t.Setenv("MDSERVE_SERVER_ADDRESS", "")

	_, stderr, err := execute(t, "serve")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissingSetting)
	assert.Contains(t, stderr, "Usage:")
	assert.Contains(t, stderr, "--dir")
	assert.Contains(t, stderr, "--address")
}

func TestConfigShowFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MDSERVE_SERVER_DIR", dir)
	t.Setenv("MDSERVE_SERVER_ADDRESS", "127.0.0.1:4000")
	t.Setenv("MDSERVE_RENDER_HEADING_ID_PREFIX", "doc-")

	stdout, _, err := execute(t, "config", "show")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &cfg))
	assert.Equal(t, dir, cfg.Server.Dir)
	assert.Equal(t, "127.0.0.1:4000", cfg.Server.Address)
	assert.Equal(t, "doc-", cfg.Render.HeadingIDPrefix)
	assert.Equal(t, config.DefaultDebounce, cfg.Development.Debounce)

	stdout, _, err = execute(t, "config", "show", "--format", "json")
	require.NoError(t, err)

	var asJSON map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &asJSON))
	assert.Equal(t, "127.0.0.1:4000", asJSON["server"]["address"])

	_, _, err = execute(t, "config", "show", "--format", "toml")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MDSERVE_SERVER_DIR", dir)
	t.Setenv("MDSERVE_SERVER_ADDRESS", "localhost:8080")

	stdout, _, err := execute(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, stdout, "valid")

	t.Setenv("MDSERVE_SERVER_ADDRESS", "no-port")
	_, _, err = execute(t, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration is invalid")
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "mdserve "))

	stdout, _, err = execute(t, "version", "--format", "json")
	require.NoError(t, err)

	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)

	_, _, err = execute(t, "version", "--format", "xml")
	assert.Error(t, err)
}
