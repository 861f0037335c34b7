package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSlogLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent("server").With("base_dir", "/srv").
		Warn(context.Background(), errors.New("boom"), "render failed", "path", "/a.md")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "render failed", record["msg"])
	assert.Equal(t, "server", record["component"])
	assert.Equal(t, "boom", record["error"])
	assert.Equal(t, "/srv", record["base_dir"])
	assert.Equal(t, "/a.md", record["path"])
}

func TestSlogLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Output: &buf})
	ctx := context.Background()

	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	assert.Empty(t, buf.String())

	logger.Warn(ctx, nil, "warn message")
	logger.Error(ctx, nil, "error message")
	assert.Contains(t, buf.String(), "warn message")
	assert.Contains(t, buf.String(), "error message")
}

func TestWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(&LoggerConfig{Level: LevelInfo, Output: &buf})
	_ = parent.With("child", true)

	parent.Info(context.Background(), "parent only")
	assert.NotContains(t, buf.String(), "child")
}

func TestMultiLogger(t *testing.T) {
	var a, b bytes.Buffer
	multi := NewMultiLogger(
		NewLogger(&LoggerConfig{Level: LevelInfo, Output: &a}),
		NewLogger(&LoggerConfig{Level: LevelInfo, Output: &b}),
	)

	multi.WithComponent("cache").Info(context.Background(), "evicted", "path", "/a.md")

	for _, out := range []string{a.String(), b.String()} {
		assert.Contains(t, out, "evicted")
		assert.Contains(t, out, "component=cache")
	}
}

func TestFileLogger(t *testing.T) {
	dir := t.TempDir()

	fl, err := NewFileLogger(&LoggerConfig{Level: LevelInfo}, dir)
	require.NoError(t, err)

	fl.Info(context.Background(), "written to file")
	require.NoError(t, fl.Close())

	data, err := os.ReadFile(fl.Path())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fl.Path(), dir))
	assert.Contains(t, string(data), "written to file")
}

func TestPerfLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Output: &buf})

	op := StartOperation(logger, "render")
	op.End(context.Background(), "path", "/a.md")
	assert.Contains(t, buf.String(), "operation=render")
	assert.Contains(t, buf.String(), "duration_ms=")

	buf.Reset()
	StartOperation(logger, "render").EndWithError(context.Background(), errors.New("bad utf-8"))
	assert.Contains(t, buf.String(), "Operation failed")
	assert.Contains(t, buf.String(), "bad utf-8")
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(99).String())
}
