package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/mdserve/internal/config"
)

func testConfig(dir string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Address: "127.0.0.1:0",
			Dir:     dir,
		},
		Development: config.DevelopmentConfig{
			Debounce: 50 * time.Millisecond,
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *httptest.Server) {
	t.Helper()

	s, err := New(cfg, nil)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return s, ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(body)
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	s, err := New(testConfig(dir), nil)
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.NotNil(t, s.cache)
	assert.NotNil(t, s.markdown)
	assert.Nil(t, s.liveReload)
	assert.Nil(t, s.watcher)
}

func TestNewMissingTemplate(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Templates.Head = "/does/not/exist.html"

	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "head template")
}

func TestServeMarkdown(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.md", "# Welcome\n\nSee https://example.com\n")
	writeFile(t, dir, "notes/todo.md", "- [ ] one\n")

	s, ts := newTestServer(t, testConfig(dir))

	resp, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=UTF-8", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(body, "<!DOCTYPE html>"))
	assert.Contains(t, body, `<h1 id="welcome">Welcome</h1>`)
	assert.Contains(t, body, `<a href="https://example.com"`)

	resp, body = get(t, ts.URL+"/notes/todo")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<li>")

	assert.Equal(t, 2, s.Cache().Len())
}

func TestServeStatusMapping(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.md", "\xff\xfe\n")

	_, ts := newTestServer(t, testConfig(dir))

	tests := []struct {
		path   string
		status int
	}{
		{path: "/missing.md", status: http.StatusNotFound},
		{path: "/missing", status: http.StatusNotFound},
		{path: "/a/b/c/", status: http.StatusNotFound},
		{path: "/bad.md", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := get(t, ts.URL+tt.path)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, body, http.StatusText(tt.status))
		})
	}
}

func TestServeStaticPassthrough(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "style.css", "body { color: red; }")
	writeFile(t, dir, "raw.txt", "# not rendered")

	_, ts := newTestServer(t, testConfig(dir))

	resp, body := get(t, ts.URL+"/style.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/css")
	assert.Equal(t, "body { color: red; }", body)

	resp, body = get(t, ts.URL+"/raw.txt")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "# not rendered", body)

	resp, _ = get(t, ts.URL+"/absent.png")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeRejectsOtherMethods(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.md", "hi\n")

	_, ts := newTestServer(t, testConfig(dir))

	resp, err := http.Post(ts.URL+"/index.md", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.md", "hi\n")

	_, ts := newTestServer(t, testConfig(dir))

	get(t, ts.URL+"/")
	get(t, ts.URL+"/")

	resp, body := get(t, ts.URL+HealthPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var health healthResponse
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "ok", health.Status)
	assert.False(t, health.LiveReload)
	assert.Equal(t, 1, health.Cache.Entries)
	assert.Equal(t, int64(1), health.Cache.Hits)
	assert.Equal(t, int64(1), health.Cache.Misses)
	assert.InDelta(t, 0.5, health.HitRate, 0.0001)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.md", "hi\n")

	s, err := New(testConfig(dir), nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	// A second shutdown is a no-op.
	assert.NoError(t, s.Shutdown(context.Background()))
}
