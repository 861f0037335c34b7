// Package server serves a directory of Markdown documents over HTTP. Markdown
// requests are rendered to sanitized HTML through a shared render cache and
// wrapped in the page templates; every other file is served as-is.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/mdserve/internal/cache"
	"github.com/conneroisu/mdserve/internal/config"
	mderrors "github.com/conneroisu/mdserve/internal/errors"
	"github.com/conneroisu/mdserve/internal/logging"
	"github.com/conneroisu/mdserve/internal/renderer"
	"github.com/conneroisu/mdserve/internal/resolver"
	"github.com/conneroisu/mdserve/internal/version"
	"github.com/conneroisu/mdserve/internal/watcher"
)

// HealthPath reports server status and cache statistics.
const HealthPath = "/_mdserve/health"

const shutdownTimeout = 5 * time.Second

// Server owns the render pipeline and the HTTP listener.
type Server struct {
	config     *config.Config
	logger     logging.Logger
	resolver   *resolver.Resolver
	cache      *cache.RenderCache
	markdown   *MarkdownHandler
	static     http.Handler
	liveReload *LiveReload
	watcher    *watcher.FileWatcher
	started    time.Time

	httpServer   *http.Server
	serverMutex  sync.RWMutex
	shutdownOnce sync.Once
}

// New builds a server from a validated configuration.
func New(cfg *config.Config, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("server")

	res, err := resolver.New(cfg.Server.Dir)
	if err != nil {
		return nil, fmt.Errorf("creating resolver: %w", err)
	}

	templates, err := LoadTemplates(cfg.Templates.Head, cfg.Templates.Tail)
	if err != nil {
		return nil, err
	}

	opts := renderer.DefaultOptions()
	opts.HeadingIDPrefix = cfg.Render.HeadingIDPrefix

	s := &Server{
		config:   cfg,
		logger:   logger,
		resolver: res,
		cache:    cache.New(),
		static:   http.FileServer(http.Dir(res.BaseDir())),
		started:  time.Now(),
	}

	if cfg.Development.LiveReload {
		templates = templates.WithLiveReload()
		s.liveReload = NewLiveReload(logger)

		s.watcher, err = watcher.NewFileWatcher(res.BaseDir(), cfg.Development.Debounce, logger)
		if err != nil {
			return nil, fmt.Errorf("creating file watcher: %w", err)
		}
	}

	s.markdown = NewMarkdownHandler(res, s.cache, renderer.New(opts), templates, logger)

	return s, nil
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+HealthPath, s.handleHealth)
	if s.liveReload != nil {
		mux.Handle("GET "+LiveReloadPath, s.liveReload)
	}
	mux.HandleFunc("GET /", s.handleDocument)

	return LoggingMiddleware(s.logger)(mux)
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Server.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Server.Address, err)
	}

	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.watcher != nil {
		if err := s.setupFileWatcher(ctx); err != nil {
			ln.Close()
			return err
		}
	}
	if s.liveReload != nil {
		go s.liveReload.Run(ctx)
	}

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "Serving Markdown",
		"address", ln.Addr().String(),
		"dir", s.resolver.BaseDir(),
		"live_reload", s.liveReload != nil,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown stops the listener, the watcher and the live reload hub.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		if s.watcher != nil {
			if err := s.watcher.Stop(); err != nil {
				s.logger.Warn(ctx, err, "Stopping file watcher failed")
			}
		}
		if s.liveReload != nil {
			s.liveReload.Close()
		}

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			if err := server.Shutdown(ctx); err != nil {
				shutdownErr = fmt.Errorf("shutting down http server: %w", err)
			}
		}
	})

	return shutdownErr
}

// Cache exposes the render cache shared by all requests.
func (s *Server) Cache() *cache.RenderCache {
	return s.cache
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	page, err := s.markdown.Handle(r.Context(), r.URL.Path)
	if err == nil {
		w.Header().Set("Content-Type", "text/html; charset=UTF-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(page))
		return
	}

	kind, _ := mderrors.KindOf(err)
	if kind == mderrors.KindNotMarkdown {
		s.static.ServeHTTP(w, r)
		return
	}

	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), err, "Rendering failed", "path", r.URL.Path)
	} else {
		s.logger.Debug(r.Context(), "Request rejected", "path", r.URL.Path, "kind", string(kind))
	}

	http.Error(w, http.StatusText(status), status)
}

type healthResponse struct {
	Status     string      `json:"status"`
	Version    string      `json:"version"`
	Uptime     string      `json:"uptime"`
	Dir        string      `json:"dir"`
	LiveReload bool        `json:"live_reload"`
	Clients    int         `json:"clients"`
	Cache      cache.Stats `json:"cache"`
	HitRate    float64     `json:"cache_hit_rate"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.cache.Stats()
	resp := healthResponse{
		Status:     "ok",
		Version:    version.GetShortVersion(),
		Uptime:     time.Since(s.started).Truncate(time.Second).String(),
		Dir:        s.resolver.BaseDir(),
		LiveReload: s.liveReload != nil,
		Cache:      stats,
		HitRate:    stats.HitRate(),
	}
	if s.liveReload != nil {
		resp.Clients = s.liveReload.ClientCount()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn(r.Context(), err, "Encoding health response failed")
	}
}

func (s *Server) setupFileWatcher(ctx context.Context) error {
	s.watcher.AddFilter(watcher.NoGitFilter)
	s.watcher.AddFilter(watcher.NoEditorTempFilter)
	s.watcher.AddHandler(s.handleFileChange)

	if err := s.watcher.AddRecursive(s.resolver.BaseDir()); err != nil {
		return fmt.Errorf("watching %s: %w", s.resolver.BaseDir(), err)
	}

	return s.watcher.Start(ctx)
}

// handleFileChange drops cached renders of changed Markdown files and tells
// connected browsers to reload.
func (s *Server) handleFileChange(events []watcher.ChangeEvent) error {
	targets := make([]string, 0, len(events))
	evicted := 0

	for _, event := range events {
		if watcher.MarkdownFilter(event.Path) {
			evicted += s.cache.Evict(event.Path)
		}
		targets = append(targets, event.Path)
	}

	s.logger.Debug(context.Background(), "Files changed",
		"count", len(events),
		"evicted", evicted,
	)

	s.liveReload.Notify(UpdateMessage{Type: "reload", Targets: targets})
	return nil
}
