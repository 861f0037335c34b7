package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/conneroisu/mdserve/internal/cache"
	mderrors "github.com/conneroisu/mdserve/internal/errors"
	"github.com/conneroisu/mdserve/internal/logging"
	"github.com/conneroisu/mdserve/internal/resolver"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Renderer converts Markdown source to sanitized HTML.
type Renderer interface {
	Render(markdown string) (string, error)
}

// MarkdownHandler runs the request-to-render pipeline: resolve the request
// path, stat the source file, serve the cached render or render on a miss,
// and wrap the result in the page templates.
type MarkdownHandler struct {
	resolver  *resolver.Resolver
	cache     *cache.RenderCache
	renderer  Renderer
	templates Templates
	logger    logging.Logger
}

// NewMarkdownHandler wires the pipeline from its collaborators. The cache is
// owned by the caller and may be shared with other components.
func NewMarkdownHandler(res *resolver.Resolver, c *cache.RenderCache, r Renderer, t Templates, logger logging.Logger) *MarkdownHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &MarkdownHandler{
		resolver:  res,
		cache:     c,
		renderer:  r,
		templates: t,
		logger:    logger.WithComponent("markdown"),
	}
}

// Handle returns the wrapped HTML page for requestPath, or a *errors.Rejection.
func (h *MarkdownHandler) Handle(ctx context.Context, requestPath string) (string, error) {
	resolved := h.resolver.Resolve(requestPath)

	switch resolved.Disposition {
	case resolver.DispositionNotMarkdown:
		return "", mderrors.NotMarkdown(requestPath, resolved.FilePath)
	case resolver.DispositionNotFound:
		return "", mderrors.NotFound(requestPath, nil).WithFile(resolved.FilePath)
	}

	file, err := os.Open(resolved.FilePath)
	if err != nil {
		return "", mderrors.NotFound(requestPath, err).WithFile(resolved.FilePath)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", mderrors.NotFound(requestPath, err).WithFile(resolved.FilePath)
	}
	if info.IsDir() {
		return "", mderrors.NotFound(requestPath, nil).
			WithFile(resolved.FilePath).
			WithContext("reason", "is a directory")
	}

	body, err := h.cache.GetOrRender(resolved.FilePath, info.ModTime(), func() (string, error) {
		return h.produce(ctx, requestPath, resolved.FilePath, file)
	})
	if err != nil {
		return "", err
	}

	return h.templates.Wrap(body), nil
}

// produce reads the whole file, checks it is UTF-8 text and renders it.
func (h *MarkdownHandler) produce(ctx context.Context, requestPath, filePath string, r io.Reader) (string, error) {
	op := logging.StartOperation(h.logger, "render")

	raw, err := io.ReadAll(r)
	if err != nil {
		rejection := mderrors.Decoding(requestPath, fmt.Errorf("reading source: %w", err)).WithFile(filePath)
		op.EndWithError(ctx, rejection, "path", filePath)
		return "", rejection
	}

	source, err := DecodeSource(raw)
	if err != nil {
		rejection := mderrors.Decoding(requestPath, err).WithFile(filePath).WithContext("size", len(raw))
		op.EndWithError(ctx, rejection, "path", filePath)
		return "", rejection
	}

	html, err := h.renderer.Render(source)
	if err != nil {
		rejection := mderrors.Decoding(requestPath, err).WithFile(filePath)
		op.EndWithError(ctx, rejection, "path", filePath)
		return "", rejection
	}

	op.End(ctx, "path", filePath, "bytes_in", len(raw), "bytes_out", len(html))
	return html, nil
}

// DecodeSource strips a UTF-8 byte order mark and rejects invalid UTF-8.
func DecodeSource(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	if _, _, err := transform.Bytes(encoding.UTF8Validator, raw); err != nil {
		return "", fmt.Errorf("source is not valid UTF-8: %w", err)
	}

	return string(raw), nil
}
