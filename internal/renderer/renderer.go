// Package renderer converts Markdown documents to sanitized HTML.
//
// Rendering is a two stage pipeline. goldmark parses the source with tables,
// superscript, autolinking, typographic punctuation and automatic heading IDs
// enabled, passing raw HTML through untouched. The resulting HTML is then
// filtered by a bluemonday allowlist policy that additionally permits id and
// class on every element. Script and style elements are removed together
// with their content.
//
// A Renderer holds only configuration that is fixed at construction, so a
// single instance is safe for concurrent use and always produces identical
// output for identical input.
package renderer

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// Options configures the Markdown stage. It is copied into the Renderer at
// construction and never changes afterwards.
type Options struct {
	Tables          bool
	Superscript     bool
	Autolink        bool
	Smart           bool
	HeadingIDs      bool
	HeadingIDPrefix string
	// AllowRawHTML lets authors embed HTML; the sanitizer still runs.
	AllowRawHTML bool
}

// DefaultOptions returns the option set used by the server.
func DefaultOptions() Options {
	return Options{
		Tables:       true,
		Superscript:  true,
		Autolink:     true,
		Smart:        true,
		HeadingIDs:   true,
		AllowRawHTML: true,
	}
}

// Renderer renders Markdown to sanitized HTML.
type Renderer struct {
	opts     Options
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
}

// New builds a renderer from opts.
func New(opts Options) *Renderer {
	return &Renderer{
		opts:     opts,
		markdown: newGoldmarkEngine(opts),
		policy:   NewPolicy(),
	}
}

// NewDefault builds a renderer with DefaultOptions.
func NewDefault() *Renderer {
	return New(DefaultOptions())
}

// Options returns a copy of the renderer configuration.
func (r *Renderer) Options() Options {
	return r.opts
}

// Render converts markdown to sanitized HTML.
func (r *Renderer) Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(markdown), &buf, parser.WithContext(r.newContext())); err != nil {
		return "", fmt.Errorf("markdown render: %w", err)
	}

	return r.policy.SanitizeReader(&buf).String(), nil
}

// newContext returns a fresh parse context so heading ID deduplication never
// leaks between documents.
func (r *Renderer) newContext() parser.Context {
	if r.opts.HeadingIDPrefix == "" {
		return parser.NewContext()
	}

	return parser.NewContext(parser.WithIDs(&prefixedIDs{
		prefix: []byte(r.opts.HeadingIDPrefix),
		inner:  parser.NewContext().IDs(),
	}))
}

// NewPolicy returns the sanitizer policy: bluemonday's user-generated-content
// allowlist plus generic id and class attributes.
func NewPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("id", "class").Globally()
	p.AllowElements("sup", "sub")
	p.AllowTables()
	return p
}

func newGoldmarkEngine(opts Options) goldmark.Markdown {
	var exts []goldmark.Extender
	if opts.Tables {
		exts = append(exts, extension.Table)
	}
	if opts.Superscript {
		exts = append(exts, SuperscriptExtension)
	}
	if opts.Autolink {
		exts = append(exts, extension.Linkify)
	}
	if opts.Smart {
		exts = append(exts, extension.Typographer)
	}

	var parserOptions []parser.Option
	if opts.HeadingIDs {
		parserOptions = append(parserOptions, parser.WithAutoHeadingID())
	}

	engineOptions := []goldmark.Option{
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(parserOptions...),
	}
	if opts.AllowRawHTML {
		engineOptions = append(engineOptions, goldmark.WithRendererOptions(html.WithUnsafe()))
	}

	return goldmark.New(engineOptions...)
}

// prefixedIDs prepends a fixed prefix to goldmark's generated heading IDs.
type prefixedIDs struct {
	prefix []byte
	inner  parser.IDs
}

func (p *prefixedIDs) Generate(value []byte, kind ast.NodeKind) []byte {
	id := p.inner.Generate(value, kind)
	out := make([]byte, 0, len(p.prefix)+len(id))
	out = append(out, p.prefix...)
	return append(out, id...)
}

func (p *prefixedIDs) Put(value []byte) {
	p.inner.Put(value)
}
