package renderer

import (
	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// KindSuperscript is the node kind of Superscript nodes.
var KindSuperscript = gast.NewNodeKind("Superscript")

// Superscript is an inline node for text wrapped in single carets: x^2^.
type Superscript struct {
	gast.BaseInline
}

// Dump implements Node.Dump.
func (n *Superscript) Dump(source []byte, level int) {
	gast.DumpHelper(n, source, level, nil, nil)
}

// Kind implements Node.Kind.
func (n *Superscript) Kind() gast.NodeKind {
	return KindSuperscript
}

type superscriptDelimiterProcessor struct{}

func (p *superscriptDelimiterProcessor) IsDelimiter(b byte) bool {
	return b == '^'
}

func (p *superscriptDelimiterProcessor) CanOpenCloser(opener, closer *parser.Delimiter) bool {
	return opener.Char == closer.Char
}

func (p *superscriptDelimiterProcessor) OnMatch(consumes int) gast.Node {
	return &Superscript{}
}

var defaultSuperscriptDelimiterProcessor = &superscriptDelimiterProcessor{}

type superscriptParser struct{}

func (s *superscriptParser) Trigger() []byte {
	return []byte{'^'}
}

func (s *superscriptParser) Parse(parent gast.Node, block text.Reader, pc parser.Context) gast.Node {
	before := block.PrecendingCharacter()
	line, segment := block.PeekLine()
	node := parser.ScanDelimiter(line, before, 1, defaultSuperscriptDelimiterProcessor)
	// Runs of two or more carets stay literal.
	if node == nil || node.OriginalLength != 1 || before == '^' {
		return nil
	}

	node.Segment = segment.WithStop(segment.Start + node.OriginalLength)
	block.Advance(node.OriginalLength)
	pc.PushDelimiter(node)
	return node
}

func (s *superscriptParser) CloseBlock(parent gast.Node, pc parser.Context) {}

type superscriptHTMLRenderer struct{}

func (r *superscriptHTMLRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindSuperscript, r.renderSuperscript)
}

func (r *superscriptHTMLRenderer) renderSuperscript(w util.BufWriter, source []byte, n gast.Node, entering bool) (gast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString("<sup>")
	} else {
		_, _ = w.WriteString("</sup>")
	}
	return gast.WalkContinue, nil
}

type superscript struct{}

// SuperscriptExtension renders ^text^ as <sup>text</sup>.
var SuperscriptExtension goldmark.Extender = &superscript{}

func (e *superscript) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithInlineParsers(
		util.Prioritized(&superscriptParser{}, 500),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&superscriptHTMLRenderer{}, 500),
	))
}
