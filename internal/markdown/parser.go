package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/frontmatter"
)

// Parser renders markdown for emails and contest rules pages. Raw HTML in
// the source is dropped.
type Parser struct {
	md goldmark.Markdown
}

func NewParser() *Parser {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
			&frontmatter.Extender{},
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			goldmarkhtml.WithHardWraps(),
			goldmarkhtml.WithXHTML(),
		),
	)

	return &Parser{md: md}
}

func (p *Parser) Parse(source []byte) ([]byte, error) {
	var buf bytes.Buffer
	err := p.md.Convert(source, &buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseWithFrontmatter renders the body and decodes the YAML frontmatter.
// Undecodable frontmatter yields an empty map.
func (p *Parser) ParseWithFrontmatter(source []byte) ([]byte, map[string]any, error) {
	ctx := parser.NewContext()
	var buf bytes.Buffer

	err := p.md.Convert(source, &buf, parser.WithContext(ctx))
	if err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), decodeMeta(ctx), nil
}

// ExtractFrontmatter decodes only the frontmatter without rendering.
func (p *Parser) ExtractFrontmatter(source []byte) map[string]any {
	ctx := parser.NewContext()
	p.md.Parser().Parse(text.NewReader(source), parser.WithContext(ctx))
	return decodeMeta(ctx)
}

// Body returns the source that follows the frontmatter block, unrendered.
// Leading blank lines are dropped.
func (p *Parser) Body(source []byte) []byte {
	doc := p.md.Parser().Parse(text.NewReader(source))

	start := -1
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		if lines := n.Lines(); lines.Len() > 0 {
			start = lines.At(0).Start
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil || start < 0 {
		return nil
	}

	// Back up over list markers and heading hashes.
	start = bytes.LastIndexByte(source[:start], '\n') + 1
	return source[start:]
}

// Punctuation markdown may treat as syntax. ':' and '@' stop autolinking.
const escapable = "\\`*_{}[]()#+-.!|<>~&:@"

// Escape makes s render as literal text inside markdown. Line breaks become
// spaces so s cannot open a new block.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			b.WriteByte(' ')
		case strings.ContainsRune(escapable, r):
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func decodeMeta(ctx parser.Context) map[string]any {
	meta := make(map[string]any)
	data := frontmatter.Get(ctx)
	if data == nil {
		return meta
	}

	err := data.Decode(&meta)
	if err != nil {
		return make(map[string]any)
	}
	return meta
}
