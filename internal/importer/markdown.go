package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/dgallion1/docpen/internal/doctree"
)

const monospace = "monospace"

// MarkdownImporter handles Markdown files using goldmark with GFM
// strikethrough.
type MarkdownImporter struct{}

func (p *MarkdownImporter) Import(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Strikethrough))
	root := md.Parser().Parse(text.NewReader(src))

	w := &mdWalker{src: src}
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		w.block(n, "")
	}
	return w.b.document(), nil
}

type mdWalker struct {
	src       []byte
	b         builder
	underline bool
}

// block converts one block node. Inside quotes and lists, as overrides the
// kind of the paragraphs it contains.
func (w *mdWalker) block(n ast.Node, as doctree.Kind) {
	switch node := n.(type) {
	case *ast.Heading:
		w.b.open(headingKind(node.Level), doctree.AlignDefault)
		w.inlines(node, doctree.Marks{})
		w.b.close()
	case *ast.Paragraph, *ast.TextBlock:
		kind := as
		if kind == "" {
			kind = doctree.KindParagraph
		}
		w.b.open(kind, doctree.AlignDefault)
		w.inlines(node, doctree.Marks{})
		w.b.close()
	case *ast.Blockquote:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			w.block(c, doctree.KindQuote)
		}
	case *ast.List:
		kind := doctree.KindBulletedListItem
		if node.IsOrdered() {
			kind = doctree.KindNumberedListItem
		}
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			for c := item.FirstChild(); c != nil; c = c.NextSibling() {
				w.block(c, kind)
			}
		}
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		var sb strings.Builder
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			sb.Write(line.Value(w.src))
		}
		w.b.open(doctree.KindCode, doctree.AlignDefault)
		w.b.text(strings.TrimRight(sb.String(), "\n"), doctree.Marks{})
		w.b.close()
	}
}

func (w *mdWalker) inlines(n ast.Node, m doctree.Marks) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		w.inline(c, m)
	}
}

func (w *mdWalker) inline(n ast.Node, m doctree.Marks) {
	m.Underline = m.Underline || w.underline
	switch node := n.(type) {
	case *ast.Text:
		v := node.Value(w.src)
		if !node.IsRaw() {
			v = util.UnescapePunctuations(v)
			v = util.ResolveNumericReferences(v)
			v = util.ResolveEntityNames(v)
		}
		w.b.text(string(v), m)
		switch {
		case node.HardLineBreak():
			w.b.text("\n", m)
		case node.SoftLineBreak():
			w.b.text(" ", m)
		}
	case *ast.String:
		w.b.text(string(node.Value), m)
	case *ast.Emphasis:
		if node.Level >= 2 {
			m.Bold = true
		} else {
			m.Italic = true
		}
		w.inlines(node, m)
	case *east.Strikethrough:
		m.Strikethrough = true
		w.inlines(node, m)
	case *ast.CodeSpan:
		m.FontFamily = monospace
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				w.b.text(string(t.Value(w.src)), m)
			}
		}
	case *ast.AutoLink:
		w.b.text(string(node.Label(w.src)), m)
	case *ast.Image:
		w.b.image(doctree.Image{Src: string(node.Destination), Alt: plainText(node, w.src)})
	case *ast.RawHTML:
		var sb strings.Builder
		for i := 0; i < node.Segments.Len(); i++ {
			seg := node.Segments.At(i)
			sb.Write(seg.Value(w.src))
		}
		switch strings.ToLower(sb.String()) {
		case "<u>":
			w.underline = true
		case "</u>":
			w.underline = false
		}
	default:
		w.inlines(n, m)
	}
}

func headingKind(level int) doctree.Kind {
	switch level {
	case 1:
		return doctree.KindHeading1
	case 2:
		return doctree.KindHeading2
	}
	return doctree.KindHeading3
}

// plainText concatenates the text under n.
func plainText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := c.(*ast.Text); ok && entering {
			sb.Write(t.Value(src))
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}
