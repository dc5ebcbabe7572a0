package importer

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/docpen/internal/doctree"
	"github.com/dgallion1/docpen/internal/export"
)

// DOCXImporter handles .docx files. Paragraph styles map to block kinds
// through the export style table; run properties map to marks.
type DOCXImporter struct{}

func (p *DOCXImporter) Import(r io.Reader, filename string) (*doctree.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var blocks []doctree.Block
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		b := doctree.Block{Kind: docxKind(para), Align: docxAlign(para)}
		for _, child := range para.Children {
			run, ok := child.(*docx.Run)
			if !ok {
				continue
			}
			if t := docxRunText(run); t != "" {
				b.Children = append(b.Children, doctree.Inline{Text: t, Marks: withoutStyle(b.Kind, docxMarks(run))})
			}
		}
		trimEdges(b.Children)
		b.Children = stripListMarker(b.Kind, b.Children)
		if strings.TrimSpace(b.Text()) == "" {
			continue
		}
		blocks = append(blocks, b)
	}
	return doctree.FromBlocks(blocks), nil
}

func docxKind(para *docx.Paragraph) doctree.Kind {
	if para.Properties == nil || para.Properties.Style == nil {
		return doctree.KindParagraph
	}
	style := strings.ReplaceAll(para.Properties.Style.Val, " ", "")
	if k, ok := export.KindForDOCXStyle(style); ok {
		return k
	}
	for level := 4; level <= 6; level++ {
		if strings.EqualFold(style, "Heading"+strconv.Itoa(level)) {
			return doctree.KindHeading3
		}
	}
	return doctree.KindParagraph
}

func docxAlign(para *docx.Paragraph) doctree.Align {
	if para.Properties == nil || para.Properties.Justification == nil {
		return doctree.AlignDefault
	}
	switch para.Properties.Justification.Val {
	case "start", "left":
		return doctree.AlignLeft
	case "center":
		return doctree.AlignCenter
	case "end", "right":
		return doctree.AlignRight
	case "both", "distribute":
		return doctree.AlignJustify
	}
	return doctree.AlignDefault
}

func docxRunText(run *docx.Run) string {
	var buf strings.Builder
	for _, rc := range run.Children {
		switch t := rc.(type) {
		case *docx.Text:
			buf.WriteString(t.Text)
		case *docx.Tab:
			buf.WriteByte('\t')
		case *docx.BarterRabbet:
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

func docxMarks(run *docx.Run) doctree.Marks {
	var m doctree.Marks
	rp := run.RunProperties
	if rp == nil {
		return m
	}
	m.Bold = rp.Bold != nil
	m.Italic = rp.Italic != nil
	m.Underline = rp.Underline != nil && rp.Underline.Val != "none"
	m.Strikethrough = rp.Strike != nil && rp.Strike.Val != "false" && rp.Strike.Val != "0"
	if rp.Size != nil {
		if half, err := strconv.Atoi(rp.Size.Val); err == nil {
			m.FontSize = half / 2
		}
	}
	if rp.Color != nil && rp.Color.Val != "" && rp.Color.Val != "auto" {
		m.TextColor = "#" + rp.Color.Val
	}
	if rp.Fonts != nil && rp.Fonts.ASCII != "" {
		m.FontFamily = rp.Fonts.ASCII
	}
	return m
}

// withoutStyle clears marks that only restate the formatting the kind's
// style applies on export.
func withoutStyle(kind doctree.Kind, m doctree.Marks) doctree.Marks {
	st := export.StyleFor(kind)
	if st.Bold {
		m.Bold = false
	}
	if st.Italic {
		m.Italic = false
	}
	if m.FontSize == st.FontSize {
		m.FontSize = 0
	}
	if st.Mono && m.FontFamily == export.MonoFont {
		m.FontFamily = ""
	}
	return m
}

// stripListMarker removes the literal "• " or "n. " prefix written on
// export, since the kind already carries it.
func stripListMarker(kind doctree.Kind, children []doctree.Inline) []doctree.Inline {
	if len(children) == 0 {
		return children
	}
	first := children[0].Text
	switch kind {
	case doctree.KindBulletedListItem:
		first = strings.TrimPrefix(first, "• ")
	case doctree.KindNumberedListItem:
		digits := strings.TrimLeft(first, "0123456789")
		if len(digits) < len(first) && strings.HasPrefix(digits, ". ") {
			first = digits[2:]
		}
	default:
		return children
	}
	out := append([]doctree.Inline{{Text: first, Marks: children[0].Marks}}, children[1:]...)
	return out
}
