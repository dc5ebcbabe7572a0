// Package importer converts uploaded files into documents.
package importer

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docpen/internal/doctree"
)

// ErrUnsupported indicates a file extension no importer handles.
var ErrUnsupported = errors.New("unsupported file type")

// Importer converts raw file bytes into a document.
type Importer interface {
	Import(r io.Reader, filename string) (*doctree.Document, error)
}

// SupportedExtensions lists file extensions that can be imported.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// Options tune the importers that have choices.
type Options struct {
	// PdftotextFallback retries PDFs the Go reader cannot handle with the
	// pdftotext binary.
	PdftotextFallback bool
}

// ForFile returns the importer for filename's extension.
func ForFile(filename string, opts Options) (Importer, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextImporter{}, nil
	case ".md", ".markdown":
		return &MarkdownImporter{}, nil
	case ".csv":
		return &CSVImporter{}, nil
	case ".html", ".htm":
		return &HTMLImporter{}, nil
	case ".pdf":
		return &PDFImporter{FallbackPdftotext: opts.PdftotextFallback}, nil
	case ".docx":
		return &DOCXImporter{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// builder accumulates blocks from a walk over nested markup.
type builder struct {
	blocks []doctree.Block
	cur    *doctree.Block
}

// open starts a block, closing any open one.
func (b *builder) open(kind doctree.Kind, align doctree.Align) {
	b.close()
	b.cur = &doctree.Block{Kind: kind, Align: align}
}

// text appends a run to the open block, opening a paragraph if needed.
func (b *builder) text(s string, m doctree.Marks) {
	if s == "" {
		return
	}
	if b.cur == nil {
		b.open(doctree.KindParagraph, doctree.AlignDefault)
	}
	b.cur.Children = append(b.cur.Children, doctree.Inline{Text: s, Marks: m})
}

// close finishes the open block. Blocks without visible text are dropped.
func (b *builder) close() {
	if b.cur == nil {
		return
	}
	blk := *b.cur
	b.cur = nil
	if blk.Kind != doctree.KindCode {
		trimEdges(blk.Children)
	}
	if strings.TrimSpace(blk.Text()) == "" {
		return
	}
	b.blocks = append(b.blocks, blk)
}

// image closes the open block and adds an image block. A block of the same
// kind resumes after it.
func (b *builder) image(img doctree.Image) {
	var resume *doctree.Block
	if b.cur != nil {
		resume = &doctree.Block{Kind: b.cur.Kind, Align: b.cur.Align}
	}
	b.close()
	if img.Src == "" {
		return
	}
	b.blocks = append(b.blocks, doctree.NewImageBlock(img))
	b.cur = resume
}

// kind retypes the open block.
func (b *builder) kind(k doctree.Kind) {
	if b.cur != nil {
		b.cur.Kind = k
	}
}

func (b *builder) document() *doctree.Document {
	b.close()
	return doctree.FromBlocks(b.blocks)
}

// trimEdges strips leading whitespace of the first run and trailing
// whitespace of the last.
func trimEdges(children []doctree.Inline) {
	for i := range children {
		children[i].Text = strings.TrimLeft(children[i].Text, " \t\r\n")
		if children[i].Text != "" {
			break
		}
	}
	for i := len(children) - 1; i >= 0; i-- {
		children[i].Text = strings.TrimRight(children[i].Text, " \t\r\n")
		if children[i].Text != "" {
			break
		}
	}
}

// paragraphs splits text on blank lines. Lines inside a paragraph keep
// their line breaks.
func paragraphs(text string) []string {
	var out []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, "\n"))
			cur = cur[:0]
		}
	}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		cur = append(cur, strings.TrimRight(line, " \t\r"))
	}
	flush()
	return out
}

func paragraphBlocks(paras []string) []doctree.Block {
	blocks := make([]doctree.Block, 0, len(paras))
	for _, p := range paras {
		blocks = append(blocks, doctree.NewBlock(doctree.KindParagraph, p))
	}
	return blocks
}
