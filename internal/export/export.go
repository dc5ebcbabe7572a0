// Package export renders document snapshots to downloadable files. Every
// writer reads block layout from the same kind table, so an unrecognized
// kind exports as a paragraph in every format.
package export

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docpen/internal/doctree"
)

var (
	// ErrExportFailed indicates a writer could not produce its container.
	ErrExportFailed = errors.New("export failed")

	// ErrUnknownFormat indicates an unsupported format name.
	ErrUnknownFormat = errors.New("unknown export format")
)

// Format names an output container.
type Format string

const (
	FormatDOCX     Format = "docx"
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
)

// Blob is a finished export.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}

// ListMarker is the prefix style of list paragraphs.
type ListMarker int

const (
	ListNone ListMarker = iota
	ListBullet
	ListNumber
)

// Style is the layout of one block kind.
type Style struct {
	// DOCXStyle is the paragraph style id written to DOCX. The importer maps
	// the same ids back to kinds.
	DOCXStyle    string
	HeadingLevel int
	FontSize     int
	Bold         bool
	Italic       bool
	Indent       bool
	Mono         bool
	List         ListMarker
	Image        bool
}

var styles = map[doctree.Kind]Style{
	doctree.KindParagraph:        {FontSize: 11},
	doctree.KindHeading1:         {DOCXStyle: "Heading1", HeadingLevel: 1, FontSize: 20, Bold: true},
	doctree.KindHeading2:         {DOCXStyle: "Heading2", HeadingLevel: 2, FontSize: 16, Bold: true},
	doctree.KindHeading3:         {DOCXStyle: "Heading3", HeadingLevel: 3, FontSize: 13, Bold: true},
	doctree.KindQuote:            {DOCXStyle: "Quote", FontSize: 11, Italic: true, Indent: true},
	doctree.KindCode:             {DOCXStyle: "Code", FontSize: 10, Mono: true},
	doctree.KindBulletedListItem: {DOCXStyle: "ListBullet", FontSize: 11, Indent: true, List: ListBullet},
	doctree.KindNumberedListItem: {DOCXStyle: "ListNumber", FontSize: 11, Indent: true, List: ListNumber},
	doctree.KindImage:            {FontSize: 11, Image: true},
}

// StyleFor returns the layout of kind, falling back to the paragraph entry.
func StyleFor(kind doctree.Kind) Style {
	if s, ok := styles[kind]; ok {
		return s
	}
	return styles[doctree.KindParagraph]
}

// KindForDOCXStyle maps a DOCX paragraph style id back to a block kind.
func KindForDOCXStyle(id string) (doctree.Kind, bool) {
	if id == "" {
		return "", false
	}
	for _, k := range doctree.Kinds {
		if s := styles[k]; strings.EqualFold(s.DOCXStyle, id) {
			return k, true
		}
	}
	return "", false
}

// Exporter renders a document to one format.
type Exporter struct {
	format      Format
	name        string
	contentType string
	write       func(io.Writer, *doctree.Document) error
}

var exporters = map[Format]Exporter{
	FormatDOCX: {
		format:      FormatDOCX,
		name:        "document.docx",
		contentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		write:       writeDOCX,
	},
	FormatPDF:      {format: FormatPDF, name: "document.pdf", contentType: "application/pdf", write: writePDF},
	FormatMarkdown: {format: FormatMarkdown, name: "document.md", contentType: "text/markdown; charset=utf-8", write: writeMarkdown},
	FormatHTML:     {format: FormatHTML, name: "document.html", contentType: "text/html; charset=utf-8", write: writeHTML},
}

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatDOCX, FormatPDF, FormatMarkdown, FormatHTML}
}

// For returns the exporter of format. An empty format selects DOCX.
func For(format Format) (Exporter, error) {
	if format == "" {
		format = FormatDOCX
	}
	e, ok := exporters[Format(strings.ToLower(string(format)))]
	if !ok {
		return Exporter{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return e, nil
}

// ExportDocument renders doc as a DOCX file.
func ExportDocument(doc *doctree.Document) (Blob, error) {
	return exporters[FormatDOCX].Export(doc)
}

// Format returns the exporter's format.
func (e Exporter) Format() Format { return e.format }

// Export renders doc. It only reads doc.
func (e Exporter) Export(doc *doctree.Document) (blob Blob, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrExportFailed, e.format, r)
		}
	}()
	var buf bytes.Buffer
	if err := e.write(&buf, doc); err != nil {
		return Blob{}, fmt.Errorf("%w: %s: %w", ErrExportFailed, e.format, err)
	}
	return Blob{Name: e.name, ContentType: e.contentType, Data: buf.Bytes()}, nil
}

// listNumbers returns the ordinal of every numbered list item. Runs of
// numbered items count from 1; any other block restarts the count.
func listNumbers(blocks []doctree.Block) []int {
	out := make([]int, len(blocks))
	n := 0
	for i, b := range blocks {
		if StyleFor(b.Kind).List == ListNumber {
			n++
			out[i] = n
			continue
		}
		n = 0
	}
	return out
}

// imageData decodes a base64 data URI. Remote URLs are never fetched.
func imageData(url string) (data []byte, mime string, ok bool) {
	rest, found := strings.CutPrefix(url, "data:")
	if !found {
		return nil, "", false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return nil, "", false
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, "", false
	}
	switch mime {
	case "image/png", "image/jpeg", "image/jpg", "image/gif":
	default:
		return nil, "", false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", false
	}
	return data, mime, true
}

// imageLabel is the text written for an image that cannot be embedded.
func imageLabel(b doctree.Block) string {
	alt := b.Alt
	if alt == "" {
		alt = "image"
	}
	if b.URL == "" || strings.HasPrefix(b.URL, "data:") {
		return "[" + alt + "]"
	}
	return "[" + alt + "] " + b.URL
}

// hexColor normalizes "#rgb" and "#rrggbb" to upper-case "RRGGBB".
func hexColor(s string) (string, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return "", false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return "", false
		}
	}
	return strings.ToUpper(s), true
}
