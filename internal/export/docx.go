package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/docpen/internal/doctree"
)

// zipEpoch is the modification time stamped on every container entry.
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

const indentTwips = 720

// MonoFont is the DOCX font of code blocks.
const MonoFont = "Courier New"

var docxJustification = map[doctree.Align]string{
	doctree.AlignLeft:    "start",
	doctree.AlignCenter:  "center",
	doctree.AlignRight:   "end",
	doctree.AlignJustify: "both",
}

func writeDOCX(w io.Writer, doc *doctree.Document) error {
	f := docx.New().WithDefaultTheme()
	numbers := listNumbers(doc.Blocks)
	for i, b := range doc.Blocks {
		if err := docxBlock(f, b, numbers[i]); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
	}

	var raw bytes.Buffer
	if _, err := f.WriteTo(&raw); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return repack(w, raw.Bytes())
}

func docxBlock(f *docx.Docx, b doctree.Block, number int) error {
	st := StyleFor(b.Kind)
	p := f.AddParagraph()
	if st.DOCXStyle != "" {
		p.Style(st.DOCXStyle)
	}
	if jc, ok := docxJustification[b.Align]; ok {
		p.Justification(jc)
	}
	if st.Indent {
		if p.Properties == nil {
			p.Properties = &docx.ParagraphProperties{}
		}
		p.Properties.Ind = &docx.Ind{Left: indentTwips}
	}

	if st.Image {
		if data, _, ok := imageData(b.URL); ok {
			if _, err := p.AddInlineDrawing(data); err == nil {
				return nil
			}
		}
		p.AddText(imageLabel(b)).Italic()
		return nil
	}

	switch st.List {
	case ListBullet:
		docxRun(p, st, doctree.Inline{Text: "• "})
	case ListNumber:
		docxRun(p, st, doctree.Inline{Text: strconv.Itoa(number) + ". "})
	}
	for _, in := range b.Children {
		if in.Text == "" {
			continue
		}
		docxRun(p, st, in)
	}
	return nil
}

// docxRun writes one styled run. fontFamily, backgroundColor and lineHeight
// have no run-level mapping and are dropped.
func docxRun(p *docx.Paragraph, st Style, in doctree.Inline) {
	r := p.AddText(in.Text)
	for _, c := range r.Children {
		if t, ok := c.(*docx.Text); ok && strings.TrimSpace(t.Text) != t.Text {
			t.XMLSpace = "preserve"
		}
	}
	if st.Bold || in.Bold {
		r.Bold()
	}
	if st.Italic || in.Italic {
		r.Italic()
	}
	if in.Underline {
		r.Underline("single")
	}
	if in.Strikethrough {
		r.Strike(true)
	}
	size := st.FontSize
	if in.FontSize > 0 {
		size = in.FontSize
	}
	r.Size(strconv.Itoa(size * 2))
	if c, ok := hexColor(in.TextColor); ok {
		r.Color(c)
	}
	if st.Mono {
		r.Font(MonoFont, MonoFont, MonoFont, "default")
	}
}

// repack rewrites a zip archive with entries sorted by name and a fixed
// timestamp, so the same document always yields the same bytes.
func repack(w io.Writer, data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("read container: %w", err)
	}
	files := slices.Clone(zr.File)
	slices.SortFunc(files, func(a, b *zip.File) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})

	zw := zip.NewWriter(w)
	for _, file := range files {
		dst, err := zw.CreateHeader(&zip.FileHeader{Name: file.Name, Method: zip.Deflate, Modified: zipEpoch})
		if err != nil {
			return fmt.Errorf("create %s: %w", file.Name, err)
		}
		src, err := file.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", file.Name, err)
		}
		_, err = io.Copy(dst, src)
		src.Close()
		if err != nil {
			return fmt.Errorf("copy %s: %w", file.Name, err)
		}
	}
	return zw.Close()
}
