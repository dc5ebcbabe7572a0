package export

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"codeberg.org/go-pdf/fpdf"

	"github.com/dgallion1/docpen/internal/doctree"
)

const (
	pdfIndent     = 8.0
	pdfBlockSpace = 2.0
	ptToMM        = 0.3528
	pxToMM        = 25.4 / 96
)

var pdfAlign = map[doctree.Align]string{
	doctree.AlignCenter:  "C",
	doctree.AlignRight:   "R",
	doctree.AlignJustify: "J",
}

type pdfWriter struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	left   float64
	images int
}

// writePDF lays the document out with the core fonts. Text is encoded as
// cp1252; characters outside it degrade.
func writePDF(w io.Writer, doc *doctree.Document) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(zipEpoch)
	pdf.SetModificationDate(zipEpoch)
	pdf.SetProducer("docpen", false)
	pdf.AddPage()

	pw := &pdfWriter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pw.left, _, _, _ = pdf.GetMargins()

	numbers := listNumbers(doc.Blocks)
	for i, b := range doc.Blocks {
		pw.block(b, numbers[i])
		if err := pdf.Error(); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
	}
	return pdf.Output(w)
}

func (w *pdfWriter) block(b doctree.Block, number int) {
	st := StyleFor(b.Kind)
	defer w.reset()

	if st.Indent {
		w.pdf.SetLeftMargin(w.left + pdfIndent)
		w.pdf.SetX(w.left + pdfIndent)
	}
	lh := lineHeight(st.FontSize)

	if st.Image {
		if !w.image(b) {
			w.font(st, doctree.Inline{Marks: doctree.Marks{Italic: true}})
			w.pdf.Write(lh, w.tr(imageLabel(b)))
			w.pdf.Ln(lh)
		}
		w.pdf.Ln(pdfBlockSpace)
		return
	}

	switch st.List {
	case ListBullet:
		w.font(st, doctree.Inline{})
		w.pdf.Write(lh, w.tr("• "))
	case ListNumber:
		w.font(st, doctree.Inline{})
		w.pdf.Write(lh, strconv.Itoa(number)+". ")
	}

	// Alignment needs a single cell, so only single-run blocks honour it.
	if align, ok := pdfAlign[b.Align]; ok && len(b.Children) == 1 {
		in := b.Children[0]
		w.font(st, in)
		w.pdf.MultiCell(0, lineHeight(sizeOf(st, in)), w.tr(in.Text), "", align, false)
		w.pdf.Ln(pdfBlockSpace)
		return
	}

	for _, in := range b.Children {
		if in.Text == "" {
			continue
		}
		w.font(st, in)
		w.pdf.Write(lineHeight(sizeOf(st, in)), w.tr(in.Text))
	}
	w.pdf.Ln(lh + pdfBlockSpace)
}

func (w *pdfWriter) image(b doctree.Block) bool {
	data, mime, ok := imageData(b.URL)
	if !ok {
		return false
	}
	w.images++
	name := "img" + strconv.Itoa(w.images)
	info := w.pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: w.pdf.ImageTypeFromMime(mime)}, bytes.NewReader(data))
	if w.pdf.Err() || info == nil {
		w.pdf.ClearError()
		return false
	}

	pageW, _ := w.pdf.GetPageSize()
	_, _, right, _ := w.pdf.GetMargins()
	maxW := pageW - w.left - right
	width := info.Width()
	if b.Width > 0 {
		width = float64(b.Width) * pxToMM
	}
	width = min(width, maxW)

	x := w.left
	switch b.Align {
	case doctree.AlignCenter:
		x += (maxW - width) / 2
	case doctree.AlignRight:
		x += maxW - width
	}
	w.pdf.ImageOptions(name, x, -1, width, 0, true, fpdf.ImageOptions{}, 0, "")
	return true
}

// font applies the block style and inline marks. fontFamily,
// backgroundColor and lineHeight are dropped.
func (w *pdfWriter) font(st Style, in doctree.Inline) {
	family := "Helvetica"
	if st.Mono {
		family = "Courier"
	}
	style := ""
	if st.Bold || in.Bold {
		style += "B"
	}
	if st.Italic || in.Italic {
		style += "I"
	}
	if in.Underline {
		style += "U"
	}
	if in.Strikethrough {
		style += "S"
	}
	w.pdf.SetFont(family, style, float64(sizeOf(st, in)))

	r, g, b := 0, 0, 0
	if c, ok := hexColor(in.TextColor); ok {
		v, _ := strconv.ParseUint(c, 16, 32)
		r, g, b = int(v>>16&0xff), int(v>>8&0xff), int(v&0xff)
	}
	w.pdf.SetTextColor(r, g, b)
}

func (w *pdfWriter) reset() {
	w.pdf.SetLeftMargin(w.left)
	w.pdf.SetX(w.left)
}

func sizeOf(st Style, in doctree.Inline) int {
	if in.FontSize > 0 {
		return in.FontSize
	}
	return st.FontSize
}

func lineHeight(size int) float64 {
	return float64(size) * ptToMM * 1.4
}
