package importer

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/dgallion1/docpen/internal/doctree"
)

var (
	colorRegexp = regexp.MustCompile(`^(#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})|rgb\((\d+),\s*(\d+),\s*(\d+)\))$`)
	sizeRegexp  = regexp.MustCompile(`^\d+(\.\d+)?(px|pt)$`)
	fontRegexp  = regexp.MustCompile(`^[\w \-,'"]{1,64}$`)
	rgbRegexp   = regexp.MustCompile(`^rgb\((\d+),\s*(\d+),\s*(\d+)\)$`)
)

// htmlPolicy is the UGC policy extended with the inline styles that map to
// marks, plus embedded images.
var htmlPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowStyles("color", "background-color").Matching(colorRegexp).Globally()
	p.AllowStyles("font-size").Matching(sizeRegexp).Globally()
	p.AllowStyles("font-family").Matching(fontRegexp).Globally()
	p.AllowStyles("text-align").Matching(bluemonday.CellAlign).Globally()
	p.AllowStyles("font-weight").MatchingEnum("bold", "bolder", "600", "700", "800", "900").Globally()
	p.AllowStyles("font-style").MatchingEnum("italic", "oblique").Globally()
	p.AllowStyles("text-decoration", "text-decoration-line").MatchingEnum("underline", "line-through").Globally()
	p.AllowDataURIImages()
	p.SkipElementsContent("title", "nav", "footer", "header")
	return p
}()

// HTMLImporter handles HTML files. Markup is sanitized before it is walked.
type HTMLImporter struct{}

func (p *HTMLImporter) Import(r io.Reader, filename string) (*doctree.Document, error) {
	clean := htmlPolicy.SanitizeReader(r)
	doc, err := html.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	w := &htmlWalker{}
	body := findBody(doc)
	if body == nil {
		body = doc
	}
	w.children(body, doctree.Marks{}, "")
	return w.b.document(), nil
}

type htmlWalker struct {
	b builder
}

// children walks the child nodes of n. Inside lists and quotes, as is the
// kind given to the blocks opened there.
func (w *htmlWalker) children(n *html.Node, m doctree.Marks, as doctree.Kind) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.node(c, m, as)
	}
}

func (w *htmlWalker) node(n *html.Node, m doctree.Marks, as doctree.Kind) {
	switch n.Type {
	case html.TextNode:
		w.b.text(collapseSpace(n.Data), m)
		return
	case html.ElementNode:
	default:
		w.children(n, m, as)
		return
	}

	style := parseStyle(attrOf(n, "style"))
	align := alignOf(style)

	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level, _ := strconv.Atoi(n.Data[1:])
		w.b.open(headingKind(level), align)
		w.children(n, m, "")
		w.b.close()
	case "p", "div", "section", "article", "figure", "figcaption", "li":
		kind := as
		if kind == "" {
			kind = doctree.KindParagraph
		}
		w.b.open(kind, align)
		w.children(n, m, as)
		w.b.close()
	case "blockquote":
		w.b.open(doctree.KindQuote, align)
		w.children(n, m, doctree.KindQuote)
		w.b.close()
	case "ul":
		w.b.close()
		w.children(n, m, doctree.KindBulletedListItem)
	case "ol":
		w.b.close()
		w.children(n, m, doctree.KindNumberedListItem)
	case "pre":
		w.b.open(doctree.KindCode, align)
		w.b.text(rawText(n), doctree.Marks{})
		w.b.close()
	case "img":
		width, _ := strconv.Atoi(attrOf(n, "width"))
		height, _ := strconv.Atoi(attrOf(n, "height"))
		w.b.image(doctree.Image{Src: attrOf(n, "src"), Alt: attrOf(n, "alt"), Align: align, Width: width, Height: height})
	case "br":
		w.b.text("\n", m)
	case "hr":
		w.b.close()
	default:
		w.children(n, inlineMarks(n.Data, style, m), as)
	}
}

func inlineMarks(tag string, style map[string]string, m doctree.Marks) doctree.Marks {
	switch tag {
	case "b", "strong":
		m.Bold = true
	case "i", "em", "cite", "dfn", "var":
		m.Italic = true
	case "u", "ins":
		m.Underline = true
	case "s", "strike", "del":
		m.Strikethrough = true
	case "code", "tt", "kbd", "samp":
		m.FontFamily = monospace
	}
	for prop, val := range style {
		switch prop {
		case "font-weight":
			m.Bold = true
		case "font-style":
			m.Italic = true
		case "text-decoration", "text-decoration-line":
			if val == "underline" {
				m.Underline = true
			} else {
				m.Strikethrough = true
			}
		case "color":
			m.TextColor = cssColor(val)
		case "background-color":
			m.BackgroundColor = cssColor(val)
		case "font-family":
			m.FontFamily = strings.Trim(val, `"' `)
		case "font-size":
			m.FontSize = cssPoints(val)
		}
	}
	return m
}

func parseStyle(s string) map[string]string {
	if s == "" {
		return nil
	}
	out := make(map[string]string)
	for _, decl := range strings.Split(s, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(prop))] = strings.ToLower(strings.TrimSpace(val))
	}
	return out
}

func alignOf(style map[string]string) doctree.Align {
	a := doctree.Align(style["text-align"])
	if a.Valid() {
		return a
	}
	return doctree.AlignDefault
}

// cssColor converts rgb() to hex and passes hex through.
func cssColor(v string) string {
	m := rgbRegexp.FindStringSubmatch(v)
	if m == nil {
		return v
	}
	var rgb [3]int
	for i := range rgb {
		n, _ := strconv.Atoi(m[i+1])
		rgb[i] = min(n, 255)
	}
	return fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2])
}

// cssPoints converts a pt or px size to whole points.
func cssPoints(v string) int {
	if n, ok := strings.CutSuffix(v, "pt"); ok {
		f, _ := strconv.ParseFloat(n, 64)
		return int(f + 0.5)
	}
	if n, ok := strings.CutSuffix(v, "px"); ok {
		f, _ := strconv.ParseFloat(n, 64)
		return int(f*0.75 + 0.5)
	}
	return 0
}

func collapseSpace(s string) string {
	if s == "" {
		return ""
	}
	fields := strings.Fields(s)
	out := strings.Join(fields, " ")
	if len(fields) == 0 {
		return " "
	}
	if isSpace(s[0]) {
		out = " " + out
	}
	if isSpace(s[len(s)-1]) {
		out += " "
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func attrOf(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// rawText returns the text under n with whitespace preserved.
func rawText(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.Data == "br" {
			buf.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Trim(buf.String(), "\n")
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
