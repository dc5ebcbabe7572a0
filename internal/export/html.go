package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/docpen/internal/doctree"
)

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

// writeHTML renders a standalone page. HTML carries every mark.
func writeHTML(w io.Writer, doc *doctree.Document) error {
	root := &html.Node{Type: html.DocumentNode}
	root.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	page := element(atom.Html)
	root.AppendChild(page)

	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, attr("charset", "utf-8")))
	title := element(atom.Title)
	title.AppendChild(text("Document"))
	head.AppendChild(title)
	page.AppendChild(head)

	body := element(atom.Body)
	page.AppendChild(body)

	var list *html.Node
	var listKind ListMarker
	for _, b := range doc.Blocks {
		st := StyleFor(b.Kind)
		if st.List == ListNone {
			list = nil
		} else if list == nil || listKind != st.List {
			list = element(atom.Ul)
			if st.List == ListNumber {
				list = element(atom.Ol)
			}
			listKind = st.List
			body.AppendChild(list)
		}

		n := htmlBlock(b, st)
		if list != nil {
			list.AppendChild(n)
		} else {
			body.AppendChild(n)
		}
	}

	if err := html.Render(w, root); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func htmlBlock(b doctree.Block, st Style) *html.Node {
	var n *html.Node
	switch {
	case st.Image:
		img := element(atom.Img, attr("src", safeSrc(b.URL)), attr("alt", b.Alt))
		if b.Width > 0 {
			img.Attr = append(img.Attr, attr("width", strconv.Itoa(b.Width)))
		}
		if b.Height > 0 {
			img.Attr = append(img.Attr, attr("height", strconv.Itoa(b.Height)))
		}
		n = element(atom.P)
		n.AppendChild(img)
	case st.Mono:
		n = element(atom.Pre)
		code := element(atom.Code)
		code.AppendChild(text(b.Text()))
		n.AppendChild(code)
	case st.HeadingLevel > 0:
		n = element([]atom.Atom{atom.H1, atom.H2, atom.H3}[st.HeadingLevel-1])
	case st.List != ListNone:
		n = element(atom.Li)
	case b.Kind == doctree.KindQuote:
		n = element(atom.Blockquote)
	default:
		n = element(atom.P)
	}
	if b.Align != doctree.AlignDefault {
		n.Attr = append(n.Attr, attr("style", "text-align: "+string(b.Align)))
	}
	if n.FirstChild == nil {
		for _, in := range b.Children {
			if in.Text != "" {
				n.AppendChild(htmlInline(in))
			}
		}
	}
	return n
}

func htmlInline(in doctree.Inline) *html.Node {
	var lines *html.Node
	parts := strings.Split(in.Text, "\n")
	if len(parts) == 1 {
		lines = text(in.Text)
	} else {
		lines = element(atom.Span)
		for i, p := range parts {
			if i > 0 {
				lines.AppendChild(element(atom.Br))
			}
			lines.AppendChild(text(p))
		}
	}

	n := lines
	wrap := func(a atom.Atom, attrs ...html.Attribute) {
		outer := element(a, attrs...)
		outer.AppendChild(n)
		n = outer
	}
	if css := inlineCSS(in.Marks); css != "" {
		wrap(atom.Span, attr("style", css))
	}
	if in.Strikethrough {
		wrap(atom.S)
	}
	if in.Underline {
		wrap(atom.U)
	}
	if in.Italic {
		wrap(atom.Em)
	}
	if in.Bold {
		wrap(atom.Strong)
	}
	return n
}

// safeSrc keeps http(s), data:image and root-relative sources and blanks
// anything else.
func safeSrc(u string) string {
	lower := strings.ToLower(strings.TrimSpace(u))
	for _, p := range []string{"https://", "http://", "data:image/"} {
		if strings.HasPrefix(lower, p) {
			return u
		}
	}
	if strings.HasPrefix(lower, "/") && !strings.HasPrefix(lower, "//") {
		return u
	}
	return ""
}

func inlineCSS(m doctree.Marks) string {
	var decl []string
	if m.FontSize > 0 {
		decl = append(decl, fmt.Sprintf("font-size: %dpt", m.FontSize))
	}
	if m.FontFamily != "" {
		decl = append(decl, "font-family: "+strings.NewReplacer(";", "", `"`, "").Replace(m.FontFamily))
	}
	if c, ok := hexColor(m.TextColor); ok {
		decl = append(decl, "color: #"+c)
	}
	if c, ok := hexColor(m.BackgroundColor); ok {
		decl = append(decl, "background-color: #"+c)
	}
	if m.LineHeight > 0 {
		decl = append(decl, "line-height: "+strconv.FormatFloat(m.LineHeight, 'f', -1, 64))
	}
	return strings.Join(decl, "; ")
}
