package export

import (
	"io"
	"strconv"
	"strings"
	"unicode"

	md "github.com/nao1215/markdown"

	"github.com/dgallion1/docpen/internal/doctree"
)

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "~", `\~`, "`", "\\`",
	"[", `\[`, "]", `\]`, "<", `\<`, "#", `\#`,
)

// writeMarkdown renders CommonMark with GFM strikethrough. Alignment and
// styling marks without a Markdown form are dropped; underline is written as
// inline HTML.
func writeMarkdown(w io.Writer, doc *doctree.Document) error {
	m := md.NewMarkdown(w)
	numbers := listNumbers(doc.Blocks)
	for i, b := range doc.Blocks {
		st := StyleFor(b.Kind)
		if i > 0 && !(st.List != ListNone && StyleFor(doc.Blocks[i-1].Kind).List == st.List) {
			m.PlainText("")
		}
		switch {
		case st.Image:
			m.PlainText(md.Image(b.Alt, b.URL))
		case st.Mono:
			m.CodeBlocks(md.SyntaxHighlightNone, b.Text())
		case st.HeadingLevel == 1:
			m.H1(mdInlines(b.Children, true))
		case st.HeadingLevel == 2:
			m.H2(mdInlines(b.Children, true))
		case st.HeadingLevel == 3:
			m.H3(mdInlines(b.Children, true))
		case st.List == ListBullet:
			m.PlainText("- " + mdInlines(b.Children, false))
		case st.List == ListNumber:
			m.PlainText(strconv.Itoa(numbers[i]) + ". " + mdInlines(b.Children, false))
		case b.Kind == doctree.KindQuote:
			m.Blockquote(mdInlines(b.Children, false))
		default:
			m.PlainText(mdInlines(b.Children, false))
		}
	}
	m.PlainText("")
	return m.Build()
}

// mdInlines renders marked runs. Inside headings bold is implied and left out.
func mdInlines(children []doctree.Inline, heading bool) string {
	var sb strings.Builder
	for _, in := range children {
		if in.Text == "" {
			continue
		}
		// Emphasis markers must hug the text, so surrounding spaces stay outside.
		core := strings.TrimFunc(in.Text, unicode.IsSpace)
		if core == "" {
			sb.WriteString(in.Text)
			continue
		}
		lead := in.Text[:strings.Index(in.Text, core)]
		trail := in.Text[len(lead)+len(core):]

		text := mdEscaper.Replace(core)
		if in.Underline {
			text = "<u>" + text + "</u>"
		}
		if in.Strikethrough {
			text = md.Strikethrough(text)
		}
		if in.Italic {
			text = md.Italic(text)
		}
		if in.Bold && !heading {
			text = md.Bold(text)
		}
		sb.WriteString(lead)
		sb.WriteString(text)
		sb.WriteString(trail)
	}
	return strings.ReplaceAll(sb.String(), "\n", "  \n")
}
