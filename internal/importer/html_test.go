package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docpen/internal/doctree"
)

func TestHTMLImporter(t *testing.T) {
	input := `<html><head><title>T</title><script>alert(1)</script></head><body>
<h2>Heading</h2>
<p style="text-align: center">Hello <strong>bold</strong> <span style="color: rgb(255, 0, 0); font-size: 16px">red</span></p>
<ul><li>one</li><li>two</li></ul>
<ol><li>first</li></ol>
<blockquote><p>quoted</p></blockquote>
<pre>line 1
  line 2</pre>
<p>a<br>b <img src="javascript:alert(1)" alt="bad"><img src="https://example.com/x.png" alt="ok" width="40"></p>
<script>alert(2)</script>
</body></html>`

	doc, err := (&HTMLImporter{}).Import(strings.NewReader(input), "page.html")
	require.NoError(t, err)

	type want struct {
		kind doctree.Kind
		text string
	}
	var got []want
	for _, b := range doc.Blocks {
		got = append(got, want{b.Kind, b.Text()})
	}
	assert.Equal(t, []want{
		{doctree.KindHeading2, "Heading"},
		{doctree.KindParagraph, "Hello bold red"},
		{doctree.KindBulletedListItem, "one"},
		{doctree.KindBulletedListItem, "two"},
		{doctree.KindNumberedListItem, "first"},
		{doctree.KindQuote, "quoted"},
		{doctree.KindCode, "line 1\n  line 2"},
		{doctree.KindParagraph, "a\nb"},
		{doctree.KindImage, ""},
	}, got)

	para := doc.Blocks[1]
	assert.Equal(t, doctree.AlignCenter, para.Align)
	require.Len(t, para.Children, 4)
	assert.Equal(t, doctree.Marks{Bold: true}, para.Children[1].Marks)
	assert.Equal(t, doctree.Marks{TextColor: "#ff0000", FontSize: 12}, para.Children[3].Marks)

	img := doc.Blocks[8]
	assert.Equal(t, "https://example.com/x.png", img.URL)
	assert.Equal(t, "ok", img.Alt)
	assert.Equal(t, 40, img.Width)
	assert.NotContains(t, doc.Text(), "alert")
}

func TestCollapseSpace(t *testing.T) {
	assert.Equal(t, " a b ", collapseSpace("\n  a \t b\n"))
	assert.Equal(t, " ", collapseSpace("\n\n"))
	assert.Equal(t, "", collapseSpace(""))
}

func TestCSSHelpers(t *testing.T) {
	assert.Equal(t, "#0a0b0c", cssColor("rgb(10, 11, 12)"))
	assert.Equal(t, "#abc", cssColor("#abc"))
	assert.Equal(t, 12, cssPoints("12pt"))
	assert.Equal(t, 12, cssPoints("16px"))
	assert.Equal(t, 0, cssPoints("1em"))
}
