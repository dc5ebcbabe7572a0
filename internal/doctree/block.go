package doctree

import (
	"strings"
	"unicode/utf8"
)

// Kind is the structural role of a block.
type Kind string

const (
	KindParagraph        Kind = "paragraph"
	KindHeading1         Kind = "heading-1"
	KindHeading2         Kind = "heading-2"
	KindHeading3         Kind = "heading-3"
	KindCode             Kind = "code"
	KindQuote            Kind = "quote"
	KindBulletedListItem Kind = "bulleted-list-item"
	KindNumberedListItem Kind = "numbered-list-item"
	KindImage            Kind = "image"
)

// Kinds lists the known block kinds.
var Kinds = []Kind{
	KindParagraph, KindHeading1, KindHeading2, KindHeading3, KindCode,
	KindQuote, KindBulletedListItem, KindNumberedListItem, KindImage,
}

// Known reports whether k is one of the declared kinds.
func (k Kind) Known() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsVoid reports whether blocks of this kind hold no text.
func (k Kind) IsVoid() bool { return k == KindImage }

// HeadingLevel returns 1-3 for heading kinds and 0 otherwise.
func (k Kind) HeadingLevel() int {
	switch k {
	case KindHeading1:
		return 1
	case KindHeading2:
		return 2
	case KindHeading3:
		return 3
	}
	return 0
}

// Align is a block's horizontal alignment. The empty value renders as left.
type Align string

const (
	AlignDefault Align = ""
	AlignLeft    Align = "left"
	AlignCenter  Align = "center"
	AlignRight   Align = "right"
	AlignJustify Align = "justify"
)

// Valid reports whether a is a supported alignment.
func (a Align) Valid() bool {
	switch a {
	case AlignDefault, AlignLeft, AlignCenter, AlignRight, AlignJustify:
		return true
	}
	return false
}

// Inline is a run of text sharing one set of marks.
type Inline struct {
	Text string `json:"text"`
	Marks
}

// Block is one top-level element of a document.
type Block struct {
	ID       uint64   `json:"id"`
	Kind     Kind     `json:"type"`
	Align    Align    `json:"align,omitempty"`
	Children []Inline `json:"children"`

	// Image attributes; only meaningful when Kind is KindImage.
	URL    string `json:"url,omitempty"`
	Alt    string `json:"alt,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Image is the record produced by an image upload, used to build image blocks.
type Image struct {
	Src    string `json:"src"`
	Alt    string `json:"alt,omitempty"`
	Align  Align  `json:"align,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// NewBlock returns a text block of the given kind holding text.
func NewBlock(kind Kind, text string) Block {
	return Block{Kind: kind, Children: []Inline{{Text: text}}}
}

// NewImageBlock returns an image block for img.
func NewImageBlock(img Image) Block {
	return Block{
		Kind:     KindImage,
		Align:    img.Align,
		Children: []Inline{{}},
		URL:      img.Src,
		Alt:      img.Alt,
		Width:    img.Width,
		Height:   img.Height,
	}
}

// Text returns the concatenated text of the block's inlines.
func (b Block) Text() string {
	if len(b.Children) == 1 {
		return b.Children[0].Text
	}
	var sb strings.Builder
	for _, c := range b.Children {
		sb.WriteString(c.Text)
	}
	return sb.String()
}

// Len returns the block's text length in code points.
func (b Block) Len() int {
	n := 0
	for _, c := range b.Children {
		n += utf8.RuneCountInString(c.Text)
	}
	return n
}

// locate maps a block-flat offset to (inline index, offset within inline).
// At a boundary between two inlines the earlier inline wins.
func (b Block) locate(off int) (int, int) {
	cum := 0
	for i, c := range b.Children {
		n := utf8.RuneCountInString(c.Text)
		if off <= cum+n {
			return i, off - cum
		}
		cum += n
	}
	last := len(b.Children) - 1
	return last, utf8.RuneCountInString(b.Children[last].Text)
}

// InsertText returns a copy of b with text spliced in at the flat offset off.
// With nil marks the text takes the marks of the inline at off; otherwise it
// becomes its own inline carrying marks.
func (b Block) InsertText(off int, text string, marks *Marks) Block {
	i, o := b.locate(off)
	children := make([]Inline, 0, len(b.Children)+2)
	children = append(children, b.Children[:i]...)
	cur := b.Children[i]
	if marks == nil || *marks == cur.Marks {
		before, after := splitRunes(cur.Text, o)
		cur.Text = before + text + after
		children = append(children, cur)
	} else {
		before, after := splitRunes(cur.Text, o)
		children = append(children,
			Inline{Text: before, Marks: cur.Marks},
			Inline{Text: text, Marks: *marks},
			Inline{Text: after, Marks: cur.Marks},
		)
	}
	children = append(children, b.Children[i+1:]...)
	b.Children = normalizeChildren(children)
	return b
}

// Cut returns a copy of b with the flat range [from, to) removed.
func (b Block) Cut(from, to int) Block {
	if from >= to {
		return b
	}
	children := make([]Inline, 0, len(b.Children))
	cum := 0
	for _, c := range b.Children {
		n := utf8.RuneCountInString(c.Text)
		start, end := cum, cum+n
		cum = end
		if end <= from || start >= to {
			children = append(children, c)
			continue
		}
		lo := max(from, start) - start
		hi := min(to, end) - start
		before, _ := splitRunes(c.Text, lo)
		_, after := splitRunes(c.Text, hi)
		c.Text = before + after
		children = append(children, c)
	}
	b.Children = normalizeChildren(children)
	return b
}

// Slice returns the inlines covering the flat range [from, to).
func (b Block) Slice(from, to int) []Inline {
	var out []Inline
	cum := 0
	for _, c := range b.Children {
		n := utf8.RuneCountInString(c.Text)
		start, end := cum, cum+n
		cum = end
		if end <= from || start >= to {
			continue
		}
		lo := max(from, start) - start
		hi := min(to, end) - start
		c.Text = runeRange(c.Text, lo, hi)
		out = append(out, c)
	}
	return out
}

// Append returns a copy of b with extra inlines added after its content.
func (b Block) Append(extra ...Inline) Block {
	children := make([]Inline, 0, len(b.Children)+len(extra))
	children = append(children, b.Children...)
	children = append(children, extra...)
	b.Children = normalizeChildren(children)
	return b
}

// SplitAt divides b at the flat offset off. The left half keeps b's identity;
// the right half is a new block of the same kind and alignment.
func (b Block) SplitAt(off int) (Block, Block) {
	head := b.Slice(0, off)
	if len(head) == 0 {
		head = []Inline{{Marks: b.Children[0].Marks}}
	}
	tail := b.Slice(off, b.Len())
	if len(tail) == 0 {
		tail = []Inline{{Marks: b.Children[len(b.Children)-1].Marks}}
	}
	left := b
	left.Children = normalizeChildren(head)
	right := Block{Kind: b.Kind, Align: b.Align, Children: normalizeChildren(tail)}
	return left, right
}

// MapMarks returns a copy of b where every inline portion inside the flat
// range [from, to) has its marks replaced by fn(marks).
func (b Block) MapMarks(from, to int, fn func(Marks) Marks) Block {
	if from >= to {
		return b
	}
	children := make([]Inline, 0, len(b.Children)+2)
	cum := 0
	for _, c := range b.Children {
		n := utf8.RuneCountInString(c.Text)
		start, end := cum, cum+n
		cum = end
		if end <= from || start >= to || n == 0 {
			children = append(children, c)
			continue
		}
		lo := max(from, start) - start
		hi := min(to, end) - start
		if lo > 0 {
			children = append(children, Inline{Text: runeRange(c.Text, 0, lo), Marks: c.Marks})
		}
		children = append(children, Inline{Text: runeRange(c.Text, lo, hi), Marks: fn(c.Marks)})
		if hi < n {
			children = append(children, Inline{Text: runeRange(c.Text, hi, n), Marks: c.Marks})
		}
	}
	b.Children = normalizeChildren(children)
	return b
}

// normalizeBlock enforces the block-level invariants: known-or-retained
// kind, void blocks with one empty inline, text blocks with merged runs.
func normalizeBlock(b Block) Block {
	if b.Kind == "" {
		b.Kind = KindParagraph
	}
	if b.Kind.IsVoid() {
		b.Children = []Inline{{}}
		return b
	}
	b.Children = normalizeChildren(b.Children)
	return b
}

// normalizeChildren drops empty inlines and merges neighbours with equal
// marks. The result is never empty.
func normalizeChildren(children []Inline) []Inline {
	out := make([]Inline, 0, len(children))
	for _, c := range children {
		if c.Text == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Marks == c.Marks {
			out[n-1].Text += c.Text
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		var m Marks
		if len(children) > 0 {
			m = children[0].Marks
		}
		out = append(out, Inline{Marks: m})
	}
	return out
}

// splitRunes splits s before its n-th code point.
func splitRunes(s string, n int) (string, string) {
	i := byteIndex(s, n)
	return s[:i], s[i:]
}

func runeRange(s string, from, to int) string {
	return s[byteIndex(s, from):byteIndex(s, to)]
}

func byteIndex(s string, n int) int {
	if n <= 0 {
		return 0
	}
	count := 0
	for i := range s {
		if count == n {
			return i
		}
		count++
	}
	return len(s)
}
