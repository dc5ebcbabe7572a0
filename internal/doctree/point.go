package doctree

import "cmp"

// Point addresses a character boundary inside an inline.
type Point struct {
	Block  int `json:"block"`
	Inline int `json:"inline"`
	Offset int `json:"offset"`
}

// Compare orders points in document order.
func (p Point) Compare(q Point) int {
	if c := cmp.Compare(p.Block, q.Block); c != 0 {
		return c
	}
	if c := cmp.Compare(p.Inline, q.Inline); c != 0 {
		return c
	}
	return cmp.Compare(p.Offset, q.Offset)
}

// Selection is an anchor/focus pair. The anchor is where the selection
// started, so focus may precede it.
type Selection struct {
	Anchor Point `json:"anchor"`
	Focus  Point `json:"focus"`
}

// Collapse returns the selection with anchor and focus both at p.
func Collapse(p Point) Selection {
	return Selection{Anchor: p, Focus: p}
}

// Collapsed reports whether anchor and focus coincide.
func (s Selection) Collapsed() bool { return s.Anchor == s.Focus }

// Edges returns the selection's endpoints in document order.
func (s Selection) Edges() (start, end Point) {
	if s.Anchor.Compare(s.Focus) <= 0 {
		return s.Anchor, s.Focus
	}
	return s.Focus, s.Anchor
}

// Position addresses a character boundary by block and code-point offset from
// the start of the block's text. Positions survive inline splits and merges.
type Position struct {
	Block  int `json:"block"`
	Offset int `json:"offset"`
}

// Compare orders positions in document order.
func (p Position) Compare(q Position) int {
	if c := cmp.Compare(p.Block, q.Block); c != 0 {
		return c
	}
	return cmp.Compare(p.Offset, q.Offset)
}
