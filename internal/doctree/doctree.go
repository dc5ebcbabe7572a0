// Package doctree holds the immutable document model: blocks of marked
// inline text, points, selections and the normalization rules that keep a
// document well formed.
package doctree

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Document is an immutable snapshot of an editable document. It always has
// at least one block. Methods never modify the receiver; callers must treat
// Blocks and their children as read-only.
type Document struct {
	Blocks    []Block   `json:"blocks"`
	Selection Selection `json:"selection"`

	nextID uint64
}

// New returns a document holding a single empty paragraph.
func New() *Document {
	return FromBlocks(nil)
}

// FromBlocks builds a normalized document from blocks with the selection at
// the start. Blocks without an ID are assigned one.
func FromBlocks(blocks []Block) *Document {
	d := &Document{}
	out, _ := d.Derive(blocks, Position{}, Position{})
	return out
}

// Derive builds the successor of d from blocks. Blocks are normalized, new
// blocks receive IDs, and the selection is resolved from the two positions.
func (d *Document) Derive(blocks []Block, anchor, focus Position) (*Document, error) {
	out := &Document{Blocks: make([]Block, 0, max(len(blocks), 1)), nextID: d.nextID}
	for _, b := range blocks {
		if b.ID >= out.nextID {
			out.nextID = b.ID + 1
		}
	}
	if out.nextID == 0 {
		out.nextID = 1
	}
	seen := make(map[uint64]bool, len(blocks))
	for _, b := range blocks {
		b = normalizeBlock(b)
		if b.ID == 0 || seen[b.ID] {
			b.ID = out.nextID
			out.nextID++
		}
		seen[b.ID] = true
		out.Blocks = append(out.Blocks, b)
	}
	if len(out.Blocks) == 0 {
		out.Blocks = append(out.Blocks, Block{ID: out.nextID, Kind: KindParagraph, Children: []Inline{{}}})
		out.nextID++
	}

	a, err := out.PointAt(anchor)
	if err != nil {
		return nil, fmt.Errorf("anchor: %w", err)
	}
	f, err := out.PointAt(focus)
	if err != nil {
		return nil, fmt.Errorf("focus: %w", err)
	}
	out.Selection = Selection{Anchor: a, Focus: f}
	return out, nil
}

// WithSelection returns a copy of d with sel as its selection.
func (d *Document) WithSelection(sel Selection) (*Document, error) {
	if err := d.CheckPoint(sel.Anchor); err != nil {
		return nil, err
	}
	if err := d.CheckPoint(sel.Focus); err != nil {
		return nil, err
	}
	out := *d
	out.Selection = sel
	return &out, nil
}

// Start returns the first point of the document.
func (d *Document) Start() Point { return Point{} }

// End returns the last point of the document.
func (d *Document) End() Point {
	bi := len(d.Blocks) - 1
	b := d.Blocks[bi]
	ii := len(b.Children) - 1
	return Point{Block: bi, Inline: ii, Offset: utf8.RuneCountInString(b.Children[ii].Text)}
}

// CheckPoint returns ErrOutOfRange unless p addresses an existing boundary.
func (d *Document) CheckPoint(p Point) error {
	if p.Block < 0 || p.Block >= len(d.Blocks) {
		return fmt.Errorf("%w: block %d of %d", ErrOutOfRange, p.Block, len(d.Blocks))
	}
	b := d.Blocks[p.Block]
	if p.Inline < 0 || p.Inline >= len(b.Children) {
		return fmt.Errorf("%w: inline %d of %d in block %d", ErrOutOfRange, p.Inline, len(b.Children), p.Block)
	}
	if n := utf8.RuneCountInString(b.Children[p.Inline].Text); p.Offset < 0 || p.Offset > n {
		return fmt.Errorf("%w: offset %d of %d at %d/%d", ErrOutOfRange, p.Offset, n, p.Block, p.Inline)
	}
	return nil
}

// CheckPosition returns ErrOutOfRange unless pos addresses an existing boundary.
func (d *Document) CheckPosition(pos Position) error {
	if pos.Block < 0 || pos.Block >= len(d.Blocks) {
		return fmt.Errorf("%w: block %d of %d", ErrOutOfRange, pos.Block, len(d.Blocks))
	}
	if n := d.Blocks[pos.Block].Len(); pos.Offset < 0 || pos.Offset > n {
		return fmt.Errorf("%w: offset %d of %d in block %d", ErrOutOfRange, pos.Offset, n, pos.Block)
	}
	return nil
}

// NodeAt returns the block and inline addressed by p.
func (d *Document) NodeAt(p Point) (Block, Inline, error) {
	if err := d.CheckPoint(p); err != nil {
		return Block{}, Inline{}, err
	}
	b := d.Blocks[p.Block]
	return b, b.Children[p.Inline], nil
}

// PositionOf converts a point to its block-flat position.
func (d *Document) PositionOf(p Point) (Position, error) {
	if err := d.CheckPoint(p); err != nil {
		return Position{}, err
	}
	off := p.Offset
	for _, c := range d.Blocks[p.Block].Children[:p.Inline] {
		off += utf8.RuneCountInString(c.Text)
	}
	return Position{Block: p.Block, Offset: off}, nil
}

// PointAt converts a position to a point. At an inline boundary the point
// lands at the end of the earlier inline.
func (d *Document) PointAt(pos Position) (Point, error) {
	if err := d.CheckPosition(pos); err != nil {
		return Point{}, err
	}
	i, o := d.Blocks[pos.Block].locate(pos.Offset)
	return Point{Block: pos.Block, Inline: i, Offset: o}, nil
}

// StringAt returns the text strictly between the edges of r. Block texts are
// separated by a newline; image blocks contribute nothing.
func (d *Document) StringAt(r Selection) (string, error) {
	start, end := r.Edges()
	s, err := d.PositionOf(start)
	if err != nil {
		return "", err
	}
	e, err := d.PositionOf(end)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for bi := s.Block; bi <= e.Block; bi++ {
		b := d.Blocks[bi]
		from, to := 0, b.Len()
		if bi == s.Block {
			from = s.Offset
		}
		if bi == e.Block {
			to = e.Offset
		}
		if bi > s.Block {
			sb.WriteByte('\n')
		}
		for _, in := range b.Slice(from, to) {
			sb.WriteString(in.Text)
		}
	}
	return sb.String(), nil
}

// Text returns the whole document as plain text.
func (d *Document) Text() string {
	s, _ := d.StringAt(Selection{Anchor: d.Start(), Focus: d.End()})
	return s
}

// BlockIndex returns the index of the block with the given ID, or -1.
func (d *Document) BlockIndex(id uint64) int {
	for i, b := range d.Blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// Equal reports whether two documents have the same content and selection.
// Block IDs are ignored.
func (d *Document) Equal(o *Document) bool {
	if d == o {
		return true
	}
	if d == nil || o == nil || len(d.Blocks) != len(o.Blocks) || d.Selection != o.Selection {
		return false
	}
	for i := range d.Blocks {
		a, b := d.Blocks[i], o.Blocks[i]
		if a.Kind != b.Kind || a.Align != b.Align || a.URL != b.URL || a.Alt != b.Alt ||
			a.Width != b.Width || a.Height != b.Height || len(a.Children) != len(b.Children) {
			return false
		}
		for j := range a.Children {
			if a.Children[j] != b.Children[j] {
				return false
			}
		}
	}
	return true
}

// Normalize returns blocks with every block normalized. Applying it twice
// gives the same result as applying it once.
func Normalize(blocks []Block) []Block {
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		out[i] = normalizeBlock(b)
	}
	return out
}
