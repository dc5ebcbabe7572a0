// Package transform implements editing commands as pure functions from one
// document snapshot to the next.
package transform

import (
	"errors"
	"fmt"

	"github.com/dgallion1/docpen/internal/doctree"
)

var (
	// ErrVoidBlock indicates an attempt to place text inside an image block.
	ErrVoidBlock = errors.New("cannot place text inside an image block")

	// ErrInvalidKind indicates an unknown or non-text block kind.
	ErrInvalidKind = errors.New("invalid block kind")

	// ErrInvalidAlign indicates an unsupported alignment.
	ErrInvalidAlign = errors.New("invalid alignment")

	// ErrNotBoolean indicates a toggle of a mark that is not on/off.
	ErrNotBoolean = errors.New("mark is not a boolean")
)

// Result is the outcome of applying a command.
type Result struct {
	Doc *doctree.Document
	// Mapping carries positions of the input document into Doc.
	Mapping Mapping
	// Cursor is where the command leaves the caret.
	Cursor doctree.Position
}

// Command is one atomic edit. Apply never modifies its input and on error
// returns no partial result.
type Command interface {
	Name() string
	Apply(doc *doctree.Document) (Result, error)
}

func rangeOf(doc *doctree.Document, r *doctree.Selection) (doctree.Selection, doctree.Position, doctree.Position, error) {
	sel := doc.Selection
	if r != nil {
		sel = *r
	}
	start, end := sel.Edges()
	s, err := doc.PositionOf(start)
	if err != nil {
		return sel, s, s, err
	}
	e, err := doc.PositionOf(end)
	if err != nil {
		return sel, s, e, err
	}
	return sel, s, e, nil
}

// unchanged is the result of a command that had nothing to do.
func unchanged(doc *doctree.Document, cursor doctree.Position) Result {
	return Result{Doc: doc, Mapping: Identity, Cursor: cursor}
}

// keepRange rebuilds doc from blocks whose text positions did not move, with
// sel as the resulting selection.
func keepRange(doc *doctree.Document, blocks []doctree.Block, sel doctree.Selection) (Result, error) {
	a, err := doc.PositionOf(sel.Anchor)
	if err != nil {
		return Result{}, err
	}
	f, err := doc.PositionOf(sel.Focus)
	if err != nil {
		return Result{}, err
	}
	out, err := doc.Derive(blocks, a, f)
	if err != nil {
		return Result{}, err
	}
	return Result{Doc: out, Mapping: Identity, Cursor: f}, nil
}

// finish builds the output document, placing the selection at cursor or,
// when preserve is set, carrying the old selection through m.
func finish(doc *doctree.Document, blocks []doctree.Block, m Mapping, cursor doctree.Position, preserve bool) (Result, error) {
	anchor, focus := cursor, cursor
	if preserve {
		if a, err := doc.PositionOf(doc.Selection.Anchor); err == nil {
			if mapped, ok := m.Map(a); ok {
				anchor = mapped
			}
		}
		if f, err := doc.PositionOf(doc.Selection.Focus); err == nil {
			if mapped, ok := m.Map(f); ok {
				focus = mapped
			}
		}
	}
	out, err := doc.Derive(blocks, anchor, focus)
	if err != nil {
		return Result{}, err
	}
	return Result{Doc: out, Mapping: m, Cursor: cursor}, nil
}

// InsertText replaces the range with Text. A nil Range means the document's
// selection.
type InsertText struct {
	Range *doctree.Selection
	Text  string
	// Marks, when set, formats the new text instead of inheriting the marks
	// at the insertion point.
	Marks *doctree.Marks
	// PreserveSelection keeps the document's selection where it was rather
	// than moving it to the end of the inserted text.
	PreserveSelection bool
}

func (InsertText) Name() string { return "insert_text" }

func (c InsertText) Apply(doc *doctree.Document) (Result, error) {
	_, s, e, err := rangeOf(doc, c.Range)
	if err != nil {
		return Result{}, err
	}
	if s == e && c.Text == "" {
		return unchanged(doc, s), nil
	}
	blocks, m, cursor := deleteSpan(doc.Blocks, s, e)
	if c.Text != "" {
		var im Mapping
		blocks, im, cursor, err = insertAt(blocks, cursor, c.Text, c.Marks)
		if err != nil {
			return Result{}, err
		}
		m = Compose(m, im)
	}
	return finish(doc, blocks, m, cursor, c.PreserveSelection)
}

// DeleteRange removes the content of the range and collapses to its start.
type DeleteRange struct {
	Range             *doctree.Selection
	PreserveSelection bool
}

func (DeleteRange) Name() string { return "delete_range" }

func (c DeleteRange) Apply(doc *doctree.Document) (Result, error) {
	_, s, e, err := rangeOf(doc, c.Range)
	if err != nil {
		return Result{}, err
	}
	if s == e {
		return unchanged(doc, s), nil
	}
	blocks, m, cursor := deleteSpan(doc.Blocks, s, e)
	return finish(doc, blocks, m, cursor, c.PreserveSelection)
}

// SetMark sets one mark on exactly the text inside the range. A nil Value
// clears the mark.
type SetMark struct {
	Range *doctree.Selection
	Mark  doctree.MarkName
	Value any
}

func (SetMark) Name() string { return "set_mark" }

func (c SetMark) Apply(doc *doctree.Document) (Result, error) {
	sel, s, e, err := rangeOf(doc, c.Range)
	if err != nil {
		return Result{}, err
	}
	if _, err := (doctree.Marks{}).Set(c.Mark, c.Value); err != nil {
		return Result{}, err
	}
	if s == e {
		return unchanged(doc, e), nil
	}
	blocks := eachSpanBlock(doc.Blocks, s, e, func(b doctree.Block, from, to int) doctree.Block {
		return b.MapMarks(from, to, func(m doctree.Marks) doctree.Marks {
			out, _ := m.Set(c.Mark, c.Value)
			return out
		})
	})
	return keepRange(doc, blocks, sel)
}

// ToggleMark turns a boolean mark on over the range unless every covered
// inline already has it, in which case it turns it off.
type ToggleMark struct {
	Range *doctree.Selection
	Mark  doctree.MarkName
}

func (ToggleMark) Name() string { return "toggle_mark" }

func (c ToggleMark) Apply(doc *doctree.Document) (Result, error) {
	if !c.Mark.IsBoolean() {
		return Result{}, fmt.Errorf("%w: %s", ErrNotBoolean, c.Mark)
	}
	sel := doc.Selection
	if c.Range != nil {
		sel = *c.Range
	}
	active, err := MarkActive(doc, sel, c.Mark)
	if err != nil {
		return Result{}, err
	}
	return SetMark{Range: &sel, Mark: c.Mark, Value: !active}.Apply(doc)
}

// MarkActive reports whether every non-empty inline portion inside r has the
// boolean mark set. An empty range reports the mark at the caret.
func MarkActive(doc *doctree.Document, r doctree.Selection, name doctree.MarkName) (bool, error) {
	start, end := r.Edges()
	s, err := doc.PositionOf(start)
	if err != nil {
		return false, err
	}
	e, err := doc.PositionOf(end)
	if err != nil {
		return false, err
	}
	if s == e {
		_, in, err := doc.NodeAt(start)
		if err != nil {
			return false, err
		}
		return in.Get(name) == true, nil
	}
	covered := false
	for i := s.Block; i <= e.Block; i++ {
		b := doc.Blocks[i]
		if b.Kind.IsVoid() {
			continue
		}
		from, to := 0, b.Len()
		if i == s.Block {
			from = s.Offset
		}
		if i == e.Block {
			to = e.Offset
		}
		for _, in := range b.Slice(from, to) {
			if in.Text == "" {
				continue
			}
			covered = true
			if in.Get(name) != true {
				return false, nil
			}
		}
	}
	return covered, nil
}

// SetBlockType gives every text block touched by the range the kind Kind. A
// block that already has Kind reverts to a paragraph, so applying the same
// command twice restores the original document.
type SetBlockType struct {
	Range *doctree.Selection
	Kind  doctree.Kind
}

func (SetBlockType) Name() string { return "set_block_type" }

func (c SetBlockType) Apply(doc *doctree.Document) (Result, error) {
	if !c.Kind.Known() || c.Kind.IsVoid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidKind, c.Kind)
	}
	sel, s, e, err := rangeOf(doc, c.Range)
	if err != nil {
		return Result{}, err
	}
	blocks := make([]doctree.Block, len(doc.Blocks))
	copy(blocks, doc.Blocks)
	for i := s.Block; i <= e.Block; i++ {
		b := blocks[i]
		if b.Kind.IsVoid() {
			continue
		}
		if b.Kind == c.Kind {
			b.Kind = doctree.KindParagraph
		} else {
			b.Kind = c.Kind
		}
		blocks[i] = b
	}
	return keepRange(doc, blocks, sel)
}

// SetAlignment sets the alignment of every block touched by the range.
type SetAlignment struct {
	Range *doctree.Selection
	Align doctree.Align
}

func (SetAlignment) Name() string { return "set_alignment" }

func (c SetAlignment) Apply(doc *doctree.Document) (Result, error) {
	if !c.Align.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidAlign, c.Align)
	}
	sel, s, e, err := rangeOf(doc, c.Range)
	if err != nil {
		return Result{}, err
	}
	return keepRange(doc, alignBlocks(doc.Blocks, s.Block, e.Block, c.Align), sel)
}

// ToggleAlignment sets the alignment, or resets it to the default when every
// touched block already has it.
type ToggleAlignment struct {
	Range *doctree.Selection
	Align doctree.Align
}

func (ToggleAlignment) Name() string { return "toggle_alignment" }

func (c ToggleAlignment) Apply(doc *doctree.Document) (Result, error) {
	if !c.Align.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidAlign, c.Align)
	}
	sel, s, e, err := rangeOf(doc, c.Range)
	if err != nil {
		return Result{}, err
	}
	target := c.Align
	all := true
	for i := s.Block; i <= e.Block; i++ {
		if doc.Blocks[i].Align != c.Align {
			all = false
			break
		}
	}
	if all {
		target = doctree.AlignDefault
	}
	return keepRange(doc, alignBlocks(doc.Blocks, s.Block, e.Block, target), sel)
}

func alignBlocks(blocks []doctree.Block, from, to int, a doctree.Align) []doctree.Block {
	out := make([]doctree.Block, len(blocks))
	copy(out, blocks)
	for i := from; i <= to; i++ {
		out[i].Align = a
	}
	return out
}

// SplitBlock deletes the range and breaks the block at the caret.
type SplitBlock struct {
	Range *doctree.Selection
}

func (SplitBlock) Name() string { return "split_block" }

func (c SplitBlock) Apply(doc *doctree.Document) (Result, error) {
	_, s, e, err := rangeOf(doc, c.Range)
	if err != nil {
		return Result{}, err
	}
	blocks, dm, cursor := deleteSpan(doc.Blocks, s, e)
	blocks, sm, cursor := splitAt(blocks, cursor)
	return finish(doc, blocks, Compose(dm, sm), cursor, false)
}

// InsertImage deletes the range and places an image block at the caret.
type InsertImage struct {
	Range *doctree.Selection
	Image doctree.Image
}

func (InsertImage) Name() string { return "insert_image" }

func (c InsertImage) Apply(doc *doctree.Document) (Result, error) {
	if c.Image.Src == "" {
		return Result{}, fmt.Errorf("insert image: empty source")
	}
	if !c.Image.Align.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidAlign, c.Image.Align)
	}
	_, s, e, err := rangeOf(doc, c.Range)
	if err != nil {
		return Result{}, err
	}
	blocks, dm, cursor := deleteSpan(doc.Blocks, s, e)
	blocks, im, cursor := insertBlockAt(blocks, cursor, doctree.NewImageBlock(c.Image))
	return finish(doc, blocks, Compose(dm, im), cursor, false)
}

func apply(doc *doctree.Document, c Command) (*doctree.Document, error) {
	res, err := c.Apply(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}
	return res.Doc, nil
}

// InsertTextAt deletes r, inserts text at its start and collapses the
// selection after the new text.
func InsertTextAt(doc *doctree.Document, r doctree.Selection, text string) (*doctree.Document, error) {
	return apply(doc, InsertText{Range: &r, Text: text})
}

// DeleteRangeAt removes the content of r. A collapsed r is a no-op.
func DeleteRangeAt(doc *doctree.Document, r doctree.Selection) (*doctree.Document, error) {
	return apply(doc, DeleteRange{Range: &r})
}

// SetMarkAt sets name to value on the text inside r.
func SetMarkAt(doc *doctree.Document, r doctree.Selection, name doctree.MarkName, value any) (*doctree.Document, error) {
	return apply(doc, SetMark{Range: &r, Mark: name, Value: value})
}

// SetBlockTypeAt toggles kind on every block touched by r.
func SetBlockTypeAt(doc *doctree.Document, r doctree.Selection, kind doctree.Kind) (*doctree.Document, error) {
	return apply(doc, SetBlockType{Range: &r, Kind: kind})
}

// SetAlignmentAt sets the alignment of every block touched by r.
func SetAlignmentAt(doc *doctree.Document, r doctree.Selection, a doctree.Align) (*doctree.Document, error) {
	return apply(doc, SetAlignment{Range: &r, Align: a})
}
