package transform

import (
	"unicode/utf8"

	"github.com/dgallion1/docpen/internal/doctree"
)

// The span primitives below operate on block slices and block-flat
// positions. They never modify their input; touched blocks are replaced in a
// fresh slice and untouched blocks share their children.

func replaceBlocks(blocks []doctree.Block, from, to int, mid ...doctree.Block) []doctree.Block {
	out := make([]doctree.Block, 0, len(blocks)-(to-from)+len(mid))
	out = append(out, blocks[:from]...)
	out = append(out, mid...)
	out = append(out, blocks[to:]...)
	return out
}

// insertAt splices text at p.
func insertAt(blocks []doctree.Block, p doctree.Position, text string, marks *doctree.Marks) ([]doctree.Block, Mapping, doctree.Position, error) {
	b := blocks[p.Block]
	if b.Kind.IsVoid() {
		return nil, nil, p, ErrVoidBlock
	}
	n := utf8.RuneCountInString(text)
	out := replaceBlocks(blocks, p.Block, p.Block+1, b.InsertText(p.Offset, text, marks))
	m := MappingFunc(func(q doctree.Position) (doctree.Position, bool) {
		if q.Block == p.Block && q.Offset >= p.Offset {
			q.Offset += n
		}
		return q, true
	})
	return out, m, doctree.Position{Block: p.Block, Offset: p.Offset + n}, nil
}

// deleteSpan removes everything between s and e (s before e). The end
// block's remainder joins the start block. An image where the span starts
// is removed; an image where it ends is kept.
func deleteSpan(blocks []doctree.Block, s, e doctree.Position) ([]doctree.Block, Mapping, doctree.Position) {
	if s == e {
		return blocks, Identity, s
	}
	if s.Block == e.Block {
		n := e.Offset - s.Offset
		out := replaceBlocks(blocks, s.Block, s.Block+1, blocks[s.Block].Cut(s.Offset, e.Offset))
		m := MappingFunc(func(q doctree.Position) (doctree.Position, bool) {
			if q.Block != s.Block || q.Offset <= s.Offset {
				return q, true
			}
			if q.Offset < e.Offset {
				return q, false
			}
			q.Offset -= n
			return q, true
		})
		return out, m, s
	}

	first, last := blocks[s.Block], blocks[e.Block]
	startKept := !first.Kind.IsVoid()
	endFully := !last.Kind.IsVoid() && e.Offset == last.Len()
	base := s.Offset

	var mid []doctree.Block
	switch {
	case last.Kind.IsVoid():
		if startKept {
			mid = append(mid, first.Cut(s.Offset, first.Len()))
		}
		mid = append(mid, last)
	case startKept:
		head := first.Cut(s.Offset, first.Len())
		mid = append(mid, head.Append(last.Slice(e.Offset, last.Len())...))
	default:
		mid = append(mid, last.Cut(0, e.Offset))
		base = 0
	}
	out := replaceBlocks(blocks, s.Block, e.Block+1, mid...)
	removed := e.Block - s.Block + 1 - len(mid)

	m := MappingFunc(func(q doctree.Position) (doctree.Position, bool) {
		switch {
		case q.Block < s.Block:
			return q, true
		case q.Block == s.Block:
			if startKept && q.Offset <= s.Offset {
				return q, true
			}
			return q, false
		case q.Block < e.Block:
			return q, false
		case q.Block == e.Block:
			if last.Kind.IsVoid() {
				return doctree.Position{Block: s.Block + len(mid) - 1}, true
			}
			if endFully || q.Offset < e.Offset {
				return q, false
			}
			return doctree.Position{Block: s.Block, Offset: base + q.Offset - e.Offset}, true
		default:
			q.Block -= removed
			return q, true
		}
	})
	return out, m, doctree.Position{Block: s.Block, Offset: base}
}

// splitAt breaks the block at p in two; the cursor moves to the new block.
func splitAt(blocks []doctree.Block, p doctree.Position) ([]doctree.Block, Mapping, doctree.Position) {
	b := blocks[p.Block]
	var out []doctree.Block
	if b.Kind.IsVoid() {
		out = replaceBlocks(blocks, p.Block, p.Block+1, b, doctree.NewBlock(doctree.KindParagraph, ""))
	} else {
		left, right := b.SplitAt(p.Offset)
		out = replaceBlocks(blocks, p.Block, p.Block+1, left, right)
	}
	m := MappingFunc(func(q doctree.Position) (doctree.Position, bool) {
		switch {
		case q.Block == p.Block && q.Offset > p.Offset:
			return doctree.Position{Block: p.Block + 1, Offset: q.Offset - p.Offset}, true
		case q.Block > p.Block:
			q.Block++
		}
		return q, true
	})
	return out, m, doctree.Position{Block: p.Block + 1}
}

// insertBlockAt places a void block at p, splitting the text block around
// it. An empty left half is dropped; the right half always remains so the
// cursor has somewhere to go.
func insertBlockAt(blocks []doctree.Block, p doctree.Position, nb doctree.Block) ([]doctree.Block, Mapping, doctree.Position) {
	b := blocks[p.Block]
	if b.Kind.IsVoid() {
		out := replaceBlocks(blocks, p.Block, p.Block+1, b, nb)
		m := MappingFunc(func(q doctree.Position) (doctree.Position, bool) {
			if q.Block > p.Block {
				q.Block++
			}
			return q, true
		})
		return out, m, doctree.Position{Block: p.Block + 1}
	}

	left, right := b.SplitAt(p.Offset)
	keepLeft := p.Offset > 0
	var mid []doctree.Block
	if keepLeft {
		mid = append(mid, left)
	} else {
		right.ID = b.ID
	}
	mid = append(mid, nb, right)
	rightIdx := p.Block + len(mid) - 1
	out := replaceBlocks(blocks, p.Block, p.Block+1, mid...)

	m := MappingFunc(func(q doctree.Position) (doctree.Position, bool) {
		switch {
		case q.Block < p.Block:
		case q.Block == p.Block:
			if keepLeft && q.Offset <= p.Offset {
				return q, true
			}
			return doctree.Position{Block: rightIdx, Offset: q.Offset - p.Offset}, true
		default:
			q.Block += len(mid) - 1
		}
		return q, true
	})
	return out, m, doctree.Position{Block: rightIdx}
}

// eachSpanBlock calls fn for every non-void block the span touches with the
// block-local range it covers. fn returns the replacement block.
func eachSpanBlock(blocks []doctree.Block, s, e doctree.Position, fn func(b doctree.Block, from, to int) doctree.Block) []doctree.Block {
	out := make([]doctree.Block, len(blocks))
	copy(out, blocks)
	for i := s.Block; i <= e.Block; i++ {
		b := blocks[i]
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
		out[i] = fn(b, from, to)
	}
	return out
}
