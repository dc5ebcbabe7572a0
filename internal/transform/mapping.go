package transform

import "github.com/dgallion1/docpen/internal/doctree"

// Mapping translates a position in the document before a command into the
// document after it. ok is false when the command removed the position:
// its block was deleted, or the text around it was.
type Mapping interface {
	Map(pos doctree.Position) (doctree.Position, bool)
}

// MappingFunc adapts a function to Mapping.
type MappingFunc func(doctree.Position) (doctree.Position, bool)

func (f MappingFunc) Map(pos doctree.Position) (doctree.Position, bool) { return f(pos) }

// Identity maps every position to itself.
var Identity Mapping = MappingFunc(func(pos doctree.Position) (doctree.Position, bool) {
	return pos, true
})

// Compose returns the mapping that applies ms in order.
func Compose(ms ...Mapping) Mapping {
	return MappingFunc(func(pos doctree.Position) (doctree.Position, bool) {
		for _, m := range ms {
			var ok bool
			if pos, ok = m.Map(pos); !ok {
				return pos, false
			}
		}
		return pos, true
	})
}

// MapByID resolves positions across a wholesale replacement, such as undo,
// by looking the position's block up by ID in the new document. Within the
// block the two texts are compared: offsets in the unchanged prefix or suffix
// are carried over, offsets strictly inside the changed span are lost.
func MapByID(from, to *doctree.Document) Mapping {
	return MappingFunc(func(pos doctree.Position) (doctree.Position, bool) {
		if pos.Block < 0 || pos.Block >= len(from.Blocks) {
			return pos, false
		}
		old := from.Blocks[pos.Block]
		idx := to.BlockIndex(old.ID)
		if idx < 0 {
			return pos, false
		}
		off, ok := mapChangedText([]rune(old.Text()), []rune(to.Blocks[idx].Text()), pos.Offset)
		return doctree.Position{Block: idx, Offset: off}, ok
	})
}

// mapChangedText carries off from a to b, treating the difference as one
// replaced span between their common prefix and suffix. An offset at the end
// of the span follows the replacement, matching inserts at a tracked point.
func mapChangedText(a, b []rune, off int) (int, bool) {
	n := min(len(a), len(b))
	prefix := 0
	for prefix < n && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < n-prefix && a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}
	switch {
	case off >= len(a)-suffix:
		return min(max(off-len(a)+len(b), 0), len(b)), true
	case off <= prefix:
		return off, true
	}
	return off, false
}
