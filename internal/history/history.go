// Package history keeps undo and redo stacks of document snapshots.
package history

import "github.com/dgallion1/docpen/internal/doctree"

// History is a pair of snapshot stacks. It is not safe for concurrent use;
// the owning editor serializes access.
type History struct {
	undo  []*doctree.Document
	redo  []*doctree.Document
	limit int
}

// New returns an empty history keeping at most limit undo entries. A
// non-positive limit means unbounded.
func New(limit int) *History {
	return &History{limit: limit}
}

// Record pushes the snapshot taken before a mutation and clears redo.
func (h *History) Record(before *doctree.Document) {
	h.undo = append(h.undo, before)
	if h.limit > 0 && len(h.undo) > h.limit {
		drop := len(h.undo) - h.limit
		clear(h.undo[:drop])
		h.undo = h.undo[drop:]
	}
	clear(h.redo)
	h.redo = h.redo[:0]
}

// Undo pops the latest snapshot, pushing current onto the redo stack. ok is
// false when there is nothing to undo.
func (h *History) Undo(current *doctree.Document) (*doctree.Document, bool) {
	if len(h.undo) == 0 {
		return current, false
	}
	prev := h.undo[len(h.undo)-1]
	h.undo[len(h.undo)-1] = nil
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, current)
	return prev, true
}

// Redo pops the latest undone snapshot, pushing current onto the undo stack.
func (h *History) Redo(current *doctree.Document) (*doctree.Document, bool) {
	if len(h.redo) == 0 {
		return current, false
	}
	next := h.redo[len(h.redo)-1]
	h.redo[len(h.redo)-1] = nil
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, current)
	return next, true
}

// CanUndo reports whether Undo would change anything.
func (h *History) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether Redo would change anything.
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Depth returns the sizes of the undo and redo stacks.
func (h *History) Depth() (undo, redo int) { return len(h.undo), len(h.redo) }
