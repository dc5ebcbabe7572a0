package history

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dgallion1/docpen/internal/doctree"
)

func docs(n int) []*doctree.Document {
	out := make([]*doctree.Document, n)
	for i := range out {
		out[i] = doctree.FromBlocks([]doctree.Block{doctree.NewBlock(doctree.KindParagraph, string(rune('a'+i)))})
	}
	return out
}

func TestEmptyStacksAreNoops(t *testing.T) {
	h := New(0)
	cur := doctree.New()
	got, ok := h.Undo(cur)
	assert.False(t, ok)
	assert.Same(t, cur, got)
	got, ok = h.Redo(cur)
	assert.False(t, ok)
	assert.Same(t, cur, got)
}

func TestUndoRedoRoundTrip(t *testing.T) {
	d := docs(4)
	h := New(0)
	cur := d[0]
	for _, next := range d[1:] {
		h.Record(cur)
		cur = next
	}

	for i := 2; i >= 0; i-- {
		var ok bool
		cur, ok = h.Undo(cur)
		assert.True(t, ok)
		assert.Same(t, d[i], cur)
	}
	for i := 1; i <= 3; i++ {
		var ok bool
		cur, ok = h.Redo(cur)
		assert.True(t, ok)
		assert.Same(t, d[i], cur)
	}
	assert.False(t, h.CanRedo())
}

func TestRecordClearsRedo(t *testing.T) {
	d := docs(3)
	h := New(0)
	h.Record(d[0])
	cur, _ := h.Undo(d[1])
	assert.True(t, h.CanRedo())

	h.Record(cur)
	assert.False(t, h.CanRedo())
	undo, redo := h.Depth()
	assert.Equal(t, 1, undo)
	assert.Equal(t, 0, redo)
}

func TestLimitDropsOldest(t *testing.T) {
	d := docs(5)
	h := New(2)
	for _, s := range d[:4] {
		h.Record(s)
	}
	undo, _ := h.Depth()
	assert.Equal(t, 2, undo)

	cur, _ := h.Undo(d[4])
	assert.Same(t, d[3], cur)
	cur, _ = h.Undo(cur)
	assert.Same(t, d[2], cur)
	_, ok := h.Undo(cur)
	assert.False(t, ok)
}
