package editor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docpen/internal/doctree"
	"github.com/dgallion1/docpen/internal/transform"
)

func at(block, offset int) *doctree.Selection {
	s := doctree.Collapse(doctree.Point{Block: block, Offset: offset})
	return &s
}

func newEditor(t *testing.T, texts ...string) *Editor {
	t.Helper()
	blocks := make([]doctree.Block, len(texts))
	for i, s := range texts {
		blocks[i] = doctree.NewBlock(doctree.KindParagraph, s)
	}
	return New("doc-1", doctree.FromBlocks(blocks))
}

func TestApplyPushesHistoryAndBumpsVersion(t *testing.T) {
	e := newEditor(t, "hello")
	before := e.Snapshot()

	_, err := e.Apply(transform.InsertText{Range: at(0, 5), Text: "!"})
	require.NoError(t, err)
	assert.Equal(t, "hello!", e.Snapshot().Blocks[0].Text())
	assert.Equal(t, uint64(1), e.Version())
	assert.True(t, e.CanUndo())

	require.True(t, e.Undo())
	assert.Same(t, before, e.Snapshot())
	assert.True(t, e.CanRedo())
}

func TestFailedCommandLeavesStateUntouched(t *testing.T) {
	e := newEditor(t, "hello")
	before := e.Snapshot()
	_, err := e.Apply(transform.InsertText{Range: at(3, 0), Text: "x"})
	assert.ErrorIs(t, err, doctree.ErrOutOfRange)
	assert.Same(t, before, e.Snapshot())
	assert.Zero(t, e.Version())
	assert.False(t, e.CanUndo())
}

func TestNoopCommandSkipsHistory(t *testing.T) {
	e := newEditor(t, "hello")
	_, err := e.Apply(transform.DeleteRange{Range: at(0, 2)})
	require.NoError(t, err)
	assert.False(t, e.CanUndo())
	assert.Zero(t, e.Version())
}

func TestUndoRedoOnEmptyStacks(t *testing.T) {
	e := newEditor(t, "x")
	before := e.Snapshot()
	assert.False(t, e.Undo())
	assert.False(t, e.Redo())
	assert.Same(t, before, e.Snapshot())
}

func TestUndoNRedoNRoundTrip(t *testing.T) {
	e := newEditor(t, "start")
	cmds := []transform.Command{
		transform.InsertText{Range: at(0, 5), Text: " one"},
		transform.SetBlockType{Kind: doctree.KindHeading2},
		transform.SplitBlock{Range: at(0, 3)},
		transform.InsertText{Range: at(1, 0), Text: "two "},
	}
	for _, c := range cmds {
		_, err := e.Apply(c)
		require.NoError(t, err)
	}
	final := e.Snapshot()

	for range cmds {
		require.True(t, e.Undo())
	}
	assert.Equal(t, "start", e.Snapshot().Text())
	for range cmds {
		require.True(t, e.Redo())
	}
	assert.True(t, final.Equal(e.Snapshot()))
}

func TestUndoRestoresSelection(t *testing.T) {
	e := newEditor(t, "hello")
	_, err := e.Select(doctree.Collapse(doctree.Point{Offset: 2}))
	require.NoError(t, err)
	_, err = e.Apply(transform.InsertText{Text: "XX"})
	require.NoError(t, err)
	assert.Equal(t, 4, e.Snapshot().Selection.Focus.Offset)

	e.Undo()
	assert.Equal(t, 2, e.Snapshot().Selection.Focus.Offset)
}

func TestSelectDoesNotAdvanceVersion(t *testing.T) {
	e := newEditor(t, "hello")
	_, err := e.Select(doctree.Collapse(doctree.Point{Offset: 3}))
	require.NoError(t, err)
	assert.Zero(t, e.Version())
	assert.False(t, e.CanUndo())

	_, err = e.Select(doctree.Collapse(doctree.Point{Block: 4}))
	assert.ErrorIs(t, err, doctree.ErrOutOfRange)
}

func TestMapPositionThroughConcurrentEdits(t *testing.T) {
	e := newEditor(t, "aaaa", "bbbb", "cccc")
	tracked := doctree.Position{Block: 2, Offset: 2}
	since := e.Version()

	_, err := e.Apply(transform.InsertText{Range: at(2, 0), Text: "XX"})
	require.NoError(t, err)
	_, err = e.Apply(transform.DeleteRange{Range: &doctree.Selection{
		Anchor: doctree.Point{Block: 0, Offset: 4},
		Focus:  doctree.Point{Block: 1, Offset: 2},
	}})
	require.NoError(t, err)

	err = e.Update(func(tx *Tx) error {
		pos, err := tx.MapPosition(tracked, since)
		require.NoError(t, err)
		assert.Equal(t, doctree.Position{Block: 1, Offset: 4}, pos)
		return nil
	})
	require.NoError(t, err)
}

func TestMapPositionLost(t *testing.T) {
	e := newEditor(t, "aaaa", "bbbb", "cccc")
	since := e.Version()
	_, err := e.Apply(transform.DeleteRange{Range: &doctree.Selection{
		Anchor: doctree.Point{Block: 0, Offset: 4},
		Focus:  doctree.Point{Block: 2, Offset: 0},
	}})
	require.NoError(t, err)

	err = e.Update(func(tx *Tx) error {
		_, err := tx.MapPosition(doctree.Position{Block: 1, Offset: 1}, since)
		return err
	})
	assert.ErrorIs(t, err, ErrPositionLost)
}

func TestMapPositionAcrossUndo(t *testing.T) {
	e := newEditor(t, "aaaa")
	_, err := e.Apply(transform.SplitBlock{Range: at(0, 2)})
	require.NoError(t, err)
	since := e.Version()
	e.Undo()

	err = e.Update(func(tx *Tx) error {
		_, err := tx.MapPosition(doctree.Position{Block: 1, Offset: 1}, since)
		return err
	})
	assert.ErrorIs(t, err, ErrPositionLost)
}

func TestMapPositionStale(t *testing.T) {
	e := New("d", nil, WithStepLog(2))
	for range 4 {
		_, err := e.Apply(transform.InsertText{Text: "x"})
		require.NoError(t, err)
	}
	err := e.Update(func(tx *Tx) error {
		_, err := tx.MapPosition(doctree.Position{}, 0)
		return err
	})
	assert.ErrorIs(t, err, ErrStaleVersion)
}

func TestSubscribe(t *testing.T) {
	e := newEditor(t, "")
	ch, cancel := e.Subscribe(4)
	_, err := e.Apply(transform.InsertText{Text: "hi"})
	require.NoError(t, err)

	c := <-ch
	assert.Equal(t, uint64(1), c.Version)
	assert.Equal(t, "insert_text", c.Command)
	assert.Equal(t, "hi", c.Doc.Text())

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestCloseEndsSubscriptions(t *testing.T) {
	e := newEditor(t, "")
	ch, unsubscribe := e.Subscribe(4)
	e.Close()

	_, open := <-ch
	assert.False(t, open)
	unsubscribe()
	e.Close()

	late, unsubscribe := e.Subscribe(1)
	_, open = <-late
	assert.False(t, open)
	unsubscribe()

	_, err := e.Apply(transform.InsertText{Text: "still editable"})
	require.NoError(t, err)
}

func TestConcurrentWritersSerialize(t *testing.T) {
	e := newEditor(t, "")
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Apply(transform.InsertText{Range: at(0, 0), Text: "a"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, e.Snapshot().Blocks[0].Len())
	assert.Equal(t, uint64(20), e.Version())
}

func TestStore(t *testing.T) {
	var count int
	s := NewStore(func(n int) { count = n }, WithHistoryLimit(10))
	a := s.Create(nil)
	b := s.Create(doctree.New())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, count)
	assert.Same(t, a, s.Get(a.ID()))
	assert.Len(t, s.IDs(), 2)

	feed, _ := a.Subscribe(1)
	assert.True(t, s.Delete(a.ID()))
	_, open := <-feed
	assert.False(t, open)
	assert.False(t, s.Delete(a.ID()))
	assert.Nil(t, s.Get(a.ID()))
	assert.Equal(t, 1, count)
}
