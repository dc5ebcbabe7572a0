package doctree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Document {
	return FromBlocks([]Block{
		{Kind: KindHeading1, Children: []Inline{{Text: "Title"}}},
		{Kind: KindParagraph, Children: []Inline{
			{Text: "Hello "},
			{Text: "bold", Marks: Marks{Bold: true}},
			{Text: " world"},
		}},
		NewImageBlock(Image{Src: "https://example.com/a.png", Alt: "a"}),
		NewBlock(KindQuote, "Quoted"),
	})
}

func TestNewIsSingleEmptyParagraph(t *testing.T) {
	d := New()
	require.Len(t, d.Blocks, 1)
	assert.Equal(t, KindParagraph, d.Blocks[0].Kind)
	assert.Equal(t, []Inline{{}}, d.Blocks[0].Children)
	assert.True(t, d.Selection.Collapsed())
	assert.NotZero(t, d.Blocks[0].ID)
}

func TestFromBlocksNormalizes(t *testing.T) {
	d := FromBlocks([]Block{
		{Children: []Inline{{Text: "a"}, {Text: ""}, {Text: "b"}}},
		{Kind: KindCode},
		{Kind: KindImage, URL: "x", Children: []Inline{{Text: "ignored"}}},
		{Kind: "callout", Children: []Inline{{Text: "kept"}}},
	})
	assert.Equal(t, KindParagraph, d.Blocks[0].Kind)
	assert.Equal(t, []Inline{{Text: "ab"}}, d.Blocks[0].Children)
	assert.Equal(t, []Inline{{}}, d.Blocks[1].Children)
	assert.Equal(t, []Inline{{}}, d.Blocks[2].Children)
	assert.Equal(t, Kind("callout"), d.Blocks[3].Kind)

	again := FromBlocks(d.Blocks)
	assert.True(t, d.Equal(again), "normalization is idempotent")
}

func TestDeriveAssignsUniqueIDs(t *testing.T) {
	d := FromBlocks([]Block{
		{ID: 7, Kind: KindParagraph},
		{ID: 7, Kind: KindParagraph},
		{Kind: KindParagraph},
	})
	seen := map[uint64]bool{}
	for _, b := range d.Blocks {
		assert.False(t, seen[b.ID], "duplicate id %d", b.ID)
		seen[b.ID] = true
	}
	assert.Equal(t, uint64(7), d.Blocks[0].ID)
}

func TestEdgesAreOrdered(t *testing.T) {
	a := Point{Block: 1, Inline: 2, Offset: 3}
	b := Point{Block: 1, Inline: 0, Offset: 5}

	s, e := Selection{Anchor: a, Focus: b}.Edges()
	assert.Equal(t, b, s)
	assert.Equal(t, a, e)

	s2, e2 := Selection{Anchor: b, Focus: a}.Edges()
	assert.Equal(t, s, s2)
	assert.Equal(t, e, e2)
	assert.LessOrEqual(t, s.Compare(e), 0)
}

func TestNodeAtOutOfRange(t *testing.T) {
	d := sample()
	_, _, err := d.NodeAt(Point{Block: 9})
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, _, err = d.NodeAt(Point{Block: 1, Inline: 3})
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, _, err = d.NodeAt(Point{Block: 1, Inline: 1, Offset: 5})
	assert.ErrorIs(t, err, ErrOutOfRange)

	b, in, err := d.NodeAt(Point{Block: 1, Inline: 1, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, KindParagraph, b.Kind)
	assert.Equal(t, "bold", in.Text)
}

func TestPositionRoundTrip(t *testing.T) {
	d := sample()
	pos, err := d.PositionOf(Point{Block: 1, Inline: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, Position{Block: 1, Offset: 11}, pos)

	p, err := d.PointAt(pos)
	require.NoError(t, err)
	assert.Equal(t, Point{Block: 1, Inline: 2, Offset: 1}, p)

	// Boundaries resolve to the end of the earlier inline.
	p, err = d.PointAt(Position{Block: 1, Offset: 6})
	require.NoError(t, err)
	assert.Equal(t, Point{Block: 1, Inline: 0, Offset: 6}, p)

	_, err = d.PointAt(Position{Block: 1, Offset: 99})
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestStringAt(t *testing.T) {
	d := sample()
	s, err := d.StringAt(Selection{
		Anchor: Point{Block: 3, Inline: 0, Offset: 3},
		Focus:  Point{Block: 0, Inline: 0, Offset: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "tle\nHello bold world\n\nQuo", s)

	s, err = d.StringAt(Selection{
		Anchor: Point{Block: 1, Inline: 0, Offset: 3},
		Focus:  Point{Block: 1, Inline: 1, Offset: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "lo bo", s)

	assert.Equal(t, "Title\nHello bold world\n\nQuoted", d.Text())
}

func TestMultibyteOffsets(t *testing.T) {
	d := FromBlocks([]Block{NewBlock(KindParagraph, "héllo 世界")})
	assert.Equal(t, 8, d.Blocks[0].Len())
	assert.Equal(t, Point{Block: 0, Inline: 0, Offset: 8}, d.End())

	s, err := d.StringAt(Selection{
		Anchor: Point{Block: 0, Inline: 0, Offset: 1},
		Focus:  Point{Block: 0, Inline: 0, Offset: 7},
	})
	require.NoError(t, err)
	assert.Equal(t, "éllo 世", s)
}

func TestWithSelection(t *testing.T) {
	d := sample()
	sel := Selection{Anchor: Point{Block: 1, Inline: 0, Offset: 2}, Focus: Point{Block: 3, Inline: 0, Offset: 1}}
	out, err := d.WithSelection(sel)
	require.NoError(t, err)
	assert.Equal(t, sel, out.Selection)
	assert.NotEqual(t, sel, d.Selection, "receiver untouched")

	_, err = d.WithSelection(Collapse(Point{Block: 12}))
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestBlockIndex(t *testing.T) {
	d := sample()
	assert.Equal(t, 2, d.BlockIndex(d.Blocks[2].ID))
	assert.Equal(t, -1, d.BlockIndex(9999))
}
