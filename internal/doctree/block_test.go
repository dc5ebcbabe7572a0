package doctree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertTextCoalescesEqualMarks(t *testing.T) {
	b := NewBlock(KindParagraph, "ab")
	b = b.InsertText(2, "cd", nil)
	assert.Equal(t, []Inline{{Text: "abcd"}}, b.Children)

	plain := Marks{}
	b = NewBlock(KindParagraph, "ab").InsertText(2, "cd", &plain)
	assert.Equal(t, []Inline{{Text: "abcd"}}, b.Children)
}

func TestInsertTextWithDifferentMarksSplits(t *testing.T) {
	bold := Marks{Bold: true}
	b := NewBlock(KindParagraph, "ab").InsertText(2, "cd", &bold)
	assert.Equal(t, []Inline{{Text: "ab"}, {Text: "cd", Marks: bold}}, b.Children)

	b = NewBlock(KindParagraph, "abef").InsertText(2, "cd", &bold)
	assert.Equal(t, []Inline{{Text: "ab"}, {Text: "cd", Marks: bold}, {Text: "ef"}}, b.Children)
}

func TestInsertTextAtBoundaryInheritsEarlierInline(t *testing.T) {
	b := Block{Kind: KindParagraph, Children: []Inline{
		{Text: "ab", Marks: Marks{Italic: true}},
		{Text: "cd"},
	}}
	b = b.InsertText(2, "X", nil)
	assert.Equal(t, []Inline{{Text: "abX", Marks: Marks{Italic: true}}, {Text: "cd"}}, b.Children)
}

func TestCut(t *testing.T) {
	b := Block{Kind: KindParagraph, Children: []Inline{
		{Text: "Hello "},
		{Text: "bold", Marks: Marks{Bold: true}},
		{Text: " world"},
	}}
	out := b.Cut(3, 12)
	assert.Equal(t, []Inline{{Text: "Helorld"}}, out.Children)

	out = b.Cut(0, b.Len())
	assert.Equal(t, []Inline{{}}, out.Children)

	assert.Len(t, b.Children, 3, "original untouched")
}

func TestMapMarksCoversOnlyRange(t *testing.T) {
	b := NewBlock(KindParagraph, "abcdef")
	out := b.MapMarks(2, 4, func(m Marks) Marks {
		m.Underline = true
		return m
	})
	assert.Equal(t, []Inline{
		{Text: "ab"},
		{Text: "cd", Marks: Marks{Underline: true}},
		{Text: "ef"},
	}, out.Children)

	back := out.MapMarks(0, 6, func(m Marks) Marks {
		m.Underline = false
		return m
	})
	assert.Equal(t, []Inline{{Text: "abcdef"}}, back.Children)
}

func TestSplitAt(t *testing.T) {
	b := Block{ID: 4, Kind: KindHeading2, Align: AlignCenter, Children: []Inline{
		{Text: "ab", Marks: Marks{Bold: true}},
		{Text: "cd"},
	}}
	left, right := b.SplitAt(3)
	assert.Equal(t, uint64(4), left.ID)
	assert.Equal(t, []Inline{{Text: "ab", Marks: Marks{Bold: true}}, {Text: "c"}}, left.Children)
	assert.Zero(t, right.ID)
	assert.Equal(t, KindHeading2, right.Kind)
	assert.Equal(t, AlignCenter, right.Align)
	assert.Equal(t, []Inline{{Text: "d"}}, right.Children)

	left, right = b.SplitAt(0)
	assert.Equal(t, []Inline{{Marks: Marks{Bold: true}}}, left.Children)
	assert.Equal(t, 4, right.Len())
}

func TestMarksSet(t *testing.T) {
	m, err := Marks{}.Set(MarkBold, true)
	require.NoError(t, err)
	assert.True(t, m.Bold)

	m, err = m.Set(MarkFontSize, float64(18))
	require.NoError(t, err)
	assert.Equal(t, 18, m.FontSize)

	m, err = m.Set(MarkTextColor, "#ff0000")
	require.NoError(t, err)
	assert.Equal(t, "#ff0000", m.Get(MarkTextColor))

	m, err = m.Set(MarkBold, nil)
	require.NoError(t, err)
	assert.False(t, m.Bold)

	_, err = m.Set(MarkBold, "yes")
	assert.ErrorIs(t, err, ErrMarkValue)
	_, err = m.Set(MarkFontSize, 12.5)
	assert.ErrorIs(t, err, ErrMarkValue)
	_, err = m.Set("blink", true)
	assert.ErrorIs(t, err, ErrUnknownMark)
}
