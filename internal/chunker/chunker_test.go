package chunker

import (
	"strings"
	"testing"

	"github.com/dgallion1/docpen/internal/doctree"
)

func para(word string, n int) string {
	return strings.TrimSpace(strings.Repeat(word+" ", n))
}

func TestTail_KeepsLastParagraphs(t *testing.T) {
	a, b, c := para("alpha", 30), para("beta", 30), para("gamma", 30)
	text := a + "\n\n" + b + "\n\n" + c

	got := Tail(text, 80)
	if got != b+"\n\n"+c {
		t.Fatalf("expected last two paragraphs, got %q", got)
	}
}

func TestHead_KeepsFirstParagraphs(t *testing.T) {
	a, b, c := para("alpha", 30), para("beta", 30), para("gamma", 30)
	text := a + "\n\n" + b + "\n\n" + c

	got := Head(text, 80)
	if got != a+"\n\n"+b {
		t.Fatalf("expected first two paragraphs, got %q", got)
	}
}

func TestTail_FitsUnchanged(t *testing.T) {
	if got := Tail("  short text  ", 100); got != "short text" {
		t.Fatalf("expected trimmed text, got %q", got)
	}
	if got := Tail("anything", 0); got != "anything" {
		t.Fatalf("expected no budget to keep text, got %q", got)
	}
}

func TestTail_FallsBackToSentences(t *testing.T) {
	text := para("one", 40) + ". " + para("two", 5) + ". " + para("three", 5) + "."
	got := Tail(text, 20)
	want := para("two", 5) + ". " + para("three", 5) + "."
	if got != want {
		t.Fatalf("expected last sentences %q, got %q", want, got)
	}
}

func TestTail_FallsBackToWords(t *testing.T) {
	text := para("word", 100)
	got := Tail(text, 10)
	if n := len(strings.Fields(got)); n != 10 {
		t.Fatalf("expected 10 words, got %d (%q)", n, got)
	}
}

func TestEstimateTokens(t *testing.T) {
	cases := map[string]int{
		"":            0,
		"hello world": 2,
		"你好世界":        4,
		"Hi 你好":       3,
	}
	for in, want := range cases {
		if got := EstimateTokens(in); got != want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestAround_CollectsPreviousAndCurrent(t *testing.T) {
	doc := doctree.FromBlocks([]doctree.Block{
		doctree.NewBlock(doctree.KindHeading1, "Intro"),
		doctree.NewBlock(doctree.KindParagraph, "first para"),
		doctree.NewBlock(doctree.KindHeading2, "Details"),
		doctree.NewBlock(doctree.KindParagraph, ""),
		doctree.NewBlock(doctree.KindParagraph, "second"),
		doctree.NewBlock(doctree.KindParagraph, "current text here"),
	})

	w := Around(doc, doctree.Position{Block: 5, Offset: 7}, DefaultConfig())
	if w.Current != "current" {
		t.Errorf("expected current %q, got %q", "current", w.Current)
	}
	if want := "Intro\n\nfirst para\n\nDetails\n\nsecond"; w.Previous != want {
		t.Errorf("expected previous %q, got %q", want, w.Previous)
	}
	if len(w.Breadcrumb) != 2 || w.Breadcrumb[0] != "Intro" || w.Breadcrumb[1] != "Details" {
		t.Errorf("expected breadcrumb [Intro Details], got %v", w.Breadcrumb)
	}
}

func TestAround_BreadcrumbResetsOnNewSection(t *testing.T) {
	doc := doctree.FromBlocks([]doctree.Block{
		doctree.NewBlock(doctree.KindHeading1, "A"),
		doctree.NewBlock(doctree.KindHeading2, "A.1"),
		doctree.NewBlock(doctree.KindHeading1, "B"),
		doctree.NewBlock(doctree.KindParagraph, "x"),
	})

	w := Around(doc, doctree.Position{Block: 3}, DefaultConfig())
	if len(w.Breadcrumb) != 1 || w.Breadcrumb[0] != "B" {
		t.Errorf("expected breadcrumb [B], got %v", w.Breadcrumb)
	}

	w = Around(doc, doctree.Position{Block: 1, Offset: 2}, DefaultConfig())
	if len(w.Breadcrumb) != 1 || w.Breadcrumb[0] != "A" {
		t.Errorf("expected breadcrumb [A] inside a subheading, got %v", w.Breadcrumb)
	}
	if w.Current != "A." {
		t.Errorf("expected current %q, got %q", "A.", w.Current)
	}
}

func TestAround_OutOfRange(t *testing.T) {
	doc := doctree.New()
	w := Around(doc, doctree.Position{Block: 3}, Config{})
	if w.Previous != "" || w.Current != "" || w.Breadcrumb != nil {
		t.Errorf("expected empty window, got %+v", w)
	}
}
