// Package chunker cuts document text down to the context a prompt can carry.
package chunker

import (
	"slices"
	"strings"

	"github.com/dgallion1/docpen/internal/doctree"
)

// Config controls how much context is kept.
type Config struct {
	MaxTokens     int // Budget for the text before the anchor.
	MaxSelection  int // Budget for the anchored text itself.
	CurrentTokens int // Budget for the current paragraph.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:     1500,
		MaxSelection:  3000,
		CurrentTokens: 400,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.MaxSelection <= 0 {
		c.MaxSelection = d.MaxSelection
	}
	if c.CurrentTokens <= 0 {
		c.CurrentTokens = d.CurrentTokens
	}
	return c
}

// Window is the context around an anchor.
type Window struct {
	// Previous holds the blocks before the anchor's block, newest last.
	Previous string
	// Current is the anchor block's text up to the anchor.
	Current string
	// Breadcrumb is the heading trail leading to the anchor.
	Breadcrumb []string
}

// Around collects the context before pos in doc. Text is trimmed from the
// front so that the part closest to the anchor survives.
func Around(doc *doctree.Document, pos doctree.Position, cfg Config) Window {
	cfg = cfg.withDefaults()
	if pos.Block < 0 || pos.Block >= len(doc.Blocks) {
		return Window{}
	}

	var w Window
	var trail [3]string
	var paras []string
	for _, b := range doc.Blocks[:pos.Block] {
		if lvl := b.Kind.HeadingLevel(); lvl > 0 {
			trail[lvl-1] = b.Text()
			clear(trail[lvl:])
		}
		if t := strings.TrimSpace(b.Text()); t != "" {
			paras = append(paras, t)
		}
	}

	cur := doc.Blocks[pos.Block]
	if lvl := cur.Kind.HeadingLevel(); lvl > 0 {
		clear(trail[lvl-1:])
	}
	for _, t := range trail {
		if t != "" {
			w.Breadcrumb = append(w.Breadcrumb, t)
		}
	}

	var sb strings.Builder
	for _, in := range cur.Slice(0, min(pos.Offset, cur.Len())) {
		sb.WriteString(in.Text)
	}
	w.Current = Tail(sb.String(), cfg.CurrentTokens)
	w.Previous = Tail(strings.Join(paras, "\n\n"), cfg.MaxTokens)
	return w
}

// Tail returns the end of text that fits in maxTokens, cut at paragraph,
// then sentence, then word boundaries.
func Tail(text string, maxTokens int) string {
	return clip(text, maxTokens, true)
}

// Head returns the start of text that fits in maxTokens.
func Head(text string, maxTokens int) string {
	return clip(text, maxTokens, false)
}

func clip(text string, maxTokens int, fromEnd bool) string {
	text = strings.TrimSpace(text)
	if maxTokens <= 0 || EstimateTokens(text) <= maxTokens {
		return text
	}
	levels := []struct {
		split func(string) []string
		sep   string
	}{
		{splitByParagraphs, "\n\n"},
		{splitSentences, " "},
		{strings.Fields, " "},
	}
	for _, lv := range levels {
		parts := lv.split(text)
		if fromEnd {
			slices.Reverse(parts)
		}
		kept, used := 0, 0
		for _, p := range parts {
			n := EstimateTokens(p)
			if used+n > maxTokens {
				break
			}
			used += n
			kept++
		}
		if kept == 0 {
			continue
		}
		out := parts[:kept]
		if fromEnd {
			slices.Reverse(out)
		}
		return strings.Join(out, lv.sep)
	}
	return ""
}

// splitByParagraphs splits on double-newlines.
func splitByParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// splitSentences does basic sentence splitting.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if isSentenceEnd(r) && (i+1 >= len(text) || text[i+1] == ' ' || text[i+1] == '\n' || r > 0x3000) {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
