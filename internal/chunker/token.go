package chunker

import (
	"strings"
	"unicode"
)

// EstimateTokens gives a rough token count. Space-separated words count as
// ~1.33 tokens; CJK characters, which carry no spaces, count one each.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := 0
	cjk := 0
	for _, f := range strings.Fields(text) {
		n := 0
		for _, r := range f {
			if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
				n++
			}
		}
		cjk += n
		if n == 0 {
			words++
		}
	}
	tokens := int(float64(words)*1.33) + cjk
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
