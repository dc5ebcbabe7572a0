package prompt

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxOptionLen = 80
	maxKeywords  = 10
)

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+|pretend\s+|forget\s+(everything|all)|override|` +
		`new\s+instructions)`,
)

// Sanitize drops option values that look like prompt injection and caps the
// rest. Options end up inside instructions, unlike document text which is
// always fenced.
func Sanitize(o Options) Options {
	o.Style = cleanOption(o.Style)
	o.Tone = cleanOption(o.Tone)
	o.Genre = cleanOption(o.Genre)
	o.Language = cleanOption(o.Language)
	o.TargetLanguage = cleanOption(o.TargetLanguage)
	o.TargetLength = cleanOption(o.TargetLength)

	var kw []string
	for _, k := range o.Keywords {
		if k = cleanOption(k); k != "" {
			kw = append(kw, k)
		}
		if len(kw) == maxKeywords {
			break
		}
	}
	o.Keywords = kw
	return o
}

func cleanOption(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" || injectionPattern.MatchString(s) {
		return ""
	}
	if utf8.RuneCountInString(s) > maxOptionLen {
		s = string([]rune(s)[:maxOptionLen])
	}
	return strings.Trim(s, `"`)
}
