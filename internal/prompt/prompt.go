// Package prompt turns an editing intent and its context into the text sent
// to a generation service. Every builder is a pure function.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/docpen/internal/chunker"
)

var (
	// ErrUnknownAction indicates an unsupported action name.
	ErrUnknownAction = errors.New("unknown action")

	// ErrEmptyText indicates an action that needs selected text got none.
	ErrEmptyText = errors.New("no text selected")
)

// Action names an assist operation.
type Action string

const (
	ActionContinue  Action = "continue"
	ActionSummary   Action = "summary"
	ActionProofread Action = "proofread"
	ActionStyle     Action = "style"
	ActionTranslate Action = "translate"
	ActionOptimize  Action = "optimize"
)

// Actions lists every supported action.
var Actions = []Action{ActionContinue, ActionSummary, ActionProofread, ActionStyle, ActionTranslate, ActionOptimize}

// Valid reports whether a is a supported action.
func (a Action) Valid() bool {
	for _, x := range Actions {
		if a == x {
			return true
		}
	}
	return false
}

// Replaces reports whether the result takes the place of the selected text.
// Other actions insert their result after the selection.
func (a Action) Replaces() bool {
	switch a {
	case ActionProofread, ActionStyle, ActionTranslate:
		return true
	}
	return false
}

// Options are the named parameters of an action. Empty fields use the
// builder's defaults.
type Options struct {
	Style          string   `json:"style,omitempty"`
	Tone           string   `json:"tone,omitempty"`
	Genre          string   `json:"genre,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
	Language       string   `json:"language,omitempty"`
	TargetLanguage string   `json:"target_language,omitempty"`
	TargetLength   string   `json:"target_length,omitempty"`
}

// Request is everything a builder needs.
type Request struct {
	Action  Action
	Text    string
	Window  chunker.Window
	Options Options
}

// Build dispatches req to its builder after sanitizing the options.
func Build(req Request) (string, error) {
	o := Sanitize(req.Options)
	if req.Action == ActionContinue {
		return Continue(req.Window, o), nil
	}
	if !req.Action.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
	if strings.TrimSpace(req.Text) == "" {
		return "", fmt.Errorf("%s: %w", req.Action, ErrEmptyText)
	}
	switch req.Action {
	case ActionSummary:
		return Summary(req.Text, o), nil
	case ActionProofread:
		return Proofread(req.Text, o), nil
	case ActionStyle:
		return Style(req.Text, o), nil
	case ActionTranslate:
		return Translate(req.Text, o), nil
	}
	return Optimize(req.Text), nil
}

func quoted(sb *strings.Builder, label, text string) {
	sb.WriteString(label)
	sb.WriteString(":\n\"\"\"\n")
	sb.WriteString(text)
	sb.WriteString("\n\"\"\"\n\n")
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Continue asks for a continuation of the text before the cursor.
func Continue(w chunker.Window, o Options) string {
	var sb strings.Builder
	sb.WriteString("Continue writing the following text.\n\n")
	if len(w.Breadcrumb) > 0 {
		sb.WriteString("Section: ")
		sb.WriteString(strings.Join(w.Breadcrumb, " > "))
		sb.WriteString("\n\n")
	}
	quoted(&sb, "Previous text", w.Previous)
	if w.Current != "" {
		quoted(&sb, "Current paragraph", w.Current)
	}

	sb.WriteString("Requirements:\n")
	if o.Style != "" {
		fmt.Fprintf(&sb, "- Keep a %q writing style\n", o.Style)
	}
	if o.Tone != "" {
		fmt.Fprintf(&sb, "- Use a %q tone\n", o.Tone)
	}
	if o.Genre != "" {
		fmt.Fprintf(&sb, "- Follow the conventions of %q\n", o.Genre)
	}
	if len(o.Keywords) > 0 {
		fmt.Fprintf(&sb, "- Work in these keywords where natural: %s\n", strings.Join(o.Keywords, ", "))
	}
	sb.WriteString("\nContinue naturally from where the text stops, keeping it coherent and fluent. ")
	sb.WriteString("Stay logical and avoid repetition or contradiction. Respond with the continuation only.")
	return sb.String()
}

// Summary asks for a summary of text.
func Summary(text string, o Options) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Summarize the following text as a %s summary in %s, capturing its key points:\n\n",
		or(o.TargetLength, "short"), or(o.Language, "the text's language"))
	quoted(&sb, "Text", text)
	sb.WriteString("Give a clear, coherent and informative summary. Do not add information that is not in the text.")
	return sb.String()
}

// Proofread asks for a corrected version of text.
func Proofread(text string, o Options) string {
	subject := "text"
	if o.Language != "" {
		subject = o.Language + " text"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Proofread the following %s and fix any grammar, spelling, punctuation or wording errors:\n\n", subject)
	quoted(&sb, "Text", text)
	sb.WriteString("Respond with the corrected text only. If nothing needs fixing, return the text unchanged.")
	return sb.String()
}

// Style asks for text rewritten in another style and tone.
func Style(text string, o Options) string {
	style, tone := or(o.Style, "professional"), or(o.Tone, "formal")
	var sb strings.Builder
	fmt.Fprintf(&sb, "Rewrite the following text in a %s style with a %s tone, keeping its meaning and key information:\n\n", style, tone)
	quoted(&sb, "Text", text)
	fmt.Fprintf(&sb, "Only adjust wording, vocabulary and sentence structure so that it reads as %s and %s. Respond with the rewritten text only.", style, tone)
	return sb.String()
}

// Translate asks for text in another language.
func Translate(text string, o Options) string {
	target := or(o.TargetLanguage, "English")
	var sb strings.Builder
	if o.Language != "" {
		fmt.Fprintf(&sb, "Translate the following %s text into %s, keeping its meaning, style and tone:\n\n", o.Language, target)
	} else {
		fmt.Fprintf(&sb, "Translate the following text into %s, keeping its meaning, style and tone:\n\n", target)
	}
	quoted(&sb, "Text", text)
	fmt.Fprintf(&sb, "Give an accurate, natural translation that reads idiomatically in %s. Respond with the translation only.", target)
	return sb.String()
}

// Optimize asks for improvement suggestions on text.
func Optimize(text string) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following text and suggest improvements to its structure, logic, wording and persuasiveness:\n\n")
	quoted(&sb, "Text", text)
	sb.WriteString(`Cover each of these points concretely:
1. Structure: is the organization clear, and how could it improve
2. Logic: do the claims and their support connect
3. Expression: are word choice and sentence structure apt
4. Content: is anything missing
5. Overall: the two or three most important changes

Include example rewrites where they help.`)
	return sb.String()
}
