// Package generatetest provides a scripted generation service for tests.
package generatetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dgallion1/docpen/internal/generate"
)

// Scripted replays a fixed list of tokens. When Err is set it is returned
// after FailAfter tokens have been delivered. Step, when non-nil, is called
// before each token is delivered and may block to let a test interleave
// edits.
type Scripted struct {
	Tokens    []string
	Err       error
	FailAfter int
	Step      func(i int)

	mu      sync.Mutex
	prompts []string
	opts    []generate.Options
}

func (s *Scripted) record(prompt string, opts generate.Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	s.opts = append(s.opts, opts)
}

// Prompts returns every prompt received so far.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// LastOptions returns the options of the latest call.
func (s *Scripted) LastOptions() generate.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.opts) == 0 {
		return generate.Options{}
	}
	return s.opts[len(s.opts)-1]
}

func (s *Scripted) GenerateText(ctx context.Context, prompt string, opts generate.Options) (generate.Response, error) {
	s.record(prompt, opts)
	if s.Err != nil {
		return generate.Response{}, s.Err
	}
	return generate.Response{Text: strings.Join(s.Tokens, ""), Model: opts.Model}, nil
}

func (s *Scripted) GenerateStream(ctx context.Context, prompt string, opts generate.Options, onToken generate.TokenFunc) error {
	s.record(prompt, opts)
	for i, tok := range s.Tokens {
		if s.Err != nil && i >= s.FailAfter {
			return s.Err
		}
		if s.Step != nil {
			s.Step(i)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onToken(tok); err != nil {
			return fmt.Errorf("token callback: %w", err)
		}
	}
	return s.Err
}
