// Package stream commits generated text into a live document while the user
// keeps editing it.
//
// A Session captures an anchor range when generation starts. Every token is
// committed in its own editor transaction: the tracked position is first
// carried through all edits made since the previous commit, then the token is
// inserted there. If the position cannot be carried (its block or the text
// around it was removed, or the edit log no longer reaches back far enough)
// the session stops with ErrAnchorLost rather than insert anywhere else.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dgallion1/docpen/internal/doctree"
	"github.com/dgallion1/docpen/internal/editor"
	"github.com/dgallion1/docpen/internal/generate"
	"github.com/dgallion1/docpen/internal/metrics"
	"github.com/dgallion1/docpen/internal/transform"
)

var (
	// ErrAnchorLost indicates that the tracked insertion point no longer
	// exists in the current document.
	ErrAnchorLost = errors.New("anchor lost")

	// ErrGenerationFailed indicates that the generation service failed.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrCancelled is returned from Push after Cancel.
	ErrCancelled = errors.New("session cancelled")

	errNotPending = errors.New("session already started")
	errFinished   = errors.New("session finished")
)

// Mode selects what happens to the anchor range.
type Mode string

const (
	// ModeReplace deletes the anchor range before the first token.
	ModeReplace Mode = "replace"
	// ModeInsertAfter inserts at a collapsed anchor.
	ModeInsertAfter Mode = "insert_after"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusStreaming  Status = "streaming"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusAnchorLost Status = "anchor_lost"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further tokens will be committed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusAnchorLost, StatusFailed:
		return true
	}
	return false
}

// Session streams text into one editor.
type Session struct {
	ed  *editor.Editor
	log *slog.Logger
	met *metrics.Metrics

	mode      Mode
	anchor    doctree.Selection
	preceding string
	selected  string

	cancelled atomic.Bool

	mu        sync.Mutex
	status    Status
	start     doctree.Position
	end       doctree.Position
	committed doctree.Position
	since     uint64
	deleted   bool
	text      strings.Builder
	tokens    int
	err       error
	stop      context.CancelFunc
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.met = m }
}

// New anchors a session at the editor's current selection.
func New(ed *editor.Editor, opts ...Option) (*Session, error) {
	return newSession(ed, nil, opts)
}

// NewAt anchors a session at an explicit range of the current document.
func NewAt(ed *editor.Editor, r doctree.Selection, opts ...Option) (*Session, error) {
	return newSession(ed, &r, opts)
}

// NewInTx anchors a session at r inside a running editor transaction, so the
// caller can read the document and capture the anchor atomically.
func NewInTx(tx *editor.Tx, r doctree.Selection, opts ...Option) (*Session, error) {
	s := newPending(tx.Editor(), opts)
	if err := s.capture(tx, &r); err != nil {
		return nil, fmt.Errorf("capture anchor: %w", err)
	}
	return s.started(), nil
}

func newSession(ed *editor.Editor, r *doctree.Selection, opts []Option) (*Session, error) {
	s := newPending(ed, opts)
	err := ed.Update(func(tx *editor.Tx) error { return s.capture(tx, r) })
	if err != nil {
		return nil, fmt.Errorf("capture anchor: %w", err)
	}
	return s.started(), nil
}

func newPending(ed *editor.Editor, opts []Option) *Session {
	s := &Session{ed: ed, log: slog.Default(), status: StatusPending}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Session) capture(tx *editor.Tx, r *doctree.Selection) error {
	doc := tx.Doc()
	sel := doc.Selection
	if r != nil {
		sel = *r
	}
	first, last := sel.Edges()
	start, err := doc.PositionOf(first)
	if err != nil {
		return err
	}
	end, err := doc.PositionOf(last)
	if err != nil {
		return err
	}
	if s.preceding, err = doc.StringAt(doctree.Selection{Anchor: doc.Start(), Focus: first}); err != nil {
		return err
	}
	if s.selected, err = doc.StringAt(sel); err != nil {
		return err
	}
	s.anchor = sel
	s.start, s.end, s.committed = start, end, start
	s.since = tx.Version()
	return nil
}

func (s *Session) started() *Session {
	s.mode = ModeInsertAfter
	if !s.anchor.Collapsed() {
		s.mode = ModeReplace
	}
	s.log = s.log.With("doc_id", s.ed.ID(), "mode", string(s.mode))
	return s
}

// Mode returns the session's mode.
func (s *Session) Mode() Mode { return s.mode }

// Anchor returns the range captured at start.
func (s *Session) Anchor() doctree.Selection { return s.anchor }

// Preceding returns the document text before the anchor at capture time,
// used as context for continue-writing prompts.
func (s *Session) Preceding() string { return s.preceding }

// Selected returns the anchored text at capture time.
func (s *Session) Selected() string { return s.selected }

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the error that ended the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Text returns the text committed so far.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.String()
}

// Tokens returns the number of tokens committed so far.
func (s *Session) Tokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// CommittedPoint resolves the position after the last committed token in
// the current document.
func (s *Session) CommittedPoint() (doctree.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var p doctree.Point
	err := s.ed.Update(func(tx *editor.Tx) error {
		pos, err := tx.MapPosition(s.committed, s.since)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrAnchorLost, err)
		}
		p, err = tx.Doc().PointAt(pos)
		return err
	})
	return p, err
}

// Cancel stops the session before its next commit. Text already committed
// stays in the document.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
	s.mu.Lock()
	stop := s.stop
	if s.status == StatusPending {
		s.status = StatusCancelled
	}
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Push commits one token. Empty tokens are ignored. After the session ends,
// Push returns the error that ended it.
func (s *Session) Push(token string) error {
	if s.cancelled.Load() {
		return ErrCancelled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.status.Terminal() {
		return errFinished
	}
	if token == "" {
		return nil
	}
	s.status = StatusStreaming

	err := s.ed.Update(func(tx *editor.Tx) error {
		if s.cancelled.Load() {
			return ErrCancelled
		}
		return s.commitLocked(tx, token)
	})
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return err
		}
		s.status = StatusAnchorLost
		s.err = err
		s.log.Warn("stream anchor lost", "tokens", s.tokens, "error", err)
		return err
	}
	s.text.WriteString(token)
	s.tokens++
	s.met.TokensCommitted(1)
	return nil
}

func (s *Session) commitLocked(tx *editor.Tx, token string) error {
	at, err := s.mapLocked(tx, s.committed)
	if err != nil {
		return err
	}
	if s.mode == ModeReplace && !s.deleted {
		end, err := s.mapLocked(tx, s.end)
		if err != nil {
			return err
		}
		r, err := s.rangeLocked(tx.Doc(), at, end)
		if err != nil {
			return err
		}
		res, err := tx.Apply(transform.DeleteRange{Range: &r, PreserveSelection: true})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrAnchorLost, err)
		}
		at, s.since, s.deleted = res.Cursor, tx.Version(), true
		s.committed = at
	}

	r, err := s.rangeLocked(tx.Doc(), at, at)
	if err != nil {
		return err
	}
	res, err := tx.Apply(transform.InsertText{Range: &r, Text: token, PreserveSelection: true})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAnchorLost, err)
	}
	s.committed, s.since = res.Cursor, tx.Version()
	return nil
}

func (s *Session) mapLocked(tx *editor.Tx, pos doctree.Position) (doctree.Position, error) {
	mapped, err := tx.MapPosition(pos, s.since)
	if err != nil {
		return pos, fmt.Errorf("%w: %w", ErrAnchorLost, err)
	}
	return mapped, nil
}

func (s *Session) rangeLocked(doc *doctree.Document, from, to doctree.Position) (doctree.Selection, error) {
	a, err := doc.PointAt(from)
	if err != nil {
		return doctree.Selection{}, fmt.Errorf("%w: %w", ErrAnchorLost, err)
	}
	f, err := doc.PointAt(to)
	if err != nil {
		return doctree.Selection{}, fmt.Errorf("%w: %w", ErrAnchorLost, err)
	}
	return doctree.Selection{Anchor: a, Focus: f}, nil
}

// Run streams the answer to prompt from svc into the document. It returns
// nil on completion or cancellation, an error wrapping ErrAnchorLost when the
// anchor disappears, and one wrapping ErrGenerationFailed when svc fails.
// Committed text is never rolled back.
func (s *Session) Run(ctx context.Context, svc generate.Service, prompt string, opts generate.Options) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	s.mu.Lock()
	if s.status != StatusPending {
		s.mu.Unlock()
		if s.cancelled.Load() {
			return nil
		}
		return errNotPending
	}
	s.stop = stop
	s.status = StatusStreaming
	s.mu.Unlock()

	s.log.Info("stream started", "model", opts.Model)
	err := svc.GenerateStream(ctx, prompt, opts, s.Push)
	return s.finish(err)
}

func (s *Session) finish(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop = nil

	switch {
	case s.cancelled.Load():
		s.status = StatusCancelled
		s.log.Info("stream cancelled", "tokens", s.tokens)
		return nil
	case s.status == StatusAnchorLost:
		return s.err
	case err != nil:
		s.status = StatusFailed
		s.err = fmt.Errorf("%w: %w", ErrGenerationFailed, err)
		s.log.Warn("stream failed", "tokens", s.tokens, "error", err)
		return s.err
	}
	s.status = StatusCompleted
	s.log.Info("stream completed", "tokens", s.tokens, "chars", s.text.Len())
	return nil
}
