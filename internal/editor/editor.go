// Package editor owns live documents: the current snapshot, its history,
// and the log of edits that lets background writers re-resolve positions.
package editor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dgallion1/docpen/internal/doctree"
	"github.com/dgallion1/docpen/internal/history"
	"github.com/dgallion1/docpen/internal/metrics"
	"github.com/dgallion1/docpen/internal/transform"
)

var (
	// ErrPositionLost indicates that an edit removed a tracked position.
	ErrPositionLost = errors.New("position removed by a later edit")

	// ErrStaleVersion indicates that the step log no longer reaches back to
	// the version a position was recorded at.
	ErrStaleVersion = errors.New("version too old to map")
)

const defaultStepLog = 1024

// Change describes one published state transition.
type Change struct {
	Version uint64            `json:"version"`
	Command string            `json:"command"`
	Doc     *doctree.Document `json:"document"`
}

type step struct {
	version uint64
	mapping transform.Mapping
}

// Editor serializes all writes to one document. Readers call Snapshot, which
// never blocks.
type Editor struct {
	id  string
	log *slog.Logger
	met *metrics.Metrics

	cur     atomic.Pointer[doctree.Document]
	version atomic.Uint64

	mu      sync.Mutex
	hist    *history.History
	steps   []step
	maxStep int
	subs    map[int]chan Change
	nextSub int
	closed  bool
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the logger used for command tracing.
func WithLogger(log *slog.Logger) Option {
	return func(e *Editor) { e.log = log }
}

// WithHistoryLimit bounds the undo stack.
func WithHistoryLimit(n int) Option {
	return func(e *Editor) { e.hist = history.New(n) }
}

// WithMetrics records applied commands.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Editor) { e.met = m }
}

// WithStepLog sets how many recent edits are kept for position mapping.
func WithStepLog(n int) Option {
	return func(e *Editor) {
		if n > 0 {
			e.maxStep = n
		}
	}
}

// New returns an editor for doc. A nil doc starts empty.
func New(id string, doc *doctree.Document, opts ...Option) *Editor {
	if doc == nil {
		doc = doctree.New()
	}
	e := &Editor{
		id:      id,
		log:     slog.Default(),
		hist:    history.New(0),
		maxStep: defaultStepLog,
		subs:    make(map[int]chan Change),
	}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.With("doc_id", id)
	e.cur.Store(doc)
	return e
}

// ID returns the editor's document id.
func (e *Editor) ID() string { return e.id }

// Snapshot returns the current document.
func (e *Editor) Snapshot() *doctree.Document { return e.cur.Load() }

// Version returns the number of content changes applied so far.
func (e *Editor) Version() uint64 { return e.version.Load() }

// Apply runs cmd against the current document.
func (e *Editor) Apply(cmd transform.Command) (transform.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applyLocked(cmd)
}

func (e *Editor) applyLocked(cmd transform.Command) (transform.Result, error) {
	before := e.cur.Load()
	res, err := cmd.Apply(before)
	e.met.CommandApplied(cmd.Name(), err)
	if err != nil {
		e.log.Debug("command rejected", "command", cmd.Name(), "error", err)
		return transform.Result{}, fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	if res.Doc == before {
		return res, nil
	}
	e.hist.Record(before)
	e.commitLocked(cmd.Name(), res.Doc, res.Mapping)
	return res, nil
}

func (e *Editor) commitLocked(name string, doc *doctree.Document, m transform.Mapping) {
	v := e.version.Add(1)
	e.steps = append(e.steps, step{version: v, mapping: m})
	if len(e.steps) > e.maxStep {
		drop := len(e.steps) - e.maxStep
		clear(e.steps[:drop])
		e.steps = e.steps[drop:]
	}
	e.cur.Store(doc)
	e.publishLocked(Change{Version: v, Command: name, Doc: doc})
}

// Undo restores the previous snapshot. It reports false when there was
// nothing to undo.
func (e *Editor) Undo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur := e.cur.Load()
	prev, ok := e.hist.Undo(cur)
	if !ok {
		return false
	}
	e.commitLocked("undo", prev, transform.MapByID(cur, prev))
	return true
}

// Redo re-applies the most recently undone snapshot.
func (e *Editor) Redo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur := e.cur.Load()
	next, ok := e.hist.Redo(cur)
	if !ok {
		return false
	}
	e.commitLocked("redo", next, transform.MapByID(cur, next))
	return true
}

// CanUndo and CanRedo report the state of the history stacks.
func (e *Editor) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.CanUndo()
}

func (e *Editor) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.CanRedo()
}

// Select moves the selection. Selection changes are not undoable and do not
// advance the version.
func (e *Editor) Select(sel doctree.Selection) (*doctree.Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	doc, err := e.cur.Load().WithSelection(sel)
	if err != nil {
		return nil, err
	}
	e.cur.Store(doc)
	e.publishLocked(Change{Version: e.version.Load(), Command: "select", Doc: doc})
	return doc, nil
}

// Update runs fn with exclusive access to the document. Every Apply made
// through the transaction is committed individually; an error from fn does
// not roll back commands that already succeeded.
func (e *Editor) Update(fn func(tx *Tx) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(&Tx{e: e})
}

// Tx is the view of an editor inside Update.
type Tx struct {
	e *Editor
}

// Editor returns the editor the transaction belongs to.
func (tx *Tx) Editor() *Editor { return tx.e }

// Doc returns the current document.
func (tx *Tx) Doc() *doctree.Document { return tx.e.cur.Load() }

// Version returns the current version.
func (tx *Tx) Version() uint64 { return tx.e.version.Load() }

// Apply runs cmd as Editor.Apply does.
func (tx *Tx) Apply(cmd transform.Command) (transform.Result, error) {
	return tx.e.applyLocked(cmd)
}

// MapPosition carries pos, recorded at version since, through every edit
// made after it.
func (tx *Tx) MapPosition(pos doctree.Position, since uint64) (doctree.Position, error) {
	return tx.e.mapLocked(pos, since)
}

func (e *Editor) mapLocked(pos doctree.Position, since uint64) (doctree.Position, error) {
	cur := e.version.Load()
	if since == cur {
		return pos, nil
	}
	if since > cur {
		return pos, fmt.Errorf("%w: version %d is ahead of %d", ErrStaleVersion, since, cur)
	}
	if len(e.steps) == 0 || e.steps[0].version > since+1 {
		return pos, fmt.Errorf("%w: version %d", ErrStaleVersion, since)
	}
	for _, s := range e.steps {
		if s.version <= since {
			continue
		}
		var ok bool
		if pos, ok = s.mapping.Map(pos); !ok {
			return pos, fmt.Errorf("%w: at version %d", ErrPositionLost, s.version)
		}
	}
	return pos, nil
}

// Subscribe returns a feed of changes and a function that ends the
// subscription. Events are dropped for subscribers that fall behind. The feed
// is closed when the editor is.
func (e *Editor) Subscribe(buffer int) (<-chan Change, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan Change, max(buffer, 1))
	if e.closed {
		close(ch)
		return ch, func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(ch)
		}
	}
}

// Close ends every subscription. The document stays readable.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
	e.log.Debug("editor closed")
}

func (e *Editor) publishLocked(c Change) {
	for id, ch := range e.subs {
		select {
		case ch <- c:
		default:
			e.log.Warn("dropping change for slow subscriber", "subscriber", id, "version", c.Version)
		}
	}
}
