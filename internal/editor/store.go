package editor

import (
	"slices"
	"sync"

	"github.com/gofrs/uuid"

	"github.com/dgallion1/docpen/internal/doctree"
)

// Store is a thread-safe in-memory registry of open editors.
type Store struct {
	mu      sync.Mutex
	editors map[string]*Editor
	opts    []Option
	onCount func(int)
}

// NewStore returns an empty store; opts apply to every editor it creates.
// onCount, when non-nil, is told the number of open editors after each change.
func NewStore(onCount func(int), opts ...Option) *Store {
	return &Store{
		editors: make(map[string]*Editor),
		opts:    opts,
		onCount: onCount,
	}
}

// Create opens a new editor for doc under a fresh id.
func (s *Store) Create(doc *doctree.Document) *Editor {
	id := uuid.Must(uuid.NewV4()).String()
	e := New(id, doc, s.opts...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editors[id] = e
	s.countLocked()
	return e
}

func (s *Store) Get(id string) *Editor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editors[id]
}

// Delete closes the editor with the given id. It reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	e, ok := s.editors[id]
	if ok {
		delete(s.editors, id)
		s.countLocked()
	}
	s.mu.Unlock()
	if ok {
		e.Close()
	}
	return ok
}

// IDs returns the ids of all open editors in sorted order.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.editors))
	for id := range s.editors {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Store) countLocked() {
	if s.onCount != nil {
		s.onCount(len(s.editors))
	}
}
