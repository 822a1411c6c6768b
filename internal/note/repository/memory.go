package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/notebins/notebins/internal/note"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryNoteRepo is an in-memory note store used by tests and the memory backend.
// Records are copied in and out so callers never alias stored state.
type MemoryNoteRepo struct {
	mu    sync.RWMutex
	store map[string]note.Note
}

func NewMemoryNoteRepo() *MemoryNoteRepo {
	return &MemoryNoteRepo{store: make(map[string]note.Note)}
}

func (m *MemoryNoteRepo) Create(_ context.Context, n *note.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[n.ID]; ok {
		return ErrDuplicate
	}
	m.store[n.ID] = *n
	return nil
}

func (m *MemoryNoteRepo) Get(_ context.Context, id string) (*note.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n, ok := m.store[id]; ok {
		return &n, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryNoteRepo) UpdateContent(_ context.Context, id, content string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	n.Content = content
	n.ContentLength = note.ContentLength(content)
	n.UpdatedAt = at
	m.store[id] = n
	return nil
}

func (m *MemoryNoteRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *MemoryNoteRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, rec := range m.store {
		if rec.ExpiresAt.Before(now) {
			delete(m.store, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored notes, expired or not.
func (m *MemoryNoteRepo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// MemorySavedNoteRepo is the in-memory library store. byNote enforces one saved
// note per source note id.
type MemorySavedNoteRepo struct {
	mu     sync.RWMutex
	store  map[string]note.SavedNote
	byNote map[string]string
}

func NewMemorySavedNoteRepo() *MemorySavedNoteRepo {
	return &MemorySavedNoteRepo{
		store:  make(map[string]note.SavedNote),
		byNote: make(map[string]string),
	}
}

func (m *MemorySavedNoteRepo) Create(_ context.Context, s *note.SavedNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byNote[s.NoteID]; ok {
		return ErrDuplicate
	}
	if s.ID == "" {
		s.ID = primitive.NewObjectID().Hex()
	}
	m.store[s.ID] = *s
	m.byNote[s.NoteID] = s.ID
	return nil
}

func (m *MemorySavedNoteRepo) Get(_ context.Context, id string) (*note.SavedNote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.store[id]; ok {
		return &s, nil
	}
	return nil, ErrNotFound
}

func (m *MemorySavedNoteRepo) GetByNoteID(_ context.Context, noteID string) (*note.SavedNote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byNote[noteID]
	if !ok {
		return nil, ErrNotFound
	}
	s := m.store[id]
	return &s, nil
}

func (m *MemorySavedNoteRepo) Update(_ context.Context, s *note.SavedNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[s.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Title = s.Title
	cur.Content = s.Content
	cur.ContentLength = s.ContentLength
	cur.IsPasswordProtected = s.IsPasswordProtected
	if s.PasswordHash != "" {
		cur.PasswordHash = s.PasswordHash
	}
	cur.UpdatedAt = s.UpdatedAt
	m.store[s.ID] = cur
	return nil
}

func (m *MemorySavedNoteRepo) List(_ context.Context) ([]*note.SavedNote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*note.SavedNote, 0, len(m.store))
	for _, s := range m.store {
		s := s
		out = append(out, &s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *MemorySavedNoteRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	delete(m.byNote, s.NoteID)
	return nil
}

func (m *MemorySavedNoteRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.store {
		if s.ExpiresAt.Before(now) {
			delete(m.store, id)
			delete(m.byNote, s.NoteID)
			n++
		}
	}
	return n, nil
}
