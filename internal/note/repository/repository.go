package repository

import (
	"context"
	"errors"
	"time"

	"github.com/notebins/notebins/internal/note"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// NoteRepository persists ephemeral notes keyed by their public id.
// Get returns the record including its password hash.
type NoteRepository interface {
	Create(ctx context.Context, n *note.Note) error
	Get(ctx context.Context, id string) (*note.Note, error)
	UpdateContent(ctx context.Context, id, content string, at time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SavedNoteRepository persists library copies. Create fails with ErrDuplicate when a
// saved note for the same NoteID already exists. Update rewrites title, content,
// content length, password state and updatedAt of an existing record. List is ordered
// by updatedAt, newest first.
type SavedNoteRepository interface {
	Create(ctx context.Context, s *note.SavedNote) error
	Get(ctx context.Context, id string) (*note.SavedNote, error)
	GetByNoteID(ctx context.Context, noteID string) (*note.SavedNote, error)
	Update(ctx context.Context, s *note.SavedNote) error
	List(ctx context.Context) ([]*note.SavedNote, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
