// Package service implements the note and library operations behind the HTTP
// handlers: id assignment, lazy expiry, upsert-by-note and password gates.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/notebins/notebins/internal/apperror"
	"github.com/notebins/notebins/internal/note"
	"github.com/notebins/notebins/internal/note/repository"
	"github.com/notebins/notebins/internal/password"
	"github.com/notebins/notebins/internal/shortid"
	"github.com/notebins/notebins/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultTTL is how long notes and saved notes live after creation.
const DefaultTTL = 3 * 24 * time.Hour

const maxIDAttempts = 5

// PasswordHasher hashes and checks note passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type Service struct {
	notes  repository.NoteRepository
	saved  repository.SavedNoteRepository
	hasher PasswordHasher
	ids    shortid.Generator
	ttl    time.Duration
	now    func() time.Time
}

// New returns a Service. A zero ttl means DefaultTTL.
func New(notes repository.NoteRepository, saved repository.SavedNoteRepository, hasher PasswordHasher, ids shortid.Generator, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{notes: notes, saved: saved, hasher: hasher, ids: ids, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock replaces the time source; used by tests to step past expiry.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CreateNote stores a new note. An empty password leaves it unprotected.
func (s *Service) CreateNote(ctx context.Context, content, password string) (note.SafeNote, error) {
	now := s.now()
	n := &note.Note{
		Content:       content,
		ContentLength: note.ContentLength(content),
		ExpiresAt:     now.Add(s.ttl),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if password != "" {
		hash, err := s.hash(password)
		if err != nil {
			return note.SafeNote{}, err
		}
		n.PasswordHash = hash
		n.IsPasswordProtected = true
	}
	for attempt := 0; ; attempt++ {
		n.ID = s.ids()
		err := s.notes.Create(ctx, n)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicate) || attempt+1 >= maxIDAttempts {
			return note.SafeNote{}, fmt.Errorf("create note: %w", err)
		}
		logger.Warnf("note id collision on %s, retrying", n.ID)
	}
	logger.Infof("Note created with ID: %s", n.ID)
	return n.Safe(), nil
}

// hash maps an over-long password to a validation error.
func (s *Service) hash(pw string) (string, error) {
	h, err := s.hasher.Hash(pw)
	if errors.Is(err, password.ErrTooLong) {
		return "", apperror.Invalid("Password is too long", apperror.FieldError{
			Field:   "password",
			Message: fmt.Sprintf("password must be at most %d bytes", password.MaxBytes),
		})
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return h, nil
}

// loadNote returns the note or a not-found error, deleting it first when expired.
func (s *Service) loadNote(ctx context.Context, id string) (*note.Note, error) {
	n, err := s.notes.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFoundf("Note with ID %s not found", id)
		}
		return nil, fmt.Errorf("load note %s: %w", id, err)
	}
	if n.Expired(s.now()) {
		if err := s.notes.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
			logger.Errorf("delete expired note %s: %v", id, err)
		}
		return nil, apperror.NotFoundf("Note with ID %s has expired", id)
	}
	return n, nil
}

// GetNote returns the note with its content blanked when protected.
func (s *Service) GetNote(ctx context.Context, id string) (note.SafeNote, error) {
	n, err := s.loadNote(ctx, id)
	if err != nil {
		return note.SafeNote{}, err
	}
	return n.Locked(), nil
}

func (s *Service) UpdateNote(ctx context.Context, id, content string) error {
	if _, err := s.loadNote(ctx, id); err != nil {
		return err
	}
	if err := s.notes.UpdateContent(ctx, id, content, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFoundf("Note with ID %s not found", id)
		}
		return fmt.Errorf("update note %s: %w", id, err)
	}
	return nil
}

// VerifyNote returns the full note when password matches.
func (s *Service) VerifyNote(ctx context.Context, id, password string) (note.SafeNote, error) {
	if password == "" {
		return note.SafeNote{}, apperror.Invalid("Password is required", apperror.Required("password")...)
	}
	n, err := s.loadNote(ctx, id)
	if err != nil {
		return note.SafeNote{}, err
	}
	if !n.IsPasswordProtected {
		return note.SafeNote{}, apperror.BadRequest("Note is not password protected")
	}
	if !s.hasher.Verify(password, n.PasswordHash) {
		return note.SafeNote{}, apperror.Unauthorizedf("Invalid password")
	}
	return n.Safe(), nil
}

// SaveInput is a save-to-library request. BaseURL prefixes the stored url.
type SaveInput struct {
	Title    string
	NoteID   string
	Content  string
	Password string
	BaseURL  string
}

// SaveNote upserts the library copy of a note. created reports whether a new
// saved note was made. A re-save only changes protection when a password is given.
func (s *Service) SaveNote(ctx context.Context, in SaveInput) (note.SafeSavedNote, bool, error) {
	title := strings.TrimSpace(in.Title)
	var missing []string
	if title == "" {
		missing = append(missing, "title")
	}
	if in.NoteID == "" {
		missing = append(missing, "noteId")
	}
	if in.Content == "" {
		missing = append(missing, "content")
	}
	if len(missing) > 0 {
		return note.SafeSavedNote{}, false, apperror.Invalid("Title, noteId, and content are required", apperror.Required(missing...)...)
	}
	if _, err := s.loadNote(ctx, in.NoteID); err != nil {
		return note.SafeSavedNote{}, false, err
	}
	var hash string
	if in.Password != "" {
		h, err := s.hash(in.Password)
		if err != nil {
			return note.SafeSavedNote{}, false, err
		}
		hash = h
	}

	existing, err := s.savedByNote(ctx, in.NoteID)
	if err != nil {
		return note.SafeSavedNote{}, false, err
	}
	if existing == nil {
		now := s.now()
		sn := &note.SavedNote{
			Title:               title,
			Content:             in.Content,
			ContentLength:       note.ContentLength(in.Content),
			NoteID:              in.NoteID,
			URL:                 strings.TrimRight(in.BaseURL, "/") + "/" + in.NoteID,
			IsPasswordProtected: hash != "",
			PasswordHash:        hash,
			ExpiresAt:           now.Add(s.ttl),
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		err := s.saved.Create(ctx, sn)
		if err == nil {
			logger.Infof("Note %s saved to library as %s", in.NoteID, sn.ID)
			return sn.Safe(), true, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return note.SafeSavedNote{}, false, fmt.Errorf("save note %s: %w", in.NoteID, err)
		}
		// lost a concurrent create for the same note; fall through to update
		existing, err = s.saved.GetByNoteID(ctx, in.NoteID)
		if err != nil {
			return note.SafeSavedNote{}, false, fmt.Errorf("reload saved note %s: %w", in.NoteID, err)
		}
	}

	existing.Title = title
	existing.Content = in.Content
	existing.ContentLength = note.ContentLength(in.Content)
	existing.UpdatedAt = s.now()
	existing.PasswordHash = ""
	if hash != "" {
		existing.IsPasswordProtected = true
		existing.PasswordHash = hash
	}
	if err := s.saved.Update(ctx, existing); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return note.SafeSavedNote{}, false, apperror.NotFoundf("Saved note with ID %s not found", existing.ID)
		}
		return note.SafeSavedNote{}, false, fmt.Errorf("update saved note %s: %w", existing.ID, err)
	}
	logger.Infof("Note %s updated in library", in.NoteID)
	return existing.Safe(), false, nil
}

// savedByNote returns the live saved note for noteID, or nil when there is none.
func (s *Service) savedByNote(ctx context.Context, noteID string) (*note.SavedNote, error) {
	sn, err := s.saved.GetByNoteID(ctx, noteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load saved note for %s: %w", noteID, err)
	}
	if sn.Expired(s.now()) {
		s.expireSaved(ctx, sn)
		return nil, nil
	}
	return sn, nil
}

func (s *Service) expireSaved(ctx context.Context, sn *note.SavedNote) {
	if err := s.saved.Delete(ctx, sn.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.Errorf("delete expired saved note %s: %v", sn.ID, err)
	}
}

func (s *Service) loadSaved(ctx context.Context, id string) (*note.SavedNote, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, apperror.BadRequest("Invalid ID format")
	}
	sn, err := s.saved.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFoundf("Saved note with ID %s not found", id)
		}
		return nil, fmt.Errorf("load saved note %s: %w", id, err)
	}
	if sn.Expired(s.now()) {
		s.expireSaved(ctx, sn)
		return nil, apperror.NotFoundf("Saved note with ID %s has expired", id)
	}
	return sn, nil
}

// ListSaved returns the library, most recently updated first, protected content blanked.
func (s *Service) ListSaved(ctx context.Context) ([]note.SafeSavedNote, error) {
	all, err := s.saved.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list saved notes: %w", err)
	}
	now := s.now()
	out := make([]note.SafeSavedNote, 0, len(all))
	for _, sn := range all {
		if sn.Expired(now) {
			s.expireSaved(ctx, sn)
			continue
		}
		out = append(out, sn.Locked())
	}
	return out, nil
}

func (s *Service) GetSaved(ctx context.Context, id string) (note.SafeSavedNote, error) {
	sn, err := s.loadSaved(ctx, id)
	if err != nil {
		return note.SafeSavedNote{}, err
	}
	return sn.Locked(), nil
}

func (s *Service) VerifySaved(ctx context.Context, id, password string) (note.SafeSavedNote, error) {
	if password == "" {
		return note.SafeSavedNote{}, apperror.Invalid("Password is required", apperror.Required("password")...)
	}
	sn, err := s.loadSaved(ctx, id)
	if err != nil {
		return note.SafeSavedNote{}, err
	}
	if !sn.IsPasswordProtected {
		return note.SafeSavedNote{}, apperror.BadRequest("Note is not password protected")
	}
	if !s.hasher.Verify(password, sn.PasswordHash) {
		return note.SafeSavedNote{}, apperror.Unauthorizedf("Invalid password")
	}
	return sn.Safe(), nil
}

// DeleteSaved removes a saved note; protected ones need the matching password.
func (s *Service) DeleteSaved(ctx context.Context, id, password string) error {
	sn, err := s.loadSaved(ctx, id)
	if err != nil {
		return err
	}
	if sn.IsPasswordProtected {
		if password == "" {
			return apperror.Invalid("Password is required to delete this note", apperror.Required("password")...)
		}
		if !s.hasher.Verify(password, sn.PasswordHash) {
			return apperror.Unauthorizedf("Invalid password")
		}
	}
	if err := s.saved.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFoundf("Saved note with ID %s not found", id)
		}
		return fmt.Errorf("delete saved note %s: %w", id, err)
	}
	logger.Infof("Saved note %s deleted", id)
	return nil
}

// CheckSaved returns the library entry for a source note id.
func (s *Service) CheckSaved(ctx context.Context, noteID string) (note.SafeSavedNote, error) {
	sn, err := s.savedByNote(ctx, noteID)
	if err != nil {
		return note.SafeSavedNote{}, err
	}
	if sn == nil {
		return note.SafeSavedNote{}, apperror.NotFoundf("Note not found in library")
	}
	return sn.Locked(), nil
}
