package note

import (
	"time"
	"unicode/utf8"
)

// Note is an ephemeral shareable text note addressed by a short public id.
// PasswordHash never leaves the server; clients only ever see SafeNote.
type Note struct {
	ID                  string    `json:"id" bson:"id"`
	Content             string    `json:"content" bson:"content"`
	ContentLength       int       `json:"contentLength" bson:"contentLength"`
	IsPasswordProtected bool      `json:"isPasswordProtected" bson:"isPasswordProtected"`
	PasswordHash        string    `json:"-" bson:"password,omitempty"`
	ExpiresAt           time.Time `json:"expiresAt" bson:"expiresAt"`
	CreatedAt           time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt" bson:"updatedAt"`
}

// SavedNote is a named library copy of a note's content. At most one exists per NoteID.
type SavedNote struct {
	ID                  string    `json:"id" bson:"_id"`
	Title               string    `json:"title" bson:"title"`
	Content             string    `json:"content" bson:"content"`
	ContentLength       int       `json:"contentLength" bson:"contentLength"`
	NoteID              string    `json:"noteId" bson:"noteId"`
	URL                 string    `json:"url" bson:"url"`
	IsPasswordProtected bool      `json:"isPasswordProtected" bson:"isPasswordProtected"`
	PasswordHash        string    `json:"-" bson:"password,omitempty"`
	ExpiresAt           time.Time `json:"expiresAt" bson:"expiresAt"`
	CreatedAt           time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt" bson:"updatedAt"`
}

// SafeNote is the client-facing projection of a Note.
type SafeNote struct {
	ID                  string    `json:"id"`
	Content             string    `json:"content"`
	ContentLength       int       `json:"contentLength"`
	IsPasswordProtected bool      `json:"isPasswordProtected"`
	ExpiresAt           time.Time `json:"expiresAt"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// SafeSavedNote is the client-facing projection of a SavedNote.
type SafeSavedNote struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	Content             string    `json:"content"`
	ContentLength       int       `json:"contentLength"`
	NoteID              string    `json:"noteId"`
	URL                 string    `json:"url"`
	IsPasswordProtected bool      `json:"isPasswordProtected"`
	ExpiresAt           time.Time `json:"expiresAt"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// ContentLength is the stored length of content, in characters.
func ContentLength(content string) int {
	return utf8.RuneCountInString(content)
}

// Expired reports whether the note is past its expiry at now.
func (n *Note) Expired(now time.Time) bool {
	return now.After(n.ExpiresAt)
}

func (n *Note) Safe() SafeNote {
	return SafeNote{
		ID:                  n.ID,
		Content:             n.Content,
		ContentLength:       n.ContentLength,
		IsPasswordProtected: n.IsPasswordProtected,
		ExpiresAt:           n.ExpiresAt,
		CreatedAt:           n.CreatedAt,
		UpdatedAt:           n.UpdatedAt,
	}
}

// Locked is Safe with the content blanked when the note is password protected.
func (n *Note) Locked() SafeNote {
	s := n.Safe()
	if n.IsPasswordProtected {
		s.Content = ""
	}
	return s
}

func (s *SavedNote) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

func (s *SavedNote) Safe() SafeSavedNote {
	return SafeSavedNote{
		ID:                  s.ID,
		Title:               s.Title,
		Content:             s.Content,
		ContentLength:       s.ContentLength,
		NoteID:              s.NoteID,
		URL:                 s.URL,
		IsPasswordProtected: s.IsPasswordProtected,
		ExpiresAt:           s.ExpiresAt,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

// Locked is Safe with the content blanked when the saved note is password protected.
func (s *SavedNote) Locked() SafeSavedNote {
	out := s.Safe()
	if s.IsPasswordProtected {
		out.Content = ""
	}
	return out
}
