package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/notebins/notebins/internal/note"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// noteRecord is the stored JSON form of a note; the hash is hidden from the
// public JSON encoding so it is carried in a separate field.
type noteRecord struct {
	note.Note
	Password string `json:"password,omitempty"`
}

type savedRecord struct {
	note.SavedNote
	Password string `json:"password,omitempty"`
}

// ttlUntil keeps a minimal TTL so Redis never stores an already expired key forever.
func ttlUntil(t time.Time) time.Duration {
	d := time.Until(t)
	if d < time.Second {
		d = time.Second
	}
	return d
}

// RedisNoteRepo stores notes as JSON under "<prefix><id>" with TTL = expiresAt - now.
type RedisNoteRepo struct {
	client *redis.Client
	prefix string
}

// NewRedisNoteRepo creates a Redis-backed note repository. Prefix may be empty.
func NewRedisNoteRepo(client *redis.Client, prefix string) *RedisNoteRepo {
	if prefix == "" {
		prefix = "note:"
	}
	return &RedisNoteRepo{client: client, prefix: prefix}
}

func (r *RedisNoteRepo) key(id string) string {
	return r.prefix + id
}

func (r *RedisNoteRepo) encode(n *note.Note) ([]byte, error) {
	return json.Marshal(noteRecord{Note: *n, Password: n.PasswordHash})
}

func (r *RedisNoteRepo) decode(b []byte) (*note.Note, error) {
	var rec noteRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	n := rec.Note
	n.PasswordHash = rec.Password
	return &n, nil
}

func (r *RedisNoteRepo) Create(ctx context.Context, n *note.Note) error {
	b, err := r.encode(n)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, r.key(n.ID), b, ttlUntil(n.ExpiresAt)).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicate
	}
	return nil
}

func (r *RedisNoteRepo) Get(ctx context.Context, id string) (*note.Note, error) {
	b, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r.decode(b)
}

func (r *RedisNoteRepo) UpdateContent(ctx context.Context, id, content string, at time.Time) error {
	n, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	n.Content = content
	n.ContentLength = note.ContentLength(content)
	n.UpdatedAt = at
	b, err := r.encode(n)
	if err != nil {
		return err
	}
	ok, err := r.client.SetXX(ctx, r.key(id), b, ttlUntil(n.ExpiresAt)).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r *RedisNoteRepo) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpired scans the key space for notes whose stored expiry has passed.
// Keys normally vanish on their own TTL; this catches records written with a
// clock ahead of the server's.
func (r *RedisNoteRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		b, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return deleted, err
		}
		n, err := r.decode(b)
		if err != nil || !n.ExpiresAt.Before(now) {
			continue
		}
		c, err := r.client.Del(ctx, key).Result()
		if err != nil {
			return deleted, err
		}
		deleted += c
	}
	return deleted, iter.Err()
}

// RedisSavedNoteRepo keeps each saved note under "<prefix><id>", a
// "<prefix>by-note:<noteId>" pointer for uniqueness and a sorted set
// "<prefix>updated" scored by updatedAt for listing.
type RedisSavedNoteRepo struct {
	client *redis.Client
	prefix string
}

func NewRedisSavedNoteRepo(client *redis.Client, prefix string) *RedisSavedNoteRepo {
	if prefix == "" {
		prefix = "savednote:"
	}
	return &RedisSavedNoteRepo{client: client, prefix: prefix}
}

func (r *RedisSavedNoteRepo) key(id string) string { return r.prefix + id }

func (r *RedisSavedNoteRepo) noteKey(noteID string) string { return r.prefix + "by-note:" + noteID }

func (r *RedisSavedNoteRepo) indexKey() string { return r.prefix + "updated" }

func (r *RedisSavedNoteRepo) encode(s *note.SavedNote) ([]byte, error) {
	return json.Marshal(savedRecord{SavedNote: *s, Password: s.PasswordHash})
}

func (r *RedisSavedNoteRepo) decode(b []byte) (*note.SavedNote, error) {
	var rec savedRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	s := rec.SavedNote
	s.PasswordHash = rec.Password
	return &s, nil
}

func (r *RedisSavedNoteRepo) write(ctx context.Context, s *note.SavedNote) error {
	b, err := r.encode(s)
	if err != nil {
		return err
	}
	ttl := ttlUntil(s.ExpiresAt)
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.key(s.ID), b, ttl)
		p.Expire(ctx, r.noteKey(s.NoteID), ttl)
		p.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(s.UpdatedAt.UnixMilli()), Member: s.ID})
		return nil
	})
	return err
}

func (r *RedisSavedNoteRepo) Create(ctx context.Context, s *note.SavedNote) error {
	if s.ID == "" {
		s.ID = primitive.NewObjectID().Hex()
	}
	ok, err := r.client.SetNX(ctx, r.noteKey(s.NoteID), s.ID, ttlUntil(s.ExpiresAt)).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicate
	}
	return r.write(ctx, s)
}

func (r *RedisSavedNoteRepo) Get(ctx context.Context, id string) (*note.SavedNote, error) {
	b, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r.decode(b)
}

func (r *RedisSavedNoteRepo) GetByNoteID(ctx context.Context, noteID string) (*note.SavedNote, error) {
	id, err := r.client.Get(ctx, r.noteKey(noteID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *RedisSavedNoteRepo) Update(ctx context.Context, s *note.SavedNote) error {
	cur, err := r.Get(ctx, s.ID)
	if err != nil {
		return err
	}
	cur.Title = s.Title
	cur.Content = s.Content
	cur.ContentLength = s.ContentLength
	cur.IsPasswordProtected = s.IsPasswordProtected
	if s.PasswordHash != "" {
		cur.PasswordHash = s.PasswordHash
	}
	cur.UpdatedAt = s.UpdatedAt
	return r.write(ctx, cur)
}

// load fetches the records behind ids, dropping index members whose record is gone.
func (r *RedisSavedNoteRepo) load(ctx context.Context, ids []string) ([]*note.SavedNote, error) {
	out := []*note.SavedNote{}
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	var dangling []interface{}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			dangling = append(dangling, ids[i])
			continue
		}
		s, err := r.decode([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if len(dangling) > 0 {
		if err := r.client.ZRem(ctx, r.indexKey(), dangling...).Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *RedisSavedNoteRepo) List(ctx context.Context) ([]*note.SavedNote, error) {
	ids, err := r.client.ZRevRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return r.load(ctx, ids)
}

func (r *RedisSavedNoteRepo) remove(ctx context.Context, s *note.SavedNote) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.key(s.ID), r.noteKey(s.NoteID))
		p.ZRem(ctx, r.indexKey(), s.ID)
		return nil
	})
	return err
}

func (r *RedisSavedNoteRepo) Delete(ctx context.Context, id string) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return r.remove(ctx, s)
}

func (r *RedisSavedNoteRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return 0, err
	}
	all, err := r.load(ctx, ids)
	if err != nil {
		return 0, err
	}
	var deleted int64
	for _, s := range all {
		if !s.ExpiresAt.Before(now) {
			continue
		}
		if err := r.remove(ctx, s); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
