package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/notebins/notebins/internal/note"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoNoteRepo stores notes in a collection keyed by the public "id" field;
// Mongo's own _id is left to the driver.
type MongoNoteRepo struct {
	col *mongo.Collection
}

func NewMongoNoteRepo(col *mongo.Collection) *MongoNoteRepo {
	return &MongoNoteRepo{col: col}
}

// EnsureIndexes creates the unique id index and the expiresAt index the sweeper filters on.
func (m *MongoNoteRepo) EnsureIndexes(ctx context.Context) error {
	_, err := m.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("notes indexes: %w", err)
	}
	return nil
}

func (m *MongoNoteRepo) Create(ctx context.Context, n *note.Note) error {
	if _, err := m.col.InsertOne(ctx, n); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (m *MongoNoteRepo) Get(ctx context.Context, id string) (*note.Note, error) {
	var n note.Note
	err := m.col.FindOne(ctx, bson.M{"id": id}).Decode(&n)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (m *MongoNoteRepo) UpdateContent(ctx context.Context, id, content string, at time.Time) error {
	set := bson.M{"content": content, "contentLength": note.ContentLength(content), "updatedAt": at}
	res, err := m.col.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoNoteRepo) Delete(ctx context.Context, id string) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoNoteRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := m.col.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lt": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// MongoSavedNoteRepo stores library copies with a hex ObjectID string as _id and a
// unique index on noteId.
type MongoSavedNoteRepo struct {
	col *mongo.Collection
}

func NewMongoSavedNoteRepo(col *mongo.Collection) *MongoSavedNoteRepo {
	return &MongoSavedNoteRepo{col: col}
}

func (m *MongoSavedNoteRepo) EnsureIndexes(ctx context.Context) error {
	_, err := m.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "noteId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}},
		{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("saved notes indexes: %w", err)
	}
	return nil
}

func (m *MongoSavedNoteRepo) Create(ctx context.Context, s *note.SavedNote) error {
	if s.ID == "" {
		s.ID = primitive.NewObjectID().Hex()
	}
	if _, err := m.col.InsertOne(ctx, s); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (m *MongoSavedNoteRepo) findOne(ctx context.Context, filter bson.M) (*note.SavedNote, error) {
	var s note.SavedNote
	if err := m.col.FindOne(ctx, filter).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (m *MongoSavedNoteRepo) Get(ctx context.Context, id string) (*note.SavedNote, error) {
	return m.findOne(ctx, bson.M{"_id": id})
}

func (m *MongoSavedNoteRepo) GetByNoteID(ctx context.Context, noteID string) (*note.SavedNote, error) {
	return m.findOne(ctx, bson.M{"noteId": noteID})
}

func (m *MongoSavedNoteRepo) Update(ctx context.Context, s *note.SavedNote) error {
	set := bson.M{
		"title":               s.Title,
		"content":             s.Content,
		"contentLength":       s.ContentLength,
		"isPasswordProtected": s.IsPasswordProtected,
		"updatedAt":           s.UpdatedAt,
	}
	if s.PasswordHash != "" {
		set["password"] = s.PasswordHash
	}
	res, err := m.col.UpdateOne(ctx, bson.M{"_id": s.ID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoSavedNoteRepo) List(ctx context.Context) ([]*note.SavedNote, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cur, err := m.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*note.SavedNote{}
	for cur.Next(ctx) {
		var s note.SavedNote
		if err := cur.Decode(&s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, cur.Err()
}

func (m *MongoSavedNoteRepo) Delete(ctx context.Context, id string) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoSavedNoteRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := m.col.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lt": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
