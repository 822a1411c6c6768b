package repository

import (
	"context"
	"testing"
	"time"

	"github.com/notebins/notebins/internal/note"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoNoteRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	mt.Run("create", func(mt *mtest.T) {
		repo := NewMongoNoteRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		require.NoError(t, repo.Create(ctx, &note.Note{ID: "abc", ExpiresAt: exp}))
	})

	mt.Run("create duplicate", func(mt *mtest.T) {
		repo := NewMongoNoteRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}))
		require.ErrorIs(t, repo.Create(ctx, &note.Note{ID: "abc"}), ErrDuplicate)
	})

	mt.Run("get", func(mt *mtest.T) {
		repo := NewMongoNoteRepo(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
			{Key: "id", Value: "abc"},
			{Key: "content", Value: "hello"},
			{Key: "contentLength", Value: 5},
			{Key: "isPasswordProtected", Value: true},
			{Key: "password", Value: "$2a$hash"},
			{Key: "expiresAt", Value: primitive.NewDateTimeFromTime(exp)},
		}))
		got, err := repo.Get(ctx, "abc")
		require.NoError(t, err)
		require.Equal(t, "hello", got.Content)
		require.Equal(t, "$2a$hash", got.PasswordHash)
		require.True(t, got.ExpiresAt.Equal(exp))
	})

	mt.Run("get missing", func(mt *mtest.T) {
		repo := NewMongoNoteRepo(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		_, err := repo.Get(ctx, "nope")
		require.ErrorIs(t, err, ErrNotFound)
	})

	mt.Run("update missing", func(mt *mtest.T) {
		repo := NewMongoNoteRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		require.ErrorIs(t, repo.UpdateContent(ctx, "nope", "x", exp), ErrNotFound)
	})

	mt.Run("update", func(mt *mtest.T) {
		repo := NewMongoNoteRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		require.NoError(t, repo.UpdateContent(ctx, "abc", "x", exp))
	})

	mt.Run("delete missing", func(mt *mtest.T) {
		repo := NewMongoNoteRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		require.ErrorIs(t, repo.Delete(ctx, "nope"), ErrNotFound)
	})

	mt.Run("delete expired", func(mt *mtest.T) {
		repo := NewMongoNoteRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 3}))
		n, err := repo.DeleteExpired(ctx, time.Now())
		require.NoError(t, err)
		require.Equal(t, int64(3), n)
	})
}

func TestMongoSavedNoteRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	mt.Run("create assigns object id", func(mt *mtest.T) {
		repo := NewMongoSavedNoteRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		s := &note.SavedNote{NoteID: "n1", Title: "t"}
		require.NoError(t, repo.Create(ctx, s))
		_, err := primitive.ObjectIDFromHex(s.ID)
		require.NoError(t, err)
	})

	mt.Run("create duplicate note id", func(mt *mtest.T) {
		repo := NewMongoSavedNoteRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}))
		require.ErrorIs(t, repo.Create(ctx, &note.SavedNote{NoteID: "n1"}), ErrDuplicate)
	})

	mt.Run("list", func(mt *mtest.T) {
		repo := NewMongoSavedNoteRepo(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		first := mtest.CreateCursorResponse(1, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "a"}, {Key: "noteId", Value: "n2"}, {Key: "updatedAt", Value: primitive.NewDateTimeFromTime(now.Add(time.Second))}},
			bson.D{{Key: "_id", Value: "b"}, {Key: "noteId", Value: "n1"}, {Key: "updatedAt", Value: primitive.NewDateTimeFromTime(now)}},
		)
		done := mtest.CreateCursorResponse(0, ns, mtest.NextBatch)
		mt.AddMockResponses(first, done)

		list, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, "n2", list[0].NoteID)
	})

	mt.Run("get by note id missing", func(mt *mtest.T) {
		repo := NewMongoSavedNoteRepo(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		_, err := repo.GetByNoteID(ctx, "n9")
		require.ErrorIs(t, err, ErrNotFound)
	})

	mt.Run("delete", func(mt *mtest.T) {
		repo := NewMongoSavedNoteRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		require.NoError(t, repo.Delete(ctx, "a"))
	})

	mt.Run("server error", func(mt *mtest.T) {
		repo := NewMongoSavedNoteRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "boom", Name: "BadValue"}))
		_, err := repo.DeleteExpired(ctx, now)
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrNotFound)
	})
}
