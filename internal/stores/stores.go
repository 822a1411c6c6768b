// Package stores opens the configured note and saved-note backends.
package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/notebins/notebins/internal/config"
	"github.com/notebins/notebins/internal/database"
	"github.com/notebins/notebins/internal/note/repository"
	"github.com/notebins/notebins/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	notesCollection = "notes"
	savedCollection = "savednotes"

	mongoAttempts = 5
)

// Stores holds the repositories of the selected backend and the clients behind them.
// Redis is set whenever REDIS_HOST is configured and reachable, even if the notes live
// elsewhere, so the rate limiter can share it.
type Stores struct {
	Backend string
	Notes   repository.NoteRepository
	Saved   repository.SavedNoteRepository
	Mongo   *mongo.Client
	Redis   *redis.Client
}

// Open connects to the configured backend. A Redis client that fails to connect is
// fatal only for the redis backend.
func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	s := &Stores{Backend: cfg.Store.Backend}

	if cfg.Redis.Host != "" {
		client, err := database.ConnectRedis(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, 5*time.Second)
		if err != nil {
			if cfg.Store.Backend == config.BackendRedis {
				return nil, err
			}
			logger.Warnf("redis unavailable, continuing without it: %v", err)
		} else {
			logger.Infof("connected to Redis at %s", cfg.Redis.Addr())
			s.Redis = client
		}
	}

	switch cfg.Store.Backend {
	case config.BackendMongo:
		client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, mongoAttempts)
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		logger.Infof("connected to MongoDB database %q", cfg.MongoDB.Database)
		s.Mongo = client
		db := client.Database(cfg.MongoDB.Database)
		notes := repository.NewMongoNoteRepo(db.Collection(notesCollection))
		saved := repository.NewMongoSavedNoteRepo(db.Collection(savedCollection))
		if err := notes.EnsureIndexes(ctx); err != nil {
			s.Close(ctx)
			return nil, err
		}
		if err := saved.EnsureIndexes(ctx); err != nil {
			s.Close(ctx)
			return nil, err
		}
		s.Notes, s.Saved = notes, saved
	case config.BackendRedis:
		s.Notes = repository.NewRedisNoteRepo(s.Redis, "")
		s.Saved = repository.NewRedisSavedNoteRepo(s.Redis, "")
	case config.BackendMemory:
		logger.Warn("using in-memory note store; notes are lost on restart")
		s.Notes = repository.NewMemoryNoteRepo()
		s.Saved = repository.NewMemorySavedNoteRepo()
	default:
		s.Close(ctx)
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	logger.Infof("note store backend: %s", cfg.Store.Backend)
	return s, nil
}

// Ping checks every open client.
func (s *Stores) Ping(ctx context.Context) error {
	if s.Mongo != nil {
		if err := s.Mongo.Ping(ctx, nil); err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close disconnects every open client.
func (s *Stores) Close(ctx context.Context) error {
	var firstErr error
	if s.Mongo != nil {
		if err := s.Mongo.Disconnect(ctx); err != nil {
			firstErr = err
		}
		s.Mongo = nil
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.Redis = nil
	}
	return firstErr
}
