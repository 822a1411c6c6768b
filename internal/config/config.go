package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Notes     NotesConfig
	Store     StoreConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Cleanup   CleanupConfig
	Realtime  RealtimeConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Development reports whether error responses may carry internals.
func (s ServerConfig) Development() bool {
	return strings.EqualFold(s.Environment, "development")
}

type NotesConfig struct {
	TTL           time.Duration
	IDLength      int
	PublicBaseURL string
	BcryptCost    int
}

type StoreConfig struct {
	Backend string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr is host:port for the Redis client.
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type CORSConfig struct {
	Origin string
}

type RateLimitConfig struct {
	Enabled  bool
	UseRedis bool
	Requests int
	Window   time.Duration
	Burst    int
}

// RPS is the sustained rate the in-memory limiter refills at.
func (r RateLimitConfig) RPS() float64 {
	return float64(r.Requests) / r.Window.Seconds()
}

type CleanupConfig struct {
	Interval          time.Duration
	RoomSweepInterval time.Duration
}

type RealtimeConfig struct {
	MaxMessageBytes int64
	SendBuffer      int
	PingInterval    time.Duration
	PongWait        time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "production")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("NOTE_EXPIRATION_DAYS", 3)
	v.SetDefault("NOTE_ID_LENGTH", 10)
	v.SetDefault("NOTEBINS_PUBLIC_BASE_URL", "")
	v.SetDefault("STORE_BACKEND", BackendMongo)
	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGODB_DATABASE", "notebins")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_HOST", "")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CORS_ORIGIN", "*")
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("CLEANUP_INTERVAL", "24h")
	v.SetDefault("ROOM_SWEEP_INTERVAL", "5m")
	v.SetDefault("REALTIME_MAX_MESSAGE_BYTES", 10<<20)
	v.SetDefault("REALTIME_SEND_BUFFER", 64)
	v.SetDefault("REALTIME_PING_INTERVAL", "54s")
	v.SetDefault("REALTIME_PONG_WAIT", "60s")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// LoadConfig loads configuration from environment variables and an optional .env file.
// Values are read once; an invalid combination is reported as an error.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("PORT"),
			Host:            v.GetString("SERVER_HOST"),
			Environment:     v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		Notes: NotesConfig{
			TTL:           time.Duration(v.GetInt("NOTE_EXPIRATION_DAYS")) * 24 * time.Hour,
			IDLength:      v.GetInt("NOTE_ID_LENGTH"),
			PublicBaseURL: strings.TrimRight(v.GetString("NOTEBINS_PUBLIC_BASE_URL"), "/"),
			BcryptCost:    v.GetInt("BCRYPT_COST"),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(strings.TrimSpace(v.GetString("STORE_BACKEND"))),
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		CORS: CORSConfig{
			Origin: v.GetString("CORS_ORIGIN"),
		},
		RateLimit: RateLimitConfig{
			Enabled:  v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis: v.GetBool("RATE_LIMIT_USE_REDIS"),
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
			Burst:    v.GetInt("RATE_LIMIT_BURST"),
		},
		Cleanup: CleanupConfig{
			Interval:          v.GetDuration("CLEANUP_INTERVAL"),
			RoomSweepInterval: v.GetDuration("ROOM_SWEEP_INTERVAL"),
		},
		Realtime: RealtimeConfig{
			MaxMessageBytes: v.GetInt64("REALTIME_MAX_MESSAGE_BYTES"),
			SendBuffer:      v.GetInt("REALTIME_SEND_BUFFER"),
			PingInterval:    v.GetDuration("REALTIME_PING_INTERVAL"),
			PongWait:        v.GetDuration("REALTIME_PONG_WAIT"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive duration", name))
		}
	}
	positive("NOTE_EXPIRATION_DAYS", c.Notes.TTL)
	positive("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	positive("CLEANUP_INTERVAL", c.Cleanup.Interval)
	positive("ROOM_SWEEP_INTERVAL", c.Cleanup.RoomSweepInterval)
	positive("REALTIME_PING_INTERVAL", c.Realtime.PingInterval)
	positive("REALTIME_PONG_WAIT", c.Realtime.PongWait)

	if c.Notes.IDLength < 6 || c.Notes.IDLength > 64 {
		errs = append(errs, fmt.Errorf("NOTE_ID_LENGTH must be between 6 and 64, got %d", c.Notes.IDLength))
	}
	switch c.Store.Backend {
	case BackendMongo:
		if c.MongoDB.URI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required for the mongo backend"))
		}
	case BackendRedis:
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required for the redis backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be mongo, redis or memory, got %q", c.Store.Backend))
	}
	if c.RateLimit.Enabled {
		positive("RATE_LIMIT_WINDOW", c.RateLimit.Window)
		if c.RateLimit.Requests <= 0 {
			errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be positive"))
		}
		if c.RateLimit.UseRedis && c.Redis.Host == "" {
			errs = append(errs, errors.New("RATE_LIMIT_USE_REDIS needs REDIS_HOST"))
		}
	}
	if c.Realtime.PingInterval > 0 && c.Realtime.PingInterval >= c.Realtime.PongWait {
		errs = append(errs, errors.New("REALTIME_PING_INTERVAL must be shorter than REALTIME_PONG_WAIT"))
	}
	if c.Realtime.MaxMessageBytes <= 0 {
		errs = append(errs, errors.New("REALTIME_MAX_MESSAGE_BYTES must be positive"))
	}
	if c.Realtime.SendBuffer <= 0 {
		errs = append(errs, errors.New("REALTIME_SEND_BUFFER must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
