package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Server.Port)
	require.False(t, cfg.Server.Development())
	require.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	require.Equal(t, 72*time.Hour, cfg.Notes.TTL)
	require.Equal(t, 10, cfg.Notes.IDLength)
	require.Equal(t, BackendMongo, cfg.Store.Backend)
	require.Equal(t, "mongodb://localhost:27017", cfg.MongoDB.URI)
	require.Equal(t, 10*time.Second, cfg.MongoDB.Timeout)
	require.Equal(t, "*", cfg.CORS.Origin)
	require.True(t, cfg.RateLimit.Enabled)
	require.Equal(t, 100, cfg.RateLimit.Requests)
	require.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	require.InDelta(t, 100.0/900.0, cfg.RateLimit.RPS(), 1e-9)
	require.Equal(t, 24*time.Hour, cfg.Cleanup.Interval)
	require.Equal(t, 5*time.Minute, cfg.Cleanup.RoomSweepInterval)
	require.Equal(t, int64(10<<20), cfg.Realtime.MaxMessageBytes)
	require.Equal(t, 54*time.Second, cfg.Realtime.PingInterval)
	require.Equal(t, 60*time.Second, cfg.Realtime.PongWait)
	require.Equal(t, 10, cfg.Notes.BcryptCost)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SERVER_ENVIRONMENT", "development")
	t.Setenv("NOTE_EXPIRATION_DAYS", "7")
	t.Setenv("NOTEBINS_PUBLIC_BASE_URL", "https://notes.example.org/")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CLEANUP_INTERVAL", "1h")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Server.Port)
	require.True(t, cfg.Server.Development())
	require.Equal(t, 7*24*time.Hour, cfg.Notes.TTL)
	require.Equal(t, "https://notes.example.org", cfg.Notes.PublicBaseURL)
	require.Equal(t, BackendRedis, cfg.Store.Backend)
	require.Equal(t, "cache:6379", cfg.Redis.Addr())
	require.Equal(t, 2, cfg.Redis.DB)
	require.Equal(t, time.Hour, cfg.Cleanup.Interval)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"ttl":           {"NOTE_EXPIRATION_DAYS": "0"},
		"backend":       {"STORE_BACKEND": "sqlite"},
		"redis no host": {"STORE_BACKEND": "redis"},
		"ping >= pong":  {"REALTIME_PING_INTERVAL": "60s"},
		"bad duration":  {"CLEANUP_INTERVAL": "soon"},
		"redis limiter": {"RATE_LIMIT_USE_REDIS": "true"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}
