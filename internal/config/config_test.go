package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("STORE_PATH", "")
	t.Setenv("RENDER_BINARY", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, DriverFile, cfg.Store.Driver)
	require.Equal(t, "db.json", cfg.Store.Path)
	require.Equal(t, int64(4096), cfg.Server.MaxBodyBytes)
	require.Equal(t, "pandoc", cfg.Render.Binary)
	require.Equal(t, "xelatex", cfg.Render.Engine)
	require.Equal(t, 60*time.Second, cfg.Render.Timeout)
	require.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Mongo")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("MONGODB_DATABASE", "worksheet_test")
	t.Setenv("RENDER_TIMEOUT", "5")
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, DriverMongo, cfg.Store.Driver)
	require.Equal(t, "worksheet_test", cfg.MongoDB.Database)
	require.Equal(t, 5*time.Second, cfg.Render.Timeout)
	require.True(t, cfg.RateLimit.Enabled)
	require.InDelta(t, 2.5, cfg.RateLimit.RPS, 0.0001)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	t.Run("mongo without uri", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "mongo")
		t.Setenv("MONGODB_URI", "")
		_, err := LoadConfig()
		require.ErrorContains(t, err, "MONGODB_URI")
	})
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "tinydb")
		_, err := LoadConfig()
		require.ErrorContains(t, err, "unknown STORE_DRIVER")
	})
	t.Run("zero body cap", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "memory")
		t.Setenv("MAX_BODY_BYTES", "0")
		_, err := LoadConfig()
		require.ErrorContains(t, err, "MAX_BODY_BYTES")
	})
}
