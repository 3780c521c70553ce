package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("SessionTTL converts seconds to duration", func(t *testing.T) {
		cfg := &Config{SessionTTLSeconds: 86400}
		assert.Equal(t, 86400*time.Second, cfg.SessionTTL())
	})

	t.Run("AuditRetention converts days to duration", func(t *testing.T) {
		cfg := &Config{AuditRetentionDays: 90}
		assert.Equal(t, 90*24*time.Hour, cfg.AuditRetention())
	})

	t.Run("ConnectWalletURL trims trailing slash", func(t *testing.T) {
		cfg := &Config{PublicBaseURL: "https://guardian.example.com/"}
		assert.Equal(t, "https://guardian.example.com/connect-wallet", cfg.ConnectWalletURL())
	})
}

func TestLoad(t *testing.T) {
	originalEnv := map[string]string{
		"PORT":                       os.Getenv("PORT"),
		"DATABASE_URL":               os.Getenv("DATABASE_URL"),
		"REDIS_URL":                  os.Getenv("REDIS_URL"),
		"REPUTATION_API_BASE_URL":    os.Getenv("REPUTATION_API_BASE_URL"),
		"TRANSPORT_SIGNATURE_SECRET": os.Getenv("TRANSPORT_SIGNATURE_SECRET"),
		"SESSION_TTL_SECONDS":        os.Getenv("SESSION_TTL_SECONDS"),
		"LOG_LEVEL":                  os.Getenv("LOG_LEVEL"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Unsetenv("PORT")
		os.Unsetenv("REPUTATION_API_BASE_URL")
		os.Unsetenv("SESSION_TTL_SECONDS")
		os.Unsetenv("LOG_LEVEL")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, 86400, cfg.SessionTTLSeconds)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Contains(t, cfg.ReputationAPIBaseURL, "core-api-v2")
	})

	t.Run("fails without required values", func(t *testing.T) {
		os.Unsetenv("DATABASE_URL")
		os.Setenv("REDIS_URL", "redis://localhost:6379")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	base := Config{
		DatabaseURL:          "postgres://localhost/test",
		RedisURL:             "rediss://localhost:6379",
		ReputationAPIBaseURL: "https://api.example.com/core-api-v2",
	}

	t.Run("accepts development config without secret", func(t *testing.T) {
		cfg := base
		assert.NoError(t, cfg.Validate(false))
	})

	t.Run("rejects non-http reputation base URL", func(t *testing.T) {
		cfg := base
		cfg.ReputationAPIBaseURL = "ftp://api.example.com"
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects short signature secret in production", func(t *testing.T) {
		cfg := base
		cfg.TransportSignatureSecret = "short"
		assert.Error(t, cfg.Validate(true))
	})

	t.Run("rejects known weak secret in production", func(t *testing.T) {
		cfg := base
		cfg.TransportSignatureSecret = "change-me"
		assert.Error(t, cfg.Validate(true))
	})

	t.Run("accepts strong secret in production", func(t *testing.T) {
		cfg := base
		cfg.TransportSignatureSecret = "0123456789abcdef0123456789abcdef"
		assert.NoError(t, cfg.Validate(true))
	})
}
