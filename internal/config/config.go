package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                     int    `env:"PORT" envDefault:"8080"`
	DatabaseURL              string `env:"DATABASE_URL,required"`
	RedisURL                 string `env:"REDIS_URL,required"`
	ReputationAPIBaseURL     string `env:"REPUTATION_API_BASE_URL" envDefault:"https://stage-api.ututrust.com/core-api-v2"`
	TransportSignatureSecret string `env:"TRANSPORT_SIGNATURE_SECRET"`
	PublicBaseURL            string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	SessionTTLSeconds        int    `env:"SESSION_TTL_SECONDS" envDefault:"86400"`
	AuditRetentionDays       int    `env:"AUDIT_RETENTION_DAYS" envDefault:"90"`
	LogLevel                 string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func (c *Config) AuditRetention() time.Duration {
	return time.Duration(c.AuditRetentionDays) * 24 * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// ConnectWalletURL is the link sent to users who still need to authenticate.
func (c *Config) ConnectWalletURL() string {
	return strings.TrimRight(c.PublicBaseURL, "/") + "/connect-wallet"
}

func (c *Config) Validate(isProduction bool) error {
	if !strings.HasPrefix(c.ReputationAPIBaseURL, "http://") &&
		!strings.HasPrefix(c.ReputationAPIBaseURL, "https://") {
		return fmt.Errorf("REPUTATION_API_BASE_URL must be an http(s) URL")
	}

	if isProduction {
		if err := validateSecret("TRANSPORT_SIGNATURE_SECRET", c.TransportSignatureSecret); err != nil {
			return err
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if strings.HasPrefix(c.ReputationAPIBaseURL, "http://") {
			log.Warn().Msg("REPUTATION_API_BASE_URL uses http:// in production: bearer tokens will travel in cleartext")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
