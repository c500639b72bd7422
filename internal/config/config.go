package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config defines all environment-driven runtime options.
type Config struct {
	Host     string `env:"VPSDASH_HOST" envDefault:"0.0.0.0"`
	Port     int    `env:"VPSDASH_PORT" envDefault:"28000"`
	DataDir  string `env:"VPSDASH_DATA_DIR" envDefault:"./data"`
	LogLevel string `env:"VPSDASH_LOG_LEVEL" envDefault:"info"`

	Store                  string `env:"VPSDASH_STORE" envDefault:"file"`
	FirebaseDatabaseURL    string `env:"VPSDASH_FIREBASE_DATABASE_URL"`
	FirebaseCredentials    string `env:"VPSDASH_FIREBASE_CREDENTIALS"`
	FirebaseDatabaseSecret string `env:"VPSDASH_FIREBASE_DATABASE_SECRET"`
	FirebaseAPIKey         string `env:"VPSDASH_FIREBASE_API_KEY"`
	RedisAddr              string `env:"VPSDASH_REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword          string `env:"VPSDASH_REDIS_PASSWORD"`
	RedisDB                int    `env:"VPSDASH_REDIS_DB" envDefault:"0"`

	EncryptionKey       string `env:"VPSDASH_ENCRYPTION_KEY"`
	LegacyEncryptionKey string `env:"VPSDASH_LEGACY_ENCRYPTION_KEY"`

	AuthProvider      string        `env:"VPSDASH_AUTH_PROVIDER" envDefault:"static"`
	LoginUsername     string        `env:"VPSDASH_LOGIN_USERNAME" envDefault:"admin"`
	LoginPasswordHash string        `env:"VPSDASH_LOGIN_PASSWORD_HASH"`
	SessionSecret     string        `env:"VPSDASH_SESSION_SECRET"`
	SessionTTL        time.Duration `env:"VPSDASH_SESSION_TTL" envDefault:"24h"`
	CORSOrigins       []string      `env:"VPSDASH_CORS_ORIGINS" envSeparator:","`

	MigrateInterval time.Duration `env:"VPSDASH_MIGRATE_INTERVAL" envDefault:"0s"`
}

// Load reads .env (if present) and parses environment variables into Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	cfg.AuthProvider = strings.ToLower(strings.TrimSpace(cfg.AuthProvider))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case "file", "memory", "redis":
	case "firebase":
		if strings.TrimSpace(c.FirebaseDatabaseURL) == "" {
			return fmt.Errorf("parse env config: VPSDASH_FIREBASE_DATABASE_URL is required for the firebase store")
		}
	default:
		return fmt.Errorf("parse env config: unknown store %q", c.Store)
	}

	switch c.AuthProvider {
	case "static":
	case "firebase":
		if strings.TrimSpace(c.FirebaseAPIKey) == "" {
			return fmt.Errorf("parse env config: VPSDASH_FIREBASE_API_KEY is required for firebase auth")
		}
	default:
		return fmt.Errorf("parse env config: unknown auth provider %q", c.AuthProvider)
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("parse env config: VPSDASH_SESSION_TTL must be positive")
	}
	if c.MigrateInterval < 0 {
		return fmt.Errorf("parse env config: VPSDASH_MIGRATE_INTERVAL must not be negative")
	}
	return nil
}
