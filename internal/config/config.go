// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment names accepted in TASKAPI_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// minProductionSecretBytes is the shortest JWT secret accepted in production.
const minProductionSecretBytes = 32

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Env        string
	ListenAddr string
	DBPath     string

	JWTSecret    string
	JWTExpiresIn time.Duration
	BcryptCost   int

	// AuthTransport is "cookie" or "bearer"; Load rejects anything else.
	AuthTransport  string
	CORSOrigins    []string
	AuthRateLimit  int
	AuthRateWindow time.Duration
	IdempotencyTTL time.Duration

	LogLevel        slog.Level
	LogPersist      bool
	LogPersistLevel slog.Level
}

// IsProduction reports whether TASKAPI_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// LoadDotEnv reads KEY=VALUE pairs from the given files (".env" if none) into
// the process environment. Variables already set are never overridden, and
// missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables and returns a validated Config.
// TASKAPI_JWT_SECRET is required; in production it must be at least 32 bytes.
// Optional variables with defaults: TASKAPI_ENV (development),
// TASKAPI_LISTEN_ADDR (127.0.0.1:8080), TASKAPI_DB_PATH (taskapi.db),
// TASKAPI_JWT_EXPIRES_IN (604800 seconds), TASKAPI_BCRYPT_COST (10),
// TASKAPI_AUTH_TRANSPORT (cookie), TASKAPI_AUTH_RATE_LIMIT (10),
// TASKAPI_AUTH_RATE_WINDOW (15m), TASKAPI_IDEMPOTENCY_TTL (2m),
// TASKAPI_LOG_LEVEL (info), TASKAPI_LOG_PERSIST (false),
// TASKAPI_LOG_PERSIST_LEVEL (info). TASKAPI_CORS_ORIGINS is a comma-separated list.
func Load() (*Config, error) {
	cfg := &Config{
		Env:             EnvDevelopment,
		ListenAddr:      "127.0.0.1:8080",
		DBPath:          "taskapi.db",
		JWTExpiresIn:    7 * 24 * time.Hour,
		BcryptCost:      10,
		AuthTransport:   "cookie",
		CORSOrigins:     []string{},
		AuthRateLimit:   10,
		AuthRateWindow:  15 * time.Minute,
		IdempotencyTTL:  2 * time.Minute,
		LogLevel:        slog.LevelInfo,
		LogPersistLevel: slog.LevelInfo,
	}

	if v, ok := os.LookupEnv("TASKAPI_ENV"); ok && v != "" {
		switch env := strings.ToLower(strings.TrimSpace(v)); env {
		case EnvDevelopment, EnvProduction, EnvTest:
			cfg.Env = env
		default:
			return nil, fmt.Errorf("TASKAPI_ENV has invalid value %q: want development, production or test", v)
		}
	}

	cfg.JWTSecret = os.Getenv("TASKAPI_JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, errors.New("TASKAPI_JWT_SECRET is required")
	}
	if cfg.IsProduction() && len(cfg.JWTSecret) < minProductionSecretBytes {
		return nil, fmt.Errorf("TASKAPI_JWT_SECRET must be at least %d bytes in production", minProductionSecretBytes)
	}

	if v, ok := os.LookupEnv("TASKAPI_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("TASKAPI_DB_PATH"); ok {
		cfg.DBPath = v
	}

	if v, ok := os.LookupEnv("TASKAPI_JWT_EXPIRES_IN"); ok {
		secs, err := positiveInt("TASKAPI_JWT_EXPIRES_IN", v)
		if err != nil {
			return nil, err
		}
		cfg.JWTExpiresIn = time.Duration(secs) * time.Second
	}

	if v, ok := os.LookupEnv("TASKAPI_BCRYPT_COST"); ok {
		cost, err := strconv.Atoi(v)
		if err != nil || cost < 4 || cost > 31 {
			return nil, fmt.Errorf("TASKAPI_BCRYPT_COST has invalid value %q: want an integer from 4 to 31", v)
		}
		cfg.BcryptCost = cost
	}

	if v, ok := os.LookupEnv("TASKAPI_AUTH_TRANSPORT"); ok && v != "" {
		switch t := strings.ToLower(strings.TrimSpace(v)); t {
		case "cookie", "bearer":
			cfg.AuthTransport = t
		default:
			return nil, fmt.Errorf("TASKAPI_AUTH_TRANSPORT has invalid value %q: want cookie or bearer", v)
		}
	}

	if v, ok := os.LookupEnv("TASKAPI_CORS_ORIGINS"); ok && v != "" {
		for _, origin := range strings.Split(v, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	}

	if v, ok := os.LookupEnv("TASKAPI_AUTH_RATE_LIMIT"); ok {
		n, err := positiveInt("TASKAPI_AUTH_RATE_LIMIT", v)
		if err != nil {
			return nil, err
		}
		cfg.AuthRateLimit = n
	}

	var err error
	if cfg.AuthRateWindow, err = positiveDuration("TASKAPI_AUTH_RATE_WINDOW", cfg.AuthRateWindow); err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL, err = positiveDuration("TASKAPI_IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return nil, err
	}

	if cfg.LogLevel, err = logLevel("TASKAPI_LOG_LEVEL", cfg.LogLevel); err != nil {
		return nil, err
	}
	if cfg.LogPersistLevel, err = logLevel("TASKAPI_LOG_PERSIST_LEVEL", cfg.LogPersistLevel); err != nil {
		return nil, err
	}

	if v, ok := os.LookupEnv("TASKAPI_LOG_PERSIST"); ok && v != "" {
		persist, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("TASKAPI_LOG_PERSIST has invalid boolean %q: %w", v, err)
		}
		cfg.LogPersist = persist
	}

	return cfg, nil
}

func positiveInt(key, v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s has invalid value %q: want a positive integer", key, v)
	}
	return n, nil
}

func positiveDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", key, v)
	}
	return d, nil
}

func logLevel(key string, def slog.Level) (slog.Level, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("%s has invalid level %q: want debug, info, warn or error", key, v)
	}
	return level, nil
}
