package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the client core and the
// development authority.
type Config struct {
	Authority AuthorityConfig
	Session   SessionConfig
	Stub      StubConfig
	Logger    LoggerConfig
}

// AuthorityConfig points the client at the remote authority.
type AuthorityConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// SessionConfig controls credential persistence.
type SessionConfig struct {
	// TokenPath is the durable local file holding the bearer token.
	TokenPath string
	// RedisAddr switches credential storage to Redis when non-empty.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// StubConfig configures the development authority server.
type StubConfig struct {
	Host                  string
	Port                  string
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	SeedDemoData          bool
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults
// where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("SESSION_REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_REDIS_DB: %w", err)
	}

	cfg := &Config{
		Authority: AuthorityConfig{
			BaseURL:        getEnv("AUTHORITY_BASE_URL", "http://localhost:5000/api"),
			TimeoutSeconds: getEnvAsInt("AUTHORITY_TIMEOUT_SECONDS", 30),
		},
		Session: SessionConfig{
			TokenPath:     getEnv("SESSION_TOKEN_PATH", defaultTokenPath()),
			RedisAddr:     os.Getenv("SESSION_REDIS_ADDR"),
			RedisPassword: os.Getenv("SESSION_REDIS_PASSWORD"),
			RedisDB:       redisDB,
		},
		Stub: StubConfig{
			Host:                  getEnv("STUB_HOST", "0.0.0.0"),
			Port:                  getEnv("STUB_PORT", "5000"),
			JWTSecret:             getEnv("STUB_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("STUB_ACCESS_TOKEN_TTL_MINUTES", 60*24),
			BcryptCost:            getEnvAsInt("STUB_BCRYPT_COST", 10),
			SeedDemoData:          getEnvAsBool("STUB_SEED_DEMO_DATA", true),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Addr returns the stub HTTP bind address.
func (s StubConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// Timeout returns the configured authority request timeout duration.
func (a AuthorityConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".support-desk-token"
	}
	return home + "/.support-desk/token"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
