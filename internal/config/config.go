package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/storefront-session/internal/domain"
)

// Credential backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config aggregates runtime configuration for the gateway.
type Config struct {
	App         AppConfig
	Upstream    UpstreamConfig
	Credentials CredentialConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Logger      LoggerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// Endpoints is the auth endpoint set of one domain.
type Endpoints struct {
	LoginPath   string
	RefreshPath string
	LogoutPath  string
}

// UpstreamConfig locates the remote business/auth server.
type UpstreamConfig struct {
	BaseURL   string
	Endpoints map[domain.Domain]Endpoints
}

// CredentialConfig selects where credential pairs are persisted.
type CredentialConfig struct {
	Backend      string
	Namespace    string
	RelayEnabled bool
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	backend := strings.ToLower(getEnv("CREDENTIAL_BACKEND", BackendMemory))
	switch backend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		return nil, fmt.Errorf("invalid CREDENTIAL_BACKEND: %q", backend)
	}

	defaults := Endpoints{
		LoginPath:   getEnv("AUTH_LOGIN_PATH", "/auth/token"),
		RefreshPath: getEnv("AUTH_REFRESH_PATH", "/auth/refresh"),
		LogoutPath:  getEnv("AUTH_LOGOUT_PATH", "/auth/logout"),
	}
	endpoints := make(map[domain.Domain]Endpoints, len(domain.All()))
	for _, d := range domain.All() {
		prefix := "AUTH_" + string(d) + "_"
		endpoints[d] = Endpoints{
			LoginPath:   getEnv(prefix+"LOGIN_PATH", defaults.LoginPath),
			RefreshPath: getEnv(prefix+"REFRESH_PATH", defaults.RefreshPath),
			LogoutPath:  getEnv(prefix+"LOGOUT_PATH", defaults.LogoutPath),
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "storefront-session"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Upstream: UpstreamConfig{
			BaseURL:   strings.TrimRight(getEnv("UPSTREAM_BASE_URL", "http://127.0.0.1:9000"), "/"),
			Endpoints: endpoints,
		},
		Credentials: CredentialConfig{
			Backend:      backend,
			Namespace:    getEnv("CREDENTIAL_NAMESPACE", "storefront"),
			RelayEnabled: getEnvAsBool("SESSION_RELAY_ENABLED", false),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if backend == BackendPostgres && cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN required for postgres credential backend")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// UsesRedis reports whether any component needs a redis connection.
func (c *Config) UsesRedis() bool {
	return c.Credentials.Backend == BackendRedis || c.Credentials.RelayEnabled
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
