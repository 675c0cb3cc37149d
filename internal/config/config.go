// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr serves the gRPC health service; empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN. Required when StoreDriver is "postgres".
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL (redis://host:6379/0) backs the access-token blacklist; empty keeps it in memory.
	RedisURL string `mapstructure:"REDIS_URL"`
	// StoreDriver selects "postgres" or "memory" for users, sessions and refresh tokens.
	StoreDriver string `mapstructure:"STORE_DRIVER"`

	// JWTPrivateKey is PEM (inline or file path) for RS256/ES256; used with JWT_PUBLIC_KEY.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	JWTPublicKey  string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTSecret is the HS256 fallback when no key pair is configured. At least 32 bytes.
	JWTSecret     string `mapstructure:"JWT_SECRET"`
	JWTIssuer     string `mapstructure:"JWT_ISSUER"`
	JWTAudience   string `mapstructure:"JWT_AUDIENCE"`
	JWTAccessTTL  string `mapstructure:"JWT_ACCESS_TTL"`
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	SessionTTLStr string `mapstructure:"SESSION_TTL"`

	// PasswordHasher is "bcrypt" or "argon2id".
	PasswordHasher string `mapstructure:"PASSWORD_HASHER"`
	// BcryptCost is the bcrypt cost factor (4-31).
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// StoreTimeoutStr bounds every store call made by the services (e.g. "3s").
	StoreTimeoutStr string `mapstructure:"STORE_TIMEOUT"`
	// CleanupIntervalStr is the period of the purge sweep (e.g. "1h").
	CleanupIntervalStr string `mapstructure:"CLEANUP_INTERVAL"`

	// CookieSecure sets the Secure flag on the AuthToken cookie.
	CookieSecure bool `mapstructure:"COOKIE_SECURE"`
	// RateLimitPerSecond and RateLimitBurst shape the per-IP limiter on register, login and refresh.
	RateLimitPerSecond float64 `mapstructure:"RATE_LIMIT_PER_SECOND"`
	RateLimitBurst     int     `mapstructure:"RATE_LIMIT_BURST"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`

	// OTLPEndpoint enables OpenTelemetry export when non-empty (host:port).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// TelemetryKafkaBrokers is a comma-separated broker list; security events go to Kafka when set.
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	TelemetryKafkaTopic   string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki push URL and consumer group.
	LokiURL      string `mapstructure:"LOKI_URL"`
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore missing file

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("STORE_DRIVER", "postgres")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "fieldbook-auth")
	v.SetDefault("JWT_AUDIENCE", "fieldbook-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h")
	v.SetDefault("SESSION_TTL", "168h")
	v.SetDefault("PASSWORD_HASHER", "bcrypt")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("STORE_TIMEOUT", "3s")
	v.SetDefault("CLEANUP_INTERVAL", "1h")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("RATE_LIMIT_PER_SECOND", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "fieldbook-auth-events")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "fieldbook-auth-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set when STORE_DRIVER=postgres")
		}
	case "memory":
		if c.Env == "production" {
			return errors.New("config: STORE_DRIVER=memory is not allowed when APP_ENV=production")
		}
	default:
		return errors.New("config: STORE_DRIVER must be postgres or memory")
	}
	if (c.JWTPrivateKey == "") != (c.JWTPublicKey == "") {
		return errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set together")
	}
	if c.JWTPrivateKey == "" && len(c.JWTSecret) < 32 {
		return errors.New("config: JWT_SECRET must be at least 32 bytes when no JWT key pair is set")
	}
	switch c.PasswordHasher {
	case "bcrypt", "argon2id":
	default:
		return errors.New("config: PASSWORD_HASHER must be bcrypt or argon2id")
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// AccessTTL returns JWT_ACCESS_TTL, or 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration { return parseDuration(c.JWTAccessTTL, 15*time.Minute) }

// RefreshTTL returns JWT_REFRESH_TTL, or 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration { return parseDuration(c.JWTRefreshTTL, 168*time.Hour) }

// SessionTTL returns SESSION_TTL, or 168h if unset or invalid.
func (c *Config) SessionTTL() time.Duration { return parseDuration(c.SessionTTLStr, 168*time.Hour) }

// StoreTimeout returns STORE_TIMEOUT, or 3s if unset or invalid.
func (c *Config) StoreTimeout() time.Duration { return parseDuration(c.StoreTimeoutStr, 3*time.Second) }

// CleanupInterval returns CLEANUP_INTERVAL, or 1h if unset or invalid.
func (c *Config) CleanupInterval() time.Duration {
	return parseDuration(c.CleanupIntervalStr, time.Hour)
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables the Kafka producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
