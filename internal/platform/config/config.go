package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	strutil "taxportal/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr       string
	AdminToken string
}

// RedisConfig configures the wizard cache. An empty URL selects the in-memory store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the back office store. An empty DSN selects the in-memory back office.
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// KafkaConfig configures the audit stream. No brokers means audit events are only logged.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Session configures the signed browser session cookie.
type Session struct {
	SigningKey   string
	TTL          time.Duration
	SecureCookie bool
}

// Wizard configures wizard cache retention.
type Wizard struct {
	// CacheTTL is how long an idle wizard survives in the cache.
	CacheTTL time.Duration
	// SettingsFile optionally points at a YAML file of per-wizard overrides.
	SettingsFile string
	AuditBuffer  int
}

// RateLimit bounds how often one client may save or resume drafts.
type RateLimit struct {
	Disabled        bool
	ReferenceLimit  int
	ReferenceWindow time.Duration
}

// Config is the full process configuration.
type Config struct {
	Server    Server
	Redis     RedisConfig
	Postgres  PostgresConfig
	Kafka     KafkaConfig
	Session   Session
	Wizard    Wizard
	RateLimit RateLimit
}

// DefaultWizardTTL applies when WIZARD_CACHE_TTL is unset.
const DefaultWizardTTL = 60 * time.Minute

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	cfg := Config{
		Server: Server{
			Addr:       envOr("TAXPORTAL_ADDR", ":8080"),
			AdminToken: os.Getenv("ADMIN_TOKEN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Postgres: PostgresConfig{
			DSN:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Kafka: KafkaConfig{
			Brokers: strutil.SplitList(os.Getenv("KAFKA_BROKERS"), ","),
			Topic:   envOr("AUDIT_TOPIC", "taxportal.audit"),
		},
		Session: Session{
			// Use a default for development - should be overridden in production
			SigningKey:   envOr("SESSION_SIGNING_KEY", "dev-session-key-change-in-production"),
			SecureCookie: os.Getenv("SESSION_SECURE_COOKIE") == "true",
		},
		Wizard: Wizard{
			SettingsFile: os.Getenv("WIZARD_SETTINGS_FILE"),
		},
		RateLimit: RateLimit{
			Disabled: os.Getenv("RATE_LIMIT_DISABLED") == "true",
		},
	}

	var err error
	if cfg.Wizard.CacheTTL, err = durationEnv("WIZARD_CACHE_TTL", DefaultWizardTTL); err != nil {
		return Config{}, err
	}
	if cfg.Session.TTL, err = durationEnv("SESSION_TTL", 8*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.Wizard.AuditBuffer, err = intEnv("AUDIT_BUFFER", 256); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit.ReferenceLimit, err = intEnv("REFERENCE_RATE_LIMIT", 10); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit.ReferenceWindow, err = durationEnv("REFERENCE_RATE_WINDOW", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.Redis.PoolSize, err = intEnv("REDIS_POOL_SIZE", cfg.Redis.PoolSize); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
