// Package config loads the process configuration from environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all serving-process configuration.
type Config struct {
	// Service identity
	Title       string
	Service     string
	Version     int
	HTTPAddress string
	LogLevel    string

	// Durable tier
	Postgres PostgresConfig

	// Cache tier; the token KV store shares the server on its own
	// logical database.
	Redis RedisConfig

	// Search tier
	Search SearchConfig

	// Identity provider
	Identity IdentityConfig

	// Background refresh loops
	RefreshRBACInterval time.Duration
	RefreshInfoInterval time.Duration

	// Backfill task pool
	PoolWorkers  int
	PoolCapacity int
	PoolTimeout  time.Duration

	EnableMetrics bool
}

type PostgresConfig struct {
	WriterHostname string
	WriterHostport int
	ReaderHostname string
	ReaderHostport int
	Username       string
	Password       string
	Database       string
	SSLMode        string
}

type RedisConfig struct {
	Hostname   string
	Hostport   int
	Database   int
	KVDatabase int
	Password   string
	Expire     int
	KVExpire   int
}

type SearchConfig struct {
	Addresses []string
	Username  string
	Password  string
	Shards    int
	Replicas  int
	Expire    int
}

type IdentityConfig struct {
	BaseURL       string
	DefaultRealm  string
	RBACAttribute string
	AdminUsername string
	AdminPassword string
	Timeout       time.Duration
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Title:       getEnv("SERVICE_TITLE", "UERP backend"),
		Service:     getEnv("SERVICE_NAME", "uerp"),
		Version:     getEnvInt("SERVICE_VERSION", 1),
		HTTPAddress: getEnv("HTTP_ADDRESS", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		Postgres: PostgresConfig{
			WriterHostname: getEnv("POSTGRES_WRITER_HOSTNAME", "localhost"),
			WriterHostport: getEnvInt("POSTGRES_WRITER_HOSTPORT", 5432),
			ReaderHostname: getEnv("POSTGRES_READER_HOSTNAME", getEnv("POSTGRES_WRITER_HOSTNAME", "localhost")),
			ReaderHostport: getEnvInt("POSTGRES_READER_HOSTPORT", getEnvInt("POSTGRES_WRITER_HOSTPORT", 5432)),
			Username:       getEnv("POSTGRES_USERNAME", "postgres"),
			Password:       getEnv("POSTGRES_PASSWORD", ""),
			Database:       getEnv("POSTGRES_DATABASE", "uerp"),
			SSLMode:        getEnv("POSTGRES_SSLMODE", "disable"),
		},

		Redis: RedisConfig{
			Hostname:   getEnv("REDIS_HOSTNAME", "localhost"),
			Hostport:   getEnvInt("REDIS_HOSTPORT", 6379),
			Database:   getEnvInt("REDIS_DATABASE", 0),
			KVDatabase: getEnvInt("REDIS_KV_DATABASE", 1),
			Password:   getEnv("REDIS_PASSWORD", ""),
			Expire:     getEnvInt("REDIS_EXPIRE", 3600),
			KVExpire:   getEnvInt("REDIS_KV_EXPIRE", 3600),
		},

		Search: SearchConfig{
			Addresses: strings.Split(getEnv("SEARCH_ADDRESSES", "http://localhost:9200"), ","),
			Username:  getEnv("SEARCH_USERNAME", ""),
			Password:  getEnv("SEARCH_PASSWORD", ""),
			Shards:    getEnvInt("SEARCH_SHARDS", 1),
			Replicas:  getEnvInt("SEARCH_REPLICAS", 0),
			Expire:    getEnvInt("SEARCH_EXPIRE", 604800),
		},

		Identity: IdentityConfig{
			BaseURL:       getEnv("IDENTITY_BASE_URL", ""),
			DefaultRealm:  getEnv("IDENTITY_DEFAULT_REALM", "master"),
			RBACAttribute: getEnv("IDENTITY_RBAC_ATTRIBUTE", "policy"),
			AdminUsername: getEnv("IDENTITY_ADMIN_USERNAME", ""),
			AdminPassword: getEnv("IDENTITY_ADMIN_PASSWORD", ""),
			Timeout:       getEnvDuration("IDENTITY_TIMEOUT", 10*time.Second),
		},

		RefreshRBACInterval: getEnvDuration("REFRESH_RBAC_INTERVAL", 5*time.Minute),
		RefreshInfoInterval: getEnvDuration("REFRESH_INFO_INTERVAL", 15*time.Minute),

		PoolWorkers:  getEnvInt("POOL_WORKERS", 4),
		PoolCapacity: getEnvInt("POOL_CAPACITY", 256),
		PoolTimeout:  getEnvDuration("POOL_TIMEOUT", 30*time.Second),

		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the process cannot start with.
func (c *Config) Validate() error {
	if c.Service == "" {
		return fmt.Errorf("SERVICE_NAME must not be empty")
	}
	if c.Version < 1 {
		return fmt.Errorf("SERVICE_VERSION must be >= 1")
	}
	if c.PoolWorkers < 1 || c.PoolCapacity < 1 {
		return fmt.Errorf("pool workers and capacity must be >= 1")
	}
	if c.RefreshRBACInterval <= 0 || c.RefreshInfoInterval <= 0 {
		return fmt.Errorf("refresh intervals must be positive")
	}
	return nil
}

// AuthEnabled reports whether an identity provider is configured;
// without one, only Free schemas are servable.
func (c *Config) AuthEnabled() bool { return c.Identity.BaseURL != "" }

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
