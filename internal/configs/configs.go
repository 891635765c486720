/*
Package configs is responsible for loading and validating the client's configuration.

Static settings come from environment variables (parsed with caarlos0/env); the
server endpoints can additionally be overridden by a runtime configuration file
supplied by the hosting shell, see Resolver.
*/
package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	// DefaultChatServerURL is the REST base used when nothing overrides it.
	DefaultChatServerURL = "http://localhost:6688/api"

	// DefaultNotifyServerURL is the push stream endpoint used when nothing overrides it.
	DefaultNotifyServerURL = "http://localhost:6687/events"

	// DefaultAnalyticsURL is the analytics ingestion endpoint used when nothing overrides it.
	DefaultAnalyticsURL = "http://localhost:6690/api/event"
)

// Cache drivers understood by the store package.
const (
	CacheDriverMemory   = "memory"
	CacheDriverSQLite   = "sqlite"
	CacheDriverRedis    = "redis"
	CacheDriverPostgres = "postgres"
	CacheDriverS3       = "s3"
)

// Push stream transports understood by the stream package.
const (
	StreamTransportSSE       = "sse"
	StreamTransportWebSocket = "websocket"
)

// AppConfig contains all configuration parameters required for the client to run.
type AppConfig struct {
	// General Settings
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	AppVersion  string `env:"APP_VERSION" envDefault:"0.1.0"`

	// Server Endpoints
	ChatServerURL     string `env:"CHAT_SERVER_URL" envDefault:"http://localhost:6688/api"`
	NotifyServerURL   string `env:"NOTIFY_SERVER_URL" envDefault:"http://localhost:6687/events"`
	AnalyticsURL      string `env:"ANALYTICS_URL" envDefault:"http://localhost:6690/api/event"`
	RuntimeConfigPath string `env:"RUNTIME_CONFIG"`

	// Sync Settings
	StreamTransport string        `env:"STREAM_TRANSPORT" envDefault:"sse"`
	MessagePageSize int           `env:"MESSAGE_PAGE_SIZE" envDefault:"10"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`

	// Analytics Settings
	AnalyticsEnabled   bool `env:"ANALYTICS_ENABLED" envDefault:"true"`
	AnalyticsQueueSize int  `env:"ANALYTICS_QUEUE_SIZE" envDefault:"64"`

	// UI Bridge Settings
	BridgePort     int      `env:"BRIDGE_PORT" envDefault:"6689"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	Cache CacheConfig
}

// CacheConfig selects and configures the persistent cache backend.
type CacheConfig struct {
	Driver    string `env:"CACHE_DRIVER" envDefault:"sqlite"`
	Path      string `env:"CACHE_PATH"`
	KeyPrefix string `env:"CACHE_KEY_PREFIX" envDefault:"chatsync:"`

	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	S3BucketName      string `env:"S3_BUCKET_NAME"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3Region          string `env:"S3_REGION" envDefault:"auto"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
}

// IsDevelopment reports whether the client runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig reads the configuration from environment variables, fills derived
// defaults and validates the result.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Cache.Driver == CacheDriverSQLite && cfg.Cache.Path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache directory: %w", err)
		}
		cfg.Cache.Path = filepath.Join(dir, "chatsync", "cache.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges and the settings each selected backend requires.
func (c *AppConfig) Validate() error {
	if c.BridgePort < 1024 || c.BridgePort > 65535 {
		return fmt.Errorf("bridge port %d is outside the allowed range (%d-%d)", c.BridgePort, 1024, 65535)
	}

	if c.MessagePageSize < 1 || c.MessagePageSize > 100 {
		return fmt.Errorf("MESSAGE_PAGE_SIZE must be between 1 and 100, got %d", c.MessagePageSize)
	}

	if c.AnalyticsQueueSize < 1 {
		return fmt.Errorf("ANALYTICS_QUEUE_SIZE must be positive, got %d", c.AnalyticsQueueSize)
	}

	if !slices.Contains([]string{StreamTransportSSE, StreamTransportWebSocket}, c.StreamTransport) {
		return fmt.Errorf("unsupported STREAM_TRANSPORT %q", c.StreamTransport)
	}

	switch c.Cache.Driver {
	case CacheDriverMemory:
	case CacheDriverSQLite:
		if c.Cache.Path == "" {
			return fmt.Errorf("CACHE_PATH is required for the sqlite cache driver")
		}
	case CacheDriverRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis cache driver")
		}
	case CacheDriverPostgres:
		if c.Cache.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres cache driver")
		}
	case CacheDriverS3:
		if c.Cache.S3BucketName == "" || c.Cache.S3Endpoint == "" {
			return fmt.Errorf("S3_BUCKET_NAME and S3_ENDPOINT are required for the s3 cache driver")
		}
		if c.Cache.S3AccessKeyID == "" || c.Cache.S3SecretAccessKey == "" {
			return fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required for the s3 cache driver")
		}
	default:
		return fmt.Errorf("unsupported CACHE_DRIVER %q", c.Cache.Driver)
	}

	return nil
}
