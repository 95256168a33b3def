// Package config provides configuration management for FormBridge.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables, FORMBRIDGE_-prefixed (e.g. FORMBRIDGE_DATABASE_DSN)
// 3. Default values
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"formbridge.dev/formbridge/internal/delivery"
)

// Config is the root configuration structure.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log LogConfig `mapstructure:"log"`
	Worker WorkerConfig `mapstructure:"worker"`
	Security SecurityConfig `mapstructure:"security"`
	Submission SubmissionConfig `mapstructure:"submission"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	Upload UploadConfig `mapstructure:"upload"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains the PostgreSQL connection string, used only when
// Submission.StorageBackend is "postgres".
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// WorkerConfig contains worker pool settings .
type WorkerConfig struct {
	GeneralPoolSize int `mapstructure:"general_pool_size"`
	DeliveryPoolSize int `mapstructure:"delivery_pool_size"`
}

// SecurityConfig contains the process-wide signing secret. Its only use is
// as the auth stub's bearer-token verification key; outbound webhook
// signatures do not use it (each destination's own signingSecret signs its
// deliveries). A missing value is not fatal — every request is then read as
// anonymous — so it is never auto-generated, only warned about.
type SecurityConfig struct {
	SigningSecret string `mapstructure:"signing_secret"`
}

// SubmissionConfig contains submission-store and handoff-URL settings.
type SubmissionConfig struct {
	StorageBackend string `mapstructure:"storage_backend"` // memory | postgres
	BaseURL string `mapstructure:"base_url"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	MaxEntries int `mapstructure:"max_entries"`
	ExpiryIntervalMs int64 `mapstructure:"expiry_interval_ms"`
	IntakeDefinitionsDir string `mapstructure:"intake_definitions_dir"`
}

// DeliveryConfig contains the webhook retry policy and scheduler settings.
type DeliveryConfig struct {
	MaxRetries int `mapstructure:"max_retries"`
	InitialDelayMs int64 `mapstructure:"initial_delay_ms"`
	MaxDelayMs int64 `mapstructure:"max_delay_ms"`
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`
	RetryIntervalMs int64 `mapstructure:"retry_interval_ms"`
	DurableQueue bool `mapstructure:"durable_queue"`
}

// RetryPolicy converts the loaded configuration into delivery.RetryPolicy.
func (d DeliveryConfig) RetryPolicy() delivery.RetryPolicy {
	return delivery.RetryPolicy{
		MaxRetries: d.MaxRetries,
		InitialDelayMs: d.InitialDelayMs,
		MaxDelayMs: d.MaxDelayMs,
		BackoffMultiplier: d.BackoffMultiplier,
	}
}

// UploadConfig contains the filesystem reference storage backend's settings.
type UploadConfig struct {
	FilesystemRoot string `mapstructure:"filesystem_root"`
	URLTTL time.Duration `mapstructure:"url_ttl"`
}

var (
	bootstrapLoggerOnce sync.Once
	bootstrapLogger *zap.Logger
)

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/formbridge")

	v.SetEnvPrefix("formbridge")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file is optional, use defaults and env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.warnOnMissingSecret()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	switch c.Submission.StorageBackend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("submission.storage_backend must be %q or %q, got %q", "memory", "postgres", c.Submission.StorageBackend)
	}
	if c.Submission.StorageBackend == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when submission.storage_backend is %q", "postgres")
	}
	if c.Delivery.DurableQueue && c.Submission.StorageBackend != "postgres" {
		return fmt.Errorf("delivery.durable_queue requires submission.storage_backend=postgres")
	}
	return nil
}

func (c *Config) warnOnMissingSecret() {
	if c.Security.SigningSecret != "" {
		return
	}
	bootstrapLoggerOnce.Do(func() {
		zapCfg := zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		l, err := zapCfg.Build()
		if err != nil {
			bootstrapLogger = zap.NewNop()
			return
		}
		bootstrapLogger = l
	})
	bootstrapLogger.Warn("security.signing_secret is empty; bearer tokens will not be verified and every request is read as anonymous")
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database
	v.SetDefault("database.dsn", "")

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Worker pool
	v.SetDefault("worker.general_pool_size", 50)
	v.SetDefault("worker.delivery_pool_size", 50)

	// Security
	v.SetDefault("security.signing_secret", "")

	// Submission
	v.SetDefault("submission.storage_backend", "memory")
	v.SetDefault("submission.base_url", "http://localhost:8080")
	v.SetDefault("submission.token_ttl", "168h") // 7 days
	v.SetDefault("submission.max_entries", 0) // 0 = no eviction
	v.SetDefault("submission.expiry_interval_ms", 60000)
	v.SetDefault("submission.intake_definitions_dir", "./config/intakes")

	// Delivery
	v.SetDefault("delivery.max_retries", 5)
	v.SetDefault("delivery.initial_delay_ms", 1000)
	v.SetDefault("delivery.max_delay_ms", 60000)
	v.SetDefault("delivery.backoff_multiplier", 2.0)
	v.SetDefault("delivery.retry_interval_ms", 30000)
	v.SetDefault("delivery.durable_queue", false)

	// Upload
	v.SetDefault("upload.filesystem_root", "./data/uploads")
	v.SetDefault("upload.url_ttl", "15m")
}
