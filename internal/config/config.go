// Package config defines service configuration and its loading from
// defaults, an optional YAML file and CRMFLOW_ environment variables.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Backends for the dedupe and dead-letter stores.
const (
	DedupeMemory = "memory"
	DedupeRedis  = "redis"

	DeadLetterFS = "fs"
	DeadLetterS3 = "s3"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory delivery queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of CRM sync workers; 0 picks a CPU based default.
	WorkerCount int `koanf:"worker_count"`
	// SyncTimeoutSeconds bounds the CRM calls made for one delivery.
	SyncTimeoutSeconds int `koanf:"sync_timeout_seconds"`
	// ShutdownTimeoutSeconds bounds the graceful drain on exit.
	ShutdownTimeoutSeconds int `koanf:"shutdown_timeout_seconds"`

	// DedupeBackend is memory or redis.
	DedupeBackend string `koanf:"dedupe_backend"`
	// DedupeSize caps the in-memory dedupe store; 0 is unbounded.
	DedupeSize int `koanf:"dedupe_size"`
	// DedupeTTLSeconds expires delivery keys; 0 keeps them forever.
	DedupeTTLSeconds int `koanf:"dedupe_ttl_seconds"`
	// RedisAddr is host:port or a redis:// URL.
	RedisAddr string `koanf:"redis_addr"`

	// RulesPath points at a JSON or YAML rule set. Empty uses built-in rules.
	RulesPath string `koanf:"rules_path"`
	// RulesWatch reloads the rule set when the file changes.
	RulesWatch bool `koanf:"rules_watch"`

	CRMEnabled        bool    `koanf:"crm_enabled"`
	CRMBaseURL        string  `koanf:"crm_base_url"`
	CRMAccountsURL    string  `koanf:"crm_accounts_url"`
	CRMClientID       string  `koanf:"crm_client_id"`
	CRMClientSecret   string  `koanf:"crm_client_secret"`
	CRMRefreshToken   string  `koanf:"crm_refresh_token"`
	CRMTimeoutSeconds int     `koanf:"crm_timeout_seconds"`
	CRMRateLimit      float64 `koanf:"crm_rate_limit"`

	// DeadLetterBackend is fs or s3.
	DeadLetterBackend string `koanf:"deadletter_backend"`
	DeadLetterDir     string `koanf:"deadletter_dir"`
	S3Bucket          string `koanf:"s3_bucket"`
	S3Region          string `koanf:"s3_region"`
	S3Endpoint        string `koanf:"s3_endpoint"`
	S3PathStyle       bool   `koanf:"s3_path_style"`
}

// New creates a Config with defaults. Context is accepted first to follow
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "json",
		Addr:                   ":9080",
		QueueSize:              10_000,
		WorkerCount:            runtime.NumCPU() * 2,
		SyncTimeoutSeconds:     60,
		ShutdownTimeoutSeconds: 30,
		DedupeBackend:          DedupeMemory,
		DedupeSize:             100_000,
		DedupeTTLSeconds:       86_400,
		RedisAddr:              "localhost:6379",
		RulesWatch:             true,
		CRMBaseURL:             "https://www.zohoapis.com/crm/v2",
		CRMAccountsURL:         "https://accounts.zoho.com",
		CRMTimeoutSeconds:      30,
		CRMRateLimit:           10,
		DeadLetterBackend:      DeadLetterFS,
		DeadLetterDir:          "./deadletters",
		S3Region:               "us-east-1",
	}
}

// Validate checks the configuration. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount < 0:
		return fmt.Errorf("%w: worker_count must not be negative", ErrInvalidConfig)
	case c.DedupeSize < 0 || c.DedupeTTLSeconds < 0:
		return fmt.Errorf("%w: dedupe_size and dedupe_ttl_seconds must not be negative", ErrInvalidConfig)
	case c.DedupeBackend != DedupeMemory && c.DedupeBackend != DedupeRedis:
		return fmt.Errorf("%w: dedupe_backend must be memory or redis, got %q", ErrInvalidConfig, c.DedupeBackend)
	case c.DedupeBackend == DedupeRedis && c.RedisAddr == "":
		return fmt.Errorf("%w: redis_addr is required for the redis dedupe backend", ErrInvalidConfig)
	case c.DeadLetterBackend != DeadLetterFS && c.DeadLetterBackend != DeadLetterS3:
		return fmt.Errorf("%w: deadletter_backend must be fs or s3, got %q", ErrInvalidConfig, c.DeadLetterBackend)
	case c.DeadLetterBackend == DeadLetterFS && c.DeadLetterDir == "":
		return fmt.Errorf("%w: deadletter_dir is required for the fs backend", ErrInvalidConfig)
	case c.DeadLetterBackend == DeadLetterS3 && c.S3Bucket == "":
		return fmt.Errorf("%w: s3_bucket is required for the s3 backend", ErrInvalidConfig)
	case c.CRMEnabled && (c.CRMClientID == "" || c.CRMClientSecret == "" || c.CRMRefreshToken == ""):
		return fmt.Errorf("%w: crm_client_id, crm_client_secret and crm_refresh_token are required when crm_enabled", ErrInvalidConfig)
	}
	return nil
}

// DedupeTTL returns the dedupe key lifetime.
func (c *Config) DedupeTTL() time.Duration { return seconds(c.DedupeTTLSeconds) }

// SyncTimeout returns the per-delivery CRM timeout.
func (c *Config) SyncTimeout() time.Duration { return seconds(c.SyncTimeoutSeconds) }

// CRMTimeout returns the HTTP timeout for CRM calls.
func (c *Config) CRMTimeout() time.Duration { return seconds(c.CRMTimeoutSeconds) }

// ShutdownTimeout returns the graceful drain limit.
func (c *Config) ShutdownTimeout() time.Duration { return seconds(c.ShutdownTimeoutSeconds) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
