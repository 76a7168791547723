// Package config builds the process-wide configuration once at startup.
// Components receive the values they need through their constructors; nothing
// reads ambient global state after this.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Audit sink selectors.
const (
	SinkClickHouse = "clickhouse"
	SinkPostgres   = "postgres"
	SinkFile       = "file"
	SinkNone       = "none"
)

type Config struct {
	// Query endpoint of the analytical database.
	DatabaseURL string

	// Execution limits.
	MaxRows       int
	QueryTimeout  time.Duration
	MaxQueryBytes int

	// Audit trail.
	AuditSink        string
	AuditDatabaseURL string // postgres sink connection string
	AuditTable       string // clickhouse sink table name
	AuditLogPath     string // file sink path
	AuditTimeout     time.Duration

	// Optional policy file.
	PolicyFile string

	// HTTP API.
	HTTPAddr string

	// Logging.
	LogLevel slog.Level

	// Observability.
	OTelEnabled bool

	// Audit connection pool (postgres sink only).
	AuditPoolMaxConns        int32
	AuditPoolMinConns        int32
	AuditPoolMaxConnLifetime time.Duration
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	DatabaseURL  *string
	MaxRows      *int
	QueryTimeout *time.Duration
	AuditSink    *string
	AuditLogPath *string
	PolicyFile   *string
	HTTPAddr     *string
	LogLevel     *string
	OTelEnabled  bool
}

// Load builds a Config from environment variables, then applies CLI
// overrides, then validates the result.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		MaxRows:                  10000,
		QueryTimeout:             120 * time.Second,
		MaxQueryBytes:            1048576,
		AuditSink:                SinkClickHouse,
		AuditTable:               "query_audit_log",
		AuditTimeout:             5 * time.Second,
		HTTPAddr:                 ":8080",
		AuditPoolMaxConns:        5,
		AuditPoolMinConns:        1,
		AuditPoolMaxConnLifetime: 30 * time.Minute,
	}
}

func loadEnvVars(cfg *Config) error {
	if v := os.Getenv("MAX_ROWS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid MAX_ROWS value %q: must be a positive integer", v)
		}
		cfg.MaxRows = n
	}

	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid QUERY_TIMEOUT value %q: %w", v, err)
		}
		cfg.QueryTimeout = d
	}

	if v := os.Getenv("MAX_QUERY_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid MAX_QUERY_BYTES value %q: must be a positive integer", v)
		}
		cfg.MaxQueryBytes = n
	}

	if v := os.Getenv("AUDIT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid AUDIT_TIMEOUT value %q: %w", v, err)
		}
		cfg.AuditTimeout = d
	}

	if v := os.Getenv("AUDIT_SINK"); v != "" {
		cfg.AuditSink = v
	}
	if v := os.Getenv("AUDIT_DATABASE_URL"); v != "" {
		cfg.AuditDatabaseURL = v
	}
	if v := os.Getenv("AUDIT_TABLE"); v != "" {
		cfg.AuditTable = v
	}
	cfg.AuditLogPath = os.Getenv("AUDIT_LOG")
	cfg.PolicyFile = os.Getenv("POLICY_FILE")

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OTEL_ENABLED value %q: %w", v, err)
		}
		cfg.OTelEnabled = b
	}

	return loadPoolEnvVars(cfg)
}

func loadPoolEnvVars(cfg *Config) error {
	if v := os.Getenv("AUDIT_POOL_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid AUDIT_POOL_MAX_CONNS value %q: must be a positive integer", v)
		}
		cfg.AuditPoolMaxConns = int32(n)
	}
	if v := os.Getenv("AUDIT_POOL_MIN_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid AUDIT_POOL_MIN_CONNS value %q: must be a non-negative integer", v)
		}
		cfg.AuditPoolMinConns = int32(n)
	}
	if v := os.Getenv("AUDIT_POOL_MAX_CONN_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid AUDIT_POOL_MAX_CONN_LIFETIME value %q: %w", v, err)
		}
		cfg.AuditPoolMaxConnLifetime = d
	}
	return nil
}

func applyOverrides(cfg *Config, o Overrides) error {
	if o.DatabaseURL != nil {
		cfg.DatabaseURL = *o.DatabaseURL
	}
	if o.MaxRows != nil {
		if *o.MaxRows <= 0 {
			return fmt.Errorf("invalid --max-rows value: must be a positive integer")
		}
		cfg.MaxRows = *o.MaxRows
	}
	if o.QueryTimeout != nil {
		cfg.QueryTimeout = *o.QueryTimeout
	}
	if o.AuditSink != nil {
		cfg.AuditSink = *o.AuditSink
	}
	if o.AuditLogPath != nil {
		cfg.AuditLogPath = *o.AuditLogPath
	}
	if o.PolicyFile != nil {
		cfg.PolicyFile = *o.PolicyFile
	}
	if o.HTTPAddr != nil {
		cfg.HTTPAddr = *o.HTTPAddr
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled
	return nil
}

func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required (set via env var or --database-url flag)")
	}

	switch cfg.AuditSink {
	case SinkClickHouse, SinkPostgres, SinkFile, SinkNone:
	default:
		return fmt.Errorf("invalid AUDIT_SINK value %q: must be one of clickhouse, postgres, file, none", cfg.AuditSink)
	}

	if cfg.AuditSink == SinkPostgres && cfg.AuditDatabaseURL == "" {
		return fmt.Errorf("AUDIT_DATABASE_URL is required when AUDIT_SINK is %q", SinkPostgres)
	}
	if cfg.AuditSink == SinkFile && cfg.AuditLogPath == "" {
		return fmt.Errorf("AUDIT_LOG is required when AUDIT_SINK is %q", SinkFile)
	}

	if cfg.AuditPoolMinConns > cfg.AuditPoolMaxConns {
		return fmt.Errorf("AUDIT_POOL_MIN_CONNS (%d) must not exceed AUDIT_POOL_MAX_CONNS (%d)", cfg.AuditPoolMinConns, cfg.AuditPoolMaxConns)
	}

	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
