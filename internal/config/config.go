// Package config provides runtime configuration loaded from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds script-runtime configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL     string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName    string `envconfig:"SERVICE_NAME" default:"script-runtime"`
	COMMSEnabled bool   `envconfig:"COMMS_ENABLED" default:"true"`

	// Gateway subjects
	InvokeSubject        string `envconfig:"RUNTIME_INVOKE_SUBJECT" default:"runtime.invoke.v1"`
	DownloadEventSubject string `envconfig:"RUNTIME_DOWNLOAD_EVENT_SUBJECT" default:"runtime.download"`

	// RequestTimeout caps every gateway invocation; a request's timeoutMs may only shorten it.
	RequestTimeout time.Duration `envconfig:"RUNTIME_REQUEST_TIMEOUT" default:"5m"`

	// Plugins
	PluginManifest string `envconfig:"RUNTIME_PLUGIN_MANIFEST"`

	// Database (optional journal)
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`
	JournalBuffer int    `envconfig:"JOURNAL_BUFFER" default:"1024"`

	// HTTP health, metrics and catalog (RUNTIME_HTTP_ADDR preferred, e.g. "0.0.0.0:8080")
	HTTPAddr           string        `envconfig:"RUNTIME_HTTP_ADDR"`
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`
	RuntimeMetrics     bool          `envconfig:"RUNTIME_METRICS_GO" default:"true"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}
	return &c, nil
}

// ValidateForServe checks required config when running the runtime server.
func (c *Config) ValidateForServe() error {
	if c.COMMSEnabled {
		if c.COMMSURL == "" {
			return fmt.Errorf("%s - COMMS_URL is required when COMMS_ENABLED", logPrefix)
		}
		if c.InvokeSubject == "" {
			return fmt.Errorf("%s - RUNTIME_INVOKE_SUBJECT is required when COMMS_ENABLED", logPrefix)
		}
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - RUNTIME_REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	if c.HTTPAddr == "" && (c.HTTPPort <= 0 || c.HTTPPort > 65535) {
		return fmt.Errorf("%s - HTTP_PORT must be in 1..65535", logPrefix)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate, ensure-db, journal).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}

// JournalEnabled reports whether invocations are journaled to Postgres.
func (c *Config) JournalEnabled() bool {
	return c.DatabaseURL != ""
}

// ListenAddr returns the HTTP listen address.
func (c *Config) ListenAddr() string {
	if c.HTTPAddr != "" {
		return c.HTTPAddr
	}
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// ParseLogLevel maps LOG_LEVEL values to slog levels.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%s - unknown LOG_LEVEL %q", logPrefix, level)
}
