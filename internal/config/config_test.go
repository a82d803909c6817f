package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

var configEnv = []string{
	"COMMS_URL", "SERVICE_NAME", "COMMS_ENABLED",
	"RUNTIME_INVOKE_SUBJECT", "RUNTIME_DOWNLOAD_EVENT_SUBJECT",
	"RUNTIME_REQUEST_TIMEOUT", "RUNTIME_PLUGIN_MANIFEST",
	"DATABASE_URL", "RUN_MIGRATIONS", "MIGRATION_PATH", "JOURNAL_BUFFER",
	"RUNTIME_HTTP_ADDR", "HTTP_PORT", "HEALTH_CHECK_TIMEOUT", "RUNTIME_METRICS_GO", "LOG_LEVEL",
}

// clearEnv unsets every variable the config reads and restores them after the test.
// A set-but-empty variable would override the default, so they are unset, not blanked.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range configEnv {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.COMMSURL != "nats://127.0.0.1:4222" {
		t.Errorf("config:config_test - COMMSURL = %q", cfg.COMMSURL)
	}
	if cfg.COMMSName != "script-runtime" {
		t.Errorf("config:config_test - COMMSName = %q", cfg.COMMSName)
	}
	if !cfg.COMMSEnabled {
		t.Error("config:config_test - expected COMMSEnabled=true by default")
	}
	if cfg.InvokeSubject != "runtime.invoke.v1" {
		t.Errorf("config:config_test - InvokeSubject = %q", cfg.InvokeSubject)
	}
	if cfg.DownloadEventSubject != "runtime.download" {
		t.Errorf("config:config_test - DownloadEventSubject = %q", cfg.DownloadEventSubject)
	}
	if cfg.RequestTimeout != 5*time.Minute {
		t.Errorf("config:config_test - RequestTimeout = %v, want 5m", cfg.RequestTimeout)
	}
	if cfg.PluginManifest != "" || cfg.DatabaseURL != "" {
		t.Errorf("config:config_test - manifest=%q db=%q, want empty", cfg.PluginManifest, cfg.DatabaseURL)
	}
	if cfg.JournalEnabled() {
		t.Error("config:config_test - journal should be off without DATABASE_URL")
	}
	if cfg.RunMigrations {
		t.Error("config:config_test - expected RunMigrations=false by default")
	}
	if cfg.MigrationPath != "migrations" {
		t.Errorf("config:config_test - MigrationPath = %q", cfg.MigrationPath)
	}
	if cfg.JournalBuffer != 1024 {
		t.Errorf("config:config_test - JournalBuffer = %d", cfg.JournalBuffer)
	}
	if cfg.ListenAddr() != ":8080" {
		t.Errorf("config:config_test - ListenAddr = %q, want :8080", cfg.ListenAddr())
	}
	if cfg.HealthCheckTimeout != 5*time.Second {
		t.Errorf("config:config_test - HealthCheckTimeout = %v, want 5s", cfg.HealthCheckTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("config:config_test - LogLevel = %q", cfg.LogLevel)
	}
	if err := cfg.ValidateForServe(); err != nil {
		t.Errorf("config:config_test - defaults should validate: %v", err)
	}
	if err := cfg.ValidateForDB(); err == nil {
		t.Error("config:config_test - ValidateForDB should require DATABASE_URL")
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	overrides := map[string]string{
		"COMMS_URL":                      "nats://custom:4222",
		"SERVICE_NAME":                   "runtime-b",
		"COMMS_ENABLED":                  "false",
		"RUNTIME_INVOKE_SUBJECT":         "custom.invoke",
		"RUNTIME_DOWNLOAD_EVENT_SUBJECT": "custom.download",
		"RUNTIME_REQUEST_TIMEOUT":        "10s",
		"RUNTIME_PLUGIN_MANIFEST":        "/etc/runtime/plugins.yaml",
		"DATABASE_URL":                   "postgres://test@localhost/test",
		"RUN_MIGRATIONS":                 "true",
		"MIGRATION_PATH":                 "/tmp/migrations",
		"RUNTIME_HTTP_ADDR":              "127.0.0.1:9090",
		"LOG_LEVEL":                      "debug",
	}
	for key, val := range overrides {
		t.Setenv(key, val)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.COMMSURL != "nats://custom:4222" || cfg.COMMSName != "runtime-b" || cfg.COMMSEnabled {
		t.Errorf("config:config_test - comms = %q %q %t", cfg.COMMSURL, cfg.COMMSName, cfg.COMMSEnabled)
	}
	if cfg.InvokeSubject != "custom.invoke" || cfg.DownloadEventSubject != "custom.download" {
		t.Errorf("config:config_test - subjects = %q %q", cfg.InvokeSubject, cfg.DownloadEventSubject)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("config:config_test - RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.PluginManifest != "/etc/runtime/plugins.yaml" {
		t.Errorf("config:config_test - PluginManifest = %q", cfg.PluginManifest)
	}
	if !cfg.JournalEnabled() || !cfg.RunMigrations || cfg.MigrationPath != "/tmp/migrations" {
		t.Errorf("config:config_test - db = %+v", cfg)
	}
	if cfg.ListenAddr() != "127.0.0.1:9090" {
		t.Errorf("config:config_test - ListenAddr = %q", cfg.ListenAddr())
	}
	if err := cfg.ValidateForDB(); err != nil {
		t.Errorf("config:config_test - ValidateForDB: %v", err)
	}
}

func TestLoadConfig_BadDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("RUNTIME_REQUEST_TIMEOUT", "forever")
	if _, err := LoadConfig(); err == nil {
		t.Error("config:config_test - expected error for bad duration")
	}
}

func TestValidateForServe(t *testing.T) {
	valid := func() *Config {
		return &Config{
			COMMSURL: "nats://x:4222", COMMSEnabled: true, InvokeSubject: "runtime.invoke.v1",
			RequestTimeout: time.Second, HealthCheckTimeout: time.Second, HTTPPort: 8080, LogLevel: "info",
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no comms url", func(c *Config) { c.COMMSURL = "" }},
		{"no invoke subject", func(c *Config) { c.InvokeSubject = "" }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"zero health timeout", func(c *Config) { c.HealthCheckTimeout = 0 }},
		{"bad port", func(c *Config) { c.HTTPPort = 70000 }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := c.ValidateForServe(); err == nil {
				t.Error("config:config_test - expected validation error")
			}
		})
	}

	c := valid()
	c.COMMSEnabled = false
	c.COMMSURL = ""
	if err := c.ValidateForServe(); err != nil {
		t.Errorf("config:config_test - comms url not needed when disabled: %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("config:config_test - ParseLogLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("config:config_test - expected error for unknown level")
	}
}
