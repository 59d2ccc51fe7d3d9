package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// validEnv sets the minimum required env vars for a valid config.
func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_DSN", "postgres://u:p@localhost:5432/testdb")
}

func writeYAML(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return path
}

func validConfig() *Config {
	return &Config{
		Server:    ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database:  DatabaseConfig{DSN: "postgres://localhost/db", MaxConns: 25, MinConns: 5, StatementTimeout: 30 * time.Second},
		Log:       LogConfig{Level: "info", Format: "json"},
		Export:    ExportConfig{BatchSize: 1000},
		Retention: RetentionConfig{HardDeleteAfterDays: 365},
		Metrics:   MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

const validYAML = `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: "5s"
  write_timeout: "15s"
  idle_timeout: "30s"
  shutdown_timeout: "5s"

database:
  dsn: "postgres://u:p@localhost:5432/testdb"
  max_conns: 10
  min_conns: 2
  statement_timeout: "10s"

log:
  level: "debug"
  format: "text"

export:
  batch_size: 500

retention:
  hard_delete_after_days: 90

metrics:
  enabled: true
  path: "/internal/metrics"
`

func TestLoad_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, validYAML)
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Server
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("server.host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("server.read_timeout = %v, want %v", cfg.Server.ReadTimeout, 5*time.Second)
	}

	// Database
	if cfg.Database.DSN != "postgres://u:p@localhost:5432/testdb" {
		t.Errorf("database.dsn = %q", cfg.Database.DSN)
	}
	if cfg.Database.MaxConns != 10 {
		t.Errorf("database.max_conns = %d, want 10", cfg.Database.MaxConns)
	}
	if cfg.Database.StatementTimeout != 10*time.Second {
		t.Errorf("database.statement_timeout = %v, want 10s", cfg.Database.StatementTimeout)
	}

	// Log
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Log.Format != "text" {
		t.Errorf("log.format = %q, want %q", cfg.Log.Format, "text")
	}

	// Export, retention, metrics
	if cfg.Export.BatchSize != 500 {
		t.Errorf("export.batch_size = %d, want 500", cfg.Export.BatchSize)
	}
	if cfg.Retention.HardDeleteAfterDays != 90 {
		t.Errorf("retention.hard_delete_after_days = %d, want 90", cfg.Retention.HardDeleteAfterDays)
	}
	if cfg.Metrics.Path != "/internal/metrics" {
		t.Errorf("metrics.path = %q, want /internal/metrics", cfg.Metrics.Path)
	}
}

func TestLoad_ENVOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, validYAML)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("SERVER_PORT", "3000")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("EXPORT_BATCH_SIZE", "250")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("server.port = %d, want 3000 (ENV override)", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %q, want %q (ENV override)", cfg.Log.Level, "warn")
	}
	if cfg.Export.BatchSize != 250 {
		t.Errorf("export.batch_size = %d, want 250 (ENV override)", cfg.Export.BatchSize)
	}
}

func TestLoad_NoFile_ENVOnly(t *testing.T) {
	validEnv(t)

	// Unset CONFIG_PATH so the fallback path is used and is absent.
	t.Setenv("CONFIG_PATH", "")
	origDir, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	_ = os.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080 (default)", cfg.Server.Port)
	}
	if cfg.Export.BatchSize != 1000 {
		t.Errorf("export.batch_size = %d, want 1000 (default)", cfg.Export.BatchSize)
	}
	if cfg.Retention.HardDeleteAfterDays != 365 {
		t.Errorf("retention.hard_delete_after_days = %d, want 365 (default)", cfg.Retention.HardDeleteAfterDays)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("metrics = %+v, want enabled at /metrics", cfg.Metrics)
	}
	if cfg.CORS.AllowedOrigins != "*" || cfg.CORS.MaxAge != 86400 {
		t.Errorf("cors = %+v, want any origin with max age 86400", cfg.CORS)
	}
}

func TestLoad_MissingDSN(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DATABASE_DSN", "")
	origDir, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	_ = os.Chdir(t.TempDir())

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing database dsn")
	}
}

func TestLoad_ExplicitPathNotFound(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/nonexistent/config.yaml")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, `{{{invalid yaml`)
	t.Setenv("CONFIG_PATH", path)

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"max conns zero", func(c *Config) { c.Database.MaxConns = 0 }},
		{"min conns above max", func(c *Config) { c.Database.MinConns = 30 }},
		{"negative statement timeout", func(c *Config) { c.Database.StatementTimeout = -time.Second }},
		{"unknown log level", func(c *Config) { c.Log.Level = "trace" }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
		{"batch size zero", func(c *Config) { c.Export.BatchSize = 0 }},
		{"batch size too large", func(c *Config) { c.Export.BatchSize = maxExportBatchSize + 1 }},
		{"retention zero", func(c *Config) { c.Retention.HardDeleteAfterDays = 0 }},
		{"metrics path relative", func(c *Config) { c.Metrics.Path = "metrics" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidate_MetricsDisabledIgnoresPath(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics.Enabled = false
	cfg.Metrics.Path = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_BatchSizeBoundaries(t *testing.T) {
	cfg := validConfig()
	cfg.Export.BatchSize = 1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error for batch size 1: %v", err)
	}
	cfg.Export.BatchSize = maxExportBatchSize
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error for batch size %d: %v", maxExportBatchSize, err)
	}
}
