package config

import (
	"fmt"
	"slices"
	"strings"
)

const maxExportBatchSize = 10000

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "text"}
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535 (got %d)", c.Server.Port)
	}

	if err := c.Database.validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if !slices.Contains(logLevels, strings.ToLower(c.Log.Level)) {
		return fmt.Errorf("log.level must be one of %v (got %q)", logLevels, c.Log.Level)
	}
	if !slices.Contains(logFormats, strings.ToLower(c.Log.Format)) {
		return fmt.Errorf("log.format must be one of %v (got %q)", logFormats, c.Log.Format)
	}

	if c.Export.BatchSize <= 0 || c.Export.BatchSize > maxExportBatchSize {
		return fmt.Errorf("export.batch_size must be in 1..%d (got %d)", maxExportBatchSize, c.Export.BatchSize)
	}

	if c.Retention.HardDeleteAfterDays <= 0 {
		return fmt.Errorf("retention.hard_delete_after_days must be > 0 (got %d)", c.Retention.HardDeleteAfterDays)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with / (got %q)", c.Metrics.Path)
	}

	return nil
}

func (d *DatabaseConfig) validate() error {
	if d.MaxConns <= 0 {
		return fmt.Errorf("max_conns must be > 0 (got %d)", d.MaxConns)
	}
	if d.MinConns < 0 || d.MinConns > d.MaxConns {
		return fmt.Errorf("min_conns must be in 0..max_conns (got %d)", d.MinConns)
	}
	if d.StatementTimeout < 0 {
		return fmt.Errorf("statement_timeout must be >= 0 (got %v)", d.StatementTimeout)
	}
	return nil
}
