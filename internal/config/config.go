// Package config loads the YAML run configuration: the target material, the
// data source, and the full set of open-system conditions.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/phasehull/internal/chem"
	"github.com/talgya/phasehull/internal/condition"
)

// Target is the candidate material under evaluation. Its energy comes from
// the upstream calculation and is treated as opaque input here.
type Target struct {
	Formula string  `yaml:"formula"`
	Energy  float64 `yaml:"energy"`
	RunType string  `yaml:"run_type"`
}

// DataSource configures the remote materials database client. The API key is
// read from the named environment variable, never from the file itself.
type DataSource struct {
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Config is the full run configuration.
type Config struct {
	Target     Target                `yaml:"target"`
	DataSource DataSource            `yaml:"data_source"`
	Database   string                `yaml:"database"`    // SQLite path (cache + results)
	ReportPath string                `yaml:"report_path"` // JSON report output
	APIPort    int                   `yaml:"api_port"`    // 0 disables the HTTP API
	Parallel   bool                  `yaml:"parallel"`    // evaluate conditions concurrently
	Conditions []condition.Condition `yaml:"conditions"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for structural problems before any work
// starts. Per-condition species problems are caught here rather than mid-run.
func (c *Config) Validate() error {
	if c.Target.Formula == "" {
		return fmt.Errorf("config: target formula required")
	}
	if _, err := chem.ParseFormula(c.Target.Formula); err != nil {
		return fmt.Errorf("config: target: %w", err)
	}
	if len(c.Conditions) == 0 {
		return fmt.Errorf("config: at least one condition required")
	}
	seen := map[string]bool{}
	for _, cond := range c.Conditions {
		if err := cond.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if seen[cond.Label] {
			return fmt.Errorf("config: duplicate condition label %q", cond.Label)
		}
		seen[cond.Label] = true
	}
	if c.Database == "" {
		c.Database = "data/phasehull.db"
	}
	if c.ReportPath == "" {
		c.ReportPath = "data/report.json"
	}
	return nil
}
