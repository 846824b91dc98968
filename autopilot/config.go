package autopilot

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full autopilot configuration.
type Config struct {
	Listen        string              `yaml:"listen"`
	DBPath        string              `yaml:"db_path"`
	SearchConsole SearchConsoleConfig `yaml:"search_console"`
	Research      ResearchConfig      `yaml:"research"`
	Trigger       TriggerConfig       `yaml:"trigger"`
}

// SearchConsoleConfig configures the search-console ingest.
type SearchConsoleConfig struct {
	BaseURL      string `yaml:"base_url"`
	LookbackDays int    `yaml:"lookback_days"`
	RowLimit     int    `yaml:"row_limit"`
}

// ResearchConfig configures the keyword-research ingest.
type ResearchConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"` // ${ENV_VAR} expanded
	Limit   int    `yaml:"limit"`
}

// TriggerConfig configures the periodic cadence trigger.
type TriggerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen: ":8080",
		DBPath: "rankpilot.db",
		SearchConsole: SearchConsoleConfig{
			LookbackDays: 28,
			RowLimit:     500,
		},
		Research: ResearchConfig{
			Limit: 100,
		},
		Trigger: TriggerConfig{
			Interval: 5 * time.Minute,
		},
	}
}

// LoadConfig reads and parses a YAML config file. Returns DefaultConfig
// merged with the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Research.APIKey = os.Expand(cfg.Research.APIKey, os.Getenv)
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.SearchConsole.LookbackDays <= 0 {
		return fmt.Errorf("search_console.lookback_days must be > 0")
	}
	if c.Research.Limit <= 0 {
		return fmt.Errorf("research.limit must be > 0")
	}
	if c.Trigger.Interval <= 0 {
		return fmt.Errorf("trigger.interval must be > 0")
	}
	return nil
}
