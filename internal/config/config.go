// Package config loads and saves the charkeep.yaml configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file inside the config directory.
const FileName = "charkeep.yaml"

// Environment overrides.
const (
	EnvRoot     = "CHARKEEP_ROOT"
	EnvLogLevel = "CHARKEEP_LOG_LEVEL"
)

// Defaults.
const (
	DefaultRetention        = 5
	DefaultFlushInterval    = 5 * time.Minute
	DefaultLogLevel         = "info"
	DefaultFlushConcurrency = 4
	DefaultJournalFile      = "charkeep.db"
)

// Config represents the charkeep configuration.
type Config struct {
	Root             string        `yaml:"root" validate:"required"`
	Retention        int           `yaml:"retention" validate:"gte=1,lte=1000"`
	FlushInterval    time.Duration `yaml:"flush_interval" validate:"gte=1s"`
	AllowMigrations  bool          `yaml:"allow_migrations"`
	JournalPath      string        `yaml:"journal_path,omitempty"`
	LogLevel         string        `yaml:"log_level" validate:"oneof=trace debug info warn error"`
	MetricsAddr      string        `yaml:"metrics_addr,omitempty" validate:"omitempty,hostname_port"`
	FlushConcurrency int           `yaml:"flush_concurrency" validate:"gte=1,lte=64"`
}

var validate = validator.New()

// DefaultConfig returns the defaults for a data root.
func DefaultConfig(root string) *Config {
	return &Config{
		Root:             root,
		Retention:        DefaultRetention,
		FlushInterval:    DefaultFlushInterval,
		AllowMigrations:  true,
		LogLevel:         DefaultLogLevel,
		FlushConcurrency: DefaultFlushConcurrency,
	}
}

// LoadConfig reads charkeep.yaml from dir. Fields absent from the file
// keep their defaults; a relative root is resolved against dir.
// Returns an error wrapping os.ErrNotExist if no config is found.
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.Root != "" && !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(dir, cfg.Root)
	}
	return cfg, nil
}

// Resolve loads the config in dir, falling back to defaults rooted at dir
// when there is none, then applies environment overrides and validates.
func Resolve(dir string) (*Config, error) {
	cfg, err := LoadConfig(dir)
	if errors.Is(err, os.ErrNotExist) {
		cfg = DefaultConfig(dir)
	} else if err != nil {
		return nil, err
	}

	ApplyEnv(cfg, os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvRoot); ok && v != "" {
		cfg.Root = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = v
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// JournalFile returns the flush journal database path.
func (c *Config) JournalFile() string {
	if c.JournalPath != "" {
		return c.JournalPath
	}
	return filepath.Join(c.Root, DefaultJournalFile)
}

// SaveConfig writes charkeep.yaml to dir.
func SaveConfig(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
