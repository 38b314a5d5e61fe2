// Package config loads the Prospector configuration from a YAML file
// with environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Worker   WorkerConfig   `yaml:"worker"`
	Git      GitConfig      `yaml:"git"`
	Detector DetectorConfig `yaml:"detector"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration. URL is a
// pgx connection string and may be supplied via DATABASE_URL instead
// of the file.
type DatabaseConfig struct {
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

// WorkerConfig holds job dispatcher configuration
type WorkerConfig struct {
	Concurrency   int           `yaml:"concurrency"`
	JobTimeout    time.Duration `yaml:"job_timeout"`
	WaitTimeout   time.Duration `yaml:"wait_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	WorkspaceRoot string        `yaml:"workspace_root"`
}

// GitConfig holds repository fetch configuration
type GitConfig struct {
	Binary  string        `yaml:"binary"`
	Timeout time.Duration `yaml:"timeout"`
}

// DetectorConfig holds language detection configuration. Command is
// optional, the extension based fallback runs without it.
type DetectorConfig struct {
	Command string        `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

// ScannerConfig holds external scanner configuration
type ScannerConfig struct {
	Command  string        `yaml:"command"`
	RulesDir string        `yaml:"rules_dir"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when the file leaves a value
// unset.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Channel: "scan_jobs",
		},
		Worker: WorkerConfig{
			Concurrency:   4,
			JobTimeout:    10 * time.Minute,
			WaitTimeout:   5 * time.Second,
			SweepInterval: time.Minute,
			WorkspaceRoot: os.TempDir(),
		},
		Git: GitConfig{
			Binary:  "git",
			Timeout: 2 * time.Minute,
		},
		Detector: DetectorConfig{
			Timeout: 30 * time.Second,
		},
		Scanner: ScannerConfig{
			Command:  "semgrep-scan",
			RulesDir: "rules",
			Timeout:  5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads and parses the configuration file. A missing path yields
// the defaults. DATABASE_URL always wins over the file so the secret
// never has to live on disk.
func Load(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		config.Database.URL = url
	}
	if config.Database.Channel == "" {
		config.Database.Channel = "scan_jobs"
	}

	return &config, nil
}

// ValidateServe checks the configuration of the API server command
func (c *Config) ValidateServe() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required (set database.url or DATABASE_URL)")
	}
	return nil
}

// ValidateWork checks the configuration of the worker command
func (c *Config) ValidateWork() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required (set database.url or DATABASE_URL)")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}
	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}
	if c.Worker.WaitTimeout <= 0 {
		return fmt.Errorf("worker wait_timeout must be greater than 0")
	}
	if c.Worker.SweepInterval <= 0 {
		return fmt.Errorf("worker sweep_interval must be greater than 0")
	}
	if c.Git.Binary == "" {
		return fmt.Errorf("git binary is required")
	}
	if c.Scanner.Command == "" {
		return fmt.Errorf("scanner command is required")
	}
	if c.Scanner.RulesDir == "" {
		return fmt.Errorf("scanner rules_dir is required")
	}
	return nil
}
