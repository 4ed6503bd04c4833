// Package config holds the application configuration for portsweep.
// Configuration is loaded from an optional YAML file merged over defaults
// and validated before a scan is allowed to start.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration.
type Config struct {
	Scan    ScanSettings    `yaml:"scan" json:"scan"`
	Output  OutputSettings  `yaml:"output" json:"output"`
	Logging LoggingSettings `yaml:"logging" json:"logging"`
}

// ScanSettings holds scan-engine settings.
type ScanSettings struct {
	// Default port specification when none is given on the command line
	Ports string `yaml:"ports" json:"ports" validate:"required"`

	// Per-probe connect timeout
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`

	// Worker count; clamped to the task count at runtime
	Concurrency int `yaml:"concurrency" json:"concurrency" validate:"gte=1"`

	// Attempt a best-effort banner read on open ports
	Banner bool `yaml:"banner" json:"banner"`

	// Upper bound for a single banner read
	BannerMaxBytes int `yaml:"banner_max_bytes" json:"banner_max_bytes" validate:"gte=1"`

	// Reverse-resolve addresses of open ports
	ReverseDNS bool `yaml:"reverse_dns" json:"reverse_dns"`
}

// OutputSettings holds result-sink settings.
type OutputSettings struct {
	// CSV output path; empty disables the file sink
	File string `yaml:"file" json:"file"`

	// Banner length cap applied when writing CSV rows
	BannerTruncate int `yaml:"banner_truncate" json:"banner_truncate" validate:"gte=1"`

	// Maximum open-port rows printed in the console summary
	MaxSummaryRows int `yaml:"max_summary_rows" json:"max_summary_rows" validate:"gte=1"`
}

// LoggingSettings holds logging settings.
type LoggingSettings struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=text json"`
	Output string `yaml:"output" json:"output" validate:"required"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Scan: ScanSettings{
			Ports:          "22,80,443,8080,8443",
			Timeout:        time.Second,
			Concurrency:    200,
			Banner:         false,
			BannerMaxBytes: 512,
			ReverseDNS:     false,
		},
		Output: OutputSettings{
			File:           "",
			BannerTruncate: 1000,
			MaxSummaryRows: 50,
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load loads configuration from a file, merged over defaults. A missing
// file is not an error: defaults are returned unchanged.
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		return config, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
