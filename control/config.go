// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Event queue configuration: defaults, validation and YAML loading.

package control

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-events/api"
)

// Config holds parameters fixed for the lifetime of one queue.
type Config struct {
	// MaxEvents bounds the readiness notifications handled per wake cycle.
	MaxEvents int `yaml:"max_events"`
	// LogLevel is a zerolog level name. Empty keeps the process logger's level.
	LogLevel string `yaml:"log_level"`
	// Metrics enables Prometheus collection for queues built from this config.
	Metrics bool `yaml:"metrics"`
	// MetricsNamespace prefixes every metric name.
	MetricsNamespace string `yaml:"metrics_namespace"`
	// Debug enables debug probe registration.
	Debug bool `yaml:"debug"`
	// Name labels the queue in logs and metrics.
	Name string `yaml:"name"`
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		MaxEvents:        16,
		LogLevel:         "",
		Metrics:          false,
		MetricsNamespace: "hioload",
		Debug:            false,
		Name:             "default",
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.MaxEvents <= 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "config: max_events must be positive").
			WithContext("max_events", c.MaxEvents)
	}
	if c.Name == "" {
		return api.NewError(api.ErrCodeInvalidArgument, "config: name must not be empty")
	}
	return nil
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
