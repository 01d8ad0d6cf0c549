package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the x2registry configuration.
type Config struct {
	SBI           SBIConfig           `yaml:"sbi"`
	Registry      RegistryConfig      `yaml:"registry"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// SBIConfig holds the HTTP listen configuration.
type SBIConfig struct {
	Scheme      string `yaml:"scheme"`
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
}

// RegistryConfig holds the registry's own identity and heartbeat
// policy, trimmed from the teacher's NFConfig (no instance UUID: a
// cell registry doesn't register itself with anyone).
type RegistryConfig struct {
	Name      string          `yaml:"name"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
}

// HeartbeatConfig holds default heartbeat settings. They are loaded
// but not applied: a cell that registers without its own
// HeartBeatTimer keeps 0 and never expires.
type HeartbeatConfig struct {
	DefaultIntervalSec int `yaml:"default_interval_seconds"`
	DefaultTimeoutSec  int `yaml:"default_timeout_seconds"`
}

// ObservabilityConfig mirrors the rest of this repository's binaries.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Logging LoggingConfig `yaml:"logging"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads YAML configuration from path, falling back to
// DefaultConfig if the file does not exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration's bounds.
func (c *Config) Validate() error {
	if c.SBI.Port <= 0 || c.SBI.Port > 65535 {
		return fmt.Errorf("invalid SBI port: %d", c.SBI.Port)
	}
	if c.SBI.Scheme != "http" && c.SBI.Scheme != "https" {
		return fmt.Errorf("invalid SBI scheme: %s (must be http or https)", c.SBI.Scheme)
	}
	return nil
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		SBI: SBIConfig{
			Scheme:      "http",
			BindAddress: "0.0.0.0",
			Port:        8090,
		},
		Registry: RegistryConfig{
			Name: "x2registry-1",
			Heartbeat: HeartbeatConfig{
				DefaultIntervalSec: 30,
				DefaultTimeoutSec:  90,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{Enabled: true, Port: 9091},
			Tracing: TracingConfig{Enabled: false, Exporter: "otlp"},
			Logging: LoggingConfig{Level: "info", Format: "json"},
		},
	}
}
