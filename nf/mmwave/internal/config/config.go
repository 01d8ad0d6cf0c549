// Package config loads nf/mmwave's configuration, wrapping
// common/ran.Config the same way nf/enb/internal/config does.
package config

import (
	"os"

	"github.com/5g-ran/mc-rrc/common/ran"
)

// Config is nf/mmwave's configuration.
type Config = ran.Config

// Load reads YAML configuration from path, falling back to
// DefaultConfig if the file does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return ran.Load(path)
}

// DefaultConfig returns nf/mmwave's default configuration: a group-A
// mmWave cell, non-coordinator.
func DefaultConfig() *Config {
	cfg := ran.DefaultConfig()
	cfg.Cell.Group = ran.CellGroupA.String()
	cfg.Cell.MmWaveDevice = true
	return cfg
}
