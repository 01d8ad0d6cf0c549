// Package config loads nf/enb's configuration. The LTE coordinator's
// settings are entirely the ones common/ran.Config already declares
// (spec §6's option table); this package is the teacher-idiom
// per-binary Load/Validate/DefaultConfig entry point
// (nf/nrf/internal/config/config.go), thinly wrapping common/ran so
// every option name isn't redeclared twice.
package config

import (
	"os"

	"github.com/5g-ran/mc-rrc/common/ran"
)

// Config is nf/enb's configuration.
type Config = ran.Config

// Load reads YAML configuration from path, falling back to
// DefaultConfig if the file does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return ran.Load(path)
}

// DefaultConfig returns nf/enb's default configuration: a coordinator
// cell on the LTE group.
func DefaultConfig() *Config {
	cfg := ran.DefaultConfig()
	cfg.Cell.Group = ran.CellGroupLTE.String()
	cfg.Cell.MmWaveDevice = false
	return cfg
}
