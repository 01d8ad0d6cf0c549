package ran

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SecondaryCellHandoverMode is the string form of the
// secondaryCellHandoverMode enumerated config option (spec §6; option
// names are normative). epsBearerToRlcMapping stays a plain string in
// CellConfig.
type SecondaryCellHandoverMode string

const (
	HandoverModeFixedTtt   SecondaryCellHandoverMode = "FIXED_TTT"
	HandoverModeDynamicTtt SecondaryCellHandoverMode = "DYNAMIC_TTT"
	HandoverModeThreshold  SecondaryCellHandoverMode = "THRESHOLD"
)

// Config holds the per-cell RAN configuration (spec §6's enumerated
// options), plus the ambient SBI/observability sections every binary
// in this repository carries.
type Config struct {
	SBI           SBIConfig           `yaml:"sbi"`
	Cell          CellConfig          `yaml:"cell"`
	Rrc           RrcConfig           `yaml:"rrc"`
	X2            X2Config            `yaml:"x2"`
	Trace         TraceConfig         `yaml:"trace"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// SBIConfig is the HTTP listen configuration shared by all three
// binaries (nf/enb, nf/mmwave, nf/x2registry).
type SBIConfig struct {
	Scheme      string `yaml:"scheme"`
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
}

// CellConfig is this process's own cell identity and PHY/MAC defaults.
type CellConfig struct {
	CellID                       uint16 `yaml:"cell_id"`
	Group                        string `yaml:"group"` // "LTE", "A", "B"
	MmWaveDevice                 bool   `yaml:"mmwave_device"`
	DefaultTransmissionMode      int    `yaml:"default_transmission_mode"`
	SystemInformationPeriodicity int    `yaml:"system_information_periodicity_ms"`
	SrsPeriodicity               int    `yaml:"srs_periodicity_ms"`
	QRxLevMin                    int    `yaml:"q_rx_lev_min"`
	AdmitRrcConnectionRequest    bool   `yaml:"admit_rrc_connection_request"`
	AdmitHandoverRequest         bool   `yaml:"admit_handover_request"`
	EpsBearerToRlcMapping        string `yaml:"eps_bearer_to_rlc_mapping"`
	NeighborCellIDs              []uint16 `yaml:"neighbor_cell_ids"`
}

// RrcConfig holds the UE-Manager timers and the coordinator control
// loop / TTT parameters.
type RrcConfig struct {
	ConnectionRequestTimeoutMs  int `yaml:"connection_request_timeout_ms"`
	ConnectionSetupTimeoutMs    int `yaml:"connection_setup_timeout_ms"`
	ConnectionRejectedTimeoutMs int `yaml:"connection_rejected_timeout_ms"`
	HandoverJoiningTimeoutMs    int `yaml:"handover_joining_timeout_ms"`
	HandoverLeavingTimeoutMs    int `yaml:"handover_leaving_timeout_ms"`
	HandoverFailureGraceMs      int `yaml:"handover_failure_grace_ms"`

	OutageThresholdDB       float64 `yaml:"outage_threshold_db"`
	SinrThresholdDifference float64 `yaml:"sinr_threshold_difference_db"`
	InterRatHoMode          bool    `yaml:"inter_rat_ho_mode"`

	SecondaryCellHandoverMode string  `yaml:"secondary_cell_handover_mode"`
	FixedTttValueMs           float64 `yaml:"fixed_ttt_value_ms"`
	MinDynTttValueMs          float64 `yaml:"min_dyn_ttt_value_ms"`
	MaxDynTttValueMs          float64 `yaml:"max_dyn_ttt_value_ms"`
	MinDiffTttValueDB         float64 `yaml:"min_diff_ttt_value_db"`
	MaxDiffTttValueDB         float64 `yaml:"max_diff_ttt_value_db"`

	CrtPeriodUs int `yaml:"crt_period_us"`

	SecondBestRetryIntervalMs int `yaml:"second_best_retry_interval_ms"`
}

// X2Config configures how this cell reaches peer cells: directly
// in-process, or over HTTP via the cell registry.
type X2Config struct {
	Transport         string `yaml:"transport"` // "memory" or "http"
	RegistryURL       string `yaml:"registry_url"`
	QueueDepth        int    `yaml:"queue_depth"`
	CoordinatorCellID uint16 `yaml:"coordinator_cell_id"`
	RefreshIntervalMs int    `yaml:"refresh_interval_ms"`
	AdvertiseURL      string `yaml:"advertise_url"` // base URL peers reach this cell's X2 endpoint at
}

// TraceConfig configures the optional trace sink (spec §6 "Persisted
// state: None ... optional trace outputs").
type TraceConfig struct {
	Sink       string           `yaml:"sink"` // "none", "file", "clickhouse"
	FilePath   string           `yaml:"file_path"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

type ClickHouseConfig struct {
	Addr      []string `yaml:"addr"`
	Database  string   `yaml:"database"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Table     string   `yaml:"table"`
	BatchSize int      `yaml:"batch_size"`
}

// ObservabilityConfig mirrors the teacher's logging/tracing/metrics
// section shape.
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

// Validate checks the configuration's normative bounds (spec §6).
func (c *Config) Validate() error {
	if c.SBI.Port <= 0 || c.SBI.Port > 65535 {
		return fmt.Errorf("invalid SBI port: %d", c.SBI.Port)
	}
	if c.Cell.QRxLevMin < -70 || c.Cell.QRxLevMin > -22 {
		return fmt.Errorf("q_rx_lev_min out of [-70,-22]: %d", c.Cell.QRxLevMin)
	}
	switch c.Cell.EpsBearerToRlcMapping {
	case "RLC_SM_ALWAYS", "RLC_UM_ALWAYS", "RLC_AM_ALWAYS", "PER_BASED", "RLC_UM_LOWLAT_ALWAYS", "":
	default:
		return fmt.Errorf("invalid eps_bearer_to_rlc_mapping: %s", c.Cell.EpsBearerToRlcMapping)
	}
	switch SecondaryCellHandoverMode(c.Rrc.SecondaryCellHandoverMode) {
	case HandoverModeFixedTtt, HandoverModeDynamicTtt, HandoverModeThreshold, "":
	default:
		return fmt.Errorf("invalid secondary_cell_handover_mode: %s", c.Rrc.SecondaryCellHandoverMode)
	}
	switch c.Cell.SrsPeriodicity {
	case 2, 5, 10, 20, 40, 80, 160, 320, 0:
	default:
		return fmt.Errorf("invalid srs_periodicity_ms: %d", c.Cell.SrsPeriodicity)
	}
	return nil
}

// DefaultConfig returns the spec's documented defaults (§4.2, §6).
func DefaultConfig() *Config {
	return &Config{
		SBI: SBIConfig{Scheme: "http", BindAddress: "0.0.0.0", Port: 8080},
		Cell: CellConfig{
			SystemInformationPeriodicity: 80,
			SrsPeriodicity:               40,
			QRxLevMin:                    -60,
			AdmitRrcConnectionRequest:    true,
			AdmitHandoverRequest:         true,
			EpsBearerToRlcMapping:        "PER_BASED",
		},
		Rrc: RrcConfig{
			ConnectionRequestTimeoutMs:  100,
			ConnectionSetupTimeoutMs:    100,
			ConnectionRejectedTimeoutMs: 50,
			HandoverJoiningTimeoutMs:    200,
			HandoverLeavingTimeoutMs:    200,
			HandoverFailureGraceMs:      300,
			OutageThresholdDB:           0,
			SinrThresholdDifference:     3,
			SecondaryCellHandoverMode:   string(HandoverModeFixedTtt),
			FixedTttValueMs:             110,
			MinDynTttValueMs:            25,
			MaxDynTttValueMs:            150,
			MinDiffTttValueDB:           3,
			MaxDiffTttValueDB:           20,
			CrtPeriodUs:                 1600,
			SecondBestRetryIntervalMs:   1,
		},
		X2: X2Config{Transport: "memory", QueueDepth: 256, RefreshIntervalMs: 5000},
		Trace: TraceConfig{Sink: "none"},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{Enabled: true, Port: 9090},
			Tracing: TracingConfig{Enabled: false, Exporter: "otlp"},
			Logging: LoggingConfig{Level: "info", Format: "json"},
		},
	}
}
