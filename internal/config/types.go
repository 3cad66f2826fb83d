package config

import (
	"time"

	"github.com/stockpulse/stockpulse/internal/types"
)

// Config represents the complete StockPulse configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Forecast   ForecastConfig   `yaml:"forecast"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Anomaly    AnomalyConfig    `yaml:"anomaly"`
	Alerts     AlertConfig      `yaml:"alerts"`
	Channels   []ChannelConfig  `yaml:"channels"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// StoreConfig contains persistent alert log settings. An empty DSN
// degrades the store to in-memory-only operation.
type StoreConfig struct {
	DSN string `yaml:"dsn"`
}

// ForecastConfig points at the demand forecasting collaborator. An empty
// URL disables forecast-driven checks.
type ForecastConfig struct {
	URL       string        `yaml:"url"`
	Timeout   time.Duration `yaml:"timeout"`
	DaysAhead int           `yaml:"days_ahead"`
}

// MonitoringConfig contains per-session defaults for recurring stock checks.
type MonitoringConfig struct {
	DefaultInterval   time.Duration `yaml:"default_interval"`
	LowStockThreshold float64       `yaml:"low_stock_threshold"`
	StockFloorPercent float64       `yaml:"stock_floor_percent"`
	CallTimeout       time.Duration `yaml:"call_timeout"`
}

// AnomalyConfig controls the periodic batch anomaly scan.
type AnomalyConfig struct {
	Interval          time.Duration `yaml:"interval"`
	BatchLimit        int           `yaml:"batch_limit"`
	HorizonDays       int           `yaml:"horizon_days"`
	DemandSpikeFactor float64       `yaml:"demand_spike_factor"`
	ExcessStockFactor float64       `yaml:"excess_stock_factor"`
}

// AlertConfig controls escalation and retention sweeps.
type AlertConfig struct {
	EscalationTimeout       time.Duration `yaml:"escalation_timeout"`
	EscalationSweepInterval time.Duration `yaml:"escalation_sweep_interval"`
	RetentionWindow         time.Duration `yaml:"retention_window"`
	RetentionSweepInterval  time.Duration `yaml:"retention_sweep_interval"`
}

// ChannelConfig defines an out-of-band notification channel. An empty
// severity_filter matches every severity.
type ChannelConfig struct {
	Type           string           `yaml:"type"`
	Endpoint       string           `yaml:"endpoint"`
	Enabled        bool             `yaml:"enabled"`
	SeverityFilter []types.Severity `yaml:"severity_filter,omitempty"`
}
