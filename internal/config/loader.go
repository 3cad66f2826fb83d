package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file, fills defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration with all defaults applied and no channels.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Forecast.Timeout == 0 {
		cfg.Forecast.Timeout = 15 * time.Second
	}
	if cfg.Forecast.DaysAhead == 0 {
		cfg.Forecast.DaysAhead = 30
	}
	if cfg.Monitoring.DefaultInterval == 0 {
		cfg.Monitoring.DefaultInterval = 5 * time.Minute
	}
	if cfg.Monitoring.LowStockThreshold == 0 {
		cfg.Monitoring.LowStockThreshold = 20.0
	}
	if cfg.Monitoring.StockFloorPercent == 0 {
		cfg.Monitoring.StockFloorPercent = 15.0
	}
	if cfg.Monitoring.CallTimeout == 0 {
		cfg.Monitoring.CallTimeout = 15 * time.Second
	}
	if cfg.Anomaly.Interval == 0 {
		cfg.Anomaly.Interval = 30 * time.Minute
	}
	if cfg.Anomaly.BatchLimit == 0 {
		cfg.Anomaly.BatchLimit = 50
	}
	if cfg.Anomaly.HorizonDays == 0 {
		cfg.Anomaly.HorizonDays = 7
	}
	if cfg.Anomaly.DemandSpikeFactor == 0 {
		cfg.Anomaly.DemandSpikeFactor = 2.0
	}
	if cfg.Anomaly.ExcessStockFactor == 0 {
		cfg.Anomaly.ExcessStockFactor = 4.0
	}
	if cfg.Alerts.EscalationTimeout == 0 {
		cfg.Alerts.EscalationTimeout = 2 * time.Hour
	}
	if cfg.Alerts.EscalationSweepInterval == 0 {
		cfg.Alerts.EscalationSweepInterval = 5 * time.Minute
	}
	if cfg.Alerts.RetentionWindow == 0 {
		cfg.Alerts.RetentionWindow = 30 * 24 * time.Hour
	}
	if cfg.Alerts.RetentionSweepInterval == 0 {
		cfg.Alerts.RetentionSweepInterval = 24 * time.Hour
	}
}

// Validate checks the configuration for inconsistencies.
func Validate(cfg *Config) error {
	for i, ch := range cfg.Channels {
		if ch.Type != "webhook" && ch.Type != "email" {
			return fmt.Errorf("channel %d: type must be 'webhook' or 'email', got %q", i, ch.Type)
		}
		if ch.Endpoint == "" {
			return fmt.Errorf("channel %d: endpoint is required", i)
		}
		for _, sev := range ch.SeverityFilter {
			if !sev.Valid() {
				return fmt.Errorf("channel %d: unknown severity %q in severity_filter", i, sev)
			}
		}
	}

	if cfg.Monitoring.DefaultInterval < time.Second {
		return fmt.Errorf("monitoring.default_interval must be at least 1s")
	}
	if cfg.Anomaly.DemandSpikeFactor <= 0 {
		return fmt.Errorf("anomaly.demand_spike_factor must be positive")
	}
	if cfg.Anomaly.ExcessStockFactor <= 0 {
		return fmt.Errorf("anomaly.excess_stock_factor must be positive")
	}
	if cfg.Alerts.RetentionWindow < time.Hour {
		return fmt.Errorf("alerts.retention_window must be at least 1h")
	}

	return nil
}
