package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/stockpulse/stockpulse/internal/alerter"
	"github.com/stockpulse/stockpulse/internal/config"
	"github.com/stockpulse/stockpulse/internal/inventory"
	"github.com/stockpulse/stockpulse/internal/types"
)

// AnomalyDetector periodically scans a bounded batch of entities and
// compares forecasted demand against current stock, raising DEMAND_SPIKE
// and EXCESS_STOCK alerts through the same dedup/create contract as every
// other producer.
type AnomalyDetector struct {
	engine      *alerter.Engine
	inv         inventory.Reader
	lister      inventory.Lister
	forecaster  inventory.Forecaster
	cfg         config.AnomalyConfig
	callTimeout time.Duration
	logger      zerolog.Logger
}

// NewAnomalyDetector creates a detector over the batch scan collaborators.
func NewAnomalyDetector(engine *alerter.Engine, inv inventory.Reader, lister inventory.Lister, forecaster inventory.Forecaster, cfg config.AnomalyConfig, callTimeout time.Duration, logger zerolog.Logger) *AnomalyDetector {
	if callTimeout == 0 {
		callTimeout = 30 * time.Second
	}
	return &AnomalyDetector{
		engine:      engine,
		inv:         inv,
		lister:      lister,
		forecaster:  forecaster,
		cfg:         cfg,
		callTimeout: callTimeout,
		logger:      logger.With().Str("component", "anomaly").Logger(),
	}
}

// Run scans on the configured cadence until ctx is cancelled. The first
// scan is aligned to the next interval boundary so restarts keep a stable
// schedule.
func (d *AnomalyDetector) Run(ctx context.Context) {
	wait := time.Until(time.Now().Truncate(d.cfg.Interval).Add(d.cfg.Interval))
	d.logger.Info().
		Dur("interval", d.cfg.Interval).
		Dur("first_scan_in", wait).
		Msg("anomaly detector started")

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	for {
		d.Scan(ctx)
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("anomaly detector stopped")
			return
		case <-ticker.C:
		}
	}
}

// Scan runs one batch pass. Per-entity collaborator failures are logged
// and skipped; they never abort the batch.
func (d *AnomalyDetector) Scan(ctx context.Context) {
	lctx, cancel := context.WithTimeout(ctx, d.callTimeout)
	entities, err := d.lister.Entities(lctx, d.cfg.BatchLimit)
	cancel()
	if err != nil {
		d.logger.Error().Err(err).Msg("entity listing failed, skipping scan")
		return
	}

	for _, entityID := range entities {
		if ctx.Err() != nil {
			return
		}
		d.checkEntity(ctx, entityID)
	}
}

func (d *AnomalyDetector) checkEntity(ctx context.Context, entityID string) {
	cctx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	level, err := d.inv.Get(cctx, entityID)
	if err != nil {
		d.logger.Warn().Err(err).Str("entity_id", entityID).Msg("stock lookup failed, skipping entity")
		return
	}

	fc, err := d.forecaster.ForecastDemand(cctx, entityID, d.cfg.HorizonDays)
	if err != nil {
		if errors.Is(err, inventory.ErrUnavailable) {
			d.logger.Debug().Str("entity_id", entityID).Msg("forecast unavailable, skipping entity")
		} else {
			d.logger.Warn().Err(err).Str("entity_id", entityID).Msg("forecast failed, skipping entity")
		}
		return
	}

	stock := float64(level.CurrentStock)

	if fc.TotalDemand > stock*d.cfg.DemandSpikeFactor {
		d.engine.Create(types.AlertDemandSpike, entityID,
			fmt.Sprintf("Demand Spike Detected: %s", entityID),
			fmt.Sprintf("Forecasted demand %.0f over %d days far exceeds current stock %d",
				fc.TotalDemand, fc.DaysAhead, level.CurrentStock),
			types.SeverityHigh,
			map[string]any{
				"forecasted_demand": fc.TotalDemand,
				"current_stock":     level.CurrentStock,
				"horizon_days":      d.cfg.HorizonDays,
			},
		)
	}

	if stock > fc.TotalDemand*d.cfg.ExcessStockFactor {
		excessRatio := 0.0
		if fc.TotalDemand > 0 {
			excessRatio = stock / fc.TotalDemand
		}
		d.engine.Create(types.AlertExcessStock, entityID,
			fmt.Sprintf("Excess Stock: %s", entityID),
			"Current stock significantly exceeds forecasted demand. Consider adjusting procurement.",
			types.SeverityMedium,
			map[string]any{
				"forecasted_demand": fc.TotalDemand,
				"current_stock":     level.CurrentStock,
				"excess_ratio":      excessRatio,
			},
		)
	}
}
