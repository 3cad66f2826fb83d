package inventory

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the inventory store has no such entity.
var ErrNotFound = errors.New("inventory: entity not found")

// ErrUnavailable is returned when the forecasting collaborator cannot
// produce a result.
var ErrUnavailable = errors.New("forecast: unavailable")

// ItemLevel is the stock position of one inventory entity.
type ItemLevel struct {
	CurrentStock int
	ReorderPoint int
	MaxStock     int
}

// StockPercent returns current stock as a percentage of max stock.
func (l ItemLevel) StockPercent() float64 {
	if l.MaxStock <= 0 {
		return 0
	}
	return float64(l.CurrentStock) / float64(l.MaxStock) * 100
}

// Reader looks up stock levels for monitored entities.
type Reader interface {
	Get(ctx context.Context, entityID string) (ItemLevel, error)
}

// Lister enumerates entity IDs for batch scans.
type Lister interface {
	Entities(ctx context.Context, limit int) ([]string, error)
}

// Forecast is an opaque demand forecast result.
type Forecast struct {
	DailyDemand []float64
	TotalDemand float64
	DaysAhead   int
}

// Forecaster produces demand forecasts for an entity over a horizon.
type Forecaster interface {
	ForecastDemand(ctx context.Context, entityID string, daysAhead int) (Forecast, error)
}
