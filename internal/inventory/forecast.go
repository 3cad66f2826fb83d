package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPForecaster queries an external forecasting service over HTTP.
type HTTPForecaster struct {
	baseURL string
	client  *http.Client
}

// NewHTTPForecaster creates a forecaster client for the given base URL.
func NewHTTPForecaster(baseURL string, timeout time.Duration) *HTTPForecaster {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &HTTPForecaster{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// forecastResponse is the collaborator's reply shape.
type forecastResponse struct {
	DailyDemand []float64 `json:"daily_demand"`
	TotalDemand float64   `json:"total_demand"`
}

// ForecastDemand fetches a demand forecast for entityID over daysAhead days.
// Any transport or decode failure is reported as ErrUnavailable so callers
// can skip the check for this cycle.
func (f *HTTPForecaster) ForecastDemand(ctx context.Context, entityID string, daysAhead int) (Forecast, error) {
	url := fmt.Sprintf("%s/forecast/%s?days_ahead=%d", f.baseURL, entityID, daysAhead)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Forecast{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Forecast{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Forecast{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Forecast{}, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}

	return Forecast{
		DailyDemand: body.DailyDemand,
		TotalDemand: body.TotalDemand,
		DaysAhead:   daysAhead,
	}, nil
}

// NoForecaster is used when no forecasting collaborator is configured.
// Every call reports ErrUnavailable.
type NoForecaster struct{}

// ForecastDemand always fails with ErrUnavailable.
func (NoForecaster) ForecastDemand(context.Context, string, int) (Forecast, error) {
	return Forecast{}, ErrUnavailable
}
