package notifier

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpulse/stockpulse/internal/config"
	"github.com/stockpulse/stockpulse/internal/types"
)

// webhookRecorder captures POSTed payloads.
type webhookRecorder struct {
	mu       sync.Mutex
	payloads []webhookPayload
	status   int
}

func (w *webhookRecorder) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	var p webhookPayload
	_ = json.NewDecoder(r.Body).Decode(&p)
	w.mu.Lock()
	w.payloads = append(w.payloads, p)
	w.mu.Unlock()
	if w.status != 0 {
		rw.WriteHeader(w.status)
	}
}

func (w *webhookRecorder) received() []webhookPayload {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]webhookPayload(nil), w.payloads...)
}

func sampleAlert(sev types.Severity) types.Alert {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return types.Alert{
		ID:        "alert_20250601_120000_stock_out_P1_abcd1234",
		Type:      types.AlertStockOut,
		EntityID:  "P1",
		Title:     "Stock Out: P1",
		Message:   "0 units left",
		Severity:  sev,
		Status:    types.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRouteDeliversWebhook(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	r := NewRouter([]config.ChannelConfig{
		{Type: "webhook", Endpoint: srv.URL, Enabled: true},
	}, zerolog.Nop())

	r.Route(sampleAlert(types.SeverityCritical))

	got := rec.received()
	require.Len(t, got, 1)
	assert.Equal(t, string(EventCreated), got[0].Event)
	assert.Equal(t, "alert_20250601_120000_stock_out_P1_abcd1234", got[0].Alert.AlertID)
	assert.Equal(t, "critical", got[0].Alert.Severity)
}

func TestRouteEscalationUsesEscalatedEvent(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	r := NewRouter([]config.ChannelConfig{
		{Type: "webhook", Endpoint: srv.URL, Enabled: true},
	}, zerolog.Nop())

	r.RouteEscalation(sampleAlert(types.SeverityCritical))

	got := rec.received()
	require.Len(t, got, 1)
	assert.Equal(t, string(EventEscalated), got[0].Event)
}

func TestSeverityFilter(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	r := NewRouter([]config.ChannelConfig{
		{
			Type:           "webhook",
			Endpoint:       srv.URL,
			Enabled:        true,
			SeverityFilter: []types.Severity{types.SeverityCritical},
		},
	}, zerolog.Nop())

	r.Route(sampleAlert(types.SeverityMedium))
	assert.Empty(t, rec.received())

	r.Route(sampleAlert(types.SeverityCritical))
	assert.Len(t, rec.received(), 1)
}

func TestDisabledChannelSkipped(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	r := NewRouter([]config.ChannelConfig{
		{Type: "webhook", Endpoint: srv.URL, Enabled: false},
	}, zerolog.Nop())

	r.Route(sampleAlert(types.SeverityCritical))
	assert.Empty(t, rec.received())
}

func TestChannelFailureDoesNotBlockOthers(t *testing.T) {
	failing := &webhookRecorder{status: http.StatusInternalServerError}
	failSrv := httptest.NewServer(failing)
	defer failSrv.Close()

	rec := &webhookRecorder{}
	okSrv := httptest.NewServer(rec)
	defer okSrv.Close()

	r := NewRouter([]config.ChannelConfig{
		{Type: "webhook", Endpoint: failSrv.URL, Enabled: true},
		{Type: "webhook", Endpoint: okSrv.URL, Enabled: true},
	}, zerolog.Nop())

	r.Route(sampleAlert(types.SeverityHigh))
	assert.Len(t, rec.received(), 1)
}

func TestEmailChannelAlwaysSucceeds(t *testing.T) {
	r := NewRouter([]config.ChannelConfig{
		{Type: "email", Endpoint: "ops@example.com", Enabled: true},
	}, zerolog.Nop())

	// Email delivery only logs; nothing to observe beyond not panicking.
	r.Route(sampleAlert(types.SeverityHigh))
}

func TestSeverityMatches(t *testing.T) {
	assert.True(t, severityMatches(nil, types.SeverityLow))
	assert.True(t, severityMatches([]types.Severity{types.SeverityHigh, types.SeverityCritical}, types.SeverityHigh))
	assert.False(t, severityMatches([]types.Severity{types.SeverityCritical}, types.SeverityMedium))
}
