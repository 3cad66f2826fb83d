package hub

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stockpulse/stockpulse/internal/types"
)

// Conn is one live subscriber connection. Send must honor the deadline.
type Conn interface {
	Send(payload []byte, deadline time.Time) error
	Close() error
}

// Hub fans alert events out to live subscribers. Delivery is at-most-once
// and fire-and-forget: a subscriber whose send fails or times out is
// dropped, and the authoritative alert state can always be re-fetched
// from the store.
type Hub struct {
	mu          sync.Mutex
	subscribers map[Conn]struct{}
	sendTimeout time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// New creates an empty hub.
func New(logger zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[Conn]struct{}),
		sendTimeout: 5 * time.Second,
		logger:      logger.With().Str("component", "hub").Logger(),
		now:         time.Now,
	}
}

// Subscribe registers a connection for alert events.
func (h *Hub) Subscribe(c Conn) {
	h.mu.Lock()
	h.subscribers[c] = struct{}{}
	total := len(h.subscribers)
	h.mu.Unlock()
	h.logger.Info().Int("total_subscribers", total).Msg("subscriber added")
}

// Unsubscribe removes a connection. Safe to call for unknown connections.
func (h *Hub) Unsubscribe(c Conn) {
	h.mu.Lock()
	_, ok := h.subscribers[c]
	delete(h.subscribers, c)
	total := len(h.subscribers)
	h.mu.Unlock()
	if ok {
		h.logger.Info().Int("total_subscribers", total).Msg("subscriber removed")
	}
}

// Count returns the current subscriber count.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Publish serializes the alert and attempts delivery to every subscriber.
// Failing subscribers are unsubscribed and closed; one bad connection
// never blocks delivery to the rest.
func (h *Hub) Publish(a types.Alert) {
	now := h.now()
	payload, err := types.EncodeEnvelope(a, now)
	if err != nil {
		h.logger.Error().Err(err).Str("alert_id", a.ID).Msg("failed to encode alert envelope")
		return
	}

	h.mu.Lock()
	conns := make([]Conn, 0, len(h.subscribers))
	for c := range h.subscribers {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	deadline := now.Add(h.sendTimeout)
	var failed []Conn
	for _, c := range conns {
		if err := c.Send(payload, deadline); err != nil {
			h.logger.Warn().Err(err).Str("alert_id", a.ID).Msg("subscriber send failed, dropping")
			failed = append(failed, c)
		}
	}

	if len(failed) == 0 {
		return
	}
	h.mu.Lock()
	for _, c := range failed {
		delete(h.subscribers, c)
	}
	h.mu.Unlock()
	for _, c := range failed {
		_ = c.Close()
	}
}
