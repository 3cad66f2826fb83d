package alerter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stockpulse/stockpulse/internal/store"
	"github.com/stockpulse/stockpulse/internal/types"
)

// Broadcaster delivers alert events to live subscribers.
type Broadcaster interface {
	Publish(a types.Alert)
}

// Notifier delivers alert events to out-of-band channels. Escalations
// take a distinct path so receivers can treat them differently.
type Notifier interface {
	Route(a types.Alert)
	RouteEscalation(a types.Alert)
}

// Engine owns the alert lifecycle: creation with deduplication, the
// acknowledge/resolve/escalate transitions, and the fixed per-alert side
// effect order persist -> broadcast -> notify. It is the single writer to
// the alert store.
type Engine struct {
	store  *store.AlertStore
	hub    Broadcaster
	router Notifier
	logger zerolog.Logger

	escalationTimeout time.Duration
	retentionWindow   time.Duration
	now               func() time.Time
}

// NewEngine creates the lifecycle engine.
func NewEngine(st *store.AlertStore, h Broadcaster, r Notifier, escalationTimeout, retentionWindow time.Duration, logger zerolog.Logger) *Engine {
	if escalationTimeout == 0 {
		escalationTimeout = 2 * time.Hour
	}
	if retentionWindow == 0 {
		retentionWindow = 30 * 24 * time.Hour
	}
	return &Engine{
		store:             st,
		hub:               h,
		router:            r,
		logger:            logger.With().Str("component", "alerter").Logger(),
		escalationTimeout: escalationTimeout,
		retentionWindow:   retentionWindow,
		now:               time.Now,
	}
}

// SetNow overrides the engine clock, for tests.
func (e *Engine) SetNow(now func() time.Time) {
	e.now = now
}

// dedupClass groups alert types for deduplication. LOW_STOCK and STOCK_OUT
// describe the same physical condition at different depths, so they share
// a class and suppress each other while one is open.
func dedupClass(t types.AlertType) string {
	switch t {
	case types.AlertLowStock, types.AlertStockOut:
		return "stock_level"
	}
	return string(t)
}

// Create raises a new alert, unless an open alert already exists for the
// same entity and dedup class, in which case the existing alert is
// returned unchanged. On creation the alert is persisted, broadcast, and
// routed to notification channels, in that order.
func (e *Engine) Create(t types.AlertType, entityID, title, message string, sev types.Severity, meta map[string]any) types.Alert {
	now := e.now()
	class := dedupClass(t)

	alert, created := e.store.CreateIfAbsent(
		func(a *types.Alert) bool {
			return a.Open() && a.EntityID == entityID && dedupClass(a.Type) == class
		},
		func() types.Alert {
			return types.Alert{
				ID:        newAlertID(t, entityID, now),
				Type:      t,
				EntityID:  entityID,
				Title:     title,
				Message:   message,
				Severity:  sev,
				Status:    types.StatusActive,
				CreatedAt: now,
				UpdatedAt: now,
				Metadata:  meta,
			}
		},
	)

	if !created {
		e.logger.Debug().
			Str("alert_id", alert.ID).
			Str("entity_id", entityID).
			Str("alert_type", string(t)).
			Msg("open alert exists, skipping duplicate")
		return alert
	}

	e.logger.Info().
		Str("alert_id", alert.ID).
		Str("entity_id", entityID).
		Str("alert_type", string(t)).
		Str("severity", string(sev)).
		Msg("alert created")

	e.hub.Publish(alert)
	e.router.Route(alert)
	return alert
}

// Acknowledge transitions an ACTIVE alert to ACKNOWLEDGED. Any other
// current state returns false without mutation.
func (e *Engine) Acknowledge(alertID, actor string) bool {
	now := e.now()
	alert, applied, err := e.store.Mutate(alertID, func(a *types.Alert) bool {
		if a.Status != types.StatusActive {
			return false
		}
		a.Status = types.StatusAcknowledged
		a.AcknowledgedBy = actor
		a.UpdatedAt = now
		return true
	})
	if err != nil || !applied {
		return false
	}

	e.logger.Info().
		Str("alert_id", alertID).
		Str("acknowledged_by", actor).
		Msg("alert acknowledged")

	e.hub.Publish(alert)
	return true
}

// Resolve transitions an alert to RESOLVED from any non-terminal state,
// recording the actor and an optional resolution note.
func (e *Engine) Resolve(alertID, actor, note string) bool {
	now := e.now()
	alert, applied, err := e.store.Mutate(alertID, func(a *types.Alert) bool {
		if a.Terminal() {
			return false
		}
		a.Status = types.StatusResolved
		a.ResolvedBy = actor
		resolvedAt := now
		a.ResolvedAt = &resolvedAt
		a.UpdatedAt = now
		if note != "" {
			a.SetMeta("resolution_note", note)
		}
		return true
	})
	if err != nil || !applied {
		return false
	}

	e.logger.Info().
		Str("alert_id", alertID).
		Str("resolved_by", actor).
		Msg("alert resolved")

	e.hub.Publish(alert)
	return true
}

// Query returns open alerts (active, acknowledged, or escalated), newest
// first, optionally filtered by entity and severity. Empty filter values
// match everything.
func (e *Engine) Query(entityID string, sev types.Severity) []types.Alert {
	var out []types.Alert
	for _, a := range e.store.Snapshot() {
		if !a.Open() {
			continue
		}
		if entityID != "" && a.EntityID != entityID {
			continue
		}
		if sev != "" && a.Severity != sev {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Stats summarizes the cached alerts for the ops surface.
func (e *Engine) Stats() map[string]int {
	stats := make(map[string]int)
	for _, a := range e.store.Snapshot() {
		stats["total"]++
		stats["status_"+string(a.Status)]++
		if a.Open() {
			stats["open"]++
			stats["severity_"+string(a.Severity)]++
		}
	}
	return stats
}

// EscalationSweep transitions every ACTIVE alert of severity HIGH or
// CRITICAL older than the escalation timeout to ESCALATED, and emits an
// escalation notification for each. The sweep is idempotent: escalated
// alerts are not eligible again.
func (e *Engine) EscalationSweep() int {
	now := e.now()
	escalated := 0
	for _, snap := range e.store.Snapshot() {
		if snap.Status != types.StatusActive {
			continue
		}
		if !snap.Severity.AtLeast(types.SeverityHigh) {
			continue
		}
		if now.Sub(snap.CreatedAt) <= e.escalationTimeout {
			continue
		}

		alert, applied, err := e.store.Mutate(snap.ID, func(a *types.Alert) bool {
			// Re-check under the lock: a concurrent ack/resolve wins.
			if a.Status != types.StatusActive {
				return false
			}
			a.Status = types.StatusEscalated
			a.UpdatedAt = now
			return true
		})
		if err != nil || !applied {
			continue
		}

		escalated++
		e.logger.Warn().
			Str("alert_id", alert.ID).
			Str("entity_id", alert.EntityID).
			Str("severity", string(alert.Severity)).
			Dur("age", now.Sub(alert.CreatedAt)).
			Msg("alert escalated")

		e.hub.Publish(alert)
		e.router.RouteEscalation(alert)
	}
	return escalated
}

// RetentionSweep purges resolved alerts older than the retention window
// from the hot cache. The persistent log is unaffected.
func (e *Engine) RetentionSweep() int {
	cutoff := e.now().Add(-e.retentionWindow)
	removed := e.store.Purge(func(a *types.Alert) bool {
		return a.Status == types.StatusResolved && a.ResolvedAt != nil && a.ResolvedAt.Before(cutoff)
	})
	if removed > 0 {
		e.logger.Info().Int("removed", removed).Msg("purged old resolved alerts")
	}
	return removed
}

// newAlertID builds a unique, immutable alert ID from the type, entity,
// and creation time, with a random suffix to break same-second ties.
func newAlertID(t types.AlertType, entityID string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "alert_%s_%s", now.UTC().Format("20060102_150405"), t)
	if entityID != "" {
		fmt.Fprintf(&b, "_%s", entityID)
	}
	fmt.Fprintf(&b, "_%s", uuid.NewString()[:8])
	return b.String()
}
