package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stockpulse/stockpulse/internal/alerter"
	"github.com/stockpulse/stockpulse/internal/config"
	"github.com/stockpulse/stockpulse/internal/inventory"
	"github.com/stockpulse/stockpulse/internal/types"
)

// session is one running monitoring loop and its cancellation handles.
type session struct {
	types.MonitoringSession
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler owns the recurring per-entity stock checks. Each session runs
// in its own cancellable goroutine; Stop interrupts the interval wait and
// joins the loop before returning, so no tick survives a stop.
type Scheduler struct {
	mu       sync.Mutex
	sessions map[string]*session
	byEntity map[string]string
	closed   bool

	engine       *alerter.Engine
	inv          inventory.Reader
	forecaster   inventory.Forecaster
	cfg          config.MonitoringConfig
	forecastDays int
	logger       zerolog.Logger
}

// NewScheduler creates a monitoring scheduler. forecastDays is the horizon
// used for restock recommendations.
func NewScheduler(engine *alerter.Engine, inv inventory.Reader, forecaster inventory.Forecaster, cfg config.MonitoringConfig, forecastDays int, logger zerolog.Logger) *Scheduler {
	if forecastDays <= 0 {
		forecastDays = 30
	}
	return &Scheduler{
		sessions:     make(map[string]*session),
		byEntity:     make(map[string]string),
		engine:       engine,
		inv:          inv,
		forecaster:   forecaster,
		cfg:          cfg,
		forecastDays: forecastDays,
		logger:       logger.With().Str("component", "monitor").Logger(),
	}
}

// Start launches a monitoring session for an entity and returns its ID.
// At most one session runs per entity: starting a second one stops the
// previous session first.
func (s *Scheduler) Start(entityID string, interval time.Duration, autoRestock bool, lowStockThreshold float64) (string, error) {
	if entityID == "" {
		return "", errors.New("monitor: entity ID is required")
	}
	if interval <= 0 {
		interval = s.cfg.DefaultInterval
	}
	if lowStockThreshold <= 0 {
		lowStockThreshold = s.cfg.LowStockThreshold
	}

	// Stopping a previous session releases the lock, so both the closed
	// flag and the entity slot must be re-checked after every re-acquire:
	// a concurrent Start may have installed a new session, and a
	// concurrent StopAll may have shut the scheduler down.
	s.mu.Lock()
	for {
		if s.closed {
			s.mu.Unlock()
			return "", errors.New("monitor: scheduler is shut down")
		}
		prevID, ok := s.byEntity[entityID]
		if !ok {
			break
		}
		prev := s.sessions[prevID]
		s.mu.Unlock()
		s.logger.Warn().
			Str("entity_id", entityID).
			Str("session_id", prevID).
			Msg("entity already monitored, replacing session")
		s.stopSession(prev)
		s.mu.Lock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		MonitoringSession: types.MonitoringSession{
			ID:                fmt.Sprintf("monitor-%s-%s", entityID, uuid.NewString()[:8]),
			EntityID:          entityID,
			CheckInterval:     interval,
			AutoRestock:       autoRestock,
			LowStockThreshold: lowStockThreshold,
			Status:            types.SessionRunning,
			StartedAt:         time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.sessions[sess.ID] = sess
	s.byEntity[entityID] = sess.ID
	s.mu.Unlock()

	go s.run(ctx, sess)

	s.logger.Info().
		Str("session_id", sess.ID).
		Str("entity_id", entityID).
		Dur("interval", interval).
		Bool("auto_restock", autoRestock).
		Msg("monitoring session started")
	return sess.ID, nil
}

// Stop cancels a session and waits for its loop to exit. Returns false
// for unknown session IDs.
func (s *Scheduler) Stop(sessionID string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.stopSession(sess)
	return true
}

// StopAll cancels every session and rejects future starts. Used at
// shutdown.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	s.closed = true
	all := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.Unlock()

	for _, sess := range all {
		s.stopSession(sess)
	}
}

// Sessions returns a snapshot of all known sessions, running or stopped.
func (s *Scheduler) Sessions() []types.MonitoringSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.MonitoringSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.MonitoringSession)
	}
	return out
}

func (s *Scheduler) stopSession(sess *session) {
	sess.cancel()
	<-sess.done

	s.mu.Lock()
	sess.Status = types.SessionStopped
	delete(s.sessions, sess.ID)
	if s.byEntity[sess.EntityID] == sess.ID {
		delete(s.byEntity, sess.EntityID)
	}
	s.mu.Unlock()

	s.logger.Info().
		Str("session_id", sess.ID).
		Str("entity_id", sess.EntityID).
		Msg("monitoring session stopped")
}

// run is the session loop: an immediate first check, then one per
// interval. The ticker wait is interruptible by cancellation.
func (s *Scheduler) run(ctx context.Context, sess *session) {
	defer close(sess.done)

	s.checkTick(ctx, sess)

	ticker := time.NewTicker(sess.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkTick(ctx, sess)
		}
	}
}

// checkTick performs one stock check. Collaborator failures are logged
// and the session proceeds to its next tick.
func (s *Scheduler) checkTick(ctx context.Context, sess *session) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	level, err := s.inv.Get(cctx, sess.EntityID)
	if err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			s.logger.Warn().
				Str("session_id", sess.ID).
				Str("entity_id", sess.EntityID).
				Msg("monitored entity not found, skipping tick")
		} else {
			s.logger.Error().Err(err).
				Str("session_id", sess.ID).
				Str("entity_id", sess.EntityID).
				Msg("inventory lookup failed, skipping tick")
		}
		return
	}

	pct := level.StockPercent()
	if level.CurrentStock > level.ReorderPoint && pct >= s.cfg.StockFloorPercent {
		return
	}

	sev := severityFor(level)
	alertType := types.AlertLowStock
	title := fmt.Sprintf("Low Stock: %s", sess.EntityID)
	if level.CurrentStock == 0 {
		alertType = types.AlertStockOut
		title = fmt.Sprintf("Stock Out: %s", sess.EntityID)
	}

	s.engine.Create(alertType, sess.EntityID, title,
		fmt.Sprintf("Entity %s has %d units remaining (reorder point: %d)",
			sess.EntityID, level.CurrentStock, level.ReorderPoint),
		sev,
		map[string]any{
			"current_stock":       level.CurrentStock,
			"reorder_point":       level.ReorderPoint,
			"stock_percentage":    pct,
			"low_stock_threshold": sess.LowStockThreshold,
		},
	)

	if sess.AutoRestock && sev.AtLeast(types.SeverityHigh) {
		s.recommendRestock(ctx, sess, level)
	}
}

// recommendRestock is the one-shot restock path for urgent auto-restock
// sessions: consult the forecaster and raise a RESTOCK_NEEDED alert
// carrying the forecast figures.
func (s *Scheduler) recommendRestock(ctx context.Context, sess *session, level inventory.ItemLevel) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	fc, err := s.forecaster.ForecastDemand(cctx, sess.EntityID, s.forecastDays)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("session_id", sess.ID).
			Str("entity_id", sess.EntityID).
			Msg("forecast unavailable, skipping restock recommendation")
		return
	}

	s.engine.Create(types.AlertRestockNeeded, sess.EntityID,
		fmt.Sprintf("Restock Needed: %s", sess.EntityID),
		fmt.Sprintf("Entity %s needs restocking: %d units on hand, forecasted demand %.0f over %d days",
			sess.EntityID, level.CurrentStock, fc.TotalDemand, fc.DaysAhead),
		types.SeverityHigh,
		map[string]any{
			"current_stock":     level.CurrentStock,
			"forecasted_demand": fc.TotalDemand,
			"forecast_days":     fc.DaysAhead,
			"initiated_by":      "auto_monitor",
		},
	)
}

// severityFor derives urgency from the stock position: CRITICAL for a
// stock-out, HIGH at or below half the reorder point, MEDIUM otherwise.
func severityFor(level inventory.ItemLevel) types.Severity {
	switch {
	case level.CurrentStock == 0:
		return types.SeverityCritical
	case level.CurrentStock*2 <= level.ReorderPoint:
		return types.SeverityHigh
	default:
		return types.SeverityMedium
	}
}
