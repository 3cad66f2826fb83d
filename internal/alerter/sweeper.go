package alerter

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper drives the periodic escalation and retention maintenance over
// the alert store.
type Sweeper struct {
	engine             *Engine
	escalationInterval time.Duration
	retentionInterval  time.Duration
	logger             zerolog.Logger
}

// NewSweeper creates a sweeper for the engine.
func NewSweeper(engine *Engine, escalationInterval, retentionInterval time.Duration, logger zerolog.Logger) *Sweeper {
	if escalationInterval == 0 {
		escalationInterval = 5 * time.Minute
	}
	if retentionInterval == 0 {
		retentionInterval = 24 * time.Hour
	}
	return &Sweeper{
		engine:             engine,
		escalationInterval: escalationInterval,
		retentionInterval:  retentionInterval,
		logger:             logger.With().Str("component", "sweeper").Logger(),
	}
}

// Run executes both sweeps on their cadences until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	escalation := time.NewTicker(s.escalationInterval)
	defer escalation.Stop()
	retention := time.NewTicker(s.retentionInterval)
	defer retention.Stop()

	s.logger.Info().
		Dur("escalation_interval", s.escalationInterval).
		Dur("retention_interval", s.retentionInterval).
		Msg("sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweeper stopped")
			return
		case <-escalation.C:
			if n := s.engine.EscalationSweep(); n > 0 {
				s.logger.Info().Int("escalated", n).Msg("escalation sweep complete")
			}
		case <-retention.C:
			s.engine.RetentionSweep()
		}
	}
}
