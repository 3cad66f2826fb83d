package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stockpulse/stockpulse/internal/types"
)

// ErrUnknownAlert is returned when an alert ID is not present in the cache.
var ErrUnknownAlert = errors.New("store: unknown alert")

// AlertLog is the optional durable copy of the alert stream. A nil log
// degrades the store to in-memory-only operation.
type AlertLog interface {
	Append(ctx context.Context, a types.Alert) error
	Update(ctx context.Context, a types.Alert) error
}

// retryOp is a failed log write queued for background retry.
type retryOp struct {
	update   bool
	alert    types.Alert
	attempts int
}

// AlertStore is the authoritative in-memory alert cache with best-effort
// write-through to an AlertLog. All mutations happen under one mutex so
// the dedup-check-then-insert of alert creation is atomic.
type AlertStore struct {
	mu     sync.RWMutex
	alerts map[string]*types.Alert

	log          AlertLog
	logger       zerolog.Logger
	writeTimeout time.Duration
	retries      chan retryOp
}

// NewAlertStore creates an alert store. log may be nil.
func NewAlertStore(log AlertLog, logger zerolog.Logger) *AlertStore {
	return &AlertStore{
		alerts:       make(map[string]*types.Alert),
		log:          log,
		logger:       logger.With().Str("component", "alert-store").Logger(),
		writeTimeout: 10 * time.Second,
		retries:      make(chan retryOp, 256),
	}
}

// CreateIfAbsent inserts the alert produced by build unless an existing
// alert matches the dedup predicate. It returns the stored alert and
// whether a new one was created. The check and insert are atomic.
func (s *AlertStore) CreateIfAbsent(match func(*types.Alert) bool, build func() types.Alert) (types.Alert, bool) {
	s.mu.Lock()
	for _, a := range s.alerts {
		if match(a) {
			existing := cloneAlert(a)
			s.mu.Unlock()
			return existing, false
		}
	}
	alert := build()
	s.alerts[alert.ID] = &alert
	stored := cloneAlert(&alert)
	s.mu.Unlock()

	s.persist(retryOp{alert: stored})
	return stored, true
}

// Mutate applies fn to the alert with the given ID under the store lock.
// fn returns whether the mutation was applied; an unapplied mutation is
// not persisted. Returns ErrUnknownAlert for unknown IDs.
func (s *AlertStore) Mutate(id string, fn func(*types.Alert) bool) (types.Alert, bool, error) {
	s.mu.Lock()
	a, ok := s.alerts[id]
	if !ok {
		s.mu.Unlock()
		return types.Alert{}, false, ErrUnknownAlert
	}
	applied := fn(a)
	updated := cloneAlert(a)
	s.mu.Unlock()

	if applied {
		s.persist(retryOp{update: true, alert: updated})
	}
	return updated, applied, nil
}

// Get returns a copy of the alert with the given ID.
func (s *AlertStore) Get(id string) (types.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return types.Alert{}, false
	}
	return cloneAlert(a), true
}

// Snapshot returns copies of every cached alert, in no particular order.
func (s *AlertStore) Snapshot() []types.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, cloneAlert(a))
	}
	return out
}

// Purge removes every cached alert matching pred and returns the count.
// The persistent log is unaffected.
func (s *AlertStore) Purge(pred func(*types.Alert) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, a := range s.alerts {
		if pred(a) {
			delete(s.alerts, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached alerts.
func (s *AlertStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}

// persist performs one write-through attempt; failures are queued for the
// background retry worker instead of blocking or failing the caller.
func (s *AlertStore) persist(op retryOp) {
	if s.log == nil {
		return
	}
	if err := s.tryWrite(op); err != nil {
		s.logger.Warn().Err(err).Str("alert_id", op.alert.ID).Bool("update", op.update).
			Msg("alert log write failed, queueing retry")
		op.attempts++
		select {
		case s.retries <- op:
		default:
			s.logger.Error().Str("alert_id", op.alert.ID).Msg("retry queue full, dropping log write")
		}
	}
}

func (s *AlertStore) tryWrite(op retryOp) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	if op.update {
		return s.log.Update(ctx, op.alert)
	}
	return s.log.Append(ctx, op.alert)
}

// Run drains the retry queue until ctx is cancelled. Each op is retried
// with a linear backoff and dropped after three failed attempts.
func (s *AlertStore) Run(ctx context.Context) {
	const maxAttempts = 3
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-s.retries:
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(op.attempts) * 5 * time.Second):
			}
			if err := s.tryWrite(op); err != nil {
				op.attempts++
				if op.attempts >= maxAttempts {
					s.logger.Error().Err(err).Str("alert_id", op.alert.ID).
						Msg("giving up on alert log write")
					continue
				}
				select {
				case s.retries <- op:
				default:
					s.logger.Error().Str("alert_id", op.alert.ID).Msg("retry queue full, dropping log write")
				}
			}
		}
	}
}

// cloneAlert copies an alert including its metadata bag so callers can
// never mutate cached state outside the lock.
func cloneAlert(a *types.Alert) types.Alert {
	out := *a
	if a.Metadata != nil {
		out.Metadata = make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			out.Metadata[k] = v
		}
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		out.ResolvedAt = &t
	}
	return out
}
