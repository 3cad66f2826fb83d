package command

import (
	"context"
	"fmt"
	"time"

	"github.com/stockpulse/stockpulse/internal/alerter"
	"github.com/stockpulse/stockpulse/internal/monitor"
	"github.com/stockpulse/stockpulse/internal/types"
)

// Kind is the closed set of commands the core accepts from its
// API-facing collaborator.
type Kind uint8

const (
	KindStartMonitoring Kind = iota
	KindStopMonitoring
	KindAcknowledgeAlert
	KindResolveAlert
	KindGetActiveAlerts
)

// String returns the command name.
func (k Kind) String() string {
	switch k {
	case KindStartMonitoring:
		return "start_monitoring"
	case KindStopMonitoring:
		return "stop_monitoring"
	case KindAcknowledgeAlert:
		return "acknowledge_alert"
	case KindResolveAlert:
		return "resolve_alert"
	case KindGetActiveAlerts:
		return "get_active_alerts"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// Request carries the arguments for one command; only the fields relevant
// to the Kind are read.
type Request struct {
	Kind Kind

	EntityID          string
	Interval          time.Duration
	AutoRestock       bool
	LowStockThreshold float64

	SessionID string

	AlertID string
	Actor   string
	Note    string

	Severity types.Severity
}

// Response is the result of one command.
type Response struct {
	OK        bool          `json:"ok"`
	SessionID string        `json:"session_id,omitempty"`
	Alerts    []types.Alert `json:"alerts,omitempty"`
}

// HandlerFunc executes one command kind.
type HandlerFunc func(ctx context.Context, req Request) (Response, error)

// Registry maps each command kind to its typed handler.
type Registry struct {
	handlers map[Kind]HandlerFunc
}

// NewRegistry builds the handler table over the scheduler and engine.
func NewRegistry(sched *monitor.Scheduler, engine *alerter.Engine) *Registry {
	r := &Registry{handlers: make(map[Kind]HandlerFunc)}

	r.handlers[KindStartMonitoring] = func(_ context.Context, req Request) (Response, error) {
		sessionID, err := sched.Start(req.EntityID, req.Interval, req.AutoRestock, req.LowStockThreshold)
		if err != nil {
			return Response{}, err
		}
		return Response{OK: true, SessionID: sessionID}, nil
	}

	r.handlers[KindStopMonitoring] = func(_ context.Context, req Request) (Response, error) {
		return Response{OK: sched.Stop(req.SessionID), SessionID: req.SessionID}, nil
	}

	r.handlers[KindAcknowledgeAlert] = func(_ context.Context, req Request) (Response, error) {
		return Response{OK: engine.Acknowledge(req.AlertID, req.Actor)}, nil
	}

	r.handlers[KindResolveAlert] = func(_ context.Context, req Request) (Response, error) {
		return Response{OK: engine.Resolve(req.AlertID, req.Actor, req.Note)}, nil
	}

	r.handlers[KindGetActiveAlerts] = func(_ context.Context, req Request) (Response, error) {
		return Response{OK: true, Alerts: engine.Query(req.EntityID, req.Severity)}, nil
	}

	return r
}

// Dispatch executes the command, failing on unregistered kinds.
func (r *Registry) Dispatch(ctx context.Context, req Request) (Response, error) {
	h, ok := r.handlers[req.Kind]
	if !ok {
		return Response{}, fmt.Errorf("command: no handler for %s", req.Kind)
	}
	return h(ctx, req)
}
