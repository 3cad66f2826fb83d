package types

import "time"

// SessionStatus is the run state of a monitoring session.
type SessionStatus string

const (
	SessionRunning SessionStatus = "running"
	SessionStopped SessionStatus = "stopped"
)

// MonitoringSession is a long-lived recurring stock check bound to one
// inventory entity. Owned by the monitoring scheduler.
type MonitoringSession struct {
	ID                string        `json:"session_id"`
	EntityID          string        `json:"entity_id"`
	CheckInterval     time.Duration `json:"check_interval"`
	AutoRestock       bool          `json:"auto_restock"`
	LowStockThreshold float64       `json:"low_stock_threshold"`
	Status            SessionStatus `json:"status"`
	StartedAt         time.Time     `json:"started_at"`
}
