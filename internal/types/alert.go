package types

import "time"

// AlertType identifies the condition an alert was raised for.
type AlertType string

const (
	AlertLowStock        AlertType = "low_stock"
	AlertStockOut        AlertType = "stock_out"
	AlertExcessStock     AlertType = "excess_stock"
	AlertRestockNeeded   AlertType = "restock_needed"
	AlertAnomalyDetected AlertType = "anomaly_detected"
	AlertSupplierIssue   AlertType = "supplier_issue"
	AlertDemandSpike     AlertType = "demand_spike"
	AlertSystemError     AlertType = "system_error"
)

// Valid reports whether t is a known alert type.
func (t AlertType) Valid() bool {
	switch t {
	case AlertLowStock, AlertStockOut, AlertExcessStock, AlertRestockNeeded,
		AlertAnomalyDetected, AlertSupplierIssue, AlertDemandSpike, AlertSystemError:
		return true
	}
	return false
}

// Severity is the urgency level of an alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// AtLeast reports whether s is at least as urgent as min.
func (s Severity) AtLeast(min Severity) bool {
	return s.rank() >= min.rank()
}

func (s Severity) rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return -1
}

// Status is the lifecycle state of an alert. Transitions are monotonic:
// active -> acknowledged, active -> escalated, and any non-terminal state
// -> resolved. Resolved is terminal.
type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusEscalated    Status = "escalated"
	StatusResolved     Status = "resolved"
)

// Alert is a record of a detected inventory condition requiring attention.
type Alert struct {
	ID             string
	Type           AlertType
	EntityID       string
	Title          string
	Message        string
	Severity       Severity
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	AcknowledgedBy string
	ResolvedBy     string
	ResolvedAt     *time.Time
	Metadata       map[string]any
}

// Open reports whether the alert is active in the business sense, which
// includes acknowledged and escalated alerts.
func (a *Alert) Open() bool {
	switch a.Status {
	case StatusActive, StatusAcknowledged, StatusEscalated:
		return true
	}
	return false
}

// Terminal reports whether the alert has reached its terminal state.
func (a *Alert) Terminal() bool {
	return a.Status == StatusResolved
}

// SetMeta writes a metadata key, allocating the bag on first use.
func (a *Alert) SetMeta(key string, value any) {
	if a.Metadata == nil {
		a.Metadata = make(map[string]any)
	}
	a.Metadata[key] = value
}
