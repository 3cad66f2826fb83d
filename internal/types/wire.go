package types

import (
	"encoding/json"
	"time"
)

// Envelope is the JSON message published to live subscribers. Enum fields
// serialize as their lowercase string values and timestamps as RFC 3339;
// this is the single place internal alerts cross the wire boundary.
type Envelope struct {
	Type      string    `json:"type"`
	Timestamp string    `json:"timestamp"`
	Data      WireAlert `json:"data"`
}

// WireAlert is the serialized form of an Alert.
type WireAlert struct {
	AlertID        string         `json:"alert_id"`
	AlertType      string         `json:"alert_type"`
	EntityID       string         `json:"entity_id,omitempty"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Severity       string         `json:"severity"`
	Status         string         `json:"status"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
	AcknowledgedBy string         `json:"acknowledged_by,omitempty"`
	ResolvedBy     string         `json:"resolved_by,omitempty"`
	ResolvedAt     string         `json:"resolved_at,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ToWire converts an Alert into its wire representation.
func (a *Alert) ToWire() WireAlert {
	w := WireAlert{
		AlertID:        a.ID,
		AlertType:      string(a.Type),
		EntityID:       a.EntityID,
		Title:          a.Title,
		Message:        a.Message,
		Severity:       string(a.Severity),
		Status:         string(a.Status),
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      a.UpdatedAt.UTC().Format(time.RFC3339),
		AcknowledgedBy: a.AcknowledgedBy,
		ResolvedBy:     a.ResolvedBy,
		Metadata:       a.Metadata,
	}
	if a.ResolvedAt != nil {
		w.ResolvedAt = a.ResolvedAt.UTC().Format(time.RFC3339)
	}
	return w
}

// EncodeEnvelope serializes an alert into the broadcast envelope.
func EncodeEnvelope(a Alert, now time.Time) ([]byte, error) {
	env := Envelope{
		Type:      "alert",
		Timestamp: now.UTC().Format(time.RFC3339),
		Data:      a.ToWire(),
	}
	return json.Marshal(env)
}
