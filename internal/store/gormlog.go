package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/stockpulse/stockpulse/internal/types"
)

// AlertRecord is the persisted row shape for one alert.
type AlertRecord struct {
	AlertID        string `gorm:"primaryKey;column:alert_id"`
	AlertType      string `gorm:"column:alert_type;index"`
	EntityID       string `gorm:"column:entity_id;index"`
	Title          string `gorm:"column:title"`
	Message        string `gorm:"column:message"`
	Severity       string `gorm:"column:severity"`
	Status         string `gorm:"column:status;index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	AcknowledgedBy string     `gorm:"column:acknowledged_by"`
	ResolvedBy     string     `gorm:"column:resolved_by"`
	ResolvedAt     *time.Time `gorm:"column:resolved_at"`
	Metadata       string     `gorm:"column:metadata"`
}

// TableName maps AlertRecord onto the alerts table.
func (AlertRecord) TableName() string { return "alerts" }

// GormLog is an AlertLog backed by a gorm database.
type GormLog struct {
	db *gorm.DB
}

// NewGormLog creates the alert log and migrates its table.
func NewGormLog(db *gorm.DB) (*GormLog, error) {
	if err := db.AutoMigrate(&AlertRecord{}); err != nil {
		return nil, fmt.Errorf("migrating alerts table: %w", err)
	}
	return &GormLog{db: db}, nil
}

// Append inserts a new alert row.
func (l *GormLog) Append(ctx context.Context, a types.Alert) error {
	rec, err := toRecord(a)
	if err != nil {
		return err
	}
	if err := l.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("appending alert %s: %w", a.ID, err)
	}
	return nil
}

// Update overwrites the row for an existing alert.
func (l *GormLog) Update(ctx context.Context, a types.Alert) error {
	rec, err := toRecord(a)
	if err != nil {
		return err
	}
	if err := l.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("updating alert %s: %w", a.ID, err)
	}
	return nil
}

// Recent returns the newest limit rows, for the ops surface.
func (l *GormLog) Recent(ctx context.Context, limit int) ([]AlertRecord, error) {
	var recs []AlertRecord
	err := l.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("listing recent alerts: %w", err)
	}
	return recs, nil
}

func toRecord(a types.Alert) (AlertRecord, error) {
	meta := ""
	if len(a.Metadata) > 0 {
		raw, err := json.Marshal(a.Metadata)
		if err != nil {
			return AlertRecord{}, fmt.Errorf("encoding metadata for %s: %w", a.ID, err)
		}
		meta = string(raw)
	}
	return AlertRecord{
		AlertID:        a.ID,
		AlertType:      string(a.Type),
		EntityID:       a.EntityID,
		Title:          a.Title,
		Message:        a.Message,
		Severity:       string(a.Severity),
		Status:         string(a.Status),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
		AcknowledgedBy: a.AcknowledgedBy,
		ResolvedBy:     a.ResolvedBy,
		ResolvedAt:     a.ResolvedAt,
		Metadata:       meta,
	}, nil
}
