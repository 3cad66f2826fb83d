package inventory

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Item is the persisted stock record the monitoring loops read from.
// Writes to this table belong to the inventory CRUD surface, which is
// outside this service.
type Item struct {
	EntityID     string `gorm:"primaryKey;column:entity_id"`
	Name         string `gorm:"column:name"`
	CurrentStock int    `gorm:"column:current_stock"`
	ReorderPoint int    `gorm:"column:reorder_point"`
	MaxStock     int    `gorm:"column:max_stock"`
}

// TableName maps Item onto the shared items table.
func (Item) TableName() string { return "items" }

// GormStore reads stock levels from a gorm-backed database. It implements
// both Reader and Lister.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a stock reader over db and migrates the items table.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Item{}); err != nil {
		return nil, fmt.Errorf("migrating items table: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Get returns the stock position of one entity.
func (s *GormStore) Get(ctx context.Context, entityID string) (ItemLevel, error) {
	var item Item
	err := s.db.WithContext(ctx).Where("entity_id = ?", entityID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ItemLevel{}, ErrNotFound
		}
		return ItemLevel{}, fmt.Errorf("querying item %s: %w", entityID, err)
	}
	return ItemLevel{
		CurrentStock: item.CurrentStock,
		ReorderPoint: item.ReorderPoint,
		MaxStock:     item.MaxStock,
	}, nil
}

// Entities returns up to limit entity IDs for batch scans.
func (s *GormStore) Entities(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&Item{}).Order("entity_id").Limit(limit).Pluck("entity_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	return ids, nil
}
