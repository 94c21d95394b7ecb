package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryRecord holds per-warehouse stock counters for a product, or for a
// single variant when VariantID is set. VariantKey mirrors VariantID ("" for
// product-level rows) so the uniqueness constraint also covers product rows.
type InventoryRecord struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	WarehouseID       uuid.UUID  `gorm:"column:warehouse_id;type:uuid;not null;uniqueIndex:inventory_records_bucket_key,priority:1"`
	ProductID         uuid.UUID  `gorm:"column:product_id;type:uuid;not null;uniqueIndex:inventory_records_bucket_key,priority:2"`
	VariantID         *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	VariantKey        string     `gorm:"column:variant_key;not null;uniqueIndex:inventory_records_bucket_key,priority:3"`
	Quantity          int        `gorm:"column:quantity;not null"`
	ReservedQuantity  int        `gorm:"column:reserved_quantity;not null"`
	AvailableQuantity int        `gorm:"column:available_quantity;not null"`
	ReorderPoint      int        `gorm:"column:reorder_point;not null"`
	MaxStock          int        `gorm:"column:max_stock;not null"`
	Location          string     `gorm:"column:location;not null"`
	Version           int64      `gorm:"column:version;not null"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *InventoryRecord) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	r.VariantKey = VariantKeyFor(r.VariantID)
	return nil
}

// VariantKeyFor returns the bucket key used by the uniqueness constraint.
func VariantKeyFor(variantID *uuid.UUID) string {
	if variantID == nil || *variantID == uuid.Nil {
		return ""
	}
	return variantID.String()
}

// CheckInvariants verifies 0 <= reserved <= quantity and available = quantity - reserved.
func (r InventoryRecord) CheckInvariants() error {
	if r.ReservedQuantity < 0 {
		return fmt.Errorf("inventory %s: reserved quantity %d is negative", r.ID, r.ReservedQuantity)
	}
	if r.ReservedQuantity > r.Quantity {
		return fmt.Errorf("inventory %s: reserved quantity %d exceeds on-hand %d", r.ID, r.ReservedQuantity, r.Quantity)
	}
	if r.AvailableQuantity != r.Quantity-r.ReservedQuantity {
		return fmt.Errorf("inventory %s: available %d != quantity %d - reserved %d", r.ID, r.AvailableQuantity, r.Quantity, r.ReservedQuantity)
	}
	return nil
}
