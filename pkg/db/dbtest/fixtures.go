package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/leafshop/leafshop-backend/pkg/db/models"
)

func MustProduct(t testing.TB, conn *gorm.DB, name string, price string) *models.Product {
	t.Helper()
	product := &models.Product{
		SKU:    "SKU-" + uuid.NewString()[:8],
		Name:   name,
		Price:  decimal.RequireFromString(price),
		Active: true,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func MustVariant(t testing.TB, conn *gorm.DB, productID uuid.UUID, name string, price *string) *models.ProductVariant {
	t.Helper()
	variant := &models.ProductVariant{
		ProductID: productID,
		SKU:       "VAR-" + uuid.NewString()[:8],
		Name:      name,
	}
	if price != nil {
		override := decimal.RequireFromString(*price)
		variant.PriceOverride = &override
	}
	if err := conn.Create(variant).Error; err != nil {
		t.Fatalf("create variant: %v", err)
	}
	return variant
}

func MustWarehouse(t testing.TB, conn *gorm.DB, code string, priority int) *models.Warehouse {
	t.Helper()
	warehouse := &models.Warehouse{
		Code:     code,
		Name:     "Warehouse " + code,
		Active:   true,
		Priority: priority,
	}
	if err := conn.Create(warehouse).Error; err != nil {
		t.Fatalf("create warehouse: %v", err)
	}
	return warehouse
}

// MustStock creates an inventory bucket with nothing reserved.
func MustStock(t testing.TB, conn *gorm.DB, warehouseID, productID uuid.UUID, variantID *uuid.UUID, quantity int) *models.InventoryRecord {
	t.Helper()
	record := &models.InventoryRecord{
		WarehouseID:       warehouseID,
		ProductID:         productID,
		VariantID:         variantID,
		Quantity:          quantity,
		AvailableQuantity: quantity,
		ReorderPoint:      2,
		MaxStock:          quantity * 2,
		Location:          "A-1",
	}
	if err := conn.Create(record).Error; err != nil {
		t.Fatalf("create inventory: %v", err)
	}
	return record
}

// ReloadStock re-reads a bucket by id.
func ReloadStock(t testing.TB, conn *gorm.DB, id uuid.UUID) models.InventoryRecord {
	t.Helper()
	var record models.InventoryRecord
	if err := conn.First(&record, "id = ?", id).Error; err != nil {
		t.Fatalf("reload inventory: %v", err)
	}
	return record
}
