package admin

import (
	"time"

	"github.com/google/uuid"

	"github.com/leafshop/leafshop-backend/pkg/db/models"
)

type warehouseResponse struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newWarehouseResponse(w models.Warehouse) warehouseResponse {
	return warehouseResponse{
		ID:        w.ID,
		Code:      w.Code,
		Name:      w.Name,
		Active:    w.Active,
		Priority:  w.Priority,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

type inventoryResponse struct {
	ID                uuid.UUID  `json:"id"`
	WarehouseID       uuid.UUID  `json:"warehouseId"`
	ProductID         uuid.UUID  `json:"productId"`
	VariantID         *uuid.UUID `json:"variantId,omitempty"`
	Quantity          int        `json:"quantity"`
	ReservedQuantity  int        `json:"reservedQuantity"`
	AvailableQuantity int        `json:"availableQuantity"`
	ReorderPoint      int        `json:"reorderPoint"`
	MaxStock          int        `json:"maxStock"`
	Location          string     `json:"location,omitempty"`
	Version           int64      `json:"version"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func newInventoryResponse(r models.InventoryRecord) inventoryResponse {
	return inventoryResponse{
		ID:                r.ID,
		WarehouseID:       r.WarehouseID,
		ProductID:         r.ProductID,
		VariantID:         r.VariantID,
		Quantity:          r.Quantity,
		ReservedQuantity:  r.ReservedQuantity,
		AvailableQuantity: r.AvailableQuantity,
		ReorderPoint:      r.ReorderPoint,
		MaxStock:          r.MaxStock,
		Location:          r.Location,
		Version:           r.Version,
		UpdatedAt:         r.UpdatedAt,
	}
}

func newInventoryList(rows []models.InventoryRecord) []inventoryResponse {
	out := make([]inventoryResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, newInventoryResponse(row))
	}
	return out
}
