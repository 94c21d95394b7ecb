package admin

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/leafshop/leafshop-backend/api/controllers"
	"github.com/leafshop/leafshop-backend/api/responses"
	"github.com/leafshop/leafshop-backend/api/validators"
	"github.com/leafshop/leafshop-backend/internal/warehouses"
	"github.com/leafshop/leafshop-backend/pkg/enums"
	pkgerrors "github.com/leafshop/leafshop-backend/pkg/errors"
	"github.com/leafshop/leafshop-backend/pkg/logger"
)

type createInventoryRequest struct {
	WarehouseID      uuid.UUID  `json:"warehouseId" validate:"required"`
	ProductID        uuid.UUID  `json:"productId" validate:"required"`
	VariantID        *uuid.UUID `json:"variantId,omitempty"`
	Quantity         int        `json:"quantity" validate:"min=0"`
	ReservedQuantity int        `json:"reservedQuantity" validate:"min=0"`
	ReorderPoint     int        `json:"reorderPoint" validate:"min=0"`
	MaxStock         int        `json:"maxStock" validate:"min=0"`
	Location         string     `json:"location" validate:"max=64"`
}

type updateInventoryRequest struct {
	ReorderPoint *int    `json:"reorderPoint,omitempty" validate:"omitempty,min=0"`
	MaxStock     *int    `json:"maxStock,omitempty" validate:"omitempty,min=0"`
	Location     *string `json:"location,omitempty" validate:"omitempty,max=64"`
}

type adjustInventoryRequest struct {
	Delta  int    `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

func inventoryID(r *http.Request) (uuid.UUID, error) {
	return controllers.ParseUUIDParam(chi.URLParam(r, "inventoryId"), "inventoryId")
}

// ListInventory filters by exactly one of warehouseId or productId.
func ListInventory(svc InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		warehouseID, err := validators.ParseQueryUUID(r, "warehouseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseQueryUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListInventory(r.Context(), warehouses.InventoryFilter{WarehouseID: warehouseID, ProductID: productID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInventoryList(rows))
	}
}

func CreateInventory(svc InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		var payload createInventoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.CreateInventory(r.Context(), warehouses.CreateInventoryInput{
			WarehouseID:      payload.WarehouseID,
			ProductID:        payload.ProductID,
			VariantID:        payload.VariantID,
			Quantity:         payload.Quantity,
			ReservedQuantity: payload.ReservedQuantity,
			ReorderPoint:     payload.ReorderPoint,
			MaxStock:         payload.MaxStock,
			Location:         payload.Location,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newInventoryResponse(*record))
	}
}

func GetInventory(svc InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		id, err := inventoryID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := svc.GetInventory(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInventoryResponse(*record))
	}
}

// UpdateInventory patches reorder point, max stock and location. Counters
// change only through adjust or checkout.
func UpdateInventory(svc InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		id, err := inventoryID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateInventoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.UpdateInventory(r.Context(), id, warehouses.UpdateInventoryInput{
			ReorderPoint: payload.ReorderPoint,
			MaxStock:     payload.MaxStock,
			Location:     payload.Location,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInventoryResponse(*record))
	}
}

func DeleteInventory(svc InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		id, err := inventoryID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteInventory(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AdjustInventory records a stock movement with a reason code.
func AdjustInventory(svc InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		id, err := inventoryID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload adjustInventoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reason, err := enums.ParseInventoryAdjustmentReason(strings.ToUpper(strings.TrimSpace(payload.Reason)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid adjustment reason").
				WithDetails(map[string]any{"field": "reason"}))
			return
		}

		record, err := svc.AdjustQuantity(r.Context(), id, payload.Delta, reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInventoryResponse(*record))
	}
}

// LowStock lists buckets in active warehouses at or below their reorder point.
func LowStock(svc InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		rows, err := svc.LowStockAlerts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInventoryList(rows))
	}
}
