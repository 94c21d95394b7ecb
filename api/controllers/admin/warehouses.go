package admin

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/leafshop/leafshop-backend/api/responses"
	"github.com/leafshop/leafshop-backend/api/validators"
	"github.com/leafshop/leafshop-backend/internal/warehouses"
	"github.com/leafshop/leafshop-backend/pkg/db/models"
	"github.com/leafshop/leafshop-backend/pkg/enums"
	pkgerrors "github.com/leafshop/leafshop-backend/pkg/errors"
	"github.com/leafshop/leafshop-backend/pkg/logger"
)

// InventoryService is the admin surface implemented by warehouses.Service.
type InventoryService interface {
	CreateWarehouse(ctx context.Context, input warehouses.CreateWarehouseInput) (*models.Warehouse, error)
	ListWarehouses(ctx context.Context) ([]models.Warehouse, error)
	CreateInventory(ctx context.Context, input warehouses.CreateInventoryInput) (*models.InventoryRecord, error)
	GetInventory(ctx context.Context, id uuid.UUID) (*models.InventoryRecord, error)
	ListInventory(ctx context.Context, filter warehouses.InventoryFilter) ([]models.InventoryRecord, error)
	UpdateInventory(ctx context.Context, id uuid.UUID, input warehouses.UpdateInventoryInput) (*models.InventoryRecord, error)
	DeleteInventory(ctx context.Context, id uuid.UUID) error
	AdjustQuantity(ctx context.Context, id uuid.UUID, delta int, reason enums.InventoryAdjustmentReason) (*models.InventoryRecord, error)
	LowStockAlerts(ctx context.Context) ([]models.InventoryRecord, error)
}

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
}

type createWarehouseRequest struct {
	Code     string `json:"code" validate:"required,max=32,code"`
	Name     string `json:"name" validate:"required,max=128"`
	Priority int    `json:"priority" validate:"min=0"`
	Active   *bool  `json:"active,omitempty"`
}

func ListWarehouses(svc InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		rows, err := svc.ListWarehouses(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]warehouseResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, newWarehouseResponse(row))
		}
		responses.WriteSuccess(w, out)
	}
}

// CreateWarehouse registers a stock location. New warehouses are active unless stated.
func CreateWarehouse(svc InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		var payload createWarehouseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		active := true
		if payload.Active != nil {
			active = *payload.Active
		}

		warehouse, err := svc.CreateWarehouse(r.Context(), warehouses.CreateWarehouseInput{
			Code:     payload.Code,
			Name:     payload.Name,
			Priority: payload.Priority,
			Active:   active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newWarehouseResponse(*warehouse))
	}
}
