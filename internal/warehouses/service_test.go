package warehouses

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/leafshop/leafshop-backend/pkg/db/dbtest"
	"github.com/leafshop/leafshop-backend/pkg/enums"
	pkgerrors "github.com/leafshop/leafshop-backend/pkg/errors"
)

func newTestService(t *testing.T) (*Service, *Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t, "warehouse_svc"))
	svc, err := NewService(repo, nil)
	require.NoError(t, err)
	return svc, repo
}

func TestCreateInventoryDerivesAvailableAndRejectsDuplicates(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	warehouse, err := svc.CreateWarehouse(ctx, CreateWarehouseInput{Code: "hcm", Name: "Ho Chi Minh", Active: true})
	require.NoError(t, err)
	require.Equal(t, "HCM", warehouse.Code)

	productID := uuid.New()
	record, err := svc.CreateInventory(ctx, CreateInventoryInput{
		WarehouseID:      warehouse.ID,
		ProductID:        productID,
		Quantity:         12,
		ReservedQuantity: 2,
		ReorderPoint:     3,
		MaxStock:         40,
	})
	require.NoError(t, err)
	require.Equal(t, 10, record.AvailableQuantity)

	_, err = svc.CreateInventory(ctx, CreateInventoryInput{WarehouseID: warehouse.ID, ProductID: productID, Quantity: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	_, err = svc.CreateInventory(ctx, CreateInventoryInput{WarehouseID: warehouse.ID, ProductID: uuid.New(), Quantity: 1, ReservedQuantity: 5})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = svc.CreateInventory(ctx, CreateInventoryInput{WarehouseID: uuid.New(), ProductID: uuid.New(), Quantity: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	listed, err := svc.ListInventory(ctx, InventoryFilter{ProductID: &productID})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = svc.ListInventory(ctx, InventoryFilter{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	stored, err := repo.GetInventory(ctx, record.ID)
	require.NoError(t, err)
	require.NoError(t, stored.CheckInvariants())
}

func TestAdjustQuantityReasons(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	warehouse, err := svc.CreateWarehouse(ctx, CreateWarehouseInput{Code: "HN", Name: "Ha Noi", Active: true})
	require.NoError(t, err)
	record, err := svc.CreateInventory(ctx, CreateInventoryInput{
		WarehouseID:      warehouse.ID,
		ProductID:        uuid.New(),
		Quantity:         10,
		ReservedQuantity: 4,
	})
	require.NoError(t, err)

	got, err := svc.AdjustQuantity(ctx, record.ID, 5, enums.AdjustmentRestock)
	require.NoError(t, err)
	require.Equal(t, 15, got.Quantity)
	require.Equal(t, 11, got.AvailableQuantity)

	got, err = svc.AdjustQuantity(ctx, record.ID, 3, enums.AdjustmentFulfillment)
	require.NoError(t, err)
	require.Equal(t, 12, got.Quantity)
	require.Equal(t, 1, got.ReservedQuantity)
	require.Equal(t, 11, got.AvailableQuantity)

	got, err = svc.AdjustQuantity(ctx, record.ID, 2, enums.AdjustmentDamage)
	require.NoError(t, err)
	require.Equal(t, 10, got.Quantity)
	require.Equal(t, 9, got.AvailableQuantity)

	got, err = svc.AdjustQuantity(ctx, record.ID, -4, enums.AdjustmentCorrection)
	require.NoError(t, err)
	require.Equal(t, 6, got.Quantity)
	require.Equal(t, 5, got.AvailableQuantity)

	_, err = svc.AdjustQuantity(ctx, record.ID, 2, enums.AdjustmentFulfillment)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = svc.AdjustQuantity(ctx, record.ID, 50, enums.AdjustmentDamage)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = svc.AdjustQuantity(ctx, record.ID, -1, enums.AdjustmentRestock)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.AdjustQuantity(ctx, record.ID, 1, enums.InventoryAdjustmentReason("LOST"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	final, err := svc.GetInventory(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, 6, final.Quantity)
	require.Equal(t, 1, final.ReservedQuantity)
	require.Equal(t, int64(4), final.Version)
}

func TestUpdateDeleteAndLowStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	active, err := svc.CreateWarehouse(ctx, CreateWarehouseInput{Code: "A", Name: "Active", Active: true})
	require.NoError(t, err)
	idle, err := svc.CreateWarehouse(ctx, CreateWarehouseInput{Code: "B", Name: "Idle"})
	require.NoError(t, err)

	low, err := svc.CreateInventory(ctx, CreateInventoryInput{WarehouseID: active.ID, ProductID: uuid.New(), Quantity: 2, ReorderPoint: 5})
	require.NoError(t, err)
	_, err = svc.CreateInventory(ctx, CreateInventoryInput{WarehouseID: idle.ID, ProductID: uuid.New(), Quantity: 1, ReorderPoint: 5})
	require.NoError(t, err)

	alerts, err := svc.LowStockAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, low.ID, alerts[0].ID)

	reorder := 1
	location := " B-2 "
	updated, err := svc.UpdateInventory(ctx, low.ID, UpdateInventoryInput{ReorderPoint: &reorder, Location: &location})
	require.NoError(t, err)
	require.Equal(t, 1, updated.ReorderPoint)
	require.Equal(t, "B-2", updated.Location)

	alerts, err = svc.LowStockAlerts(ctx)
	require.NoError(t, err)
	require.Empty(t, alerts)

	reserved, err := svc.CreateInventory(ctx, CreateInventoryInput{WarehouseID: active.ID, ProductID: uuid.New(), Quantity: 3, ReservedQuantity: 1})
	require.NoError(t, err)
	err = svc.DeleteInventory(ctx, reserved.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	require.NoError(t, svc.DeleteInventory(ctx, low.ID))
	_, err = svc.GetInventory(ctx, low.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
