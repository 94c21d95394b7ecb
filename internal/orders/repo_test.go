package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/leafshop/leafshop-backend/pkg/db"
	"github.com/leafshop/leafshop-backend/pkg/db/dbtest"
	"github.com/leafshop/leafshop-backend/pkg/db/models"
	"github.com/leafshop/leafshop-backend/pkg/enums"
	"github.com/leafshop/leafshop-backend/pkg/types"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func newOrder(owner types.CartOwner, cartID *uuid.UUID) *models.Order {
	id := uuid.New()
	return &models.Order{
		ID:              id,
		OrderRef:        "ORDER#" + id.String(),
		UserID:          owner.UserID,
		SessionID:       owner.SessionPtr(),
		CartID:          cartID,
		CartKey:         owner.Key(),
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusPending,
		PaymentMethod:   enums.PaymentMethodCOD,
		InventoryStatus: enums.InventoryStatusPending,
		ShippingAddress: types.Address{FullName: "Mai Tran", PhoneNumber: "0900", AddressLine1: "1 Le Loi", City: "HCMC"},
		Subtotal:        dec("50"),
		ShippingAmount:  dec("10"),
		DiscountAmount:  decimal.Zero,
		TotalAmount:     dec("60"),
	}
}

func mustCreate(t *testing.T, repo Repository, order *models.Order) *models.Order {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func TestRepositoryCartLookupsAndUniqueness(t *testing.T) {
	conn := dbtest.Open(t, "orders")
	repo := NewRepository(conn)
	ctx := context.Background()
	owner := types.UserOwner(uuid.New())
	cartID := uuid.New()

	order := mustCreate(t, repo, newOrder(owner, &cartID))
	require.NoError(t, repo.CreateLines(ctx, []models.OrderLine{
		{OrderID: order.ID, ProductID: uuid.New(), ProductName: "Fern", Quantity: 5, UnitPrice: dec("10"), LineTotal: dec("50")},
	}))

	found, err := repo.FindByCartID(ctx, cartID)
	require.NoError(t, err)
	require.Equal(t, order.ID, found.ID)

	err = repo.Create(ctx, newOrder(owner, &cartID))
	require.True(t, db.IsUniqueViolation(err, "orders_cart_id_key", "orders.cart_id"), "got %v", err)

	withLines, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, withLines.Lines, 1)
	require.Equal(t, "HCMC", withLines.ShippingAddress.City)

	latest, err := repo.FindLatestByCartKey(ctx, owner.Key(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Nil(t, latest, "pending orders are not idempotent hits")

	require.NoError(t, repo.MarkReserved(ctx, order.ID))
	latest, err = repo.FindLatestByCartKey(ctx, owner.Key(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, order.ID, latest.ID)

	latest, err = repo.FindLatestByCartKey(ctx, owner.Key(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Nil(t, latest)

	require.ErrorIs(t, repo.MarkReserved(ctx, order.ID), ErrOrderStateChanged)
	require.ErrorIs(t, repo.MarkFailed(ctx, order.ID, "late"), ErrOrderStateChanged)
}

func TestRepositoryMarkFailedFreesCart(t *testing.T) {
	conn := dbtest.Open(t, "orders")
	repo := NewRepository(conn)
	ctx := context.Background()
	owner := types.GuestOwner("sess")
	cartID := uuid.New()
	order := mustCreate(t, repo, newOrder(owner, &cartID))

	require.NoError(t, repo.MarkFailed(ctx, order.ID, "stock allocation failed"))

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusFailed, got.Status)
	require.Equal(t, enums.InventoryStatusReleased, got.InventoryStatus)
	require.Nil(t, got.CartID)
	require.Equal(t, "stock allocation failed", *got.FailureReason)

	// the cart identity can back a new order now
	mustCreate(t, repo, newOrder(owner, &cartID))
}

func TestRepositoryApplyDiscountInTx(t *testing.T) {
	conn := dbtest.Open(t, "orders")
	repo := NewRepository(conn)
	ctx := context.Background()
	order := mustCreate(t, repo, newOrder(types.GuestOwner("s"), nil))

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return repo.WithTx(tx).ApplyDiscount(ctx, order.ID, "SAVE5", dec("5"), dec("55"))
	}))
	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, got.TotalAmount.Equal(dec("55")))
	require.True(t, got.DiscountAmount.Equal(dec("5")))
	require.Equal(t, "SAVE5", *got.CouponCode)
}

func TestRepositoryListStalePending(t *testing.T) {
	conn := dbtest.Open(t, "orders")
	repo := NewRepository(conn)
	ctx := context.Background()
	owner := types.GuestOwner("s")

	stale := mustCreate(t, repo, newOrder(owner, nil))
	require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", stale.ID).Update("created_at", time.Now().Add(-time.Hour).UTC()).Error)
	mustCreate(t, repo, newOrder(owner, nil))
	reserved := mustCreate(t, repo, newOrder(owner, nil))
	require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", reserved.ID).Updates(map[string]any{
		"created_at":       time.Now().Add(-time.Hour).UTC(),
		"inventory_status": enums.InventoryStatusReserved,
	}).Error)

	rows, err := repo.ListStalePending(ctx, time.Now().Add(-10*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, stale.ID, rows[0].ID)
}

func TestRepositoryListByUserPages(t *testing.T) {
	conn := dbtest.Open(t, "orders")
	repo := NewRepository(conn)
	ctx := context.Background()
	owner := types.UserOwner(uuid.New())

	base := time.Now().Add(-time.Hour).UTC()
	ids := make([]uuid.UUID, 0, 5)
	for i := 0; i < 5; i++ {
		order := mustCreate(t, repo, newOrder(owner, nil))
		require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
		ids = append(ids, order.ID)
	}
	mustCreate(t, repo, newOrder(types.UserOwner(uuid.New()), nil))

	page, next, err := repo.ListByUser(ctx, *owner.UserID, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, ids[4], page[0].ID)
	require.Equal(t, ids[3], page[1].ID)
	require.NotNil(t, next)

	page, next, err = repo.ListByUser(ctx, *owner.UserID, next, 2)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{ids[2], ids[1]}, []uuid.UUID{page[0].ID, page[1].ID})

	page, next, err = repo.ListByUser(ctx, *owner.UserID, next, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, ids[0], page[0].ID)
	require.Nil(t, next)
}

func TestLedgerRepository(t *testing.T) {
	conn := dbtest.Open(t, "ledger")
	ledger := NewLedgerRepository(conn)
	ctx := context.Background()
	orderID := uuid.New()

	first := &models.InventoryReservation{OrderID: orderID, OrderLineID: uuid.New(), WarehouseID: uuid.New(), InventoryRecordID: uuid.New(), ProductID: uuid.New(), Quantity: 2}
	second := &models.InventoryReservation{OrderID: orderID, OrderLineID: uuid.New(), WarehouseID: uuid.New(), InventoryRecordID: uuid.New(), ProductID: uuid.New(), Quantity: 3}
	require.NoError(t, ledger.Insert(ctx, first))
	require.NoError(t, ledger.Insert(ctx, second))
	require.Equal(t, enums.ReservationStatusActive, first.Status)

	active, err := ledger.ListActiveByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, active, 2)

	require.NoError(t, ledger.MarkReleased(ctx, first.ID, time.Now()))
	active, err = ledger.ListActiveByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, second.ID, active[0].ID)

	var released models.InventoryReservation
	require.NoError(t, conn.First(&released, "id = ?", first.ID).Error)
	require.Equal(t, enums.ReservationStatusReleased, released.Status)
	require.NotNil(t, released.ReleasedAt)
}
