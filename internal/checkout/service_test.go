package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/leafshop/leafshop-backend/internal/cart"
	"github.com/leafshop/leafshop-backend/internal/catalog"
	"github.com/leafshop/leafshop-backend/internal/checkout/helpers"
	"github.com/leafshop/leafshop-backend/internal/checkout/reservation"
	"github.com/leafshop/leafshop-backend/internal/coupons"
	"github.com/leafshop/leafshop-backend/internal/orders"
	"github.com/leafshop/leafshop-backend/internal/warehouses"
	"github.com/leafshop/leafshop-backend/pkg/config"
	"github.com/leafshop/leafshop-backend/pkg/db"
	"github.com/leafshop/leafshop-backend/pkg/db/dbtest"
	"github.com/leafshop/leafshop-backend/pkg/db/models"
	"github.com/leafshop/leafshop-backend/pkg/enums"
	pkgerrors "github.com/leafshop/leafshop-backend/pkg/errors"
	"github.com/leafshop/leafshop-backend/pkg/logger"
	"github.com/leafshop/leafshop-backend/pkg/outbox"
	"github.com/leafshop/leafshop-backend/pkg/redis"
	"github.com/leafshop/leafshop-backend/pkg/types"
)

type fixture struct {
	t        *testing.T
	ctx      context.Context
	conn     *gorm.DB
	cartRepo *cart.Repository
	carts    cart.Service
	orders   orders.Repository
	ledger   orders.LedgerRepository
	locker   *memLocker
	metrics  *countingRecorder
	deps     Deps
	svc      Service
	lineSeq  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t, "checkout")
	client := db.NewFromConn(conn)
	logg := logger.Nop()

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn))
	require.NoError(t, err)
	couponSvc, err := coupons.NewService(coupons.NewRepository(conn))
	require.NoError(t, err)
	cartRepo := cart.NewRepository(conn)
	cartSvc, err := cart.NewService(cartRepo, client, catalogSvc, couponSvc, dec("10"), logg)
	require.NoError(t, err)
	stock := warehouses.NewRepository(conn)
	allocator, err := reservation.NewAllocator(stock, reservation.Options{MaxAttempts: 1000})
	require.NoError(t, err)

	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		conn:     conn,
		cartRepo: cartRepo,
		carts:    cartSvc,
		orders:   orders.NewRepository(conn),
		ledger:   orders.NewLedgerRepository(conn),
		locker:   newMemLocker(),
		metrics:  &countingRecorder{},
	}
	f.deps = Deps{
		Tx:         client,
		Locker:     f.locker,
		Carts:      cartRepo,
		Catalog:    catalogSvc,
		Warehouses: stock,
		Allocator:  allocator,
		Orders:     f.orders,
		Ledger:     f.ledger,
		Coupons:    couponSvc,
		Outbox:     outbox.NewService(outbox.NewRepository(conn), logg),
		Metrics:    f.metrics,
		Logger:     logg,
		Config: config.CheckoutConfig{
			ShippingFlatFee:   dec("10"),
			LockTTL:           time.Minute,
			IdempotencyWindow: time.Hour,
		},
	}
	f.svc = f.build(nil)
	return f
}

func (f *fixture) build(mutate func(*Deps)) Service {
	f.t.Helper()
	deps := f.deps
	if mutate != nil {
		mutate(&deps)
	}
	svc, err := NewService(deps)
	require.NoError(f.t, err)
	return svc
}

// add puts a line in the cart and pins its position so lines reserve in the
// order they were added.
func (f *fixture) add(owner types.CartOwner, productID uuid.UUID, variantID *uuid.UUID, quantity int) {
	f.t.Helper()
	_, err := f.carts.AddItem(f.ctx, owner, cart.AddItemInput{ProductID: productID, VariantID: variantID, Quantity: quantity})
	require.NoError(f.t, err)
	f.lineSeq++
	createdAt := time.Date(2000, 1, 1, 0, 0, f.lineSeq, 0, time.UTC)
	require.NoError(f.t, f.conn.Model(&models.CartLine{}).
		Where("cart_key = ? AND created_at > ?", owner.Key(), time.Date(2000, 1, 2, 0, 0, 0, 0, time.UTC)).
		Update("created_at", createdAt).Error)
}

func (f *fixture) stock(id uuid.UUID) models.InventoryRecord {
	return dbtest.ReloadStock(f.t, f.conn, id)
}

func (f *fixture) setStock(id uuid.UUID, quantity, reserved int) {
	f.t.Helper()
	require.NoError(f.t, f.conn.Model(&models.InventoryRecord{}).Where("id = ?", id).Updates(map[string]any{
		"quantity":           quantity,
		"reserved_quantity":  reserved,
		"available_quantity": quantity - reserved,
		"version":            gorm.Expr("version + 1"),
	}).Error)
}

func (f *fixture) cartLines(owner types.CartOwner) []models.CartLine {
	f.t.Helper()
	lines, err := f.cartRepo.ListLines(f.ctx, owner.Key())
	require.NoError(f.t, err)
	return lines
}

func (f *fixture) ordersOf(owner types.CartOwner) []models.Order {
	f.t.Helper()
	var rows []models.Order
	require.NoError(f.t, f.conn.Where("cart_key = ?", owner.Key()).Order("created_at ASC").Find(&rows).Error)
	return rows
}

func (f *fixture) events(orderID uuid.UUID) []enums.OutboxEventType {
	f.t.Helper()
	var rows []models.OutboxEvent
	require.NoError(f.t, f.conn.Where("aggregate_id = ?", orderID).Order("created_at ASC").Find(&rows).Error)
	got := make([]enums.OutboxEventType, len(rows))
	for i, row := range rows {
		got[i] = row.EventType
	}
	return got
}

func (f *fixture) activeLedgerUnits(orderID uuid.UUID) int {
	f.t.Helper()
	rows, err := f.ledger.ListActiveByOrder(f.ctx, orderID)
	require.NoError(f.t, err)
	units := 0
	for _, row := range rows {
		units += row.Quantity
	}
	return units
}

func request(owner types.CartOwner) Request {
	return Request{
		Owner: owner,
		ShippingAddress: &types.Address{
			FullName:     "Linh Pham",
			PhoneNumber:  "0901234567",
			AddressLine1: "12 Nguyen Hue",
			City:         "Ho Chi Minh City",
		},
	}
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, pkgerrors.CodeOf(err), "error: %v", err)
}

func requireCounters(t *testing.T, record models.InventoryRecord, quantity, reserved, available int) {
	t.Helper()
	require.Equal(t, quantity, record.Quantity, "quantity")
	require.Equal(t, reserved, record.ReservedQuantity, "reserved")
	require.Equal(t, available, record.AvailableQuantity, "available")
	require.NoError(t, record.CheckInvariants())
}

func TestCheckoutSingleWarehouse(t *testing.T) {
	f := newFixture(t)
	owner := types.UserOwner(uuid.New())
	product := dbtest.MustProduct(t, f.conn, "Monstera", "10")
	warehouse := dbtest.MustWarehouse(t, f.conn, "HCM", 1)
	record := dbtest.MustStock(t, f.conn, warehouse.ID, product.ID, nil, 10)
	f.add(owner, product.ID, nil, 5)

	summary, err := f.svc.Checkout(f.ctx, request(owner))
	require.NoError(t, err)
	require.True(t, summary.Subtotal.Equal(dec("50")))
	require.True(t, summary.ShippingAmount.Equal(dec("10")))
	require.True(t, summary.TotalAmount.Equal(dec("60")))
	require.Equal(t, enums.OrderStatusPending, summary.Status)
	require.Equal(t, enums.InventoryStatusReserved, summary.InventoryStatus)
	require.Equal(t, helpers.OrderRef(owner.UserID, summary.OrderID), summary.OrderRef)

	requireCounters(t, f.stock(record.ID), 10, 5, 5)
	require.Empty(t, f.cartLines(owner))
	meta, err := f.cartRepo.FindMeta(f.ctx, owner.Key())
	require.NoError(t, err)
	require.Nil(t, meta)

	order, err := f.orders.FindByID(f.ctx, summary.OrderID)
	require.NoError(t, err)
	require.Len(t, order.Lines, 1)
	require.Equal(t, "Monstera", order.Lines[0].ProductName)
	require.Equal(t, enums.PaymentMethodCOD, order.PaymentMethod)
	require.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	require.Equal(t, 5, f.activeLedgerUnits(summary.OrderID))
	require.Equal(t, []enums.OutboxEventType{enums.EventOrderCreated}, f.events(summary.OrderID))
	require.Equal(t, []string{outcomeSuccess}, f.metrics.outcomeList())
}

func TestCheckoutInsufficientStockLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t)
	owner := types.GuestOwner("guest-short")
	product := dbtest.MustProduct(t, f.conn, "Fern", "10")
	warehouse := dbtest.MustWarehouse(t, f.conn, "HCM", 1)
	record := dbtest.MustStock(t, f.conn, warehouse.ID, product.ID, nil, 3)
	f.add(owner, product.ID, nil, 5)

	_, err := f.svc.Checkout(f.ctx, request(owner))
	requireCode(t, err, pkgerrors.CodeInsufficientStock)
	require.Equal(t, map[string]any{
		"productId": product.ID,
		"required":  5,
		"available": 3,
	}, pkgerrors.As(err).Details())

	after := f.stock(record.ID)
	requireCounters(t, after, 3, 0, 3)
	require.Equal(t, record.Version, after.Version)
	require.Len(t, f.cartLines(owner), 1)
	require.Empty(t, f.ordersOf(owner))
}

func TestCheckoutPreCheckIsAtomicAcrossLines(t *testing.T) {
	f := newFixture(t)
	owner := types.GuestOwner("guest-atomic")
	plenty := dbtest.MustProduct(t, f.conn, "Pothos", "5")
	scarce := dbtest.MustProduct(t, f.conn, "Calathea", "20")
	warehouse := dbtest.MustWarehouse(t, f.conn, "HCM", 1)
	plentyStock := dbtest.MustStock(t, f.conn, warehouse.ID, plenty.ID, nil, 10)
	dbtest.MustStock(t, f.conn, warehouse.ID, scarce.ID, nil, 1)
	f.add(owner, plenty.ID, nil, 2)
	f.add(owner, scarce.ID, nil, 3)

	_, err := f.svc.Checkout(f.ctx, request(owner))
	requireCode(t, err, pkgerrors.CodeInsufficientStock)

	after := f.stock(plentyStock.ID)
	requireCounters(t, after, 10, 0, 10)
	require.Equal(t, plentyStock.Version, after.Version)
	require.Empty(t, f.ordersOf(owner))
	var lineCount int64
	require.NoError(t, f.conn.Model(&models.OrderLine{}).Count(&lineCount).Error)
	require.Zero(t, lineCount)
	require.Len(t, f.cartLines(owner), 2)
}

func TestCheckoutPreCheckCountsSharedProductStockOnce(t *testing.T) {
	f := newFixture(t)
	owner := types.GuestOwner("guest-shared")
	product := dbtest.MustProduct(t, f.conn, "Snake Plant", "12")
	variant := dbtest.MustVariant(t, f.conn, product.ID, "Large", nil)
	warehouse := dbtest.MustWarehouse(t, f.conn, "HCM", 1)
	shared := dbtest.MustStock(t, f.conn, warehouse.ID, product.ID, nil, 4)
	f.add(owner, product.ID, &variant.ID, 3)
	f.add(owner, product.ID, nil, 3)

	_, err := f.svc.Checkout(f.ctx, request(owner))
	requireCode(t, err, pkgerrors.CodeInsufficientStock)
	require.Equal(t, map[string]any{
		"productId": product.ID,
		"required":  3,
		"available": 1,
	}, pkgerrors.As(err).Details())

	after := f.stock(shared.ID)
	requireCounters(t, after, 4, 0, 4)
	require.Equal(t, shared.Version, after.Version)
	require.Empty(t, f.ordersOf(owner))
	require.Len(t, f.cartLines(owner), 2)
	require.Equal(t, []string{string(pkgerrors.CodeInsufficientStock)}, f.metrics.outcomeList())
}

func TestCheckoutAppliesCoupon(t *testing.T) {
	f := newFixture(t)
	owner := types.UserOwner(uuid.New())
	product := dbtest.MustProduct(t, f.conn, "Bonsai", "50")
	warehouse := dbtest.MustWarehouse(t, f.conn, "HCM", 1)
	dbtest.MustStock(t, f.conn, warehouse.ID, product.ID, nil, 10)
	coupon := &models.Coupon{
		Code:          "SAVE10",
		Description:   "10% off",
		DiscountType:  enums.DiscountPercentage,
		DiscountValue: dec("10"),
		Active:        true,
	}
	require.NoError(t, f.conn.Create(coupon).Error)
	f.add(owner, product.ID, nil, 2)

	req := request(owner)
	code := " save10 "
	req.CouponCode = &code
	summary, err := f.svc.Checkout(f.ctx, req)
	require.NoError(t, err)
	require.True(t, summary.Subtotal.Equal(dec("100")))
	require.True(t, summary.DiscountAmount.Equal(dec("10")))
	require.True(t, summary.TotalAmount.Equal(dec("100")))

	order, err := f.orders.FindByID(f.ctx, summary.OrderID)
	require.NoError(t, err)
	require.Equal(t, "SAVE10", *order.CouponCode)
	require.True(t, order.TotalAmount.Equal(dec("100")))

	var reloaded models.Coupon
	require.NoError(t, f.conn.First(&reloaded, "id = ?", coupon.ID).Error)
	require.Equal(t, 1, reloaded.UsedCount)
	var usages int64
	require.NoError(t, f.conn.Model(&models.CouponUsage{}).Where("order_id = ?", summary.OrderID).Count(&usages).Error)
	require.EqualValues(t, 1, usages)
}

func TestCheckoutSwallowsRejectedCoupon(t *testing.T) {
	f := newFixture(t)
	owner := types.UserOwner(uuid.New())
	product := dbtest.MustProduct(t, f.conn, "Bonsai", "50")
	warehouse := dbtest.MustWarehouse(t, f.conn, "HCM", 1)
	dbtest.MustStock(t, f.conn, warehouse.ID, product.ID, nil, 10)
	expired := time.Now().Add(-time.Hour)
	coupon := &models.Coupon{
		Code:          "OLD20",
		Description:   "expired",
		DiscountType:  enums.DiscountFixedAmount,
		DiscountValue: dec("20"),
		ValidUntil:    &expired,
		Active:        true,
	}
	require.NoError(t, f.conn.Create(coupon).Error)
	f.add(owner, product.ID, nil, 2)

	req := request(owner)
	code := "OLD20"
	req.CouponCode = &code
	summary, err := f.svc.Checkout(f.ctx, req)
	require.NoError(t, err)
	require.True(t, summary.DiscountAmount.IsZero())
	require.True(t, summary.TotalAmount.Equal(dec("110")))

	order, err := f.orders.FindByID(f.ctx, summary.OrderID)
	require.NoError(t, err)
	require.Nil(t, order.CouponCode)
	require.True(t, order.DiscountAmount.IsZero())
	var usages int64
	require.NoError(t, f.conn.Model(&models.CouponUsage{}).Count(&usages).Error)
	require.Zero(t, usages)
}

func TestCheckoutSplitsAcrossWarehousesInListingOrder(t *testing.T) {
	f := newFixture(t)
	owner := types.GuestOwner("guest-split")
	product := dbtest.MustProduct(t, f.conn, "Cactus", "8")
	first := dbtest.MustWarehouse(t, f.conn, "W1", 1)
	second := dbtest.MustWarehouse(t, f.conn, "W2", 2)
	firstStock := dbtest.MustStock(t, f.conn, first.ID, product.ID, nil, 4)
	secondStock := dbtest.MustStock(t, f.conn, second.ID, product.ID, nil, 5)
	f.setStock(firstStock.ID, 4, 2)
	f.setStock(secondStock.ID, 5, 2)
	f.add(owner, product.ID, nil, 5)

	summary, err := f.svc.Checkout(f.ctx, request(owner))
	require.NoError(t, err)

	requireCounters(t, f.stock(firstStock.ID), 4, 4, 0)
	requireCounters(t, f.stock(secondStock.ID), 5, 5, 0)

	rows, err := f.ledger.ListActiveByOrder(f.ctx, summary.OrderID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, first.ID, rows[0].WarehouseID)
	require.Equal(t, 2, rows[0].Quantity)
	require.Equal(t, second.ID, rows[1].WarehouseID)
	require.Equal(t, 3, rows[1].Quantity)
}

func TestCheckoutPrefersVariantInventory(t *testing.T) {
	f := newFixture(t)
	owner := types.GuestOwner("guest-variant")
	product := dbtest.MustProduct(t, f.conn, "Orchid", "30")
	variant := dbtest.MustVariant(t, f.conn, product.ID, "White", nil)
	warehouse := dbtest.MustWarehouse(t, f.conn, "HCM", 1)
	variantStock := dbtest.MustStock(t, f.conn, warehouse.ID, product.ID, &variant.ID, 5)
	productStock := dbtest.MustStock(t, f.conn, warehouse.ID, product.ID, nil, 5)
	f.add(owner, product.ID, &variant.ID, 3)

	_, err := f.svc.Checkout(f.ctx, request(owner))
	require.NoError(t, err)

	requireCounters(t, f.stock(variantStock.ID), 5, 3, 2)
	requireCounters(t, f.stock(productStock.ID), 5, 0, 5)
}

func TestCheckoutIsIdempotentPerCart(t *testing.T) {
	f := newFixture(t)
	owner := types.UserOwner(uuid.New())
	product := dbtest.MustProduct(t, f.conn, "Monstera", "10")
	warehouse := dbtest.MustWarehouse(t, f.conn, "HCM", 1)
	record := dbtest.MustStock(t, f.conn, warehouse.ID, product.ID, nil, 10)
	f.add(owner, product.ID, nil, 5)

	first, err := f.svc.Checkout(f.ctx, request(owner))
	require.NoError(t, err)
	second, err := f.svc.Checkout(f.ctx, request(owner))
	require.NoError(t, err)

	require.Equal(t, first.OrderID, second.OrderID)
	requireCounters(t, f.stock(record.ID), 10, 5, 5)
	require.Len(t, f.ordersOf(owner), 1)
	require.Len(t, f.events(first.OrderID), 1)
}

func TestCheckoutKeepsOrphanLinesWhenMatchedByOwnerOnly(t *testing.T) {
	f := newFixture(t)
	owner := types.UserOwner(uuid.New())
	product := dbtest.MustProduct(t, f.conn, "Monstera", "10")
	warehouse := dbtest.MustWarehouse(t, f.conn, "HCM", 1)
	dbtest.MustStock(t, f.conn, warehouse.ID, product.ID, nil, 10)
	f.add(owner, product.ID, nil, 2)

	first, err := f.svc.Checkout(f.ctx, request(owner))
	require.NoError(t, err)

	orphan := models.CartLine{
		CartKey:     owner.Key(),
		ProductID:   product.ID,
		ProductName: "Monstera",
		Quantity:    1,
		UnitPrice:   dec("10"),
		LineTotal:   dec("10"),
	}
	require.NoError(t, f.conn.Create(&orphan).Error)

	second, err := f.svc.Checkout(f.ctx, request(owner))
	require.NoError(t, err)
	require.Equal(t, first.OrderID, second.OrderID)
	lines := f.cartLines(owner)
	require.Len(t, lines, 1)
	require.Equal(t, orphan.ID, lines[0].ID)
}

type failingTeardown struct {
	cart.CartRepository
}

func (failingTeardown) DeleteLines(context.Context, string) error {
	return errors.New("connection reset")
}

func TestCheckoutRetriesTeardownOnDuplicateCall(t *testing.T) {
	f := newFixture(t)
	owner := types.GuestOwner("guest-teardown")
	product := dbtest.MustProduct(t, f.conn, "Monstera", "10")
	warehouse := dbtest.MustWarehouse(t, f.conn, "HCM", 1)
	record := dbtest.MustStock(t, f.conn, warehouse.ID, product.ID, nil, 10)
	f.add(owner, product.ID, nil, 4)

	broken := f.build(func(d *Deps) { d.Carts = failingTeardown{CartRepository: f.cartRepo} })
	first, err := broken.Checkout(f.ctx, request(owner))
	require.NoError(t, err)
	require.Len(t, f.cartLines(owner), 1)

	second, err := f.svc.Checkout(f.ctx, request(owner))
	require.NoError(t, err)
	require.Equal(t, first.OrderID, second.OrderID)
	require.Empty(t, f.cartLines(owner))
	requireCounters(t, f.stock(record.ID), 10, 4, 6)
}

// hookedAllocator lets tests interfere with the reservation pass.
type hookedAllocator struct {
	StockAllocator
	beforeReserve func(productID uuid.UUID)
	failProduct   uuid.UUID
	failErr       error
	releaseErr    error
}

func (a *hookedAllocator) Reserve(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, quantity int, warehouseIDs []uuid.UUID) (reservation.Result, error) {
	if a.beforeReserve != nil {
		a.beforeReserve(productID)
	}
	if a.failErr != nil && productID == a.failProduct {
		return reservation.Result{Remaining: quantity}, a.failErr
	}
	return a.StockAllocator.Reserve(ctx, productID, variantID, quantity, warehouseIDs)
}

func (a *hookedAllocator) Release(ctx context.Context, allocation reservation.Allocation) error {
	if a.releaseErr != nil {
		return a.releaseErr
	}
	return a.StockAllocator.Release(ctx, allocation)
}

func TestCheckoutCompensatesRaceLostMidReservation(t *testing.T) {
	f := newFixture(t)
	owner := types.UserOwner(uuid.New())
	first := dbtest.MustProduct(t, f.conn, "Aloe", "10")
	second := dbtest.MustProduct(t, f.conn, "Ivy", "10")
	w1 := dbtest.MustWarehouse(t, f.conn, "W1", 1)
	w2 := dbtest.MustWarehouse(t, f.conn, "W2", 2)
	firstW1 := dbtest.MustStock(t, f.conn, w1.ID, first.ID, nil, 1)
	firstW2 := dbtest.MustStock(t, f.conn, w2.ID, first.ID, nil, 4)
	secondW1 := dbtest.MustStock(t, f.conn, w1.ID, second.ID, nil, 3)
	f.add(owner, first.ID, nil, 2)
	f.add(owner, second.ID, nil, 2)

	// a competing checkout takes two of the three units after the pre-check
	racer := &hookedAllocator{StockAllocator: f.deps.Allocator}
	racer.beforeReserve = func(productID uuid.UUID) {
		if productID == second.ID {
			f.setStock(secondW1.ID, 3, 2)
		}
	}
	svc := f.build(func(d *Deps) { d.Allocator = racer })

	_, err := svc.Checkout(f.ctx, request(owner))
	requireCode(t, err, pkgerrors.CodeStockAllocationFailed)

	requireCounters(t, f.stock(firstW1.ID), 1, 0, 1)
	requireCounters(t, f.stock(firstW2.ID), 4, 0, 4)
	requireCounters(t, f.stock(secondW1.ID), 3, 2, 1)

	failed := f.ordersOf(owner)
	require.Len(t, failed, 1)
	require.Equal(t, enums.OrderStatusFailed, failed[0].Status)
	require.Equal(t, enums.InventoryStatusReleased, failed[0].InventoryStatus)
	require.Nil(t, failed[0].CartID)
	require.Equal(t, string(pkgerrors.CodeStockAllocationFailed), *failed[0].FailureReason)
	require.Zero(t, f.activeLedgerUnits(failed[0].ID))
	require.Equal(t, []enums.OutboxEventType{enums.EventReservationReleased}, f.events(failed[0].ID))
	require.Len(t, f.cartLines(owner), 2)
	require.Equal(t, []bool{true}, f.metrics.compensationList())

	// once stock is back the same cart checks out into a new order
	f.setStock(secondW1.ID, 3, 0)
	summary, err := f.svc.Checkout(f.ctx, request(owner))
	require.NoError(t, err)
	require.NotEqual(t, failed[0].ID, summary.OrderID)
	requireCounters(t, f.stock(secondW1.ID), 3, 2, 1)
}

// leavePending runs a checkout whose second line blows up and whose
// compensation cannot release anything, the state a crashed call leaves.
func leavePending(t *testing.T, f *fixture) (types.CartOwner, models.Order, *models.InventoryRecord, *models.InventoryRecord) {
	t.Helper()
	owner := types.GuestOwner("guest-" + uuid.NewString())
	first := dbtest.MustProduct(t, f.conn, "Aloe", "10")
	second := dbtest.MustProduct(t, f.conn, "Ivy", "10")
	warehouse := dbtest.MustWarehouse(t, f.conn, "W-"+uuid.NewString()[:6], 1)
	firstStock := dbtest.MustStock(t, f.conn, warehouse.ID, first.ID, nil, 5)
	secondStock := dbtest.MustStock(t, f.conn, warehouse.ID, second.ID, nil, 5)
	f.add(owner, first.ID, nil, 2)
	f.add(owner, second.ID, nil, 3)

	boom := errors.New("inventory store unavailable")
	crashing := &hookedAllocator{
		StockAllocator: f.deps.Allocator,
		failProduct:    second.ID,
		failErr:        boom,
		releaseErr:     errors.New("inventory store unavailable"),
	}
	svc := f.build(func(d *Deps) { d.Allocator = crashing })
	_, err := svc.Checkout(f.ctx, request(owner))
	require.ErrorIs(t, err, boom)

	pending := f.ordersOf(owner)
	require.Len(t, pending, 1)
	require.Equal(t, enums.OrderStatusPending, pending[0].Status)
	require.Equal(t, enums.InventoryStatusPending, pending[0].InventoryStatus)
	require.Equal(t, 2, f.activeLedgerUnits(pending[0].ID))
	requireCounters(t, f.stock(firstStock.ID), 5, 2, 3)
	require.Equal(t, []bool{false}, f.metrics.compensationList())
	return owner, pending[0], firstStock, secondStock
}

func TestCheckoutResumesPendingOrder(t *testing.T) {
	f := newFixture(t)
	owner, pending, firstStock, secondStock := leavePending(t, f)

	summary, err := f.svc.Checkout(f.ctx, request(owner))
	require.NoError(t, err)
	require.Equal(t, pending.ID, summary.OrderID)
	require.Equal(t, enums.InventoryStatusReserved, summary.InventoryStatus)

	requireCounters(t, f.stock(firstStock.ID), 5, 2, 3)
	requireCounters(t, f.stock(secondStock.ID), 5, 3, 2)
	require.Equal(t, 5, f.activeLedgerUnits(pending.ID))
	require.Empty(t, f.cartLines(owner))
	require.Equal(t, []enums.OutboxEventType{enums.EventOrderCreated}, f.events(pending.ID))
}

func TestExpirePendingReleasesLedger(t *testing.T) {
	f := newFixture(t)
	owner, pending, firstStock, secondStock := leavePending(t, f)

	require.NoError(t, f.svc.ExpirePending(f.ctx, pending.ID, "pending timeout"))

	requireCounters(t, f.stock(firstStock.ID), 5, 0, 5)
	requireCounters(t, f.stock(secondStock.ID), 5, 0, 5)
	order, err := f.orders.FindByID(f.ctx, pending.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusFailed, order.Status)
	require.Equal(t, enums.InventoryStatusReleased, order.InventoryStatus)
	require.Equal(t, "pending timeout", *order.FailureReason)
	require.Zero(t, f.activeLedgerUnits(pending.ID))
	require.Equal(t, []enums.OutboxEventType{enums.EventReservationReleased}, f.events(pending.ID))
	require.Len(t, f.cartLines(owner), 2)

	// already settled orders are left alone
	require.NoError(t, f.svc.ExpirePending(f.ctx, pending.ID, "pending timeout"))
	requireCounters(t, f.stock(firstStock.ID), 5, 0, 5)
}

func TestExpirePendingSkipsLockedCart(t *testing.T) {
	f := newFixture(t)
	owner, pending, firstStock, _ := leavePending(t, f)
	f.locker.hold(owner.Key())

	err := f.svc.ExpirePending(f.ctx, pending.ID, "pending timeout")
	requireCode(t, err, pkgerrors.CodeCheckoutInProgress)
	requireCounters(t, f.stock(firstStock.ID), 5, 2, 3)
}

func TestCheckoutRejectsBusyCart(t *testing.T) {
	f := newFixture(t)
	owner := types.GuestOwner("guest-busy")
	product := dbtest.MustProduct(t, f.conn, "Fern", "10")
	warehouse := dbtest.MustWarehouse(t, f.conn, "HCM", 1)
	dbtest.MustStock(t, f.conn, warehouse.ID, product.ID, nil, 5)
	f.add(owner, product.ID, nil, 1)
	f.locker.hold(owner.Key())

	_, err := f.svc.Checkout(f.ctx, request(owner))
	requireCode(t, err, pkgerrors.CodeCheckoutInProgress)
	require.Empty(t, f.ordersOf(owner))
	require.Equal(t, []string{string(pkgerrors.CodeCheckoutInProgress)}, f.metrics.outcomeList())
}

func TestCheckoutValidation(t *testing.T) {
	f := newFixture(t)
	product := dbtest.MustProduct(t, f.conn, "Fern", "10")
	variant := dbtest.MustVariant(t, f.conn, product.ID, "Large", nil)
	inactive := dbtest.MustProduct(t, f.conn, "Retired", "10")

	userID := uuid.New()
	both := types.CartOwner{UserID: &userID, SessionID: "sess"}
	_, err := f.svc.Checkout(f.ctx, request(both))
	requireCode(t, err, pkgerrors.CodeInvalidRequest)

	_, err = f.svc.Checkout(f.ctx, request(types.CartOwner{}))
	requireCode(t, err, pkgerrors.CodeInvalidRequest)

	noAddress := request(types.GuestOwner("guest-a"))
	noAddress.ShippingAddress = nil
	_, err = f.svc.Checkout(f.ctx, noAddress)
	requireCode(t, err, pkgerrors.CodeInvalidRequest)

	badMethod := request(types.GuestOwner("guest-a"))
	badMethod.PaymentMethod = "barter"
	_, err = f.svc.Checkout(f.ctx, badMethod)
	requireCode(t, err, pkgerrors.CodeInvalidRequest)

	_, err = f.svc.Checkout(f.ctx, request(types.GuestOwner("guest-empty")))
	requireCode(t, err, pkgerrors.CodeEmptyCart)

	inactiveOwner := types.GuestOwner("guest-inactive")
	f.add(inactiveOwner, inactive.ID, nil, 1)
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", inactive.ID).Update("active", false).Error)
	_, err = f.svc.Checkout(f.ctx, request(inactiveOwner))
	requireCode(t, err, pkgerrors.CodeProductInactive)

	variantOwner := types.GuestOwner("guest-variant")
	f.add(variantOwner, product.ID, &variant.ID, 1)
	require.NoError(t, f.conn.Delete(&models.ProductVariant{}, "id = ?", variant.ID).Error)
	_, err = f.svc.Checkout(f.ctx, request(variantOwner))
	requireCode(t, err, pkgerrors.CodeVariantNotFound)

	noWarehouse := types.GuestOwner("guest-nowh")
	f.add(noWarehouse, product.ID, nil, 1)
	_, err = f.svc.Checkout(f.ctx, request(noWarehouse))
	requireCode(t, err, pkgerrors.CodeNoWarehouseAvailable)

	require.Zero(t, f.metrics.count(outcomeSuccess))
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	f := newFixture(t)
	product := dbtest.MustProduct(t, f.conn, "Snake Plant", "12")
	warehouse := dbtest.MustWarehouse(t, f.conn, "HCM", 1)
	record := dbtest.MustStock(t, f.conn, warehouse.ID, product.ID, nil, 6)

	const buyers = 5
	owners := make([]types.CartOwner, buyers)
	for i := range owners {
		owners[i] = types.GuestOwner("guest-race-" + uuid.NewString())
		f.add(owners[i], product.ID, nil, 2)
	}

	results := make([]*orders.OrderSummary, buyers)
	errs := make([]error, buyers)
	var wg sync.WaitGroup
	for i := range owners {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Checkout(f.ctx, request(owners[i]))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i, err := range errs {
		if err == nil {
			succeeded++
			require.Equal(t, enums.InventoryStatusReserved, results[i].InventoryStatus)
			continue
		}
		code := pkgerrors.CodeOf(err)
		require.Contains(t, []pkgerrors.Code{pkgerrors.CodeInsufficientStock, pkgerrors.CodeStockAllocationFailed}, code, "error: %v", err)
	}
	require.Equal(t, 3, succeeded)

	requireCounters(t, f.stock(record.ID), 6, 6, 0)
	var active []models.InventoryReservation
	require.NoError(t, f.conn.Where("status = ?", enums.ReservationStatusActive).Find(&active).Error)
	total := 0
	for _, row := range active {
		total += row.Quantity
	}
	require.Equal(t, 6, total)
}

func TestConcurrentCheckoutsOfSameCartReturnOneOrder(t *testing.T) {
	f := newFixture(t)
	owner := types.UserOwner(uuid.New())
	product := dbtest.MustProduct(t, f.conn, "Snake Plant", "12")
	warehouse := dbtest.MustWarehouse(t, f.conn, "HCM", 1)
	record := dbtest.MustStock(t, f.conn, warehouse.ID, product.ID, nil, 10)
	f.add(owner, product.ID, nil, 3)

	const calls = 4
	results := make([]*orders.OrderSummary, calls)
	errs := make([]error, calls)
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Checkout(f.ctx, request(owner))
		}(i)
	}
	wg.Wait()

	var orderID uuid.UUID
	for i, err := range errs {
		if err != nil {
			requireCode(t, err, pkgerrors.CodeCheckoutInProgress)
			continue
		}
		if orderID == uuid.Nil {
			orderID = results[i].OrderID
		}
		require.Equal(t, orderID, results[i].OrderID)
	}
	require.NotEqual(t, uuid.Nil, orderID)
	requireCounters(t, f.stock(record.ID), 10, 3, 7)
	require.Len(t, f.ordersOf(owner), 1)
}

type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]bool{}}
}

func (l *memLocker) hold(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[key] = true
}

func (l *memLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, redis.ErrLockHeld
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, nil
}

type countingRecorder struct {
	mu            sync.Mutex
	outcomes      []string
	compensations []bool
}

func (r *countingRecorder) ObserveOutcome(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *countingRecorder) IncCompensation(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compensations = append(r.compensations, ok)
}

func (r *countingRecorder) outcomeList() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.outcomes...)
}

func (r *countingRecorder) compensationList() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.compensations...)
}

func (r *countingRecorder) count(outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.outcomes {
		if o == outcome {
			n++
		}
	}
	return n
}
