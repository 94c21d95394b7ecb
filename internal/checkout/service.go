package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/leafshop/leafshop-backend/internal/cart"
	"github.com/leafshop/leafshop-backend/internal/checkout/helpers"
	"github.com/leafshop/leafshop-backend/internal/checkout/reservation"
	"github.com/leafshop/leafshop-backend/internal/orders"
	"github.com/leafshop/leafshop-backend/pkg/config"
	"github.com/leafshop/leafshop-backend/pkg/db"
	"github.com/leafshop/leafshop-backend/pkg/db/models"
	"github.com/leafshop/leafshop-backend/pkg/enums"
	pkgerrors "github.com/leafshop/leafshop-backend/pkg/errors"
	"github.com/leafshop/leafshop-backend/pkg/logger"
	"github.com/leafshop/leafshop-backend/pkg/metrics"
	"github.com/leafshop/leafshop-backend/pkg/outbox"
	"github.com/leafshop/leafshop-backend/pkg/outbox/payloads"
	"github.com/leafshop/leafshop-backend/pkg/redis"
	"github.com/leafshop/leafshop-backend/pkg/types"
)

const (
	outcomeSuccess  = "success"
	couponSavepoint = "coupon"
	defaultLockTTL  = 30 * time.Second
)

var cartIDConstraint = []string{"orders_cart_id_key", "orders.cart_id"}

type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ProductCatalog interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error)
}

// WarehouseDirectory lists active warehouses in allocation order.
type WarehouseDirectory interface {
	ListActive(ctx context.Context) ([]models.Warehouse, error)
}

type StockAllocator interface {
	PreCheck(ctx context.Context, demand []reservation.Demand, warehouseIDs []uuid.UUID) error
	Reserve(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, quantity int, warehouseIDs []uuid.UUID) (reservation.Result, error)
	Release(ctx context.Context, allocation reservation.Allocation) error
}

// CouponApplier redeems a coupon inside the order transaction.
type CouponApplier interface {
	Apply(ctx context.Context, tx *gorm.DB, code string, userID *uuid.UUID, orderID uuid.UUID, subtotal decimal.Decimal) (decimal.Decimal, error)
}

type Recorder interface {
	ObserveOutcome(outcome string, elapsed time.Duration)
	IncCompensation(ok bool)
}

// Deps wires the checkout service.
type Deps struct {
	Tx         TxRunner
	Locker     Locker
	Carts      cart.CartRepository
	Catalog    ProductCatalog
	Warehouses WarehouseDirectory
	Allocator  StockAllocator
	Orders     orders.Repository
	Ledger     orders.LedgerRepository
	Coupons    CouponApplier
	Outbox     outbox.Emitter
	Metrics    Recorder
	Logger     *logger.Logger
	Config     config.CheckoutConfig
	Now        func() time.Time
}

// Request is one checkout call.
type Request struct {
	Owner           types.CartOwner
	ShippingAddress *types.Address
	BillingAddress  *types.Address
	PaymentMethod   string
	CouponCode      *string
}

// Service converts carts into orders backed by reserved stock.
type Service interface {
	Checkout(ctx context.Context, req Request) (*orders.OrderSummary, error)
	ExpirePending(ctx context.Context, orderID uuid.UUID, reason string) error
}

type service struct {
	tx         TxRunner
	locker     Locker
	carts      cart.CartRepository
	catalog    ProductCatalog
	warehouses WarehouseDirectory
	allocator  StockAllocator
	orders     orders.Repository
	ledger     orders.LedgerRepository
	coupons    CouponApplier
	outbox     outbox.Emitter
	metrics    Recorder
	logg       *logger.Logger
	cfg        config.CheckoutConfig
	now        func() time.Time
}

// hold is one allocation made on behalf of an order line. ledgerID stays
// uuid.Nil when the ledger row could not be written.
type hold struct {
	orderLineID uuid.UUID
	ledgerID    uuid.UUID
	allocation  reservation.Allocation
}

func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case deps.Locker == nil:
		return nil, fmt.Errorf("cart locker required")
	case deps.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case deps.Catalog == nil:
		return nil, fmt.Errorf("catalog required")
	case deps.Warehouses == nil:
		return nil, fmt.Errorf("warehouse directory required")
	case deps.Allocator == nil:
		return nil, fmt.Errorf("stock allocator required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("reservation ledger required")
	case deps.Coupons == nil:
		return nil, fmt.Errorf("coupon applier required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewCheckoutMetrics(nil)
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Config.LockTTL <= 0 {
		deps.Config.LockTTL = defaultLockTTL
	}
	return &service{
		tx:         deps.Tx,
		locker:     deps.Locker,
		carts:      deps.Carts,
		catalog:    deps.Catalog,
		warehouses: deps.Warehouses,
		allocator:  deps.Allocator,
		orders:     deps.Orders,
		ledger:     deps.Ledger,
		coupons:    deps.Coupons,
		outbox:     deps.Outbox,
		metrics:    deps.Metrics,
		logg:       deps.Logger,
		cfg:        deps.Config,
		now:        deps.Now,
	}, nil
}

// Checkout is idempotent per cart: a repeated call returns the order the
// first call created, resuming its reservation when that call died midway.
func (s *service) Checkout(ctx context.Context, req Request) (summary *orders.OrderSummary, err error) {
	started := s.now()
	defer func() {
		s.metrics.ObserveOutcome(outcomeOf(err), s.now().Sub(started))
	}()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	method, err := helpers.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	cartKey := req.Owner.Key()
	ctx = s.logg.WithCartKey(ctx, cartKey)

	unlock, err := s.lock(ctx, cartKey)
	if err != nil {
		return nil, err
	}
	defer unlock()

	meta, err := s.carts.FindMeta(ctx, cartKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	existing, ownsCart, err := s.findExisting(ctx, cartKey, meta)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.settle(ctx, existing, cartKey, ownsCart)
	}

	lines, err := s.carts.ListLines(ctx, cartKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart lines")
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}
	if err := s.validateCatalog(ctx, lines); err != nil {
		return nil, err
	}
	warehouseIDs, err := s.activeWarehouses(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.allocator.PreCheck(ctx, demandOf(lines), warehouseIDs); err != nil {
		return nil, err
	}

	order, orderLines, couponCode := s.buildOrder(req, method, meta, lines)
	if err := s.persistOrder(ctx, order, orderLines, couponCode); err != nil {
		if order.CartID == nil || !db.IsUniqueViolation(err, cartIDConstraint...) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		winner, findErr := s.orders.FindByCartID(ctx, *order.CartID)
		if findErr != nil || winner == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart already checked out")
		}
		return s.settle(ctx, winner, cartKey, true)
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, "order created, reserving stock")
	return s.reserve(ctx, order, orderLines, nil, warehouseIDs, cartKey)
}

// ExpirePending hands back the stock of an order that never finished
// reserving and fails it. Orders that moved on are left alone.
func (s *service) ExpirePending(ctx context.Context, orderID uuid.UUID, reason string) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	ctx = s.logg.WithOrderID(s.logg.WithCartKey(ctx, order.CartKey), orderID.String())

	unlock, err := s.lock(ctx, order.CartKey)
	if err != nil {
		return err
	}
	defer unlock()

	order, err = s.orders.FindByID(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	if order == nil || !isPending(order) {
		return nil
	}

	rows, err := s.ledger.ListActiveByOrder(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservations")
	}
	units, err := s.release(ctx, holdsOf(rows))
	s.metrics.IncCompensation(err == nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release expired reservations")
	}
	if err := s.fail(ctx, order, reason, units); err != nil {
		if errors.Is(err, orders.ErrOrderStateChanged) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail expired order")
	}
	s.logg.Info(s.logg.WithField(ctx, "released_units", units), "expired pending order")
	return nil
}

func (s *service) lock(ctx context.Context, cartKey string) (func(), error) {
	release, err := s.locker.TryLock(ctx, cartKey, s.cfg.LockTTL)
	if errors.Is(err, redis.ErrLockHeld) {
		return nil, pkgerrors.New(pkgerrors.CodeCheckoutInProgress, "checkout already in progress for this cart")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire cart lock")
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "release cart lock", err)
		}
	}, nil
}

// findExisting looks the cart's order up by cart identity and, when the cart
// is already gone, falls back to the newest reserved order for the owner
// inside the idempotency window. ownsCart is true only for a cart identity
// match.
func (s *service) findExisting(ctx context.Context, cartKey string, meta *models.CartMeta) (order *models.Order, ownsCart bool, err error) {
	if meta != nil {
		order, err = s.orders.FindByCartID(ctx, meta.ID)
		if err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up cart order")
		}
		return order, order != nil, nil
	}
	if s.cfg.IdempotencyWindow <= 0 {
		return nil, false, nil
	}
	order, err = s.orders.FindLatestByCartKey(ctx, cartKey, s.now().Add(-s.cfg.IdempotencyWindow))
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up recent order")
	}
	return order, false, nil
}

// settle finishes an order found by the duplicate guard. Cart rows are only
// torn down when the order was matched by cart identity; lines found next to
// a missing meta are not known to belong to that order.
func (s *service) settle(ctx context.Context, order *models.Order, cartKey string, ownsCart bool) (*orders.OrderSummary, error) {
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	if !isPending(order) {
		s.logg.Info(ctx, "cart already checked out, returning existing order")
		if ownsCart {
			s.teardown(ctx, cartKey)
		}
		return orders.SummaryOf(order), nil
	}

	lines, err := s.orders.FindLinesByOrderID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order lines")
	}
	rows, err := s.ledger.ListActiveByOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservations")
	}
	warehouseIDs, err := s.activeWarehouses(ctx)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "held_allocations", len(rows)), "resuming pending order")
	return s.reserve(ctx, order, lines, holdsOf(rows), warehouseIDs, cartKey)
}

func (s *service) validateCatalog(ctx context.Context, lines []models.CartLine) error {
	for _, line := range lines {
		product, err := s.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			return helpers.CatalogError(err, line.ProductID, nil)
		}
		if err := helpers.ValidateProductActive(product); err != nil {
			return err
		}
		if line.VariantID == nil {
			continue
		}
		if _, err := s.catalog.GetVariant(ctx, line.ProductID, *line.VariantID); err != nil {
			return helpers.CatalogError(err, line.ProductID, line.VariantID)
		}
	}
	return nil
}

func (s *service) activeWarehouses(ctx context.Context) ([]uuid.UUID, error) {
	list, err := s.warehouses.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list warehouses")
	}
	if len(list) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNoWarehouseAvailable, "no active warehouse")
	}
	ids := make([]uuid.UUID, len(list))
	for i, warehouse := range list {
		ids[i] = warehouse.ID
	}
	return ids, nil
}

// buildOrder freezes the cart lines into an order. The request coupon wins
// over the one stored on the cart.
func (s *service) buildOrder(req Request, method enums.PaymentMethod, meta *models.CartMeta, lines []models.CartLine) (*models.Order, []models.OrderLine, *string) {
	orderID := uuid.New()
	orderLines := make([]models.OrderLine, 0, len(lines))
	subtotal := decimal.Zero
	for _, line := range lines {
		lineTotal := helpers.LineTotal(line.UnitPrice, line.Quantity)
		subtotal = subtotal.Add(lineTotal)
		orderLines = append(orderLines, models.OrderLine{
			ID:          uuid.New(),
			OrderID:     orderID,
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			ProductName: line.ProductName,
			Size:        line.Size,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   lineTotal,
		})
	}
	totals := helpers.ComputeTotals(subtotal, s.cfg.ShippingFlatFee, decimal.Zero)

	var userID *uuid.UUID
	if !req.Owner.IsGuest() {
		id := *req.Owner.UserID
		userID = &id
	}
	order := &models.Order{
		ID:              orderID,
		OrderRef:        helpers.OrderRef(userID, orderID),
		UserID:          userID,
		SessionID:       req.Owner.SessionPtr(),
		CartKey:         req.Owner.Key(),
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusPending,
		PaymentMethod:   method,
		InventoryStatus: enums.InventoryStatusPending,
		ShippingAddress: *req.ShippingAddress,
		Subtotal:        totals.Subtotal,
		ShippingAmount:  totals.Shipping,
		DiscountAmount:  totals.Discount,
		TotalAmount:     totals.Total,
	}
	if req.BillingAddress != nil && !req.BillingAddress.IsZero() {
		billing := *req.BillingAddress
		order.BillingAddress = &billing
	}

	couponCode := helpers.NormalizeCouponCode(req.CouponCode)
	if meta != nil {
		cartID := meta.ID
		order.CartID = &cartID
		if couponCode == nil {
			couponCode = helpers.NormalizeCouponCode(meta.CouponCode)
		}
	}
	return order, orderLines, couponCode
}

// persistOrder writes the header, its lines and the coupon redemption in one
// transaction.
func (s *service) persistOrder(ctx context.Context, order *models.Order, lines []models.OrderLine, couponCode *string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return err
		}
		if err := repo.CreateLines(ctx, lines); err != nil {
			return err
		}
		if couponCode == nil {
			return nil
		}

		discount, err := s.applyCoupon(ctx, tx, order, *couponCode)
		if err != nil || discount.IsZero() {
			return err
		}
		totals := helpers.ComputeTotals(order.Subtotal, order.ShippingAmount, discount)
		if err := repo.ApplyDiscount(ctx, order.ID, *couponCode, totals.Discount, totals.Total); err != nil {
			return err
		}
		order.CouponCode = couponCode
		order.DiscountAmount = totals.Discount
		order.TotalAmount = totals.Total
		return nil
	})
}

// applyCoupon never fails the checkout over a rejected coupon: the redemption
// is rolled back to the savepoint and the order keeps a zero discount.
func (s *service) applyCoupon(ctx context.Context, tx *gorm.DB, order *models.Order, code string) (decimal.Decimal, error) {
	if err := tx.SavePoint(couponSavepoint).Error; err != nil {
		return decimal.Zero, err
	}
	discount, err := s.coupons.Apply(ctx, tx, code, order.UserID, order.ID, order.Subtotal)
	if err == nil {
		return discount, nil
	}
	if rbErr := tx.RollbackTo(couponSavepoint).Error; rbErr != nil {
		return decimal.Zero, rbErr
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"coupon_code": code,
		"reason":      err.Error(),
	})
	s.logg.Info(logCtx, "coupon not applied at checkout")
	return decimal.Zero, nil
}

// reserve allocates whatever each line still lacks. Any failure releases
// every hold of the order, including those resumed from the ledger.
func (s *service) reserve(ctx context.Context, order *models.Order, lines []models.OrderLine, holds []hold, warehouseIDs []uuid.UUID, cartKey string) (*orders.OrderSummary, error) {
	reserved := make(map[uuid.UUID]int, len(lines))
	for _, h := range holds {
		reserved[h.orderLineID] += h.allocation.Quantity
	}

	for _, line := range lines {
		remaining := line.Quantity - reserved[line.ID]
		if remaining <= 0 {
			continue
		}
		result, err := s.allocator.Reserve(ctx, line.ProductID, line.VariantID, remaining, warehouseIDs)
		for _, allocation := range result.Allocations {
			h, recordErr := s.record(ctx, order.ID, line.ID, allocation)
			holds = append(holds, h)
			if recordErr != nil && err == nil {
				err = recordErr
			}
		}
		if err == nil && !result.Reserved() {
			err = pkgerrors.New(pkgerrors.CodeStockAllocationFailed, "stock ran out during reservation").
				WithDetails(map[string]any{
					"productId": line.ProductID,
					"required":  remaining,
					"reserved":  remaining - result.Remaining,
				})
		}
		if err != nil {
			return nil, s.compensate(ctx, order, holds, err)
		}
	}

	if err := s.finalize(ctx, order, lines); err != nil {
		return nil, err
	}
	s.teardown(ctx, cartKey)
	s.logg.Info(ctx, "checkout completed")
	return orders.SummaryOf(order), nil
}

func (s *service) record(ctx context.Context, orderID, lineID uuid.UUID, allocation reservation.Allocation) (hold, error) {
	h := hold{orderLineID: lineID, allocation: allocation}
	row := &models.InventoryReservation{
		OrderID:           orderID,
		OrderLineID:       lineID,
		WarehouseID:       allocation.WarehouseID,
		InventoryRecordID: allocation.InventoryRecordID,
		ProductID:         allocation.ProductID,
		VariantID:         allocation.VariantID,
		Quantity:          allocation.Quantity,
	}
	if err := s.ledger.Insert(ctx, row); err != nil {
		return h, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record reservation")
	}
	h.ledgerID = row.ID
	return h, nil
}

// compensate returns cause after undoing the holds. When a release fails the
// order stays PENDING so the sweeper can finish the job.
func (s *service) compensate(ctx context.Context, order *models.Order, holds []hold, cause error) error {
	ctx = context.WithoutCancel(ctx)
	units, err := s.release(ctx, holds)
	s.metrics.IncCompensation(err == nil)
	if err != nil {
		s.logg.Error(ctx, "checkout compensation incomplete, order left pending", err)
		return cause
	}
	if err := s.fail(ctx, order, string(pkgerrors.CodeOf(cause)), units); err != nil {
		s.logg.Error(ctx, "mark order failed", err)
		return cause
	}
	s.logg.Warn(s.logg.WithField(ctx, "released_units", units), "checkout failed after reservation started")
	return cause
}

// release walks holds newest first.
func (s *service) release(ctx context.Context, holds []hold) (int, error) {
	var errs error
	units := 0
	for i := len(holds) - 1; i >= 0; i-- {
		h := holds[i]
		if err := s.allocator.Release(ctx, h.allocation); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("release inventory %s: %w", h.allocation.InventoryRecordID, err))
			continue
		}
		units += h.allocation.Quantity
		if h.ledgerID == uuid.Nil {
			continue
		}
		if err := s.ledger.MarkReleased(ctx, h.ledgerID, s.now()); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("mark reservation %s released: %w", h.ledgerID, err))
		}
	}
	return units, errs
}

func (s *service) fail(ctx context.Context, order *models.Order, reason string, units int) error {
	releasedAt := s.now().UTC()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).MarkFailed(ctx, order.ID, reason); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationReleased,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorOf(order),
			OccurredAt:    releasedAt,
			Data: payloads.ReservationReleasedEvent{
				OrderID:       order.ID,
				OrderRef:      order.OrderRef,
				CartID:        order.CartID,
				CartKey:       order.CartKey,
				UserID:        order.UserID,
				Reason:        reason,
				ReleasedUnits: units,
				ReleasedAt:    releasedAt,
			},
		})
	})
	if err != nil {
		return err
	}
	order.Status = enums.OrderStatusFailed
	order.InventoryStatus = enums.InventoryStatusReleased
	order.FailureReason = &reason
	order.CartID = nil
	return nil
}

func (s *service) finalize(ctx context.Context, order *models.Order, lines []models.OrderLine) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).MarkReserved(ctx, order.ID); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, orderCreatedEvent(order, lines))
	})
	if errors.Is(err, orders.ErrOrderStateChanged) {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "order expired before reservation completed")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize order")
	}
	order.InventoryStatus = enums.InventoryStatusReserved
	return nil
}

// teardown runs after the order is final; failures are logged because the
// next checkout call for this cart returns the same order anyway.
func (s *service) teardown(ctx context.Context, cartKey string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.carts.DeleteLines(ctx, cartKey); err != nil {
		s.logg.Error(ctx, "delete cart lines after checkout", err)
		return
	}
	if err := s.carts.DeleteMeta(ctx, cartKey); err != nil {
		s.logg.Error(ctx, "delete cart meta after checkout", err)
	}
}

func validateRequest(req Request) error {
	if err := req.Owner.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInvalidRequest, err, "cart owner required")
	}
	if req.ShippingAddress == nil || req.ShippingAddress.IsZero() {
		return pkgerrors.New(pkgerrors.CodeInvalidRequest, "shipping address required")
	}
	if err := req.ShippingAddress.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInvalidRequest, err, "invalid shipping address")
	}
	if req.BillingAddress != nil && !req.BillingAddress.IsZero() {
		if err := req.BillingAddress.Validate(); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInvalidRequest, err, "invalid billing address")
		}
	}
	return nil
}

func demandOf(lines []models.CartLine) []reservation.Demand {
	demand := make([]reservation.Demand, len(lines))
	for i, line := range lines {
		demand[i] = reservation.Demand{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
		}
	}
	return demand
}

func holdsOf(rows []models.InventoryReservation) []hold {
	holds := make([]hold, len(rows))
	for i, row := range rows {
		holds[i] = hold{
			orderLineID: row.OrderLineID,
			ledgerID:    row.ID,
			allocation: reservation.Allocation{
				InventoryRecordID: row.InventoryRecordID,
				WarehouseID:       row.WarehouseID,
				ProductID:         row.ProductID,
				VariantID:         row.VariantID,
				Quantity:          row.Quantity,
			},
		}
	}
	return holds
}

func isPending(order *models.Order) bool {
	return order.Status == enums.OrderStatusPending && order.InventoryStatus == enums.InventoryStatusPending
}

func orderCreatedEvent(order *models.Order, lines []models.OrderLine) outbox.DomainEvent {
	units := 0
	for _, line := range lines {
		units += line.Quantity
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorOf(order),
		Data: payloads.OrderCreatedEvent{
			OrderID:        order.ID,
			OrderRef:       order.OrderRef,
			CartID:         order.CartID,
			CartKey:        order.CartKey,
			UserID:         order.UserID,
			CouponCode:     order.CouponCode,
			Subtotal:       order.Subtotal,
			ShippingAmount: order.ShippingAmount,
			DiscountAmount: order.DiscountAmount,
			TotalAmount:    order.TotalAmount,
			LineCount:      len(lines),
			UnitCount:      units,
			CreatedAt:      order.CreatedAt,
		},
	}
}

func actorOf(order *models.Order) *outbox.ActorRef {
	actor := &outbox.ActorRef{UserID: order.UserID}
	if order.SessionID != nil {
		actor.SessionID = *order.SessionID
	}
	return actor
}

func outcomeOf(err error) string {
	if err == nil {
		return outcomeSuccess
	}
	return string(pkgerrors.CodeOf(err))
}
