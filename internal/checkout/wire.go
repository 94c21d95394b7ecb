package checkout

import (
	"fmt"

	"github.com/leafshop/leafshop-backend/internal/cart"
	"github.com/leafshop/leafshop-backend/internal/catalog"
	"github.com/leafshop/leafshop-backend/internal/checkout/reservation"
	"github.com/leafshop/leafshop-backend/internal/coupons"
	"github.com/leafshop/leafshop-backend/internal/orders"
	"github.com/leafshop/leafshop-backend/internal/warehouses"
	"github.com/leafshop/leafshop-backend/pkg/config"
	"github.com/leafshop/leafshop-backend/pkg/db"
	"github.com/leafshop/leafshop-backend/pkg/logger"
	"github.com/leafshop/leafshop-backend/pkg/metrics"
	"github.com/leafshop/leafshop-backend/pkg/outbox"
)

// Components are the services built around one database handle. The api and
// the cron worker share this graph.
type Components struct {
	Catalog    *catalog.Service
	Coupons    *coupons.Service
	CartRepo   *cart.Repository
	Carts      cart.Service
	Stock      *warehouses.Repository
	Warehouses *warehouses.Service
	Orders     orders.Repository
	OrderQuery orders.Service
	Ledger     orders.LedgerRepository
	Outbox     *outbox.Service
	Checkout   Service
}

// Build wires the checkout graph. Reservation conflicts are reported to m.
func Build(client *db.Client, locker Locker, cfg config.CheckoutConfig, m *metrics.CheckoutMetrics, logg *logger.Logger) (*Components, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	conn := client.DB()

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("catalog service: %w", err)
	}
	couponSvc, err := coupons.NewService(coupons.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("coupon service: %w", err)
	}
	cartRepo := cart.NewRepository(conn)
	cartSvc, err := cart.NewService(cartRepo, client, catalogSvc, couponSvc, cfg.ShippingFlatFee, logg)
	if err != nil {
		return nil, fmt.Errorf("cart service: %w", err)
	}
	stock := warehouses.NewRepository(conn)
	warehouseSvc, err := warehouses.NewService(stock, logg)
	if err != nil {
		return nil, fmt.Errorf("warehouse service: %w", err)
	}
	allocator, err := reservation.NewAllocator(stock, reservation.Options{
		MaxAttempts: cfg.ReserveMaxAttempts,
		OnConflict:  m.IncConflict,
	})
	if err != nil {
		return nil, fmt.Errorf("allocator: %w", err)
	}
	orderRepo := orders.NewRepository(conn)
	orderSvc, err := orders.NewService(orderRepo)
	if err != nil {
		return nil, fmt.Errorf("order service: %w", err)
	}
	ledger := orders.NewLedgerRepository(conn)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	checkoutSvc, err := NewService(Deps{
		Tx:         client,
		Locker:     locker,
		Carts:      cartRepo,
		Catalog:    catalogSvc,
		Warehouses: stock,
		Allocator:  allocator,
		Orders:     orderRepo,
		Ledger:     ledger,
		Coupons:    couponSvc,
		Outbox:     outboxSvc,
		Metrics:    m,
		Logger:     logg,
		Config:     cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout service: %w", err)
	}

	return &Components{
		Catalog:    catalogSvc,
		Coupons:    couponSvc,
		CartRepo:   cartRepo,
		Carts:      cartSvc,
		Stock:      stock,
		Warehouses: warehouseSvc,
		Orders:     orderRepo,
		OrderQuery: orderSvc,
		Ledger:     ledger,
		Outbox:     outboxSvc,
		Checkout:   checkoutSvc,
	}, nil
}
