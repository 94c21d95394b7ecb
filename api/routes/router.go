package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leafshop/leafshop-backend/api/controllers"
	admincontrollers "github.com/leafshop/leafshop-backend/api/controllers/admin"
	cartcontrollers "github.com/leafshop/leafshop-backend/api/controllers/cart"
	checkoutcontrollers "github.com/leafshop/leafshop-backend/api/controllers/checkout"
	ordercontrollers "github.com/leafshop/leafshop-backend/api/controllers/orders"
	"github.com/leafshop/leafshop-backend/api/middleware"
	"github.com/leafshop/leafshop-backend/internal/cart"
	checkoutsvc "github.com/leafshop/leafshop-backend/internal/checkout"
	"github.com/leafshop/leafshop-backend/internal/orders"
	"github.com/leafshop/leafshop-backend/pkg/config"
	"github.com/leafshop/leafshop-backend/pkg/db"
	"github.com/leafshop/leafshop-backend/pkg/enums"
	"github.com/leafshop/leafshop-backend/pkg/logger"
	pkgredis "github.com/leafshop/leafshop-backend/pkg/redis"
)

// RedisStore is the Redis surface the HTTP edge needs.
type RedisStore interface {
	pkgredis.IdempotencyStore
	pkgredis.Pinger
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Services bundles the domain services mounted by the router.
type Services struct {
	Cart      cart.Service
	Checkout  checkoutsvc.Service
	Orders    orders.Service
	Inventory admincontrollers.InventoryService
}

// Dependencies are the infrastructure handles used by middleware and probes.
type Dependencies struct {
	DB       db.Pinger
	Redis    RedisStore
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.API.CORSOrigins),
	)

	idempotent := middleware.Idempotency(deps.Redis, cfg.Checkout.IdempotencyKeyTTL, logg)
	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.API.CheckoutRateWindow,
		cfg.API.CheckoutIPLimit,
		cfg.API.CheckoutOwnerLimit,
	)

	readiness := map[string]controllers.Pinger{}
	if deps.DB != nil {
		readiness["db"] = deps.DB
	}
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireOwner(logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.Fetch(svc.Cart, logg))
				r.Delete("/", cartcontrollers.Clear(svc.Cart, logg))
				r.Post("/items", cartcontrollers.AddItem(svc.Cart, logg))
				r.Patch("/items/{lineId}", cartcontrollers.UpdateItem(svc.Cart, logg))
				r.Delete("/items/{lineId}", cartcontrollers.DeleteItem(svc.Cart, logg))
				r.Post("/coupon", cartcontrollers.ApplyCoupon(svc.Cart, logg))
				r.Delete("/coupon", cartcontrollers.RemoveCoupon(svc.Cart, logg))
			})

			r.With(
				middleware.RateLimit(checkoutPolicy, deps.Redis, logg),
				idempotent,
			).Post("/checkout", checkoutcontrollers.Checkout(svc.Checkout, logg))

			r.Get("/orders/{orderId}", ordercontrollers.Detail(svc.Orders, logg))
		})

		r.With(middleware.RequireUser(logg)).Get("/orders", ordercontrollers.List(svc.Orders, logg))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, string(enums.UserRoleAdmin)))

			r.Get("/warehouses", admincontrollers.ListWarehouses(svc.Inventory, logg))
			r.Post("/warehouses", admincontrollers.CreateWarehouse(svc.Inventory, logg))

			r.Route("/inventory", func(r chi.Router) {
				r.Get("/", admincontrollers.ListInventory(svc.Inventory, logg))
				r.Post("/", admincontrollers.CreateInventory(svc.Inventory, logg))
				r.Get("/low-stock", admincontrollers.LowStock(svc.Inventory, logg))
				r.Get("/{inventoryId}", admincontrollers.GetInventory(svc.Inventory, logg))
				r.Patch("/{inventoryId}", admincontrollers.UpdateInventory(svc.Inventory, logg))
				r.Delete("/{inventoryId}", admincontrollers.DeleteInventory(svc.Inventory, logg))
				r.With(idempotent).Post("/{inventoryId}/adjust", admincontrollers.AdjustInventory(svc.Inventory, logg))
			})
		})
	})

	return r
}
