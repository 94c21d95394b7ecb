package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/leafshop/leafshop-backend/pkg/db/models"
	"github.com/leafshop/leafshop-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	CreateLines(ctx context.Context, lines []models.OrderLine) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByCartID(ctx context.Context, cartID uuid.UUID) (*models.Order, error)
	FindLatestByCartKey(ctx context.Context, cartKey string, since time.Time) (*models.Order, error)
	FindLinesByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.OrderLine, error)
	ApplyDiscount(ctx context.Context, orderID uuid.UUID, couponCode string, discount, total decimal.Decimal) error
	MarkReserved(ctx context.Context, orderID uuid.UUID) error
	MarkFailed(ctx context.Context, orderID uuid.UUID, reason string) error
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, *pagination.Cursor, error)
}

// LedgerRepository persists the per-allocation reservation ledger.
type LedgerRepository interface {
	WithTx(tx *gorm.DB) LedgerRepository
	Insert(ctx context.Context, row *models.InventoryReservation) error
	ListActiveByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryReservation, error)
	MarkReleased(ctx context.Context, id uuid.UUID, at time.Time) error
}
