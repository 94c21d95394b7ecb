package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/leafshop/leafshop-backend/pkg/db/models"
	"github.com/leafshop/leafshop-backend/pkg/enums"
	"github.com/leafshop/leafshop-backend/pkg/pagination"
)

// ErrOrderStateChanged is returned when a status transition finds the order
// no longer in the expected state.
var ErrOrderStateChanged = errors.New("order state changed")

type repository struct {
	db *gorm.DB
}

// NewRepository constructs an order repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order header only; lines go through CreateLines.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Lines").Create(order).Error
}

func (r *repository) CreateLines(ctx context.Context, lines []models.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findOne(ctx, r.db.Preload("Lines", orderLines).Where("id = ?", id))
}

func (r *repository) FindByCartID(ctx context.Context, cartID uuid.UUID) (*models.Order, error) {
	return r.findOne(ctx, r.db.Where("cart_id = ?", cartID))
}

// FindLatestByCartKey returns the newest fully reserved order for the cart key
// created at or after since.
func (r *repository) FindLatestByCartKey(ctx context.Context, cartKey string, since time.Time) (*models.Order, error) {
	return r.findOne(ctx, r.db.
		Where("cart_key = ? AND inventory_status = ? AND created_at >= ?", cartKey, enums.InventoryStatusReserved, since).
		Order("created_at DESC"))
}

func (r *repository) findOne(ctx context.Context, scope *gorm.DB) (*models.Order, error) {
	var order models.Order
	err := scope.WithContext(ctx).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindLinesByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := orderLines(r.db.WithContext(ctx).Where("order_id = ?", orderID)).Find(&lines).Error
	return lines, err
}

func orderLines(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}

// ApplyDiscount records the redeemed coupon and the totals it produced.
func (r *repository) ApplyDiscount(ctx context.Context, orderID uuid.UUID, couponCode string, discount, total decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"coupon_code":     couponCode,
			"discount_amount": discount,
			"total_amount":    total,
			"updated_at":      time.Now().UTC(),
		}).Error
}

// MarkReserved moves a pending order to RESERVED inventory.
func (r *repository) MarkReserved(ctx context.Context, orderID uuid.UUID) error {
	return r.transition(ctx, orderID, map[string]any{
		"inventory_status": enums.InventoryStatusReserved,
	})
}

// MarkFailed fails a pending order and frees its cart identity.
func (r *repository) MarkFailed(ctx context.Context, orderID uuid.UUID, reason string) error {
	return r.transition(ctx, orderID, map[string]any{
		"status":           enums.OrderStatusFailed,
		"inventory_status": enums.InventoryStatusReleased,
		"failure_reason":   reason,
		"cart_id":          nil,
	})
}

func (r *repository) transition(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND inventory_status = ?", orderID, enums.OrderStatusPending, enums.InventoryStatusPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOrderStateChanged
	}
	return nil
}

// ListStalePending returns orders still waiting on inventory that were created
// before the cutoff, oldest first.
func (r *repository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND inventory_status = ? AND created_at < ?", enums.OrderStatusPending, enums.InventoryStatusPending, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListByUser pages through a user's orders newest first. The returned cursor
// is nil on the last page.
func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, *pagination.Cursor, error) {
	normalized := pagination.NormalizeLimit(limit)
	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)
	if cursor != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[normalized-1]
		return rows, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return rows, nil, nil
}
