package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leafshop/leafshop-backend/pkg/db/models"
)

// Repository exposes persistence operations for cart lines and the cart aggregate.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindMeta returns nil when the cart has never been created.
func (r *Repository) FindMeta(ctx context.Context, cartKey string) (*models.CartMeta, error) {
	var meta models.CartMeta
	err := r.db.WithContext(ctx).Where("cart_key = ?", cartKey).First(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func (r *Repository) CreateMeta(ctx context.Context, meta *models.CartMeta) error {
	return r.db.WithContext(ctx).Create(meta).Error
}

// SaveMeta overwrites the aggregate; last write wins.
func (r *Repository) SaveMeta(ctx context.Context, meta *models.CartMeta) error {
	return r.db.WithContext(ctx).
		Model(&models.CartMeta{}).
		Where("id = ?", meta.ID).
		Updates(map[string]any{
			"coupon_code":     meta.CouponCode,
			"subtotal":        meta.Subtotal,
			"shipping_amount": meta.ShippingAmount,
			"discount_amount": meta.DiscountAmount,
			"total_amount":    meta.TotalAmount,
			"updated_at":      time.Now().UTC(),
		}).Error
}

func (r *Repository) DeleteMeta(ctx context.Context, cartKey string) error {
	return r.db.WithContext(ctx).Where("cart_key = ?", cartKey).Delete(&models.CartMeta{}).Error
}

// ListLines returns lines in insertion order.
func (r *Repository) ListLines(ctx context.Context, cartKey string) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.db.WithContext(ctx).
		Where("cart_key = ?", cartKey).
		Order("created_at ASC").
		Order("id ASC").
		Find(&lines).Error
	return lines, err
}

// FindLine returns nil when the line does not belong to the cart.
func (r *Repository) FindLine(ctx context.Context, cartKey string, lineID uuid.UUID) (*models.CartLine, error) {
	return r.findLine(ctx, r.db.Where("cart_key = ? AND id = ?", cartKey, lineID))
}

// FindMatchingLine looks up the line that an add of the same product, variant
// and size merges into.
func (r *Repository) FindMatchingLine(ctx context.Context, cartKey string, productID uuid.UUID, variantID *uuid.UUID, size *string) (*models.CartLine, error) {
	scope := r.db.Where("cart_key = ? AND product_id = ?", cartKey, productID)
	if variantID == nil {
		scope = scope.Where("variant_id IS NULL")
	} else {
		scope = scope.Where("variant_id = ?", *variantID)
	}
	if size == nil {
		scope = scope.Where("size IS NULL")
	} else {
		scope = scope.Where("size = ?", *size)
	}
	return r.findLine(ctx, scope)
}

func (r *Repository) findLine(ctx context.Context, scope *gorm.DB) (*models.CartLine, error) {
	var line models.CartLine
	err := scope.WithContext(ctx).First(&line).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *Repository) CreateLine(ctx context.Context, line *models.CartLine) error {
	return r.db.WithContext(ctx).Create(line).Error
}

func (r *Repository) SaveLine(ctx context.Context, line *models.CartLine) error {
	return r.db.WithContext(ctx).Save(line).Error
}

func (r *Repository) DeleteLine(ctx context.Context, cartKey string, lineID uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("cart_key = ? AND id = ?", cartKey, lineID).Delete(&models.CartLine{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) DeleteLines(ctx context.Context, cartKey string) error {
	return r.db.WithContext(ctx).Where("cart_key = ?", cartKey).Delete(&models.CartLine{}).Error
}
