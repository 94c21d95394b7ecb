package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartMeta is the per-cart aggregate. CartKey identifies the owner
// ("user:<id>" or "guest:<session>"); ID identifies this cart instance and is
// what orders reference, so a cart created after checkout gets a new identity.
type CartMeta struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartKey        string          `gorm:"column:cart_key;not null;uniqueIndex"`
	UserID         *uuid.UUID      `gorm:"column:user_id;type:uuid"`
	SessionID      *string         `gorm:"column:session_id"`
	CouponCode     *string         `gorm:"column:coupon_code"`
	Subtotal       decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	ShippingAmount decimal.Decimal `gorm:"column:shipping_amount;type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TotalAmount    decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartMeta) TableName() string {
	return "cart_meta"
}

func (m *CartMeta) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

// CartLine is one product/variant/size entry with a price snapshot taken when
// the line was last added to.
type CartLine struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartKey     string          `gorm:"column:cart_key;not null;index"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	VariantID   *uuid.UUID      `gorm:"column:variant_id;type:uuid"`
	Size        *string         `gorm:"column:size"`
	ProductName string          `gorm:"column:product_name;not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	LineTotal   decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *CartLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
