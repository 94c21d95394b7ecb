package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/leafshop/leafshop-backend/pkg/enums"
	"github.com/leafshop/leafshop-backend/pkg/types"
)

// Order is created once per successful checkout. Totals and lines are frozen
// at creation. CartID is cleared when the order fails so the same cart can be
// checked out again.
type Order struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderRef        string                `gorm:"column:order_ref;not null;uniqueIndex"`
	UserID          *uuid.UUID            `gorm:"column:user_id;type:uuid;index"`
	SessionID       *string               `gorm:"column:session_id"`
	CartID          *uuid.UUID            `gorm:"column:cart_id;type:uuid;uniqueIndex:orders_cart_id_key"`
	CartKey         string                `gorm:"column:cart_key;not null;index"`
	Status          enums.OrderStatus     `gorm:"column:status;not null"`
	PaymentStatus   enums.PaymentStatus   `gorm:"column:payment_status;not null"`
	PaymentMethod   enums.PaymentMethod   `gorm:"column:payment_method;not null"`
	InventoryStatus enums.InventoryStatus `gorm:"column:inventory_status;not null"`
	ShippingAddress types.Address         `gorm:"column:shipping_address;type:jsonb;not null"`
	BillingAddress  *types.Address        `gorm:"column:billing_address;type:jsonb"`
	CouponCode      *string               `gorm:"column:coupon_code"`
	Subtotal        decimal.Decimal       `gorm:"column:subtotal;type:numeric(12,2);not null"`
	ShippingAmount  decimal.Decimal       `gorm:"column:shipping_amount;type:numeric(12,2);not null"`
	DiscountAmount  decimal.Decimal       `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TotalAmount     decimal.Decimal       `gorm:"column:total_amount;type:numeric(12,2);not null"`
	AssignedTo      *uuid.UUID            `gorm:"column:assigned_to;type:uuid"`
	FailureReason   *string               `gorm:"column:failure_reason"`
	Lines           []OrderLine           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderLine is a frozen copy of a cart line.
type OrderLine struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	VariantID   *uuid.UUID      `gorm:"column:variant_id;type:uuid"`
	ProductName string          `gorm:"column:product_name;not null"`
	Size        *string         `gorm:"column:size"`
	Quantity    int             `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	LineTotal   decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (l *OrderLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// InventoryReservation is the ledger row for one allocation made against an
// inventory record on behalf of an order line.
type InventoryReservation struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	OrderLineID       uuid.UUID               `gorm:"column:order_line_id;type:uuid;not null"`
	WarehouseID       uuid.UUID               `gorm:"column:warehouse_id;type:uuid;not null"`
	InventoryRecordID uuid.UUID               `gorm:"column:inventory_record_id;type:uuid;not null"`
	ProductID         uuid.UUID               `gorm:"column:product_id;type:uuid;not null"`
	VariantID         *uuid.UUID              `gorm:"column:variant_id;type:uuid"`
	Quantity          int                     `gorm:"column:quantity;not null"`
	Status            enums.ReservationStatus `gorm:"column:status;not null"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	ReleasedAt        *time.Time              `gorm:"column:released_at"`
}

func (r *InventoryReservation) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
