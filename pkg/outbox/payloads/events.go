package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderCreatedEvent is emitted once an order's stock is fully reserved.
type OrderCreatedEvent struct {
	OrderID        uuid.UUID       `json:"order_id"`
	OrderRef       string          `json:"order_ref"`
	CartID         *uuid.UUID      `json:"cart_id,omitempty"`
	CartKey        string          `json:"cart_key"`
	UserID         *uuid.UUID      `json:"user_id,omitempty"`
	CouponCode     *string         `json:"coupon_code,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingAmount decimal.Decimal `json:"shipping_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	LineCount      int             `json:"line_count"`
	UnitCount      int             `json:"unit_count"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ReservationReleasedEvent is emitted when an order's reservations are handed
// back to stock, either by checkout compensation or by the pending sweeper.
type ReservationReleasedEvent struct {
	OrderID       uuid.UUID  `json:"order_id"`
	OrderRef      string     `json:"order_ref"`
	CartID        *uuid.UUID `json:"cart_id,omitempty"`
	CartKey       string     `json:"cart_key"`
	UserID        *uuid.UUID `json:"user_id,omitempty"`
	Reason        string     `json:"reason"`
	ReleasedUnits int        `json:"released_units"`
	ReleasedAt    time.Time  `json:"released_at"`
}
