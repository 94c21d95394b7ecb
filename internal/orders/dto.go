package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/leafshop/leafshop-backend/pkg/db/models"
	"github.com/leafshop/leafshop-backend/pkg/enums"
	"github.com/leafshop/leafshop-backend/pkg/types"
)

// OrderSummary is what checkout returns.
type OrderSummary struct {
	OrderID         uuid.UUID             `json:"orderId"`
	OrderRef        string                `json:"orderRef"`
	Status          enums.OrderStatus     `json:"status"`
	InventoryStatus enums.InventoryStatus `json:"inventoryStatus"`
	Subtotal        decimal.Decimal       `json:"subtotal"`
	ShippingAmount  decimal.Decimal       `json:"shippingAmount"`
	DiscountAmount  decimal.Decimal       `json:"discountAmount"`
	TotalAmount     decimal.Decimal       `json:"totalAmount"`
	CreatedAt       time.Time             `json:"createdAt"`
}

// OrderLineView is a frozen order line.
type OrderLineView struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"productId"`
	VariantID   *uuid.UUID      `json:"variantId,omitempty"`
	ProductName string          `json:"productName"`
	Size        *string         `json:"size,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// OrderDetail is the owner view of one order.
type OrderDetail struct {
	OrderSummary
	PaymentStatus   enums.PaymentStatus `json:"paymentStatus"`
	PaymentMethod   enums.PaymentMethod `json:"paymentMethod"`
	ShippingAddress types.Address       `json:"shippingAddress"`
	BillingAddress  *types.Address      `json:"billingAddress,omitempty"`
	CouponCode      *string             `json:"couponCode,omitempty"`
	FailureReason   *string             `json:"failureReason,omitempty"`
	Lines           []OrderLineView     `json:"lines"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// SummaryOf projects an order onto its summary.
func SummaryOf(order *models.Order) *OrderSummary {
	return &OrderSummary{
		OrderID:         order.ID,
		OrderRef:        order.OrderRef,
		Status:          order.Status,
		InventoryStatus: order.InventoryStatus,
		Subtotal:        order.Subtotal,
		ShippingAmount:  order.ShippingAmount,
		DiscountAmount:  order.DiscountAmount,
		TotalAmount:     order.TotalAmount,
		CreatedAt:       order.CreatedAt,
	}
}

func detailOf(order *models.Order) *OrderDetail {
	detail := &OrderDetail{
		OrderSummary:    *SummaryOf(order),
		PaymentStatus:   order.PaymentStatus,
		PaymentMethod:   order.PaymentMethod,
		ShippingAddress: order.ShippingAddress,
		BillingAddress:  order.BillingAddress,
		CouponCode:      order.CouponCode,
		FailureReason:   order.FailureReason,
		Lines:           make([]OrderLineView, 0, len(order.Lines)),
	}
	for _, line := range order.Lines {
		detail.Lines = append(detail.Lines, OrderLineView{
			ID:          line.ID,
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			ProductName: line.ProductName,
			Size:        line.Size,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}
	return detail
}
