package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/leafshop/leafshop-backend/internal/checkout/helpers"
	"github.com/leafshop/leafshop-backend/pkg/db/models"
)

// AddItemInput is one add-to-cart request.
type AddItemInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Size      *string
	Quantity  int
}

// LineView is the client view of a cart line.
type LineView struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"productId"`
	VariantID   *uuid.UUID      `json:"variantId,omitempty"`
	Size        *string         `json:"size,omitempty"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// Summary is the cart as returned to clients.
type Summary struct {
	CartID         *uuid.UUID      `json:"cartId,omitempty"`
	CartKey        string          `json:"cartKey"`
	Lines          []LineView      `json:"lines"`
	ItemCount      int             `json:"itemCount"`
	CouponCode     *string         `json:"couponCode,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingAmount decimal.Decimal `json:"shippingAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
}

func newSummary(cartKey string, meta *models.CartMeta, lines []models.CartLine, totals helpers.Totals) *Summary {
	summary := &Summary{
		CartKey:        cartKey,
		Lines:          make([]LineView, 0, len(lines)),
		Subtotal:       totals.Subtotal,
		ShippingAmount: totals.Shipping,
		DiscountAmount: totals.Discount,
		TotalAmount:    totals.Total,
	}
	if meta != nil {
		id := meta.ID
		summary.CartID = &id
		summary.CouponCode = meta.CouponCode
	}
	for _, line := range lines {
		summary.ItemCount += line.Quantity
		summary.Lines = append(summary.Lines, LineView{
			ID:          line.ID,
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			Size:        line.Size,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}
	return summary
}
