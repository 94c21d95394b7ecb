package cart

import (
	"strings"

	"github.com/google/uuid"

	cartsvc "github.com/leafshop/leafshop-backend/internal/cart"
)

type addItemRequest struct {
	ProductID uuid.UUID  `json:"productId" validate:"required"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	Size      *string    `json:"size,omitempty" validate:"omitempty,max=32"`
	Quantity  int        `json:"quantity" validate:"required,min=1,max=999"`
}

func (r addItemRequest) toInput() cartsvc.AddItemInput {
	input := cartsvc.AddItemInput{
		ProductID: r.ProductID,
		VariantID: r.VariantID,
		Quantity:  r.Quantity,
	}
	if r.Size != nil {
		if size := strings.TrimSpace(*r.Size); size != "" {
			input.Size = &size
		}
	}
	return input
}

// Quantity 0 is allowed and deletes the line.
type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0,max=999"`
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required,max=64,code"`
}
