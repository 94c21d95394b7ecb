package checkout

import (
	"net/http"
	"strings"

	"github.com/leafshop/leafshop-backend/api/controllers"
	"github.com/leafshop/leafshop-backend/api/responses"
	"github.com/leafshop/leafshop-backend/api/validators"
	checkoutsvc "github.com/leafshop/leafshop-backend/internal/checkout"
	pkgerrors "github.com/leafshop/leafshop-backend/pkg/errors"
	"github.com/leafshop/leafshop-backend/pkg/logger"
	"github.com/leafshop/leafshop-backend/pkg/types"
)

// Addresses are checked by the checkout service so missing fields surface as
// INVALID_REQUEST rather than a generic validation failure.
type checkoutRequest struct {
	ShippingAddress *types.Address `json:"shippingAddress" validate:"-"`
	BillingAddress  *types.Address `json:"billingAddress,omitempty" validate:"-"`
	PaymentMethod   string         `json:"paymentMethod" validate:"required,max=32"`
	CouponCode      *string        `json:"couponCode,omitempty" validate:"omitempty,max=64,code"`
}

func (r checkoutRequest) toRequest(owner types.CartOwner) checkoutsvc.Request {
	req := checkoutsvc.Request{
		Owner:           owner,
		ShippingAddress: r.ShippingAddress,
		BillingAddress:  r.BillingAddress,
		PaymentMethod:   strings.TrimSpace(r.PaymentMethod),
	}
	if r.CouponCode != nil {
		if code := validators.NormalizeCode(*r.CouponCode, 64); code != "" {
			req.CouponCode = &code
		}
	}
	return req
}

// Checkout converts the caller's cart into a reserved order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		owner, err := controllers.OwnerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Checkout(r.Context(), payload.toRequest(owner))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, summary)
	}
}
