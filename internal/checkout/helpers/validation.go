package helpers

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/leafshop/leafshop-backend/internal/catalog"
	"github.com/leafshop/leafshop-backend/pkg/db/models"
	"github.com/leafshop/leafshop-backend/pkg/enums"
	pkgerrors "github.com/leafshop/leafshop-backend/pkg/errors"
)

const (
	MaxLineQuantity = 999
	userRefPrefix   = "USER#"
	orderRefPrefix  = "ORDER#"
)

// CatalogError maps catalog lookup failures to client-facing codes, carrying
// the offending ids.
func CatalogError(err error, productID uuid.UUID, variantID *uuid.UUID) error {
	details := map[string]any{"productId": productID}
	if variantID != nil {
		details["variantId"] = *variantID
	}
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		return pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found").WithDetails(details)
	case errors.Is(err, catalog.ErrVariantNotFound):
		return pkgerrors.New(pkgerrors.CodeVariantNotFound, "product variant not found").WithDetails(details)
	default:
		return err
	}
}

// ValidateProductActive rejects inactive products.
func ValidateProductActive(product *models.Product) error {
	if product == nil || product.Active {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeProductInactive, "product is not available").
		WithDetails(map[string]any{"productId": product.ID})
}

func ValidateQuantity(quantity int) error {
	if quantity < 1 || quantity > MaxLineQuantity {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be between 1 and 999").
			WithDetails(map[string]any{"quantity": quantity})
	}
	return nil
}

// ParsePaymentMethod defaults to cash on delivery when value is blank.
func ParsePaymentMethod(value string) (enums.PaymentMethod, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return enums.PaymentMethodCOD, nil
	}
	method, err := enums.ParsePaymentMethod(value)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInvalidRequest, err, "invalid payment method")
	}
	return method, nil
}

// OrderRef builds the partitioned order identity: USER#<user>#ORDER#<order>
// for owned orders and ORDER#<order> for guest orders.
func OrderRef(userID *uuid.UUID, orderID uuid.UUID) string {
	if userID == nil || *userID == uuid.Nil {
		return orderRefPrefix + orderID.String()
	}
	return userRefPrefix + userID.String() + "#" + orderRefPrefix + orderID.String()
}

// NormalizeCouponCode uppercases and trims; blank codes become nil.
func NormalizeCouponCode(code *string) *string {
	if code == nil {
		return nil
	}
	normalized := strings.ToUpper(strings.TrimSpace(*code))
	if normalized == "" {
		return nil
	}
	return &normalized
}
