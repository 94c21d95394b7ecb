package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
	CodeRateLimit     Code = "RATE_LIMITED"
)

// Checkout and inventory codes surfaced to API clients.
const (
	CodeInvalidRequest        Code = "INVALID_REQUEST"
	CodeEmptyCart             Code = "EMPTY_CART"
	CodeProductNotFound       Code = "PRODUCT_NOT_FOUND"
	CodeProductInactive       Code = "PRODUCT_INACTIVE"
	CodeVariantNotFound       Code = "VARIANT_NOT_FOUND"
	CodeNoWarehouseAvailable  Code = "NO_WAREHOUSE_AVAILABLE"
	CodeInsufficientStock     Code = "INSUFFICIENT_STOCK"
	CodeStockAllocationFailed Code = "STOCK_ALLOCATION_FAILED"
	CodeCheckoutInProgress    Code = "CHECKOUT_IN_PROGRESS"
	CodeCouponRejected        Code = "COUPON_REJECTED"
)

// Metadata is how a Code is presented over HTTP. Server-side codes always
// answer with PublicMessage; Details only leave when DetailsAllowed is set.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:            meta(http.StatusBadRequest, "validation failed").withDetails(),
	CodeUnauthorized:          meta(http.StatusUnauthorized, "authentication required"),
	CodeForbidden:             meta(http.StatusForbidden, "access denied"),
	CodeNotFound:              meta(http.StatusNotFound, "resource not found"),
	CodeConflict:              meta(http.StatusConflict, "conflict detected"),
	CodeStateConflict:         meta(http.StatusUnprocessableEntity, "state transition disallowed").withDetails(),
	CodeIdempotency:           meta(http.StatusConflict, "idempotency key reused").withDetails(),
	CodeInternal:              meta(http.StatusInternalServerError, "internal server error").retryable(),
	CodeDependency:            meta(http.StatusServiceUnavailable, "dependency unavailable").retryable().withDetails(),
	CodeRateLimit:             meta(http.StatusTooManyRequests, "too many requests").retryable(),
	CodeInvalidRequest:        meta(http.StatusBadRequest, "invalid request").withDetails(),
	CodeEmptyCart:             meta(http.StatusBadRequest, "cart is empty"),
	CodeProductNotFound:       meta(http.StatusNotFound, "product not found").withDetails(),
	CodeProductInactive:       meta(http.StatusConflict, "product is not available").withDetails(),
	CodeVariantNotFound:       meta(http.StatusNotFound, "product variant not found").withDetails(),
	CodeNoWarehouseAvailable:  meta(http.StatusServiceUnavailable, "no warehouse available"),
	CodeInsufficientStock:     meta(http.StatusConflict, "insufficient stock").withDetails(),
	CodeStockAllocationFailed: meta(http.StatusConflict, "stock allocation failed").retryable().withDetails(),
	CodeCheckoutInProgress:    meta(http.StatusConflict, "checkout already in progress for this cart").retryable(),
	CodeCouponRejected:        meta(http.StatusUnprocessableEntity, "coupon rejected").withDetails(),
}

func meta(status int, public string) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public}
}

func (m Metadata) retryable() Metadata {
	m.Retryable = true
	return m
}

func (m Metadata) withDetails() Metadata {
	m.DetailsAllowed = true
	return m
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code of the first typed error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
