package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/leafshop/leafshop-backend/api/middleware"
	pkgerrors "github.com/leafshop/leafshop-backend/pkg/errors"
	"github.com/leafshop/leafshop-backend/pkg/types"
)

// OwnerFromRequest returns the cart owner resolved by OptionalAuth.
func OwnerFromRequest(r *http.Request) (types.CartOwner, error) {
	owner, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		return types.CartOwner{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "bearer token or "+middleware.SessionHeader+" header required")
	}
	if err := owner.Validate(); err != nil {
		return types.CartOwner{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid cart owner")
	}
	return owner, nil
}

// UserIDFromRequest returns the authenticated user id; guests are rejected.
func UserIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

// ParseUUIDParam validates a path parameter.
func ParseUUIDParam(value, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name).WithDetails(map[string]any{"field": name})
	}
	return id, nil
}
