package types

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const (
	userCartPrefix  = "user:"
	guestCartPrefix = "guest:"
)

var ErrInvalidOwner = errors.New("cart owner requires exactly one of user id or session id")

// CartOwner identifies whose cart is being read or checked out: an
// authenticated user or an anonymous session, never both.
type CartOwner struct {
	UserID    *uuid.UUID
	SessionID string
}

func UserOwner(id uuid.UUID) CartOwner {
	return CartOwner{UserID: &id}
}

func GuestOwner(sessionID string) CartOwner {
	return CartOwner{SessionID: strings.TrimSpace(sessionID)}
}

func (o CartOwner) Validate() error {
	hasUser := o.UserID != nil && *o.UserID != uuid.Nil
	hasSession := strings.TrimSpace(o.SessionID) != ""
	if hasUser == hasSession {
		return ErrInvalidOwner
	}
	return nil
}

func (o CartOwner) IsGuest() bool {
	return o.UserID == nil || *o.UserID == uuid.Nil
}

// Key returns the cart key ("user:<id>" or "guest:<session>").
func (o CartOwner) Key() string {
	if !o.IsGuest() {
		return userCartPrefix + o.UserID.String()
	}
	return guestCartPrefix + strings.TrimSpace(o.SessionID)
}

// SessionPtr returns the session id for guest owners and nil otherwise.
func (o CartOwner) SessionPtr() *string {
	if !o.IsGuest() {
		return nil
	}
	session := strings.TrimSpace(o.SessionID)
	return &session
}
