package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/leafshop/leafshop-backend/api/responses"
	pkgAuth "github.com/leafshop/leafshop-backend/pkg/auth"
	"github.com/leafshop/leafshop-backend/pkg/config"
	pkgerrors "github.com/leafshop/leafshop-backend/pkg/errors"
	"github.com/leafshop/leafshop-backend/pkg/logger"
	"github.com/leafshop/leafshop-backend/pkg/types"
)

// SessionHeader carries the anonymous cart session for guests.
const SessionHeader = "X-Session-Id"

const maxSessionIDLength = 128

// OptionalAuth resolves the cart owner. A bearer token wins and must be valid;
// without one the X-Session-Id header identifies a guest. Requests carrying
// neither pass through with no owner so public routes keep working.
func OptionalAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" {
				token := bearerToken(raw)
				if token == "" {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
					return
				}
				claims, err := pkgAuth.ParseAccessToken(cfg, token)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}

				userID := claims.UserID.String()
				ctx = WithUserID(ctx, userID)
				ctx = WithRole(ctx, string(claims.Role))
				ctx = WithOwner(ctx, types.UserOwner(claims.UserID))
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"user_id":    userID,
						"actor_role": string(claims.Role),
					})
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if session := strings.TrimSpace(r.Header.Get(SessionHeader)); session != "" {
				if len(session) > maxSessionIDLength {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session id too long"))
					return
				}
				owner := types.GuestOwner(session)
				ctx = WithOwner(ctx, owner)
				if logg != nil {
					ctx = logg.WithCartKey(ctx, owner.Key())
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOwner rejects requests that resolved neither a user nor a guest session.
func RequireOwner(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := OwnerFromContext(r.Context()); !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "bearer token or "+SessionHeader+" header required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects guests.
func RequireUser(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserIDFromContext(r.Context()) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(raw string) string {
	token := raw
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}

// ownerKey is the idempotency and rate-limit scope for the request.
func ownerKey(ctx context.Context) string {
	if owner, ok := OwnerFromContext(ctx); ok {
		return owner.Key()
	}
	return ""
}
