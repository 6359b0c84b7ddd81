package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/daap14/adminportal/internal/api/response"
	"github.com/daap14/adminportal/internal/session"
	"github.com/daap14/adminportal/internal/token"
)

const claimsKey contextKey = "claims"

// SessionResolver turns a request's session cookie into verified claims.
type SessionResolver interface {
	Resolve(ctx context.Context, r *http.Request) (*token.Claims, error)
}

// RequireAuth is middleware that verifies the session cookie and stores the
// claims in the request context. Missing, invalid, expired or revoked
// sessions all return the same 401.
func RequireAuth(sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			claims, err := sessions.Resolve(r.Context(), r)
			if err != nil {
				if errors.Is(err, session.ErrUnauthenticated) {
					response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired session", requestID)
					return
				}
				slog.Error("failed to resolve session", "error", err, "requestId", requestID)
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Authentication failed", requestID)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaims retrieves the session claims from the request context.
func GetClaims(ctx context.Context) *token.Claims {
	if c, ok := ctx.Value(claimsKey).(*token.Claims); ok {
		return c
	}
	return nil
}
