package middleware

import (
	"net/http"

	"github.com/daap14/adminportal/internal/api/response"
	"github.com/daap14/adminportal/internal/auth"
)

// RequireRole returns middleware that rejects sessions whose role is not in
// roles with 403 and message. It must run after RequireAuth.
func RequireRole(message string, roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[auth.NormalizeRole(r)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			claims := GetClaims(r.Context())
			if claims == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", requestID)
				return
			}

			if !allowed[auth.NormalizeRole(claims.Role)] {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", message, requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdminRole admits admin sessions only.
func RequireAdminRole() func(http.Handler) http.Handler {
	return RequireRole("Admin access required", auth.RoleAdmin)
}

// RequireAdminOrManager admits admin and manager sessions.
func RequireAdminOrManager() func(http.Handler) http.Handler {
	return RequireRole("Admin or Manager access required", auth.RoleAdmin, auth.RoleManager)
}
