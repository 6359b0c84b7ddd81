package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/daap14/adminportal/internal/api/middleware"
	"github.com/daap14/adminportal/internal/api/response"
	"github.com/daap14/adminportal/internal/api/validation"
	"github.com/daap14/adminportal/internal/auth"
)

// Authenticator resolves credentials to a signed session.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*auth.Result, error)
	AuthenticateAdmin(ctx context.Context, username, password string) (*auth.Result, error)
}

// SessionWriter writes and ends the session cookie.
type SessionWriter interface {
	SetCookie(w http.ResponseWriter, raw string, ttl time.Duration)
	End(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User      auth.Principal `json:"user"`
	Role      string         `json:"role"`
	ExpiresAt string         `json:"expiresAt"`
}

// AuthHandler handles login, logout and session introspection.
type AuthHandler struct {
	authn    Authenticator
	sessions SessionWriter
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authn Authenticator, sessions SessionWriter) *AuthHandler {
	return &AuthHandler{authn: authn, sessions: sessions}
}

// UnifiedLogin handles POST /api/unified-login.
func (h *AuthHandler) UnifiedLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.authn.Authenticate)
}

// AdminLogin handles POST /api/admin-login.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.authn.AuthenticateAdmin)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request,
	authenticate func(ctx context.Context, username, password string) (*auth.Result, error)) {
	requestID := middleware.GetRequestID(r.Context())

	var req loginRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if validationFailed(w, validation.ValidateLogin(req.Username, req.Password), requestID) {
		return
	}

	res, err := authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingCredentials):
			response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "Username and password are required", requestID)
		case errors.Is(err, auth.ErrInvalidCredentials):
			response.Err(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", requestID)
		case errors.Is(err, auth.ErrInsufficientRole):
			response.Err(w, http.StatusForbidden, "FORBIDDEN", "Access denied. Insufficient permissions.", requestID)
		case errors.Is(err, auth.ErrTooManyAttempts):
			response.Err(w, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "Too many failed login attempts. Try again later.", requestID)
		default:
			slog.Error("login failed", "error", err, "requestId", requestID)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Server error during login", requestID)
		}
		return
	}

	h.sessions.SetCookie(w, res.Token, res.TTL)
	response.SuccessMessage(w, http.StatusOK, "Login successful", loginResponse{
		User:      res.Principal,
		Role:      res.Principal.Role,
		ExpiresAt: formatTime(res.ExpiresAt),
	}, requestID)
}

// CurrentUser handles GET /api/current-user.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", requestID)
		return
	}
	response.Success(w, http.StatusOK, map[string]any{"user": auth.PrincipalFromClaims(claims)}, requestID)
}

// Logout handles POST /api/logout. It always clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	if err := h.sessions.End(r.Context(), w, r); err != nil {
		slog.Warn("failed to revoke session on logout", "error", err, "requestId", requestID)
	}
	response.SuccessMessage(w, http.StatusOK, "Logged out successfully", nil, requestID)
}
