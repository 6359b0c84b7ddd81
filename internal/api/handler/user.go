package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/daap14/adminportal/internal/api/middleware"
	"github.com/daap14/adminportal/internal/api/response"
	"github.com/daap14/adminportal/internal/api/validation"
	"github.com/daap14/adminportal/internal/auth"
)

// UserDirectory lists and deactivates users.
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]auth.User, error)
	DeactivateUser(ctx context.Context, id uuid.UUID) error
}

type userResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:        u.ID.String(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
		Email:     u.Email,
		Role:      auth.NormalizeRole(u.Role),
		IsActive:  u.IsActive,
		CreatedAt: formatTime(u.CreatedAt),
		UpdatedAt: formatTime(u.UpdatedAt),
	}
}

// UserHandler handles user management requests.
type UserHandler struct {
	users UserDirectory
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users UserDirectory) *UserHandler {
	return &UserHandler{users: users}
}

// List handles GET /api/users. Password digests are never returned.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		slog.Error("failed to list users", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list users", requestID)
		return
	}

	items := make([]userResponse, len(users))
	for i := range users {
		items[i] = toUserResponse(&users[i])
	}
	response.SuccessList(w, http.StatusOK, items, len(items), requestID)
}

// Deactivate handles DELETE /api/users/{id}.
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, errs := validation.ParseID(chi.URLParam(r, "id"))
	if validationFailed(w, errs, requestID) {
		return
	}
	if claims := middleware.GetClaims(r.Context()); claims != nil && claims.Subject == id.String() {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "You cannot deactivate your own account", requestID)
		return
	}

	if err := h.users.DeactivateUser(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
			return
		}
		slog.Error("failed to deactivate user", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to deactivate user", requestID)
		return
	}
	response.NoContent(w)
}
