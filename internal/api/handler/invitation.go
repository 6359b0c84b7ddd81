package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/daap14/adminportal/internal/api/middleware"
	"github.com/daap14/adminportal/internal/api/response"
	"github.com/daap14/adminportal/internal/api/validation"
	"github.com/daap14/adminportal/internal/auth"
	"github.com/daap14/adminportal/internal/invitation"
	"github.com/daap14/adminportal/internal/notify"
)

// InvitationEngine issues and redeems invitations.
type InvitationEngine interface {
	Create(ctx context.Context, req invitation.CreateRequest, invitedBy string) (*invitation.Issued, error)
	Validate(ctx context.Context, rawToken string) (*invitation.Invitation, error)
	Accept(ctx context.Context, rawToken, plaintext string) (*auth.User, error)
	Resend(ctx context.Context, id uuid.UUID, invitedBy string) (*invitation.Issued, error)
	List(ctx context.Context, status string) ([]invitation.Invitation, error)
	TTL() time.Duration
	Now() time.Time
}

type createInvitationRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

type acceptInvitationRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type invitationResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	Username  string `json:"username"`
	Status    string `json:"status"`
	InvitedBy string `json:"invitedBy"`
	ExpiresAt string `json:"expiresAt"`
	CreatedAt string `json:"createdAt"`
}

type inviteeResponse struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	Username  string `json:"username"`
	ExpiresAt string `json:"expiresAt"`
}

func toInvitationResponse(inv *invitation.Invitation, now time.Time) invitationResponse {
	return invitationResponse{
		ID:        inv.ID.String(),
		Email:     inv.Email,
		FirstName: inv.FirstName,
		LastName:  inv.LastName,
		Role:      inv.Role,
		Username:  inv.Username,
		Status:    inv.Status(now),
		InvitedBy: inv.InvitedBy,
		ExpiresAt: formatTime(inv.ExpiresAt),
		CreatedAt: formatTime(inv.CreatedAt),
	}
}

// InvitationHandler handles invitation requests.
type InvitationHandler struct {
	engine      InvitationEngine
	sender      notify.Sender
	frontendURL string
	minLength   int
}

// NewInvitationHandler creates a new InvitationHandler. Invitation links
// point at frontendURL.
func NewInvitationHandler(engine InvitationEngine, sender notify.Sender, frontendURL string, minLength int) *InvitationHandler {
	return &InvitationHandler{
		engine:      engine,
		sender:      sender,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		minLength:   minLength,
	}
}

// Create handles POST /api/invite.
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req createInvitationRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if validationFailed(w, validation.ValidateInvite(req.Email, req.FirstName, req.LastName, req.Role), requestID) {
		return
	}

	claims := middleware.GetClaims(r.Context())
	issued, err := h.engine.Create(r.Context(), invitation.CreateRequest{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	}, claims.Username)
	if err != nil {
		writeInvitationError(w, err, requestID)
		return
	}

	data := toInvitationResponse(issued.Invitation, h.engine.Now())
	if err := h.deliver(r.Context(), issued); err != nil {
		response.ErrWithDetails(w, http.StatusInternalServerError, "NOTIFICATION_FAILED",
			"Invitation created but email sending failed", data, requestID)
		return
	}
	response.SuccessMessage(w, http.StatusCreated, "Invitation sent successfully", data, requestID)
}

// List handles GET /api/invitations.
func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	status := r.URL.Query().Get("status")
	switch status {
	case "", invitation.StatusActive, invitation.StatusExpired, invitation.StatusUsed:
	default:
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"status must be one of: active, expired, used", requestID)
		return
	}

	invitations, err := h.engine.List(r.Context(), status)
	if err != nil {
		slog.Error("failed to list invitations", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list invitations", requestID)
		return
	}

	now := h.engine.Now()
	items := make([]invitationResponse, len(invitations))
	for i := range invitations {
		items[i] = toInvitationResponse(&invitations[i], now)
	}
	response.SuccessList(w, http.StatusOK, items, len(items), requestID)
}

// Resend handles POST /api/invitations/{id}/resend.
func (h *InvitationHandler) Resend(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, errs := validation.ParseID(chi.URLParam(r, "id"))
	if validationFailed(w, errs, requestID) {
		return
	}

	claims := middleware.GetClaims(r.Context())
	issued, err := h.engine.Resend(r.Context(), id, claims.Username)
	if err != nil {
		writeInvitationError(w, err, requestID)
		return
	}

	data := toInvitationResponse(issued.Invitation, h.engine.Now())
	if err := h.deliver(r.Context(), issued); err != nil {
		response.ErrWithDetails(w, http.StatusInternalServerError, "NOTIFICATION_FAILED",
			"Invitation updated but email sending failed", data, requestID)
		return
	}
	response.SuccessMessage(w, http.StatusOK, "Invitation resent successfully", data, requestID)
}

// Validate handles GET /api/validate-invite?token=.
func (h *InvitationHandler) Validate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	raw := r.URL.Query().Get("token")
	if strings.TrimSpace(raw) == "" {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "token is required", requestID)
		return
	}

	inv, err := h.engine.Validate(r.Context(), raw)
	if err != nil {
		writeInvitationError(w, err, requestID)
		return
	}
	response.Success(w, http.StatusOK, inviteeResponse{
		Email:     inv.Email,
		FirstName: inv.FirstName,
		LastName:  inv.LastName,
		Role:      inv.Role,
		Username:  inv.Username,
		ExpiresAt: formatTime(inv.ExpiresAt),
	}, requestID)
}

// Accept handles POST /api/accept-invite.
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req acceptInvitationRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if validationFailed(w, validation.ValidateAcceptInvite(req.Token, req.Password, h.minLength), requestID) {
		return
	}

	user, err := h.engine.Accept(r.Context(), req.Token, req.Password)
	if err != nil {
		writeInvitationError(w, err, requestID)
		return
	}
	response.SuccessMessage(w, http.StatusCreated, "Account created successfully", toUserResponse(user), requestID)
}

func (h *InvitationHandler) deliver(ctx context.Context, issued *invitation.Issued) error {
	inv := issued.Invitation
	link := h.frontendURL + "/accept-invite?token=" + url.QueryEscape(issued.RawToken)

	msg, err := notify.InviteEmail(inv.Email, inv.FirstName, inv.Role, inv.Username, link, h.engine.TTL())
	if err == nil {
		err = h.sender.Send(ctx, msg)
	}
	if err != nil {
		slog.Error("failed to send invitation email", "invitationId", inv.ID, "error", err)
	}
	return err
}

func writeInvitationError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, invitation.ErrInvalidInput), errors.Is(err, invitation.ErrPasswordTooShort):
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), requestID)
	case errors.Is(err, invitation.ErrAlreadyExists):
		response.Err(w, http.StatusConflict, "ALREADY_EXISTS", "A user with this email already exists", requestID)
	case errors.Is(err, invitation.ErrDuplicatePending):
		response.Err(w, http.StatusConflict, "DUPLICATE_PENDING", "An active invitation already exists for this email", requestID)
	case errors.Is(err, invitation.ErrInvalidOrExpired):
		response.Err(w, http.StatusBadRequest, "INVALID_OR_EXPIRED", "Invalid or expired invitation", requestID)
	case errors.Is(err, invitation.ErrNotFoundOrUsed):
		response.Err(w, http.StatusBadRequest, "NOT_FOUND_OR_USED", "Invitation not found or already used", requestID)
	case errors.Is(err, invitation.ErrUsernameGenerationExhausted):
		response.Err(w, http.StatusInternalServerError, "USERNAME_UNAVAILABLE", "Could not generate a unique username", requestID)
	default:
		slog.Error("invitation request failed", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Server error", requestID)
	}
}
