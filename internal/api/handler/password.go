package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/daap14/adminportal/internal/api/middleware"
	"github.com/daap14/adminportal/internal/api/response"
	"github.com/daap14/adminportal/internal/api/validation"
	"github.com/daap14/adminportal/internal/credential"
	"github.com/daap14/adminportal/internal/otp"
	"github.com/daap14/adminportal/internal/token"
)

// forgotPasswordMessage is returned for every well-formed reset request.
const forgotPasswordMessage = "If an account exists for this email, a reset code has been sent"

const invalidResetCodeMessage = "Invalid or expired verification code"

// CredentialFlows runs the OTP-confirmed password flows.
type CredentialFlows interface {
	RequestPasswordChange(ctx context.Context, actor *token.Claims, current, next, confirm string) (*credential.Pending, error)
	ConfirmPasswordChange(ctx context.Context, actor *token.Claims, code string) error
	RequestManagerPasswordChange(ctx context.Context, actor *token.Claims, managerEmail, newPassword string) (*credential.Pending, error)
	ConfirmManagerPasswordChange(ctx context.Context, adminEmail, managerEmail, code string) error
	RequestPasswordReset(ctx context.Context, email string) (*credential.Pending, error)
	VerifyResetCode(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type codeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type managerPasswordRequest struct {
	ManagerEmail string `json:"managerEmail"`
	NewPassword  string `json:"newPassword"`
}

type managerConfirmRequest struct {
	ManagerEmail string `json:"managerEmail"`
	Code         string `json:"code"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

type pendingResponse struct {
	ExpiresAt string `json:"expiresAt"`
}

// PasswordHandler handles password change and reset requests.
type PasswordHandler struct {
	flows     CredentialFlows
	minLength int
}

// NewPasswordHandler creates a new PasswordHandler.
func NewPasswordHandler(flows CredentialFlows, minLength int) *PasswordHandler {
	return &PasswordHandler{flows: flows, minLength: minLength}
}

// RequestChange handles POST /api/change-password/request.
func (h *PasswordHandler) RequestChange(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req changePasswordRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if validationFailed(w, validation.ValidatePasswordChange(req.CurrentPassword, req.NewPassword, req.ConfirmPassword, h.minLength), requestID) {
		return
	}

	pending, err := h.flows.RequestPasswordChange(r.Context(), middleware.GetClaims(r.Context()),
		req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		writeCredentialError(w, err, requestID)
		return
	}
	response.SuccessMessage(w, http.StatusOK, "Verification code sent to your email",
		pendingResponse{ExpiresAt: formatTime(pending.ExpiresAt)}, requestID)
}

// ConfirmChange handles POST /api/change-password/confirm.
func (h *PasswordHandler) ConfirmChange(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req codeRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if validationFailed(w, validation.ValidateCode("", "", req.Code), requestID) {
		return
	}

	if err := h.flows.ConfirmPasswordChange(r.Context(), middleware.GetClaims(r.Context()), req.Code); err != nil {
		writeCredentialError(w, err, requestID)
		return
	}
	response.SuccessMessage(w, http.StatusOK, "Password changed successfully", nil, requestID)
}

// RequestManagerChange handles POST /api/manager/change-password/request.
func (h *PasswordHandler) RequestManagerChange(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req managerPasswordRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if validationFailed(w, validation.ValidateManagerPasswordChange(req.ManagerEmail, req.NewPassword, h.minLength), requestID) {
		return
	}

	pending, err := h.flows.RequestManagerPasswordChange(r.Context(), middleware.GetClaims(r.Context()),
		req.ManagerEmail, req.NewPassword)
	if err != nil {
		writeCredentialError(w, err, requestID)
		return
	}
	response.SuccessMessage(w, http.StatusOK, "Verification code sent to your email",
		pendingResponse{ExpiresAt: formatTime(pending.ExpiresAt)}, requestID)
}

// ConfirmManagerChange handles POST /api/manager/change-password/confirm.
// The code is bound to the acting admin's email from the session.
func (h *PasswordHandler) ConfirmManagerChange(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req managerConfirmRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if validationFailed(w, validation.ValidateCode("managerEmail", req.ManagerEmail, req.Code), requestID) {
		return
	}

	claims := middleware.GetClaims(r.Context())
	if claims.Email == "" {
		writeCredentialError(w, credential.ErrNoEmail, requestID)
		return
	}
	if err := h.flows.ConfirmManagerPasswordChange(r.Context(), claims.Email, req.ManagerEmail, req.Code); err != nil {
		writeCredentialError(w, err, requestID)
		return
	}
	response.SuccessMessage(w, http.StatusOK, "Manager password changed successfully", nil, requestID)
}

// ForgotPassword handles POST /api/forgot-password. The response is the same
// whether or not the email belongs to an account.
func (h *PasswordHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req codeRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if validationFailed(w, validation.ValidateEmail("email", req.Email), requestID) {
		return
	}

	if _, err := h.flows.RequestPasswordReset(r.Context(), req.Email); err != nil &&
		!errors.Is(err, credential.ErrNotificationFailed) {
		slog.Error("password reset request failed", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Server error", requestID)
		return
	}
	response.SuccessMessage(w, http.StatusOK, forgotPasswordMessage, nil, requestID)
}

// VerifyResetCode handles POST /api/verify-reset-code. It does not consume the code.
func (h *PasswordHandler) VerifyResetCode(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req codeRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if validationFailed(w, validation.ValidateCode("email", req.Email, req.Code), requestID) {
		return
	}

	if err := h.flows.VerifyResetCode(r.Context(), req.Email, req.Code); err != nil {
		writeResetError(w, err, requestID)
		return
	}
	response.SuccessMessage(w, http.StatusOK, "Code verified", map[string]bool{"valid": true}, requestID)
}

// ResetPassword handles POST /api/reset-password.
func (h *PasswordHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req resetPasswordRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if validationFailed(w, validation.ValidateResetPassword(req.Email, req.Code, req.NewPassword, h.minLength), requestID) {
		return
	}

	if err := h.flows.ResetPassword(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		writeResetError(w, err, requestID)
		return
	}
	response.SuccessMessage(w, http.StatusOK, "Password reset successfully", nil, requestID)
}

// writeResetError maps every code failure on the unauthenticated reset
// endpoints to one response, so it never reveals whether an email has a
// pending reset.
func writeResetError(w http.ResponseWriter, err error, requestID string) {
	if errors.Is(err, otp.ErrNotFound) || errors.Is(err, otp.ErrExpired) || errors.Is(err, otp.ErrMismatch) {
		response.Err(w, http.StatusBadRequest, "INVALID_CODE", invalidResetCodeMessage, requestID)
		return
	}
	writeCredentialError(w, err, requestID)
}

func writeCredentialError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, credential.ErrInvalidInput):
		msg := strings.TrimPrefix(err.Error(), credential.ErrInvalidInput.Error()+": ")
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", msg, requestID)
	case errors.Is(err, credential.ErrPasswordMismatch):
		response.Err(w, http.StatusBadRequest, "PASSWORD_MISMATCH", "New password and confirmation do not match", requestID)
	case errors.Is(err, credential.ErrCurrentPasswordIncorrect):
		response.Err(w, http.StatusBadRequest, "CURRENT_PASSWORD_INCORRECT", "Current password is incorrect", requestID)
	case errors.Is(err, credential.ErrTargetNotFound):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Account not found", requestID)
	case errors.Is(err, credential.ErrNoEmail):
		response.Err(w, http.StatusBadRequest, "NO_EMAIL", "No email address is configured for this account", requestID)
	case errors.Is(err, credential.ErrNotificationFailed):
		response.Err(w, http.StatusInternalServerError, "NOTIFICATION_FAILED", "OTP created but email sending failed", requestID)
	case errors.Is(err, otp.ErrNotFound):
		response.Err(w, http.StatusBadRequest, "INVALID_CODE", "No pending verification code", requestID)
	case errors.Is(err, otp.ErrExpired):
		response.Err(w, http.StatusBadRequest, "CODE_EXPIRED", "Verification code has expired", requestID)
	case errors.Is(err, otp.ErrMismatch):
		response.Err(w, http.StatusBadRequest, "INVALID_CODE", "Invalid verification code", requestID)
	case errors.Is(err, otp.ErrInvalidKey):
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "Email is required", requestID)
	default:
		slog.Error("credential flow failed", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Server error", requestID)
	}
}
