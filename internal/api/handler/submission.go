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
	"github.com/daap14/adminportal/internal/notify"
	"github.com/daap14/adminportal/internal/submission"
)

// SubmissionService stores and triages contact form submissions.
type SubmissionService interface {
	Submit(ctx context.Context, d notify.ContactDetails) (*submission.Submission, error)
	List(ctx context.Context, status string) ([]submission.Submission, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*submission.Submission, error)
	MarkRead(ctx context.Context, id uuid.UUID, read bool) (*submission.Submission, error)
}

type contactRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Organization string `json:"organization"`
	Message      string `json:"message"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type readRequest struct {
	IsRead *bool `json:"isRead"`
}

// SubmissionHandler handles contact form and submission triage requests.
type SubmissionHandler struct {
	submissions SubmissionService
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(submissions SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions}
}

// Contact handles POST /api/contact.
func (h *SubmissionHandler) Contact(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req contactRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if validationFailed(w, validation.ValidateContact(req.Name, req.Email, req.Message), requestID) {
		return
	}

	sub, err := h.submissions.Submit(r.Context(), notify.ContactDetails{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Organization: req.Organization,
		Message:      req.Message,
	})
	if err != nil {
		writeSubmissionError(w, err, requestID)
		return
	}
	response.SuccessMessage(w, http.StatusCreated, "Form submitted successfully", sub, requestID)
}

// List handles GET /api/submissions.
func (h *SubmissionHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	subs, err := h.submissions.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeSubmissionError(w, err, requestID)
		return
	}
	response.SuccessList(w, http.StatusOK, subs, len(subs), requestID)
}

// UpdateStatus handles PATCH /api/submissions/{id}/status.
func (h *SubmissionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, errs := validation.ParseID(chi.URLParam(r, "id"))
	if validationFailed(w, errs, requestID) {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	sub, err := h.submissions.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeSubmissionError(w, err, requestID)
		return
	}
	response.Success(w, http.StatusOK, sub, requestID)
}

// MarkRead handles PATCH /api/submissions/{id}/read.
func (h *SubmissionHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, errs := validation.ParseID(chi.URLParam(r, "id"))
	if validationFailed(w, errs, requestID) {
		return
	}
	var req readRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if req.IsRead == nil {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "isRead is required", requestID)
		return
	}

	sub, err := h.submissions.MarkRead(r.Context(), id, *req.IsRead)
	if err != nil {
		writeSubmissionError(w, err, requestID)
		return
	}
	response.Success(w, http.StatusOK, sub, requestID)
}

func writeSubmissionError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, submission.ErrInvalidInput):
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "Name, email and message are required", requestID)
	case errors.Is(err, submission.ErrInvalidStatus):
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"status must be one of: active, deleted, archived", requestID)
	case errors.Is(err, submission.ErrNotFound):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Submission not found", requestID)
	default:
		slog.Error("submission request failed", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Server error", requestID)
	}
}
