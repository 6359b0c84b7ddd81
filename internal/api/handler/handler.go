package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/daap14/adminportal/internal/api/response"
	"github.com/daap14/adminportal/internal/api/validation"
)

const (
	maxBodyBytes = 1 << 20
	timeLayout   = "2006-01-02T15:04:05Z"
)

// decodeJSON reads a bounded JSON body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, requestID string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return false
	}
	return true
}

func validationFailed(w http.ResponseWriter, errs []validation.FieldError, requestID string) bool {
	if len(errs) == 0 {
		return false
	}
	response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", errs[0].Message, errs, requestID)
	return true
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
