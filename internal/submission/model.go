package submission

import (
	"time"

	"github.com/google/uuid"
)

// Submission statuses.
const (
	StatusActive   = "active"
	StatusDeleted  = "deleted"
	StatusArchived = "archived"
)

// ValidStatus reports whether s is a storable status.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusDeleted, StatusArchived:
		return true
	}
	return false
}

// Submission represents a row in the submissions table.
type Submission struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Organization string    `json:"organization"`
	Message      string    `json:"message"`
	Status       string    `json:"status"`
	IsRead       bool      `json:"isRead"`
	SubmittedAt  time.Time `json:"submittedAt"`
}
