package submission

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a submission does not exist.
var ErrNotFound = errors.New("submission not found")

// ErrInvalidStatus is returned for an unknown status filter or update.
var ErrInvalidStatus = errors.New("invalid submission status")

// ErrInvalidInput is returned when a submission lacks a name, email or message.
var ErrInvalidInput = errors.New("name, email and message are required")

// Repository provides operations on the submissions table.
type Repository interface {
	Create(ctx context.Context, s *Submission) error
	// List returns submissions with the given status, or all when status is empty.
	List(ctx context.Context, status string) ([]Submission, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Submission, error)
	SetRead(ctx context.Context, id uuid.UUID, read bool) (*Submission, error)
}
