package invitation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/daap14/adminportal/internal/auth"
)

// Repository provides operations on the invitations table.
type Repository interface {
	// UsernameTaken reports whether username belongs to an admin, a user or an
	// unused invitation.
	UsernameTaken(ctx context.Context, username string) (bool, error)
	// HasPending reports whether an unused invitation for email expires after now.
	HasPending(ctx context.Context, email string, now time.Time) (bool, error)
	// Create re-checks the email against users and pending invitations and
	// inserts inv in one transaction. It returns ErrAlreadyExists,
	// ErrDuplicatePending or ErrUsernameTaken on conflict.
	Create(ctx context.Context, inv *Invitation, now time.Time) error
	// FindUnusedByPrefix returns unused invitations for a token prefix, expired ones included.
	FindUnusedByPrefix(ctx context.Context, prefix string) ([]Invitation, error)
	// Accept marks the invitation used and inserts user in one transaction.
	// It returns ErrInvalidOrExpired when the invitation is used or expired at
	// now, and ErrAlreadyExists when the user conflicts with an existing one.
	Accept(ctx context.Context, id uuid.UUID, user *auth.User, now time.Time) error
	// Rotate replaces the token and expiry of an unused invitation, or returns ErrNotFoundOrUsed.
	Rotate(ctx context.Context, id uuid.UUID, prefix, hash string, expiresAt time.Time) (*Invitation, error)
	List(ctx context.Context) ([]Invitation, error)
	// DeleteExpired removes unused invitations that expired before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
