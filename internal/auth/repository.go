package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrAdminNotFound is returned when an admins row is not found.
var ErrAdminNotFound = errors.New("admin not found")

// ErrUserNotFound is returned when a users row is not found.
var ErrUserNotFound = errors.New("user not found")

// AdminRepository provides operations on the admins table.
type AdminRepository interface {
	GetByUsername(ctx context.Context, username string) (*Admin, error)
	GetByEmail(ctx context.Context, email string) (*Admin, error)
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	UpdateEmail(ctx context.Context, username, email string) error
	// Upsert creates the admin or replaces its email and password.
	Upsert(ctx context.Context, admin *Admin) error
}

// UserRepository provides operations on the users table.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	// GetActiveByUsername ignores deactivated rows.
	GetActiveByUsername(ctx context.Context, username string) (*User, error)
	// GetActiveByEmail ignores deactivated rows.
	GetActiveByEmail(ctx context.Context, email string) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}
