package otp

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// OperationType tags what a one-time code authorizes.
type OperationType string

const (
	AdminPasswordChange   OperationType = "admin_password_change"
	UserPasswordChange    OperationType = "user_password_change"
	ManagerPasswordChange OperationType = "manager_password_change"
	PasswordReset         OperationType = "password_reset"
)

// Valid reports whether t is a known operation type.
func (t OperationType) Valid() bool {
	switch t {
	case AdminPasswordChange, UserPasswordChange, ManagerPasswordChange, PasswordReset:
		return true
	}
	return false
}

// Key identifies the tuple that owns at most one active code.
// Owner is the acting admin for on-behalf flows and empty otherwise.
type Key struct {
	Operation OperationType
	Owner     string
	Subject   string
}

// NewKey normalizes owner and subject (trimmed, lower-cased emails).
func NewKey(op OperationType, owner, subject string) Key {
	return Key{
		Operation: op,
		Owner:     strings.ToLower(strings.TrimSpace(owner)),
		Subject:   strings.ToLower(strings.TrimSpace(subject)),
	}
}

// Record represents a row in the otp_records table.
type Record struct {
	ID        uuid.UUID
	Key       Key
	CodeHash  string
	Payload   *string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// Issued is returned once from Create; Code is never persisted.
type Issued struct {
	ID        uuid.UUID
	Code      string
	ExpiresAt time.Time
}
