package invitation

import (
	"time"

	"github.com/google/uuid"
)

// Invitation statuses derived at read time.
const (
	StatusActive  = "active"
	StatusExpired = "expired"
	StatusUsed    = "used"
)

// Invitation represents a row in the invitations table. Only a bcrypt digest
// of the raw token is stored; TokenPrefix is a non-secret lookup key.
type Invitation struct {
	ID          uuid.UUID
	Email       string
	FirstName   string
	LastName    string
	Role        string
	Username    string
	TokenPrefix string
	TokenHash   string
	ExpiresAt   time.Time
	Used        bool
	InvitedBy   string
	CreatedAt   time.Time
}

// Status reports the lifecycle state of the invitation at now.
func (i *Invitation) Status(now time.Time) string {
	switch {
	case i.Used:
		return StatusUsed
	case !now.Before(i.ExpiresAt):
		return StatusExpired
	default:
		return StatusActive
	}
}

// CreateRequest holds the prospective identity of an invitee.
type CreateRequest struct {
	Email     string
	FirstName string
	LastName  string
	Role      string
}

// Issued is returned once from Create and Resend. RawToken is never stored.
type Issued struct {
	Invitation *Invitation
	RawToken   string
}
