package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/daap14/adminportal/internal/token"
)

// Roles carried in session claims and stored on users rows.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
)

// Source tags identify which credential set authenticated a session.
const (
	SourceAdmins = "admins"
	SourceUsers  = "users"
)

// Admin represents a row in the admins table. Admins are provisioned out of
// band and keep their credential in the legacy "password" column.
type Admin struct {
	ID           uuid.UUID
	Username     string
	Email        *string
	PasswordHash string
	CreatedAt    time.Time
}

// User represents a row in the users table (managers and invited admins).
type User struct {
	ID           uuid.UUID
	FirstName    string
	LastName     string
	Username     string
	Email        string
	Role         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the sanitized projection of an authenticated identity.
type Principal struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	Source    string `json:"source"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// PrincipalFromClaims rebuilds the projection carried by a verified token.
func PrincipalFromClaims(c *token.Claims) Principal {
	return Principal{
		ID:        c.Subject,
		Username:  c.Username,
		Email:     c.Email,
		Role:      c.Role,
		Source:    c.Source,
		FirstName: c.FirstName,
		LastName:  c.LastName,
	}
}

func (a *Admin) principal() Principal {
	p := Principal{
		ID:       a.ID.String(),
		Username: a.Username,
		Role:     RoleAdmin,
		Source:   SourceAdmins,
	}
	if a.Email != nil {
		p.Email = *a.Email
	}
	return p
}

func (u *User) principal() Principal {
	return Principal{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		Role:      NormalizeRole(u.Role),
		Source:    SourceUsers,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// NormalizeRole lower-cases and trims a stored role value.
func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// HasDashboardAccess reports whether role may sign in to the dashboard.
func HasDashboardAccess(role string) bool {
	switch NormalizeRole(role) {
	case RoleAdmin, RoleManager:
		return true
	}
	return false
}

func (p Principal) claims() token.Claims {
	c := token.Claims{
		Username:  p.Username,
		Email:     p.Email,
		Role:      p.Role,
		Source:    p.Source,
		FirstName: p.FirstName,
		LastName:  p.LastName,
	}
	c.Subject = p.ID
	return c
}
