package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/daap14/adminportal/internal/token"
)

// ErrUnauthenticated is returned when a request carries no valid session.
var ErrUnauthenticated = errors.New("authentication required")

// Manager binds the token issuer to the cookie transport and the revocation list.
type Manager struct {
	issuer       *token.Issuer
	revocations  RevocationList
	secureCookie bool
}

// NewManager creates a Manager. A nil revocation list means stateless sessions.
func NewManager(issuer *token.Issuer, revocations RevocationList, secureCookie bool) *Manager {
	if revocations == nil {
		revocations = NoopRevocationList{}
	}
	return &Manager{issuer: issuer, revocations: revocations, secureCookie: secureCookie}
}

// SetCookie writes raw as the session cookie with a max-age of ttl.
func (m *Manager) SetCookie(w http.ResponseWriter, raw string, ttl time.Duration) {
	setCookie(w, raw, ttl, m.secureCookie)
}

// Resolve returns the claims of the request's session, or ErrUnauthenticated.
func (m *Manager) Resolve(ctx context.Context, r *http.Request) (*token.Claims, error) {
	return m.VerifyToken(ctx, tokenFromRequest(r))
}

// VerifyToken checks a raw token and its revocation status.
func (m *Manager) VerifyToken(ctx context.Context, raw string) (*token.Claims, error) {
	if raw == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := m.issuer.Verify(raw)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	revoked, err := m.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

// End clears the session cookie and, when a revocation list is configured,
// revokes the presented token until it would have expired anyway.
func (m *Manager) End(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	defer clearCookie(w, m.secureCookie)

	raw := tokenFromRequest(r)
	if raw == "" {
		return nil
	}
	claims, err := m.issuer.Verify(raw)
	if err != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	return m.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}
