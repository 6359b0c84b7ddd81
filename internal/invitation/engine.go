package invitation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/daap14/adminportal/internal/auth"
	"github.com/daap14/adminportal/internal/metrics"
	"github.com/daap14/adminportal/internal/password"
)

const (
	tokenBytes  = 32
	prefixChars = 8
	// createAttempts bounds retries when a concurrent invite claims the generated username.
	createAttempts = 3
)

// Options tunes the engine.
type Options struct {
	TTL               time.Duration
	MinPasswordLength int
	Now               func() time.Time
	// SuffixStart picks the first username suffix to try; defaults to random.
	SuffixStart func() int
}

// Engine issues, validates and redeems invitations.
type Engine struct {
	repo        Repository
	users       auth.UserRepository
	hasher      *password.Hasher
	ttl         time.Duration
	minPassword int
	now         func() time.Time
	suffixStart func() int
}

// NewEngine creates an Engine.
func NewEngine(repo Repository, users auth.UserRepository, hasher *password.Hasher, opts Options) *Engine {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = 8
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SuffixStart == nil {
		opts.SuffixStart = defaultSuffixStart
	}
	return &Engine{
		repo:        repo,
		users:       users,
		hasher:      hasher,
		ttl:         opts.TTL,
		minPassword: opts.MinPasswordLength,
		now:         opts.Now,
		suffixStart: opts.SuffixStart,
	}
}

// TTL returns the lifetime of a freshly issued or resent invitation.
func (e *Engine) TTL() time.Duration {
	return e.ttl
}

// Create issues an invitation for req on behalf of invitedBy.
func (e *Engine) Create(ctx context.Context, req CreateRequest, invitedBy string) (*Issued, error) {
	req, err := normalizeRequest(req)
	if err != nil {
		return nil, err
	}

	exists, err := e.users.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("checking existing user: %w", err)
	}
	if exists {
		return nil, ErrAlreadyExists
	}
	pending, err := e.repo.HasPending(ctx, req.Email, e.now())
	if err != nil {
		return nil, fmt.Errorf("checking pending invitations: %w", err)
	}
	if pending {
		return nil, ErrDuplicatePending
	}

	for attempt := 1; ; attempt++ {
		username, err := e.GenerateUniqueUsername(ctx, req.FirstName, req.LastName)
		if err != nil {
			return nil, err
		}
		raw, prefix, digest, err := e.newToken()
		if err != nil {
			return nil, err
		}

		now := e.now()
		inv := &Invitation{
			Email:       req.Email,
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			Role:        req.Role,
			Username:    username,
			TokenPrefix: prefix,
			TokenHash:   digest,
			ExpiresAt:   now.Add(e.ttl),
			InvitedBy:   invitedBy,
		}
		err = e.repo.Create(ctx, inv, now)
		if errors.Is(err, ErrUsernameTaken) && attempt < createAttempts {
			continue
		}
		if err != nil {
			return nil, err
		}

		metrics.Invitations.WithLabelValues("created").Inc()
		slog.Info("invitation created", "invitationId", inv.ID, "role", inv.Role, "invitedBy", invitedBy)
		return &Issued{Invitation: inv, RawToken: raw}, nil
	}
}

// Validate resolves a raw token to its unused, unexpired invitation.
func (e *Engine) Validate(ctx context.Context, rawToken string) (*Invitation, error) {
	rawToken = strings.TrimSpace(rawToken)
	if len(rawToken) < prefixChars {
		return nil, ErrInvalidOrExpired
	}

	candidates, err := e.repo.FindUnusedByPrefix(ctx, rawToken[:prefixChars])
	if err != nil {
		return nil, fmt.Errorf("finding invitations: %w", err)
	}

	now := e.now()
	for i := range candidates {
		inv := &candidates[i]
		if !now.Before(inv.ExpiresAt) {
			continue
		}
		ok, err := e.hasher.Verify(rawToken, inv.TokenHash)
		if err != nil {
			return nil, fmt.Errorf("comparing invitation token: %w", err)
		}
		if ok {
			return inv, nil
		}
	}
	return nil, ErrInvalidOrExpired
}

// Accept redeems rawToken, creating the user and consuming the invitation atomically.
func (e *Engine) Accept(ctx context.Context, rawToken, plaintext string) (*auth.User, error) {
	if len(plaintext) < e.minPassword {
		return nil, fmt.Errorf("%w: must be at least %d characters", ErrPasswordTooShort, e.minPassword)
	}
	if len(plaintext) > password.MaxLength {
		return nil, fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, password.MaxLength)
	}

	inv, err := e.Validate(ctx, rawToken)
	if err != nil {
		metrics.Invitations.WithLabelValues("rejected").Inc()
		return nil, err
	}

	digest, err := e.hasher.Hash(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &auth.User{
		FirstName:    inv.FirstName,
		LastName:     inv.LastName,
		Username:     inv.Username,
		Email:        inv.Email,
		Role:         inv.Role,
		PasswordHash: digest,
		IsActive:     true,
	}
	if err := e.repo.Accept(ctx, inv.ID, user, e.now()); err != nil {
		metrics.Invitations.WithLabelValues("rejected").Inc()
		return nil, err
	}

	metrics.Invitations.WithLabelValues("accepted").Inc()
	slog.Info("invitation accepted", "invitationId", inv.ID, "userId", user.ID, "role", user.Role)
	return user, nil
}

// Resend rotates the token and expiry of an unused invitation in place.
// The previous link stops working immediately.
func (e *Engine) Resend(ctx context.Context, id uuid.UUID, invitedBy string) (*Issued, error) {
	raw, prefix, digest, err := e.newToken()
	if err != nil {
		return nil, err
	}

	inv, err := e.repo.Rotate(ctx, id, prefix, digest, e.now().Add(e.ttl))
	if err != nil {
		return nil, err
	}

	metrics.Invitations.WithLabelValues("resent").Inc()
	slog.Info("invitation resent", "invitationId", inv.ID, "resentBy", invitedBy)
	return &Issued{Invitation: inv, RawToken: raw}, nil
}

// List returns every invitation, optionally filtered by derived status.
func (e *Engine) List(ctx context.Context, status string) ([]Invitation, error) {
	all, err := e.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return all, nil
	}
	now := e.now()
	filtered := []Invitation{}
	for _, inv := range all {
		if inv.Status(now) == status {
			filtered = append(filtered, inv)
		}
	}
	return filtered, nil
}

// Now returns the engine clock reading.
func (e *Engine) Now() time.Time {
	return e.now()
}

// Sweep deletes unused invitations that expired more than retention ago.
func (e *Engine) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	return e.repo.DeleteExpired(ctx, e.now().Add(-retention))
}

func (e *Engine) newToken() (raw, prefix, digest string, err error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", fmt.Errorf("generating invitation token: %w", err)
	}
	raw = hex.EncodeToString(b)
	prefix = raw[:prefixChars]

	digest, err = e.hasher.Hash(raw)
	if err != nil {
		return "", "", "", fmt.Errorf("hashing invitation token: %w", err)
	}
	return raw, prefix, digest, nil
}

func normalizeRequest(req CreateRequest) (CreateRequest, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Role = auth.NormalizeRole(req.Role)

	if req.Email == "" || req.FirstName == "" || req.LastName == "" {
		return req, fmt.Errorf("%w: email and both names are required", ErrInvalidInput)
	}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		return req, fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	if !auth.HasDashboardAccess(req.Role) {
		return req, fmt.Errorf("%w: role must be admin or manager", ErrInvalidInput)
	}
	return req, nil
}
