package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daap14/adminportal/internal/metrics"
	"github.com/daap14/adminportal/internal/password"
	"github.com/daap14/adminportal/internal/session"
	"github.com/daap14/adminportal/internal/token"
)

var (
	// ErrMissingCredentials is returned when username or password is absent.
	ErrMissingCredentials = errors.New("username and password are required")

	// ErrInvalidCredentials is the uniform failure for unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInsufficientRole is returned for users whose role has no dashboard access.
	ErrInsufficientRole = errors.New("access denied: insufficient role")

	// ErrTooManyAttempts is returned while a username is locked out by the login throttle.
	ErrTooManyAttempts = errors.New("too many failed login attempts")
)

// Result is a successful authentication.
type Result struct {
	Principal Principal
	Token     string
	ExpiresAt time.Time
	TTL       time.Duration
}

// Options tunes the resolver.
type Options struct {
	SessionTTL      time.Duration
	AdminSessionTTL time.Duration
	// RehashLegacy replaces plaintext or low-cost credentials after a successful login.
	RehashLegacy bool
	Limiter      session.LoginLimiter
}

// Service authenticates principals against the admins set then the users set.
type Service struct {
	admins  AdminRepository
	users   UserRepository
	hasher  *password.Hasher
	issuer  *token.Issuer
	opts    Options
	limiter session.LoginLimiter

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a new auth Service.
func NewService(admins AdminRepository, users UserRepository, hasher *password.Hasher, issuer *token.Issuer, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.AdminSessionTTL <= 0 {
		opts.AdminSessionTTL = time.Hour
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = session.NoopLoginLimiter{}
	}
	return &Service{
		admins:  admins,
		users:   users,
		hasher:  hasher,
		issuer:  issuer,
		opts:    opts,
		limiter: limiter,
	}
}

// Authenticate resolves a username/password pair. The admins set is checked
// first; an admin match with a wrong password stops the search. Unknown users
// and wrong passwords both return ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, plaintext string) (*Result, error) {
	username = strings.TrimSpace(username)
	if username == "" || plaintext == "" {
		return nil, ErrMissingCredentials
	}
	if err := s.checkThrottle(ctx, username); err != nil {
		return nil, err
	}

	admin, err := s.admins.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return s.completeAdmin(ctx, admin, plaintext, s.opts.SessionTTL)
	case !errors.Is(err, ErrAdminNotFound):
		return nil, fmt.Errorf("looking up admin: %w", err)
	}

	user, err := s.users.GetActiveByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.burnHash(plaintext)
			return nil, s.fail(ctx, username, SourceUsers)
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !HasDashboardAccess(user.Role) {
		metrics.LoginAttempts.WithLabelValues(SourceUsers, "forbidden").Inc()
		return nil, ErrInsufficientRole
	}

	ok, err := s.verify(plaintext, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.fail(ctx, username, SourceUsers)
	}

	if s.opts.RehashLegacy && s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(func(h string) error { return s.users.UpdatePassword(ctx, user.ID, h) }, plaintext, SourceUsers)
	}
	return s.succeed(ctx, username, user.principal(), s.opts.SessionTTL)
}

// AuthenticateAdmin is the narrow admins-only login with the shorter admin TTL.
func (s *Service) AuthenticateAdmin(ctx context.Context, username, plaintext string) (*Result, error) {
	username = strings.TrimSpace(username)
	if username == "" || plaintext == "" {
		return nil, ErrMissingCredentials
	}
	if err := s.checkThrottle(ctx, username); err != nil {
		return nil, err
	}

	admin, err := s.admins.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAdminNotFound) {
			s.burnHash(plaintext)
			return nil, s.fail(ctx, username, SourceAdmins)
		}
		return nil, fmt.Errorf("looking up admin: %w", err)
	}
	return s.completeAdmin(ctx, admin, plaintext, s.opts.AdminSessionTTL)
}

// ListUsers returns every users row.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.users.List(ctx)
}

// DeactivateUser prevents a user from authenticating again.
func (s *Service) DeactivateUser(ctx context.Context, id uuid.UUID) error {
	if err := s.users.Deactivate(ctx, id); err != nil {
		return err
	}
	slog.Info("user deactivated", "userId", id)
	return nil
}

func (s *Service) completeAdmin(ctx context.Context, admin *Admin, plaintext string, ttl time.Duration) (*Result, error) {
	ok, err := s.verify(plaintext, admin.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.fail(ctx, admin.Username, SourceAdmins)
	}
	if s.opts.RehashLegacy && s.hasher.NeedsRehash(admin.PasswordHash) {
		s.rehash(func(h string) error { return s.admins.UpdatePassword(ctx, admin.Username, h) }, plaintext, SourceAdmins)
	}
	return s.succeed(ctx, admin.Username, admin.principal(), ttl)
}

func (s *Service) verify(plaintext, stored string) (bool, error) {
	ok, err := s.hasher.Verify(plaintext, stored)
	if err != nil {
		if errors.Is(err, password.ErrEmptyInput) {
			return false, nil
		}
		return false, fmt.Errorf("verifying password: %w", err)
	}
	return ok, nil
}

func (s *Service) succeed(ctx context.Context, username string, p Principal, ttl time.Duration) (*Result, error) {
	raw, expiresAt, err := s.issuer.Issue(p.claims(), ttl)
	if err != nil {
		return nil, fmt.Errorf("issuing session token: %w", err)
	}
	if err := s.limiter.Reset(ctx, username); err != nil {
		slog.Warn("failed to reset login throttle", "error", err)
	}
	metrics.LoginAttempts.WithLabelValues(p.Source, metrics.OutcomeSuccess).Inc()
	slog.Info("login succeeded", "userId", p.ID, "role", p.Role, "source", p.Source)

	return &Result{Principal: p, Token: raw, ExpiresAt: expiresAt, TTL: ttl}, nil
}

func (s *Service) fail(ctx context.Context, username, source string) error {
	if err := s.limiter.RecordFailure(ctx, username); err != nil {
		slog.Warn("failed to record login failure", "error", err)
	}
	metrics.LoginAttempts.WithLabelValues(source, metrics.OutcomeFailure).Inc()
	return ErrInvalidCredentials
}

func (s *Service) checkThrottle(ctx context.Context, username string) error {
	locked, err := s.limiter.Locked(ctx, username)
	if err != nil {
		// Throttle storage outages must not lock everyone out.
		slog.Warn("login throttle unavailable", "error", err)
		return nil
	}
	if locked {
		metrics.LoginAttempts.WithLabelValues("throttle", "locked").Inc()
		return ErrTooManyAttempts
	}
	return nil
}

func (s *Service) rehash(update func(string) error, plaintext, source string) {
	digest, err := s.hasher.Hash(plaintext)
	if err != nil {
		slog.Error("failed to rehash credential", "source", source, "error", err)
		return
	}
	if err := update(digest); err != nil {
		slog.Error("failed to store rehashed credential", "source", source, "error", err)
		return
	}
	slog.Info("credential upgraded to bcrypt digest", "source", source)
}

// burnHash spends one bcrypt comparison on unknown usernames so their
// response time resembles a real password check.
func (s *Service) burnHash(plaintext string) {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("unused-placeholder-credential")
		if err == nil {
			s.dummyHash = h
		}
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(plaintext, s.dummyHash)
	}
}
