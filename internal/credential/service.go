package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/daap14/adminportal/internal/auth"
	"github.com/daap14/adminportal/internal/notify"
	"github.com/daap14/adminportal/internal/otp"
	"github.com/daap14/adminportal/internal/password"
	"github.com/daap14/adminportal/internal/token"
)

var (
	// ErrInvalidInput wraps every input validation failure.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPasswordMismatch is returned when the new password and its confirmation differ.
	ErrPasswordMismatch = errors.New("new password and confirmation do not match")
	// ErrCurrentPasswordIncorrect is returned when the supplied current password is wrong.
	ErrCurrentPasswordIncorrect = errors.New("current password is incorrect")
	// ErrTargetNotFound is returned when the principal whose password changes does not exist.
	ErrTargetNotFound = errors.New("account not found")
	// ErrNoEmail is returned when a principal has no email to receive a code.
	ErrNoEmail = errors.New("no email address is configured for this account")
	// ErrNotificationFailed is returned when the code was stored but could not be emailed.
	ErrNotificationFailed = errors.New("verification code could not be delivered")
)

// Options tunes the flows.
type Options struct {
	OTPTTL            time.Duration
	ResetTTL          time.Duration
	MinPasswordLength int
	Now               func() time.Time
}

// Service implements password change and reset flows on top of the OTP engine.
// New password hashes are staged in the OTP payload and only written once the
// code is confirmed.
type Service struct {
	admins   auth.AdminRepository
	users    auth.UserRepository
	otps     *otp.Engine
	store    Store
	hasher   *password.Hasher
	sender   notify.Sender
	otpTTL   time.Duration
	resetTTL time.Duration
	minLen   int
	now      func() time.Time
}

// NewService creates a credential Service.
func NewService(admins auth.AdminRepository, users auth.UserRepository, otps *otp.Engine, store Store,
	hasher *password.Hasher, sender notify.Sender, opts Options) *Service {
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = 5 * time.Minute
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = 10 * time.Minute
	}
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = 8
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		admins:   admins,
		users:    users,
		otps:     otps,
		store:    store,
		hasher:   hasher,
		sender:   sender,
		otpTTL:   opts.OTPTTL,
		resetTTL: opts.ResetTTL,
		minLen:   opts.MinPasswordLength,
		now:      opts.Now,
	}
}

// Pending describes an issued code.
type Pending struct {
	ExpiresAt time.Time
}

// --- Manager password change (admin on behalf of a manager) ---

// StageManagerPasswordChange stores newHash behind a code bound to
// (adminEmail, managerEmail). The manager must exist and be active.
func (s *Service) StageManagerPasswordChange(ctx context.Context, adminEmail, managerEmail, newHash string) (*otp.Issued, error) {
	adminEmail = strings.TrimSpace(adminEmail)
	if adminEmail == "" {
		return nil, ErrNoEmail
	}
	manager, err := s.users.GetActiveByEmail(ctx, managerEmail)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return nil, ErrTargetNotFound
		}
		return nil, fmt.Errorf("looking up manager: %w", err)
	}
	if auth.NormalizeRole(manager.Role) != auth.RoleManager {
		return nil, ErrTargetNotFound
	}

	key := otp.NewKey(otp.ManagerPasswordChange, adminEmail, managerEmail)
	return s.otps.Create(ctx, key, s.otpTTL, &newHash)
}

// RequestManagerPasswordChange hashes newPassword, stages it and emails the
// code to the acting admin.
func (s *Service) RequestManagerPasswordChange(ctx context.Context, actor *token.Claims, managerEmail, newPassword string) (*Pending, error) {
	if err := s.checkLength(newPassword); err != nil {
		return nil, err
	}
	if strings.TrimSpace(managerEmail) == "" {
		return nil, fmt.Errorf("%w: manager email is required", ErrInvalidInput)
	}
	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	issued, err := s.StageManagerPasswordChange(ctx, actor.Email, managerEmail, digest)
	if err != nil {
		return nil, err
	}

	slog.Info("manager password change requested", "actorId", actor.Subject)
	return s.deliverCode(ctx, actor.Email, "Confirm manager password change",
		"Use this code to confirm the password change for "+strings.TrimSpace(managerEmail)+".",
		issued, s.otpTTL)
}

// ConfirmManagerPasswordChange verifies code and commits the staged hash to
// the manager row in the same transaction that consumes the code.
func (s *Service) ConfirmManagerPasswordChange(ctx context.Context, adminEmail, managerEmail, code string) error {
	key := otp.NewKey(otp.ManagerPasswordChange, adminEmail, managerEmail)
	target := Target{Source: auth.SourceUsers, Key: key.Subject}

	if err := s.commitStaged(ctx, key, code, target); err != nil {
		return err
	}
	slog.Info("manager password changed", "by", key.Owner)
	s.notifyChanged(ctx, key.Subject, key.Subject)
	return nil
}

// --- Self-service password change ---

// RequestPasswordChange verifies the current password of the session
// principal, stages the new hash and emails a code to the principal.
func (s *Service) RequestPasswordChange(ctx context.Context, actor *token.Claims, current, next, confirm string) (*Pending, error) {
	if current == "" || next == "" {
		return nil, fmt.Errorf("%w: current and new password are required", ErrInvalidInput)
	}
	if next != confirm {
		return nil, ErrPasswordMismatch
	}
	if err := s.checkLength(next); err != nil {
		return nil, err
	}

	stored, email, err := s.loadSelf(ctx, actor)
	if err != nil {
		return nil, err
	}
	ok, err := s.hasher.Verify(current, stored)
	if err != nil && !errors.Is(err, password.ErrEmptyInput) {
		return nil, fmt.Errorf("verifying current password: %w", err)
	}
	if !ok {
		return nil, ErrCurrentPasswordIncorrect
	}
	if email == "" {
		return nil, ErrNoEmail
	}

	digest, err := s.hasher.Hash(next)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	issued, err := s.otps.Create(ctx, selfKey(actor, email), s.otpTTL, &digest)
	if err != nil {
		return nil, err
	}

	return s.deliverCode(ctx, email, "Confirm your password change",
		"Use this code to confirm your password change.", issued, s.otpTTL)
}

// ConfirmPasswordChange commits the staged password of the session principal.
func (s *Service) ConfirmPasswordChange(ctx context.Context, actor *token.Claims, code string) error {
	_, email, err := s.loadSelf(ctx, actor)
	if err != nil {
		return err
	}
	if email == "" {
		return ErrNoEmail
	}

	target := Target{Source: actor.Source, Key: email}
	if actor.Source == auth.SourceAdmins {
		target.Key = actor.Username
	}
	if err := s.commitStaged(ctx, selfKey(actor, email), code, target); err != nil {
		return err
	}
	slog.Info("password changed", "userId", actor.Subject, "source", actor.Source)
	s.notifyChanged(ctx, email, actor.Username)
	return nil
}

// --- Password reset ---

// RequestPasswordReset emails a reset code when email belongs to an admin or
// an active user. Unknown emails succeed silently so callers cannot discover accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (*Pending, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	if _, err := s.resolveByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrTargetNotFound) {
			slog.Info("password reset requested for unknown email")
			return &Pending{ExpiresAt: s.now().Add(s.resetTTL)}, nil
		}
		return nil, err
	}

	issued, err := s.otps.Create(ctx, otp.NewKey(otp.PasswordReset, "", email), s.resetTTL, nil)
	if err != nil {
		return nil, err
	}
	return s.deliverCode(ctx, email, "Password reset code",
		"Use this code to reset your password.", issued, s.resetTTL)
}

// VerifyResetCode checks code without consuming it.
func (s *Service) VerifyResetCode(ctx context.Context, email, code string) error {
	_, err := s.otps.Match(ctx, otp.NewKey(otp.PasswordReset, "", email), code)
	return err
}

// ResetPassword commits newPassword to whichever credential set owns email,
// then clears every outstanding reset code for it.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if err := s.checkLength(newPassword); err != nil {
		return err
	}
	key := otp.NewKey(otp.PasswordReset, "", email)

	rec, err := s.otps.Match(ctx, key, code)
	if err != nil {
		return err
	}
	target, err := s.resolveByEmail(ctx, email)
	if err != nil {
		return err
	}
	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	if err := s.store.CommitStagedPassword(ctx, rec.ID, target, digest); err != nil {
		if isRecordUsed(err) {
			return otp.ErrNotFound
		}
		return err
	}
	s.otps.Consumed(key)
	if err := s.otps.Clear(ctx, key); err != nil {
		slog.Warn("failed to clear reset codes", "error", err)
	}

	slog.Info("password reset completed", "source", target.Source)
	s.notifyChanged(ctx, key.Subject, target.Key)
	return nil
}

// --- helpers ---

func (s *Service) commitStaged(ctx context.Context, key otp.Key, code string, target Target) error {
	rec, err := s.otps.Match(ctx, key, code)
	if err != nil {
		return err
	}
	if rec.Payload == nil || *rec.Payload == "" {
		return fmt.Errorf("verification record %s carries no staged password", rec.ID)
	}
	if err := s.store.CommitStagedPassword(ctx, rec.ID, target, *rec.Payload); err != nil {
		if isRecordUsed(err) {
			return otp.ErrNotFound
		}
		return err
	}
	s.otps.Consumed(key)
	return nil
}

func (s *Service) loadSelf(ctx context.Context, actor *token.Claims) (stored, email string, err error) {
	switch actor.Source {
	case auth.SourceAdmins:
		a, err := s.admins.GetByUsername(ctx, actor.Username)
		if err != nil {
			if errors.Is(err, auth.ErrAdminNotFound) {
				return "", "", ErrTargetNotFound
			}
			return "", "", fmt.Errorf("looking up admin: %w", err)
		}
		if a.Email != nil {
			email = strings.TrimSpace(*a.Email)
		}
		return a.PasswordHash, email, nil
	case auth.SourceUsers:
		u, err := s.users.GetActiveByEmail(ctx, actor.Email)
		if err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				return "", "", ErrTargetNotFound
			}
			return "", "", fmt.Errorf("looking up user: %w", err)
		}
		return u.PasswordHash, u.Email, nil
	}
	return "", "", ErrTargetNotFound
}

func (s *Service) resolveByEmail(ctx context.Context, email string) (Target, error) {
	a, err := s.admins.GetByEmail(ctx, email)
	if err == nil {
		return Target{Source: auth.SourceAdmins, Key: a.Username}, nil
	}
	if !errors.Is(err, auth.ErrAdminNotFound) {
		return Target{}, fmt.Errorf("looking up admin: %w", err)
	}

	u, err := s.users.GetActiveByEmail(ctx, email)
	if err == nil {
		return Target{Source: auth.SourceUsers, Key: u.Email}, nil
	}
	if errors.Is(err, auth.ErrUserNotFound) {
		return Target{}, ErrTargetNotFound
	}
	return Target{}, fmt.Errorf("looking up user: %w", err)
}

func (s *Service) checkLength(pw string) error {
	if len(pw) < s.minLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, s.minLen)
	}
	if len(pw) > password.MaxLength {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, password.MaxLength)
	}
	return nil
}

func (s *Service) deliverCode(ctx context.Context, to, title, intro string, issued *otp.Issued, ttl time.Duration) (*Pending, error) {
	pending := &Pending{ExpiresAt: issued.ExpiresAt}
	msg, err := notify.OTPEmail(to, title, intro, issued.Code, ttl)
	if err != nil {
		return pending, fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		slog.Error("failed to deliver verification code", "otpId", issued.ID, "error", err)
		return pending, fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	return pending, nil
}

func (s *Service) notifyChanged(ctx context.Context, to, username string) {
	if to == "" {
		return
	}
	msg, err := notify.PasswordChangedEmail(to, username, s.now())
	if err == nil {
		err = s.sender.Send(ctx, msg)
	}
	if err != nil {
		slog.Warn("failed to send password change notice", "error", err)
	}
}

func selfKey(actor *token.Claims, email string) otp.Key {
	op := otp.UserPasswordChange
	if actor.Source == auth.SourceAdmins {
		op = otp.AdminPasswordChange
	}
	return otp.NewKey(op, "", email)
}
