package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/daap14/adminportal/internal/metrics"
	"github.com/daap14/adminportal/internal/password"
)

var (
	// ErrNotFound is returned when no unused code exists for the tuple.
	ErrNotFound = errors.New("no pending verification code")
	// ErrExpired is returned when every unused code for the tuple has expired.
	ErrExpired = errors.New("verification code has expired")
	// ErrMismatch is returned when the supplied code matches no active record.
	ErrMismatch = errors.New("invalid verification code")
	// ErrInvalidKey is returned for an unknown operation or empty subject.
	ErrInvalidKey = errors.New("invalid verification key")
)

const (
	codeMin   = 100000
	codeRange = 900000
)

// Engine issues and checks six-digit codes. Only bcrypt digests of codes are stored.
type Engine struct {
	repo   Repository
	hasher *password.Hasher
	now    func() time.Time
}

// NewEngine creates an Engine. A nil clock defaults to time.Now.
func NewEngine(repo Repository, hasher *password.Hasher, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{repo: repo, hasher: hasher, now: now}
}

// Create issues a new code for key, superseding any unused one, and stores
// payload alongside it until the code is verified.
func (e *Engine) Create(ctx context.Context, key Key, ttl time.Duration, payload *string) (*Issued, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("otp ttl must be positive")
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	digest, err := e.hasher.Hash(code)
	if err != nil {
		return nil, fmt.Errorf("hashing code: %w", err)
	}

	rec := &Record{
		Key:       key,
		CodeHash:  digest,
		Payload:   payload,
		ExpiresAt: e.now().Add(ttl),
	}
	if err := e.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("storing code: %w", err)
	}

	return &Issued{ID: rec.ID, Code: code, ExpiresAt: rec.ExpiresAt}, nil
}

// Match finds the active record whose digest matches code without consuming it.
// Expiry is judged against the engine clock at call time.
func (e *Engine) Match(ctx context.Context, key Key, code string) (*Record, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	records, err := e.repo.ListUnused(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("listing codes: %w", err)
	}
	if len(records) == 0 {
		return nil, e.observe(key, ErrNotFound)
	}

	now := e.now()
	active := records[:0:0]
	for _, r := range records {
		if now.Before(r.ExpiresAt) {
			active = append(active, r)
		}
	}
	if len(active) == 0 {
		return nil, e.observe(key, ErrExpired)
	}

	code = strings.TrimSpace(code)
	if !wellFormed(code) {
		return nil, e.observe(key, ErrMismatch)
	}
	for i := range active {
		ok, err := e.hasher.Verify(code, active[i].CodeHash)
		if err != nil {
			return nil, fmt.Errorf("comparing code: %w", err)
		}
		if ok {
			return &active[i], nil
		}
	}
	return nil, e.observe(key, ErrMismatch)
}

// Verify matches code and consumes the record. A code verifies at most once.
func (e *Engine) Verify(ctx context.Context, key Key, code string) (*Record, error) {
	rec, err := e.Match(ctx, key, code)
	if err != nil {
		return nil, err
	}
	if err := e.repo.MarkUsed(ctx, rec.ID); err != nil {
		if errors.Is(err, ErrRecordUsed) {
			return nil, e.observe(key, ErrNotFound)
		}
		return nil, fmt.Errorf("consuming code: %w", err)
	}
	rec.Used = true
	metrics.OTPVerifications.WithLabelValues(string(key.Operation), metrics.OutcomeSuccess).Inc()
	return rec, nil
}

// Consumed records a successful verification performed by a caller that
// marks the record used inside its own transaction.
func (e *Engine) Consumed(key Key) {
	metrics.OTPVerifications.WithLabelValues(string(key.Operation), metrics.OutcomeSuccess).Inc()
}

// Clear invalidates every unused code for key.
func (e *Engine) Clear(ctx context.Context, key Key) error {
	if _, err := e.repo.InvalidateAll(ctx, key); err != nil {
		return fmt.Errorf("clearing codes: %w", err)
	}
	return nil
}

// Sweep deletes consumed records and records expired at the current time.
func (e *Engine) Sweep(ctx context.Context) (int64, error) {
	return e.repo.DeleteStale(ctx, e.now())
}

func (e *Engine) observe(key Key, err error) error {
	outcome := "mismatch"
	switch {
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrExpired):
		outcome = "expired"
	}
	metrics.OTPVerifications.WithLabelValues(string(key.Operation), outcome).Inc()
	return err
}

func validateKey(key Key) error {
	if !key.Operation.Valid() || key.Subject == "" {
		return ErrInvalidKey
	}
	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

func wellFormed(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
