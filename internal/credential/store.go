package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daap14/adminportal/internal/auth"
	"github.com/daap14/adminportal/internal/otp"
)

// Target names the principal row a staged password is committed to. Admins
// are keyed by username, users by email.
type Target struct {
	Source string
	Key    string
}

// Store commits staged credentials.
type Store interface {
	// CommitStagedPassword marks the OTP record used and writes passwordHash to
	// target in one transaction. It returns otp.ErrRecordUsed when the record
	// was consumed concurrently and ErrTargetNotFound when no row matched.
	CommitStagedPassword(ctx context.Context, otpID uuid.UUID, target Target, passwordHash string) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &PostgresStore{pool: pool}
}

// CommitStagedPassword consumes the OTP and updates the admins "password"
// column or the users "password_hash" column depending on target.Source.
func (s *PostgresStore) CommitStagedPassword(ctx context.Context, otpID uuid.UUID, target Target, passwordHash string) error {
	var query string
	switch target.Source {
	case auth.SourceAdmins:
		query = `UPDATE admins SET password = $2 WHERE username = $1`
	case auth.SourceUsers:
		query = `UPDATE users SET password_hash = $2, updated_at = NOW()
		         WHERE lower(email) = lower($1) AND is_active = true`
	default:
		return fmt.Errorf("unknown credential source %q", target.Source)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := otp.MarkUsedTx(ctx, tx, otpID); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, query, target.Key, passwordHash)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTargetNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing password change: %w", err)
	}
	return nil
}

func isRecordUsed(err error) bool {
	return errors.Is(err, otp.ErrRecordUsed)
}
