package invitation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daap14/adminportal/internal/auth"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

const invitationColumns = `id, email, first_name, last_name, role, username, token_prefix,
	token_hash, expires_at, used, invited_by, created_at`

func scanInvitation(row pgx.Row) (*Invitation, error) {
	var inv Invitation
	err := row.Scan(
		&inv.ID, &inv.Email, &inv.FirstName, &inv.LastName, &inv.Role, &inv.Username,
		&inv.TokenPrefix, &inv.TokenHash, &inv.ExpiresAt, &inv.Used, &inv.InvitedBy, &inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// UsernameTaken checks admins, users and unused invitations.
func (r *PostgresRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	query := `
		SELECT EXISTS(SELECT 1 FROM admins WHERE username = $1)
		    OR EXISTS(SELECT 1 FROM users WHERE username = $1)
		    OR EXISTS(SELECT 1 FROM invitations WHERE username = $1 AND used = false)`

	var taken bool
	if err := r.pool.QueryRow(ctx, query, username).Scan(&taken); err != nil {
		return false, fmt.Errorf("checking username: %w", err)
	}
	return taken, nil
}

// HasPending reports whether an unused invitation for email is still valid at now.
func (r *PostgresRepository) HasPending(ctx context.Context, email string, now time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM invitations
			WHERE lower(email) = lower($1) AND used = false AND expires_at > $2)`

	var pending bool
	if err := r.pool.QueryRow(ctx, query, email, now).Scan(&pending); err != nil {
		return false, fmt.Errorf("checking pending invitation: %w", err)
	}
	return pending, nil
}

// Create serializes invitations per email with a transaction-scoped advisory
// lock, re-checks both conflicts, then inserts.
func (r *PostgresRepository) Create(ctx context.Context, inv *Invitation, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext(lower($1)))`, inv.Email); err != nil {
		return fmt.Errorf("locking invitation email: %w", err)
	}

	var userExists, pending bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1)),
		       EXISTS(SELECT 1 FROM invitations
		              WHERE lower(email) = lower($1) AND used = false AND expires_at > $2)`,
		inv.Email, now,
	).Scan(&userExists, &pending)
	if err != nil {
		return fmt.Errorf("checking invitation conflicts: %w", err)
	}
	if userExists {
		return ErrAlreadyExists
	}
	if pending {
		return ErrDuplicatePending
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO invitations (email, first_name, last_name, role, username, token_prefix,
		                         token_hash, expires_at, invited_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		inv.Email, inv.FirstName, inv.LastName, inv.Role, inv.Username, inv.TokenPrefix,
		inv.TokenHash, inv.ExpiresAt, inv.InvitedBy,
	).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("inserting invitation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing invitation: %w", err)
	}
	return nil
}

// FindUnusedByPrefix returns unused invitations whose token starts with prefix.
func (r *PostgresRepository) FindUnusedByPrefix(ctx context.Context, prefix string) ([]Invitation, error) {
	return r.query(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE token_prefix = $1 AND used = false`, prefix)
}

// Accept consumes the invitation and inserts the user; both or neither persist.
func (r *PostgresRepository) Accept(ctx context.Context, id uuid.UUID, u *auth.User, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `
		UPDATE invitations SET used = true
		WHERE id = $1 AND used = false AND expires_at > $2`, id, now)
	if err != nil {
		return fmt.Errorf("consuming invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidOrExpired
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO users (first_name, last_name, username, email, role, password_hash, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		u.FirstName, u.LastName, u.Username, u.Email, u.Role, u.PasswordHash, u.IsActive,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing invitation acceptance: %w", err)
	}
	return nil
}

// Rotate replaces token and expiry of an unused invitation.
func (r *PostgresRepository) Rotate(ctx context.Context, id uuid.UUID, prefix, hash string, expiresAt time.Time) (*Invitation, error) {
	inv, err := scanInvitation(r.pool.QueryRow(ctx, `
		UPDATE invitations
		SET token_prefix = $2, token_hash = $3, expires_at = $4
		WHERE id = $1 AND used = false
		RETURNING `+invitationColumns,
		id, prefix, hash, expiresAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFoundOrUsed
		}
		return nil, fmt.Errorf("rotating invitation token: %w", err)
	}
	return inv, nil
}

// List returns every invitation, newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Invitation, error) {
	return r.query(ctx, `SELECT `+invitationColumns+` FROM invitations ORDER BY created_at DESC`)
}

// DeleteExpired removes unused invitations that expired before cutoff.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invitations WHERE used = false AND expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting expired invitations: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]Invitation, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying invitations: %w", err)
	}
	defer rows.Close()

	invitations := []Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invitation row: %w", err)
		}
		invitations = append(invitations, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invitation rows: %w", err)
	}
	return invitations, nil
}
