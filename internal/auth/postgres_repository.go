package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresAdminRepository implements AdminRepository using pgxpool.
type PostgresAdminRepository struct {
	pool *pgxpool.Pool
}

// NewAdminRepository creates a new AdminRepository backed by the given connection pool.
func NewAdminRepository(pool *pgxpool.Pool) AdminRepository {
	return &PostgresAdminRepository{pool: pool}
}

const adminColumns = `id, username, email, password, created_at`

func scanAdmin(row pgx.Row) (*Admin, error) {
	var a Admin
	if err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByUsername retrieves an admin by exact username.
func (r *PostgresAdminRepository) GetByUsername(ctx context.Context, username string) (*Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE username = $1`

	a, err := scanAdmin(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("querying admin: %w", err)
	}
	return a, nil
}

// GetByEmail retrieves an admin by case-insensitive email.
func (r *PostgresAdminRepository) GetByEmail(ctx context.Context, email string) (*Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE lower(email) = lower($1)`

	a, err := scanAdmin(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("querying admin by email: %w", err)
	}
	return a, nil
}

// UpdatePassword replaces the stored credential of an admin.
func (r *PostgresAdminRepository) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE admins SET password = $2 WHERE username = $1`, username, passwordHash)
	if err != nil {
		return fmt.Errorf("updating admin password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAdminNotFound
	}
	return nil
}

// UpdateEmail sets the email used for OTP delivery to an admin.
func (r *PostgresAdminRepository) UpdateEmail(ctx context.Context, username, email string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE admins SET email = $2 WHERE username = $1`, username, email)
	if err != nil {
		return fmt.Errorf("updating admin email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAdminNotFound
	}
	return nil
}

// Upsert inserts an admin or updates email and password when the username exists.
func (r *PostgresAdminRepository) Upsert(ctx context.Context, a *Admin) error {
	query := `
		INSERT INTO admins (username, email, password)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE
		SET email = EXCLUDED.email, password = EXCLUDED.password
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query, a.Username, a.Email, a.PasswordHash).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting admin: %w", err)
	}
	return nil
}

// PostgresUserRepository implements UserRepository using pgxpool.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository backed by the given connection pool.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, first_name, last_name, username, email, role, password_hash,
	is_active, created_at, updated_at`

// ScanUser scans a users row selected with the canonical column order.
func ScanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.Email, &u.Role,
		&u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresUserRepository) getOne(ctx context.Context, query string, arg any) (*User, error) {
	u, err := ScanUser(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by id regardless of active state.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetActiveByUsername retrieves an active user by username.
func (r *PostgresUserRepository) GetActiveByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1 AND is_active = true`, username)
}

// GetActiveByEmail retrieves an active user by case-insensitive email.
func (r *PostgresUserRepository) GetActiveByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1) AND is_active = true`,
		strings.TrimSpace(email))
}

// EmailExists reports whether any user, active or not, owns email.
func (r *PostgresUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1))`,
		strings.TrimSpace(email),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking user email: %w", err)
	}
	return exists, nil
}

// List retrieves all users ordered by creation time.
func (r *PostgresUserRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := ScanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}
	return users, nil
}

// UpdatePassword replaces a user's password hash.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Deactivate clears the active flag. Deactivating an inactive user is a no-op.
func (r *PostgresUserRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_active = false, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivating user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
