package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

const submissionColumns = `id, name, email, phone, organization, message, status, is_read, submitted_at`

func scanSubmission(row pgx.Row) (*Submission, error) {
	var s Submission
	err := row.Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.Organization, &s.Message,
		&s.Status, &s.IsRead, &s.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new submission with status active and unread.
func (r *PostgresRepository) Create(ctx context.Context, s *Submission) error {
	query := `
		INSERT INTO submissions (name, email, phone, organization, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, status, is_read, submitted_at`

	err := r.pool.QueryRow(ctx, query, s.Name, s.Email, s.Phone, s.Organization, s.Message).
		Scan(&s.ID, &s.Status, &s.IsRead, &s.SubmittedAt)
	if err != nil {
		return fmt.Errorf("inserting submission: %w", err)
	}
	return nil
}

// List retrieves submissions newest first.
func (r *PostgresRepository) List(ctx context.Context, status string) ([]Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY submitted_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	defer rows.Close()

	submissions := []Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning submission row: %w", err)
		}
		submissions = append(submissions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating submission rows: %w", err)
	}
	return submissions, nil
}

// UpdateStatus sets the status of a submission.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Submission, error) {
	return r.updateOne(ctx, `UPDATE submissions SET status = $2 WHERE id = $1 RETURNING `+submissionColumns, id, status)
}

// SetRead sets the read flag of a submission.
func (r *PostgresRepository) SetRead(ctx context.Context, id uuid.UUID, read bool) (*Submission, error) {
	return r.updateOne(ctx, `UPDATE submissions SET is_read = $2 WHERE id = $1 RETURNING `+submissionColumns, id, read)
}

func (r *PostgresRepository) updateOne(ctx context.Context, query string, args ...any) (*Submission, error) {
	s, err := scanSubmission(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating submission: %w", err)
	}
	return s, nil
}
