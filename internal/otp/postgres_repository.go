package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

// Create supersedes unused records for the key and inserts rec in one transaction.
func (r *PostgresRepository) Create(ctx context.Context, rec *Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		UPDATE otp_records SET used = true
		WHERE operation_type = $1 AND owner_key = $2 AND subject_key = $3 AND used = false`,
		string(rec.Key.Operation), rec.Key.Owner, rec.Key.Subject,
	)
	if err != nil {
		return fmt.Errorf("superseding otp records: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO otp_records (operation_type, owner_key, subject_key, code_hash, payload, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		string(rec.Key.Operation), rec.Key.Owner, rec.Key.Subject, rec.CodeHash, rec.Payload, rec.ExpiresAt,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting otp record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing otp record: %w", err)
	}
	return nil
}

// ListUnused returns unused records for key, newest first.
func (r *PostgresRepository) ListUnused(ctx context.Context, key Key) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, operation_type, owner_key, subject_key, code_hash, payload, expires_at, used, created_at
		FROM otp_records
		WHERE operation_type = $1 AND owner_key = $2 AND subject_key = $3 AND used = false
		ORDER BY created_at DESC`,
		string(key.Operation), key.Owner, key.Subject,
	)
	if err != nil {
		return nil, fmt.Errorf("listing otp records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := ScanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning otp row: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating otp rows: %w", err)
	}
	return records, nil
}

// MarkUsed flips used on an unused record.
func (r *PostgresRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	return MarkUsedTx(ctx, r.pool, id)
}

// InvalidateAll marks every unused record for key as used.
func (r *PostgresRepository) InvalidateAll(ctx context.Context, key Key) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE otp_records SET used = true
		WHERE operation_type = $1 AND owner_key = $2 AND subject_key = $3 AND used = false`,
		string(key.Operation), key.Owner, key.Subject,
	)
	if err != nil {
		return 0, fmt.Errorf("invalidating otp records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteStale removes consumed records and records expired before cutoff.
func (r *PostgresRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM otp_records WHERE used = true OR expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting stale otp records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// MarkUsedTx consumes an unused record through db, which may be a transaction
// owned by the caller.
func MarkUsedTx(ctx context.Context, db DBTX, id uuid.UUID) error {
	tag, err := db.Exec(ctx, `UPDATE otp_records SET used = true WHERE id = $1 AND used = false`, id)
	if err != nil {
		return fmt.Errorf("marking otp record used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordUsed
	}
	return nil
}

// ScanRecord scans an otp_records row selected in canonical column order.
func ScanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var op string
	err := row.Scan(
		&rec.ID, &op, &rec.Key.Owner, &rec.Key.Subject, &rec.CodeHash,
		&rec.Payload, &rec.ExpiresAt, &rec.Used, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Key.Operation = OperationType(op)
	return &rec, nil
}
