package otp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRecordUsed is returned by MarkUsed when the record was already consumed.
var ErrRecordUsed = errors.New("otp record already used")

// Repository provides operations on the otp_records table.
type Repository interface {
	// Create marks every unused record for rec.Key as used and inserts rec,
	// both in one transaction.
	Create(ctx context.Context, rec *Record) error
	// ListUnused returns unused records for key, newest first, expired ones included.
	ListUnused(ctx context.Context, key Key) ([]Record, error)
	// MarkUsed flips used on an unused record, or returns ErrRecordUsed.
	MarkUsed(ctx context.Context, id uuid.UUID) error
	// InvalidateAll marks every unused record for key as used.
	InvalidateAll(ctx context.Context, key Key) (int64, error)
	// DeleteStale removes used records and records that expired before cutoff.
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}
