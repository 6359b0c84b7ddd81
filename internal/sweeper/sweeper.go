package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/daap14/adminportal/internal/metrics"
)

// OTPStore deletes used and expired verification codes.
type OTPStore interface {
	Sweep(ctx context.Context) (int64, error)
}

// InvitationStore deletes unused invitations that expired more than retention ago.
type InvitationStore interface {
	Sweep(ctx context.Context, retention time.Duration) (int64, error)
}

// Sweeper periodically removes dead verification codes and stale invitations.
type Sweeper struct {
	otps        OTPStore
	invitations InvitationStore
	interval    time.Duration
	retention   time.Duration
}

// New creates a new Sweeper.
func New(otps OTPStore, invitations InvitationStore, interval, retention time.Duration) *Sweeper {
	return &Sweeper{
		otps:        otps,
		invitations: invitations,
		interval:    interval,
		retention:   retention,
	}
}

// Start begins the sweep loop. It blocks until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	slog.Info("sweeper started", "interval", s.interval.String(), "inviteRetention", s.retention.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep of both tables. Failures are logged and
// retried on the next tick.
func (s *Sweeper) RunOnce(ctx context.Context) {
	if n, err := s.otps.Sweep(ctx); err != nil {
		slog.Error("sweeper: failed to delete otp records", "error", err)
	} else if n > 0 {
		metrics.SweptRows.WithLabelValues("otp_records").Add(float64(n))
		slog.Debug("sweeper: deleted otp records", "count", n)
	}

	if ctx.Err() != nil {
		return
	}

	if n, err := s.invitations.Sweep(ctx, s.retention); err != nil {
		slog.Error("sweeper: failed to delete invitations", "error", err)
	} else if n > 0 {
		metrics.SweptRows.WithLabelValues("invitations").Add(float64(n))
		slog.Debug("sweeper: deleted expired invitations", "count", n)
	}
}
