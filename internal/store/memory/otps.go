package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/daap14/adminportal/internal/otp"
)

type otpRepo struct{ s *Store }

func (r otpRepo) Create(_ context.Context, rec *otp.Record) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.otps {
		if existing.Key == rec.Key && !existing.Used {
			existing.Used = true
		}
	}
	rec.ID = uuid.New()
	rec.CreatedAt = r.s.now()
	cp := *rec
	r.s.otps[cp.ID] = &cp
	r.s.stamp(cp.ID)
	return nil
}

func (r otpRepo) ListUnused(_ context.Context, key otp.Key) ([]otp.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	records := []otp.Record{}
	for _, rec := range r.s.otps {
		if rec.Key == key && !rec.Used {
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return r.s.seq[records[i].ID] > r.s.seq[records[j].ID] })
	return records, nil
}

func (r otpRepo) MarkUsed(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.markOTPUsed(id)
}

// markOTPUsed flips used on an unused record. Callers hold s.mu.
func (s *Store) markOTPUsed(id uuid.UUID) error {
	rec, ok := s.otps[id]
	if !ok || rec.Used {
		return otp.ErrRecordUsed
	}
	rec.Used = true
	return nil
}

func (r otpRepo) InvalidateAll(_ context.Context, key otp.Key) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, rec := range r.s.otps {
		if rec.Key == key && !rec.Used {
			rec.Used = true
			n++
		}
	}
	return n, nil
}

func (r otpRepo) DeleteStale(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, rec := range r.s.otps {
		if rec.Used || rec.ExpiresAt.Before(cutoff) {
			delete(r.s.otps, id)
			n++
		}
	}
	return n, nil
}

// OTPRecord returns a copy of a stored record. Intended for test assertions.
func (s *Store) OTPRecord(id uuid.UUID) (otp.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.otps[id]
	if !ok {
		return otp.Record{}, false
	}
	return *rec, true
}
