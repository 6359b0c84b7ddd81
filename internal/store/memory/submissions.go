package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/daap14/adminportal/internal/submission"
)

type submissionRepo struct{ s *Store }

func (r submissionRepo) Create(_ context.Context, sub *submission.Submission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub.ID = uuid.New()
	sub.Status = submission.StatusActive
	sub.IsRead = false
	sub.SubmittedAt = r.s.now()
	cp := *sub
	r.s.submissions[cp.ID] = &cp
	r.s.stamp(cp.ID)
	return nil
}

func (r submissionRepo) List(_ context.Context, status string) ([]submission.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []submission.Submission{}
	for _, sub := range r.s.submissions {
		if status == "" || sub.Status == status {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.s.seq[out[i].ID] > r.s.seq[out[j].ID] })
	return out, nil
}

func (r submissionRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) (*submission.Submission, error) {
	return r.update(id, func(sub *submission.Submission) { sub.Status = status })
}

func (r submissionRepo) SetRead(_ context.Context, id uuid.UUID, read bool) (*submission.Submission, error) {
	return r.update(id, func(sub *submission.Submission) { sub.IsRead = read })
}

func (r submissionRepo) update(id uuid.UUID, fn func(*submission.Submission)) (*submission.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.submissions[id]
	if !ok {
		return nil, submission.ErrNotFound
	}
	fn(sub)
	cp := *sub
	return &cp, nil
}
