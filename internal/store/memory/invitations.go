package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/daap14/adminportal/internal/auth"
	"github.com/daap14/adminportal/internal/invitation"
)

var errDuplicateUser = errors.New("duplicate user")

type invitationRepo struct{ s *Store }

func (r invitationRepo) UsernameTaken(_ context.Context, username string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.usernameTaken(username), nil
}

// usernameTaken checks admins, users and unused invitations. Callers hold s.mu.
func (s *Store) usernameTaken(username string) bool {
	for _, a := range s.admins {
		if a.Username == username {
			return true
		}
	}
	for _, u := range s.users {
		if u.Username == username {
			return true
		}
	}
	for _, inv := range s.invitations {
		if !inv.Used && inv.Username == username {
			return true
		}
	}
	return false
}

func (r invitationRepo) HasPending(_ context.Context, email string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.hasPending(email, now), nil
}

func (s *Store) hasPending(email string, now time.Time) bool {
	for _, inv := range s.invitations {
		if !inv.Used && sameEmail(inv.Email, email) && now.Before(inv.ExpiresAt) {
			return true
		}
	}
	return false
}

func (r invitationRepo) Create(_ context.Context, inv *invitation.Invitation, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if sameEmail(u.Email, inv.Email) {
			return invitation.ErrAlreadyExists
		}
	}
	if r.s.hasPending(inv.Email, now) {
		return invitation.ErrDuplicatePending
	}
	for _, existing := range r.s.invitations {
		if !existing.Used && existing.Username == inv.Username {
			return invitation.ErrUsernameTaken
		}
	}
	inv.ID = uuid.New()
	inv.CreatedAt = now
	cp := *inv
	r.s.invitations[cp.ID] = &cp
	r.s.stamp(cp.ID)
	return nil
}

func (r invitationRepo) FindUnusedByPrefix(_ context.Context, prefix string) ([]invitation.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []invitation.Invitation{}
	for _, inv := range r.s.invitations {
		if !inv.Used && inv.TokenPrefix == prefix {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r invitationRepo) Accept(_ context.Context, id uuid.UUID, user *auth.User, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invitations[id]
	if !ok || inv.Used || !now.Before(inv.ExpiresAt) {
		return invitation.ErrInvalidOrExpired
	}
	if err := r.s.insertUser(user); err != nil {
		if errors.Is(err, errDuplicateUser) {
			return invitation.ErrAlreadyExists
		}
		return err
	}
	inv.Used = true
	return nil
}

func (r invitationRepo) Rotate(_ context.Context, id uuid.UUID, prefix, hash string, expiresAt time.Time) (*invitation.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invitations[id]
	if !ok || inv.Used {
		return nil, invitation.ErrNotFoundOrUsed
	}
	inv.TokenPrefix, inv.TokenHash, inv.ExpiresAt = prefix, hash, expiresAt
	cp := *inv
	return &cp, nil
}

func (r invitationRepo) List(_ context.Context) ([]invitation.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]invitation.Invitation, 0, len(r.s.invitations))
	for _, inv := range r.s.invitations {
		out = append(out, *inv)
	}
	sort.Slice(out, func(i, j int) bool { return r.s.seq[out[i].ID] > r.s.seq[out[j].ID] })
	return out, nil
}

func (r invitationRepo) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, inv := range r.s.invitations {
		if !inv.Used && inv.ExpiresAt.Before(cutoff) {
			delete(r.s.invitations, id)
			n++
		}
	}
	return n, nil
}

// MarkInvitationUsed flips the used flag directly. Intended for tests that
// simulate a concurrent acceptance.
func (s *Store) MarkInvitationUsed(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv, ok := s.invitations[id]; ok {
		inv.Used = true
	}
}

// Invitation returns a copy of a stored invitation.
func (s *Store) Invitation(id uuid.UUID) (invitation.Invitation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok {
		return invitation.Invitation{}, false
	}
	return *inv, true
}

// UserCount returns the number of users rows.
func (s *Store) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}
