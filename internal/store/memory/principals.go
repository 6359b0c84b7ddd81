package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/daap14/adminportal/internal/auth"
)

type adminRepo struct{ s *Store }

func (r adminRepo) find(match func(*auth.Admin) bool) (*auth.Admin, error) {
	for _, a := range r.s.admins {
		if match(a) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, auth.ErrAdminNotFound
}

func (r adminRepo) GetByUsername(_ context.Context, username string) (*auth.Admin, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(func(a *auth.Admin) bool { return a.Username == username })
}

func (r adminRepo) GetByEmail(_ context.Context, email string) (*auth.Admin, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(func(a *auth.Admin) bool { return a.Email != nil && sameEmail(*a.Email, email) })
}

func (r adminRepo) UpdatePassword(_ context.Context, username, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.admins {
		if a.Username == username {
			a.PasswordHash = passwordHash
			return nil
		}
	}
	return auth.ErrAdminNotFound
}

func (r adminRepo) UpdateEmail(_ context.Context, username, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.admins {
		if a.Username == username {
			e := email
			a.Email = &e
			return nil
		}
	}
	return auth.ErrAdminNotFound
}

func (r adminRepo) Upsert(_ context.Context, admin *auth.Admin) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.admins {
		if a.Username == admin.Username {
			a.Email = admin.Email
			a.PasswordHash = admin.PasswordHash
			admin.ID, admin.CreatedAt = a.ID, a.CreatedAt
			return nil
		}
	}
	admin.ID = uuid.New()
	admin.CreatedAt = r.s.now()
	cp := *admin
	r.s.admins[cp.ID] = &cp
	return nil
}

type userRepo struct{ s *Store }

func (r userRepo) find(match func(*auth.User) bool) (*auth.User, error) {
	for _, u := range r.s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (r userRepo) GetByID(_ context.Context, id uuid.UUID) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(func(u *auth.User) bool { return u.ID == id })
}

func (r userRepo) GetActiveByUsername(_ context.Context, username string) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(func(u *auth.User) bool { return u.IsActive && u.Username == username })
}

func (r userRepo) GetActiveByEmail(_ context.Context, email string) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(func(u *auth.User) bool { return u.IsActive && sameEmail(u.Email, email) })
}

func (r userRepo) EmailExists(_ context.Context, email string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, err := r.find(func(u *auth.User) bool { return sameEmail(u.Email, email) })
	return err == nil, nil
}

func (r userRepo) List(_ context.Context) ([]auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	users := make([]auth.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return r.s.seq[users[i].ID] < r.s.seq[users[j].ID] })
	return users, nil
}

func (r userRepo) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = r.s.now()
	return nil
}

func (r userRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	u.IsActive = false
	u.UpdatedAt = r.s.now()
	return nil
}

// insertUser enforces unique username and email. Callers hold s.mu.
func (s *Store) insertUser(u *auth.User) error {
	for _, existing := range s.users {
		if existing.Username == u.Username || sameEmail(existing.Email, u.Email) {
			return errDuplicateUser
		}
	}
	if err := s.fault(FaultUserInsert); err != nil {
		return err
	}
	now := s.now()
	u.ID = uuid.New()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	s.users[cp.ID] = &cp
	s.stamp(cp.ID)
	return nil
}

// PutUser inserts a user directly, bypassing invitations. Intended for seeding tests.
func (s *Store) PutUser(u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertUser(u)
}
