package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/daap14/adminportal/internal/auth"
	"github.com/daap14/adminportal/internal/credential"
	"github.com/daap14/adminportal/internal/otp"
)

type credentialStore struct{ s *Store }

// CommitStagedPassword validates both writes before applying either.
func (c credentialStore) CommitStagedPassword(_ context.Context, otpID uuid.UUID, target credential.Target, passwordHash string) error {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.otps[otpID]
	if !ok || rec.Used {
		return otp.ErrRecordUsed
	}

	var apply func()
	switch target.Source {
	case auth.SourceAdmins:
		for _, a := range s.admins {
			if a.Username == target.Key {
				admin := a
				apply = func() { admin.PasswordHash = passwordHash }
			}
		}
	case auth.SourceUsers:
		for _, u := range s.users {
			if u.IsActive && sameEmail(u.Email, target.Key) {
				user := u
				apply = func() {
					user.PasswordHash = passwordHash
					user.UpdatedAt = s.now()
				}
			}
		}
	default:
		return fmt.Errorf("unknown credential source %q", target.Source)
	}
	if apply == nil {
		return credential.ErrTargetNotFound
	}
	if err := s.fault(FaultPasswordUpdate); err != nil {
		return err
	}

	rec.Used = true
	apply()
	return nil
}
