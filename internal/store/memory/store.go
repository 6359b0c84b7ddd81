// Package memory implements every repository on top of mutex-guarded maps.
// Multi-row operations run under a single lock and commit all-or-nothing,
// matching the transactional contracts of the Postgres repositories.
package memory

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daap14/adminportal/internal/auth"
	"github.com/daap14/adminportal/internal/credential"
	"github.com/daap14/adminportal/internal/invitation"
	"github.com/daap14/adminportal/internal/otp"
	"github.com/daap14/adminportal/internal/submission"
)

// Fault points that tests can trip to simulate a failure mid-transaction.
const (
	FaultUserInsert     = "users.insert"
	FaultPasswordUpdate = "password.update"
)

// ErrInjected is the default error returned by an armed fault.
var ErrInjected = errors.New("injected store failure")

// Store holds every table in memory.
type Store struct {
	mu sync.Mutex

	admins      map[uuid.UUID]*auth.Admin
	users       map[uuid.UUID]*auth.User
	invitations map[uuid.UUID]*invitation.Invitation
	otps        map[uuid.UUID]*otp.Record
	submissions map[uuid.UUID]*submission.Submission

	seq    map[uuid.UUID]int64
	next   int64
	faults map[string]error
	now    func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		admins:      make(map[uuid.UUID]*auth.Admin),
		users:       make(map[uuid.UUID]*auth.User),
		invitations: make(map[uuid.UUID]*invitation.Invitation),
		otps:        make(map[uuid.UUID]*otp.Record),
		submissions: make(map[uuid.UUID]*submission.Submission),
		seq:         make(map[uuid.UUID]int64),
		faults:      make(map[string]error),
		now:         time.Now,
	}
}

// Admins returns the admins table view.
func (s *Store) Admins() auth.AdminRepository { return adminRepo{s} }

// Users returns the users table view.
func (s *Store) Users() auth.UserRepository { return userRepo{s} }

// OTPs returns the otp_records table view.
func (s *Store) OTPs() otp.Repository { return otpRepo{s} }

// Invitations returns the invitations table view.
func (s *Store) Invitations() invitation.Repository { return invitationRepo{s} }

// Credentials returns the staged-password committer.
func (s *Store) Credentials() credential.Store { return credentialStore{s} }

// Submissions returns the submissions table view.
func (s *Store) Submissions() submission.Repository { return submissionRepo{s} }

// Fail arms a fault point; the next operation reaching it fails with err
// (ErrInjected when err is nil) and rolls back.
func (s *Store) Fail(point string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	s.faults[point] = err
}

// fault consumes an armed fault. Callers hold s.mu.
func (s *Store) fault(point string) error {
	err, ok := s.faults[point]
	if !ok {
		return nil
	}
	delete(s.faults, point)
	return err
}

// stamp records insertion order for newest-first listings. Callers hold s.mu.
func (s *Store) stamp(id uuid.UUID) {
	s.next++
	s.seq[id] = s.next
}

func sameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
