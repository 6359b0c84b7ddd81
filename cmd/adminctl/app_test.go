package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/daap14/adminportal/internal/auth"
	"github.com/daap14/adminportal/internal/password"
	"github.com/daap14/adminportal/internal/store/memory"
)

type fakeMigrator struct {
	applied []string
	pending []string
	err     error
}

func (m *fakeMigrator) Up(context.Context) ([]string, error)     { return m.applied, m.err }
func (m *fakeMigrator) Status(context.Context) ([]string, error) { return m.pending, m.err }

func newTestApp(t *testing.T, env map[string]string, stdin string) (*app, *memory.Store, *bytes.Buffer) {
	t.Helper()
	store := memory.New()
	out := &bytes.Buffer{}
	return &app{
		admins:   store.Admins(),
		migrator: &fakeMigrator{},
		hasher:   password.NewHasher(bcrypt.MinCost),
		stdin:    strings.NewReader(stdin),
		stdout:   out,
		getenv:   func(k string) string { return env[k] },
	}, store, out
}

func seedRoot(t *testing.T, store *memory.Store) {
	t.Helper()
	require.NoError(t, store.Admins().Upsert(context.Background(), &auth.Admin{Username: "root", PasswordHash: "plain"}))
}

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	a, _, out := newTestApp(t, nil, "")

	err := a.run(context.Background(), nil)

	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, out.String(), "usage: adminctl")
}

func TestRun_UnknownCommand(t *testing.T) {
	a, _, _ := newTestApp(t, nil, "")

	err := a.run(context.Background(), []string{"destroy"})

	assert.ErrorIs(t, err, errUsage)
}

func TestNeedsDatabase(t *testing.T) {
	assert.False(t, needsDatabase(nil))
	assert.False(t, needsDatabase([]string{"hash", "pw"}))
	assert.True(t, needsDatabase([]string{"migrate", "up"}))
	assert.True(t, needsDatabase([]string{"seed", "-f", "x"}))
}

func TestHash_PrintsVerifiableDigests(t *testing.T) {
	a, _, out := newTestApp(t, nil, "")

	require.NoError(t, a.run(context.Background(), []string{"hash", "--cost", "5", "first-pw", "second-pw"}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(lines[0]), []byte("first-pw")))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(lines[1]), []byte("second-pw")))
	cost, err := bcrypt.Cost([]byte(lines[0]))
	require.NoError(t, err)
	assert.Equal(t, 5, cost)
}

func TestHash_RequiresPassword(t *testing.T) {
	a, _, _ := newTestApp(t, nil, "")

	assert.ErrorIs(t, a.run(context.Background(), []string{"hash"}), errUsage)
}

func TestMigrate(t *testing.T) {
	a, _, out := newTestApp(t, nil, "")
	a.migrator = &fakeMigrator{applied: []string{"0001_init.up.sql"}, pending: []string{"0002_invitations.up.sql"}}

	require.NoError(t, a.run(context.Background(), []string{"migrate", "up"}))
	require.NoError(t, a.run(context.Background(), []string{"migrate", "status"}))

	assert.Contains(t, out.String(), "applied 0001_init.up.sql")
	assert.Contains(t, out.String(), "pending 0002_invitations.up.sql")
	assert.ErrorIs(t, a.run(context.Background(), []string{"migrate", "down"}), errUsage)
}

func TestMigrate_PropagatesErrors(t *testing.T) {
	a, _, _ := newTestApp(t, nil, "")
	a.migrator = &fakeMigrator{err: errors.New("connection refused")}

	assert.EqualError(t, a.run(context.Background(), []string{"migrate", "up"}), "connection refused")
}

func TestSetAdminPassword_FromEnv(t *testing.T) {
	a, store, _ := newTestApp(t, map[string]string{passwordEnv: "fresh-secret"}, "")
	seedRoot(t, store)

	require.NoError(t, a.run(context.Background(), []string{"set-admin-password", "root"}))

	admin, err := store.Admins().GetByUsername(context.Background(), "root")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("fresh-secret")))
}

func TestSetAdminPassword_FromStdin(t *testing.T) {
	a, store, _ := newTestApp(t, nil, "typed-secret\n")
	seedRoot(t, store)

	require.NoError(t, a.run(context.Background(), []string{"set-admin-password", "root"}))

	admin, err := store.Admins().GetByUsername(context.Background(), "root")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("typed-secret")))
}

func TestSetAdminPassword_Errors(t *testing.T) {
	a, _, _ := newTestApp(t, nil, "")
	assert.ErrorIs(t, a.run(context.Background(), []string{"set-admin-password", "root"}), errUsage)

	a, _, _ = newTestApp(t, map[string]string{passwordEnv: "x"}, "")
	assert.ErrorIs(t, a.run(context.Background(), []string{"set-admin-password", "ghost"}), auth.ErrAdminNotFound)
}

func TestSetAdminEmail(t *testing.T) {
	a, store, _ := newTestApp(t, nil, "")
	seedRoot(t, store)

	require.NoError(t, a.run(context.Background(), []string{"set-admin-email", "root", "root@example.com"}))

	admin, err := store.Admins().GetByEmail(context.Background(), "ROOT@example.com")
	require.NoError(t, err)
	assert.Equal(t, "root", admin.Username)

	assert.ErrorIs(t, a.run(context.Background(), []string{"set-admin-email", "root", "not-an-email"}), errUsage)
}

func TestSeed(t *testing.T) {
	a, store, out := newTestApp(t, nil, "")
	digest, err := bcrypt.GenerateFromPassword([]byte("prehashed"), bcrypt.MinCost)
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "admins.yaml")
	content := "admins:\n" +
		"  - username: root\n" +
		"    email: root@example.com\n" +
		"    password: rootpassword\n" +
		"  - username: ops\n" +
		"    passwordHash: \"" + string(digest) + "\"\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	require.NoError(t, a.run(context.Background(), []string{"seed", "-f", file}))

	root, err := store.Admins().GetByUsername(context.Background(), "root")
	require.NoError(t, err)
	require.NotNil(t, root.Email)
	assert.Equal(t, "root@example.com", *root.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(root.PasswordHash), []byte("rootpassword")))

	ops, err := store.Admins().GetByUsername(context.Background(), "ops")
	require.NoError(t, err)
	assert.Equal(t, string(digest), ops.PasswordHash)
	assert.Nil(t, ops.Email)
	assert.Contains(t, out.String(), "seeded admin ops")
}

func TestParseSeed_Rejections(t *testing.T) {
	a, _, _ := newTestApp(t, nil, "")

	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "admins: []\n"},
		{"missing username", "admins:\n  - password: x\n"},
		{"duplicate", "admins:\n  - username: a\n    password: x\n  - username: a\n    password: y\n"},
		{"both secrets", "admins:\n  - username: a\n    password: x\n    passwordHash: y\n"},
		{"plaintext as hash", "admins:\n  - username: a\n    passwordHash: hunter2\n"},
		{"unknown field", "admins:\n  - username: a\n    password: x\n    role: owner\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.parseSeed([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestSeed_RequiresFile(t *testing.T) {
	a, _, _ := newTestApp(t, nil, "")

	assert.ErrorIs(t, a.run(context.Background(), []string{"seed"}), errUsage)
}
