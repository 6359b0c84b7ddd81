package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/daap14/adminportal/internal/auth"
	"github.com/daap14/adminportal/internal/password"
	"github.com/daap14/adminportal/internal/session"
	"github.com/daap14/adminportal/internal/store/memory"
	"github.com/daap14/adminportal/internal/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fixture struct {
	svc    *auth.Service
	store  *memory.Store
	issuer *token.Issuer
	hasher *password.Hasher
}

func setup(t *testing.T, opts auth.Options) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	hasher := password.NewHasher(bcrypt.MinCost)
	issuer, err := token.NewIssuer(testSecret)
	require.NoError(t, err)

	rootHash, err := hasher.Hash("rootpassword")
	require.NoError(t, err)
	email := "root@example.com"
	require.NoError(t, store.Admins().Upsert(ctx, &auth.Admin{Username: "root", Email: &email, PasswordHash: rootHash}))

	mgrHash, err := hasher.Hash("managerpass")
	require.NoError(t, err)
	require.NoError(t, store.PutUser(&auth.User{
		FirstName: "Mia", LastName: "Grant", Username: "miagrant123", Email: "mgr@example.com",
		Role: "Manager", PasswordHash: mgrHash, IsActive: true,
	}))

	return &fixture{
		svc:    auth.NewService(store.Admins(), store.Users(), hasher, issuer, opts),
		store:  store,
		issuer: issuer,
		hasher: hasher,
	}
}

func TestAuthenticate_Admin(t *testing.T) {
	f := setup(t, auth.Options{})

	res, err := f.svc.Authenticate(context.Background(), "root", "rootpassword")

	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, res.Principal.Role)
	assert.Equal(t, auth.SourceAdmins, res.Principal.Source)
	assert.Equal(t, "root@example.com", res.Principal.Email)
	assert.Equal(t, 24*time.Hour, res.TTL)

	claims, err := f.issuer.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "root", claims.Username)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
	assert.Equal(t, res.Principal.ID, claims.Subject)
}

func TestAuthenticate_ManagerRoleLowercased(t *testing.T) {
	f := setup(t, auth.Options{})

	res, err := f.svc.Authenticate(context.Background(), "miagrant123", "managerpass")

	require.NoError(t, err)
	assert.Equal(t, auth.RoleManager, res.Principal.Role)
	assert.Equal(t, auth.SourceUsers, res.Principal.Source)
	assert.Equal(t, "Mia", res.Principal.FirstName)

	claims, err := f.issuer.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "manager", claims.Role)
}

func TestAuthenticate_UniformFailures(t *testing.T) {
	f := setup(t, auth.Options{})
	ctx := context.Background()

	tests := []struct {
		name, username, password string
	}{
		{"unknown user", "ghost", "whatever"},
		{"admin wrong password", "root", "wrongpassword"},
		{"manager wrong password", "miagrant123", "wrongpassword"},
		{"admin password against manager", "miagrant123", "rootpassword"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.Authenticate(ctx, tt.username, tt.password)
			assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
			assert.Nil(t, res)
		})
	}
}

func TestAuthenticate_MissingCredentials(t *testing.T) {
	f := setup(t, auth.Options{})

	_, err := f.svc.Authenticate(context.Background(), "  ", "x")
	assert.ErrorIs(t, err, auth.ErrMissingCredentials)

	_, err = f.svc.Authenticate(context.Background(), "root", "")
	assert.ErrorIs(t, err, auth.ErrMissingCredentials)
}

func TestAuthenticate_AdminSetTakesPrecedence(t *testing.T) {
	f := setup(t, auth.Options{})
	ctx := context.Background()
	shadowHash, err := f.hasher.Hash("shadowpassword")
	require.NoError(t, err)
	require.NoError(t, f.store.PutUser(&auth.User{
		Username: "root", Email: "shadow@example.com", Role: "manager", PasswordHash: shadowHash, IsActive: true,
	}))

	_, err = f.svc.Authenticate(ctx, "root", "shadowpassword")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials, "admin mismatch stops the search")

	res, err := f.svc.Authenticate(ctx, "root", "rootpassword")
	require.NoError(t, err)
	assert.Equal(t, auth.SourceAdmins, res.Principal.Source)
}

func TestAuthenticate_InactiveUserRejected(t *testing.T) {
	f := setup(t, auth.Options{})
	ctx := context.Background()
	u, err := f.store.Users().GetActiveByUsername(ctx, "miagrant123")
	require.NoError(t, err)
	require.NoError(t, f.svc.DeactivateUser(ctx, u.ID))

	_, err = f.svc.Authenticate(ctx, "miagrant123", "managerpass")

	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestAuthenticate_InsufficientRole(t *testing.T) {
	f := setup(t, auth.Options{})
	h, err := f.hasher.Hash("viewerpass")
	require.NoError(t, err)
	require.NoError(t, f.store.PutUser(&auth.User{
		Username: "viewer1", Email: "viewer@example.com", Role: "viewer", PasswordHash: h, IsActive: true,
	}))

	_, err = f.svc.Authenticate(context.Background(), "viewer1", "viewerpass")

	assert.ErrorIs(t, err, auth.ErrInsufficientRole)
}

func TestAuthenticate_LegacyPlaintextRehashed(t *testing.T) {
	f := setup(t, auth.Options{RehashLegacy: true})
	ctx := context.Background()
	email := "legacy@example.com"
	require.NoError(t, f.store.Admins().Upsert(ctx, &auth.Admin{Username: "legacy", Email: &email, PasswordHash: "plainsecret"}))

	_, err := f.svc.Authenticate(ctx, "legacy", "plainsecret")
	require.NoError(t, err)

	a, err := f.store.Admins().GetByUsername(ctx, "legacy")
	require.NoError(t, err)
	assert.True(t, password.LooksLikeDigest(a.PasswordHash))

	_, err = f.svc.Authenticate(ctx, "legacy", "plainsecret")
	assert.NoError(t, err, "rehashed credential still verifies")
}

func TestAuthenticate_LegacyKeptWhenRehashDisabled(t *testing.T) {
	f := setup(t, auth.Options{})
	ctx := context.Background()
	require.NoError(t, f.store.Admins().Upsert(ctx, &auth.Admin{Username: "legacy", PasswordHash: "plainsecret"}))

	_, err := f.svc.Authenticate(ctx, "legacy", "plainsecret")
	require.NoError(t, err)

	a, err := f.store.Admins().GetByUsername(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, "plainsecret", a.PasswordHash)
}

func TestAuthenticateAdmin(t *testing.T) {
	f := setup(t, auth.Options{})
	ctx := context.Background()

	res, err := f.svc.AuthenticateAdmin(ctx, "root", "rootpassword")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, res.TTL)
	assert.Equal(t, auth.RoleAdmin, res.Principal.Role)

	_, err = f.svc.AuthenticateAdmin(ctx, "miagrant123", "managerpass")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials, "users cannot use the admin login")
}

func TestAuthenticate_Throttle(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := setup(t, auth.Options{Limiter: session.NewRedisLoginLimiter(client, 3, 15*time.Minute)})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Authenticate(ctx, "root", "wrongpassword")
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	}

	_, err = f.svc.Authenticate(ctx, "root", "rootpassword")
	assert.ErrorIs(t, err, auth.ErrTooManyAttempts)

	mr.FastForward(16 * time.Minute)
	_, err = f.svc.Authenticate(ctx, "root", "rootpassword")
	assert.NoError(t, err)
}

func TestListUsers(t *testing.T) {
	f := setup(t, auth.Options{})

	users, err := f.svc.ListUsers(context.Background())

	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "miagrant123", users[0].Username)
}

func TestNormalizeRoleAndAccess(t *testing.T) {
	assert.Equal(t, "admin", auth.NormalizeRole(" Admin "))
	assert.True(t, auth.HasDashboardAccess("MANAGER"))
	assert.False(t, auth.HasDashboardAccess("viewer"))
	assert.False(t, auth.HasDashboardAccess(""))
}
