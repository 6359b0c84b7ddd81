package otp_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daap14/adminportal/internal/otp"
	"github.com/daap14/adminportal/internal/store/pgtest"
)

func TestPostgresRepository_CreateSupersedes(t *testing.T) {
	pool := pgtest.Pool(t, "otp_records")
	repo := otp.NewRepository(pool)
	ctx := context.Background()
	key := otp.NewKey(otp.PasswordReset, "", "mia@example.com")

	first := &otp.Record{Key: key, CodeHash: "a", ExpiresAt: time.Now().Add(10 * time.Minute)}
	require.NoError(t, repo.Create(ctx, first))
	payload := "staged"
	second := &otp.Record{Key: key, CodeHash: "b", Payload: &payload, ExpiresAt: time.Now().Add(10 * time.Minute)}
	require.NoError(t, repo.Create(ctx, second))

	unused, err := repo.ListUnused(ctx, key)
	require.NoError(t, err)
	require.Len(t, unused, 1)
	assert.Equal(t, second.ID, unused[0].ID)
	require.NotNil(t, unused[0].Payload)
	assert.Equal(t, "staged", *unused[0].Payload)

	other, err := repo.ListUnused(ctx, otp.NewKey(otp.UserPasswordChange, "", "mia@example.com"))
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestPostgresRepository_MarkUsedOnce(t *testing.T) {
	pool := pgtest.Pool(t, "otp_records")
	repo := otp.NewRepository(pool)
	ctx := context.Background()

	rec := &otp.Record{
		Key:       otp.NewKey(otp.ManagerPasswordChange, "root@example.com", "mia@example.com"),
		CodeHash:  "a",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, repo.Create(ctx, rec))

	require.NoError(t, repo.MarkUsed(ctx, rec.ID))
	assert.ErrorIs(t, repo.MarkUsed(ctx, rec.ID), otp.ErrRecordUsed)
}

func TestPostgresRepository_InvalidateAndDeleteStale(t *testing.T) {
	pool := pgtest.Pool(t, "otp_records")
	repo := otp.NewRepository(pool)
	ctx := context.Background()
	now := time.Now()

	live := otp.NewKey(otp.AdminPasswordChange, "", "root")
	expired := otp.NewKey(otp.PasswordReset, "", "old@example.com")
	require.NoError(t, repo.Create(ctx, &otp.Record{Key: live, CodeHash: "a", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.Create(ctx, &otp.Record{Key: expired, CodeHash: "b", ExpiresAt: now.Add(-time.Hour)}))

	n, err := repo.InvalidateAll(ctx, live)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.DeleteStale(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
