package token_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daap14/adminportal/internal/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newIssuer(t *testing.T, clock *fakeClock) *token.Issuer {
	t.Helper()
	iss, err := token.NewIssuer(testSecret, token.WithClock(clock.Now))
	require.NoError(t, err)
	return iss
}

func sampleClaims() token.Claims {
	return token.Claims{
		Username: "jdoe",
		Email:    "jdoe@example.com",
		Role:     "Manager",
		Source:   "users",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "7f6c0f3e-9a63-4f9e-9f57-2d1c4d8f0a11",
		},
	}
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	iss := newIssuer(t, clock)

	raw, expiresAt, err := iss.Issue(sampleClaims(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, clock.now.Add(24*time.Hour), expiresAt)

	claims, err := iss.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "7f6c0f3e-9a63-4f9e-9f57-2d1c4d8f0a11", claims.UserID())
	assert.Equal(t, "jdoe", claims.Username)
	assert.Equal(t, "jdoe@example.com", claims.Email)
	assert.Equal(t, "manager", claims.Role)
	assert.Equal(t, "users", claims.Source)
	assert.NotEmpty(t, claims.ID)
}

func TestIssue_UniqueTokenIDs(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	iss := newIssuer(t, clock)

	a, _, err := iss.Issue(sampleClaims(), time.Hour)
	require.NoError(t, err)
	b, _, err := iss.Issue(sampleClaims(), time.Hour)
	require.NoError(t, err)

	ca, err := iss.Verify(a)
	require.NoError(t, err)
	cb, err := iss.Verify(b)
	require.NoError(t, err)
	assert.NotEqual(t, ca.ID, cb.ID)
}

func TestIssue_Validation(t *testing.T) {
	iss := newIssuer(t, &fakeClock{now: time.Now()})

	_, _, err := iss.Issue(token.Claims{Role: "admin"}, time.Hour)
	assert.Error(t, err)

	_, _, err = iss.Issue(sampleClaims(), 0)
	assert.Error(t, err)
}

func TestVerify_Expired(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	iss := newIssuer(t, clock)

	raw, _, err := iss.Issue(sampleClaims(), time.Hour)
	require.NoError(t, err)

	clock.now = clock.now.Add(time.Hour + time.Second)

	_, err = iss.Verify(raw)
	assert.ErrorIs(t, err, token.ErrInvalidOrExpired)
}

func TestVerify_UniformFailures(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	iss := newIssuer(t, clock)
	other, err := token.NewIssuer("ffffffffffffffffffffffffffffffff", token.WithClock(clock.Now))
	require.NoError(t, err)

	valid, _, err := iss.Issue(sampleClaims(), time.Hour)
	require.NoError(t, err)
	foreign, _, err := other.Issue(sampleClaims(), time.Hour)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, sampleClaims())
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"malformed", "not.a.jwt"},
		{"wrong secret", foreign},
		{"tampered", valid[:len(valid)-2] + "xx"},
		{"alg none", unsigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := iss.Verify(tt.raw)
			assert.Nil(t, claims)
			assert.Equal(t, token.ErrInvalidOrExpired, err)
		})
	}
}

func TestNewIssuer_RequiresSecret(t *testing.T) {
	_, err := token.NewIssuer("  ")

	assert.Error(t, err)
}
