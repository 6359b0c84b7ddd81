package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/daap14/adminportal/internal/api/middleware"
	"github.com/daap14/adminportal/internal/auth"
	"github.com/daap14/adminportal/internal/credential"
	"github.com/daap14/adminportal/internal/invitation"
	"github.com/daap14/adminportal/internal/notify"
	"github.com/daap14/adminportal/internal/submission"
	"github.com/daap14/adminportal/internal/token"
)

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

// --- Request helpers ---

func makeChiRequest(method, path string, body []byte, params map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Content-Type", "application/json")

	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	return req, httptest.NewRecorder()
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func withClaims(req *http.Request, claims *token.Claims) *http.Request {
	return req.WithContext(middleware.WithClaims(req.Context(), claims))
}

func adminClaims() *token.Claims {
	return &token.Claims{
		Username: "root",
		Email:    "root@example.com",
		Role:     auth.RoleAdmin,
		Source:   auth.SourceAdmins,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "5e0f7f4e-4b0b-4c8e-9c61-1f0b8b7f0a01",
		},
	}
}

func managerClaims() *token.Claims {
	return &token.Claims{
		Username:  "miagrant123",
		Email:     "mgr@example.com",
		Role:      auth.RoleManager,
		Source:    auth.SourceUsers,
		FirstName: "Mia",
		LastName:  "Grant",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "0d6b7c8e-1f2a-4b3c-8d9e-0a1b2c3d4e5f",
		},
	}
}

func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseEnvelope(t, w)["error"].(map[string]interface{})
	require.True(t, ok, "error object missing")
	return errObj["code"].(string)
}

func dataObject(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	data, ok := parseEnvelope(t, w)["data"].(map[string]interface{})
	require.True(t, ok, "data object missing")
	return data
}

// --- Mock authenticator ---

type mockAuthenticator struct {
	authenticateFn      func(ctx context.Context, username, password string) (*auth.Result, error)
	authenticateAdminFn func(ctx context.Context, username, password string) (*auth.Result, error)
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, username, password string) (*auth.Result, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, username, password)
	}
	return nil, auth.ErrInvalidCredentials
}

func (m *mockAuthenticator) AuthenticateAdmin(ctx context.Context, username, password string) (*auth.Result, error) {
	if m.authenticateAdminFn != nil {
		return m.authenticateAdminFn(ctx, username, password)
	}
	return nil, auth.ErrInvalidCredentials
}

// --- Mock session writer ---

type mockSessions struct {
	setRaw   string
	setTTL   time.Duration
	ended    bool
	endFnErr error
}

func (m *mockSessions) SetCookie(w http.ResponseWriter, raw string, ttl time.Duration) {
	m.setRaw = raw
	m.setTTL = ttl
	http.SetCookie(w, &http.Cookie{Name: "authToken", Value: raw, MaxAge: int(ttl.Seconds()), HttpOnly: true})
}

func (m *mockSessions) End(_ context.Context, w http.ResponseWriter, _ *http.Request) error {
	m.ended = true
	http.SetCookie(w, &http.Cookie{Name: "authToken", Value: "", MaxAge: -1})
	return m.endFnErr
}

// --- Mock credential flows ---

type mockFlows struct {
	requestChangeFn        func(ctx context.Context, actor *token.Claims, current, next, confirm string) (*credential.Pending, error)
	confirmChangeFn        func(ctx context.Context, actor *token.Claims, code string) error
	requestManagerChangeFn func(ctx context.Context, actor *token.Claims, managerEmail, newPassword string) (*credential.Pending, error)
	confirmManagerChangeFn func(ctx context.Context, adminEmail, managerEmail, code string) error
	requestResetFn         func(ctx context.Context, email string) (*credential.Pending, error)
	verifyResetFn          func(ctx context.Context, email, code string) error
	resetFn                func(ctx context.Context, email, code, newPassword string) error
}

func pending() *credential.Pending {
	return &credential.Pending{ExpiresAt: fixedNow.Add(5 * time.Minute)}
}

func (m *mockFlows) RequestPasswordChange(ctx context.Context, actor *token.Claims, current, next, confirm string) (*credential.Pending, error) {
	if m.requestChangeFn != nil {
		return m.requestChangeFn(ctx, actor, current, next, confirm)
	}
	return pending(), nil
}

func (m *mockFlows) ConfirmPasswordChange(ctx context.Context, actor *token.Claims, code string) error {
	if m.confirmChangeFn != nil {
		return m.confirmChangeFn(ctx, actor, code)
	}
	return nil
}

func (m *mockFlows) RequestManagerPasswordChange(ctx context.Context, actor *token.Claims, managerEmail, newPassword string) (*credential.Pending, error) {
	if m.requestManagerChangeFn != nil {
		return m.requestManagerChangeFn(ctx, actor, managerEmail, newPassword)
	}
	return pending(), nil
}

func (m *mockFlows) ConfirmManagerPasswordChange(ctx context.Context, adminEmail, managerEmail, code string) error {
	if m.confirmManagerChangeFn != nil {
		return m.confirmManagerChangeFn(ctx, adminEmail, managerEmail, code)
	}
	return nil
}

func (m *mockFlows) RequestPasswordReset(ctx context.Context, email string) (*credential.Pending, error) {
	if m.requestResetFn != nil {
		return m.requestResetFn(ctx, email)
	}
	return pending(), nil
}

func (m *mockFlows) VerifyResetCode(ctx context.Context, email, code string) error {
	if m.verifyResetFn != nil {
		return m.verifyResetFn(ctx, email, code)
	}
	return nil
}

func (m *mockFlows) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if m.resetFn != nil {
		return m.resetFn(ctx, email, code, newPassword)
	}
	return nil
}

// --- Mock invitation engine ---

type mockEngine struct {
	createFn   func(ctx context.Context, req invitation.CreateRequest, invitedBy string) (*invitation.Issued, error)
	validateFn func(ctx context.Context, rawToken string) (*invitation.Invitation, error)
	acceptFn   func(ctx context.Context, rawToken, plaintext string) (*auth.User, error)
	resendFn   func(ctx context.Context, id uuid.UUID, invitedBy string) (*invitation.Issued, error)
	listFn     func(ctx context.Context, status string) ([]invitation.Invitation, error)
}

func sampleInvitation() *invitation.Invitation {
	return &invitation.Invitation{
		ID:        uuid.MustParse("7b1f3a52-96d4-4f0e-8b7a-3c2d1e0f9a88"),
		Email:     "john@example.com",
		FirstName: "John",
		LastName:  "Smith",
		Role:      auth.RoleManager,
		Username:  "johnsmith482",
		ExpiresAt: fixedNow.Add(5 * time.Minute),
		InvitedBy: "root",
		CreatedAt: fixedNow,
	}
}

func (m *mockEngine) Create(ctx context.Context, req invitation.CreateRequest, invitedBy string) (*invitation.Issued, error) {
	if m.createFn != nil {
		return m.createFn(ctx, req, invitedBy)
	}
	return &invitation.Issued{Invitation: sampleInvitation(), RawToken: "tok+en/raw"}, nil
}

func (m *mockEngine) Validate(ctx context.Context, rawToken string) (*invitation.Invitation, error) {
	if m.validateFn != nil {
		return m.validateFn(ctx, rawToken)
	}
	return sampleInvitation(), nil
}

func (m *mockEngine) Accept(ctx context.Context, rawToken, plaintext string) (*auth.User, error) {
	if m.acceptFn != nil {
		return m.acceptFn(ctx, rawToken, plaintext)
	}
	inv := sampleInvitation()
	return &auth.User{
		ID:           uuid.New(),
		FirstName:    inv.FirstName,
		LastName:     inv.LastName,
		Username:     inv.Username,
		Email:        inv.Email,
		Role:         inv.Role,
		PasswordHash: "$2a$10$secretdigest",
		IsActive:     true,
		CreatedAt:    fixedNow,
		UpdatedAt:    fixedNow,
	}, nil
}

func (m *mockEngine) Resend(ctx context.Context, id uuid.UUID, invitedBy string) (*invitation.Issued, error) {
	if m.resendFn != nil {
		return m.resendFn(ctx, id, invitedBy)
	}
	return &invitation.Issued{Invitation: sampleInvitation(), RawToken: "rotated"}, nil
}

func (m *mockEngine) List(ctx context.Context, status string) ([]invitation.Invitation, error) {
	if m.listFn != nil {
		return m.listFn(ctx, status)
	}
	return []invitation.Invitation{*sampleInvitation()}, nil
}

func (m *mockEngine) TTL() time.Duration { return 5 * time.Minute }

func (m *mockEngine) Now() time.Time { return fixedNow }

// --- Mock sender ---

type mockSender struct {
	sent []notify.Message
	err  error
}

func (m *mockSender) Send(_ context.Context, msg notify.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// --- Mock user directory ---

type mockUsers struct {
	listFn       func(ctx context.Context) ([]auth.User, error)
	deactivateFn func(ctx context.Context, id uuid.UUID) error
}

func (m *mockUsers) ListUsers(ctx context.Context) ([]auth.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockUsers) DeactivateUser(ctx context.Context, id uuid.UUID) error {
	if m.deactivateFn != nil {
		return m.deactivateFn(ctx, id)
	}
	return nil
}

// --- Mock submission service ---

type mockSubmissions struct {
	submitFn       func(ctx context.Context, d notify.ContactDetails) (*submission.Submission, error)
	listFn         func(ctx context.Context, status string) ([]submission.Submission, error)
	updateStatusFn func(ctx context.Context, id uuid.UUID, status string) (*submission.Submission, error)
	markReadFn     func(ctx context.Context, id uuid.UUID, read bool) (*submission.Submission, error)
}

func (m *mockSubmissions) Submit(ctx context.Context, d notify.ContactDetails) (*submission.Submission, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, d)
	}
	return &submission.Submission{ID: uuid.New(), Name: d.Name, Email: d.Email, Message: d.Message,
		Status: submission.StatusActive, SubmittedAt: fixedNow}, nil
}

func (m *mockSubmissions) List(ctx context.Context, status string) ([]submission.Submission, error) {
	if m.listFn != nil {
		return m.listFn(ctx, status)
	}
	return []submission.Submission{}, nil
}

func (m *mockSubmissions) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*submission.Submission, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return &submission.Submission{ID: id, Status: status}, nil
}

func (m *mockSubmissions) MarkRead(ctx context.Context, id uuid.UUID, read bool) (*submission.Submission, error) {
	if m.markReadFn != nil {
		return m.markReadFn(ctx, id, read)
	}
	return &submission.Submission{ID: id, IsRead: read}, nil
}
