package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daap14/adminportal/internal/notify"
)

func newGraphServer(t *testing.T, sendStatus int, captured *map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"test-access-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v1.0/users/sender-id/sendMail", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-access-token", r.Header.Get("Authorization"))
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.WriteHeader(sendStatus)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newSender(srv *httptest.Server) *notify.GraphSender {
	return notify.NewGraphSender(context.Background(), notify.GraphConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		SenderUserID: "sender-id",
		GraphBaseURL: srv.URL + "/v1.0",
		TokenURL:     srv.URL + "/token",
	})
}

func TestGraphSender_Send(t *testing.T) {
	var body map[string]any
	srv := newGraphServer(t, http.StatusAccepted, &body)

	err := newSender(srv).Send(context.Background(), notify.Message{
		To: "a@x.com", Subject: "Hello", HTML: "<p>hi</p>",
	})

	require.NoError(t, err)
	msg := body["message"].(map[string]any)
	assert.Equal(t, "Hello", msg["subject"])
	assert.Equal(t, "HTML", msg["body"].(map[string]any)["contentType"])
	to := msg["toRecipients"].([]any)[0].(map[string]any)["emailAddress"].(map[string]any)
	assert.Equal(t, "a@x.com", to["address"])
}

func TestGraphSender_Failure(t *testing.T) {
	srv := newGraphServer(t, http.StatusForbidden, nil)

	err := newSender(srv).Send(context.Background(), notify.Message{To: "a@x.com", Subject: "s", HTML: "b"})

	assert.ErrorIs(t, err, notify.ErrDeliveryFailed)
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, notify.LogSender{}.Send(context.Background(), notify.Message{To: "a@x.com"}))
}

func TestOTPEmail(t *testing.T) {
	msg, err := notify.OTPEmail("a@x.com", "Confirm password change", "Use this code.", "123456", 5*time.Minute)

	require.NoError(t, err)
	assert.Equal(t, "a@x.com", msg.To)
	assert.Contains(t, msg.HTML, "123456")
	assert.Contains(t, msg.HTML, "5 minutes")
}

func TestInviteEmail_EscapesInput(t *testing.T) {
	msg, err := notify.InviteEmail("a@x.com", "<b>John</b>", "manager", "johnsmith123",
		"http://localhost:3000/accept-invite?token=abc", 5*time.Minute)

	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<b>John</b>")
	assert.Contains(t, msg.HTML, "johnsmith123")
	assert.True(t, strings.Contains(msg.HTML, "accept-invite?token=abc"))
}

func TestContactEmails(t *testing.T) {
	d := notify.ContactDetails{Name: "Jane", Email: "jane@x.com", Message: "Hi"}

	inbox, err := notify.ContactInboxEmail("inbox@x.com", d)
	require.NoError(t, err)
	assert.Equal(t, "inbox@x.com", inbox.To)
	assert.Contains(t, inbox.Subject, "Jane")

	receipt, err := notify.ContactReceiptEmail(d)
	require.NoError(t, err)
	assert.Equal(t, "jane@x.com", receipt.To)
}
