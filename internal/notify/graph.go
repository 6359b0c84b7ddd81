package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultGraphBaseURL = "https://graph.microsoft.com/v1.0"
	defaultLoginBaseURL = "https://login.microsoftonline.com"
	graphScope          = "https://graph.microsoft.com/.default"
)

// GraphConfig holds the Azure AD application used to send mail.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	SenderUserID string

	// Overridable endpoints, used by tests.
	GraphBaseURL string
	TokenURL     string
	Timeout      time.Duration
}

// GraphSender sends mail through Microsoft Graph using the client credentials grant.
type GraphSender struct {
	client   *http.Client
	endpoint string
}

// NewGraphSender creates a GraphSender. Tokens are fetched and cached by the oauth2 transport.
func NewGraphSender(ctx context.Context, cfg GraphConfig) *GraphSender {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultLoginBaseURL + "/" + url.PathEscape(cfg.TenantID) + "/oauth2/v2.0/token"
	}
	base := strings.TrimRight(cfg.GraphBaseURL, "/")
	if base == "" {
		base = defaultGraphBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{graphScope},
	}
	client := cc.Client(ctx)
	client.Timeout = timeout

	return &GraphSender{
		client:   client,
		endpoint: base + "/users/" + url.PathEscape(cfg.SenderUserID) + "/sendMail",
	}
}

type graphAddress struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type graphMessage struct {
	Message struct {
		Subject string `json:"subject"`
		Body    struct {
			ContentType string `json:"contentType"`
			Content     string `json:"content"`
		} `json:"body"`
		ToRecipients []graphAddress `json:"toRecipients"`
	} `json:"message"`
	SaveToSentItems bool `json:"saveToSentItems"`
}

// Send posts msg to the sendMail endpoint of the configured sender mailbox.
func (s *GraphSender) Send(ctx context.Context, msg Message) error {
	var payload graphMessage
	payload.Message.Subject = msg.Subject
	payload.Message.Body.ContentType = "HTML"
	payload.Message.Body.Content = msg.HTML
	var to graphAddress
	to.EmailAddress.Address = msg.To
	payload.Message.ToRecipients = []graphAddress{to}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding mail: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: graph returned %d: %s", ErrDeliveryFailed, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
