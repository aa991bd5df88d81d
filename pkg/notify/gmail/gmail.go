// Package gmail delivers alerts through the Gmail API using a persisted
// OAuth token. Token refresh is handled internally; callers only see
// Notify succeed or fail.
package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/vigilproject/vigil/pkg/notify"
	"github.com/vigilproject/vigil/pkg/retry"
)

const defaultSendEndpoint = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"

const sendTimeout = 30 * time.Second

// Notifier sends alert emails via the Gmail API.
type Notifier struct {
	sender     string
	recipients []string
	endpoint   string
	client     *http.Client
	logger     *slog.Logger
}

// New creates a Gmail notifier from a persisted token file. The file
// must exist and carry client credentials; it is rewritten whenever the
// access token is refreshed.
func New(tokenPath, sender string, recipients []string, logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "gmail"))

	creds, tok, err := loadCredentials(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("gmail: %w", err)
	}

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Scopes:       creds.Scopes,
		Endpoint:     oauth2.Endpoint{TokenURL: creds.TokenURI},
	}

	source := &persistingSource{
		path:   tokenPath,
		creds:  creds,
		base:   conf.TokenSource(context.Background(), tok),
		last:   tok,
		logger: logger,
	}

	return &Notifier{
		sender:     sender,
		recipients: recipients,
		endpoint:   defaultSendEndpoint,
		client: &http.Client{
			Timeout:   sendTimeout,
			Transport: &oauth2.Transport{Source: source},
		},
		logger: logger,
	}, nil
}

// Notify sends the event as a plain-text email to all recipients.
func (n *Notifier) Notify(ctx context.Context, event notify.Event) error {
	raw := encodeMessage(n.sender, n.recipients, event.Subject, event.Body)

	payload, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return fmt.Errorf("gmail: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("gmail: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("gmail: sending message: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gmail: send returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var sent struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &sent)

	n.logger.Info("email sent",
		slog.String("message_id", sent.ID),
		slog.String("subject", event.Subject),
		slog.Int("recipients", len(n.recipients)),
	)
	return nil
}

// encodeMessage builds an RFC 2822 message and base64url-encodes it the
// way the Gmail API expects.
func encodeMessage(sender string, recipients []string, subject, body string) string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", sender)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	return base64.URLEncoding.EncodeToString([]byte(msg.String()))
}

// persistingSource wraps the oauth2 token source so that every
// refreshed access token is written back to the token file before use.
// Refresh attempts get a short bounded backoff; the send itself is
// never retried here.
type persistingSource struct {
	path   string
	creds  *credentials
	base   oauth2.TokenSource
	logger *slog.Logger

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	var tok *oauth2.Token
	err := retry.Do(ctx, retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}, func(ctx context.Context) error {
		var err error
		tok, err = s.base.Token()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	if s.last == nil || tok.AccessToken != s.last.AccessToken {
		if err := s.creds.save(s.path, tok); err != nil {
			// A send can still proceed with the in-memory token.
			s.logger.Warn("failed to persist refreshed token", slog.String("error", err.Error()))
		} else {
			s.logger.Info("refreshed token persisted", slog.Time("expiry", tok.Expiry))
		}
		s.last = tok
	}

	return tok, nil
}
