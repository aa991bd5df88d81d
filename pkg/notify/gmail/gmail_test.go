package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vigilproject/vigil/pkg/notify"
)

func writeTokenFile(t *testing.T, creds credentials) string {
	t.Helper()
	data, err := json.MarshalIndent(&creds, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func validCreds() credentials {
	return credentials{
		Token:        "access-token-1",
		RefreshToken: "refresh-token-1",
		TokenURI:     defaultTokenURI,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Scopes:       []string{gmailSendScope},
		Expiry:       time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	}
}

func TestNotify_SendsEncodedMessage(t *testing.T) {
	var gotAuth string
	var gotRaw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var payload struct {
			Raw string `json:"raw"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		gotRaw = payload.Raw
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "msg-1"})
	}))
	defer srv.Close()

	path := writeTokenFile(t, validCreds())
	n, err := New(path, "monitor@example.com", []string{"ops@example.edu", "oncall@example.edu"}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	n.endpoint = srv.URL

	err = n.Notify(context.Background(), notify.Event{
		Type:    notify.TypeDown,
		Subject: "ALERT: https://example.com is down",
		Body:    "the target is down",
	})
	if err != nil {
		t.Fatalf("Notify() error: %v", err)
	}

	if gotAuth != "Bearer access-token-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	decoded, err := base64.URLEncoding.DecodeString(gotRaw)
	if err != nil {
		t.Fatalf("raw message is not base64url: %v", err)
	}
	msg := string(decoded)
	for _, want := range []string{
		"To: ops@example.edu, oncall@example.edu",
		"From: monitor@example.com",
		"Subject: ALERT: https://example.com is down",
		"the target is down",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestNotify_SendFailureReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "quota exceeded"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	path := writeTokenFile(t, validCreds())
	n, err := New(path, "monitor@example.com", []string{"ops@example.edu"}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	n.endpoint = srv.URL

	err = n.Notify(context.Background(), notify.Event{Subject: "s", Body: "b"})
	if err == nil {
		t.Fatal("Notify() succeeded, want error")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error %q does not carry the status", err)
	}
}

func TestNotify_RefreshesAndPersistsExpiredToken(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-token-2",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenSrv.Close()

	var gotAuth string
	sendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "msg-2"})
	}))
	defer sendSrv.Close()

	creds := validCreds()
	creds.TokenURI = tokenSrv.URL
	creds.Expiry = time.Now().Add(-time.Hour).UTC().Format(time.RFC3339) // expired
	path := writeTokenFile(t, creds)

	n, err := New(path, "monitor@example.com", []string{"ops@example.edu"}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	n.endpoint = sendSrv.URL

	if err := n.Notify(context.Background(), notify.Event{Subject: "s", Body: "b"}); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}

	if gotAuth != "Bearer access-token-2" {
		t.Errorf("Authorization = %q, want refreshed token", gotAuth)
	}

	// The refreshed token must have been written back to the file.
	saved, tok, err := loadCredentials(path)
	if err != nil {
		t.Fatalf("reloading token file: %v", err)
	}
	if tok.AccessToken != "access-token-2" {
		t.Errorf("persisted access token = %q, want access-token-2", tok.AccessToken)
	}
	if saved.RefreshToken != "refresh-token-1" {
		t.Errorf("refresh token = %q, want preserved", saved.RefreshToken)
	}
	if saved.Expiry != "" && !strings.HasSuffix(saved.Expiry, "Z") {
		t.Errorf("persisted expiry %q is not UTC with Z suffix", saved.Expiry)
	}
}

func TestLoadCredentials_Validation(t *testing.T) {
	tests := []struct {
		name  string
		mutate func(*credentials)
	}{
		{"no tokens", func(c *credentials) { c.Token = ""; c.RefreshToken = "" }},
		{"no client id", func(c *credentials) { c.ClientID = "" }},
		{"no client secret", func(c *credentials) { c.ClientSecret = "" }},
		{"bad expiry", func(c *credentials) { c.Expiry = "next tuesday" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := validCreds()
			tt.mutate(&creds)
			if _, _, err := loadCredentials(writeTokenFile(t, creds)); err == nil {
				t.Error("loadCredentials() succeeded, want error")
			}
		})
	}
}

func TestLoadCredentials_Defaults(t *testing.T) {
	creds := validCreds()
	creds.TokenURI = ""
	creds.Scopes = nil

	loaded, _, err := loadCredentials(writeTokenFile(t, creds))
	if err != nil {
		t.Fatalf("loadCredentials() error: %v", err)
	}
	if loaded.TokenURI != defaultTokenURI {
		t.Errorf("token URI = %q, want default", loaded.TokenURI)
	}
	if len(loaded.Scopes) != 1 || loaded.Scopes[0] != gmailSendScope {
		t.Errorf("scopes = %v, want [%s]", loaded.Scopes, gmailSendScope)
	}
}

func TestParseExpiry(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "", want: time.Time{}},
		{in: "2025-06-01T12:00:00Z", want: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		{in: "2025-06-01T14:00:00+02:00", want: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		// Naive timestamps from older tooling are taken as UTC.
		{in: "2025-06-01T12:00:00", want: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		{in: "2025-06-01T12:00:00.500000", want: time.Date(2025, 6, 1, 12, 0, 0, 500000000, time.UTC)},
		{in: "garbage", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseExpiry(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseExpiry(%q) succeeded, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseExpiry(%q) error: %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseExpiry(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
