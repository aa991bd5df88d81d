package gmail

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
)

const defaultTokenURI = "https://oauth2.googleapis.com/token"

// gmailSendScope is the only scope the monitor needs.
const gmailSendScope = "https://www.googleapis.com/auth/gmail.send"

// credentials is the persisted OAuth state, in the same JSON shape the
// Google client libraries write, so an externally provisioned token
// file works unchanged.
type credentials struct {
	Token          string   `json:"token"`
	RefreshToken   string   `json:"refresh_token"`
	TokenURI       string   `json:"token_uri"`
	ClientID       string   `json:"client_id"`
	ClientSecret   string   `json:"client_secret"`
	Scopes         []string `json:"scopes"`
	UniverseDomain string   `json:"universe_domain"`
	Account        string   `json:"account"`
	Expiry         string   `json:"expiry"`
}

// loadCredentials reads the token file and converts it into an oauth2
// token plus the client credentials needed to refresh it.
func loadCredentials(path string) (*credentials, *oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading token file: %w", err)
	}

	var creds credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, nil, fmt.Errorf("parsing token file: %w", err)
	}

	if creds.RefreshToken == "" && creds.Token == "" {
		return nil, nil, fmt.Errorf("token file %s has neither a token nor a refresh token", path)
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, nil, fmt.Errorf("token file %s is missing client credentials", path)
	}
	if creds.TokenURI == "" {
		creds.TokenURI = defaultTokenURI
	}
	if len(creds.Scopes) == 0 {
		creds.Scopes = []string{gmailSendScope}
	}

	expiry, err := parseExpiry(creds.Expiry)
	if err != nil {
		return nil, nil, fmt.Errorf("token file %s: %w", path, err)
	}

	tok := &oauth2.Token{
		AccessToken:  creds.Token,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       expiry,
	}
	return &creds, tok, nil
}

// save writes the credentials back with the given token's access token
// and expiry, keeping the file in the shape it was loaded in. The
// expiry is always stored as RFC 3339 UTC with a trailing "Z".
func (c *credentials) save(path string, tok *oauth2.Token) error {
	out := *c
	out.Token = tok.AccessToken
	if tok.RefreshToken != "" {
		out.RefreshToken = tok.RefreshToken
	}
	if out.UniverseDomain == "" {
		out.UniverseDomain = "googleapis.com"
	}
	out.Expiry = ""
	if !tok.Expiry.IsZero() {
		out.Expiry = tok.Expiry.UTC().Format(time.RFC3339)
	}

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token file: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

// parseExpiry accepts RFC 3339 timestamps and, for token files written
// by older tooling, naive timestamps without a zone, which are taken
// to be UTC.
func parseExpiry(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable token expiry %q", s)
}
