package garmin

import (
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
)

// ExchangeToken is the first-stage OAuth1 token issued for an SSO ticket. It
// is only used to obtain access tokens.
type ExchangeToken struct {
	Token                  string `json:"oauth_token"`
	TokenSecret            string `json:"oauth_token_secret"`
	MFAToken               string `json:"mfa_token,omitempty"`
	MFAExpirationTimestamp string `json:"mfa_expiration_timestamp,omitempty"`
}

// AccessToken is the second-stage OAuth2 token authorizing API calls.
type AccessToken struct {
	Scope                 string `json:"scope"`
	JTI                   string `json:"jti"`
	AccessToken           string `json:"access_token"`
	TokenType             string `json:"token_type"`
	RefreshToken          string `json:"refresh_token"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
	ExpiresAt             int64  `json:"expires_at"`
	RefreshTokenExpiresAt int64  `json:"refresh_token_expires_at"`
}

// stamp fills the absolute expiry fields relative to issuedAt.
func (t *AccessToken) stamp(issuedAt time.Time) {
	t.ExpiresAt = issuedAt.Unix() + t.ExpiresIn
	t.RefreshTokenExpiresAt = issuedAt.Unix() + t.RefreshTokenExpiresIn
}

// OAuth2 converts the token for use with golang.org/x/oauth2 helpers.
func (t AccessToken) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		ExpiresIn:    t.ExpiresIn,
	}
	if t.ExpiresAt > 0 {
		tok.Expiry = time.Unix(t.ExpiresAt, 0)
	}
	return tok
}

// TokenPair is one authenticated session.
type TokenPair struct {
	Exchange ExchangeToken `json:"oauth1"`
	Access   AccessToken   `json:"oauth2"`
}

// Complete reports whether both halves are present.
func (p TokenPair) Complete() bool {
	return p.Exchange.Token != "" && p.Access.AccessToken != ""
}

// TokenStore holds the current token pair. The pair is replaced as a single
// value so readers never observe one half of an old pair next to one half of
// a new one.
type TokenStore struct {
	pair atomic.Pointer[TokenPair]
}

// Export returns a copy of the current pair.
func (s *TokenStore) Export() (TokenPair, error) {
	p := s.pair.Load()
	if p == nil || !p.Complete() {
		return TokenPair{}, ErrTokenMissing
	}
	return *p, nil
}

// Import overwrites the current pair without validating it.
func (s *TokenStore) Import(pair TokenPair) {
	s.pair.Store(&pair)
}

// IsPresent reports whether a complete pair is installed.
func (s *TokenStore) IsPresent() bool {
	p := s.pair.Load()
	return p != nil && p.Complete()
}

// load returns the current pair for dispatch.
func (s *TokenStore) load() (TokenPair, bool) {
	p := s.pair.Load()
	if p == nil || !p.Complete() {
		return TokenPair{}, false
	}
	return *p, true
}
