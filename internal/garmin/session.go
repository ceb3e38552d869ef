package garmin

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Credentials are the username/password used for the SSO handshake.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) usable() bool {
	return c.Username != "" && c.Password != ""
}

// Handshake turns credentials into a complete token pair. The default
// implementation drives the Garmin SSO flow over the configured Transport.
type Handshake interface {
	Authenticate(ctx context.Context, creds Credentials) (TokenPair, error)
}

// AuthSession owns the login protocol and session notifications.
type AuthSession struct {
	handshake Handshake
	tokens    *TokenStore
	events    listeners

	credMu sync.Mutex
	creds  Credentials
}

func newAuthSession(creds Credentials, handshake Handshake, tokens *TokenStore) *AuthSession {
	return &AuthSession{
		handshake: handshake,
		tokens:    tokens,
		creds:     creds,
	}
}

// Login authenticates with the stored credentials, replacing them first when
// both username and password are given. The new pair is installed only after
// the whole handshake succeeded, then EventSessionChange is emitted.
func (s *AuthSession) Login(ctx context.Context, username, password string) error {
	if username != "" && password != "" {
		s.setCredentials(Credentials{Username: username, Password: password})
	}

	creds := s.credentials()
	if !creds.usable() {
		return ErrCredentialsMissing
	}

	pair, err := s.handshake.Authenticate(ctx, creds)
	if err != nil {
		var authErr *AuthenticationError
		if !errors.As(err, &authErr) {
			err = &AuthenticationError{Category: AuthFailureUnexpected, Err: err}
		}
		slog.WarnContext(ctx, "login failed", "error", err)
		return err
	}
	if !pair.Complete() {
		return &AuthenticationError{Category: AuthFailureUnexpected, Err: errors.New("handshake returned an incomplete token pair")}
	}

	s.tokens.Import(pair)
	slog.InfoContext(ctx, "session established", "scope", pair.Access.Scope, "expires_at", pair.Access.ExpiresAt)

	s.events.emit(ctx, EventSessionChange)
	return nil
}

// canReauthenticate reports whether stored credentials allow a silent login.
func (s *AuthSession) canReauthenticate() bool {
	return s.credentials().usable()
}

// reauthenticate performs a silent login with the stored credentials.
func (s *AuthSession) reauthenticate(ctx context.Context) error {
	slog.InfoContext(ctx, "access token rejected, re-authenticating")
	return s.Login(ctx, "", "")
}

// On registers fn for ev and returns a handle for Off.
func (s *AuthSession) On(ev Event, fn func()) Subscription {
	return s.events.on(ev, fn)
}

// Off removes a listener. Unknown subscriptions are ignored.
func (s *AuthSession) Off(ev Event, sub Subscription) {
	s.events.off(ev, sub)
}

func (s *AuthSession) credentials() Credentials {
	s.credMu.Lock()
	defer s.credMu.Unlock()
	return s.creds
}

func (s *AuthSession) setCredentials(c Credentials) {
	s.credMu.Lock()
	defer s.credMu.Unlock()
	s.creds = c
}
