package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/florianilch/garmin-connect-go/internal/garmin"
	"github.com/florianilch/garmin-connect-go/internal/tokenstore"
)

// sessionClient is the part of *garmin.Client the persistent session drives.
type sessionClient interface {
	Login(ctx context.Context, username, password string) (*garmin.Client, error)
	ExportToken() (garmin.TokenPair, error)
	LoadToken(exchange garmin.ExchangeToken, access garmin.AccessToken)
	IsAuthenticated() bool
	On(ev garmin.Event, fn func()) garmin.Subscription
	Off(ev garmin.Event, sub garmin.Subscription)
}

// PersistentSession keeps a client's token pair in a TokenStore. The stored
// pair is restored lazily on first use and every session change (login or
// silent re-login) is written back.
type PersistentSession struct {
	client sessionClient
	store  tokenstore.TokenStore
	sub    garmin.Subscription

	restore func() (bool, error)

	loginMu         sync.Mutex
	lastAccessToken atomic.Pointer[string]
	writeMu         sync.Mutex
}

// NewPersistentSession creates a PersistentSession and subscribes it to
// session changes of client. No I/O is performed until the first Ensure call.
func NewPersistentSession(client sessionClient, store tokenstore.TokenStore) (*PersistentSession, error) {
	if client == nil {
		return nil, fmt.Errorf("missing client")
	}
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}

	p := &PersistentSession{
		client: client,
		store:  store,
	}
	p.restore = sync.OnceValues(p.restoreFromStore)
	p.sub = client.On(garmin.EventSessionChange, p.persist)

	return p, nil
}

// restoreFromStore performs the one-time read of the stored pair.
func (p *PersistentSession) restoreFromStore() (bool, error) {
	// Listeners and the once-initializer carry no context; the read is local I/O.
	ctx := context.Background()

	pair, err := p.store.Read(ctx)
	if errors.Is(err, tokenstore.ErrNotFound) {
		slog.DebugContext(ctx, "no stored session found")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read stored session: %w", err)
	}

	// Remember the restored token to avoid an unnecessary write-back
	p.lastAccessToken.Store(&pair.Access.AccessToken)
	p.client.LoadToken(pair.Exchange, pair.Access)

	slog.DebugContext(ctx, "restored stored session", "expires_at", pair.Access.ExpiresAt)
	return true, nil
}

// Ensure makes sure the client holds a session, restoring the stored pair or
// logging in with the configured credentials.
func (p *PersistentSession) Ensure(ctx context.Context) error {
	if _, err := p.restore(); err != nil {
		return err
	}

	// Hot path: already authenticated
	if p.client.IsAuthenticated() {
		return nil
	}

	p.loginMu.Lock()
	defer p.loginMu.Unlock()

	if p.client.IsAuthenticated() {
		return nil
	}
	_, err := p.client.Login(ctx, "", "")
	return err
}

// Login forces a fresh login, replacing the stored session.
func (p *PersistentSession) Login(ctx context.Context, username, password string) error {
	p.loginMu.Lock()
	defer p.loginMu.Unlock()

	_, err := p.client.Login(ctx, username, password)
	return err
}

// Import installs pair in the client and persists it.
func (p *PersistentSession) Import(ctx context.Context, pair garmin.TokenPair) error {
	if !pair.Complete() {
		return fmt.Errorf("incomplete token pair")
	}
	p.client.LoadToken(pair.Exchange, pair.Access)
	return p.write(ctx, pair)
}

// Close unsubscribes from the client.
func (p *PersistentSession) Close() {
	p.client.Off(garmin.EventSessionChange, p.sub)
}

// persist is the session change listener.
func (p *PersistentSession) persist() {
	// Listeners carry no context; use background context for the write-back
	ctx := context.Background()

	pair, err := p.client.ExportToken()
	if err != nil {
		slog.ErrorContext(ctx, "session changed without a token pair", "error", err)
		return
	}

	// Hot path: lock-free atomic read for minimal contention
	if last := p.lastAccessToken.Load(); last != nil && *last == pair.Access.AccessToken {
		return
	}

	if err := p.write(ctx, pair); err != nil {
		if errors.Is(err, tokenstore.ErrReadOnly) {
			slog.WarnContext(ctx, "token storage is read-only, refreshed session is kept in memory only")
			return
		}
		// The session stays usable, but the next start has to log in again
		slog.ErrorContext(ctx, "failed to persist session", "error", err)
	}
}

func (p *PersistentSession) write(ctx context.Context, pair garmin.TokenPair) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if err := p.store.Write(ctx, pair); err != nil {
		return err
	}
	// Update cached token only on success - allows retry on next change
	p.lastAccessToken.Store(&pair.Access.AccessToken)
	return nil
}
