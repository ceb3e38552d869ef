package garmin

import (
	"context"
	"fmt"
	"time"

	"github.com/florianilch/garmin-connect-go/internal/endpoint"
	"github.com/florianilch/garmin-connect-go/internal/oauth1"
	"github.com/florianilch/garmin-connect-go/internal/transport"
)

// Config holds everything a Client needs. There is no package level default:
// credentials must be passed explicitly.
type Config struct {
	Credentials *Credentials
	Domain      endpoint.Domain
	// Consumer is the OAuth1 consumer used by the SSO handshake. Zero value
	// means DefaultConsumer.
	Consumer oauth1.Consumer
	// IsExpired detects a rejected access token. Nil means DefaultExpiry.
	IsExpired ExpiryFunc
}

// Option customizes collaborators of a Client.
type Option func(*options)

type options struct {
	transport  transport.Transport
	handshake  Handshake
	fileSystem FileSystem
	now        func() time.Time
}

// WithTransport sets the network transport. Defaults to transport.NewHTTP().
func WithTransport(tr transport.Transport) Option {
	return func(o *options) {
		o.transport = tr
	}
}

// WithHandshake replaces the SSO handshake.
func WithHandshake(h Handshake) Option {
	return func(o *options) {
		o.handshake = h
	}
}

// WithFileSystem sets where exports are written when a directory is given.
func WithFileSystem(fs FileSystem) Option {
	return func(o *options) {
		o.fileSystem = fs
	}
}

// WithClock overrides the wall clock used for date parameters and token expiry stamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Client is an authenticated Garmin Connect client. It is safe for
// concurrent use.
type Client struct {
	resolver   *endpoint.Resolver
	tokens     *TokenStore
	session    *AuthSession
	dispatcher *Dispatcher
	fs         FileSystem
	now        func() time.Time
}

// New creates a Client. It fails with ErrCredentialsMissing when cfg carries
// no usable credentials.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Credentials == nil || !cfg.Credentials.usable() {
		return nil, ErrCredentialsMissing
	}

	o := &options{
		fileSystem: OSFileSystem{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.transport == nil {
		tr, err := transport.NewHTTP()
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		o.transport = tr
	}

	consumer := cfg.Consumer
	if consumer.Key == "" || consumer.Secret == "" {
		consumer = DefaultConsumer
	}

	resolver := endpoint.NewResolver(cfg.Domain)
	if o.handshake == nil {
		o.handshake = newSSOHandshake(o.transport, resolver, consumer, o.now)
	}

	tokens := &TokenStore{}
	session := newAuthSession(*cfg.Credentials, o.handshake, tokens)

	return &Client{
		resolver:   resolver,
		tokens:     tokens,
		session:    session,
		dispatcher: newDispatcher(o.transport, resolver, tokens, session, cfg.IsExpired),
		fs:         o.fileSystem,
		now:        o.now,
	}, nil
}

// Login authenticates the client. When username and password are both
// non-empty they replace the configured credentials.
func (c *Client) Login(ctx context.Context, username, password string) (*Client, error) {
	if err := c.session.Login(ctx, username, password); err != nil {
		return nil, err
	}
	return c, nil
}

// ExportToken returns the current token pair for persistence.
func (c *Client) ExportToken() (TokenPair, error) {
	return c.tokens.Export()
}

// LoadToken installs a previously exported token pair.
func (c *Client) LoadToken(exchange ExchangeToken, access AccessToken) {
	c.tokens.Import(TokenPair{Exchange: exchange, Access: access})
}

// IsAuthenticated reports whether a complete token pair is installed.
func (c *Client) IsAuthenticated() bool {
	return c.tokens.IsPresent()
}

// On subscribes fn to ev. Listeners run synchronously in subscription order.
func (c *Client) On(ev Event, fn func()) Subscription {
	return c.session.On(ev, fn)
}

// Off unsubscribes a listener.
func (c *Client) Off(ev Event, sub Subscription) {
	c.session.Off(ev, sub)
}

// Domain returns the configured Garmin domain.
func (c *Client) Domain() endpoint.Domain {
	return c.resolver.Domain()
}

// Get calls an arbitrary endpoint. target is absolute or relative to the API
// host; the JSON response is decoded into out without further validation.
func (c *Client) Get(ctx context.Context, target string, query map[string][]string, out any) error {
	return c.dispatcher.Get(ctx, target, RequestOptions{Query: query}, out)
}

// Post sends body as JSON to an arbitrary endpoint.
func (c *Client) Post(ctx context.Context, target string, body any, out any) error {
	return c.dispatcher.Post(ctx, target, body, RequestOptions{}, out)
}

// Put sends body as JSON to an arbitrary endpoint.
func (c *Client) Put(ctx context.Context, target string, body any, out any) error {
	return c.dispatcher.Put(ctx, target, body, RequestOptions{}, out)
}

// GetAs is Get with the expected shape given as a type parameter.
func GetAs[T any](ctx context.Context, c *Client, target string, query map[string][]string) (T, error) {
	var out T
	err := c.Get(ctx, target, query, &out)
	return out, err
}

// PostAs is Post with the expected shape given as a type parameter.
func PostAs[T any](ctx context.Context, c *Client, target string, body any) (T, error) {
	var out T
	err := c.Post(ctx, target, body, &out)
	return out, err
}

// PutAs is Put with the expected shape given as a type parameter.
func PutAs[T any](ctx context.Context, c *Client, target string, body any) (T, error) {
	var out T
	err := c.Put(ctx, target, body, &out)
	return out, err
}
