package garmin

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/florianilch/garmin-connect-go/internal/transport"
)

// fakeTransport answers requests from a handler and records every call.
type fakeTransport struct {
	mu      sync.Mutex
	calls   []*transport.Request
	handler func(req *transport.Request) (*transport.Response, error)
}

func (f *fakeTransport) Do(_ context.Context, req *transport.Request) (*transport.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.handler(req)
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTransport) requests() []*transport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*transport.Request(nil), f.calls...)
}

// callsTo counts recorded calls whose URL contains fragment.
func (f *fakeTransport) callsTo(fragment string) int {
	n := 0
	for _, req := range f.requests() {
		if strings.Contains(req.URL, fragment) {
			n++
		}
	}
	return n
}

func jsonResponse(status int, body string) *transport.Response {
	return &transport.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       []byte(body),
	}
}

// fakeHandshake issues numbered token pairs.
type fakeHandshake struct {
	mu    sync.Mutex
	calls int
	err   error
	creds []Credentials
}

func (h *fakeHandshake) Authenticate(_ context.Context, creds Credentials) (TokenPair, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.creds = append(h.creds, creds)
	if h.err != nil {
		return TokenPair{}, h.err
	}
	return testPair("access-" + string(rune('0'+h.calls))), nil
}

func (h *fakeHandshake) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func testPair(access string) TokenPair {
	return TokenPair{
		Exchange: ExchangeToken{Token: "oauth1-token", TokenSecret: "oauth1-secret"},
		Access: AccessToken{
			Scope:       "CONNECT_READ",
			AccessToken: access,
			TokenType:   "Bearer",
			ExpiresIn:   3600,
		},
	}
}

var fixedNow = time.Date(2024, time.March, 9, 12, 30, 0, 0, time.UTC)

func newTestClient(t *testing.T, tr *fakeTransport, hs Handshake, opts ...Option) *Client {
	t.Helper()

	all := append([]Option{
		WithTransport(tr),
		WithHandshake(hs),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	client, err := New(Config{Credentials: &Credentials{Username: "user@example.com", Password: "secret"}}, all...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

var errNetwork = errors.New("connection reset by peer")
