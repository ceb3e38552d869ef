package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/publicsuffix"
)

// Defaults for the HTTP transport.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultRetries   = 2
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.0.0 Safari/537.36"

	maxResponseBodyBytes int64 = 64 << 20 // 64 MiB, large FIT archives stay well below
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Option configures an HTTP transport.
type Option func(*httpConfig)

type httpConfig struct {
	timeout   time.Duration
	retries   uint64
	userAgent string
	base      http.RoundTripper
}

// WithTimeout bounds every round trip including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(c *httpConfig) {
		c.timeout = d
	}
}

// WithRetries sets how often an idempotent request is retried after a
// network failure. Zero disables retries.
func WithRetries(n uint64) Option {
	return func(c *httpConfig) {
		c.retries = n
	}
}

// WithUserAgent overrides the default browser user agent.
func WithUserAgent(ua string) Option {
	return func(c *httpConfig) {
		c.userAgent = ua
	}
}

// WithBaseTransport sets the underlying RoundTripper (useful for proxies and tests).
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *httpConfig) {
		c.base = rt
	}
}

// HTTP is a Transport backed by net/http. The cookie jar keeps SSO cookies
// between the steps of the login handshake.
type HTTP struct {
	client  *http.Client
	retries uint64
}

// Compile-time check to ensure HTTP implements Transport
var _ Transport = (*HTTP)(nil)

// NewHTTP creates an HTTP transport.
func NewHTTP(opts ...Option) (*HTTP, error) {
	cfg := &httpConfig{
		timeout:   DefaultTimeout,
		retries:   DefaultRetries,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	base := cfg.base
	if base == nil {
		base = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			IdleConnTimeout: 90 * time.Second,
		}
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &HTTP{
		client: &http.Client{
			Timeout: cfg.timeout,
			Jar:     jar,
			Transport: &headerTransport{
				base:      base,
				userAgent: cfg.userAgent,
			},
		},
		retries: cfg.retries,
	}, nil
}

// Do executes req. GET and HEAD requests are retried with exponential backoff
// when the network fails; HTTP error statuses are never retried here.
func (t *HTTP) Do(ctx context.Context, req *Request) (*Response, error) {
	var resp *Response

	op := func() error {
		r, retryable, err := t.roundTrip(ctx, req)
		if err != nil {
			if !retryable || !idempotent(req.Method) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			slog.DebugContext(ctx, "transport attempt failed", "method", req.Method, "url", req.URL, "error", err)
			return err
		}
		resp = r
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), t.retries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return resp, nil
}

// roundTrip performs one attempt. The boolean reports whether a failure may be
// retried.
func (t *HTTP) roundTrip(ctx context.Context, req *Request) (*Response, bool, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		httpReq.URL.RawQuery = q.Encode()
	}
	for k, vs := range req.Header {
		httpReq.Header[k] = append([]string(nil), vs...)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", req.ResponseType.accept())
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, true, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBodyBytes+1))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(respBody)) > maxResponseBodyBytes {
		return nil, false, fmt.Errorf("response body exceeds %d bytes", maxResponseBodyBytes)
	}

	slog.DebugContext(ctx, "transport response", "method", method, "url", httpReq.URL.Redacted(), "status", httpResp.StatusCode, "bytes", len(respBody))

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       decodeBody(req.ResponseType, respBody),
	}, false, nil
}

// decodeBody strips a leading UTF-8 byte order mark from textual exports.
// Binary bodies are returned byte for byte.
func decodeBody(t ResponseType, body []byte) []byte {
	if t == ResponseText {
		return bytes.TrimPrefix(body, utf8BOM)
	}
	return body
}

func idempotent(method string) bool {
	return method == "" || method == http.MethodGet || method == http.MethodHead
}
