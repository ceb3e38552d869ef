package garmin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/florianilch/garmin-connect-go/internal/endpoint"
	"github.com/florianilch/garmin-connect-go/internal/transport"
)

const tracerName = "github.com/florianilch/garmin-connect-go/internal/garmin"

// ExpiryFunc decides whether a response signals a rejected access token.
type ExpiryFunc func(resp *transport.Response) bool

// ExpiredOnStatus returns an ExpiryFunc matching any of the given statuses.
func ExpiredOnStatus(statuses ...int) ExpiryFunc {
	set := make(map[int]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return func(resp *transport.Response) bool {
		_, ok := set[resp.StatusCode]
		return ok
	}
}

// DefaultExpiry treats 401 Unauthorized as token expiry.
var DefaultExpiry = ExpiredOnStatus(http.StatusUnauthorized)

// RequestOptions tunes a dispatched call.
type RequestOptions struct {
	Query        url.Values
	Header       http.Header
	ResponseType transport.ResponseType
}

// reauthenticator is the part of AuthSession the dispatcher relies on.
type reauthenticator interface {
	canReauthenticate() bool
	reauthenticate(ctx context.Context) error
}

// Dispatcher is the single path from typed operations to the network. It
// attaches the access token, recovers once from token expiry and classifies
// failures.
type Dispatcher struct {
	transport transport.Transport
	resolver  *endpoint.Resolver
	tokens    *TokenStore
	session   reauthenticator
	isExpired ExpiryFunc
	tracer    trace.Tracer
}

func newDispatcher(tr transport.Transport, resolver *endpoint.Resolver, tokens *TokenStore, session reauthenticator, isExpired ExpiryFunc) *Dispatcher {
	if isExpired == nil {
		isExpired = DefaultExpiry
	}
	return &Dispatcher{
		transport: tr,
		resolver:  resolver,
		tokens:    tokens,
		session:   session,
		isExpired: isExpired,
		tracer:    otel.Tracer(tracerName),
	}
}

// Get issues a GET and decodes the JSON response into out (when non-nil).
func (d *Dispatcher) Get(ctx context.Context, target string, opts RequestOptions, out any) error {
	return d.call(ctx, http.MethodGet, target, nil, opts, out)
}

// Post issues a POST with body encoded as JSON.
func (d *Dispatcher) Post(ctx context.Context, target string, body any, opts RequestOptions, out any) error {
	return d.call(ctx, http.MethodPost, target, body, opts, out)
}

// Put issues a PUT with body encoded as JSON.
func (d *Dispatcher) Put(ctx context.Context, target string, body any, opts RequestOptions, out any) error {
	return d.call(ctx, http.MethodPut, target, body, opts, out)
}

// DownloadBinary issues a GET and returns the undecoded body. The response
// type in opts tells the transport whether the document is text or binary.
func (d *Dispatcher) DownloadBinary(ctx context.Context, target string, opts RequestOptions) ([]byte, error) {
	if opts.ResponseType == transport.ResponseJSON {
		opts.ResponseType = transport.ResponseBinary
	}
	resp, err := d.do(ctx, http.MethodGet, target, nil, opts)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (d *Dispatcher) call(ctx context.Context, method, target string, body any, opts RequestOptions, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return invalidArgument("body", err.Error())
		}
	}

	resp, err := d.do(ctx, method, target, payload, opts)
	if err != nil {
		return err
	}

	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("garmin: decoding %s %s response: %w", method, target, err)
	}
	return nil
}

// do runs the dispatch contract: fail fast without tokens, send, recover once
// from expiry, classify.
func (d *Dispatcher) do(ctx context.Context, method, target string, payload []byte, opts RequestOptions) (*transport.Response, error) {
	if !d.tokens.IsPresent() {
		return nil, ErrNotAuthenticated
	}

	rawURL, err := d.resolver.Resolve(target)
	if err != nil {
		return nil, invalidArgument("target", err.Error())
	}

	ctx, span := d.tracer.Start(ctx, "garmin.dispatch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", rawURL),
		),
	)
	defer span.End()

	resp, err := d.send(ctx, method, rawURL, payload, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, err
	}

	if d.isExpired(resp) {
		span.AddEvent("token expired")
		resp, err = d.retryAfterReauth(ctx, method, rawURL, payload, opts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "session expired")
			return nil, err
		}
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if !resp.OK() {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return nil, &RequestError{Method: method, URL: rawURL, StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return resp, nil
}

// retryAfterReauth logs in again and repeats the call exactly once.
func (d *Dispatcher) retryAfterReauth(ctx context.Context, method, rawURL string, payload []byte, opts RequestOptions) (*transport.Response, error) {
	if d.session == nil || !d.session.canReauthenticate() {
		return nil, fmt.Errorf("%w: no credentials available for re-authentication", ErrSessionExpired)
	}
	if err := d.session.reauthenticate(ctx); err != nil {
		return nil, fmt.Errorf("%w: re-authentication failed: %w", ErrSessionExpired, err)
	}

	resp, err := d.send(ctx, method, rawURL, payload, opts)
	if err != nil {
		return nil, err
	}
	if d.isExpired(resp) {
		return nil, fmt.Errorf("%w: %s %s rejected after re-authentication (status %d)", ErrSessionExpired, method, rawURL, resp.StatusCode)
	}
	return resp, nil
}

// send attaches the token current at call time and performs one round trip.
func (d *Dispatcher) send(ctx context.Context, method, rawURL string, payload []byte, opts RequestOptions) (*transport.Response, error) {
	pair, ok := d.tokens.load()
	if !ok {
		return nil, ErrNotAuthenticated
	}

	req := &transport.Request{
		Method:       method,
		URL:          rawURL,
		Query:        opts.Query,
		Header:       http.Header{},
		Body:         payload,
		ResponseType: opts.ResponseType,
	}
	for k, vs := range opts.Header {
		req.Header[k] = append([]string(nil), vs...)
	}
	if payload != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	// SetAuthHeader only needs the header map, so a throwaway request is enough.
	carrier := &http.Request{Header: req.Header}
	pair.Access.OAuth2().SetAuthHeader(carrier)

	slog.DebugContext(ctx, "dispatching request", "method", method, "url", rawURL, "response_type", opts.ResponseType.String())

	resp, err := d.transport.Do(ctx, req)
	if err != nil {
		return nil, &TransportError{Method: method, URL: rawURL, Err: err}
	}
	return resp, nil
}
