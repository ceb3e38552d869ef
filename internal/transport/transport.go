// Package transport performs the HTTP round trips issued by the Garmin client.
//
// The Transport interface is the only network dependency of the session core;
// HTTP implements it on top of net/http with a cookie jar, default headers and
// retry of idempotent requests on network failures.
package transport

import (
	"context"
	"net/http"
	"net/url"
)

// ResponseType tells the transport how the response body will be consumed.
type ResponseType int

const (
	// ResponseJSON expects a structured JSON payload.
	ResponseJSON ResponseType = iota
	// ResponseText expects a textual document (TCX, GPX, KML, HTML).
	ResponseText
	// ResponseBinary expects raw bytes that must not be altered (ZIP archives).
	ResponseBinary
)

func (t ResponseType) String() string {
	switch t {
	case ResponseJSON:
		return "json"
	case ResponseText:
		return "text"
	case ResponseBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// accept returns the Accept header matching the response type.
func (t ResponseType) accept() string {
	switch t {
	case ResponseText:
		return "application/xml, text/*;q=0.9, */*;q=0.8"
	case ResponseBinary:
		return "application/zip, application/octet-stream, */*;q=0.8"
	default:
		return "application/json, text/plain, */*"
	}
}

// Request describes a single outgoing call.
type Request struct {
	Method       string
	URL          string
	Query        url.Values
	Header       http.Header
	Body         []byte
	ResponseType ResponseType
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport executes requests. Errors are returned only for network-level
// failures; any HTTP status is reported through Response.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts a function to the Transport interface.
type Func func(ctx context.Context, req *Request) (*Response, error)

// Do calls f(ctx, req).
func (f Func) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
