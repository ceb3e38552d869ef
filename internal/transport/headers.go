package transport

import (
	"net/http"
)

// defaultHeaders are sent on every request unless the caller set them.
var defaultHeaders = map[string]string{
	"Accept-Language": "en-US,en;q=0.9",
	"Cache-Control":   "no-cache",
}

// headerTransport is an http.RoundTripper that fills in the user agent and
// default headers Garmin expects from a browser session.
type headerTransport struct {
	base      http.RoundTripper
	userAgent string
}

// Compile-time check that headerTransport implements http.RoundTripper.
var _ http.RoundTripper = (*headerTransport)(nil)

// RoundTrip clones the request before touching headers, as required by the
// http.RoundTripper contract.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	newReq := req.Clone(req.Context())
	if newReq.Header.Get("User-Agent") == "" && t.userAgent != "" {
		newReq.Header.Set("User-Agent", t.userAgent)
	}
	for key, value := range defaultHeaders {
		if newReq.Header.Get(key) == "" {
			newReq.Header.Set(key, value)
		}
	}

	return base.RoundTrip(newReq)
}
