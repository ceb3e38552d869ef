package garmin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/florianilch/garmin-connect-go/internal/endpoint"
	"github.com/florianilch/garmin-connect-go/internal/oauth1"
	"github.com/florianilch/garmin-connect-go/internal/transport"
)

const (
	ssoClientID     = "GarminConnect"
	mobileUserAgent = "com.garmin.android.apps.connectmobile"
	formContentType = "application/x-www-form-urlencoded"
)

// DefaultConsumer is the public OAuth1 consumer of the Garmin Connect mobile app.
var DefaultConsumer = oauth1.Consumer{
	Key:    "fc3e99d2-118c-44b8-8ae3-03370dde24c0",
	Secret: "E08WAR897WEy2knn7aFBrvegVAf0AFdWBBF",
}

var ticketPattern = regexp.MustCompile(`embed\?ticket=([^"]+)"`)

// ssoHandshake drives the Garmin SSO widget, then trades the service ticket
// for an OAuth1 token and the OAuth1 token for an OAuth2 token.
type ssoHandshake struct {
	transport transport.Transport
	resolver  *endpoint.Resolver
	signer    *oauth1.Signer
	now       func() time.Time
}

// Compile-time check to ensure ssoHandshake implements Handshake
var _ Handshake = (*ssoHandshake)(nil)

func newSSOHandshake(tr transport.Transport, resolver *endpoint.Resolver, consumer oauth1.Consumer, now func() time.Time) *ssoHandshake {
	return &ssoHandshake{
		transport: tr,
		resolver:  resolver,
		signer:    oauth1.NewSigner(consumer),
		now:       now,
	}
}

// Authenticate implements Handshake.
func (h *ssoHandshake) Authenticate(ctx context.Context, creds Credentials) (TokenPair, error) {
	ticket, err := h.ticket(ctx, creds)
	if err != nil {
		return TokenPair{}, err
	}
	slog.DebugContext(ctx, "obtained sso ticket")

	exchange, err := h.exchangeToken(ctx, ticket)
	if err != nil {
		return TokenPair{}, err
	}

	access, err := h.accessToken(ctx, exchange)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{Exchange: exchange, Access: access}, nil
}

// ticket submits the sign-in form and extracts the service ticket.
func (h *ssoHandshake) ticket(ctx context.Context, creds Credentials) (string, error) {
	embedQuery := url.Values{
		"clientId": {ssoClientID},
		"locale":   {"en"},
		"service":  {h.resolver.Modern()},
	}
	if _, err := h.send(ctx, &transport.Request{
		Method:       http.MethodGet,
		URL:          h.resolver.SSOEmbed(),
		Query:        embedQuery,
		ResponseType: transport.ResponseText,
	}); err != nil {
		return "", err
	}

	signinQuery := url.Values{
		"id":          {"gauth-widget"},
		"embedWidget": {"true"},
		"locale":      {"en"},
		"gauthHost":   {h.resolver.SSOEmbed()},
	}
	page, err := h.send(ctx, &transport.Request{
		Method:       http.MethodGet,
		URL:          h.resolver.SignIn(),
		Query:        signinQuery,
		ResponseType: transport.ResponseText,
	})
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return "", &AuthenticationError{Category: AuthFailureUnexpected, Err: fmt.Errorf("failed to parse signin page: %w", err)}
	}
	csrf := doc.Find(`input[name="_csrf"]`).AttrOr("value", "")
	if csrf == "" {
		return "", &AuthenticationError{Category: AuthFailureUnexpected, Err: errors.New("csrf token not found in signin page")}
	}

	form := url.Values{
		"username": {creds.Username},
		"password": {creds.Password},
		"embed":    {"true"},
		"_csrf":    {csrf},
	}
	result, err := h.send(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    h.resolver.SignIn(),
		Query:  signinQuery,
		Header: http.Header{
			"Content-Type": {formContentType},
			"Origin":       {h.resolver.SSOOrigin()},
			"Referer":      {h.resolver.SignIn()},
			"Dnt":          {"1"},
		},
		Body:         []byte(form.Encode()),
		ResponseType: transport.ResponseText,
	})
	if err != nil {
		return "", err
	}

	return parseSigninResult(result.Body)
}

// parseSigninResult classifies the HTML returned by the sign-in POST.
func parseSigninResult(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", &AuthenticationError{Category: AuthFailureUnexpected, Err: fmt.Errorf("failed to parse signin result: %w", err)}
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())

	switch {
	case title == "Success":
		m := ticketPattern.FindSubmatch(body)
		if len(m) < 2 {
			return "", &AuthenticationError{Category: AuthFailureUnexpected, Err: errors.New("ticket not found in signin result")}
		}
		return string(m[1]), nil
	case strings.Contains(title, "MFA"):
		return "", &AuthenticationError{Category: AuthFailureMFARequired, Err: errors.New("multi-factor authentication required")}
	case bytes.Contains(body, []byte("ACCOUNT_LOCKED")) || strings.Contains(strings.ToLower(title), "locked"):
		return "", &AuthenticationError{Category: AuthFailureAccountLocked, Err: errors.New("account locked")}
	default:
		return "", &AuthenticationError{Category: AuthFailureInvalidCredentials, Err: fmt.Errorf("signin rejected (page title %q)", title)}
	}
}

// exchangeToken trades the service ticket for an OAuth1 token.
func (h *ssoHandshake) exchangeToken(ctx context.Context, ticket string) (ExchangeToken, error) {
	query := url.Values{
		"ticket":             {ticket},
		"login-url":          {h.resolver.SSOEmbed()},
		"accepts-mfa-tokens": {"true"},
	}
	auth, err := h.signer.Authorization(http.MethodGet, h.resolver.Preauthorized(), oauth1.Params{Query: query}, nil)
	if err != nil {
		return ExchangeToken{}, &AuthenticationError{Category: AuthFailureUnexpected, Err: err}
	}

	resp, err := h.send(ctx, &transport.Request{
		Method: http.MethodGet,
		URL:    h.resolver.Preauthorized(),
		Query:  query,
		Header: http.Header{
			"Authorization": {auth},
			"User-Agent":    {mobileUserAgent},
		},
		ResponseType: transport.ResponseText,
	})
	if err != nil {
		return ExchangeToken{}, err
	}

	values, err := url.ParseQuery(strings.TrimSpace(string(resp.Body)))
	if err != nil {
		return ExchangeToken{}, &AuthenticationError{Category: AuthFailureUnexpected, Err: fmt.Errorf("failed to parse oauth1 response: %w", err)}
	}
	token := ExchangeToken{
		Token:                  values.Get("oauth_token"),
		TokenSecret:            values.Get("oauth_token_secret"),
		MFAToken:               values.Get("mfa_token"),
		MFAExpirationTimestamp: values.Get("mfa_expiration_timestamp"),
	}
	if token.Token == "" || token.TokenSecret == "" {
		return ExchangeToken{}, &AuthenticationError{Category: AuthFailureUnexpected, Err: errors.New("oauth1 token missing in response")}
	}
	return token, nil
}

// accessToken trades the OAuth1 token for an OAuth2 token.
func (h *ssoHandshake) accessToken(ctx context.Context, exchange ExchangeToken) (AccessToken, error) {
	form := url.Values{}
	if exchange.MFAToken != "" {
		form.Set("mfa_token", exchange.MFAToken)
	}
	auth, err := h.signer.Authorization(http.MethodPost, h.resolver.Exchange(), oauth1.Params{Form: form}, &oauth1.Token{
		Token:  exchange.Token,
		Secret: exchange.TokenSecret,
	})
	if err != nil {
		return AccessToken{}, &AuthenticationError{Category: AuthFailureUnexpected, Err: err}
	}

	resp, err := h.send(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    h.resolver.Exchange(),
		Header: http.Header{
			"Authorization": {auth},
			"User-Agent":    {mobileUserAgent},
			"Content-Type":  {formContentType},
		},
		Body: []byte(form.Encode()),
	})
	if err != nil {
		return AccessToken{}, err
	}

	var token AccessToken
	if err := json.Unmarshal(resp.Body, &token); err != nil {
		return AccessToken{}, &AuthenticationError{Category: AuthFailureUnexpected, Err: fmt.Errorf("failed to decode oauth2 token: %w", err)}
	}
	if token.AccessToken == "" {
		return AccessToken{}, &AuthenticationError{Category: AuthFailureUnexpected, Err: errors.New("oauth2 access token missing in response")}
	}
	token.stamp(h.now())
	return token, nil
}

// send performs one handshake step. Network failures and non-200 statuses
// become AuthenticationErrors.
func (h *ssoHandshake) send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	resp, err := h.transport.Do(ctx, req)
	if err != nil {
		return nil, &AuthenticationError{
			Category: AuthFailureNetwork,
			Err:      &TransportError{Method: req.Method, URL: req.URL, Err: err},
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &AuthenticationError{
			Category:   AuthFailureRejected,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s %s: unexpected status code %d", req.Method, req.URL, resp.StatusCode),
		}
	}
	return resp, nil
}
