// Package oauth1 signs requests with OAuth 1.0a HMAC-SHA1 (RFC 5849).
//
// Only the signing half of the protocol is implemented: Garmin issues the
// OAuth1 token itself through the SSO ticket exchange, so there is no
// temporary-credential or authorization step.
package oauth1

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const signatureMethod = "HMAC-SHA1"

// Consumer identifies the client application.
type Consumer struct {
	Key    string `json:"consumer_key"`
	Secret string `json:"consumer_secret"`
}

// Token is the user-level OAuth1 credential. A nil token signs with the
// consumer only.
type Token struct {
	Token  string
	Secret string
}

// Params are the request parameters taking part in the signature besides the
// oauth_* protocol parameters: query string and form encoded body.
type Params struct {
	Query url.Values
	Form  url.Values
}

// Signer produces Authorization headers. Nonce and Now default to random
// values and the wall clock; tests pin them.
type Signer struct {
	Consumer Consumer
	Nonce    func() string
	Now      func() time.Time
}

// NewSigner creates a Signer for consumer.
func NewSigner(consumer Consumer) *Signer {
	return &Signer{Consumer: consumer}
}

// Authorization returns the value of the Authorization header for the request.
func (s *Signer) Authorization(method, rawURL string, params Params, token *Token) (string, error) {
	if s.Consumer.Key == "" || s.Consumer.Secret == "" {
		return "", fmt.Errorf("oauth1: consumer key and secret are required")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("oauth1: invalid url: %w", err)
	}

	oauthParams := map[string]string{
		"oauth_consumer_key":     s.Consumer.Key,
		"oauth_nonce":            s.nonce(),
		"oauth_signature_method": signatureMethod,
		"oauth_timestamp":        strconv.FormatInt(s.now().Unix(), 10),
		"oauth_version":          "1.0",
	}
	tokenSecret := ""
	if token != nil {
		oauthParams["oauth_token"] = token.Token
		tokenSecret = token.Secret
	}

	all := url.Values{}
	for k, v := range u.Query() {
		all[k] = append(all[k], v...)
	}
	for k, v := range params.Query {
		all[k] = append(all[k], v...)
	}
	for k, v := range params.Form {
		all[k] = append(all[k], v...)
	}
	for k, v := range oauthParams {
		all.Set(k, v)
	}

	base := signatureBase(method, baseURL(u), all)
	key := escape(s.Consumer.Secret) + "&" + escape(tokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	oauthParams["oauth_signature"] = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, escape(k), escape(oauthParams[k])))
	}
	return "OAuth " + strings.Join(parts, ", "), nil
}

func (s *Signer) nonce() string {
	if s.Nonce != nil {
		return s.Nonce()
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *Signer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// signatureBase builds METHOD&url&params with every component percent encoded.
func signatureBase(method, base string, params url.Values) string {
	type pair struct{ k, v string }
	pairs := make([]pair, 0, len(params))
	for k, vs := range params {
		for _, v := range vs {
			pairs = append(pairs, pair{escape(k), escape(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k == pairs[j].k {
			return pairs[i].v < pairs[j].v
		}
		return pairs[i].k < pairs[j].k
	})

	encoded := make([]string, len(pairs))
	for i, p := range pairs {
		encoded[i] = p.k + "=" + p.v
	}

	return strings.ToUpper(method) + "&" + escape(base) + "&" + escape(strings.Join(encoded, "&"))
}

// baseURL drops query, fragment and default ports.
func baseURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if (scheme == "http" && strings.HasSuffix(host, ":80")) || (scheme == "https" && strings.HasSuffix(host, ":443")) {
		host = host[:strings.LastIndex(host, ":")]
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path
}

// escape percent encodes per RFC 3986: only unreserved characters stay literal.
func escape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z') || ('0' <= c && c <= '9') ||
		c == '-' || c == '.' || c == '_' || c == '~'
}
