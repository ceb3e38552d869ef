// Package garmin is a client for the Garmin Connect data API.
//
// A Client owns one authenticated session. Login runs the SSO handshake and
// installs an OAuth1/OAuth2 token pair; every data operation goes through the
// Dispatcher, which attaches the current access token and, when the provider
// rejects it, logs in again with the stored credentials and retries the call
// exactly once.
//
// Token pairs can be exported and loaded again, so callers may persist a
// session and skip the handshake on the next start. Listeners registered for
// EventSessionChange are notified after every successful login.
package garmin
