// Package tokenstore persists Garmin token pairs between runs.
//
// Supports three storage backends with different security and deployment tradeoffs:
//   - File: Local JSON file with atomic writes, 0600 permissions and an advisory lock
//   - Env: Read-only environment variable holding the exported JSON document
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//
// Sessions that re-authenticate need writable storage (file or keyring) to keep
// the refreshed pair, while an imported pair can be served from read-only env storage.
package tokenstore
