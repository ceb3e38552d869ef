package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/florianilch/garmin-connect-go/internal/garmin"
)

// ErrNotFound is returned by Read when the backend holds no token pair.
var ErrNotFound = errors.New("tokenstore: no stored token")

// ErrReadOnly is returned by Write on backends that cannot persist.
var ErrReadOnly = errors.New("tokenstore: storage is read-only")

// TokenStore reads and writes token pairs to persistent storage.
type TokenStore interface {
	// Read returns the stored pair. Returns ErrNotFound if nothing is stored
	// and an error if the stored document is incomplete.
	Read(ctx context.Context) (garmin.TokenPair, error)

	// Write persists the pair. Returns ErrReadOnly if the backend is read-only
	// (e.g., environment variables) or an error if the write fails.
	Write(ctx context.Context, pair garmin.TokenPair) error
}

// Encode serializes a pair in the document format shared by all backends.
func Encode(pair garmin.TokenPair) ([]byte, error) {
	if !pair.Complete() {
		return nil, fmt.Errorf("refusing to store incomplete token pair")
	}
	return json.MarshalIndent(pair, "", "  ")
}

// Decode parses a stored document and rejects incomplete pairs.
func Decode(data []byte) (garmin.TokenPair, error) {
	var pair garmin.TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return garmin.TokenPair{}, fmt.Errorf("invalid token document: %w", err)
	}
	if !pair.Complete() {
		return garmin.TokenPair{}, fmt.Errorf("incomplete token document: oauth1 and oauth2 tokens are required")
	}
	return pair, nil
}
