package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/florianilch/garmin-connect-go/internal/garmin"
)

// KeyringStore provides OS-native secure credential storage for token pairs.
// Uses macOS Keychain, Windows Credential Manager, or Linux Secret Service.
type KeyringStore struct {
	service string
	user    string
}

// Compile-time check to ensure KeyringStore implements TokenStore
var _ TokenStore = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore for the given service and user identifiers.
func NewKeyringStore(service, user string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringStore{
		service: service,
		user:    user,
	}, nil
}

// Read returns the pair from the system keyring.
func (k *KeyringStore) Read(ctx context.Context) (garmin.TokenPair, error) {
	if err := ctx.Err(); err != nil {
		return garmin.TokenPair{}, err
	}

	secret, err := keyring.Get(k.service, k.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return garmin.TokenPair{}, ErrNotFound
	}
	if err != nil {
		return garmin.TokenPair{}, err
	}

	if secret == "" {
		return garmin.TokenPair{}, fmt.Errorf("empty token in keyring for service %s, user %s: %w", k.service, k.user, ErrNotFound)
	}

	return Decode([]byte(secret))
}

// Write persists the pair to the system keyring, overwriting any existing value.
func (k *KeyringStore) Write(ctx context.Context, pair garmin.TokenPair) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(pair)
	if err != nil {
		return err
	}
	return keyring.Set(k.service, k.user, string(data))
}
