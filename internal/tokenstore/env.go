package tokenstore

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/florianilch/garmin-connect-go/internal/garmin"
)

// EnvStore provides read-only access to a token pair exported into an
// environment variable as JSON.
type EnvStore struct {
	envKey string
}

// Compile-time check to ensure EnvStore implements TokenStore
var _ TokenStore = (*EnvStore)(nil)

// NewEnvStore creates an EnvStore for the given environment variable.
// Returns error if the variable name is empty or not set in the environment.
func NewEnvStore(envKey string) (*EnvStore, error) {
	if envKey == "" {
		return nil, fmt.Errorf("environment key cannot be empty")
	}

	if _, exists := os.LookupEnv(envKey); !exists {
		return nil, fmt.Errorf("environment variable %s not set", envKey)
	}

	return &EnvStore{
		envKey: envKey,
	}, nil
}

// Read decodes the pair from the environment variable.
func (e *EnvStore) Read(ctx context.Context) (garmin.TokenPair, error) {
	if err := ctx.Err(); err != nil {
		return garmin.TokenPair{}, err
	}

	raw := strings.TrimSpace(os.Getenv(e.envKey))
	if raw == "" {
		return garmin.TokenPair{}, fmt.Errorf("environment variable %s is empty: %w", e.envKey, ErrNotFound)
	}
	return Decode([]byte(raw))
}

// Write is not supported for environment variables (they are read-only).
func (e *EnvStore) Write(ctx context.Context, _ garmin.TokenPair) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return ErrReadOnly
}
