package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/florianilch/garmin-connect-go/internal/garmin"
)

const lockRetryDelay = 50 * time.Millisecond

// FileStore provides atomic file-based token storage with secure permissions.
// Writes use temp file + rename for crash safety; a sibling lock file keeps
// concurrent processes from interleaving read-modify-write cycles.
type FileStore struct {
	filePath string
	lock     *flock.Flock
}

// Compile-time check to ensure FileStore implements TokenStore
var _ TokenStore = (*FileStore)(nil)

// NewFileStore creates a FileStore for the given path, creating parent directories
// with 0700 permissions if they don't exist.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return &FileStore{
		filePath: filePath,
		lock:     flock.New(filePath + ".lock"),
	}, nil
}

// Path returns the location of the token document.
func (f *FileStore) Path() string {
	return f.filePath
}

// Read returns the stored pair. Returns ErrNotFound if the file doesn't exist
// and an error if it is empty, malformed, or has insecure permissions.
func (f *FileStore) Read(ctx context.Context) (garmin.TokenPair, error) {
	if err := ctx.Err(); err != nil {
		return garmin.TokenPair{}, err
	}

	locked, err := f.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return garmin.TokenPair{}, fmt.Errorf("failed to lock %s: %w", f.filePath, err)
	}
	if locked {
		defer func() { _ = f.lock.Unlock() }()
	}

	// Check file permissions before reading
	info, err := os.Stat(f.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return garmin.TokenPair{}, ErrNotFound
	}
	if err != nil {
		return garmin.TokenPair{}, err
	}
	if info.Mode().Perm() != 0600 {
		return garmin.TokenPair{}, fmt.Errorf("insecure permissions on %s: %04o (expected 0600)", f.filePath, info.Mode().Perm())
	}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return garmin.TokenPair{}, err
	}
	if len(data) == 0 {
		return garmin.TokenPair{}, fmt.Errorf("empty token file %s", f.filePath)
	}
	return Decode(data)
}

// Write atomically saves the pair using temp file + rename for crash safety.
// Sets file permissions to 0600 (owner read/write only).
func (f *FileStore) Write(ctx context.Context, pair garmin.TokenPair) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(pair)
	if err != nil {
		return err
	}

	locked, err := f.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", f.filePath, err)
	}
	if locked {
		defer func() { _ = f.lock.Unlock() }()
	}

	// Create secure temp file in same directory for atomic rename
	dir := filepath.Dir(f.filePath)
	tempFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.Write(append(data, '\n')); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	if err := os.Rename(tempName, f.filePath); err != nil {
		return err
	}

	// Set secure file permissions (0600 = rw-------)
	return os.Chmod(f.filePath, 0600)
}
