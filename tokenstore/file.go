package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps one token file per key inside a directory.
// Writes use temp file + rename for crash safety.
type FileStore struct {
	dir string
}

// Compile-time check to ensure FileStore implements TokenStore
var _ TokenStore = (*FileStore)(nil)

// NewFileStore creates a FileStore rooted at dir, creating it with 0700
// permissions if it doesn't exist.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("directory cannot be empty")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return &FileStore{
		dir: dir,
	}, nil
}

// path maps a key to a file name that cannot escape the store directory.
func (f *FileStore) path(key string) string {
	name := url.PathEscape(key)
	if strings.Trim(name, ".") == "" {
		// "", "." and ".." would resolve to the directory or its parent
		name = "%" + strings.ReplaceAll(name, ".", "%2E")
	}
	return filepath.Join(f.dir, name)
}

// Get returns the stored token after trimming whitespace. Returns ErrTokenNotFound
// if the file doesn't exist or is empty, and an error if it has insecure permissions.
func (f *FileStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	filePath := f.path(key)

	info, err := os.Stat(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrTokenNotFound, key)
	}
	if err != nil {
		return "", err
	}
	if info.Mode().Perm() != 0600 {
		return "", fmt.Errorf("insecure permissions on %s: %04o (expected 0600)", filePath, info.Mode().Perm())
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("%w: %s", ErrTokenNotFound, key)
	}
	return token, nil
}

// Set atomically saves the token using temp file + rename.
// The final file has 0600 permissions (owner read/write only).
func (f *FileStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(f.dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.WriteString(strings.TrimSpace(value) + "\n"); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	filePath := f.path(key)
	if err := os.Rename(tempName, filePath); err != nil {
		return err
	}

	return os.Chmod(filePath, 0600)
}
