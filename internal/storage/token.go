package storage

import (
	"errors"
	"os"
	"strings"
)

// TokenFile stores the backend access token in a single 0600 file.
// Readers should re-read it on every request rather than caching it, so
// the vhttp.FileTokenSource over the same path sees Save immediately.
type TokenFile struct {
	Path string
}

// Save atomically replaces the stored token.
func (f TokenFile) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return &StorageError{Op: "write", Entity: "token", Err: ErrInvalidInput}
	}
	if _, err := WriteFileAtomic(f.Path, strings.NewReader(token+"\n"), 0600); err != nil {
		return &StorageError{Op: "write", Entity: "token", Err: err}
	}
	return nil
}

// Load returns the stored token or ErrNotFound.
func (f TokenFile) Load() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &StorageError{Op: "read", Entity: "token", Err: ErrNotFound}
		}
		return "", &StorageError{Op: "read", Entity: "token", Err: err}
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", &StorageError{Op: "read", Entity: "token", Err: ErrNotFound}
	}
	return token, nil
}

// Clear removes the stored token. Clearing a missing token is not an error.
func (f TokenFile) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &StorageError{Op: "delete", Entity: "token", Err: err}
	}
	return nil
}
