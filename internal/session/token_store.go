// Package session holds the authenticated identity and role gating all
// other operations, and persists the bearer credential between runs.
package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// TokenStore persists the bearer token in durable client-local storage
// under a fixed name. Read returns an empty token, not an error, when
// nothing is stored.
type TokenStore interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// FileStore keeps the token in a single file, created with user-only
// permissions.
type FileStore struct {
	path string
}

// NewFileStore builds a store rooted at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Read(_ context.Context) (string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func (s *FileStore) Write(_ context.Context, token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, []byte(token), 0o600)
}

func (s *FileStore) Clear(_ context.Context) error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
