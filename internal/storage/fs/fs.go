package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/instagrid/instagrid/internal/storage"
)

// Backend stores blobs as files under a base directory, preserving the
// slash-separated key hierarchy. Image keys live under drafts/images/ and
// temp/, which the HTTP layer serves; token.json and the drafts index sit
// outside those subtrees and are never reachable over HTTP.
type Backend struct {
	baseDir   string
	urlPrefix string
}

type Config struct {
	BaseDir   string // directory blobs are written into
	URLPrefix string // prefix for PublicURL, e.g. http://localhost:3000/drafts/image
}

func New(cfg Config) (*Backend, error) {
	if cfg.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &Backend{baseDir: cfg.BaseDir, urlPrefix: strings.TrimSuffix(cfg.URLPrefix, "/")}, nil
}

// cleanKey normalizes a key so that dot segments can never resolve outside
// the base directory.
func cleanKey(key string) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean == "." {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return clean, nil
}

func (b *Backend) path(key string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.baseDir, filepath.FromSlash(clean)), nil
}

func (b *Backend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	p, err := b.path(key)
	if err != nil {
		return &storage.StorageError{Op: "put", Key: key, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return &storage.StorageError{Op: "put", Key: key, Err: err}
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return &storage.StorageError{Op: "put", Key: key, Err: err}
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	p, err := b.path(key)
	if err != nil {
		return nil, &storage.StorageError{Op: "get", Key: key, Err: err}
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%q: %w", key, storage.ErrNotFound)
		}
		return nil, &storage.StorageError{Op: "get", Key: key, Err: err}
	}
	return data, nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	p, err := b.path(key)
	if err != nil {
		return &storage.StorageError{Op: "delete", Key: key, Err: err}
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return &storage.StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func (b *Backend) PublicURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if b.urlPrefix == "" {
		return "", errors.New("no URL prefix configured for filesystem backend")
	}
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return b.urlPrefix + "/" + clean, nil
}
