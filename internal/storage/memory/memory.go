package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/instagrid/instagrid/internal/storage"
)

// Backend keeps blobs in a map. Used in tests and throwaway setups.
type Backend struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func New() *Backend {
	return &Backend{blobs: make(map[string][]byte)}
}

func (b *Backend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	b.blobs[key] = cp
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%q: %w", key, storage.ErrNotFound)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, key)
	return nil
}

func (b *Backend) PublicURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.blobs[key]; !ok {
		return "", fmt.Errorf("%q: %w", key, storage.ErrNotFound)
	}
	return "memory://" + key, nil
}

// Len reports the number of stored blobs.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.blobs)
}
