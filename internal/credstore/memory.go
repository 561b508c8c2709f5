package credstore

import (
	"context"
	"sync"

	"github.com/spec-kit/storefront-session/internal/domain"
)

type memoryBackend struct {
	mu    sync.RWMutex
	items map[string]domain.CredentialPair
}

// NewMemory builds a process-local backend.
func NewMemory() Backend {
	return &memoryBackend{items: make(map[string]domain.CredentialPair)}
}

func (b *memoryBackend) Load(_ context.Context, key string) (domain.CredentialPair, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pair, ok := b.items[key]
	if !ok {
		return domain.CredentialPair{}, ErrNotFound
	}
	return pair, nil
}

func (b *memoryBackend) Save(_ context.Context, key string, pair domain.CredentialPair) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[key] = pair
	return nil
}

func (b *memoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.items, key)
	return nil
}

func (b *memoryBackend) CompareAndSwap(_ context.Context, key, expectedAccess string, next domain.CredentialPair) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	current, ok := b.items[key]
	if !ok || current.AccessToken != expectedAccess {
		return false, nil
	}
	if next.Empty() {
		delete(b.items, key)
	} else {
		b.items[key] = next
	}
	return true, nil
}
