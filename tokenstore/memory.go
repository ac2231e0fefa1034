package tokenstore

import (
	"context"
	"sync"
)

// MemoryStore keeps tokens in a process-local map. Nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// Compile-time check to ensure MemoryStore implements TokenStore
var _ TokenStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: map[string]string{}}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	token, ok := m.tokens[key]
	if !ok || token == "" {
		return "", ErrTokenNotFound
	}
	return token, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[key] = value
	return nil
}
