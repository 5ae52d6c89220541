package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/stockwatch/internal/repo"
)

// Store keeps blobs in a map; nothing survives the process.
type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	// FailWrites makes Set and Delete return the error, for exercising
	// persistence failure paths.
	FailWrites error
}

func New() *Store {
	return &Store{
		blobs: make(map[string][]byte),
	}
}

func (m *Store) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, repo.ErrNotFound
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (m *Store) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.blobs[key] = cp
	return nil
}

func (m *Store) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	delete(m.blobs, key)
	return nil
}
