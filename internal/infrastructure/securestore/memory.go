package securestore

import (
	"context"
	"sync"

	"github.com/mycheff/engine/internal/domain"
)

// MemoryStore is a process-lifetime SecureStore. Nothing survives a restart.
type MemoryStore struct {
	data  map[string]string
	mutex sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get retrieves a value
func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return "", domain.ErrStoreKeyNotFound
	}
	return v, nil
}

// Set stores all values at once
func (s *MemoryStore) Set(ctx context.Context, values map[string]string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for k, v := range values {
		s.data[k] = v
	}
	return nil
}

// Delete removes the given keys
func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

// Size returns the number of stored keys
func (s *MemoryStore) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.data)
}
