package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory BlobStore for tests and local development.
// Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore constructs an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Put stores a copy of body under bucket/key.
func (s *MemoryStore) Put(_ context.Context, bucket, key string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(body))
	copy(buf, body)
	s.objects[objectKey(bucket, key)] = buf
	return nil
}

// Get returns a copy of the object stored under bucket/key.
func (s *MemoryStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	body, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
	}
	buf := make([]byte, len(body))
	copy(buf, body)
	return buf, nil
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}
