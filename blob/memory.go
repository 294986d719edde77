package blob

import (
	"context"
	"sync"
)

// MemoryStore is a test double that keeps objects in a map
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	// PutErr, when set, is returned by every Put
	PutErr error
}

// NewMemoryStore creates an empty in-memory blob store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, objectName string, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.PutErr != nil {
		return "", s.PutErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[objectName] = cp
	return "memory://" + objectName, nil
}

// Object returns a stored object's bytes
func (s *MemoryStore) Object(objectName string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[objectName]
	return data, ok
}

// Len reports the number of stored objects
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
