package evidence

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore holds evidence blobs in memory for tests and demo mode.
// Set FailNext to force the next Put to fail.
type MemoryStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	FailNext bool
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailNext {
		s.FailNext = false
		return "", ErrUploadFailed
	}

	name := ObjectName(filename)
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[name] = cp
	return fmt.Sprintf("memory://%s", name), nil
}

// Len reports how many blobs are stored.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
