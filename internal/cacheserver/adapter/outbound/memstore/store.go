package memstore

import (
	"sync"

	"github.com/anthanhphan/go-distributed-cache/internal/cacheserver/port"
)

// Store is an in-memory port.Store. Values are copied on the way in and out.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// Ensure Store implements port.Store
var _ port.Store = (*Store)(nil)

func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

func (s *Store) Put(key string, value []byte) {
	v := append([]byte(nil), value...)
	s.mu.Lock()
	s.data[key] = v
	s.mu.Unlock()
}

func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	delete(s.data, key)
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
