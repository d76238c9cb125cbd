package session

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps sessions in process. It suits a single API instance and
// local development.
type MemoryStore struct {
	// mu serialises read-modify-write in Update.
	mu    sync.Mutex
	cache *cache.Cache
}

func NewMemoryStore(defaultTTL, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(defaultTTL, cleanupInterval)}
}

func (s *MemoryStore) Load(ctx context.Context, id string) (map[string]string, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return copyValues(v.(map[string]string)), nil
}

func (s *MemoryStore) Save(ctx context.Context, id string, values map[string]string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(values) == 0 {
		s.cache.Delete(id)
		return nil
	}
	s.cache.Set(id, copyValues(values), ttl)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, set map[string]string, removed []string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := make(map[string]string, len(set))
	if v, ok := s.cache.Get(id); ok {
		values = copyValues(v.(map[string]string))
	}
	for _, key := range removed {
		delete(values, key)
	}
	for k, v := range set {
		values[k] = v
	}
	if len(values) == 0 {
		s.cache.Delete(id)
		return nil
	}
	s.cache.Set(id, values, ttl)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.cache.Delete(id)
	return nil
}

func copyValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
