package storage

import (
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Memory keeps every namespace in one process-local cache
type Memory struct {
	cache *cache.Cache
}

// NewMemory creates an in-memory backend. Entries expire after ttl of
// inactivity; expired items are purged every 10 minutes.
func NewMemory(ttl time.Duration) *Memory {
	expiration := ttl
	if expiration <= 0 {
		expiration = cache.NoExpiration
	}
	return &Memory{cache: cache.New(expiration, 10*time.Minute)}
}

func (m *Memory) Scope(namespace string) Store {
	return &memoryStore{cache: m.cache, namespace: namespace}
}

func (m *Memory) Drop(namespace string) error {
	prefix := namespacedKey(namespace, "")
	for key := range m.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			m.cache.Delete(key)
		}
	}
	return nil
}

func (m *Memory) Close() error {
	m.cache.Flush()
	return nil
}

type memoryStore struct {
	cache     *cache.Cache
	namespace string
}

func (s *memoryStore) Get(key string) (string, bool, error) {
	if x, found := s.cache.Get(namespacedKey(s.namespace, key)); found {
		return x.(string), true, nil
	}
	return "", false, nil
}

func (s *memoryStore) Set(key, value string) error {
	s.cache.Set(namespacedKey(s.namespace, key), value, cache.DefaultExpiration)
	return nil
}

func (s *memoryStore) Remove(key string) error {
	s.cache.Delete(namespacedKey(s.namespace, key))
	return nil
}
