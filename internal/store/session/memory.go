package session

import (
	"context"

	"github.com/patrickmn/go-cache"
)

// MemoryKV keeps entries in process memory. Entries never expire.
type MemoryKV struct {
	cache *cache.Cache
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{cache: cache.New(cache.NoExpiration, 0)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	if x, found := m.cache.Get(key); found {
		return append([]byte(nil), x.([]byte)...), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.cache.Set(key, append([]byte(nil), value...), cache.NoExpiration)
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	if _, found := m.cache.Get(key); !found {
		return ErrNotFound
	}
	m.cache.Delete(key)
	return nil
}

func (m *MemoryKV) Close() error {
	m.cache.Flush()
	return nil
}
