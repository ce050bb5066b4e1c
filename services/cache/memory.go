package cache

import (
	"sync"
	"time"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryService implements CacheService with an in-process map. Access is
// guarded by a mutex since callers may hit it from the image enrichment pool.
type MemoryService struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

// NewMemoryService creates a new in-process cache
func NewMemoryService() *MemoryService {
	return &MemoryService{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

// Get retrieves a value; expired entries are treated as misses and dropped lazily.
func (m *MemoryService) Get(key string) ([]byte, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	if !item.expiresAt.IsZero() && m.now().After(item.expiresAt) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil, ErrCacheMiss
	}
	return item.value, nil
}

// Set stores a value with an expiration time. A non-positive expiration keeps
// the entry until deleted.
func (m *MemoryService) Set(key string, value []byte, expiration time.Duration) error {
	var expiresAt time.Time
	if expiration > 0 {
		expiresAt = m.now().Add(expiration)
	}

	m.mu.Lock()
	m.items[key] = memoryItem{value: value, expiresAt: expiresAt}
	m.mu.Unlock()
	return nil
}

// Delete removes a value from the cache
func (m *MemoryService) Delete(key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}
