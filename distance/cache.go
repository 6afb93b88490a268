package distance

import "sync"

// =============================================================================
// CACHE - Memoized distances keyed by canonical coordinate pair
// =============================================================================

// Cache stores computed results. Values are pure functions of their key, so
// implementations may drop or overwrite entries freely; a lost write only
// costs a recomputation.
type Cache interface {
	Get(key string) (Result, bool)
	Set(key string, r Result)
	Len() int
	Reset()
}

// MemoryCache is a process-local Cache safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Result
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Result)}
}

func (m *MemoryCache) Get(key string) (Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.entries[key]
	return r, ok
}

func (m *MemoryCache) Set(key string, r Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = r
}

func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryCache) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]Result)
}
