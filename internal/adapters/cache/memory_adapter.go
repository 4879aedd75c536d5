package cache

import (
	"context"
	"sync"
	"time"

	"github.com/zatekoja/hospitalqueue/internal/domain/providers"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryAdapter implements CacheProvider in process, used when Redis is disabled
type MemoryAdapter struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

// NewMemoryAdapter creates an in-process cache
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

var _ providers.CacheProvider = (*MemoryAdapter)(nil)

// Get retrieves a value from cache
func (a *MemoryAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	a.mu.RLock()
	item, ok := a.items[key]
	a.mu.RUnlock()

	if !ok || (!item.expiresAt.IsZero() && !a.now().Before(item.expiresAt)) {
		return nil, providers.ErrCacheMiss
	}
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, nil
}

// Set stores a value in cache with expiration; zero means no expiry
func (a *MemoryAdapter) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	item := memoryItem{value: make([]byte, len(value))}
	copy(item.value, value)
	if expirationSeconds > 0 {
		item.expiresAt = a.now().Add(time.Duration(expirationSeconds) * time.Second)
	}

	a.mu.Lock()
	a.items[key] = item
	a.mu.Unlock()
	return nil
}

// Delete removes a value from cache
func (a *MemoryAdapter) Delete(ctx context.Context, key string) error {
	a.mu.Lock()
	delete(a.items, key)
	a.mu.Unlock()
	return nil
}
