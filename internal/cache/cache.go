package cache

import (
	"context"
	"sync"
	"time"
)

// Cache - кэш ответов процессора. Промах и недоступность кэша не ошибка для вызывающего:
// сервис всегда может сходить в процессор напрямую.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

func PaymentKey(paymentID string) string {
	return "payment:" + paymentID
}

// NopCache используется, когда redis не настроен
type NopCache struct{}

func (NopCache) Get(ctx context.Context, key string) ([]byte, bool, error) { return nil, false, nil }
func (NopCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}
func (NopCache) Delete(ctx context.Context, keys ...string) error { return nil }

// MemoryCache - in-process реализация для тестов и локального запуска
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]memoryItem
	deletes []string
	now     func() time.Time
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: map[string]memoryItem{}, now: time.Now}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	if !item.expiresAt.IsZero() && c.now().After(item.expiresAt) {
		delete(c.items, key)
		return nil, false, nil
	}
	return append([]byte(nil), item.value...), true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = c.now().Add(ttl)
	}
	c.items[key] = item
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		delete(c.items, key)
		c.deletes = append(c.deletes, key)
	}
	return nil
}

// Deleted - ключи, которые инвалидировались (для тестов)
func (c *MemoryCache) Deleted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deletes...)
}
