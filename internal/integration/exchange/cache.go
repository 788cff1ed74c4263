package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type cachedRate struct {
	rate      decimal.Decimal
	expiresAt time.Time
}

// MemoryCache is a process-local RateCache used when Redis is not configured
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cachedRate
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cachedRate),
		now:     time.Now,
	}
}

func (m *MemoryCache) GetRate(ctx context.Context, key string) (decimal.Decimal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return decimal.Zero, false, nil
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return decimal.Zero, false, nil
	}
	return entry.rate, true, nil
}

func (m *MemoryCache) SetRate(ctx context.Context, key string, rate decimal.Decimal, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = cachedRate{rate: rate, expiresAt: m.now().Add(ttl)}
	return nil
}
