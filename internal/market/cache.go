package market

import (
	"sync"
	"time"
)

// CandleCache provides TTL caching for candle datasets keyed by
// symbol:interval:limit.
type CandleCache struct {
	data map[string]*cacheEntry
	mu   sync.RWMutex
}

type cacheEntry struct {
	candles   []Candle
	expiresAt time.Time
}

// NewCandleCache creates an empty candle cache.
func NewCandleCache() *CandleCache {
	return &CandleCache{
		data: make(map[string]*cacheEntry),
	}
}

// Get retrieves cached candles if the entry has not expired.
func (c *CandleCache) Get(key string) []Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.data[key]
	if !exists {
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		return nil
	}
	return entry.candles
}

// Set stores candles with an expiration.
func (c *CandleCache) Set(key string, candles []Candle, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &cacheEntry{
		candles:   candles,
		expiresAt: time.Now().Add(ttl),
	}
}

// Prune removes expired entries.
func (c *CandleCache) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if now.After(entry.expiresAt) {
			delete(c.data, key)
		}
	}
}
