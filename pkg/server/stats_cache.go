package server

import (
	"sync"
	"time"

	"github.com/aurum-protocol/relayer/pkg/indexer"
)

// statsCacheTTL is how long a merchant's cached stats stay valid, per
// the 5-minute cache spec.
const statsCacheTTL = 5 * time.Minute

type statsCacheEntry struct {
	stats     *indexer.MerchantStats
	expiresAt time.Time
}

// merchantStatsCache is a reader-writer-mutex-guarded, TTL-expiring cache of
// per-merchant stats, keyed by lowercased merchant address. Lookups ignore
// expired entries, and a periodic sweep deletes them, generalizing the cachedBalance/lastBalanceQuery/
// cacheValidDuration pattern to a map of independently-expiring entries.
type merchantStatsCache struct {
	mu      sync.RWMutex
	entries map[string]statsCacheEntry
}

// newMerchantStatsCache returns an empty cache and starts a background
// goroutine that calls sweep once every statsCacheTTL for the life of the
// process.
func newMerchantStatsCache() *merchantStatsCache {
	c := &merchantStatsCache{entries: make(map[string]statsCacheEntry)}
	go func() {
		ticker := time.NewTicker(statsCacheTTL)
		defer ticker.Stop()
		for range ticker.C {
			c.sweep()
		}
	}()
	return c
}

func (c *merchantStatsCache) get(merchant string) (*indexer.MerchantStats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[merchant]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.stats, true
}

func (c *merchantStatsCache) set(merchant string, stats *indexer.MerchantStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[merchant] = statsCacheEntry{stats: stats, expiresAt: time.Now().Add(statsCacheTTL)}
}

// sweep drops every expired entry. The goroutine started by
// newMerchantStatsCache runs it periodically so the map doesn't grow
// unbounded with one-off lookups that are never repeated.
func (c *merchantStatsCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, v := range c.entries {
		if now.After(v.expiresAt) {
			delete(c.entries, k)
		}
	}
}
