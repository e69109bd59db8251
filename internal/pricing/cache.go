// Package pricing resolves fiat quotes for discovered assets with batching,
// pagination and a caller-owned recency-windowed cache.
package pricing

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Price is one {currency, value} quote.
type Price struct {
	Currency string
	Value    float64
}

// Entry is a cached set of quotes for one asset, stamped at capture time.
// Discovery-sourced entries count as current as of seed time, so they satisfy
// a zero-recency read; once the window has elapsed they age out like any
// other entry.
type Entry struct {
	At        time.Time
	Prices    []Price
	Discovery bool
}

// Cache is supplied and owned by the caller across portfolio runs. The engine
// only reads and appends; eviction is the caller discarding the object.
type Cache struct {
	mu      sync.Mutex
	entries map[common.Address]Entry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[common.Address]Entry)}
}

// Lookup returns the cached quotes when the entry is younger than maxAge.
// Stale entries report a miss so the pipeline re-fetches.
func (c *Cache) Lookup(addr common.Address, maxAge time.Duration) ([]Price, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[addr]
	if !ok {
		return nil, false
	}
	if (e.Discovery && maxAge == 0) || time.Since(e.At) < maxAge {
		return e.Prices, true
	}
	return nil, false
}

// Put merges fresh quotes into the asset's entry (per-currency overwrite) and
// restamps it. Entries are never deleted.
func (c *Cache) Put(addr common.Address, prices []Price) {
	c.put(addr, prices, false)
}

// Seed stores quotes that arrived inline with discovery hints.
func (c *Cache) Seed(addr common.Address, prices []Price) {
	c.put(addr, prices, true)
}

func (c *Cache) put(addr common.Address, prices []Price, discovery bool) {
	if len(prices) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.entries[addr].Prices
	merged := make([]Price, 0, len(prev)+len(prices))
	fresh := make(map[string]bool, len(prices))
	for _, p := range prices {
		fresh[p.Currency] = true
		merged = append(merged, p)
	}
	for _, p := range prev {
		if !fresh[p.Currency] {
			merged = append(merged, p)
		}
	}
	c.entries[addr] = Entry{At: time.Now(), Prices: merged, Discovery: discovery}
}

// SetEntry installs an entry verbatim. Meant for tests and for callers
// restoring a cache snapshot.
func (c *Cache) SetEntry(addr common.Address, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[addr] = e
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
