package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache is one bounded, named cache leased from a Manager's global
// memory budget. Entries are stored in a Table that can be migrated to
// a larger or smaller Table, or handed off to another Cache entirely,
// without the Cache itself being recreated.
type Cache struct {
	id        CacheID
	cacheType Type
	manager   *Manager

	mu       sync.RWMutex // guards table swaps during migration
	table    *Table
	metadata *Metadata

	freq       *FrequencyBuffer
	lastAccess atomic.Int64 // unix nanos
}

func newCache(id CacheID, cacheType Type, manager *Manager, table *Table, metadata *Metadata) *Cache {
	c := &Cache{
		id:        id,
		cacheType: cacheType,
		manager:   manager,
		table:     table,
		metadata:  metadata,
		freq:      NewFrequencyBuffer(),
	}
	c.lastAccess.Store(0)
	return c
}

func (c *Cache) ID() CacheID { return c.id }

func (c *Cache) LastAccess() time.Time {
	return time.Unix(0, c.lastAccess.Load())
}

// Get reads key from the cache's current table. A CacheTxn is accepted
// for symmetry with Put but read visibility never depends on it: every
// Cache always reads its own live table.
func (c *Cache) Get(key []byte, _ *Txn) ([]byte, bool) {
	c.mu.RLock()
	table := c.table
	c.mu.RUnlock()

	v, ok := table.Get(key)
	c.lastAccess.Store(nowNano())
	c.freq.Record(ok)
	c.manager.reportHitStat(c, ok)
	return v, ok
}

// Put inserts key/value into the cache. If txn is a write transaction
// (not read-only), the insert is deferred: data that a transaction
// might still roll back must not leak into the shared cache before
// commit, so the Cache simply declines the insert and the transaction
// layer is expected to re-populate the cache after a successful commit.
func (c *Cache) Put(key, value []byte, txn *Txn) {
	if txn != nil {
		txn.markTouched(c.id)
		if !txn.readOnly {
			return
		}
	}
	c.mu.RLock()
	table := c.table
	c.mu.RUnlock()

	table.Put(key, value)
	c.lastAccess.Store(nowNano())
	c.manager.reportAccess(c)
}

// Invalidate removes key from the cache unconditionally, regardless of
// any in-flight transaction — used to drop entries a committed write
// or a query-cache invalidation made stale.
func (c *Cache) Invalidate(key []byte) {
	c.mu.RLock()
	table := c.table
	c.mu.RUnlock()
	table.Delete(key)
}

// HitRates returns the cache's lifetime and EWMA-windowed hit rates.
func (c *Cache) HitRates() (lifetime, windowed float64) {
	return c.freq.LifetimeHitRate(), c.freq.WindowedHitRate()
}

// Len reports the number of entries currently held.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table.Len()
}

func (c *Cache) currentTable() *Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table
}

// swapTable atomically replaces the cache's backing table, used by the
// Manager during migration. Returns the table being replaced so the
// caller can return it to a spare stack.
func (c *Cache) swapTable(next *Table) *Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.table
	c.table = next
	return prev
}

func nowNano() int64 { return time.Now().UnixNano() }
