// Package cache implements the Cache Manager: a pool of bounded,
// in-memory caches sharing one global memory budget, with background
// rebalancing, table migration and cooperative backoff.
package cache

import "sync"

// CacheID identifies one Cache within a Manager's registry.
type CacheID uint64

// Type distinguishes plain caches from transactional ones. The type is
// recorded on each Cache; Get and Put treat both types alike.
type Type int

const (
	TypePlain Type = iota
	TypeTransactional
)

// spareStackCount is the number of spare-table stacks, keyed by a
// table's log-size (0..31 covers every practical table size on a
// 64-bit address space).
const spareStackCount = 32

// Metadata is the fixed bookkeeping record a Cache shares with its
// Manager: the cache's fixed overhead, its configured maximum size and
// its current allocation.
type Metadata struct {
	FixedSize  int64
	MaxSize    int64
	Allocation int64
}

// Table is the hash table backing one Cache's entries. Tables are
// leased from and returned to the Manager's spare stacks, keyed by
// LogSize, so destroying one cache can hand its table straight to the
// next cache that needs the same size instead of reallocating.
type Table struct {
	LogSize int

	mu   sync.RWMutex
	data map[string][]byte
}

// NewTable allocates an empty table sized for 2^logSize entries.
func NewTable(logSize int) *Table {
	return &Table{LogSize: logSize, data: make(map[string][]byte, 1<<uint(logSize))}
}

func (t *Table) Get(key []byte) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.data[string(key)]
	return v, ok
}

func (t *Table) Put(key, value []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data[string(key)] = value
}

func (t *Table) Delete(key []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.data, string(key))
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.data)
}

// reset empties the table in place so it can be leased out again
// without a fresh allocation.
func (t *Table) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data = make(map[string][]byte, 1<<uint(t.LogSize))
}

// logSizeForCapacity returns the smallest log-size whose 2^n capacity is
// at least capacity entries.
func logSizeForCapacity(capacity int64) int {
	logSize := 0
	for (int64(1) << uint(logSize)) < capacity && logSize < spareStackCount-1 {
		logSize++
	}
	return logSize
}
