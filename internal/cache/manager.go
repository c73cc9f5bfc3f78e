// Package cache implements the Cache Manager: a pool of bounded,
// in-memory caches sharing one global memory budget. Caches request
// growth or table migration from the Manager rather than allocating
// directly, so the Manager can apply backoff when the global budget is
// tight and rebalance allocation across caches in the background.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/Frrank1/arangodb/internal/obsmetrics"
	"github.com/Frrank1/arangodb/internal/workerpool"
)

// state is the Manager's mutual-exclusion flag: only one of a
// rebalance or a resize may run at a time, and growth/migration
// requests are declined while either is in flight.
type state int32

const (
	stateIdle state = iota
	stateRebalancing
	stateResizing
)

// Config bounds the Manager's global memory budget and background
// rebalancing cadence.
type Config struct {
	GlobalSoftLimit        int64
	GlobalHardLimit        int64
	RebalancingGracePeriod time.Duration
	SpareStackCap          int
	RebalanceWorkers       int
}

func (c *Config) setDefaults() {
	if c.GlobalHardLimit <= 0 {
		c.GlobalHardLimit = 512 << 20 // 512MiB
	}
	if c.GlobalSoftLimit <= 0 || c.GlobalSoftLimit > c.GlobalHardLimit {
		c.GlobalSoftLimit = c.GlobalHardLimit * 8 / 10
	}
	if c.RebalancingGracePeriod <= 0 {
		c.RebalancingGracePeriod = 5 * time.Second
	}
	if c.SpareStackCap <= 0 {
		c.SpareStackCap = 8
	}
	if c.RebalanceWorkers <= 0 {
		c.RebalanceWorkers = 2
	}
}

// highwater is the point, 80% of the hard limit, past which
// RequestGrow declines growth and hands back a retry time one grace
// period away.
func (c Config) highwater() int64 {
	return c.GlobalHardLimit * 80 / 100
}

// Manager owns every live Cache and the global memory budget they
// share, plus the spare-table stacks that let a destroyed cache's
// table be handed straight to the next cache that needs the same size.
type Manager struct {
	cfg    Config
	logger *zap.Logger
	metric *obsmetrics.Metrics
	pool   *workerpool.Pool

	registry *xsync.MapOf[CacheID, *Cache]
	nextID   atomic.Uint64

	mu               sync.Mutex // guards allocation, state, spare stacks, lastRebalance
	globalAllocation int64
	runState         state
	spareStacks      [spareStackCount][]*Table
	lastRebalance    time.Time
}

// New constructs a Manager. StartBackgroundRebalancing launches its
// background rebalance loop, which runs until its context is
// cancelled; Shutdown stops the worker pool that runs migration tasks.
func New(cfg Config, logger *zap.Logger, metric *obsmetrics.Metrics) *Manager {
	cfg.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		logger:   logger,
		metric:   metric,
		registry: xsync.NewMapOf[CacheID, *Cache](),
		pool: workerpool.New(workerpool.Config{
			Name:       "cache-rebalance",
			MaxWorkers: cfg.RebalanceWorkers,
			QueueSize:  32,
			Logger:     logger,
		}),
	}
}

// CreateCache registers a new cache with the given fixed overhead and
// maximum size (in bytes, approximated by entry count for the in-memory
// table), leasing a Table from the spare stacks when one of a
// compatible size is available.
func (m *Manager) CreateCache(cacheType Type, fixedSize, maxSize int64, capacityHint int64) (*Cache, error) {
	m.mu.Lock()
	if m.globalAllocation+fixedSize > m.cfg.GlobalHardLimit {
		m.mu.Unlock()
		return nil, errCacheBudgetExhausted
	}
	m.globalAllocation += fixedSize
	m.mu.Unlock()

	id := CacheID(m.nextID.Add(1))
	logSize := logSizeForCapacity(capacityHint)
	table := m.leaseTable(logSize)
	metadata := &Metadata{FixedSize: fixedSize, MaxSize: maxSize, Allocation: fixedSize}

	c := newCache(id, cacheType, m, table, metadata)
	m.registry.Store(id, c)
	m.setAllocationGauge()
	return c, nil
}

// DestroyCache releases id's allocation back to the global budget and
// returns its table to the appropriate spare stack.
func (m *Manager) DestroyCache(id CacheID) {
	c, ok := m.registry.LoadAndDelete(id)
	if !ok {
		return
	}
	m.mu.Lock()
	m.globalAllocation -= c.metadata.Allocation
	if m.globalAllocation < 0 {
		m.globalAllocation = 0
	}
	m.mu.Unlock()
	m.reclaimTable(c.currentTable())
	m.setAllocationGauge()
}

// leaseTable pops a table from the spare stack matching logSize, or
// allocates a fresh one if the stack is empty.
func (m *Manager) leaseTable(logSize int) *Table {
	if logSize < 0 || logSize >= spareStackCount {
		logSize = 0
	}
	m.mu.Lock()
	stack := m.spareStacks[logSize]
	if n := len(stack); n > 0 {
		t := stack[n-1]
		m.spareStacks[logSize] = stack[:n-1]
		m.mu.Unlock()
		t.reset()
		return t
	}
	m.mu.Unlock()
	return NewTable(logSize)
}

// reclaimTable returns t to its spare stack, dropping it instead when
// the stack is already at capacity.
func (m *Manager) reclaimTable(t *Table) {
	if t == nil {
		return
	}
	logSize := t.LogSize
	if logSize < 0 || logSize >= spareStackCount {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.spareStacks[logSize]) >= m.cfg.SpareStackCap {
		return
	}
	m.spareStacks[logSize] = append(m.spareStacks[logSize], t)
}

// RequestGrow asks the Manager for more allocation on behalf of c.
// While a rebalance or resize is in flight it is refused with a retry
// time one grace period after the last rebalance; growth past the
// global highwater mark is refused with a retry time one grace period
// from now; growth past the cache's own MaxSize is refused with a zero
// time.
func (m *Manager) RequestGrow(c *Cache, delta int64) (granted bool, nextAllowed time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.runState != stateIdle {
		return false, m.lastRebalance.Add(m.cfg.RebalancingGracePeriod)
	}
	if m.globalAllocation+delta > m.cfg.highwater() {
		return false, time.Now().Add(m.cfg.RebalancingGracePeriod)
	}
	if c.metadata.Allocation+delta > c.metadata.MaxSize && c.metadata.MaxSize > 0 {
		return false, time.Time{}
	}
	m.globalAllocation += delta
	c.metadata.Allocation += delta
	return true, time.Time{}
}

// RequestMigrate asks the Manager to move c onto a table of a
// different log-size, e.g. because its access pattern has outgrown or
// shrunk past its current table's capacity. Declines while a
// rebalance or resize already holds the exclusion flag.
func (m *Manager) RequestMigrate(c *Cache, newLogSize int) (granted bool, nextAllowed time.Time) {
	m.mu.Lock()
	if m.runState != stateIdle {
		next := m.lastRebalance.Add(m.cfg.RebalancingGracePeriod)
		m.mu.Unlock()
		return false, next
	}
	m.mu.Unlock()

	next := m.leaseTable(newLogSize)
	prev := c.swapTable(next)
	m.reclaimTable(prev)
	if m.metric != nil {
		m.metric.CacheMigrationsTotal.Inc()
	}
	return true, time.Time{}
}

func (m *Manager) reportAccess(c *Cache) {
	_ = c
}

func (m *Manager) reportHitStat(c *Cache, hit bool) {
	if m.metric == nil {
		return
	}
	if hit {
		m.metric.CacheHitsTotal.Inc()
	} else {
		m.metric.CacheMissesTotal.Inc()
	}
	_ = c
}

func (m *Manager) setAllocationGauge() {
	if m.metric == nil {
		return
	}
	m.mu.Lock()
	alloc := m.globalAllocation
	m.mu.Unlock()
	m.metric.CacheAllocationBytes.Set(float64(alloc))
}

// Shutdown stops the background rebalance worker pool, waiting up to
// timeout for in-flight tasks to drain.
func (m *Manager) Shutdown(timeout time.Duration) error {
	return m.pool.Stop(timeout)
}

// GlobalAllocation reports the current aggregate allocation across all
// live caches.
func (m *Manager) GlobalAllocation() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.globalAllocation
}

// cacheSnapshot is the data Rebalance needs about one cache without
// holding the registry lock for the whole pass.
type cacheSnapshot struct {
	cache      *Cache
	allocation int64
	windowed   float64
	lastAccess time.Time
}

func (m *Manager) snapshotCaches() []cacheSnapshot {
	snaps := make([]cacheSnapshot, 0)
	m.registry.Range(func(_ CacheID, c *Cache) bool {
		_, windowed := c.HitRates()
		snaps = append(snaps, cacheSnapshot{
			cache:      c,
			allocation: c.metadata.Allocation,
			windowed:   windowed,
			lastAccess: c.LastAccess(),
		})
		return true
	})
	return snaps
}

// errCacheBudgetExhausted is returned by CreateCache when even the
// fixed overhead of a new cache would exceed the global hard limit.
var errCacheBudgetExhausted = &budgetError{"cache: global hard limit exhausted"}

type budgetError struct{ msg string }

func (e *budgetError) Error() string { return e.msg }
