// Package replication implements the Replication Context (snapshot-
// anchored batch cursors for backup/export) and WAL tailing (streaming
// committed operations to followers since a given tick).
package replication

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/Frrank1/arangodb/internal/lsmengine"
	"github.com/Frrank1/arangodb/internal/obsmetrics"
	"github.com/Frrank1/arangodb/internal/storeerr"
)

// Context is one open replication batch: a pinned LSM snapshot plus
// cursor state, referenced by clients via a 64-bit batch ID. Only one
// caller may drive a Context at a time, enforced by the busy flag.
type Context struct {
	ID       uint64
	Database string

	snapshot      lsmengine.Snapshot
	busy          atomic.Bool
	lastTick      atomic.Uint64
	moreAvailable atomic.Bool
	expires       atomic.Int64 // unix nanos
}

// Bind claims the context for exclusive use, returning CursorBusy if
// another caller already holds it.
func (c *Context) Bind() error {
	if !c.busy.CompareAndSwap(false, true) {
		return storeerr.NewCursorBusy(c.ID)
	}
	return nil
}

// Release returns the context to the idle state so another caller may
// bind it.
func (c *Context) Release() {
	c.busy.Store(false)
}

// LastTick returns the highest tick this context has served so far.
func (c *Context) LastTick() uint64 { return c.lastTick.Load() }

// More reports whether the context's most recent Dump left rows
// unserved, i.e. the same value that Dump's own DumpResult.More
// returned. A caller checking back after the fact (the `more()`
// endpoint) gets the real remaining-rows state rather than recomputing
// it from an unrelated count.
func (c *Context) More() bool { return c.moreAvailable.Load() }

// Snapshot exposes the pinned point-in-time view the context reads
// through, for Dump and inventory operations.
func (c *Context) Snapshot() lsmengine.Snapshot { return c.snapshot }

func (c *Context) touch(ttl time.Duration) {
	c.expires.Store(time.Now().Add(ttl).UnixNano())
}

func (c *Context) expired() bool {
	return time.Now().UnixNano() > c.expires.Load()
}

// Config bounds a Manager's TTL reaping cadence.
type Config struct {
	TTL           time.Duration
	ReapInterval  time.Duration
}

func (cfg *Config) setDefaults() {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = time.Minute
	}
}

// Manager owns every open replication Context, keyed by batch ID, with
// a background reaper evicting contexts past their TTL.
type Manager struct {
	cfg     Config
	engine  lsmengine.Engine
	logger  *zap.Logger
	metrics *obsmetrics.Metrics

	nextID    atomic.Uint64
	contexts  *xsync.MapOf[uint64, *Context]

	stopCh chan struct{}
	stopOnce sync.Once
}

// NewManager constructs a replication Manager bound to engine for
// snapshot creation.
func NewManager(engine lsmengine.Engine, cfg Config, logger *zap.Logger, metrics *obsmetrics.Metrics) *Manager {
	cfg.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		engine:   engine,
		logger:   logger,
		metrics:  metrics,
		contexts: xsync.NewMapOf[uint64, *Context](),
		stopCh:   make(chan struct{}),
	}
}

// Bind opens a new Context against database, pinning a fresh engine
// snapshot.
func (m *Manager) Bind(database string) *Context {
	id := m.nextID.Add(1)
	c := &Context{ID: id, Database: database, snapshot: m.engine.NewSnapshot()}
	c.touch(m.cfg.TTL)
	m.contexts.Store(id, c)
	if m.metrics != nil {
		m.metrics.ReplicationContextsOpen.Inc()
	}
	return c
}

// Get looks up an open context by batch ID.
func (m *Manager) Get(id uint64) (*Context, error) {
	c, ok := m.contexts.Load(id)
	if !ok {
		return nil, storeerr.NewCursorNotFound(id)
	}
	return c, nil
}

// Close explicitly releases a context and its pinned snapshot ahead of
// its TTL.
func (m *Manager) Close(id uint64) error {
	c, ok := m.contexts.LoadAndDelete(id)
	if !ok {
		return storeerr.NewCursorNotFound(id)
	}
	if m.metrics != nil {
		m.metrics.ReplicationContextsOpen.Dec()
	}
	return c.snapshot.Close()
}

// StartReaper runs the TTL-based eviction loop until Stop is called.
func (m *Manager) StartReaper() {
	go func() {
		ticker := time.NewTicker(m.cfg.ReapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.reapExpired()
			}
		}
	}()
}

func (m *Manager) reapExpired() {
	var expiredIDs []uint64
	m.contexts.Range(func(id uint64, c *Context) bool {
		if c.expired() {
			expiredIDs = append(expiredIDs, id)
		}
		return true
	})
	for _, id := range expiredIDs {
		if err := m.Close(id); err != nil {
			continue
		}
		if m.metrics != nil {
			m.metrics.ReplicationContextsExpired.Inc()
		}
		m.logger.Info("replication: context expired", zap.Uint64("id", id))
	}
}

// Stop halts the reaper loop.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}
