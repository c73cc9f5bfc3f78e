// Package txn implements Transaction State: the per-transaction
// container tracking touched collections, nesting, the LSM transaction
// handle, the cache-transaction handle, and pending operation deltas
// that flow into the Counter Manager on commit.
package txn

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Frrank1/arangodb/internal/cache"
	"github.com/Frrank1/arangodb/internal/counter"
	"github.com/Frrank1/arangodb/internal/lsmengine"
	"github.com/Frrank1/arangodb/internal/obsmetrics"
	"github.com/Frrank1/arangodb/internal/storeerr"
)

// Status is a transaction's lifecycle state.
type Status int

const (
	StatusCreated Status = iota
	StatusRunning
	StatusCommitted
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusRunning:
		return "running"
	case StatusCommitted:
		return "committed"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// OpType distinguishes the three write shapes a collection records
// against its running deltas.
type OpType int

const (
	OpInsert OpType = iota
	OpUpdate
	OpRemove
)

// Collection accumulates one transaction's effect on a single
// collection: net document-count delta, the most recently observed
// revision, and total operation size in bytes, for reconciliation into
// the Counter Manager at commit time.
type Collection struct {
	ObjectID       uint64
	NumInserts     int64
	NumUpdates     int64
	NumRemoves     int64
	LatestRevision uint64
	OperationSize  int64
}

func (c *Collection) addOperation(op OpType, revisionID uint64, size int64) {
	switch op {
	case OpInsert:
		c.NumInserts++
	case OpUpdate:
		c.NumUpdates++
	case OpRemove:
		c.NumRemoves++
	}
	c.LatestRevision = revisionID
	c.OperationSize += size
}

// netCountDelta is the document-count adjustment this collection's
// operations contributed: inserts minus removes, matching spec.md's
// commit-time "adjustment = numInserts - numRemoves" rule. Updates do
// not change the live document count.
func (c *Collection) netCountDelta() int64 {
	return c.NumInserts - c.NumRemoves
}

// Options configures Begin.
type Options struct {
	ReadOnly   bool
	WaitForSync bool
}

// State is one transaction: its LSM handle, cache handle, collection
// deltas and lifecycle status. NestingLevel is carried on the State;
// Commit and Abort do not consult it.
type State struct {
	ID           uint64
	NestingLevel int
	Options      Options

	mu          sync.Mutex
	status      Status
	collections map[uint64]*Collection

	numInserts    int64
	numUpdates    int64
	numRemoves    int64
	operationSize int64

	lsmTxn   lsmengine.Transaction
	cacheTxn *cache.Txn

	manager *Manager
}

// Status returns the transaction's current lifecycle state.
func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// UseCollection pre-declares objectID as part of this transaction,
// required before AddOperation will accept writes against it.
func (s *State) UseCollection(objectID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[objectID]; !ok {
		s.collections[objectID] = &Collection{ObjectID: objectID}
	}
}

// AddOperation records one write against objectID. Fails with Internal
// if the collection was never pre-declared via UseCollection.
func (s *State) AddOperation(objectID uint64, revisionID uint64, op OpType, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tc, ok := s.collections[objectID]
	if !ok {
		return storeerr.NewInternal("txn: addOperation on undeclared collection", nil)
	}
	tc.addOperation(op, revisionID, size)
	switch op {
	case OpInsert:
		s.numInserts++
	case OpUpdate:
		s.numUpdates++
	case OpRemove:
		s.numRemoves++
	}
	s.operationSize += size
	return nil
}

// HasOperations reports whether any write was recorded.
func (s *State) HasOperations() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numInserts+s.numUpdates+s.numRemoves > 0
}

// LSMTransaction returns the underlying engine transaction so a
// Physical Collection can issue reads and writes through it.
func (s *State) LSMTransaction() lsmengine.Transaction { return s.lsmTxn }

// CacheTxn returns the cache-manager handle bound to this transaction.
func (s *State) CacheTxn() *cache.Txn { return s.cacheTxn }

// Manager owns transaction lifecycle: Begin assigns a fresh ID, starts
// the LSM transaction and cache-transaction handle, and registers the
// State; Commit/Abort release them and reconcile collection counters.
type Manager struct {
	engine  lsmengine.Engine
	counter *counter.Manager
	cache   *cache.Manager
	logger  *zap.Logger
	metrics *obsmetrics.Metrics

	mu     sync.Mutex
	nextID uint64
	active map[uint64]*State
}

// NewManager constructs a transaction Manager bound to the engine,
// Counter Manager and Cache Manager it coordinates on commit.
func NewManager(engine lsmengine.Engine, counterMgr *counter.Manager, cacheMgr *cache.Manager, logger *zap.Logger, metrics *obsmetrics.Metrics) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		engine:  engine,
		counter: counterMgr,
		cache:   cacheMgr,
		logger:  logger,
		metrics: metrics,
		active:  make(map[uint64]*State),
	}
}

// Begin starts a new top-level transaction. On any failure the
// returned error is non-nil and no State is registered.
func (m *Manager) Begin(opts Options) (*State, error) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.mu.Unlock()

	lsmTxn, err := m.engine.BeginTransaction(
		lsmengine.WriteOptions{Sync: opts.WaitForSync},
		lsmengine.TxOptions{ReadOnly: opts.ReadOnly},
	)
	if err != nil {
		return nil, storeerr.NewInternal("txn: failed to begin LSM transaction", err)
	}
	lsmTxn.SetSnapshot()

	s := &State{
		ID:          id,
		Options:     opts,
		status:      StatusRunning,
		collections: make(map[uint64]*Collection),
		lsmTxn:      lsmTxn,
		manager:     m,
	}
	if m.cache != nil {
		s.cacheTxn = m.cache.BeginTransaction(opts.ReadOnly)
	}

	m.mu.Lock()
	m.active[id] = s
	m.mu.Unlock()
	return s, nil
}

// Commit runs the full spec.md §4.4 commit flow: end the cache
// transaction, commit the LSM transaction, transition to COMMITTED,
// reconcile every touched collection's counters, then release.
func (m *Manager) Commit(ctx context.Context, s *State) error {
	start := time.Now()
	if m.metrics != nil {
		defer func() { m.metrics.TransactionCommitDuration.Observe(time.Since(start).Seconds()) }()
	}

	if m.cache != nil && s.cacheTxn != nil {
		m.cache.EndTransaction(s.cacheTxn)
	}

	if err := s.lsmTxn.Commit(); err != nil {
		_ = m.Abort(ctx, s)
		return storeerr.New(storeerr.Conflict, "txn: LSM commit failed", err)
	}

	s.mu.Lock()
	collections := make([]*Collection, 0, len(s.collections))
	for _, tc := range s.collections {
		collections = append(collections, tc)
	}
	s.status = StatusCommitted
	s.mu.Unlock()

	if m.counter != nil {
		seq := s.lsmTxn.Sequence()
		for _, tc := range collections {
			count, _ := m.counter.Load(tc.ObjectID)
			newCount := count + tc.netCountDelta()
			m.counter.Update(tc.ObjectID, seq, newCount, tc.LatestRevision)
		}
	}

	m.release(s)
	if m.metrics != nil {
		m.metrics.TransactionsCommittedTotal.Inc()
	}
	return nil
}

// Abort ends the cache transaction, rolls back the LSM transaction and
// transitions to ABORTED.
func (m *Manager) Abort(_ context.Context, s *State) error {
	if m.cache != nil && s.cacheTxn != nil {
		m.cache.EndTransaction(s.cacheTxn)
	}

	err := s.lsmTxn.Rollback()

	s.mu.Lock()
	s.status = StatusAborted
	s.mu.Unlock()

	m.release(s)
	if m.metrics != nil {
		m.metrics.TransactionsAbortedTotal.Inc()
	}
	if err != nil {
		return storeerr.NewInternal("txn: LSM rollback failed", err)
	}
	return nil
}

func (m *Manager) release(s *State) {
	m.mu.Lock()
	delete(m.active, s.ID)
	m.mu.Unlock()
}

// ActiveCount reports the number of transactions currently running.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}
