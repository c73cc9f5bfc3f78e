package cache

import "sync/atomic"

var txnSeq atomic.Uint64

// Txn is the Cache Manager's half of a storage transaction: it tells
// every Cache a write touches whether inserts must be deferred until
// the owning transaction actually commits.
type Txn struct {
	id       uint64
	readOnly bool
	manager  *Manager

	mu      chan struct{} // acts as a one-shot guard; closed on End
	touched map[CacheID]struct{}
}

// BeginTransaction returns a new CacheTxn. Call EndTransaction when the
// owning storage transaction finishes, whether committed or aborted.
func (m *Manager) BeginTransaction(readOnly bool) *Txn {
	return &Txn{
		id:       txnSeq.Add(1),
		readOnly: readOnly,
		manager:  m,
		mu:       make(chan struct{}),
		touched:  make(map[CacheID]struct{}),
	}
}

// ID returns the transaction's unique identifier.
func (t *Txn) ID() uint64 { return t.id }

// ReadOnly reports whether this is a read-only transaction.
func (t *Txn) ReadOnly() bool { return t.readOnly }

func (t *Txn) markTouched(id CacheID) {
	t.touched[id] = struct{}{}
}

// EndTransaction closes out the CacheTxn. On commit, the caller is
// expected to have already re-issued any writes it wants visible
// (Put with a nil or read-only Txn); EndTransaction itself only
// releases Manager-side bookkeeping.
func (t *Manager) EndTransaction(txn *Txn) {
	select {
	case <-txn.mu:
	default:
		close(txn.mu)
	}
}
