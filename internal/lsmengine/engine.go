// Package lsmengine defines the narrow contract the storage-engine core
// needs from its embedded LSM collaborator — Get/Put/Delete/SingleDelete,
// atomic write batches, snapshots, transactions with save-points, bounded
// iterators and a WAL-tailing API — and a concrete implementation of that
// contract backed by github.com/cockroachdb/pebble.
//
// Every other package in this module programs against these interfaces,
// never against *pebble.DB directly.
package lsmengine

// ReadOptions configures a read: an optional pinned Snapshot to read
// through instead of the engine's latest state.
type ReadOptions struct {
	Snapshot Snapshot
}

// WriteOptions configures a write or commit.
type WriteOptions struct {
	Sync bool
}

// TxOptions configures transaction creation. ReadOnly makes the
// transaction reject Put, Delete and SingleDelete.
type TxOptions struct {
	ReadOnly bool
}

// Iterator walks a bounded key range, forward or backward.
type Iterator interface {
	SeekGE(key []byte) bool
	SeekLT(key []byte) bool
	First() bool
	Next() bool
	Prev() bool
	Valid() bool
	Key() []byte
	Value() []byte
	Close() error
}

// Snapshot pins a point-in-time view of the engine for the duration of a
// read transaction or a replication dump.
type Snapshot interface {
	Get(key []byte) ([]byte, error)
	NewIterator(lower, upper []byte) (Iterator, error)
	Close() error
}

// OpKind discriminates the three write primitives the collaborator
// contract supports.
type OpKind int

const (
	OpPut OpKind = iota
	OpDelete
	OpSingleDelete
)

// Op is one write recorded within a transaction or write batch.
type Op struct {
	Kind  OpKind
	Key   []byte
	Value []byte
}

// WriteBatchHandler receives the replayed operations of one committed
// batch, in commit order.
type WriteBatchHandler interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	SingleDelete(key []byte) error
}

// WriteBatch is a committed sequence of writes, replayable into a
// WriteBatchHandler. WAL tailing and counter recovery both consume
// batches this way rather than inspecting raw bytes.
type WriteBatch interface {
	Replay(h WriteBatchHandler) error
}

// WALIterator walks committed batches in ascending sequence order,
// starting strictly after the sequence it was opened with.
type WALIterator interface {
	Next() bool
	Sequence() uint64
	Batch() WriteBatch
	Err() error
	Close() error
}

// SavePointID names a save-point set within a Transaction, for rollback.
type SavePointID int

// Transaction is one LSM transaction: reads observe its own uncommitted
// writes plus the snapshot taken at SetSnapshot time; writes become
// visible to everyone else atomically at Commit.
type Transaction interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	SingleDelete(key []byte) error

	// SetSnapshot pins the transaction's reads to the engine's current
	// state. Safe to call at most once per transaction.
	SetSnapshot()

	// SetSavePoint records the current write position and returns an
	// identifier that RollbackToSavePoint can later roll back to without
	// aborting the whole transaction.
	SetSavePoint() SavePointID
	RollbackToSavePoint(id SavePointID) error

	Commit() error
	Rollback() error

	// Sequence returns the WAL sequence number assigned at Commit. Valid
	// only after Commit returns successfully.
	Sequence() uint64
}

// EngineBatch is a flat atomic write batch, for callers (the Counter
// Manager's sync) that need atomicity but not save-points or snapshots.
type EngineBatch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit(wo WriteOptions) error
}

// Engine is the full collaborator contract spec.md §6 requires of the
// embedded LSM store.
type Engine interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	SingleDelete(key []byte) error

	NewIterator(opts ReadOptions, lower, upper []byte) (Iterator, error)
	NewSnapshot() Snapshot
	NewWriteBatch() EngineBatch
	BeginTransaction(wo WriteOptions, txo TxOptions) (Transaction, error)

	// GetUpdatesSince opens a WAL iterator yielding every batch committed
	// with sequence strictly greater than `sequence`.
	GetUpdatesSince(sequence uint64) (WALIterator, error)

	// DiskUsage reports the store's own on-disk footprint (SSTables plus
	// WAL), independent of how much free space the underlying volume
	// happens to have.
	DiskUsage() (DiskUsage, error)

	Close() error
}

// DiskUsage is the embedded store's self-reported on-disk footprint.
type DiskUsage struct {
	// LiveBytes is the total size of SSTables and WAL files pebble is
	// currently holding open for this store.
	LiveBytes uint64
}
