package lsmengine

import (
	"path/filepath"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/Frrank1/arangodb/internal/storeerr"
)

// PebbleEngine implements Engine atop github.com/cockroachdb/pebble, the
// real embedded LSM store this core treats as a third-party collaborator.
type PebbleEngine struct {
	db     *pebble.DB
	wal    *WAL
	seq    atomic.Uint64
	logger *zap.Logger
}

// Options configures PebbleEngine construction.
type Options struct {
	// Cache, MemTableSize etc. are left at pebble's defaults; the core
	// does not need to tune the engine's internals, only consume its
	// external contract.
}

// Open opens (creating if absent) a pebble store rooted at dataDir, with
// its companion WAL-tailing log alongside it.
func Open(dataDir string, opts Options, logger *zap.Logger) (*PebbleEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := pebble.Open(dataDir, &pebble.Options{})
	if err != nil {
		return nil, storeerr.NewInternal("lsmengine: failed to open pebble store", err)
	}
	wal, err := OpenWAL(filepath.Join(dataDir, "core.wal"))
	if err != nil {
		db.Close()
		return nil, err
	}
	e := &PebbleEngine{db: db, wal: wal, logger: logger}
	maxSeq, err := wal.MaxSequence()
	if err != nil {
		db.Close()
		wal.Close()
		return nil, err
	}
	e.seq.Store(maxSeq)
	logger.Info("lsmengine: opened", zap.String("data_dir", dataDir), zap.Uint64("wal_sequence", maxSeq))
	return e, nil
}

func copyValue(v []byte) []byte {
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func (e *PebbleEngine) Get(key []byte) ([]byte, error) {
	value, closer, err := e.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, storeerr.NewNotFound("lsmengine: key not found")
	}
	if err != nil {
		return nil, storeerr.NewInternal("lsmengine: get failed", err)
	}
	out := copyValue(value)
	closer.Close()
	return out, nil
}

func (e *PebbleEngine) Put(key, value []byte) error {
	if err := e.db.Set(key, value, pebble.Sync); err != nil {
		return storeerr.NewInternal("lsmengine: put failed", err)
	}
	return nil
}

func (e *PebbleEngine) Delete(key []byte) error {
	if err := e.db.Delete(key, pebble.Sync); err != nil {
		return storeerr.NewInternal("lsmengine: delete failed", err)
	}
	return nil
}

func (e *PebbleEngine) SingleDelete(key []byte) error {
	if err := e.db.SingleDelete(key, pebble.Sync); err != nil {
		return storeerr.NewInternal("lsmengine: single delete failed", err)
	}
	return nil
}

func (e *PebbleEngine) NewIterator(opts ReadOptions, lower, upper []byte) (Iterator, error) {
	if opts.Snapshot != nil {
		return opts.Snapshot.NewIterator(lower, upper)
	}
	it := e.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	return &pebbleIterator{it: it}, nil
}

func (e *PebbleEngine) NewSnapshot() Snapshot {
	return &pebbleSnapshot{snap: e.db.NewSnapshot()}
}

func (e *PebbleEngine) NewWriteBatch() EngineBatch {
	return &engineBatch{engine: e, batch: e.db.NewBatch()}
}

func (e *PebbleEngine) BeginTransaction(wo WriteOptions, txo TxOptions) (Transaction, error) {
	return &pebbleTxn{
		engine:    e,
		batch:     e.db.NewIndexedBatch(),
		writeOpts: wo,
		readOnly:  txo.ReadOnly,
	}, nil
}

func (e *PebbleEngine) GetUpdatesSince(sequence uint64) (WALIterator, error) {
	return e.wal.Iterator(sequence)
}

// DiskUsage reports pebble's own accounting of the space its SSTables
// and WAL occupy, via pebble.DB.Metrics().DiskSpaceUsage() — the
// store's live footprint, not the host filesystem's free space.
func (e *PebbleEngine) DiskUsage() (DiskUsage, error) {
	m := e.db.Metrics()
	return DiskUsage{LiveBytes: m.DiskSpaceUsage()}, nil
}

func (e *PebbleEngine) Close() error {
	var firstErr error
	if err := e.wal.Close(); err != nil {
		firstErr = err
	}
	if err := e.db.Close(); err != nil && firstErr == nil {
		firstErr = storeerr.NewInternal("lsmengine: failed to close pebble store", err)
	}
	return firstErr
}

// engineBatch is a flat, save-point-free atomic write batch used by
// callers like the Counter Manager's sync() that need all-or-nothing
// application but not the full transaction contract.
type engineBatch struct {
	engine *PebbleEngine
	batch  *pebble.Batch
	ops    []Op
}

func (b *engineBatch) Put(key, value []byte) error {
	if err := b.batch.Set(key, value, nil); err != nil {
		return storeerr.NewInternal("lsmengine: batch put failed", err)
	}
	b.ops = append(b.ops, Op{Kind: OpPut, Key: copyValue(key), Value: copyValue(value)})
	return nil
}

func (b *engineBatch) Delete(key []byte) error {
	if err := b.batch.Delete(key, nil); err != nil {
		return storeerr.NewInternal("lsmengine: batch delete failed", err)
	}
	b.ops = append(b.ops, Op{Kind: OpDelete, Key: copyValue(key)})
	return nil
}

func (b *engineBatch) Commit(wo WriteOptions) error {
	seq := b.engine.seq.Add(1)
	if err := b.engine.wal.Append(seq, b.ops, wo.Sync); err != nil {
		return err
	}
	writeOpts := pebble.NoSync
	if wo.Sync {
		writeOpts = pebble.Sync
	}
	if err := b.engine.db.Apply(b.batch, writeOpts); err != nil {
		return storeerr.NewInternal("lsmengine: batch commit failed", err)
	}
	b.batch.Close()
	return nil
}

// pebbleIterator adapts *pebble.Iterator to the Iterator interface. Its
// method set already matches verbatim; this wrapper exists so callers
// depend on lsmengine.Iterator, never on pebble directly.
type pebbleIterator struct {
	it *pebble.Iterator
}

func (p *pebbleIterator) SeekGE(key []byte) bool { return p.it.SeekGE(key) }
func (p *pebbleIterator) SeekLT(key []byte) bool { return p.it.SeekLT(key) }
func (p *pebbleIterator) First() bool            { return p.it.First() }
func (p *pebbleIterator) Next() bool             { return p.it.Next() }
func (p *pebbleIterator) Prev() bool             { return p.it.Prev() }
func (p *pebbleIterator) Valid() bool            { return p.it.Valid() }
func (p *pebbleIterator) Key() []byte            { return p.it.Key() }
func (p *pebbleIterator) Value() []byte          { return p.it.Value() }
func (p *pebbleIterator) Close() error {
	if err := p.it.Close(); err != nil {
		return storeerr.NewInternal("lsmengine: failed to close iterator", err)
	}
	return nil
}

type pebbleSnapshot struct {
	snap *pebble.Snapshot
}

func (s *pebbleSnapshot) Get(key []byte) ([]byte, error) {
	value, closer, err := s.snap.Get(key)
	if err == pebble.ErrNotFound {
		return nil, storeerr.NewNotFound("lsmengine: key not found")
	}
	if err != nil {
		return nil, storeerr.NewInternal("lsmengine: snapshot get failed", err)
	}
	out := copyValue(value)
	closer.Close()
	return out, nil
}

func (s *pebbleSnapshot) NewIterator(lower, upper []byte) (Iterator, error) {
	it := s.snap.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	return &pebbleIterator{it: it}, nil
}

func (s *pebbleSnapshot) Close() error {
	if err := s.snap.Close(); err != nil {
		return storeerr.NewInternal("lsmengine: failed to close snapshot", err)
	}
	return nil
}
