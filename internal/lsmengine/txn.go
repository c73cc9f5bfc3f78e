package lsmengine

import (
	"bytes"
	"io"

	"github.com/cockroachdb/pebble"

	"github.com/Frrank1/arangodb/internal/storeerr"
)

// pebbleTxn implements Transaction atop a pebble indexed batch plus an
// explicit op log. Get consults the op log first, so reads observe the
// transaction's own uncommitted writes and deletes, and otherwise reads
// the snapshot (the engine's latest state before SetSnapshot). Save-points are emulated by truncating the op log and replaying
// the remainder into a fresh batch, rather than relying on any
// pebble-internal batch-representation surgery.
type pebbleTxn struct {
	engine    *PebbleEngine
	batch     *pebble.Batch
	snapshot  *pebble.Snapshot
	readOnly  bool
	writeOpts WriteOptions

	ops        []Op
	savepoints []int

	committed bool
	rolledBack bool
	sequence  uint64
}

func (t *pebbleTxn) Get(key []byte) ([]byte, error) {
	for i := len(t.ops) - 1; i >= 0; i-- {
		if op := t.ops[i]; bytes.Equal(op.Key, key) {
			if op.Kind != OpPut {
				return nil, storeerr.NewNotFound("lsmengine: key not found")
			}
			return copyValue(op.Value), nil
		}
	}
	var value []byte
	var closer io.Closer
	var err error
	if t.snapshot != nil {
		value, closer, err = t.snapshot.Get(key)
	} else {
		value, closer, err = t.engine.db.Get(key)
	}
	if err == pebble.ErrNotFound {
		return nil, storeerr.NewNotFound("lsmengine: key not found")
	}
	if err != nil {
		return nil, storeerr.NewInternal("lsmengine: txn get failed", err)
	}
	out := copyValue(value)
	closer.Close()
	return out, nil
}

func (t *pebbleTxn) Put(key, value []byte) error {
	if t.readOnly {
		return storeerr.NewBadParameter("lsmengine: write attempted on read-only transaction")
	}
	if err := t.batch.Set(key, value, nil); err != nil {
		return storeerr.NewInternal("lsmengine: txn put failed", err)
	}
	t.ops = append(t.ops, Op{Kind: OpPut, Key: copyValue(key), Value: copyValue(value)})
	return nil
}

func (t *pebbleTxn) Delete(key []byte) error {
	if t.readOnly {
		return storeerr.NewBadParameter("lsmengine: write attempted on read-only transaction")
	}
	if err := t.batch.Delete(key, nil); err != nil {
		return storeerr.NewInternal("lsmengine: txn delete failed", err)
	}
	t.ops = append(t.ops, Op{Kind: OpDelete, Key: copyValue(key)})
	return nil
}

func (t *pebbleTxn) SingleDelete(key []byte) error {
	if t.readOnly {
		return storeerr.NewBadParameter("lsmengine: write attempted on read-only transaction")
	}
	if err := t.batch.SingleDelete(key, nil); err != nil {
		return storeerr.NewInternal("lsmengine: txn single delete failed", err)
	}
	t.ops = append(t.ops, Op{Kind: OpSingleDelete, Key: copyValue(key)})
	return nil
}

func (t *pebbleTxn) SetSnapshot() {
	if t.snapshot == nil {
		t.snapshot = t.engine.db.NewSnapshot()
	}
}

func (t *pebbleTxn) SetSavePoint() SavePointID {
	id := SavePointID(len(t.savepoints))
	t.savepoints = append(t.savepoints, len(t.ops))
	return id
}

// RollbackToSavePoint truncates the op log back to the point recorded by
// id and rebuilds the underlying batch by replaying the surviving ops.
func (t *pebbleTxn) RollbackToSavePoint(id SavePointID) error {
	if int(id) < 0 || int(id) >= len(t.savepoints) {
		return storeerr.NewBadParameter("lsmengine: unknown save-point")
	}
	cut := t.savepoints[id]
	t.ops = t.ops[:cut]
	t.savepoints = t.savepoints[:id]

	t.batch.Reset()
	for _, op := range t.ops {
		var err error
		switch op.Kind {
		case OpPut:
			err = t.batch.Set(op.Key, op.Value, nil)
		case OpDelete:
			err = t.batch.Delete(op.Key, nil)
		case OpSingleDelete:
			err = t.batch.SingleDelete(op.Key, nil)
		}
		if err != nil {
			return storeerr.NewInternal("lsmengine: save-point rollback replay failed", err)
		}
	}
	return nil
}

func (t *pebbleTxn) Commit() error {
	if t.committed || t.rolledBack {
		return storeerr.NewInternal("lsmengine: transaction already finalized", nil)
	}
	seq := t.engine.seq.Add(1)
	if err := t.engine.wal.Append(seq, t.ops, t.writeOpts.Sync); err != nil {
		return err
	}
	writeOpts := pebble.NoSync
	if t.writeOpts.Sync {
		writeOpts = pebble.Sync
	}
	if err := t.engine.db.Apply(t.batch, writeOpts); err != nil {
		return storeerr.NewInternal("lsmengine: transaction commit failed", err)
	}
	t.batch.Close()
	t.sequence = seq
	t.committed = true
	if t.snapshot != nil {
		t.snapshot.Close()
		t.snapshot = nil
	}
	return nil
}

func (t *pebbleTxn) Rollback() error {
	if t.committed {
		return storeerr.NewInternal("lsmengine: cannot roll back a committed transaction", nil)
	}
	t.rolledBack = true
	if err := t.batch.Close(); err != nil {
		return storeerr.NewInternal("lsmengine: failed to close transaction batch", err)
	}
	if t.snapshot != nil {
		t.snapshot.Close()
		t.snapshot = nil
	}
	return nil
}

func (t *pebbleTxn) Sequence() uint64 { return t.sequence }
