package lsmengine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/Frrank1/arangodb/internal/storeerr"
)

// pebble's own write-ahead log is internal to the engine and is not
// exposed for tailing. GetUpdatesSince is instead served by a small
// sequenced operation log the engine writes itself, once per committed
// transaction or flat write batch, before applying the write to pebble —
// the same newline-delimited, JSON-per-record shape the teacher's commit
// log used, adapted here to record logical (key, value) operations
// instead of tenant:key payloads.

type walRecordOp struct {
	Kind  int    `json:"kind"`
	Key   []byte `json:"key"`
	Value []byte `json:"value,omitempty"`
}

type walRecord struct {
	Seq uint64        `json:"seq"`
	Ops []walRecordOp `json:"ops"`
}

// WAL is an append-only, newline-delimited JSON log of committed batches,
// ordered by sequence number.
type WAL struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// OpenWAL opens (creating if absent) the WAL log at path.
func OpenWAL(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, storeerr.NewInternal("lsmengine: failed to open WAL log", err)
	}
	return &WAL{path: path, file: f}, nil
}

// Append writes one record for the given sequence and ops, optionally
// fsyncing before returning.
func (w *WAL) Append(seq uint64, ops []Op, sync bool) error {
	rec := walRecord{Seq: seq, Ops: make([]walRecordOp, len(ops))}
	for i, op := range ops {
		rec.Ops[i] = walRecordOp{Kind: int(op.Kind), Key: op.Key, Value: op.Value}
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return storeerr.NewInternal("lsmengine: failed to marshal WAL record", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(line); err != nil {
		return storeerr.NewInternal("lsmengine: failed to append WAL record", err)
	}
	if sync {
		if err := w.file.Sync(); err != nil {
			return storeerr.NewInternal("lsmengine: failed to fsync WAL", err)
		}
	}
	return nil
}

// MaxSequence scans the whole log and returns the highest sequence number
// recorded, or 0 if the log is empty. Used once at startup to seed the
// engine's in-memory sequence counter.
func (w *WAL) MaxSequence() (uint64, error) {
	it, err := w.iterator(0)
	if err != nil {
		return 0, err
	}
	defer it.Close()
	var max uint64
	for it.Next() {
		if it.Sequence() > max {
			max = it.Sequence()
		}
	}
	if it.Err() != nil {
		return 0, it.Err()
	}
	return max, nil
}

// Iterator opens a WALIterator yielding every record with sequence
// strictly greater than fromSeq, in ascending order.
func (w *WAL) Iterator(fromSeq uint64) (WALIterator, error) {
	return w.iterator(fromSeq)
}

func (w *WAL) iterator(fromSeq uint64) (*walIterator, error) {
	f, err := os.Open(w.path)
	if err != nil {
		return nil, storeerr.NewInternal("lsmengine: failed to open WAL log for reading", err)
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	return &walIterator{file: f, scanner: scanner, fromSeq: fromSeq}, nil
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Close(); err != nil {
		return storeerr.NewInternal("lsmengine: failed to close WAL log", err)
	}
	return nil
}

type walIterator struct {
	file    *os.File
	scanner *bufio.Scanner
	fromSeq uint64

	cur walRecord
	err error
}

func (it *walIterator) Next() bool {
	if it.err != nil {
		return false
	}
	for it.scanner.Scan() {
		var rec walRecord
		line := it.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := json.Unmarshal(line, &rec); err != nil {
			it.err = storeerr.NewCorruptedJson("lsmengine: corrupted WAL record", err)
			return false
		}
		if rec.Seq <= it.fromSeq {
			continue
		}
		it.cur = rec
		return true
	}
	if err := it.scanner.Err(); err != nil {
		it.err = storeerr.NewInternal("lsmengine: WAL scan failed", err)
	}
	return false
}

func (it *walIterator) Sequence() uint64 { return it.cur.Seq }

func (it *walIterator) Batch() WriteBatch {
	ops := make([]Op, len(it.cur.Ops))
	for i, o := range it.cur.Ops {
		ops[i] = Op{Kind: OpKind(o.Kind), Key: o.Key, Value: o.Value}
	}
	return &memBatch{ops: ops}
}

func (it *walIterator) Err() error { return it.err }

func (it *walIterator) Close() error {
	if err := it.file.Close(); err != nil {
		return storeerr.NewInternal("lsmengine: failed to close WAL iterator", err)
	}
	return nil
}

// memBatch is an in-memory WriteBatch replayable into a handler.
type memBatch struct {
	ops []Op
}

func (b *memBatch) Replay(h WriteBatchHandler) error {
	for _, op := range b.ops {
		var err error
		switch op.Kind {
		case OpPut:
			err = h.Put(op.Key, op.Value)
		case OpDelete:
			err = h.Delete(op.Key)
		case OpSingleDelete:
			err = h.SingleDelete(op.Key)
		default:
			err = fmt.Errorf("lsmengine: unknown op kind %d", op.Kind)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
