package lsmengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestEngine(t *testing.T) *PebbleEngine {
	t.Helper()
	dir := t.TempDir()
	e, err := Open(dir, Options{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestDirectGetPutDelete(t *testing.T) {
	e := openTestEngine(t)

	_, err := e.Get([]byte("k1"))
	require.Error(t, err)

	require.NoError(t, e.Put([]byte("k1"), []byte("v1")))
	v, err := e.Get([]byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), v)

	require.NoError(t, e.Delete([]byte("k1")))
	_, err = e.Get([]byte("k1"))
	require.Error(t, err)
}

func TestTransactionReadsOwnWritesAndCommitsAtomically(t *testing.T) {
	e := openTestEngine(t)

	txn, err := e.BeginTransaction(WriteOptions{}, TxOptions{})
	require.NoError(t, err)

	require.NoError(t, txn.Put([]byte("a"), []byte("1")))
	v, err := txn.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	_, err = e.Get([]byte("a"))
	require.Error(t, err, "uncommitted write must not be visible outside the transaction")

	require.NoError(t, txn.Commit())

	v, err = e.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
}

func TestTransactionRollbackDiscardsWrites(t *testing.T) {
	e := openTestEngine(t)

	txn, err := e.BeginTransaction(WriteOptions{}, TxOptions{})
	require.NoError(t, err)
	require.NoError(t, txn.Put([]byte("a"), []byte("1")))
	require.NoError(t, txn.Rollback())

	_, err = e.Get([]byte("a"))
	require.Error(t, err)
}

func TestSavePointRollbackKeepsEarlierWrites(t *testing.T) {
	e := openTestEngine(t)

	txn, err := e.BeginTransaction(WriteOptions{}, TxOptions{})
	require.NoError(t, err)

	require.NoError(t, txn.Put([]byte("a"), []byte("1")))
	sp := txn.SetSavePoint()
	require.NoError(t, txn.Put([]byte("b"), []byte("2")))

	require.NoError(t, txn.RollbackToSavePoint(sp))

	_, err = txn.Get([]byte("b"))
	require.Error(t, err)
	v, err := txn.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	require.NoError(t, txn.Commit())
	v, err = e.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
	_, err = e.Get([]byte("b"))
	require.Error(t, err)
}

func TestGetUpdatesSinceYieldsCommittedBatches(t *testing.T) {
	e := openTestEngine(t)

	txn, err := e.BeginTransaction(WriteOptions{}, TxOptions{})
	require.NoError(t, err)
	require.NoError(t, txn.Put([]byte("x"), []byte("1")))
	require.NoError(t, txn.Commit())
	seq1 := txn.Sequence()

	it, err := e.GetUpdatesSince(0)
	require.NoError(t, err)
	defer it.Close()

	require.True(t, it.Next())
	require.Equal(t, seq1, it.Sequence())

	var gotPuts []string
	handler := &recordingHandler{onPut: func(k, v []byte) { gotPuts = append(gotPuts, string(k)) }}
	require.NoError(t, it.Batch().Replay(handler))
	require.Equal(t, []string{"x"}, gotPuts)

	require.False(t, it.Next())
	require.NoError(t, it.Err())
}

type recordingHandler struct {
	onPut func(k, v []byte)
}

func (h *recordingHandler) Put(k, v []byte) error    { h.onPut(k, v); return nil }
func (h *recordingHandler) Delete(k []byte) error    { return nil }
func (h *recordingHandler) SingleDelete(k []byte) error { return nil }

func TestEngineBatchIsAtomicAndRecordedToWAL(t *testing.T) {
	e := openTestEngine(t)

	batch := e.NewWriteBatch()
	require.NoError(t, batch.Put([]byte("c1"), []byte("v")))
	require.NoError(t, batch.Put([]byte("c2"), []byte("v")))
	require.NoError(t, batch.Commit(WriteOptions{Sync: true}))

	v, err := e.Get([]byte("c1"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
	v, err = e.Get([]byte("c2"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)

	it, err := e.GetUpdatesSince(0)
	require.NoError(t, err)
	defer it.Close()
	require.True(t, it.Next())
	var gotPuts []string
	handler := &recordingHandler{onPut: func(k, v []byte) { gotPuts = append(gotPuts, string(k)) }}
	require.NoError(t, it.Batch().Replay(handler))
	require.Equal(t, []string{"c1", "c2"}, gotPuts)
}

func TestIteratorRespectsBounds(t *testing.T) {
	e := openTestEngine(t)
	require.NoError(t, e.Put([]byte("a/1"), []byte("1")))
	require.NoError(t, e.Put([]byte("a/2"), []byte("2")))
	require.NoError(t, e.Put([]byte("b/1"), []byte("3")))

	it, err := e.NewIterator(ReadOptions{}, []byte("a/"), []byte("a0"))
	require.NoError(t, err)
	defer it.Close()

	var keys []string
	for it.First(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.Equal(t, []string{"a/1", "a/2"}, keys)
}
