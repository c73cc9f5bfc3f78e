package txn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Frrank1/arangodb/internal/counter"
	"github.com/Frrank1/arangodb/internal/keycodec"
	"github.com/Frrank1/arangodb/internal/lsmengine"
)

func testEngine(t *testing.T) lsmengine.Engine {
	t.Helper()
	e, err := lsmengine.Open(t.TempDir(), lsmengine.Options{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestBeginCommitReconcilesCounters(t *testing.T) {
	engine := testEngine(t)
	counterMgr := counter.New(engine, counter.Config{}, nil, nil)
	mgr := NewManager(engine, counterMgr, nil, nil, nil)

	s, err := mgr.Begin(Options{})
	require.NoError(t, err)
	s.UseCollection(1)

	require.NoError(t, s.lsmTxn.Put(keycodec.EncodeDocument(1, 7), []byte("doc")))
	require.NoError(t, s.AddOperation(1, 7, OpInsert, 3))

	require.NoError(t, mgr.Commit(context.Background(), s))
	require.Equal(t, StatusCommitted, s.Status())

	count, rev := counterMgr.Load(1)
	require.Equal(t, int64(1), count)
	require.Equal(t, uint64(7), rev)
}

func TestAbortRollsBackWrites(t *testing.T) {
	engine := testEngine(t)
	mgr := NewManager(engine, nil, nil, nil, nil)

	s, err := mgr.Begin(Options{})
	require.NoError(t, err)
	s.UseCollection(1)
	require.NoError(t, s.lsmTxn.Put(keycodec.EncodeDocument(1, 1), []byte("doc")))

	require.NoError(t, mgr.Abort(context.Background(), s))
	require.Equal(t, StatusAborted, s.Status())

	_, err = engine.Get(keycodec.EncodeDocument(1, 1))
	require.Error(t, err)
}

func TestAddOperationFailsForUndeclaredCollection(t *testing.T) {
	engine := testEngine(t)
	mgr := NewManager(engine, nil, nil, nil, nil)

	s, err := mgr.Begin(Options{})
	require.NoError(t, err)
	require.Error(t, s.AddOperation(99, 1, OpInsert, 1))
}

func TestSavePointRollsBackOnClose(t *testing.T) {
	engine := testEngine(t)
	mgr := NewManager(engine, nil, nil, nil, nil)

	s, err := mgr.Begin(Options{})
	require.NoError(t, err)
	s.UseCollection(1)

	require.NoError(t, s.lsmTxn.Put(keycodec.EncodeDocument(1, 1), []byte("kept")))

	sp := OpenSavePoint(s)
	require.NoError(t, s.lsmTxn.Put(keycodec.EncodeDocument(1, 2), []byte("discarded")))
	require.NoError(t, sp.Close())

	v, err := s.lsmTxn.Get(keycodec.EncodeDocument(1, 1))
	require.NoError(t, err)
	require.Equal(t, []byte("kept"), v)

	_, err = s.lsmTxn.Get(keycodec.EncodeDocument(1, 2))
	require.Error(t, err)

	require.NoError(t, mgr.Abort(context.Background(), s))
}

func TestActiveCountTracksLifecycle(t *testing.T) {
	engine := testEngine(t)
	mgr := NewManager(engine, nil, nil, nil, nil)

	s, err := mgr.Begin(Options{})
	require.NoError(t, err)
	require.Equal(t, 1, mgr.ActiveCount())

	require.NoError(t, mgr.Abort(context.Background(), s))
	require.Equal(t, 0, mgr.ActiveCount())
}
